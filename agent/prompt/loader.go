package prompt

import (
	_ "embed"
	"sort"
	"strings"
)

var (
	//go:embed template/icp_builder.txt
	icpBuilderRaw string

	//go:embed template/barrier_classifier.txt
	barrierClassifierRaw string

	//go:embed template/strategy_profile.txt
	strategyProfileRaw string

	//go:embed template/positioning.txt
	positioningRaw string

	//go:embed template/campaign_planner.txt
	campaignPlannerRaw string

	//go:embed template/move_assembler.txt
	moveAssemblerRaw string

	//go:embed template/asset_drafter.txt
	assetDrafterRaw string
)

// PromptSet holds the system prompt of every synthesis agent.
type PromptSet struct {
	ICPBuilder        string
	BarrierClassifier string
	StrategyProfile   string
	Positioning       string
	CampaignPlanner   string
	MoveAssembler     string
	AssetDrafter      string
}

// LoadPromptSet returns a PromptSet with trimmed prompt strings.
// Safe to call concurrently; the embed is compile-time.
func LoadPromptSet() PromptSet {
	return PromptSet{
		ICPBuilder:        strings.TrimSpace(icpBuilderRaw),
		BarrierClassifier: strings.TrimSpace(barrierClassifierRaw),
		StrategyProfile:   strings.TrimSpace(strategyProfileRaw),
		Positioning:       strings.TrimSpace(positioningRaw),
		CampaignPlanner:   strings.TrimSpace(campaignPlannerRaw),
		MoveAssembler:     strings.TrimSpace(moveAssemblerRaw),
		AssetDrafter:      strings.TrimSpace(assetDrafterRaw),
	}
}

// Missing lists the names of empty prompts.
func (p PromptSet) Missing() []string {
	var out []string
	for name, body := range map[string]string{
		"icp_builder":        p.ICPBuilder,
		"barrier_classifier": p.BarrierClassifier,
		"strategy_profile":   p.StrategyProfile,
		"positioning":        p.Positioning,
		"campaign_planner":   p.CampaignPlanner,
		"move_assembler":     p.MoveAssembler,
		"asset_drafter":      p.AssetDrafter,
	} {
		if body == "" {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}
