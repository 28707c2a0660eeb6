package specialist

import (
	"errors"
	"fmt"
	"strings"

	contractx "github.com/tanpawarit/Foundation-Campaign-Synthesis/agent/contract"
	statex "github.com/tanpawarit/Foundation-Campaign-Synthesis/agent/state"
)

const (
	NameICPBuilder        = "icp_builder"
	NameBarrierClassifier = "barrier_classifier"
	NameStrategyProfile   = "strategy_profile"
	NamePositioning       = "positioning"
	NameCampaignPlanner   = "campaign_planner"
	NameMoveAssembler     = "move_assembler"
	NameAssetDrafter      = "asset_drafter"
)

const (
	maxICPs          = 5
	maxMoves         = 12
	maxCampaignWeeks = 52
	maxMoveDays      = 90
	maxChecklist     = 10
)

func newICPBuilder(backend contractx.InferenceBackend, prompt string) contractx.Agent[contractx.ICPRequest, contractx.ICPResponse] {
	return &structuredAgent[contractx.ICPRequest, contractx.ICPResponse]{
		name:         NameICPBuilder,
		taskClass:    contractx.TaskHeavyReasoning,
		systemPrompt: prompt,
		backend:      backend,
		validateIn: func(in contractx.ICPRequest) error {
			return in.Foundation.Validate()
		},
		normalize: func(out *contractx.ICPResponse) {
			for i := range out.ICPs {
				icp := &out.ICPs[i]
				icp.Name = strings.TrimSpace(icp.Name)
				icp.Priority = statex.ICPPriority(strings.ToLower(strings.TrimSpace(string(icp.Priority))))
				icp.Firmographics.Industries = trimAll(icp.Firmographics.Industries)
				icp.Firmographics.Geographies = trimAll(icp.Firmographics.Geographies)
				icp.Firmographics.CompanySizes = trimAll(icp.Firmographics.CompanySizes)
			}
		},
		validateOut: validateICPs,
	}
}

func validateICPs(out contractx.ICPResponse) error {
	if len(out.ICPs) == 0 || len(out.ICPs) > maxICPs {
		return fmt.Errorf("expected 1-%d icps, got %d", maxICPs, len(out.ICPs))
	}
	seen := make(map[string]struct{}, len(out.ICPs))
	primary := 0
	for i, icp := range out.ICPs {
		if icp.Name == "" {
			return fmt.Errorf("icps[%d].name is required", i)
		}
		key := strings.ToLower(icp.Name)
		if _, dup := seen[key]; dup {
			return fmt.Errorf("duplicate icp name %q", icp.Name)
		}
		seen[key] = struct{}{}
		if !icp.Priority.Valid() {
			return fmt.Errorf("icps[%d].priority %q is invalid", i, icp.Priority)
		}
		if icp.Priority == statex.PriorityPrimary {
			primary++
		}
		if icp.Confidence < 0 || icp.Confidence > 1 {
			return fmt.Errorf("icps[%d].confidence %v out of range", i, icp.Confidence)
		}
		if strings.TrimSpace(icp.PainMap.PrimaryPain) == "" {
			return fmt.Errorf("icps[%d].pain_map.primary_pain is required", i)
		}
		for _, band := range icp.Firmographics.CompanySizes {
			if !statex.IsCompanySizeBand(band) {
				return fmt.Errorf("icps[%d] unknown company size band %q", i, band)
			}
		}
	}
	if primary == 0 {
		return errors.New("at least one primary icp is required")
	}
	return nil
}

func newBarrierClassifier(backend contractx.InferenceBackend, prompt string) contractx.Agent[contractx.BarrierRequest, contractx.BarrierResponse] {
	return &structuredAgent[contractx.BarrierRequest, contractx.BarrierResponse]{
		name:         NameBarrierClassifier,
		taskClass:    contractx.TaskClassification,
		systemPrompt: prompt,
		backend:      backend,
		validateIn: func(in contractx.BarrierRequest) error {
			if len(in.ICPs) == 0 {
				return errors.New("icps are required")
			}
			return nil
		},
		normalize: func(out *contractx.BarrierResponse) {
			for i := range out.Barriers {
				b := &out.Barriers[i]
				b.ICPName = strings.TrimSpace(b.ICPName)
				b.Barrier = statex.Barrier(strings.ToLower(strings.TrimSpace(string(b.Barrier))))
				b.Engine = statex.Engine(strings.ToLower(strings.TrimSpace(string(b.Engine))))
			}
		},
		crossCheck: func(in contractx.BarrierRequest, out contractx.BarrierResponse) error {
			if len(out.Barriers) != len(in.ICPs) {
				return fmt.Errorf("expected %d barrier profiles, got %d", len(in.ICPs), len(out.Barriers))
			}
			names := icpNames(in.ICPs)
			covered := make(map[string]struct{}, len(out.Barriers))
			for _, b := range out.Barriers {
				key := strings.ToLower(b.ICPName)
				if _, ok := names[key]; !ok {
					return fmt.Errorf("barrier profile for unknown icp %q", b.ICPName)
				}
				covered[key] = struct{}{}
			}
			if len(covered) != len(names) {
				return errors.New("every icp needs exactly one barrier profile")
			}
			return nil
		},
		validateOut: func(out contractx.BarrierResponse) error {
			if len(out.Barriers) == 0 {
				return errors.New("barriers are required")
			}
			for i, b := range out.Barriers {
				if !b.Barrier.Valid() {
					return fmt.Errorf("barriers[%d].barrier %q is not a known barrier", i, b.Barrier)
				}
				if !b.Engine.Valid() {
					return fmt.Errorf("barriers[%d].engine %q is not a known engine", i, b.Engine)
				}
			}
			return nil
		},
	}
}

func newStrategySynthesizer(backend contractx.InferenceBackend, prompt string) contractx.Agent[contractx.StrategyRequest, contractx.StrategyResponse] {
	return &structuredAgent[contractx.StrategyRequest, contractx.StrategyResponse]{
		name:         NameStrategyProfile,
		taskClass:    contractx.TaskHeavyReasoning,
		systemPrompt: prompt,
		backend:      backend,
		validateIn: func(in contractx.StrategyRequest) error {
			if len(in.ICPs) == 0 {
				return errors.New("icps are required")
			}
			if len(in.Barriers) == 0 {
				return errors.New("barrier profiles are required")
			}
			return nil
		},
		normalize: func(out *contractx.StrategyResponse) {
			out.Profile.Archetype = strings.TrimSpace(out.Profile.Archetype)
			out.Profile.Pillars = trimAll(out.Profile.Pillars)
			out.Profile.PrimaryEngine = statex.Engine(strings.ToLower(strings.TrimSpace(string(out.Profile.PrimaryEngine))))
		},
		validateOut: func(out contractx.StrategyResponse) error {
			if out.Profile.Archetype == "" {
				return errors.New("archetype is required")
			}
			if len(out.Profile.Pillars) == 0 {
				return errors.New("at least one pillar is required")
			}
			if !out.Profile.PrimaryEngine.Valid() {
				return fmt.Errorf("primary engine %q is not a known engine", out.Profile.PrimaryEngine)
			}
			return nil
		},
	}
}

func newPositioningComposer(backend contractx.InferenceBackend, prompt string) contractx.Agent[contractx.PositioningRequest, contractx.PositioningResponse] {
	return &structuredAgent[contractx.PositioningRequest, contractx.PositioningResponse]{
		name:         NamePositioning,
		taskClass:    contractx.TaskHeavyReasoning,
		systemPrompt: prompt,
		backend:      backend,
		validateIn: func(in contractx.PositioningRequest) error {
			if len(in.ICPs) == 0 {
				return errors.New("icps are required")
			}
			return nil
		},
		normalize: func(out *contractx.PositioningResponse) {
			p := &out.Positioning
			p.Statement = strings.TrimSpace(p.Statement)
			p.Category = strings.TrimSpace(p.Category)
			p.Tagline = strings.TrimSpace(p.Tagline)
			p.Differentiators = trimAll(p.Differentiators)
			p.ProofPoints = trimAll(p.ProofPoints)
		},
		validateOut: func(out contractx.PositioningResponse) error {
			if out.Positioning.Statement == "" {
				return errors.New("statement is required")
			}
			if out.Positioning.Category == "" {
				return errors.New("category is required")
			}
			if len(out.Positioning.Differentiators) == 0 {
				return errors.New("at least one differentiator is required")
			}
			return nil
		},
	}
}

func newCampaignPlanner(backend contractx.InferenceBackend, prompt string) contractx.Agent[contractx.CampaignRequest, contractx.CampaignResponse] {
	return &structuredAgent[contractx.CampaignRequest, contractx.CampaignResponse]{
		name:         NameCampaignPlanner,
		taskClass:    contractx.TaskStructuredExtraction,
		systemPrompt: prompt,
		backend:      backend,
		validateIn: func(in contractx.CampaignRequest) error {
			if strings.TrimSpace(in.Positioning.Statement) == "" {
				return errors.New("positioning is required")
			}
			if strings.TrimSpace(in.Strategy.Archetype) == "" {
				return errors.New("strategy profile is required")
			}
			return nil
		},
		normalize: func(out *contractx.CampaignResponse) {
			c := &out.Campaign
			c.Name = strings.TrimSpace(c.Name)
			c.CohortICP = strings.TrimSpace(c.CohortICP)
			c.Summary = strings.TrimSpace(c.Summary)
			c.Objective = statex.Objective(strings.ToLower(strings.TrimSpace(string(c.Objective))))
		},
		crossCheck: func(in contractx.CampaignRequest, out contractx.CampaignResponse) error {
			if len(in.ICPs) == 0 {
				return nil
			}
			if _, ok := icpNames(in.ICPs)[strings.ToLower(out.Campaign.CohortICP)]; !ok {
				return fmt.Errorf("cohort icp %q is not one of the derived icps", out.Campaign.CohortICP)
			}
			return nil
		},
		validateOut: func(out contractx.CampaignResponse) error {
			c := out.Campaign
			if c.Name == "" {
				return errors.New("campaign name is required")
			}
			if !c.Objective.Valid() {
				return fmt.Errorf("objective %q is invalid", c.Objective)
			}
			if c.CohortICP == "" {
				return errors.New("cohort icp is required")
			}
			if c.DurationWeeks < 1 || c.DurationWeeks > maxCampaignWeeks {
				return fmt.Errorf("duration_weeks %d out of range 1-%d", c.DurationWeeks, maxCampaignWeeks)
			}
			return nil
		},
	}
}

func newMoveAssembler(backend contractx.InferenceBackend, prompt string) contractx.Agent[contractx.MoveRequest, contractx.MoveResponse] {
	return &structuredAgent[contractx.MoveRequest, contractx.MoveResponse]{
		name:         NameMoveAssembler,
		taskClass:    contractx.TaskStructuredExtraction,
		systemPrompt: prompt,
		backend:      backend,
		validateIn: func(in contractx.MoveRequest) error {
			if strings.TrimSpace(in.Campaign.Name) == "" {
				return errors.New("campaign is required")
			}
			if len(in.ICPs) == 0 {
				return errors.New("icps are required")
			}
			return nil
		},
		normalize: func(out *contractx.MoveResponse) {
			for i := range out.Moves {
				m := &out.Moves[i]
				m.Name = strings.TrimSpace(m.Name)
				m.Channel = strings.ToLower(strings.TrimSpace(m.Channel))
				m.Checklist = trimAll(m.Checklist)
			}
		},
		validateOut: validateMoves,
	}
}

func validateMoves(out contractx.MoveResponse) error {
	if len(out.Moves) == 0 || len(out.Moves) > maxMoves {
		return fmt.Errorf("expected 1-%d moves, got %d", maxMoves, len(out.Moves))
	}
	seen := make(map[string]struct{}, len(out.Moves))
	for i, m := range out.Moves {
		if m.Name == "" {
			return fmt.Errorf("moves[%d].name is required", i)
		}
		key := strings.ToLower(m.Name)
		if _, dup := seen[key]; dup {
			return fmt.Errorf("duplicate move name %q", m.Name)
		}
		seen[key] = struct{}{}
		if m.Channel == "" {
			return fmt.Errorf("moves[%d].channel is required", i)
		}
		if m.DurationDays < 1 || m.DurationDays > maxMoveDays {
			return fmt.Errorf("moves[%d].duration_days %d out of range 1-%d", i, m.DurationDays, maxMoveDays)
		}
		if m.DailyEffortMinutes < 0 {
			return fmt.Errorf("moves[%d].daily_effort_minutes must be >= 0", i)
		}
		if len(m.Checklist) == 0 || len(m.Checklist) > maxChecklist {
			return fmt.Errorf("moves[%d] needs 1-%d checklist items", i, maxChecklist)
		}
	}
	return nil
}

func newAssetDrafter(backend contractx.InferenceBackend, prompt string) contractx.Agent[contractx.AssetRequest, contractx.AssetResponse] {
	return &structuredAgent[contractx.AssetRequest, contractx.AssetResponse]{
		name:         NameAssetDrafter,
		taskClass:    contractx.TaskStructuredExtraction,
		systemPrompt: prompt,
		backend:      backend,
		validateIn: func(in contractx.AssetRequest) error {
			if len(in.Moves) == 0 {
				return errors.New("moves are required")
			}
			return nil
		},
		normalize: func(out *contractx.AssetResponse) {
			for i := range out.Assets {
				a := &out.Assets[i]
				a.MoveName = strings.TrimSpace(a.MoveName)
				a.Kind = strings.ToLower(strings.TrimSpace(a.Kind))
				a.Title = strings.TrimSpace(a.Title)
				a.Body = strings.TrimSpace(a.Body)
			}
		},
		crossCheck: func(in contractx.AssetRequest, out contractx.AssetResponse) error {
			moves := make(map[string]bool, len(in.Moves))
			for _, m := range in.Moves {
				moves[strings.ToLower(strings.TrimSpace(m.Name))] = false
			}
			for _, a := range out.Assets {
				key := strings.ToLower(a.MoveName)
				if _, ok := moves[key]; !ok {
					return fmt.Errorf("asset for unknown move %q", a.MoveName)
				}
				moves[key] = true
			}
			for name, covered := range moves {
				if !covered {
					return fmt.Errorf("move %q has no asset", name)
				}
			}
			return nil
		},
		validateOut: func(out contractx.AssetResponse) error {
			if len(out.Assets) == 0 {
				return errors.New("at least one asset is required")
			}
			for i, a := range out.Assets {
				if a.MoveName == "" || a.Kind == "" || a.Body == "" {
					return fmt.Errorf("assets[%d] needs move_name, kind and body", i)
				}
			}
			return nil
		},
	}
}

func icpNames(icps []statex.DerivedICP) map[string]struct{} {
	names := make(map[string]struct{}, len(icps))
	for _, icp := range icps {
		names[strings.ToLower(strings.TrimSpace(icp.Name))] = struct{}{}
	}
	return names
}
