package contract

import (
	"encoding/json"
	"time"

	statex "github.com/tanpawarit/Foundation-Campaign-Synthesis/agent/state"
)

type TaskClass string

const (
	TaskHeavyReasoning       TaskClass = "heavy_reasoning"
	TaskStructuredExtraction TaskClass = "structured_extraction"
	TaskClassification       TaskClass = "classification"
)

func (c TaskClass) Valid() bool {
	switch c {
	case TaskHeavyReasoning, TaskStructuredExtraction, TaskClassification:
		return true
	}
	return false
}

// TierProfile is the capability/cost/latency envelope an agent call runs under.
type TierProfile struct {
	Tier          string        `json:"tier"`
	Model         string        `json:"model"`
	MaxTokens     int           `json:"max_tokens"`
	LatencyBudget time.Duration `json:"latency_budget"`
	CostWeight    float64       `json:"cost_weight"`
	Temperature   float32       `json:"temperature"`
}

type InferenceRequest struct {
	Agent        string          `json:"agent"`
	SystemPrompt string          `json:"system_prompt"`
	Input        json.RawMessage `json:"input"`
	Tier         TierProfile     `json:"tier"`
}

type InferenceResponse struct {
	Content json.RawMessage `json:"content"`
	Usage   Usage           `json:"usage"`
}

type ICPRequest struct {
	Foundation statex.FoundationData `json:"foundation"`
}

type ICPResponse struct {
	ICPs []statex.DerivedICP `json:"icps"`
}

type BarrierRequest struct {
	Foundation statex.FoundationData `json:"foundation"`
	ICPs       []statex.DerivedICP   `json:"icps"`
}

type BarrierResponse struct {
	Barriers []statex.BarrierProfile `json:"barriers"`
}

type StrategyRequest struct {
	Foundation statex.FoundationData   `json:"foundation"`
	ICPs       []statex.DerivedICP     `json:"icps"`
	Barriers   []statex.BarrierProfile `json:"barriers"`
}

type StrategyResponse struct {
	Profile statex.StrategyProfile `json:"profile"`
}

type PositioningRequest struct {
	Foundation statex.FoundationData `json:"foundation"`
	ICPs       []statex.DerivedICP   `json:"icps"`
}

type PositioningResponse struct {
	Positioning statex.Positioning `json:"positioning"`
}

type CampaignRequest struct {
	Foundation  statex.FoundationData  `json:"foundation"`
	ICPs        []statex.DerivedICP    `json:"icps"`
	Positioning statex.Positioning     `json:"positioning"`
	Strategy    statex.StrategyProfile `json:"strategy"`
	MarketSize  *statex.MarketSize     `json:"market_size,omitempty"`
}

type CampaignResponse struct {
	Campaign statex.CampaignPlan `json:"campaign"`
}

type MoveRequest struct {
	Foundation  statex.FoundationData `json:"foundation"`
	ICPs        []statex.DerivedICP   `json:"icps"`
	Positioning statex.Positioning    `json:"positioning"`
	Campaign    statex.CampaignPlan   `json:"campaign"`
}

type MoveResponse struct {
	Moves []statex.MovePlan `json:"moves"`
}

type AssetRequest struct {
	Positioning statex.Positioning `json:"positioning"`
	Moves       []statex.MovePlan  `json:"moves"`
	Tones       []string           `json:"tones,omitempty"`
}

type AssetResponse struct {
	Assets []statex.Asset `json:"assets"`
}
