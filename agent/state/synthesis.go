package state

import (
	"time"
)

type StepOutcome string

const (
	StepSucceeded StepOutcome = "success"
	StepFailed    StepOutcome = "failed"
	StepSkipped   StepOutcome = "skipped_due_to_dependency"
	StepDeadline  StepOutcome = "skipped_due_to_deadline"
)

// StepRecord is the per-node outcome of a synthesis run, appended in completion order.
type StepRecord struct {
	Node       string        `json:"node"`
	Outcome    StepOutcome   `json:"outcome"`
	Attempts   int           `json:"attempts,omitempty"`
	Duration   time.Duration `json:"duration"`
	FinishedAt time.Time     `json:"finished_at"`
}

type SynthesisError struct {
	Node     string `json:"node"`
	Kind     string `json:"kind"`
	Message  string `json:"message"`
	Attempts int    `json:"attempts,omitempty"`
}

// InferenceLog is an append-only audit record of one inference call.
type InferenceLog struct {
	RunID            string        `json:"run_id"`
	Agent            string        `json:"agent"`
	Tier             string        `json:"tier"`
	Model            string        `json:"model"`
	Attempt          int           `json:"attempt"`
	PromptTokens     int           `json:"prompt_tokens"`
	CompletionTokens int           `json:"completion_tokens"`
	CostUnits        float64       `json:"cost_units"`
	Latency          time.Duration `json:"latency"`
	Outcome          string        `json:"outcome"`
	Timestamp        time.Time     `json:"timestamp"`
}

// SynthesisState accumulates the artifacts of one synthesis run.
// It is owned by the orchestrator for the duration of the run.
type SynthesisState struct {
	RunID       string           `json:"run_id"`
	Foundation  FoundationData   `json:"foundation"`
	ICPs        []DerivedICP     `json:"icps"`
	Barriers    []BarrierProfile `json:"barriers,omitempty"`
	Strategy    *StrategyProfile `json:"strategy,omitempty"`
	Positioning *Positioning     `json:"positioning,omitempty"`
	MarketSize  *MarketSize      `json:"market_size,omitempty"`
	Campaign    *Campaign        `json:"campaign,omitempty"`
	Moves       []Move           `json:"moves"`
	Assets      []Asset          `json:"assets,omitempty"`
	Status      []string         `json:"status"`
	Steps       []StepRecord     `json:"steps"`
	Errors      []SynthesisError `json:"errors"`
	Inference   []InferenceLog   `json:"inference,omitempty"`
	StartedAt   time.Time        `json:"started_at"`
	FinishedAt  time.Time        `json:"finished_at"`
}

func NewSynthesisState(runID string, foundation FoundationData, now time.Time) *SynthesisState {
	return &SynthesisState{
		RunID:      runID,
		Foundation: foundation,
		ICPs:       []DerivedICP{},
		Moves:      []Move{},
		Status:     []string{},
		Steps:      []StepRecord{},
		Errors:     []SynthesisError{},
		StartedAt:  now.UTC(),
	}
}

// Failed reports whether the named node failed or was skipped.
func (s *SynthesisState) Failed(node string) bool {
	for _, e := range s.Errors {
		if e.Node == node {
			return true
		}
	}
	return false
}

func (s *SynthesisState) Step(node string) (StepRecord, bool) {
	for _, st := range s.Steps {
		if st.Node == node {
			return st, true
		}
	}
	return StepRecord{}, false
}

// View is a read-only copy of the artifacts produced so far, handed to agent steps.
type View struct {
	RunID       string
	Foundation  FoundationData
	ICPs        []DerivedICP
	Barriers    []BarrierProfile
	Strategy    *StrategyProfile
	Positioning *Positioning
	MarketSize  *MarketSize
	Campaign    *Campaign
	Moves       []Move
}

func (s *SynthesisState) View() View {
	v := View{
		RunID:      s.RunID,
		Foundation: s.Foundation,
		ICPs:       append([]DerivedICP(nil), s.ICPs...),
		Barriers:   append([]BarrierProfile(nil), s.Barriers...),
		Moves:      append([]Move(nil), s.Moves...),
	}
	if s.Strategy != nil {
		cp := *s.Strategy
		v.Strategy = &cp
	}
	if s.Positioning != nil {
		cp := *s.Positioning
		v.Positioning = &cp
	}
	if s.MarketSize != nil {
		cp := *s.MarketSize
		v.MarketSize = &cp
	}
	if s.Campaign != nil {
		cp := *s.Campaign
		v.Campaign = &cp
	}
	return v
}
