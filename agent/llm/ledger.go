package llm

import (
	"sync"

	"github.com/rs/zerolog/log"

	statex "github.com/tanpawarit/Foundation-Campaign-Synthesis/agent/state"
)

// InferenceLedger is an append-only, in-memory record of every inference attempt.
type InferenceLedger struct {
	mu      sync.Mutex
	entries []statex.InferenceLog
}

func NewInferenceLedger() *InferenceLedger {
	return &InferenceLedger{}
}

func (l *InferenceLedger) Record(entry statex.InferenceLog) {
	l.mu.Lock()
	l.entries = append(l.entries, entry)
	l.mu.Unlock()

	log.Debug().
		Str("run_id", entry.RunID).
		Str("agent", entry.Agent).
		Str("tier", entry.Tier).
		Str("model", entry.Model).
		Int("attempt", entry.Attempt).
		Int("prompt_tokens", entry.PromptTokens).
		Int("completion_tokens", entry.CompletionTokens).
		Float64("cost_units", entry.CostUnits).
		Dur("latency", entry.Latency).
		Str("outcome", entry.Outcome).
		Msg("inference recorded")
}

func (l *InferenceLedger) Entries() []statex.InferenceLog {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]statex.InferenceLog, len(l.entries))
	copy(out, l.entries)
	return out
}

// ForRun returns the entries of one synthesis run in recording order.
func (l *InferenceLedger) ForRun(runID string) []statex.InferenceLog {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []statex.InferenceLog
	for _, e := range l.entries {
		if e.RunID == runID {
			out = append(out, e)
		}
	}
	return out
}

// TotalCost sums cost units across all entries.
func (l *InferenceLedger) TotalCost() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	var total float64
	for _, e := range l.entries {
		total += e.CostUnits
	}
	return total
}
