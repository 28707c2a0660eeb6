package contract

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	statex "github.com/tanpawarit/Foundation-Campaign-Synthesis/agent/state"
)

type scriptedAgent struct {
	results   []Result[string]
	inputErr  error
	outputErr error
	calls     int
	block     bool
}

func (a *scriptedAgent) Name() string         { return "scripted" }
func (a *scriptedAgent) TaskClass() TaskClass { return TaskClassification }

func (a *scriptedAgent) ValidateInput(string) error { return a.inputErr }

func (a *scriptedAgent) ValidateOutput(string) error { return a.outputErr }

func (a *scriptedAgent) Run(ctx context.Context, in string, tier TierProfile) Result[string] {
	a.calls++
	if a.block {
		<-ctx.Done()
		return Fail[string](FailureFrom(ctx.Err()), Usage{})
	}
	idx := a.calls - 1
	if idx >= len(a.results) {
		idx = len(a.results) - 1
	}
	return a.results[idx]
}

type memRecorder struct {
	mu      sync.Mutex
	entries []statex.InferenceLog
}

func (r *memRecorder) Record(e statex.InferenceLog) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, e)
}

func noBackoff() InvokeOptions {
	return InvokeOptions{Retry: RetryPolicy{MaxRetries: 2}}
}

func TestInvokeRetriesTransientUpstream(t *testing.T) {
	t.Parallel()

	agent := &scriptedAgent{results: []Result[string]{
		Fail[string](&AgentFailure{Kind: FailureUpstreamError, Message: "503", Transient: true}, Usage{}),
		Ok("done", Usage{PromptTokens: 10, CompletionTokens: 5}),
	}}
	rec := &memRecorder{}
	opts := noBackoff()
	opts.Recorder = rec
	opts.RunID = "run-1"

	res := Invoke(context.Background(), agent, "in", TierProfile{Tier: "classification", Model: "m", CostWeight: 1}, opts)
	if !res.OK() {
		t.Fatalf("Invoke() failure = %v", res.Failure)
	}
	if res.Value != "done" {
		t.Fatalf("unexpected value: %q", res.Value)
	}
	if agent.calls != 2 {
		t.Fatalf("expected 2 calls, got %d", agent.calls)
	}
	if len(rec.entries) != 2 {
		t.Fatalf("expected 2 inference logs, got %d", len(rec.entries))
	}
	last := rec.entries[1]
	if last.Outcome != "success" || last.Attempt != 2 || last.RunID != "run-1" {
		t.Fatalf("unexpected log entry: %+v", last)
	}
	if last.CostUnits != 0.015 {
		t.Fatalf("unexpected cost units: %v", last.CostUnits)
	}
}

func TestInvokeDoesNotRetryPermanentUpstream(t *testing.T) {
	t.Parallel()

	agent := &scriptedAgent{results: []Result[string]{
		Fail[string](&AgentFailure{Kind: FailureUpstreamError, Message: "401"}, Usage{}),
	}}

	res := Invoke(context.Background(), agent, "in", TierProfile{}, noBackoff())
	if res.OK() {
		t.Fatal("expected failure")
	}
	if agent.calls != 1 {
		t.Fatalf("expected 1 call, got %d", agent.calls)
	}
	if !errors.Is(res.Failure, ErrUpstream) {
		t.Fatalf("expected ErrUpstream, got %v", res.Failure)
	}
}

func TestInvokeSchemaViolationIsTerminal(t *testing.T) {
	t.Parallel()

	agent := &scriptedAgent{results: []Result[string]{
		Fail[string](NewFailure(FailureSchemaViolation, "bad json"), Usage{}),
	}}

	res := Invoke(context.Background(), agent, "in", TierProfile{}, noBackoff())
	if res.Failure == nil || res.Failure.Kind != FailureSchemaViolation {
		t.Fatalf("expected schema violation, got %+v", res.Failure)
	}
	if agent.calls != 1 {
		t.Fatalf("expected no retry, got %d calls", agent.calls)
	}
	if res.Failure.Attempts != 1 {
		t.Fatalf("unexpected attempts: %d", res.Failure.Attempts)
	}
}

func TestInvokeRejectsInputBeforeRun(t *testing.T) {
	t.Parallel()

	agent := &scriptedAgent{inputErr: errors.New("icps are required")}

	res := Invoke(context.Background(), agent, "in", TierProfile{}, noBackoff())
	if !errors.Is(res.Failure, ErrSchemaViolation) {
		t.Fatalf("expected ErrSchemaViolation, got %v", res.Failure)
	}
	if agent.calls != 0 {
		t.Fatalf("agent must not run on invalid input, got %d calls", agent.calls)
	}
}

func TestInvokeRejectsInvalidOutput(t *testing.T) {
	t.Parallel()

	agent := &scriptedAgent{
		results:   []Result[string]{Ok("x", Usage{})},
		outputErr: errors.New("missing name"),
	}

	res := Invoke(context.Background(), agent, "in", TierProfile{}, noBackoff())
	if res.Failure == nil || res.Failure.Kind != FailureSchemaViolation {
		t.Fatalf("expected schema violation, got %+v", res.Failure)
	}
	if agent.calls != 1 {
		t.Fatalf("output violations are not retried, got %d calls", agent.calls)
	}
}

func TestInvokeBudgetExceededIsTerminal(t *testing.T) {
	t.Parallel()

	agent := &scriptedAgent{results: []Result[string]{
		Ok("long", Usage{CompletionTokens: 900}),
	}}

	res := Invoke(context.Background(), agent, "in", TierProfile{MaxTokens: 500}, noBackoff())
	if !errors.Is(res.Failure, ErrBudgetExceeded) {
		t.Fatalf("expected ErrBudgetExceeded, got %v", res.Failure)
	}
	if agent.calls != 1 {
		t.Fatalf("budget failures are not retried, got %d calls", agent.calls)
	}
}

func TestInvokeTimeoutRetriesThenFails(t *testing.T) {
	t.Parallel()

	agent := &scriptedAgent{block: true}

	res := Invoke(context.Background(), agent, "in", TierProfile{LatencyBudget: 10 * time.Millisecond}, noBackoff())
	if !errors.Is(res.Failure, ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", res.Failure)
	}
	if agent.calls != 3 {
		t.Fatalf("expected 1 call + 2 retries, got %d", agent.calls)
	}
	if res.Failure.Attempts != 3 {
		t.Fatalf("unexpected attempts: %d", res.Failure.Attempts)
	}
}

func TestFailureFromClassification(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name      string
		err       error
		kind      FailureKind
		retryable bool
	}{
		{"deadline", context.DeadlineExceeded, FailureTimeout, true},
		{"budget", ErrBudgetExceeded, FailureBudgetExceeded, false},
		{"schema", ErrSchemaViolation, FailureSchemaViolation, false},
		{"transient upstream", Transient(ErrUpstream), FailureUpstreamError, true},
		{"permanent upstream", ErrUpstream, FailureUpstreamError, false},
	}
	for _, tc := range cases {
		f := FailureFrom(tc.err)
		if f.Kind != tc.kind {
			t.Fatalf("%s: kind = %s, want %s", tc.name, f.Kind, tc.kind)
		}
		if f.Retryable() != tc.retryable {
			t.Fatalf("%s: retryable = %v, want %v", tc.name, f.Retryable(), tc.retryable)
		}
	}
}
