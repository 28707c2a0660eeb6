package contract

import (
	"context"
	"time"

	statex "github.com/tanpawarit/Foundation-Campaign-Synthesis/agent/state"
)

const (
	DefaultMaxRetries = 2
	defaultBackoff    = 250 * time.Millisecond
)

type RetryPolicy struct {
	MaxRetries int
	Backoff    time.Duration
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxRetries: DefaultMaxRetries, Backoff: defaultBackoff}
}

type InvokeOptions struct {
	RunID    string
	Retry    RetryPolicy
	Recorder InferenceRecorder
	Now      func() time.Time
}

// Invoke runs one agent under the contract: input validation, per-attempt latency budget,
// bounded retries for timeouts and transient upstream errors, then output validation.
func Invoke[In, Out any](
	ctx context.Context,
	agent Agent[In, Out],
	in In,
	tier TierProfile,
	opts InvokeOptions,
) Result[Out] {
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	if err := agent.ValidateInput(in); err != nil {
		f := NewFailure(FailureSchemaViolation, "input rejected: %v", err)
		return Fail[Out](f, Usage{})
	}

	maxRetries := opts.Retry.MaxRetries
	if maxRetries < 0 {
		maxRetries = 0
	}

	var (
		res     Result[Out]
		attempt int
	)
	for attempt = 1; attempt <= maxRetries+1; attempt++ {
		started := now()
		res = runAttempt(ctx, agent, in, tier)
		record(opts, agent.Name(), tier, attempt, res, now().Sub(started), now)

		if res.Failure == nil {
			if err := agent.ValidateOutput(res.Value); err != nil {
				f := NewFailure(FailureSchemaViolation, "output rejected: %v", err)
				f.Attempts = attempt
				rejected := Fail[Out](f, res.Usage)
				rejected.Attempts = attempt
				return rejected
			}
			res.Attempts = attempt
			return res
		}

		if !res.Failure.Retryable() || attempt > maxRetries {
			break
		}
		if err := sleepBackoff(ctx, opts.Retry.Backoff, attempt); err != nil {
			break
		}
	}

	if attempt > maxRetries+1 {
		attempt = maxRetries + 1
	}
	res.Failure.Attempts = attempt
	res.Attempts = attempt
	return res
}

func runAttempt[In, Out any](ctx context.Context, agent Agent[In, Out], in In, tier TierProfile) (res Result[Out]) {
	attemptCtx := ctx
	if tier.LatencyBudget > 0 {
		var cancel context.CancelFunc
		attemptCtx, cancel = context.WithTimeout(ctx, tier.LatencyBudget)
		defer cancel()
	}

	res = agent.Run(attemptCtx, in, tier)
	if res.Failure != nil && attemptCtx.Err() == context.DeadlineExceeded && ctx.Err() == nil {
		res.Failure = &AgentFailure{
			Kind:    FailureTimeout,
			Message: "latency budget of " + tier.LatencyBudget.String() + " exceeded",
		}
	}
	if res.Failure == nil && tier.MaxTokens > 0 && res.Usage.CompletionTokens > tier.MaxTokens {
		res.Failure = NewFailure(FailureBudgetExceeded, "completion used %d tokens, tier allows %d",
			res.Usage.CompletionTokens, tier.MaxTokens)
	}
	return res
}

func record[Out any](
	opts InvokeOptions,
	agent string,
	tier TierProfile,
	attempt int,
	res Result[Out],
	latency time.Duration,
	now func() time.Time,
) {
	if opts.Recorder == nil {
		return
	}
	outcome := "success"
	if res.Failure != nil {
		outcome = string(res.Failure.Kind)
	}
	model := res.Usage.Model
	if model == "" {
		model = tier.Model
	}
	opts.Recorder.Record(statex.InferenceLog{
		RunID:            opts.RunID,
		Agent:            agent,
		Tier:             tier.Tier,
		Model:            model,
		Attempt:          attempt,
		PromptTokens:     res.Usage.PromptTokens,
		CompletionTokens: res.Usage.CompletionTokens,
		CostUnits:        float64(res.Usage.Total()) * tier.CostWeight / 1000,
		Latency:          latency,
		Outcome:          outcome,
		Timestamp:        now().UTC(),
	})
}

func sleepBackoff(ctx context.Context, base time.Duration, attempt int) error {
	if base <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(base * time.Duration(1<<(attempt-1)))
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
