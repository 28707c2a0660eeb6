package synthesisnode

import (
	"context"
	"time"

	contractx "github.com/tanpawarit/Foundation-Campaign-Synthesis/agent/contract"
	statex "github.com/tanpawarit/Foundation-Campaign-Synthesis/agent/state"
)

// Merge applies a step's output to the run state. The orchestrator calls it under its lock,
// so it must not block.
type Merge func(st *statex.SynthesisState)

// Env is what the orchestrator hands to a step at execution time.
type Env struct {
	Tier   contractx.TierProfile
	Invoke contractx.InvokeOptions
	NewID  func() string
	Now    func() time.Time
}

type Outcome struct {
	Merge    Merge
	Summary  string
	Failure  *contractx.AgentFailure
	Attempts int
}

// Step is one node of the synthesis graph. Requires lists upstreams whose failure skips the
// step; Optional lists upstreams it waits for but can run without.
type Step struct {
	Name      string
	Requires  []string
	Optional  []string
	TaskClass contractx.TaskClass
	Run       func(ctx context.Context, env Env, view statex.View) Outcome
}

// Deterministic reports whether the step runs without inference.
func (s Step) Deterministic() bool {
	return s.TaskClass == ""
}

// Upstreams returns required then optional dependencies.
func (s Step) Upstreams() []string {
	out := make([]string, 0, len(s.Requires)+len(s.Optional))
	out = append(out, s.Requires...)
	return append(out, s.Optional...)
}

// agentStep binds a contract agent to a graph step.
func agentStep[In, Out any](
	agent contractx.Agent[In, Out],
	requires, optional []string,
	build func(env Env, view statex.View) In,
	merge func(env Env, view statex.View, out Out) Merge,
	summarize func(out Out) string,
) Step {
	return Step{
		Name:      agent.Name(),
		Requires:  requires,
		Optional:  optional,
		TaskClass: agent.TaskClass(),
		Run: func(ctx context.Context, env Env, view statex.View) Outcome {
			res := contractx.Invoke(ctx, agent, build(env, view), env.Tier, env.Invoke)
			if res.Failure != nil {
				return Outcome{Failure: res.Failure, Attempts: res.Attempts}
			}
			return Outcome{
				Merge:    merge(env, view, res.Value),
				Summary:  summarize(res.Value),
				Attempts: res.Attempts,
			}
		},
	}
}
