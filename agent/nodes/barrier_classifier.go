package synthesisnode

import (
	"fmt"

	specialistx "github.com/tanpawarit/Foundation-Campaign-Synthesis/agent/agents/specialist"
	contractx "github.com/tanpawarit/Foundation-Campaign-Synthesis/agent/contract"
	statex "github.com/tanpawarit/Foundation-Campaign-Synthesis/agent/state"
)

func BarrierClassifier(agent contractx.Agent[contractx.BarrierRequest, contractx.BarrierResponse]) Step {
	return agentStep(agent, []string{specialistx.NameICPBuilder}, nil,
		func(_ Env, view statex.View) contractx.BarrierRequest {
			return contractx.BarrierRequest{Foundation: view.Foundation, ICPs: view.ICPs}
		},
		func(_ Env, _ statex.View, out contractx.BarrierResponse) Merge {
			return func(st *statex.SynthesisState) {
				st.Barriers = append(st.Barriers, out.Barriers...)
			}
		},
		func(out contractx.BarrierResponse) string {
			return fmt.Sprintf("classified barriers for %d icps", len(out.Barriers))
		},
	)
}
