package synthesisnode

import (
	specialistx "github.com/tanpawarit/Foundation-Campaign-Synthesis/agent/agents/specialist"
	contractx "github.com/tanpawarit/Foundation-Campaign-Synthesis/agent/contract"
	statex "github.com/tanpawarit/Foundation-Campaign-Synthesis/agent/state"
)

func Positioning(agent contractx.Agent[contractx.PositioningRequest, contractx.PositioningResponse]) Step {
	return agentStep(agent, []string{specialistx.NameICPBuilder}, nil,
		func(_ Env, view statex.View) contractx.PositioningRequest {
			return contractx.PositioningRequest{Foundation: view.Foundation, ICPs: view.ICPs}
		},
		func(_ Env, _ statex.View, out contractx.PositioningResponse) Merge {
			positioning := out.Positioning
			return func(st *statex.SynthesisState) {
				st.Positioning = &positioning
			}
		},
		func(out contractx.PositioningResponse) string {
			return "positioned in " + out.Positioning.Category
		},
	)
}
