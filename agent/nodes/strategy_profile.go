package synthesisnode

import (
	specialistx "github.com/tanpawarit/Foundation-Campaign-Synthesis/agent/agents/specialist"
	contractx "github.com/tanpawarit/Foundation-Campaign-Synthesis/agent/contract"
	statex "github.com/tanpawarit/Foundation-Campaign-Synthesis/agent/state"
)

func StrategyProfile(agent contractx.Agent[contractx.StrategyRequest, contractx.StrategyResponse]) Step {
	return agentStep(agent, []string{specialistx.NameICPBuilder, specialistx.NameBarrierClassifier}, nil,
		func(_ Env, view statex.View) contractx.StrategyRequest {
			return contractx.StrategyRequest{Foundation: view.Foundation, ICPs: view.ICPs, Barriers: view.Barriers}
		},
		func(_ Env, _ statex.View, out contractx.StrategyResponse) Merge {
			profile := out.Profile
			return func(st *statex.SynthesisState) {
				st.Strategy = &profile
			}
		},
		func(out contractx.StrategyResponse) string {
			return "strategy archetype " + out.Profile.Archetype
		},
	)
}
