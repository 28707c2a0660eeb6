package synthesisnode

import (
	"fmt"

	contractx "github.com/tanpawarit/Foundation-Campaign-Synthesis/agent/contract"
	statex "github.com/tanpawarit/Foundation-Campaign-Synthesis/agent/state"
)

func ICPBuilder(agent contractx.Agent[contractx.ICPRequest, contractx.ICPResponse]) Step {
	return agentStep(agent, nil, nil,
		func(_ Env, view statex.View) contractx.ICPRequest {
			return contractx.ICPRequest{Foundation: view.Foundation}
		},
		func(_ Env, _ statex.View, out contractx.ICPResponse) Merge {
			return func(st *statex.SynthesisState) {
				st.ICPs = append(st.ICPs, out.ICPs...)
			}
		},
		func(out contractx.ICPResponse) string {
			return fmt.Sprintf("derived %d icps", len(out.ICPs))
		},
	)
}
