package synthesisnode

import (
	"fmt"

	specialistx "github.com/tanpawarit/Foundation-Campaign-Synthesis/agent/agents/specialist"
	contractx "github.com/tanpawarit/Foundation-Campaign-Synthesis/agent/contract"
	statex "github.com/tanpawarit/Foundation-Campaign-Synthesis/agent/state"
)

func AssetDrafter(agent contractx.Agent[contractx.AssetRequest, contractx.AssetResponse]) Step {
	return agentStep(agent,
		[]string{specialistx.NameMoveAssembler, specialistx.NamePositioning},
		nil,
		func(_ Env, view statex.View) contractx.AssetRequest {
			req := contractx.AssetRequest{
				Moves: plansOf(view.Moves),
				Tones: view.Foundation.Outcomes.PreferredTones,
			}
			if view.Positioning != nil {
				req.Positioning = *view.Positioning
			}
			return req
		},
		func(_ Env, _ statex.View, out contractx.AssetResponse) Merge {
			return func(st *statex.SynthesisState) {
				st.Assets = append(st.Assets, out.Assets...)
			}
		},
		func(out contractx.AssetResponse) string {
			return fmt.Sprintf("drafted %d assets", len(out.Assets))
		},
	)
}
