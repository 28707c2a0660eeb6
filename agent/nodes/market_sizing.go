package synthesisnode

import (
	"context"
	"fmt"

	specialistx "github.com/tanpawarit/Foundation-Campaign-Synthesis/agent/agents/specialist"
	marketx "github.com/tanpawarit/Foundation-Campaign-Synthesis/agent/market"
	statex "github.com/tanpawarit/Foundation-Campaign-Synthesis/agent/state"
)

const NameMarketSizing = "market_sizing"

// MarketSizing runs the deterministic calculator. ICPs narrow the market when available.
func MarketSizing() Step {
	return Step{
		Name:     NameMarketSizing,
		Optional: []string{specialistx.NameICPBuilder},
		Run: func(_ context.Context, _ Env, view statex.View) Outcome {
			size := marketx.ComputeMarketSize(view.Foundation, view.ICPs)
			return Outcome{
				Merge: func(st *statex.SynthesisState) {
					st.MarketSize = &size
				},
				Summary: fmt.Sprintf("som %.0f of sam %.0f (%s confidence)", size.SOM.Value, size.SAM.Value, size.SOM.Confidence),
			}
		},
	}
}
