package synthesisnode

import (
	"fmt"

	specialistx "github.com/tanpawarit/Foundation-Campaign-Synthesis/agent/agents/specialist"
	contractx "github.com/tanpawarit/Foundation-Campaign-Synthesis/agent/contract"
	statex "github.com/tanpawarit/Foundation-Campaign-Synthesis/agent/state"
)

func CampaignPlanner(agent contractx.Agent[contractx.CampaignRequest, contractx.CampaignResponse]) Step {
	return agentStep(agent,
		[]string{specialistx.NamePositioning, specialistx.NameStrategyProfile},
		[]string{NameMarketSizing},
		func(_ Env, view statex.View) contractx.CampaignRequest {
			req := contractx.CampaignRequest{
				Foundation: view.Foundation,
				ICPs:       view.ICPs,
				MarketSize: view.MarketSize,
			}
			if view.Positioning != nil {
				req.Positioning = *view.Positioning
			}
			if view.Strategy != nil {
				req.Strategy = *view.Strategy
			}
			return req
		},
		func(env Env, view statex.View, out contractx.CampaignResponse) Merge {
			now := env.Now()
			campaign := statex.Campaign{
				ID:            env.NewID(),
				OwnerID:       view.Foundation.Business.OwnerID,
				Name:          out.Campaign.Name,
				Objective:     out.Campaign.Objective,
				CohortRef:     out.Campaign.CohortICP,
				Summary:       out.Campaign.Summary,
				DurationWeeks: out.Campaign.DurationWeeks,
				Status:        statex.CampaignPlanned,
				CreatedAt:     now,
				UpdatedAt:     now,
			}
			return func(st *statex.SynthesisState) {
				st.Campaign = &campaign
			}
		},
		func(out contractx.CampaignResponse) string {
			return fmt.Sprintf("planned %q over %d weeks", out.Campaign.Name, out.Campaign.DurationWeeks)
		},
	)
}

// planOf recovers the planner's view of a materialised campaign.
func planOf(c statex.Campaign) statex.CampaignPlan {
	return statex.CampaignPlan{
		Name:          c.Name,
		Objective:     c.Objective,
		CohortICP:     c.CohortRef,
		Summary:       c.Summary,
		DurationWeeks: c.DurationWeeks,
	}
}
