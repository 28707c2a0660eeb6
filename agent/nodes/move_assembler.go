package synthesisnode

import (
	"fmt"

	specialistx "github.com/tanpawarit/Foundation-Campaign-Synthesis/agent/agents/specialist"
	contractx "github.com/tanpawarit/Foundation-Campaign-Synthesis/agent/contract"
	statex "github.com/tanpawarit/Foundation-Campaign-Synthesis/agent/state"
)

func MoveAssembler(agent contractx.Agent[contractx.MoveRequest, contractx.MoveResponse]) Step {
	return agentStep(agent,
		[]string{specialistx.NameICPBuilder, specialistx.NamePositioning, specialistx.NameCampaignPlanner},
		nil,
		func(_ Env, view statex.View) contractx.MoveRequest {
			req := contractx.MoveRequest{Foundation: view.Foundation, ICPs: view.ICPs}
			if view.Positioning != nil {
				req.Positioning = *view.Positioning
			}
			if view.Campaign != nil {
				req.Campaign = planOf(*view.Campaign)
			}
			return req
		},
		func(env Env, view statex.View, out contractx.MoveResponse) Merge {
			campaignID := ""
			if view.Campaign != nil {
				campaignID = view.Campaign.ID
			}
			moves := make([]statex.Move, 0, len(out.Moves))
			for i, plan := range out.Moves {
				moves = append(moves, statex.NewMove(env.NewID(), campaignID, i+1, plan))
			}
			return func(st *statex.SynthesisState) {
				st.Moves = append(st.Moves, moves...)
			}
		},
		func(out contractx.MoveResponse) string {
			return fmt.Sprintf("assembled %d moves", len(out.Moves))
		},
	)
}

// plansOf recovers move plans from materialised moves.
func plansOf(moves []statex.Move) []statex.MovePlan {
	out := make([]statex.MovePlan, 0, len(moves))
	for _, mv := range moves {
		checklist := make([]string, 0, len(mv.Checklist))
		for _, item := range mv.Checklist {
			checklist = append(checklist, item.Item)
		}
		out = append(out, statex.MovePlan{
			Name:               mv.Name,
			Channel:            mv.Channel,
			DurationDays:       mv.DurationDays,
			DailyEffortMinutes: mv.DailyEffortMinutes,
			Checklist:          checklist,
		})
	}
	return out
}
