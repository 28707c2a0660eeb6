package synthesisnode

import (
	contractx "github.com/tanpawarit/Foundation-Campaign-Synthesis/agent/contract"
)

// DefaultGraph is the full synthesis graph in declaration order.
//
//	icp_builder -> barrier_classifier -> strategy_profile
//	icp_builder -> positioning
//	icp_builder ~> market_sizing                          (optional)
//	positioning, strategy_profile, ~market_sizing -> campaign_planner
//	icp_builder, positioning, campaign_planner -> move_assembler
//	move_assembler, positioning -> asset_drafter
func DefaultGraph(models contractx.Registry) []Step {
	return []Step{
		ICPBuilder(models.ICPBuilder()),
		BarrierClassifier(models.BarrierClassifier()),
		StrategyProfile(models.StrategySynthesizer()),
		Positioning(models.PositioningComposer()),
		MarketSizing(),
		CampaignPlanner(models.CampaignPlanner()),
		MoveAssembler(models.MoveAssembler()),
		AssetDrafter(models.AssetDrafter()),
	}
}
