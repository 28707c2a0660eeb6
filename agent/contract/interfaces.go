package contract

import (
	"context"

	statex "github.com/tanpawarit/Foundation-Campaign-Synthesis/agent/state"
)

// Agent is the uniform capability every specialized agent implements.
// Run must not touch shared state; it returns a value the orchestrator merges.
type Agent[In, Out any] interface {
	Name() string
	TaskClass() TaskClass
	ValidateInput(in In) error
	Run(ctx context.Context, in In, tier TierProfile) Result[Out]
	ValidateOutput(out Out) error
}

type Registry interface {
	ICPBuilder() Agent[ICPRequest, ICPResponse]
	BarrierClassifier() Agent[BarrierRequest, BarrierResponse]
	StrategySynthesizer() Agent[StrategyRequest, StrategyResponse]
	PositioningComposer() Agent[PositioningRequest, PositioningResponse]
	CampaignPlanner() Agent[CampaignRequest, CampaignResponse]
	MoveAssembler() Agent[MoveRequest, MoveResponse]
	AssetDrafter() Agent[AssetRequest, AssetResponse]
}

type TierRouter interface {
	SelectTier(class TaskClass) (TierProfile, error)
}

type InferenceBackend interface {
	Infer(ctx context.Context, req InferenceRequest) (InferenceResponse, error)
}

// InferenceRecorder receives append-only inference audit records.
type InferenceRecorder interface {
	Record(entry statex.InferenceLog)
}

// PersistenceAdapter is the durable store for campaigns, moves and ICPs.
type PersistenceAdapter interface {
	InsertCampaign(ctx context.Context, c statex.Campaign) error
	InsertMoves(ctx context.Context, moves []statex.Move) error
	UpdateCampaign(ctx context.Context, c statex.Campaign) error
	DeleteMove(ctx context.Context, id string) error
	FetchMovesByCampaign(ctx context.Context, campaignID string) ([]statex.Move, error)

	FetchCampaign(ctx context.Context, id string) (statex.Campaign, error)
	UpdateMove(ctx context.Context, m statex.Move) error
	DeleteCampaign(ctx context.Context, id string) error
	InsertICPs(ctx context.Context, runID string, icps []statex.DerivedICP) error
	InsertInferenceLogs(ctx context.Context, logs []statex.InferenceLog) error
}

// CampaignLocker is implemented by adapters that can serialize writers of one campaign across
// processes. Writes made through tx inside fn commit together or not at all.
type CampaignLocker interface {
	WithCampaign(ctx context.Context, campaignID string, fn func(ctx context.Context, tx PersistenceAdapter) error) error
}
