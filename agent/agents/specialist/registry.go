package specialist

import (
	"fmt"
	"strings"

	contractx "github.com/tanpawarit/Foundation-Campaign-Synthesis/agent/contract"
	promptx "github.com/tanpawarit/Foundation-Campaign-Synthesis/agent/prompt"
)

type registryImpl struct {
	icpBuilder  contractx.Agent[contractx.ICPRequest, contractx.ICPResponse]
	barriers    contractx.Agent[contractx.BarrierRequest, contractx.BarrierResponse]
	strategy    contractx.Agent[contractx.StrategyRequest, contractx.StrategyResponse]
	positioning contractx.Agent[contractx.PositioningRequest, contractx.PositioningResponse]
	campaign    contractx.Agent[contractx.CampaignRequest, contractx.CampaignResponse]
	moves       contractx.Agent[contractx.MoveRequest, contractx.MoveResponse]
	assets      contractx.Agent[contractx.AssetRequest, contractx.AssetResponse]
}

func (r *registryImpl) ICPBuilder() contractx.Agent[contractx.ICPRequest, contractx.ICPResponse] {
	return r.icpBuilder
}

func (r *registryImpl) BarrierClassifier() contractx.Agent[contractx.BarrierRequest, contractx.BarrierResponse] {
	return r.barriers
}

func (r *registryImpl) StrategySynthesizer() contractx.Agent[contractx.StrategyRequest, contractx.StrategyResponse] {
	return r.strategy
}

func (r *registryImpl) PositioningComposer() contractx.Agent[contractx.PositioningRequest, contractx.PositioningResponse] {
	return r.positioning
}

func (r *registryImpl) CampaignPlanner() contractx.Agent[contractx.CampaignRequest, contractx.CampaignResponse] {
	return r.campaign
}

func (r *registryImpl) MoveAssembler() contractx.Agent[contractx.MoveRequest, contractx.MoveResponse] {
	return r.moves
}

func (r *registryImpl) AssetDrafter() contractx.Agent[contractx.AssetRequest, contractx.AssetResponse] {
	return r.assets
}

// NewRegistry builds every synthesis agent over one inference backend with the embedded prompts.
func NewRegistry(backend contractx.InferenceBackend) (contractx.Registry, error) {
	return NewRegistryWithPrompts(backend, promptx.LoadPromptSet())
}

func NewRegistryWithPrompts(backend contractx.InferenceBackend, prompts promptx.PromptSet) (contractx.Registry, error) {
	if backend == nil {
		return nil, fmt.Errorf("%w: inference backend is required", contractx.ErrValidation)
	}
	if missing := prompts.Missing(); len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s", contractx.ErrPromptMissing, strings.Join(missing, ", "))
	}

	return &registryImpl{
		icpBuilder:  newICPBuilder(backend, prompts.ICPBuilder),
		barriers:    newBarrierClassifier(backend, prompts.BarrierClassifier),
		strategy:    newStrategySynthesizer(backend, prompts.StrategyProfile),
		positioning: newPositioningComposer(backend, prompts.Positioning),
		campaign:    newCampaignPlanner(backend, prompts.CampaignPlanner),
		moves:       newMoveAssembler(backend, prompts.MoveAssembler),
		assets:      newAssetDrafter(backend, prompts.AssetDrafter),
	}, nil
}
