package llm

import (
	"fmt"

	contractx "github.com/tanpawarit/Foundation-Campaign-Synthesis/agent/contract"
)

// Router maps task classes to tier profiles. Profiles are resolved once at construction;
// SelectTier never falls back to a default tier.
type Router struct {
	tiers map[contractx.TaskClass]contractx.TierProfile
}

var _ contractx.TierRouter = (*Router)(nil)

var taskClasses = []contractx.TaskClass{
	contractx.TaskHeavyReasoning,
	contractx.TaskStructuredExtraction,
	contractx.TaskClassification,
}

func NewRouter(cfg Config) (*Router, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	tiers := make(map[contractx.TaskClass]contractx.TierProfile, len(taskClasses))
	for _, class := range taskClasses {
		profile, ok := cfg.profileFor(class)
		if !ok {
			return nil, fmt.Errorf("%w: %s", contractx.ErrUnknownTaskClass, class)
		}
		tiers[class] = profile
	}
	return &Router{tiers: tiers}, nil
}

// NewStaticRouter builds a router from explicit profiles.
func NewStaticRouter(profiles map[contractx.TaskClass]contractx.TierProfile) *Router {
	tiers := make(map[contractx.TaskClass]contractx.TierProfile, len(profiles))
	for k, v := range profiles {
		tiers[k] = v
	}
	return &Router{tiers: tiers}
}

func (r *Router) SelectTier(class contractx.TaskClass) (contractx.TierProfile, error) {
	profile, ok := r.tiers[class]
	if !ok {
		return contractx.TierProfile{}, fmt.Errorf("%w: %q", contractx.ErrUnknownTaskClass, class)
	}
	return profile, nil
}

// Tiers returns every configured profile in a stable order.
func (r *Router) Tiers() []contractx.TierProfile {
	out := make([]contractx.TierProfile, 0, len(r.tiers))
	for _, class := range taskClasses {
		if p, ok := r.tiers[class]; ok {
			out = append(out, p)
		}
	}
	return out
}
