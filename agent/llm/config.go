package llm

import (
	"fmt"
	"strings"
	"time"

	contractx "github.com/tanpawarit/Foundation-Campaign-Synthesis/agent/contract"
	openrouterx "github.com/tanpawarit/Foundation-Campaign-Synthesis/pkg/openrouter"
)

const (
	ProviderOpenRouter = "openrouter"
	ProviderOpenAI     = "openai"
	ProviderGemini     = "gemini"
)

type Config struct {
	Provider    string  `envconfig:"PROVIDER" split_words:"true" default:"openrouter"`
	BaseURL     string  `envconfig:"BASE_URL" split_words:"true" default:"https://openrouter.ai/api/v1"`
	APIKey      string  `envconfig:"API_KEY" split_words:"true" required:"true"`
	Model       string  `envconfig:"MODEL" split_words:"true" required:"true"`
	Temperature float32 `envconfig:"TEMPERATURE" split_words:"true" default:"0.4"`
	SiteURL     string  `envconfig:"SITE_URL" split_words:"true"`
	SiteName    string  `envconfig:"SITE_NAME" split_words:"true"`

	// GeminiBaseURL overrides the Gemini API endpoint, e.g. for a proxy.
	GeminiBaseURL string `envconfig:"GEMINI_BASE_URL" split_words:"true"`

	HeavyModel          string `envconfig:"HEAVY_MODEL" split_words:"true"`
	ExtractionModel     string `envconfig:"EXTRACTION_MODEL" split_words:"true"`
	ClassificationModel string `envconfig:"CLASSIFICATION_MODEL" split_words:"true"`

	HeavyMaxTokens          int `envconfig:"HEAVY_MAX_TOKENS" split_words:"true" default:"4000"`
	ExtractionMaxTokens     int `envconfig:"EXTRACTION_MAX_TOKENS" split_words:"true" default:"2500"`
	ClassificationMaxTokens int `envconfig:"CLASSIFICATION_MAX_TOKENS" split_words:"true" default:"800"`

	HeavyTimeout          time.Duration `envconfig:"HEAVY_TIMEOUT" split_words:"true" default:"90s"`
	ExtractionTimeout     time.Duration `envconfig:"EXTRACTION_TIMEOUT" split_words:"true" default:"45s"`
	ClassificationTimeout time.Duration `envconfig:"CLASSIFICATION_TIMEOUT" split_words:"true" default:"20s"`

	HeavyCostWeight          float64 `envconfig:"HEAVY_COST_WEIGHT" split_words:"true" default:"1.0"`
	ExtractionCostWeight     float64 `envconfig:"EXTRACTION_COST_WEIGHT" split_words:"true" default:"0.4"`
	ClassificationCostWeight float64 `envconfig:"CLASSIFICATION_COST_WEIGHT" split_words:"true" default:"0.1"`

	// Negative means "use Temperature".
	HeavyTemperature          float32 `envconfig:"HEAVY_TEMPERATURE" split_words:"true" default:"-1"`
	ExtractionTemperature     float32 `envconfig:"EXTRACTION_TEMPERATURE" split_words:"true" default:"-1"`
	ClassificationTemperature float32 `envconfig:"CLASSIFICATION_TEMPERATURE" split_words:"true" default:"-1"`
}

func (c Config) Validate() error {
	switch strings.ToLower(strings.TrimSpace(c.Provider)) {
	case ProviderOpenRouter, ProviderOpenAI, ProviderGemini:
	default:
		return fmt.Errorf("%w: unsupported llm provider %q", contractx.ErrValidation, c.Provider)
	}
	if strings.TrimSpace(c.APIKey) == "" {
		return fmt.Errorf("%w: llm api key is required", contractx.ErrValidation)
	}
	if strings.TrimSpace(c.Model) == "" {
		return fmt.Errorf("%w: default model is required", contractx.ErrValidation)
	}
	for name, v := range map[string]int{
		"heavy":          c.HeavyMaxTokens,
		"extraction":     c.ExtractionMaxTokens,
		"classification": c.ClassificationMaxTokens,
	} {
		if v <= 0 {
			return fmt.Errorf("%w: %s max tokens must be > 0", contractx.ErrValidation, name)
		}
	}
	for name, v := range map[string]time.Duration{
		"heavy":          c.HeavyTimeout,
		"extraction":     c.ExtractionTimeout,
		"classification": c.ClassificationTimeout,
	} {
		if v <= 0 {
			return fmt.Errorf("%w: %s timeout must be > 0", contractx.ErrValidation, name)
		}
	}
	return nil
}

func (c Config) profileFor(class contractx.TaskClass) (contractx.TierProfile, bool) {
	pick := func(model string, temp float32) (string, float32) {
		m := strings.TrimSpace(c.Model)
		if v := strings.TrimSpace(model); v != "" {
			m = v
		}
		t := c.Temperature
		if temp >= 0 {
			t = temp
		}
		return m, t
	}

	switch class {
	case contractx.TaskHeavyReasoning:
		model, temp := pick(c.HeavyModel, c.HeavyTemperature)
		return contractx.TierProfile{
			Tier:          string(class),
			Model:         model,
			MaxTokens:     c.HeavyMaxTokens,
			LatencyBudget: c.HeavyTimeout,
			CostWeight:    c.HeavyCostWeight,
			Temperature:   temp,
		}, true
	case contractx.TaskStructuredExtraction:
		model, temp := pick(c.ExtractionModel, c.ExtractionTemperature)
		return contractx.TierProfile{
			Tier:          string(class),
			Model:         model,
			MaxTokens:     c.ExtractionMaxTokens,
			LatencyBudget: c.ExtractionTimeout,
			CostWeight:    c.ExtractionCostWeight,
			Temperature:   temp,
		}, true
	case contractx.TaskClassification:
		model, temp := pick(c.ClassificationModel, c.ClassificationTemperature)
		return contractx.TierProfile{
			Tier:          string(class),
			Model:         model,
			MaxTokens:     c.ClassificationMaxTokens,
			LatencyBudget: c.ClassificationTimeout,
			CostWeight:    c.ClassificationCostWeight,
			Temperature:   temp,
		}, true
	}
	return contractx.TierProfile{}, false
}

// OpenRouterFor builds the chat model configuration for one tier.
func (c Config) OpenRouterFor(tier contractx.TierProfile) openrouterx.Config {
	maxCompletionToken := tier.MaxTokens
	return openrouterx.Config{
		BaseURL:            strings.TrimSpace(c.BaseURL),
		APIKey:             strings.TrimSpace(c.APIKey),
		Model:              tier.Model,
		MaxCompletionToken: &maxCompletionToken,
		Temperature:        tier.Temperature,
		Timeout:            tier.LatencyBudget,
		SiteURL:            strings.TrimSpace(c.SiteURL),
		SiteName:           strings.TrimSpace(c.SiteName),
	}
}
