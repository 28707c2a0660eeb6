package llm

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	contractx "github.com/tanpawarit/Foundation-Campaign-Synthesis/agent/contract"
)

func testConfig() Config {
	return Config{
		Provider:                  ProviderOpenRouter,
		BaseURL:                   "https://openrouter.ai/api/v1",
		APIKey:                    "sk-test",
		Model:                     "base/model",
		Temperature:               0.4,
		HeavyModel:                "heavy/model",
		ClassificationModel:       "small/model",
		HeavyMaxTokens:            4000,
		ExtractionMaxTokens:       2500,
		ClassificationMaxTokens:   800,
		HeavyTimeout:              90 * time.Second,
		ExtractionTimeout:         45 * time.Second,
		ClassificationTimeout:     20 * time.Second,
		HeavyCostWeight:           1,
		ExtractionCostWeight:      0.4,
		ClassificationCostWeight:  0.1,
		HeavyTemperature:          0.7,
		ExtractionTemperature:     -1,
		ClassificationTemperature: 0,
	}
}

func TestRouterSelectTier(t *testing.T) {
	t.Parallel()

	router, err := NewRouter(testConfig())
	require.NoError(t, err)

	heavy, err := router.SelectTier(contractx.TaskHeavyReasoning)
	require.NoError(t, err)
	assert.Equal(t, "heavy/model", heavy.Model)
	assert.Equal(t, 4000, heavy.MaxTokens)
	assert.Equal(t, 90*time.Second, heavy.LatencyBudget)
	assert.InDelta(t, 0.7, heavy.Temperature, 1e-6)

	extraction, err := router.SelectTier(contractx.TaskStructuredExtraction)
	require.NoError(t, err)
	assert.Equal(t, "base/model", extraction.Model, "unset tier model falls back to default")
	assert.InDelta(t, 0.4, extraction.Temperature, 1e-6)

	classification, err := router.SelectTier(contractx.TaskClassification)
	require.NoError(t, err)
	assert.Equal(t, "small/model", classification.Model)
	assert.Zero(t, classification.Temperature)
	assert.Less(t, classification.CostWeight, heavy.CostWeight)
}

func TestRouterSelectTierIsDeterministic(t *testing.T) {
	t.Parallel()

	router, err := NewRouter(testConfig())
	require.NoError(t, err)

	first, err := router.SelectTier(contractx.TaskStructuredExtraction)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		again, err := router.SelectTier(contractx.TaskStructuredExtraction)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestRouterUnknownTaskClass(t *testing.T) {
	t.Parallel()

	router, err := NewRouter(testConfig())
	require.NoError(t, err)

	_, err = router.SelectTier(contractx.TaskClass("poetry"))
	require.ErrorIs(t, err, contractx.ErrUnknownTaskClass)
}

func TestRouterTiersStableOrder(t *testing.T) {
	t.Parallel()

	router, err := NewRouter(testConfig())
	require.NoError(t, err)

	tiers := router.Tiers()
	require.Len(t, tiers, 3)
	assert.Equal(t, string(contractx.TaskHeavyReasoning), tiers[0].Tier)
	assert.Equal(t, string(contractx.TaskStructuredExtraction), tiers[1].Tier)
	assert.Equal(t, string(contractx.TaskClassification), tiers[2].Tier)
}

func TestNewRouterRejectsInvalidConfig(t *testing.T) {
	t.Parallel()

	cases := map[string]func(*Config){
		"missing key":      func(c *Config) { c.APIKey = " " },
		"missing model":    func(c *Config) { c.Model = "" },
		"unknown provider": func(c *Config) { c.Provider = "carrier-pigeon" },
		"zero tokens":      func(c *Config) { c.ExtractionMaxTokens = 0 },
		"zero timeout":     func(c *Config) { c.ClassificationTimeout = 0 },
	}
	for name, mutate := range cases {
		mutate := mutate
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			cfg := testConfig()
			mutate(&cfg)
			_, err := NewRouter(cfg)
			require.ErrorIs(t, err, contractx.ErrValidation)
		})
	}
}

func TestOpenRouterForCarriesTierEnvelope(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	router, err := NewRouter(cfg)
	require.NoError(t, err)
	heavy, err := router.SelectTier(contractx.TaskHeavyReasoning)
	require.NoError(t, err)

	orCfg := cfg.OpenRouterFor(heavy)
	assert.Equal(t, "heavy/model", orCfg.Model)
	require.NotNil(t, orCfg.MaxCompletionToken)
	assert.Equal(t, 4000, *orCfg.MaxCompletionToken)
	assert.Equal(t, 90*time.Second, orCfg.Timeout)
}
