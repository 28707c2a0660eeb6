package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/shared"
	contractx "github.com/tanpawarit/Foundation-Campaign-Synthesis/agent/contract"
	openrouterx "github.com/tanpawarit/Foundation-Campaign-Synthesis/pkg/openrouter"
)

// OpenAIBackend talks to any OpenAI-compatible chat completions endpoint directly.
type OpenAIBackend struct {
	client *openai.Client
}

var _ contractx.InferenceBackend = (*OpenAIBackend)(nil)

func NewOpenAIBackend(cfg Config) (*OpenAIBackend, error) {
	client := openrouterx.NewClient(openrouterx.Config{
		BaseURL:  cfg.BaseURL,
		APIKey:   cfg.APIKey,
		SiteURL:  cfg.SiteURL,
		SiteName: cfg.SiteName,
	})
	if client == nil {
		return nil, fmt.Errorf("%w: openai client requires an api key", contractx.ErrValidation)
	}
	return &OpenAIBackend{client: client}, nil
}

func (b *OpenAIBackend) Infer(ctx context.Context, req contractx.InferenceRequest) (contractx.InferenceResponse, error) {
	params := openai.ChatCompletionNewParams{
		Model: openai.ChatModel(req.Tier.Model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(req.SystemPrompt),
			openai.UserMessage(string(req.Input)),
		},
		Temperature: openai.Float(float64(req.Tier.Temperature)),
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{},
		},
	}
	if req.Tier.MaxTokens > 0 {
		params.MaxCompletionTokens = openai.Int(int64(req.Tier.MaxTokens))
	}

	resp, err := b.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return contractx.InferenceResponse{}, classifyOpenAIError(ctx, req.Agent, err)
	}

	usage := contractx.Usage{
		Model:            req.Tier.Model,
		PromptTokens:     int(resp.Usage.PromptTokens),
		CompletionTokens: int(resp.Usage.CompletionTokens),
	}
	if len(resp.Choices) == 0 {
		return contractx.InferenceResponse{Usage: usage}, contractx.Transient(fmt.Errorf("%w: %s: no choices returned", contractx.ErrUpstream, req.Agent))
	}
	choice := resp.Choices[0]
	if choice.FinishReason == finishReasonLength {
		return contractx.InferenceResponse{Usage: usage}, fmt.Errorf("%w: %s hit max tokens %d", contractx.ErrBudgetExceeded, req.Agent, req.Tier.MaxTokens)
	}

	return contractx.InferenceResponse{
		Content: []byte(strings.TrimSpace(choice.Message.Content)),
		Usage:   usage,
	}, nil
}

func classifyOpenAIError(ctx context.Context, agent string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		wrapped := fmt.Errorf("%w: %s: status %d: %v", contractx.ErrUpstream, agent, apiErr.StatusCode, err)
		if retryableStatus(apiErr.StatusCode) {
			return contractx.Transient(wrapped)
		}
		return wrapped
	}
	// network level failure
	return contractx.Transient(fmt.Errorf("%w: %s: %v", contractx.ErrUpstream, agent, err))
}

func retryableStatus(code int) bool {
	return code == http.StatusTooManyRequests || code == http.StatusRequestTimeout || code >= http.StatusInternalServerError
}
