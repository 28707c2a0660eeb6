package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	contractx "github.com/tanpawarit/Foundation-Campaign-Synthesis/agent/contract"
	genai "google.golang.org/genai"
)

// GeminiBackend calls the Gemini API with JSON response mode.
type GeminiBackend struct {
	cli *genai.Client
}

var _ contractx.InferenceBackend = (*GeminiBackend)(nil)

func NewGeminiBackend(ctx context.Context, cfg Config) (*GeminiBackend, error) {
	cli, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:      strings.TrimSpace(cfg.APIKey),
		Backend:     genai.BackendGeminiAPI,
		HTTPOptions: genai.HTTPOptions{BaseURL: strings.TrimSpace(cfg.GeminiBaseURL)},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: create gemini client: %v", contractx.ErrModelInvoke, err)
	}
	return &GeminiBackend{cli: cli}, nil
}

func (g *GeminiBackend) Infer(ctx context.Context, req contractx.InferenceRequest) (contractx.InferenceResponse, error) {
	temperature := req.Tier.Temperature
	conf := &genai.GenerateContentConfig{
		ResponseMIMEType:  "application/json",
		Temperature:       &temperature,
		SystemInstruction: &genai.Content{Parts: []*genai.Part{{Text: req.SystemPrompt}}},
	}
	if req.Tier.MaxTokens > 0 {
		conf.MaxOutputTokens = int32(req.Tier.MaxTokens)
	}

	resp, err := g.cli.Models.GenerateContent(ctx, req.Tier.Model,
		[]*genai.Content{{Role: "user", Parts: []*genai.Part{{Text: string(req.Input)}}}},
		conf,
	)
	if err != nil {
		return contractx.InferenceResponse{}, classifyGeminiError(ctx, req.Agent, err)
	}

	usage := contractx.Usage{Model: req.Tier.Model}
	if resp.UsageMetadata != nil {
		usage.PromptTokens = int(resp.UsageMetadata.PromptTokenCount)
		usage.CompletionTokens = int(resp.UsageMetadata.CandidatesTokenCount)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return contractx.InferenceResponse{Usage: usage}, contractx.Transient(fmt.Errorf("%w: %s: empty candidate", contractx.ErrUpstream, req.Agent))
	}
	if resp.Candidates[0].FinishReason == genai.FinishReasonMaxTokens {
		return contractx.InferenceResponse{Usage: usage}, fmt.Errorf("%w: %s hit max tokens %d", contractx.ErrBudgetExceeded, req.Agent, req.Tier.MaxTokens)
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if part != nil {
			sb.WriteString(part.Text)
		}
	}
	return contractx.InferenceResponse{
		Content: []byte(strings.TrimSpace(sb.String())),
		Usage:   usage,
	}, nil
}

func classifyGeminiError(ctx context.Context, agent string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		wrapped := fmt.Errorf("%w: %s: status %d: %v", contractx.ErrUpstream, agent, apiErr.Code, err)
		if retryableStatus(apiErr.Code) {
			return contractx.Transient(wrapped)
		}
		return wrapped
	}
	return contractx.Transient(fmt.Errorf("%w: %s: %v", contractx.ErrUpstream, agent, err))
}
