package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	einomodel "github.com/cloudwego/eino/components/model"
	einoprompt "github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
	contractx "github.com/tanpawarit/Foundation-Campaign-Synthesis/agent/contract"
)

const finishReasonLength = "length"

// ChatModelFactory builds the chat model for one tier.
type ChatModelFactory func(ctx context.Context, tier contractx.TierProfile) (einomodel.BaseChatModel, error)

// EinoBackend runs each request through a compiled prompt->model graph, one graph per model.
type EinoBackend struct {
	factory ChatModelFactory

	mu     sync.Mutex
	graphs map[string]compose.Runnable[map[string]any, *schema.Message]
}

var _ contractx.InferenceBackend = (*EinoBackend)(nil)

func NewEinoBackend(factory ChatModelFactory) *EinoBackend {
	return &EinoBackend{
		factory: factory,
		graphs:  make(map[string]compose.Runnable[map[string]any, *schema.Message]),
	}
}

// OpenRouterFactory creates eino openai chat models against the configured OpenRouter endpoint.
func OpenRouterFactory(cfg Config) ChatModelFactory {
	return func(ctx context.Context, tier contractx.TierProfile) (einomodel.BaseChatModel, error) {
		orCfg := cfg.OpenRouterFor(tier)
		return orCfg.New(ctx)
	}
}

func (b *EinoBackend) Infer(ctx context.Context, req contractx.InferenceRequest) (contractx.InferenceResponse, error) {
	runner, err := b.runnerFor(ctx, req.Tier)
	if err != nil {
		return contractx.InferenceResponse{}, err
	}

	msg, err := runner.Invoke(ctx, map[string]any{
		"system": req.SystemPrompt,
		"input":  string(req.Input),
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return contractx.InferenceResponse{}, ctxErr
		}
		return contractx.InferenceResponse{}, contractx.Transient(fmt.Errorf("%w: %s: %v", contractx.ErrUpstream, req.Agent, err))
	}
	if msg == nil {
		return contractx.InferenceResponse{}, contractx.Transient(fmt.Errorf("%w: %s: empty model message", contractx.ErrUpstream, req.Agent))
	}

	usage := contractx.Usage{Model: req.Tier.Model}
	if meta := msg.ResponseMeta; meta != nil {
		if meta.Usage != nil {
			usage.PromptTokens = meta.Usage.PromptTokens
			usage.CompletionTokens = meta.Usage.CompletionTokens
		}
		if meta.FinishReason == finishReasonLength {
			return contractx.InferenceResponse{Usage: usage}, fmt.Errorf("%w: %s hit max tokens %d", contractx.ErrBudgetExceeded, req.Agent, req.Tier.MaxTokens)
		}
	}

	return contractx.InferenceResponse{
		Content: []byte(strings.TrimSpace(msg.Content)),
		Usage:   usage,
	}, nil
}

func (b *EinoBackend) runnerFor(ctx context.Context, tier contractx.TierProfile) (compose.Runnable[map[string]any, *schema.Message], error) {
	key := fmt.Sprintf("%s|%d|%.3f", tier.Model, tier.MaxTokens, tier.Temperature)

	b.mu.Lock()
	defer b.mu.Unlock()
	if runner, ok := b.graphs[key]; ok {
		return runner, nil
	}
	if b.factory == nil {
		return nil, fmt.Errorf("%w: chat model factory is nil", contractx.ErrModelInvoke)
	}

	chatModel, err := b.factory(ctx, tier)
	if err != nil {
		return nil, fmt.Errorf("%w: build chat model %s: %v", contractx.ErrModelInvoke, tier.Model, err)
	}
	runner, err := compileInferenceGraph(ctx, chatModel, "synthesis."+tier.Tier)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", contractx.ErrModelInvoke, err)
	}
	b.graphs[key] = runner
	return runner, nil
}

func compileInferenceGraph(
	ctx context.Context,
	chatModel einomodel.BaseChatModel,
	graphName string,
) (compose.Runnable[map[string]any, *schema.Message], error) {
	if chatModel == nil {
		return nil, errors.New("chat model is nil")
	}
	template := einoprompt.FromMessages(
		schema.FString,
		schema.SystemMessage("{system}"),
		schema.UserMessage("{input}"),
	)

	graph := compose.NewGraph[map[string]any, *schema.Message]()
	if err := graph.AddChatTemplateNode("prompt", template); err != nil {
		return nil, fmt.Errorf("add prompt node: %w", err)
	}
	if err := graph.AddChatModelNode("model", chatModel); err != nil {
		return nil, fmt.Errorf("add model node: %w", err)
	}
	if err := graph.AddEdge(compose.START, "prompt"); err != nil {
		return nil, fmt.Errorf("add edge start->prompt: %w", err)
	}
	if err := graph.AddEdge("prompt", "model"); err != nil {
		return nil, fmt.Errorf("add edge prompt->model: %w", err)
	}
	if err := graph.AddEdge("model", compose.END); err != nil {
		return nil, fmt.Errorf("add edge model->end: %w", err)
	}

	runner, err := graph.Compile(ctx, compose.WithGraphName(graphName))
	if err != nil {
		return nil, fmt.Errorf("compile inference graph: %w", err)
	}
	return runner, nil
}
