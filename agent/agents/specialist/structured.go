package specialist

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	contractx "github.com/tanpawarit/Foundation-Campaign-Synthesis/agent/contract"
)

// structuredAgent sends the JSON encoded input to the backend and decodes a single JSON
// object back. All seven synthesis agents are instances of it.
type structuredAgent[In, Out any] struct {
	name         string
	taskClass    contractx.TaskClass
	systemPrompt string
	backend      contractx.InferenceBackend

	validateIn  func(In) error
	normalize   func(*Out)
	crossCheck  func(In, Out) error
	validateOut func(Out) error
}

func (a *structuredAgent[In, Out]) Name() string                  { return a.name }
func (a *structuredAgent[In, Out]) TaskClass() contractx.TaskClass { return a.taskClass }

func (a *structuredAgent[In, Out]) ValidateInput(in In) error {
	if a.validateIn == nil {
		return nil
	}
	if err := a.validateIn(in); err != nil {
		return fmt.Errorf("%w: %s input: %v", contractx.ErrValidation, a.name, err)
	}
	return nil
}

func (a *structuredAgent[In, Out]) ValidateOutput(out Out) error {
	if a.validateOut == nil {
		return nil
	}
	if err := a.validateOut(out); err != nil {
		return fmt.Errorf("%w: %s output: %v", contractx.ErrSchemaViolation, a.name, err)
	}
	return nil
}

func (a *structuredAgent[In, Out]) Run(ctx context.Context, in In, tier contractx.TierProfile) contractx.Result[Out] {
	input, err := json.Marshal(in)
	if err != nil {
		return contractx.Fail[Out](contractx.NewFailure(contractx.FailureSchemaViolation, "%s: marshal input: %v", a.name, err), contractx.Usage{})
	}

	resp, err := a.backend.Infer(ctx, contractx.InferenceRequest{
		Agent:        a.name,
		SystemPrompt: a.systemPrompt,
		Input:        input,
		Tier:         tier,
	})
	if resp.Usage.Model == "" {
		resp.Usage.Model = tier.Model
	}
	if err != nil {
		return contractx.Fail[Out](contractx.FailureFrom(err), resp.Usage)
	}

	var out Out
	if err := decodeObject(resp.Content, &out); err != nil {
		return contractx.Fail[Out](contractx.NewFailure(contractx.FailureSchemaViolation, "%s: %v", a.name, err), resp.Usage)
	}
	if a.normalize != nil {
		a.normalize(&out)
	}
	if a.crossCheck != nil {
		if err := a.crossCheck(in, out); err != nil {
			return contractx.Fail[Out](contractx.NewFailure(contractx.FailureSchemaViolation, "%s: %v", a.name, err), resp.Usage)
		}
	}
	return contractx.Ok(out, resp.Usage)
}

// decodeObject extracts the outermost JSON object from model output. Models sometimes wrap
// the object in markdown fences or prose.
func decodeObject(raw []byte, dst any) error {
	body := bytes.TrimSpace(raw)
	if len(body) == 0 {
		return fmt.Errorf("empty model output")
	}
	if body[0] != '{' {
		start := bytes.IndexByte(body, '{')
		end := bytes.LastIndexByte(body, '}')
		if start < 0 || end <= start {
			return fmt.Errorf("model output is not a JSON object: %q", truncate(string(body), 80))
		}
		body = body[start : end+1]
	}
	if err := json.Unmarshal(body, dst); err != nil {
		return fmt.Errorf("decode model output: %v", err)
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

func trimAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, v := range in {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
