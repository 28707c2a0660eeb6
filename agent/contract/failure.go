package contract

import (
	"context"
	"errors"
	"fmt"
)

type FailureKind string

const (
	FailureTimeout           FailureKind = "timeout"
	FailureSchemaViolation   FailureKind = "schema_violation"
	FailureUpstreamError     FailureKind = "upstream_error"
	FailureBudgetExceeded    FailureKind = "budget_exceeded"
	FailureDependencySkipped FailureKind = "dependency_skipped"
	FailureDeadlineExceeded  FailureKind = "deadline_exceeded"
)

// AgentFailure is the terminal (or retryable) outcome of one agent invocation.
type AgentFailure struct {
	Kind      FailureKind `json:"kind"`
	Message   string      `json:"message"`
	Transient bool        `json:"transient,omitempty"`
	Attempts  int         `json:"attempts,omitempty"`
}

func (f *AgentFailure) Error() string {
	if f == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s", f.Kind, f.Message)
}

func (f *AgentFailure) Is(target error) bool {
	if f == nil {
		return false
	}
	switch f.Kind {
	case FailureTimeout, FailureDeadlineExceeded:
		return target == ErrTimeout
	case FailureSchemaViolation:
		return target == ErrSchemaViolation
	case FailureUpstreamError:
		return target == ErrUpstream
	case FailureBudgetExceeded:
		return target == ErrBudgetExceeded
	case FailureDependencySkipped:
		return target == ErrDependencySkipped
	}
	return false
}

// Retryable reports whether the retry policy may re-run the invocation.
func (f *AgentFailure) Retryable() bool {
	if f == nil {
		return false
	}
	switch f.Kind {
	case FailureTimeout:
		return true
	case FailureUpstreamError:
		return f.Transient
	default:
		return false
	}
}

func NewFailure(kind FailureKind, format string, args ...any) *AgentFailure {
	return &AgentFailure{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// FailureFrom classifies an arbitrary error into an AgentFailure.
// Unclassified errors are treated as transient upstream failures.
func FailureFrom(err error) *AgentFailure {
	if err == nil {
		return nil
	}
	var f *AgentFailure
	if errors.As(err, &f) {
		return f
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, ErrTimeout):
		return &AgentFailure{Kind: FailureTimeout, Message: err.Error()}
	case errors.Is(err, ErrBudgetExceeded):
		return &AgentFailure{Kind: FailureBudgetExceeded, Message: err.Error()}
	case errors.Is(err, ErrSchemaViolation), errors.Is(err, ErrValidation):
		return &AgentFailure{Kind: FailureSchemaViolation, Message: err.Error()}
	case errors.Is(err, context.Canceled):
		return &AgentFailure{Kind: FailureUpstreamError, Message: err.Error()}
	case errors.Is(err, ErrUpstream):
		return &AgentFailure{Kind: FailureUpstreamError, Message: err.Error(), Transient: IsTransient(err)}
	default:
		return &AgentFailure{Kind: FailureUpstreamError, Message: err.Error(), Transient: true}
	}
}

// Usage is the token accounting reported by the inference backend for one call.
type Usage struct {
	Model            string `json:"model,omitempty"`
	PromptTokens     int    `json:"prompt_tokens"`
	CompletionTokens int    `json:"completion_tokens"`
}

func (u Usage) Total() int {
	return u.PromptTokens + u.CompletionTokens
}

// Result is the tagged outcome of Agent.Run: exactly one of Value or Failure is meaningful.
type Result[T any] struct {
	Value    T
	Failure  *AgentFailure
	Usage    Usage
	Attempts int
}

func Ok[T any](v T, usage Usage) Result[T] {
	return Result[T]{Value: v, Usage: usage}
}

func Fail[T any](f *AgentFailure, usage Usage) Result[T] {
	return Result[T]{Failure: f, Usage: usage}
}

func (r Result[T]) OK() bool {
	return r.Failure == nil
}

// Unwrap converts the result to the conventional (value, error) pair.
func (r Result[T]) Unwrap() (T, error) {
	if r.Failure != nil {
		var zero T
		return zero, r.Failure
	}
	return r.Value, nil
}
