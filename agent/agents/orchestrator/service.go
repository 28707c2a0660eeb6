package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	contractx "github.com/tanpawarit/Foundation-Campaign-Synthesis/agent/contract"
	nodex "github.com/tanpawarit/Foundation-Campaign-Synthesis/agent/nodes"
	statex "github.com/tanpawarit/Foundation-Campaign-Synthesis/agent/state"
)

const persistNode = "persist"

// Config is loaded with the SYNTHESIS prefix.
type Config struct {
	MaxParallel  int           `envconfig:"MAX_PARALLEL" split_words:"true" default:"4"`
	RunTimeout   time.Duration `envconfig:"RUN_TIMEOUT" split_words:"true" default:"5m"`
	MaxRetries   int           `envconfig:"MAX_RETRIES" split_words:"true" default:"2"`
	RetryBackoff time.Duration `envconfig:"RETRY_BACKOFF" split_words:"true" default:"250ms"`
}

// Options maps the loaded config onto orchestrator options.
func (c Config) Options() Options {
	return Options{
		MaxParallel: c.MaxParallel,
		RunTimeout:  c.RunTimeout,
		Retry:       &contractx.RetryPolicy{MaxRetries: c.MaxRetries, Backoff: c.RetryBackoff},
	}
}

type Options struct {
	// MaxParallel bounds concurrently running steps. Zero or less means one per step.
	MaxParallel int
	// RunTimeout is the overall deadline. Steps not started by then are skipped.
	RunTimeout time.Duration
	// Retry overrides the default retry policy when non-nil.
	Retry *contractx.RetryPolicy

	Recorder    contractx.InferenceRecorder
	Persistence contractx.PersistenceAdapter
	RunStore    statex.RunStore

	// Steps replaces the default graph. Used by tests and custom pipelines.
	Steps []nodex.Step

	Now   func() time.Time
	NewID func() string
}

type Orchestrator struct {
	steps []nodex.Step
	tiers map[string]contractx.TierProfile

	maxParallel int
	runTimeout  time.Duration
	retry       contractx.RetryPolicy

	recorder    contractx.InferenceRecorder
	persistence contractx.PersistenceAdapter
	runStore    statex.RunStore

	now   func() time.Time
	newID func() string
}

func New(models contractx.Registry, router contractx.TierRouter, opts Options) (*Orchestrator, error) {
	if router == nil {
		return nil, errors.New("tier router is required")
	}
	steps := opts.Steps
	if steps == nil {
		if models == nil {
			return nil, errors.New("model registry is required")
		}
		steps = nodex.DefaultGraph(models)
	}

	ordered, err := plan(steps)
	if err != nil {
		return nil, err
	}

	tiers := make(map[string]contractx.TierProfile, len(ordered))
	for _, s := range ordered {
		if s.Deterministic() {
			continue
		}
		tier, err := router.SelectTier(s.TaskClass)
		if err != nil {
			return nil, fmt.Errorf("resolve tier for %s: %w", s.Name, err)
		}
		tiers[s.Name] = tier
	}

	o := &Orchestrator{
		steps:       ordered,
		tiers:       tiers,
		maxParallel: opts.MaxParallel,
		runTimeout:  opts.RunTimeout,
		retry:       contractx.DefaultRetryPolicy(),
		recorder:    opts.Recorder,
		persistence: opts.Persistence,
		runStore:    opts.RunStore,
		now:         opts.Now,
		newID:       opts.NewID,
	}
	if opts.Retry != nil {
		o.retry = *opts.Retry
	}
	if o.maxParallel <= 0 {
		o.maxParallel = len(ordered)
	}
	if o.now == nil {
		o.now = time.Now
	}
	if o.newID == nil {
		o.newID = uuid.NewString
	}
	return o, nil
}

// Synthesize runs the synthesis graph for one foundation. The only error it returns is a
// foundation validation error; node failures are reported in the returned state.
func (o *Orchestrator) Synthesize(ctx context.Context, foundation statex.FoundationData) (*statex.SynthesisState, error) {
	if err := foundation.Validate(); err != nil {
		return nil, err
	}

	runID := o.newID()
	st := statex.NewSynthesisState(runID, foundation, o.now())
	logger := log.With().Str("run_id", runID).Logger()
	logger.Info().Int("steps", len(o.steps)).Msg("synthesis started")

	rec := &runRecorder{next: o.recorder}
	r := &run{
		o:        o,
		st:       st,
		recorder: rec,
		done:     make(map[string]chan struct{}, len(o.steps)),
		failed:   make(map[string]bool, len(o.steps)),
	}
	for _, s := range o.steps {
		r.done[s.Name] = make(chan struct{})
	}

	var expired chan struct{}
	if o.runTimeout > 0 {
		expired = make(chan struct{})
		timer := time.AfterFunc(o.runTimeout, func() { close(expired) })
		defer timer.Stop()
	}
	r.expired = expired

	g := new(errgroup.Group)
	g.SetLimit(o.maxParallel)
	for _, step := range o.steps {
		g.Go(func() error {
			defer close(r.done[step.Name])
			r.execute(ctx, step)
			return nil
		})
	}
	_ = g.Wait()

	st.Inference = rec.entries()
	o.persist(ctx, st)
	st.FinishedAt = o.now().UTC()

	if o.runStore != nil {
		if err := o.runStore.Save(ctx, st); err != nil {
			logger.Warn().Err(err).Msg("run snapshot not saved")
			st.Errors = append(st.Errors, statex.SynthesisError{
				Node:    persistNode,
				Kind:    string(contractx.FailureUpstreamError),
				Message: fmt.Sprintf("save run snapshot: %v", err),
			})
		}
	}

	logger.Info().
		Int("errors", len(st.Errors)).
		Dur("elapsed", st.FinishedAt.Sub(st.StartedAt)).
		Msg("synthesis finished")
	return st, nil
}

type run struct {
	o        *Orchestrator
	recorder *runRecorder
	expired  <-chan struct{}
	done     map[string]chan struct{}

	mu     sync.Mutex
	st     *statex.SynthesisState
	failed map[string]bool
}

func (r *run) execute(ctx context.Context, step nodex.Step) {
	for _, dep := range step.Upstreams() {
		<-r.done[dep]
	}

	r.mu.Lock()
	var blocked string
	for _, dep := range step.Requires {
		if r.failed[dep] {
			blocked = dep
			break
		}
	}
	if blocked != "" {
		r.skip(step, statex.StepSkipped, contractx.FailureDependencySkipped,
			fmt.Sprintf("required step %s did not succeed", blocked))
		r.mu.Unlock()
		return
	}
	if r.pastDeadline(ctx) {
		r.skip(step, statex.StepDeadline, contractx.FailureDeadlineExceeded,
			"run deadline passed before the step started")
		r.mu.Unlock()
		return
	}
	view := r.st.View()
	r.mu.Unlock()

	env := nodex.Env{
		Tier: r.o.tiers[step.Name],
		Invoke: contractx.InvokeOptions{
			RunID:    view.RunID,
			Retry:    r.o.retry,
			Recorder: r.recorder,
			Now:      r.o.now,
		},
		NewID: r.o.newID,
		Now:   r.o.now,
	}

	log.Debug().Str("run_id", view.RunID).Str("node", step.Name).Msg("step started")
	started := r.o.now()
	out := step.Run(ctx, env, view)
	finished := r.o.now()

	r.mu.Lock()
	defer r.mu.Unlock()

	record := statex.StepRecord{
		Node:       step.Name,
		Attempts:   out.Attempts,
		Duration:   finished.Sub(started),
		FinishedAt: finished.UTC(),
	}
	if out.Failure != nil {
		record.Outcome = statex.StepFailed
		r.failed[step.Name] = true
		r.st.Steps = append(r.st.Steps, record)
		r.st.Errors = append(r.st.Errors, statex.SynthesisError{
			Node:     step.Name,
			Kind:     string(out.Failure.Kind),
			Message:  out.Failure.Message,
			Attempts: out.Failure.Attempts,
		})
		r.st.Status = append(r.st.Status, fmt.Sprintf("%s failed: %s", step.Name, out.Failure.Kind))
		log.Warn().
			Str("run_id", r.st.RunID).
			Str("node", step.Name).
			Str("kind", string(out.Failure.Kind)).
			Int("attempts", out.Failure.Attempts).
			Msg(out.Failure.Message)
		return
	}

	if out.Merge != nil {
		out.Merge(r.st)
	}
	record.Outcome = statex.StepSucceeded
	r.st.Steps = append(r.st.Steps, record)
	line := step.Name + " completed"
	if out.Summary != "" {
		line += ": " + out.Summary
	}
	r.st.Status = append(r.st.Status, line)
	log.Info().
		Str("run_id", r.st.RunID).
		Str("node", step.Name).
		Dur("took", record.Duration).
		Msg("step completed")
}

// skip must be called with r.mu held.
func (r *run) skip(step nodex.Step, outcome statex.StepOutcome, kind contractx.FailureKind, msg string) {
	now := r.o.now()
	r.failed[step.Name] = true
	r.st.Steps = append(r.st.Steps, statex.StepRecord{
		Node:       step.Name,
		Outcome:    outcome,
		FinishedAt: now.UTC(),
	})
	r.st.Errors = append(r.st.Errors, statex.SynthesisError{
		Node:    step.Name,
		Kind:    string(kind),
		Message: msg,
	})
	log.Info().Str("run_id", r.st.RunID).Str("node", step.Name).Str("outcome", string(outcome)).Msg(msg)
}

func (r *run) pastDeadline(ctx context.Context) bool {
	if ctx.Err() != nil {
		return true
	}
	if r.expired == nil {
		return false
	}
	select {
	case <-r.expired:
		return true
	default:
		return false
	}
}

// persist hands the finished artifacts to the persistence adapter. Moves are only written
// once their campaign is.
func (o *Orchestrator) persist(ctx context.Context, st *statex.SynthesisState) {
	if o.persistence == nil {
		return
	}
	fail := func(what string, err error) {
		log.Error().Err(err).Str("run_id", st.RunID).Str("write", what).Msg("persistence hand-off failed")
		st.Errors = append(st.Errors, statex.SynthesisError{
			Node:    persistNode,
			Kind:    string(contractx.FailureUpstreamError),
			Message: fmt.Sprintf("%s: %v", what, err),
		})
	}

	if st.Campaign != nil {
		if err := o.persistence.InsertCampaign(ctx, *st.Campaign); err != nil {
			fail("insert campaign", err)
		} else if len(st.Moves) > 0 {
			if err := o.persistence.InsertMoves(ctx, st.Moves); err != nil {
				fail("insert moves", err)
			}
		}
	}
	if len(st.ICPs) > 0 {
		if err := o.persistence.InsertICPs(ctx, st.RunID, st.ICPs); err != nil {
			fail("insert icps", err)
		}
	}
	if len(st.Inference) > 0 {
		if err := o.persistence.InsertInferenceLogs(ctx, st.Inference); err != nil {
			fail("insert inference logs", err)
		}
	}
}

// runRecorder collects a run's inference logs and forwards them to the shared recorder.
type runRecorder struct {
	next contractx.InferenceRecorder

	mu   sync.Mutex
	logs []statex.InferenceLog
}

func (r *runRecorder) Record(entry statex.InferenceLog) {
	r.mu.Lock()
	r.logs = append(r.logs, entry)
	r.mu.Unlock()
	if r.next != nil {
		r.next.Record(entry)
	}
}

func (r *runRecorder) entries() []statex.InferenceLog {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]statex.InferenceLog(nil), r.logs...)
}
