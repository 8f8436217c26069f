// internal/analysis/orchestrator/orchestrator.go
package orchestrator

import (
	"context"
	"encoding/base64"
	"fmt"
	"sync"
	"time"

	"usability-workers/internal/analysis/imagepreprocessor"
	"usability-workers/internal/analysis/modelinvoker"
	"usability-workers/internal/analysis/promptbuilder"
	apperrors "usability-workers/internal/common/errors"
	"usability-workers/internal/common/logger"
	"usability-workers/internal/common/metrics"
	"usability-workers/internal/common/observability"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// Dependencies are the pipeline backends. Mocked or real variants are chosen
// by whoever builds the orchestrator.
type Dependencies struct {
	Preprocessor imagepreprocessor.Preprocessor
	Builder      promptbuilder.Builder
	Invoker      modelinvoker.Invoker
}

// Orchestrator runs at most one analysis at a time and publishes every
// state transition to its subscribers.
type Orchestrator struct {
	deps   Dependencies
	opts   Options
	obs    *observability.Observability
	logger logger.Logger
	clock  func() time.Time

	settleHooks []func(State)

	mu          sync.Mutex
	state       State
	subscribers map[int]chan State
	nextSubID   int
}

type Option func(*Orchestrator)

func WithObservability(obs *observability.Observability) Option {
	return func(o *Orchestrator) { o.obs = obs }
}

// WithSettleHook registers fn to receive every settled state. Hooks run on the
// run's goroutine after the state lock is released, once per run and in
// settle order, so they see every terminal transition. fn must not block.
func WithSettleHook(fn func(State)) Option {
	return func(o *Orchestrator) {
		if fn != nil {
			o.settleHooks = append(o.settleHooks, fn)
		}
	}
}

// New wires an orchestrator. It panics when a required backend is missing.
func New(deps Dependencies, opts Options, log logger.Logger, options ...Option) *Orchestrator {
	if deps.Preprocessor == nil {
		panic("orchestrator: Preprocessor dependency is required")
	}
	if deps.Invoker == nil {
		panic("orchestrator: Invoker dependency is required")
	}
	if deps.Builder == nil {
		deps.Builder = promptbuilder.NewBasicBuilder()
	}
	if !opts.TargetSize.Valid() {
		opts.TargetSize = imagepreprocessor.DefaultTargetSize
	}
	o := &Orchestrator{
		deps:        deps,
		opts:        opts,
		obs:         observability.NewNoop(),
		logger:      log.With(map[string]interface{}{"component": "orchestrator"}),
		clock:       time.Now,
		state:       State{Phase: PhaseIdle},
		subscribers: make(map[int]chan State),
	}
	for _, opt := range options {
		opt(o)
	}
	return o
}

// Start launches a run in the background and reports whether it did. A call
// made while a run is in flight is dropped and leaves the state untouched.
// The run outlives ctx cancellation; only ctx values are carried over.
func (o *Orchestrator) Start(ctx context.Context, in AnalysisInput) bool {
	run, ok := o.begin(in)
	if !ok {
		return false
	}
	go func() {
		_, _ = o.execute(context.WithoutCancel(ctx), run, in)
	}()
	return true
}

// Run executes a run synchronously and returns the settled state together
// with the pipeline error, if any. It fails with ErrAlreadyRunning while
// another run is in flight.
func (o *Orchestrator) Run(ctx context.Context, in AnalysisInput) (State, error) {
	run, ok := o.begin(in)
	if !ok {
		return o.State(), apperrors.ErrAlreadyRunning
	}
	return o.execute(ctx, run, in)
}

// DefaultModelID is the model used when a run names none.
func (o *Orchestrator) DefaultModelID() string {
	return o.opts.DefaultModelID
}

// State returns the current snapshot.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// Subscribe registers a channel that receives every transition. Sends never
// block: a full channel misses intermediate states, State() always has the latest.
func (o *Orchestrator) Subscribe(buffer int) (<-chan State, func()) {
	if buffer < 1 {
		buffer = 1
	}
	ch := make(chan State, buffer)

	o.mu.Lock()
	id := o.nextSubID
	o.nextSubID++
	o.subscribers[id] = ch
	o.mu.Unlock()

	var once sync.Once
	unsubscribe := func() {
		once.Do(func() {
			o.mu.Lock()
			delete(o.subscribers, id)
			o.mu.Unlock()
			close(ch)
		})
	}
	return ch, unsubscribe
}

// begin performs the guarded Idle/Settled -> Running transition.
func (o *Orchestrator) begin(in AnalysisInput) (State, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.state.Phase == PhaseRunning {
		metrics.AnalysisRunsDropped.Inc()
		o.logger.Debug("analysis already running, start ignored", map[string]interface{}{"runId": o.state.RunID})
		return o.state, false
	}

	modelID := in.ModelID
	if modelID == "" {
		modelID = o.opts.DefaultModelID
	}
	startedAt := o.clock()
	o.state = State{
		Phase:     PhaseRunning,
		RunID:     uuid.NewString(),
		ModelID:   modelID,
		Input:     in.Summary(),
		StartedAt: &startedAt,
	}
	o.publishLocked()
	metrics.AnalysisRunsActive.Inc()

	o.logger.Info("analysis started", map[string]interface{}{
		"runId":         o.state.RunID,
		"model":         modelID,
		"hasImage":      o.state.Input.HasImage,
		"hasSourceCode": o.state.Input.HasSourceCode,
	})
	return o.state, true
}

func (o *Orchestrator) execute(ctx context.Context, run State, in AnalysisInput) (State, error) {
	ctx, span := o.obs.StartSpan(ctx, "analysis.run",
		attribute.String("analysis.run_id", run.RunID),
		attribute.String("analysis.model", run.ModelID),
		attribute.Bool("analysis.has_image", in.HasImage()),
	)
	defer span.End()

	resp, err := o.pipeline(ctx, run.ModelID, in)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, string(apperrors.CodeOf(err)))
	} else {
		span.SetAttributes(attribute.Int("analysis.token_count", resp.TokenCount))
	}

	return o.settle(ctx, run, resp, err), err
}

func (o *Orchestrator) pipeline(ctx context.Context, modelID string, in AnalysisInput) (*modelinvoker.Response, error) {
	var encodedImage string
	if in.HasImage() {
		compressed, err := o.preprocess(ctx, in.Image)
		if err != nil {
			return nil, err
		}
		encodedImage = base64.StdEncoding.EncodeToString(compressed)
	}

	prompt := promptbuilder.PromptInput{
		AppOverview: in.AppOverview,
		UserTask:    in.UserTask,
		SourceCode:  in.SourceCode,
		HasImage:    in.HasImage(),
	}
	req := modelinvoker.Request{
		ModelID:       modelID,
		Base64Image:   encodedImage,
		SystemContent: o.deps.Builder.SystemPrompt(),
		UserContent:   o.deps.Builder.UserPrompt(prompt),
	}

	return o.invoke(ctx, req)
}

func (o *Orchestrator) preprocess(ctx context.Context, image []byte) ([]byte, error) {
	ctx, span := o.obs.StartSpan(ctx, "analysis.preprocess",
		attribute.Int("image.bytes", len(image)),
		attribute.String("image.target", o.opts.TargetSize.String()),
	)
	defer span.End()

	started := time.Now()
	out, err := o.deps.Preprocessor.Process(ctx, image, o.opts.TargetSize)
	metrics.AnalysisStageDuration.WithLabelValues(metrics.StagePreprocess).Observe(time.Since(started).Seconds())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, string(apperrors.CodeOf(err)))
		return nil, err
	}
	span.SetAttributes(attribute.Int("image.compressed_bytes", len(out)))
	return out, nil
}

func (o *Orchestrator) invoke(ctx context.Context, req modelinvoker.Request) (*modelinvoker.Response, error) {
	ctx, span := o.obs.StartSpan(ctx, "analysis.invoke",
		attribute.String("llm.model", req.ModelID),
		attribute.Bool("llm.has_image", req.HasImage()),
	)
	defer span.End()

	started := time.Now()
	resp, err := o.deps.Invoker.Invoke(ctx, req)
	metrics.AnalysisStageDuration.WithLabelValues(metrics.StageInvoke).Observe(time.Since(started).Seconds())
	if err == nil && resp == nil {
		err = fmt.Errorf("invoker returned no response")
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, string(apperrors.CodeOf(err)))
		return nil, err
	}
	return resp, nil
}

// settle performs the single Running -> Succeeded/Failed transition of a run.
func (o *Orchestrator) settle(ctx context.Context, run State, resp *modelinvoker.Response, err error) State {
	finishedAt := o.clock()
	next := run
	next.FinishedAt = &finishedAt

	outcome := string(PhaseSucceeded)
	errorCode := ""
	if err != nil {
		outcome = string(PhaseFailed)
		errorCode = string(apperrors.CodeOf(err))
		next.Phase = PhaseFailed
		next.Error = apperrors.UserMessage(err)
		next.ErrorCode = errorCode
	} else {
		next.Phase = PhaseSucceeded
		next.Result = resp.Text
		next.TokenCount = resp.TokenCount
		metrics.LLMTokens.WithLabelValues(run.ModelID).Add(float64(resp.TokenCount))
	}

	o.mu.Lock()
	o.state = next
	o.publishLocked()
	o.mu.Unlock()

	for _, hook := range o.settleHooks {
		hook(next)
	}

	duration := finishedAt.Sub(*run.StartedAt)
	metrics.AnalysisRunsActive.Dec()
	metrics.AnalysisRuns.WithLabelValues(outcome, errorCode).Inc()
	metrics.AnalysisRunDuration.WithLabelValues(outcome).Observe(duration.Seconds())
	o.obs.RecordRun(ctx, duration, outcome, run.ModelID)

	fields := map[string]interface{}{
		"runId":      run.RunID,
		"model":      run.ModelID,
		"durationMs": duration.Milliseconds(),
	}
	if err != nil {
		fields["errorCode"] = errorCode
		fields["error"] = err.Error()
		o.logger.Warn("analysis failed", fields)
	} else {
		fields["tokenCount"] = resp.TokenCount
		o.logger.Info("analysis succeeded", fields)
	}
	return next
}

func (o *Orchestrator) publishLocked() {
	for _, ch := range o.subscribers {
		select {
		case ch <- o.state:
		default:
		}
	}
}
