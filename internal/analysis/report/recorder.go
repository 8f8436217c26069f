// internal/analysis/report/recorder.go
package report

import (
	"context"
	"sync"
	"time"

	"usability-workers/internal/analysis/orchestrator"
	"usability-workers/internal/common/logger"
)

const saveTimeout = 5 * time.Second

// Saver is the part of Store the Recorder needs.
type Saver interface {
	Save(ctx context.Context, rec Record) error
}

// Recorder persists every settled run handed to Enqueue. The queue is
// unbounded so a slow store delays reports but never drops them.
type Recorder struct {
	store  Saver
	logger logger.Logger

	mu      sync.Mutex
	pending []orchestrator.State
	signal  chan struct{}
}

func NewRecorder(store Saver, log logger.Logger) *Recorder {
	return &Recorder{
		store:  store,
		logger: log.With(map[string]interface{}{"component": "report-recorder"}),
		signal: make(chan struct{}, 1),
	}
}

// Enqueue queues a settled state for saving and never blocks. Other phases
// are ignored. It matches orchestrator.WithSettleHook.
func (r *Recorder) Enqueue(state orchestrator.State) {
	if !state.Settled() {
		return
	}
	r.mu.Lock()
	r.pending = append(r.pending, state)
	r.mu.Unlock()

	select {
	case r.signal <- struct{}{}:
	default:
	}
}

// Run saves queued states until ctx is done, then flushes what is left.
func (r *Recorder) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			if n := r.drain(ctx); n > 0 {
				r.logger.Info("flushed pending analysis reports", map[string]interface{}{"count": n})
			}
			return
		case <-r.signal:
			r.drain(ctx)
		}
	}
}

func (r *Recorder) drain(ctx context.Context) int {
	n := 0
	for {
		r.mu.Lock()
		if len(r.pending) == 0 {
			r.pending = nil
			r.mu.Unlock()
			return n
		}
		state := r.pending[0]
		r.pending = r.pending[1:]
		r.mu.Unlock()

		r.record(ctx, state)
		n++
	}
}

func (r *Recorder) record(ctx context.Context, state orchestrator.State) {
	rec, ok := FromState(state)
	if !ok {
		return
	}

	saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), saveTimeout)
	defer cancel()

	if err := r.store.Save(saveCtx, rec); err != nil {
		r.logger.Error("failed to save analysis report", map[string]interface{}{
			"runId": state.RunID,
			"error": err.Error(),
		})
		return
	}
	r.logger.Debug("analysis report saved", map[string]interface{}{"runId": state.RunID, "status": rec.Status})
}

// FromState converts a settled state into a Record. Running and Idle states
// are rejected.
func FromState(state orchestrator.State) (Record, bool) {
	if !state.Settled() || state.StartedAt == nil || state.FinishedAt == nil {
		return Record{}, false
	}
	rec := Record{
		RunID:        state.RunID,
		ModelID:      state.ModelID,
		Status:       string(state.Phase),
		Result:       state.Result,
		TokenCount:   state.TokenCount,
		ErrorCode:    state.ErrorCode,
		ErrorMessage: state.Error,
		StartedAt:    state.StartedAt.UTC(),
		FinishedAt:   state.FinishedAt.UTC(),
	}
	if state.Input != nil {
		rec.AppOverview = state.Input.AppOverview
		rec.UserTask = state.Input.UserTask
		rec.HasImage = state.Input.HasImage
		rec.HasSourceCode = state.Input.HasSourceCode
	}
	return rec, true
}
