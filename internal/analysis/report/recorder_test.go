// internal/analysis/report/recorder_test.go
package report

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"usability-workers/internal/analysis/imagepreprocessor"
	"usability-workers/internal/analysis/modelinvoker"
	"usability-workers/internal/analysis/orchestrator"
	apperrors "usability-workers/internal/common/errors"
	"usability-workers/internal/common/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memorySaver struct {
	mu      sync.Mutex
	records []Record
	err     error
}

func (m *memorySaver) Save(_ context.Context, rec Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.records = append(m.records, rec)
	return nil
}

func (m *memorySaver) saved() []Record {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Record(nil), m.records...)
}

func settledState(phase orchestrator.Phase) orchestrator.State {
	started := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	finished := started.Add(4 * time.Second)
	return orchestrator.State{
		Phase:      phase,
		RunID:      "d6a3b1c2-9f0e-4c55-8d1a-7b2e3f4a5b6c",
		ModelID:    "gpt-4-vision-preview",
		Input:      &orchestrator.InputSummary{AppOverview: "Fitness app", UserTask: "log workout", HasSourceCode: true},
		StartedAt:  &started,
		FinishedAt: &finished,
	}
}

func TestFromState(t *testing.T) {
	succeeded := settledState(orchestrator.PhaseSucceeded)
	succeeded.Result = "1. Issue"
	succeeded.TokenCount = 300

	rec, ok := FromState(succeeded)
	require.True(t, ok)
	assert.Equal(t, "succeeded", rec.Status)
	assert.Equal(t, "1. Issue", rec.Result)
	assert.Equal(t, 300, rec.TokenCount)
	assert.Equal(t, "Fitness app", rec.AppOverview)
	assert.True(t, rec.HasSourceCode)
	assert.Equal(t, 4*time.Second, rec.FinishedAt.Sub(rec.StartedAt))

	failed := settledState(orchestrator.PhaseFailed)
	failed.Error = "App Error HTTP 500"
	failed.ErrorCode = "HTTP_STATUS_ERROR"
	rec, ok = FromState(failed)
	require.True(t, ok)
	assert.Equal(t, "failed", rec.Status)
	assert.Equal(t, "App Error HTTP 500", rec.ErrorMessage)

	_, ok = FromState(orchestrator.State{Phase: orchestrator.PhaseRunning})
	assert.False(t, ok)
	_, ok = FromState(orchestrator.State{Phase: orchestrator.PhaseIdle})
	assert.False(t, ok)
}

func cancelledContext() context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	return ctx
}

// ==========================
// Recorder Tests
// ==========================

func TestRecorder_SavesSettledStatesOnly(t *testing.T) {
	saver := &memorySaver{}
	rec := NewRecorder(saver, logger.NewTestLogger(t))

	rec.Enqueue(orchestrator.State{Phase: orchestrator.PhaseRunning, RunID: "r1"})
	rec.Enqueue(orchestrator.State{Phase: orchestrator.PhaseIdle})
	rec.Enqueue(settledState(orchestrator.PhaseSucceeded))
	rec.Enqueue(settledState(orchestrator.PhaseFailed))

	rec.Run(cancelledContext())

	saved := saver.saved()
	require.Len(t, saved, 2)
	assert.Equal(t, "succeeded", saved[0].Status)
	assert.Equal(t, "failed", saved[1].Status)
}

func TestRecorder_SaveErrorsAreLogged(t *testing.T) {
	saver := &memorySaver{err: errors.New("db down")}
	rec := NewRecorder(saver, logger.NewNoOpLogger())

	rec.Enqueue(settledState(orchestrator.PhaseSucceeded))

	assert.NotPanics(t, func() { rec.Run(cancelledContext()) })
	assert.Empty(t, saver.saved())
}

func TestRecorder_StopsOnContextCancel(t *testing.T) {
	rec := NewRecorder(&memorySaver{}, logger.NewNoOpLogger())
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		rec.Run(ctx)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("recorder did not stop")
	}
}

func TestRecorder_EnqueueNeverBlocks(t *testing.T) {
	rec := NewRecorder(&memorySaver{}, logger.NewNoOpLogger())

	done := make(chan struct{})
	go func() {
		for i := 0; i < 1000; i++ {
			rec.Enqueue(settledState(orchestrator.PhaseSucceeded))
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("enqueue blocked without a running recorder")
	}
}

// ==========================
// Orchestrator Wiring Tests
// ==========================

type slowSaver struct {
	memorySaver
	delay time.Duration
}

func (s *slowSaver) Save(ctx context.Context, rec Record) error {
	time.Sleep(s.delay)
	return s.memorySaver.Save(ctx, rec)
}

type failingInvoker struct{}

func (failingInvoker) Invoke(context.Context, modelinvoker.Request) (*modelinvoker.Response, error) {
	return nil, apperrors.NewHTTPStatusError("openai", 500, "upstream error")
}

func TestRecorder_SlowStoreKeepsEveryBackToBackRun(t *testing.T) {
	const runs = 20
	log := logger.NewNoOpLogger()
	saver := &slowSaver{delay: 20 * time.Millisecond}
	rec := NewRecorder(saver, log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go rec.Run(ctx)

	o := orchestrator.New(
		orchestrator.Dependencies{
			Preprocessor: imagepreprocessor.NewMockedPreprocessor(log),
			Invoker:      failingInvoker{},
		},
		orchestrator.Options{DefaultModelID: "gpt-4-vision-preview"},
		log,
		orchestrator.WithSettleHook(rec.Enqueue),
	)

	runIDs := make(map[string]bool, runs)
	for i := 0; i < runs; i++ {
		final, err := o.Run(context.Background(), orchestrator.AnalysisInput{AppOverview: "A", UserTask: "B"})
		require.Error(t, err)
		require.Equal(t, orchestrator.PhaseFailed, final.Phase)
		runIDs[final.RunID] = true
	}
	require.Len(t, runIDs, runs)

	require.Eventually(t, func() bool { return len(saver.saved()) == runs }, 5*time.Second, 10*time.Millisecond)
	for _, r := range saver.saved() {
		assert.True(t, runIDs[r.RunID], "unexpected run %s", r.RunID)
		assert.Equal(t, "failed", r.Status)
		assert.Equal(t, "HTTP_STATUS_ERROR", r.ErrorCode)
	}
}

func TestRecorder_FlushesQueueOnShutdown(t *testing.T) {
	saver := &slowSaver{delay: 5 * time.Millisecond}
	rec := NewRecorder(saver, logger.NewNoOpLogger())
	for i := 0; i < 5; i++ {
		rec.Enqueue(settledState(orchestrator.PhaseSucceeded))
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		rec.Run(ctx)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("recorder did not stop")
	}
	assert.Len(t, saver.saved(), 5)
}
