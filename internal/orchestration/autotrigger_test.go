package orchestration

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ai-force-assess/internal/store"
)

func TestAutoTriggerAdvancesFlow(t *testing.T) {
	o := newTestOrchestrator(t)
	ctx := context.Background()

	flow, err := o.CreateFlow(ctx, testTenant, "discovery", "auto")
	require.NoError(t, err)

	batchID, err := o.Store().CreateImportBatch(ctx, &store.ImportBatch{
		TenantID:    testTenant,
		SourceName:  "export.csv",
		Format:      "csv",
		RecordCount: 10,
		Status:      "received",
	})
	require.NoError(t, err)
	require.NoError(t, o.Store().AttachBatchToFlow(ctx, testTenant, flow.FlowID, batchID))

	done := make(chan error, 1)
	NewAutoTrigger(o).WithInterval(5 * time.Millisecond).Watch(ctx, testTenant, flow.FlowID, batchID, done)

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("trigger never finished")
	}

	got, err := o.GetFlow(ctx, testTenant, flow.FlowID)
	require.NoError(t, err)
	assert.Equal(t, StatusRunning, got.Status)
	assert.Equal(t, "import", got.CurrentPhase)
}

func TestAutoTriggerGivesUpAfterMaxAttempts(t *testing.T) {
	o := newTestOrchestrator(t)
	ctx := context.Background()

	flow, err := o.CreateFlow(ctx, testTenant, "discovery", "orphan")
	require.NoError(t, err)

	done := make(chan error, 1)
	NewAutoTrigger(o).WithInterval(time.Millisecond).Watch(ctx, testTenant, flow.FlowID, "no-such-batch", done)

	select {
	case err := <-done:
		assert.ErrorIs(t, err, ErrTriggerExhausted)
	case <-time.After(2 * time.Second):
		t.Fatal("trigger never gave up")
	}
}

func TestAutoTriggerStandsDownWhenBatchAlreadyProcessed(t *testing.T) {
	o := newTestOrchestrator(t)
	ctx := context.Background()

	flow, err := o.CreateFlow(ctx, testTenant, "discovery", "raced")
	require.NoError(t, err)

	batchID, err := o.Store().CreateImportBatch(ctx, &store.ImportBatch{
		TenantID:   testTenant,
		SourceName: "export.csv",
		Format:     "csv",
		Status:     "mapped",
	})
	require.NoError(t, err)

	done := make(chan error, 1)
	NewAutoTrigger(o).WithInterval(time.Millisecond).Watch(ctx, testTenant, flow.FlowID, batchID, done)

	require.NoError(t, <-done)

	// Another worker owned the batch, so the flow was left alone.
	got, err := o.GetFlow(ctx, testTenant, flow.FlowID)
	require.NoError(t, err)
	assert.Equal(t, StatusCreated, got.Status)
}

func TestAutoTriggerCancellation(t *testing.T) {
	o := newTestOrchestrator(t)
	ctx, cancel := context.WithCancel(context.Background())

	flow, err := o.CreateFlow(ctx, testTenant, "discovery", "cancelled")
	require.NoError(t, err)

	done := make(chan error, 1)
	NewAutoTrigger(o).WithInterval(time.Hour).Watch(ctx, testTenant, flow.FlowID, "whatever", done)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("trigger ignored cancellation")
	}
}

func TestAutoTriggerHonorsConfiguredAttemptCap(t *testing.T) {
	o := newTestOrchestrator(t)
	ctx := context.Background()

	flow, err := o.CreateFlow(ctx, testTenant, "discovery", "capped")
	require.NoError(t, err)

	trigger := NewAutoTrigger(o).WithInterval(50 * time.Millisecond).WithAttempts(2)

	done := make(chan error, 1)
	start := time.Now()
	trigger.Watch(ctx, testTenant, flow.FlowID, "no-such-batch", done)

	select {
	case err := <-done:
		assert.ErrorIs(t, err, ErrTriggerExhausted)
		// Two attempts at 50ms each, nowhere near the default ten.
		assert.Less(t, time.Since(start), 400*time.Millisecond)
	case <-time.After(2 * time.Second):
		t.Fatal("trigger never gave up")
	}
}

func TestAutoTriggerOptionGuards(t *testing.T) {
	o := newTestOrchestrator(t)
	trigger := NewAutoTrigger(o).WithInterval(0).WithAttempts(-1)

	assert.Equal(t, DefaultTriggerInterval, trigger.interval)
	assert.Equal(t, MaxTriggerAttempts, trigger.attempts)
}
