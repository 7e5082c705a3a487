package orchestration

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ai-force-assess/internal/datastore"
	"ai-force-assess/internal/store"
)

const testTenant = "tenant-a"

func newTestOrchestrator(t *testing.T) *Orchestrator {
	t.Helper()
	ds, err := datastore.NewDataStore(datastore.Config{Type: datastore.MockStore})
	require.NoError(t, err)
	return NewOrchestrator(ds)
}

func TestCreateFlow(t *testing.T) {
	o := newTestOrchestrator(t)
	ctx := context.Background()

	flow, err := o.CreateFlow(ctx, testTenant, "discovery", "Q3 datacenter sweep")
	require.NoError(t, err)

	assert.NotEmpty(t, flow.FlowID)
	assert.Equal(t, FlowDiscovery, flow.FlowType)
	assert.Equal(t, StatusCreated, flow.Status)
	assert.Equal(t, "import", flow.CurrentPhase)
	require.NotNil(t, flow.Plan)
	assert.Len(t, flow.Plan.Stages, 4)

	// Round-trips through the store with the plan intact.
	got, err := o.GetFlow(ctx, testTenant, flow.FlowID)
	require.NoError(t, err)
	assert.Equal(t, flow.FlowID, got.FlowID)
	require.NotNil(t, got.Plan)
}

func TestCreateFlowUnknownType(t *testing.T) {
	o := newTestOrchestrator(t)

	_, err := o.CreateFlow(context.Background(), testTenant, "teleportation", "nope")
	require.Error(t, err)
}

func TestAdvancePhaseWithRunner(t *testing.T) {
	o := newTestOrchestrator(t)
	ctx := context.Background()

	var ran []string
	o.RegisterRunner(FlowAssessment, "dependency_analysis", PhaseRunnerFunc(func(ctx context.Context, flow *Flow) (*PhaseResult, error) {
		ran = append(ran, flow.CurrentPhase)
		return &PhaseResult{State: store.JSONBMap{"graph_nodes": 12}}, nil
	}))

	flow, err := o.CreateFlow(ctx, testTenant, "assessment", "assess")
	require.NoError(t, err)

	// A created flow starts its current phase; the runner succeeds, the
	// phase is marked done, and the flow waits on it for the next advance.
	advanced, err := o.AdvancePhase(ctx, testTenant, flow.FlowID, ActorUser)
	require.NoError(t, err)
	assert.Equal(t, []string{"dependency_analysis"}, ran)
	assert.Equal(t, StatusRunning, advanced.Status)
	assert.Equal(t, "dependency_analysis", advanced.CurrentPhase)
	assert.Equal(t, "completed", advanced.PhaseState["dependency_analysis"])
	assert.EqualValues(t, 12, advanced.PhaseState["graph_nodes"])

	// The next advance moves on and runs the following phase.
	advanced, err = o.AdvancePhase(ctx, testTenant, flow.FlowID, ActorUser)
	require.NoError(t, err)
	assert.Equal(t, "tech_debt", advanced.CurrentPhase)
}

func TestAdvancePhaseRunnerFailure(t *testing.T) {
	o := newTestOrchestrator(t)
	ctx := context.Background()

	o.RegisterRunner(FlowAssessment, "dependency_analysis", PhaseRunnerFunc(func(ctx context.Context, flow *Flow) (*PhaseResult, error) {
		return nil, errors.New("graph store unreachable")
	}))

	flow, err := o.CreateFlow(ctx, testTenant, "assessment", "assess")
	require.NoError(t, err)

	failed, err := o.AdvancePhase(ctx, testTenant, flow.FlowID, ActorUser)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, failed.Status)
	assert.Equal(t, "dependency_analysis", failed.CurrentPhase)
	require.NotNil(t, failed.LastError)
	assert.Contains(t, *failed.LastError, "graph store unreachable")
}

func TestResumeFailedFlow(t *testing.T) {
	o := newTestOrchestrator(t)
	ctx := context.Background()

	attempts := 0
	o.RegisterRunner(FlowAssessment, "dependency_analysis", PhaseRunnerFunc(func(ctx context.Context, flow *Flow) (*PhaseResult, error) {
		attempts++
		if attempts == 1 {
			return nil, errors.New("transient")
		}
		return &PhaseResult{}, nil
	}))

	flow, err := o.CreateFlow(ctx, testTenant, "assessment", "assess")
	require.NoError(t, err)

	failed, err := o.AdvancePhase(ctx, testTenant, flow.FlowID, ActorUser)
	require.NoError(t, err)
	require.Equal(t, StatusFailed, failed.Status)

	resumed, err := o.ResumeFlow(ctx, testTenant, flow.FlowID, ActorUser)
	require.NoError(t, err)
	assert.Equal(t, 2, attempts)
	assert.Equal(t, StatusRunning, resumed.Status)
	assert.Equal(t, "dependency_analysis", resumed.CurrentPhase)
	assert.Equal(t, "completed", resumed.PhaseState["dependency_analysis"])
	assert.Nil(t, resumed.LastError)
}

func TestWaitingForInputParksFlow(t *testing.T) {
	o := newTestOrchestrator(t)
	ctx := context.Background()

	o.RegisterRunner(FlowCollection, "questionnaire", PhaseRunnerFunc(func(ctx context.Context, flow *Flow) (*PhaseResult, error) {
		return &PhaseResult{
			State:           store.JSONBMap{"gaps": 3},
			WaitingForInput: true,
		}, nil
	}))

	flow, err := o.CreateFlow(ctx, testTenant, "collection", "gap hunt")
	require.NoError(t, err)

	parked, err := o.AdvancePhase(ctx, testTenant, flow.FlowID, ActorUser)
	require.NoError(t, err)
	assert.Equal(t, StatusWaitingInput, parked.Status)
	assert.Equal(t, "questionnaire", parked.CurrentPhase)
	assert.EqualValues(t, 3, parked.PhaseState["gaps"])
}

func TestCompletePhaseWalksToCompletion(t *testing.T) {
	o := newTestOrchestrator(t)
	ctx := context.Background()

	flow, err := o.CreateFlow(ctx, testTenant, "planning", "wave 1")
	require.NoError(t, err)

	// No runners registered: CompletePhase advances manually.
	f, err := o.CompletePhase(ctx, testTenant, flow.FlowID, ActorUser, "strategies reviewed")
	require.NoError(t, err)
	assert.Equal(t, "wave_planning", f.CurrentPhase)
	assert.Equal(t, StatusRunning, f.Status)

	f, err = o.CompletePhase(ctx, testTenant, flow.FlowID, ActorUser, "waves approved")
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, f.Status)

	// Terminal flows reject further work.
	_, err = o.AdvancePhase(ctx, testTenant, flow.FlowID, ActorUser)
	var illegal *IllegalTransitionError
	require.ErrorAs(t, err, &illegal)
	assert.Equal(t, StatusCompleted, illegal.From)
}

func TestAdvanceRunsFullMachineWhenRunnersComplete(t *testing.T) {
	o := newTestOrchestrator(t)
	ctx := context.Background()

	for _, phase := range []string{"dependency_analysis", "tech_debt", "readiness"} {
		o.RegisterRunner(FlowAssessment, phase, PhaseRunnerFunc(func(ctx context.Context, flow *Flow) (*PhaseResult, error) {
			return &PhaseResult{}, nil
		}))
	}

	flow, err := o.CreateFlow(ctx, testTenant, "assessment", "full pass")
	require.NoError(t, err)

	// First advance runs phase one; each subsequent advance moves on.
	f, err := o.AdvancePhase(ctx, testTenant, flow.FlowID, ActorUser)
	require.NoError(t, err)
	require.Equal(t, "dependency_analysis", f.CurrentPhase)
	require.Equal(t, "completed", f.PhaseState["dependency_analysis"])

	f, err = o.AdvancePhase(ctx, testTenant, flow.FlowID, ActorUser)
	require.NoError(t, err)
	require.Equal(t, "tech_debt", f.CurrentPhase)

	f, err = o.AdvancePhase(ctx, testTenant, flow.FlowID, ActorUser)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, f.Status)
	assert.Equal(t, "completed", f.PhaseState["readiness"])
}

func TestCancelFlow(t *testing.T) {
	o := newTestOrchestrator(t)
	ctx := context.Background()

	flow, err := o.CreateFlow(ctx, testTenant, "discovery", "doomed")
	require.NoError(t, err)

	cancelled, err := o.CancelFlow(ctx, testTenant, flow.FlowID, ActorUser, "scope cut")
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, cancelled.Status)

	_, err = o.CancelFlow(ctx, testTenant, flow.FlowID, ActorUser, "again")
	var illegal *IllegalTransitionError
	require.ErrorAs(t, err, &illegal)
}

func TestGetHistory(t *testing.T) {
	o := newTestOrchestrator(t)
	ctx := context.Background()

	flow, err := o.CreateFlow(ctx, testTenant, "planning", "history")
	require.NoError(t, err)

	_, err = o.CompletePhase(ctx, testTenant, flow.FlowID, ActorUser, "done by hand")
	require.NoError(t, err)

	history, err := o.GetHistory(ctx, testTenant, flow.FlowID)
	require.NoError(t, err)
	require.NotEmpty(t, history)
	last := history[len(history)-1]
	assert.Equal(t, "recommendation", last.FromPhase)
	assert.Equal(t, "wave_planning", last.ToPhase)
	assert.Equal(t, ActorUser, last.Actor)
}

func TestListFlowsFiltersByType(t *testing.T) {
	o := newTestOrchestrator(t)
	ctx := context.Background()

	_, err := o.CreateFlow(ctx, testTenant, "discovery", "d1")
	require.NoError(t, err)
	_, err = o.CreateFlow(ctx, testTenant, "assessment", "a1")
	require.NoError(t, err)

	all, err := o.ListFlows(ctx, testTenant, "")
	require.NoError(t, err)
	assert.Len(t, all, 2)

	discos, err := o.ListFlows(ctx, testTenant, "discovery")
	require.NoError(t, err)
	require.Len(t, discos, 1)
	assert.Equal(t, "d1", discos[0].FlowName)

	_, err = o.ListFlows(ctx, testTenant, "bogus")
	require.Error(t, err)
}

func TestTenantIsolation(t *testing.T) {
	o := newTestOrchestrator(t)
	ctx := context.Background()

	flow, err := o.CreateFlow(ctx, "tenant-a", "discovery", "a only")
	require.NoError(t, err)

	flows, err := o.ListFlows(ctx, "tenant-b", "")
	require.NoError(t, err)
	assert.Empty(t, flows)

	// The cache is keyed by tenant too.
	_, err = o.Store().GetMasterFlow(ctx, "tenant-b", flow.FlowID)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestCleanupStaleFlows(t *testing.T) {
	o := newTestOrchestrator(t)
	ctx := context.Background()

	flow, err := o.CreateFlow(ctx, testTenant, "discovery", "stale")
	require.NoError(t, err)
	_, err = o.CancelFlow(ctx, testTenant, flow.FlowID, ActorUser, "abandoned")
	require.NoError(t, err)

	time.Sleep(10 * time.Millisecond)
	removed, err := o.CleanupStaleFlows(ctx, testTenant, time.Millisecond)
	require.NoError(t, err)
	assert.EqualValues(t, 1, removed)

	_, err = o.GetFlow(ctx, testTenant, flow.FlowID)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestMetrics(t *testing.T) {
	o := newTestOrchestrator(t)
	ctx := context.Background()

	f1, err := o.CreateFlow(ctx, testTenant, "planning", "m1")
	require.NoError(t, err)
	_, err = o.CreateFlow(ctx, testTenant, "planning", "m2")
	require.NoError(t, err)

	_, err = o.CancelFlow(ctx, testTenant, f1.FlowID, ActorUser, "cut")
	require.NoError(t, err)

	m := o.Metrics()
	assert.EqualValues(t, 2, m.TotalFlows)
	assert.EqualValues(t, 1, m.ActiveFlows)
	assert.EqualValues(t, 1, m.CancelledFlows)
	assert.False(t, m.LastUpdated.IsZero())
}

func TestGetFlowReturnsDetachedPhaseState(t *testing.T) {
	o := newTestOrchestrator(t)
	ctx := context.Background()

	flow, err := o.CreateFlow(ctx, testTenant, "planning", "detached")
	require.NoError(t, err)

	got, err := o.GetFlow(ctx, testTenant, flow.FlowID)
	require.NoError(t, err)
	got.PhaseState["tampered"] = true

	again, err := o.GetFlow(ctx, testTenant, flow.FlowID)
	require.NoError(t, err)
	assert.NotContains(t, again.PhaseState, "tampered")
}

// Reads marshaling a flow's phase state must be safe while phase runs keep
// writing state, the way a GET races an advance on the live server. Run
// with -race to catch sharing regressions.
func TestConcurrentReadsDuringPhaseRuns(t *testing.T) {
	o := newTestOrchestrator(t)
	ctx := context.Background()

	iteration := 0
	o.RegisterRunner(FlowAssessment, "dependency_analysis", PhaseRunnerFunc(func(ctx context.Context, flow *Flow) (*PhaseResult, error) {
		iteration++
		return &PhaseResult{
			State:           store.JSONBMap{"iteration": iteration},
			WaitingForInput: true,
		}, nil
	}))

	flow, err := o.CreateFlow(ctx, testTenant, "assessment", "contended")
	require.NoError(t, err)
	_, err = o.AdvancePhase(ctx, testTenant, flow.FlowID, ActorUser)
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 200; i++ {
			if _, err := o.ResumeFlow(ctx, testTenant, flow.FlowID, ActorUser); err != nil {
				t.Errorf("resume %d: %v", i, err)
				return
			}
		}
	}()

	for {
		select {
		case <-done:
			return
		default:
		}
		got, err := o.GetFlow(ctx, testTenant, flow.FlowID)
		require.NoError(t, err)
		if _, err := json.Marshal(got.PhaseState); err != nil {
			t.Fatalf("marshal phase state: %v", err)
		}
	}
}
