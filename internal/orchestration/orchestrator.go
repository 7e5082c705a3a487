package orchestration

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"ai-force-assess/internal/datastore"
	"ai-force-assess/internal/store"
)

// PhaseResult is what a runner reports back after executing a phase.
type PhaseResult struct {
	// State is merged into the flow's phase_state JSONB.
	State store.JSONBMap
	// WaitingForInput parks the flow until a user responds.
	WaitingForInput bool
}

// PhaseRunner executes the work behind one phase. Runners are registered per
// flow type and phase; phases without a runner are advanced manually via
// CompletePhase.
type PhaseRunner interface {
	RunPhase(ctx context.Context, flow *Flow) (*PhaseResult, error)
}

// PhaseRunnerFunc adapts a function to the PhaseRunner interface.
type PhaseRunnerFunc func(ctx context.Context, flow *Flow) (*PhaseResult, error)

// RunPhase calls f.
func (f PhaseRunnerFunc) RunPhase(ctx context.Context, flow *Flow) (*PhaseResult, error) {
	return f(ctx, flow)
}

// Metrics tracks orchestrator activity since startup.
type Metrics struct {
	TotalFlows     int64            `json:"total_flows"`
	ActiveFlows    int64            `json:"active_flows"`
	CompletedFlows int64            `json:"completed_flows"`
	FailedFlows    int64            `json:"failed_flows"`
	CancelledFlows int64            `json:"cancelled_flows"`
	PhaseCounts    map[string]int64 `json:"phase_counts"` // flowType/phase -> executions
	UptimeSeconds  int64            `json:"uptime_seconds"`
	LastUpdated    time.Time        `json:"last_updated"`
}

// Orchestrator drives every flow's phase machine. The persistent store is
// authoritative; the in-memory cache only short-circuits reads.
type Orchestrator struct {
	store datastore.DataStore

	// Active flow cache, keyed tenant|flowID. Cached flows are replaced
	// wholesale and never mutated; every flow crossing the cache boundary
	// is cloned so no caller shares a phase state map with the cache.
	flows map[string]*Flow
	mu    sync.RWMutex

	// Phase runners keyed flowType/phase
	runners map[string]PhaseRunner

	metrics   Metrics
	metricsMu sync.Mutex
	startTime time.Time
}

// NewOrchestrator creates an orchestrator over the given store.
func NewOrchestrator(ds datastore.DataStore) *Orchestrator {
	return &Orchestrator{
		store:     ds,
		flows:     make(map[string]*Flow),
		runners:   make(map[string]PhaseRunner),
		metrics:   Metrics{PhaseCounts: make(map[string]int64)},
		startTime: time.Now(),
	}
}

// RegisterRunner binds a runner to one phase of one flow type.
func (o *Orchestrator) RegisterRunner(flowType FlowType, phase string, runner PhaseRunner) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.runners[string(flowType)+"/"+phase] = runner
}

func (o *Orchestrator) runnerFor(flowType FlowType, phase string) PhaseRunner {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.runners[string(flowType)+"/"+phase]
}

func cacheKey(tenantID, flowID string) string {
	return tenantID + "|" + flowID
}

// CreateFlow creates a new flow in status created, positioned on its first
// phase, with its execution plan computed up front.
func (o *Orchestrator) CreateFlow(ctx context.Context, tenantID, flowType, name string) (*Flow, error) {
	ft := FlowType(flowType)
	phases, err := PhasesFor(ft)
	if err != nil {
		return nil, err
	}
	plan, err := BuildExecutionPlan(phases)
	if err != nil {
		return nil, fmt.Errorf("failed to plan %s flow: %w", flowType, err)
	}

	planJSON, err := json.Marshal(plan)
	if err != nil {
		return nil, fmt.Errorf("failed to encode execution plan: %w", err)
	}

	flow := &Flow{
		FlowID:       uuid.New().String(),
		TenantID:     tenantID,
		FlowType:     ft,
		FlowName:     name,
		CurrentPhase: phases[0].Name,
		Status:       StatusCreated,
		PhaseState:   store.JSONBMap{},
		Plan:         plan,
	}

	rec := &store.MasterFlowRecord{
		FlowID:        flow.FlowID,
		TenantID:      tenantID,
		FlowType:      flowType,
		FlowName:      name,
		CurrentPhase:  flow.CurrentPhase,
		Status:        string(flow.Status),
		PhaseState:    flow.PhaseState,
		ExecutionPlan: store.JSONBRaw(planJSON),
	}
	if err := o.store.CreateMasterFlow(ctx, rec); err != nil {
		return nil, fmt.Errorf("failed to persist flow: %w", err)
	}
	flow.CreatedAt = rec.CreatedAt
	flow.UpdatedAt = rec.UpdatedAt
	flow.LastActivity = rec.LastActivity

	o.mu.Lock()
	o.flows[cacheKey(tenantID, flow.FlowID)] = flow
	o.mu.Unlock()

	o.bumpMetric(func(m *Metrics) {
		m.TotalFlows++
		m.ActiveFlows++
	})

	return flow.clone(), nil
}

// GetFlow returns a flow, consulting the cache first and falling back to the
// store on a miss.
func (o *Orchestrator) GetFlow(ctx context.Context, tenantID, flowID string) (*Flow, error) {
	o.mu.RLock()
	cached, ok := o.flows[cacheKey(tenantID, flowID)]
	if ok {
		cp := cached.clone()
		o.mu.RUnlock()
		return cp, nil
	}
	o.mu.RUnlock()

	rec, err := o.store.GetMasterFlow(ctx, tenantID, flowID)
	if err != nil {
		return nil, err
	}
	flow, err := flowFromRecord(rec)
	if err != nil {
		return nil, err
	}

	o.mu.Lock()
	o.flows[cacheKey(tenantID, flowID)] = flow
	o.mu.Unlock()

	return flow.clone(), nil
}

// ListFlows returns a tenant's flows, optionally filtered by type. Always
// served from the store so fresh processes see the full picture.
func (o *Orchestrator) ListFlows(ctx context.Context, tenantID, flowType string) ([]Flow, error) {
	if flowType != "" && !ValidFlowType(flowType) {
		return nil, fmt.Errorf("unknown flow type %q", flowType)
	}
	recs, err := o.store.ListMasterFlows(ctx, tenantID, flowType)
	if err != nil {
		return nil, err
	}
	flows := make([]Flow, 0, len(recs))
	for i := range recs {
		f, err := flowFromRecord(&recs[i])
		if err != nil {
			return nil, err
		}
		flows = append(flows, *f)
	}
	return flows, nil
}

// GetHistory returns the phase transition history of a flow.
func (o *Orchestrator) GetHistory(ctx context.Context, tenantID, flowID string) ([]HistoryEntry, error) {
	recs, err := o.store.GetPhaseHistory(ctx, tenantID, flowID)
	if err != nil {
		return nil, err
	}
	entries := make([]HistoryEntry, 0, len(recs))
	for _, r := range recs {
		entries = append(entries, HistoryEntry{
			FromPhase:  r.FromPhase,
			ToPhase:    r.ToPhase,
			FromStatus: r.FromStatus,
			ToStatus:   r.ToStatus,
			Reason:     r.Reason,
			Actor:      r.Actor,
			At:         r.CreatedAt,
		})
	}
	return entries, nil
}

// AdvancePhase moves a flow forward and executes the registered runner. A
// created, failed, or parked flow (re)starts its current phase; a running
// flow whose current phase already finished moves to the next one. When no
// phase remains the flow completes.
func (o *Orchestrator) AdvancePhase(ctx context.Context, tenantID, flowID, actor string) (*Flow, error) {
	flow, err := o.GetFlow(ctx, tenantID, flowID)
	if err != nil {
		return nil, err
	}

	if flow.Status != StatusRunning && !CanTransition(flow.Status, StatusRunning) {
		return nil, &IllegalTransitionError{FlowID: flowID, From: flow.Status, To: StatusRunning}
	}

	target := flow.CurrentPhase
	if flow.Status == StatusRunning && flow.PhaseState[target] == "completed" {
		next, err := NextPhase(flow.FlowType, flow.CurrentPhase)
		if err != nil {
			return nil, err
		}
		if next == "" {
			return o.completeFlow(ctx, flow, actor, "all phases complete")
		}
		target = next
	}

	return o.runPhase(ctx, flow, target, actor)
}

// CompletePhase marks the current phase done without invoking a runner, for
// phases whose work happens outside the orchestrator. The flow moves to the
// next phase, or completes if none remains.
func (o *Orchestrator) CompletePhase(ctx context.Context, tenantID, flowID, actor, reason string) (*Flow, error) {
	flow, err := o.GetFlow(ctx, tenantID, flowID)
	if err != nil {
		return nil, err
	}
	if flow.Status != StatusRunning && !CanTransition(flow.Status, StatusRunning) {
		return nil, &IllegalTransitionError{FlowID: flowID, From: flow.Status, To: StatusRunning}
	}

	state := cloneState(flow.PhaseState)
	if state == nil {
		state = store.JSONBMap{}
	}
	state[flow.CurrentPhase] = "completed"

	next, err := NextPhase(flow.FlowType, flow.CurrentPhase)
	if err != nil {
		return nil, err
	}
	if next == "" {
		flow.PhaseState = state
		return o.completeFlow(ctx, flow, actor, reason)
	}

	return o.transition(ctx, flow, next, StatusRunning, actor, reason, state, nil)
}

// FailPhase records a phase failure and moves the flow to failed.
func (o *Orchestrator) FailPhase(ctx context.Context, tenantID, flowID, actor, reason string) (*Flow, error) {
	flow, err := o.GetFlow(ctx, tenantID, flowID)
	if err != nil {
		return nil, err
	}
	if !CanTransition(flow.Status, StatusFailed) {
		return nil, &IllegalTransitionError{FlowID: flowID, From: flow.Status, To: StatusFailed}
	}
	o.bumpMetric(func(m *Metrics) {
		m.FailedFlows++
		m.ActiveFlows--
	})
	return o.transition(ctx, flow, flow.CurrentPhase, StatusFailed, actor, reason, nil, &reason)
}

// CancelFlow cancels a non-terminal flow.
func (o *Orchestrator) CancelFlow(ctx context.Context, tenantID, flowID, actor, reason string) (*Flow, error) {
	flow, err := o.GetFlow(ctx, tenantID, flowID)
	if err != nil {
		return nil, err
	}
	if !CanTransition(flow.Status, StatusCancelled) {
		return nil, &IllegalTransitionError{FlowID: flowID, From: flow.Status, To: StatusCancelled}
	}
	o.bumpMetric(func(m *Metrics) {
		m.CancelledFlows++
		m.ActiveFlows--
	})
	return o.transition(ctx, flow, flow.CurrentPhase, StatusCancelled, actor, reason, nil, nil)
}

// ResumeFlow re-runs the current phase of a failed or parked flow.
func (o *Orchestrator) ResumeFlow(ctx context.Context, tenantID, flowID, actor string) (*Flow, error) {
	flow, err := o.GetFlow(ctx, tenantID, flowID)
	if err != nil {
		return nil, err
	}
	if flow.Status != StatusFailed && flow.Status != StatusWaitingInput {
		return nil, &IllegalTransitionError{FlowID: flowID, From: flow.Status, To: StatusRunning}
	}
	if flow.Status == StatusFailed {
		o.bumpMetric(func(m *Metrics) {
			m.FailedFlows--
			m.ActiveFlows++
		})
	}
	return o.runPhase(ctx, flow, flow.CurrentPhase, actor)
}

// CleanupStaleFlows removes terminal flows idle longer than olderThan and
// evicts them from the cache.
func (o *Orchestrator) CleanupStaleFlows(ctx context.Context, tenantID string, olderThan time.Duration) (int64, error) {
	removed, err := o.store.CleanupStaleFlows(ctx, tenantID, olderThan)
	if err != nil {
		return 0, err
	}
	if removed > 0 {
		o.mu.Lock()
		for key, f := range o.flows {
			if f.TenantID == tenantID && TerminalStatus(f.Status) {
				delete(o.flows, key)
			}
		}
		o.mu.Unlock()
		log.Printf("cleaned up %d stale flows for tenant %s", removed, tenantID)
	}
	return removed, nil
}

// Metrics returns a snapshot of orchestrator counters.
func (o *Orchestrator) Metrics() Metrics {
	o.metricsMu.Lock()
	defer o.metricsMu.Unlock()

	snapshot := o.metrics
	snapshot.PhaseCounts = make(map[string]int64, len(o.metrics.PhaseCounts))
	for k, v := range o.metrics.PhaseCounts {
		snapshot.PhaseCounts[k] = v
	}
	snapshot.UptimeSeconds = int64(time.Since(o.startTime).Seconds())
	snapshot.LastUpdated = time.Now().UTC()
	return snapshot
}

// Store exposes the underlying datastore for callers that need non-flow
// operations next to orchestration.
func (o *Orchestrator) Store() datastore.DataStore {
	return o.store
}

// runPhase transitions the flow onto target with status running, executes
// the registered runner, and settles the outcome.
func (o *Orchestrator) runPhase(ctx context.Context, flow *Flow, target, actor string) (*Flow, error) {
	reason := fmt.Sprintf("phase %s started", target)
	updated, err := o.transition(ctx, flow, target, StatusRunning, actor, reason, nil, nil)
	if err != nil {
		return nil, err
	}

	o.bumpMetric(func(m *Metrics) {
		m.PhaseCounts[string(flow.FlowType)+"/"+target]++
	})

	runner := o.runnerFor(flow.FlowType, target)
	if runner == nil {
		return updated, nil
	}

	result, runErr := runner.RunPhase(ctx, updated)
	if runErr != nil {
		msg := runErr.Error()
		o.bumpMetric(func(m *Metrics) {
			m.FailedFlows++
			m.ActiveFlows--
		})
		failed, ferr := o.transition(ctx, updated, target, StatusFailed, ActorSystem, msg, nil, &msg)
		if ferr != nil {
			return nil, fmt.Errorf("phase %s failed (%v) and the failure could not be recorded: %w", target, runErr, ferr)
		}
		return failed, nil
	}

	state := cloneState(updated.PhaseState)
	if state == nil {
		state = store.JSONBMap{}
	}
	if result != nil {
		for k, v := range result.State {
			state[k] = v
		}
	}

	if result != nil && result.WaitingForInput {
		return o.transition(ctx, updated, target, StatusWaitingInput, ActorSystem, "awaiting user input", state, nil)
	}

	// The flow stays on the completed phase; the next AdvancePhase moves it
	// along. Only the last phase completes the whole flow here.
	state[target] = "completed"
	next, err := NextPhase(updated.FlowType, target)
	if err != nil {
		return nil, err
	}
	if next == "" {
		updated.PhaseState = state
		updated.CurrentPhase = target
		return o.completeFlow(ctx, updated, ActorSystem, "all phases complete")
	}
	return o.transition(ctx, updated, target, StatusRunning, ActorSystem, fmt.Sprintf("phase %s completed", target), state, nil)
}

func (o *Orchestrator) completeFlow(ctx context.Context, flow *Flow, actor, reason string) (*Flow, error) {
	o.bumpMetric(func(m *Metrics) {
		m.CompletedFlows++
		m.ActiveFlows--
	})
	return o.transition(ctx, flow, flow.CurrentPhase, StatusCompleted, actor, reason, flow.PhaseState, nil)
}

// transition persists one phase/status move and refreshes the cache.
func (o *Orchestrator) transition(ctx context.Context, flow *Flow, toPhase string, toStatus FlowStatus, actor, reason string, state store.JSONBMap, lastError *string) (*Flow, error) {
	rec := &store.PhaseTransitionRecord{
		FlowID:     flow.FlowID,
		TenantID:   flow.TenantID,
		FromPhase:  flow.CurrentPhase,
		ToPhase:    toPhase,
		FromStatus: string(flow.Status),
		ToStatus:   string(toStatus),
		Reason:     reason,
		Actor:      actor,
	}
	if err := o.store.UpdateFlowPhase(ctx, rec, string(flow.FlowType), state, lastError); err != nil {
		return nil, fmt.Errorf("failed to persist transition to %s/%s: %w", toPhase, toStatus, err)
	}

	updated := *flow
	updated.CurrentPhase = toPhase
	updated.Status = toStatus
	updated.LastError = lastError
	if state != nil {
		updated.PhaseState = state
	}
	now := time.Now().UTC()
	updated.UpdatedAt = now
	updated.LastActivity = now

	o.mu.Lock()
	o.flows[cacheKey(flow.TenantID, flow.FlowID)] = &updated
	o.mu.Unlock()

	return updated.clone(), nil
}

func (o *Orchestrator) bumpMetric(apply func(*Metrics)) {
	o.metricsMu.Lock()
	apply(&o.metrics)
	o.metricsMu.Unlock()
}

// flowFromRecord converts a store record into the domain view.
func flowFromRecord(rec *store.MasterFlowRecord) (*Flow, error) {
	flow := &Flow{
		FlowID:       rec.FlowID,
		TenantID:     rec.TenantID,
		FlowType:     FlowType(rec.FlowType),
		FlowName:     rec.FlowName,
		CurrentPhase: rec.CurrentPhase,
		Status:       FlowStatus(rec.Status),
		PhaseState:   rec.PhaseState,
		LastError:    rec.LastError,
		CreatedAt:    rec.CreatedAt,
		UpdatedAt:    rec.UpdatedAt,
		LastActivity: rec.LastActivity,
	}
	if len(rec.ExecutionPlan) > 0 {
		var plan ExecutionPlan
		if err := json.Unmarshal([]byte(rec.ExecutionPlan), &plan); err != nil {
			return nil, fmt.Errorf("failed to decode execution plan for flow %s: %w", rec.FlowID, err)
		}
		flow.Plan = &plan
	}
	return flow, nil
}

// IllegalTransitionError reports a status move the phase machine forbids.
// The API layer maps it to a conflict response.
type IllegalTransitionError struct {
	FlowID string
	From   FlowStatus
	To     FlowStatus
}

func (e *IllegalTransitionError) Error() string {
	return fmt.Sprintf("flow %s cannot move from %s to %s", e.FlowID, e.From, e.To)
}
