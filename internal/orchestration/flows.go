// Package orchestration implements the master flow orchestrator: the phase
// machine that drives every assessment flow from creation to completion.
package orchestration

import (
	"fmt"
	"time"

	"ai-force-assess/internal/store"
)

// FlowType identifies which phase machine a flow runs.
type FlowType string

const (
	FlowDiscovery    FlowType = "discovery"
	FlowCollection   FlowType = "collection"
	FlowAssessment   FlowType = "assessment"
	FlowPlanning     FlowType = "planning"
	FlowDecommission FlowType = "decommission"
)

// FlowStatus is the lifecycle state of a flow.
type FlowStatus string

const (
	StatusCreated      FlowStatus = "created"
	StatusRunning      FlowStatus = "running"
	StatusWaitingInput FlowStatus = "waiting_input"
	StatusCompleted    FlowStatus = "completed"
	StatusFailed       FlowStatus = "failed"
	StatusCancelled    FlowStatus = "cancelled"
)

// Actors recorded in phase history.
const (
	ActorUser   = "user"
	ActorCrew   = "crew"
	ActorSystem = "system"
)

// PhaseDef is one phase of a flow type's machine with its intra-flow
// dependencies.
type PhaseDef struct {
	Name      string   `json:"name"`
	DependsOn []string `json:"depends_on,omitempty"`
}

// flowPhases defines the phase machine per flow type. Order matters: it is
// the canonical progression when dependencies allow more than one order.
var flowPhases = map[FlowType][]PhaseDef{
	FlowDiscovery: {
		{Name: "import"},
		{Name: "field_mapping", DependsOn: []string{"import"}},
		{Name: "cleansing", DependsOn: []string{"field_mapping"}},
		{Name: "inventory", DependsOn: []string{"cleansing"}},
	},
	FlowCollection: {
		{Name: "questionnaire"},
		{Name: "responses", DependsOn: []string{"questionnaire"}},
		{Name: "gap_analysis", DependsOn: []string{"responses"}},
	},
	FlowAssessment: {
		{Name: "dependency_analysis"},
		{Name: "tech_debt", DependsOn: []string{"dependency_analysis"}},
		{Name: "readiness", DependsOn: []string{"tech_debt"}},
	},
	FlowPlanning: {
		{Name: "recommendation"},
		{Name: "wave_planning", DependsOn: []string{"recommendation"}},
	},
	FlowDecommission: {
		{Name: "candidate_review"},
		{Name: "signoff", DependsOn: []string{"candidate_review"}},
	},
}

// ValidFlowType reports whether t names a known flow type.
func ValidFlowType(t string) bool {
	_, ok := flowPhases[FlowType(t)]
	return ok
}

// PhasesFor returns the phase machine for a flow type.
func PhasesFor(t FlowType) ([]PhaseDef, error) {
	phases, ok := flowPhases[t]
	if !ok {
		return nil, fmt.Errorf("unknown flow type %q", t)
	}
	return phases, nil
}

// FirstPhase returns the entry phase of a flow type.
func FirstPhase(t FlowType) (string, error) {
	phases, err := PhasesFor(t)
	if err != nil {
		return "", err
	}
	return phases[0].Name, nil
}

// NextPhase returns the phase after current, or "" when current is terminal.
func NextPhase(t FlowType, current string) (string, error) {
	phases, err := PhasesFor(t)
	if err != nil {
		return "", err
	}
	for i, p := range phases {
		if p.Name == current {
			if i+1 < len(phases) {
				return phases[i+1].Name, nil
			}
			return "", nil
		}
	}
	return "", fmt.Errorf("flow type %s has no phase %q", t, current)
}

// legalTransitions enumerates allowed status moves. Completed and cancelled
// are terminal.
var legalTransitions = map[FlowStatus][]FlowStatus{
	StatusCreated:      {StatusRunning, StatusCancelled},
	StatusRunning:      {StatusWaitingInput, StatusCompleted, StatusFailed, StatusCancelled},
	StatusWaitingInput: {StatusRunning, StatusCancelled},
	StatusFailed:       {StatusRunning, StatusCancelled},
}

// CanTransition reports whether moving from one status to another is legal.
func CanTransition(from, to FlowStatus) bool {
	for _, allowed := range legalTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// TerminalStatus reports whether a status ends the flow.
func TerminalStatus(s FlowStatus) bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// Flow is the orchestrator's view of a master flow record.
type Flow struct {
	FlowID       string         `json:"flow_id"`
	TenantID     string         `json:"tenant_id"`
	FlowType     FlowType       `json:"flow_type"`
	FlowName     string         `json:"flow_name"`
	CurrentPhase string         `json:"current_phase"`
	Status       FlowStatus     `json:"status"`
	PhaseState   store.JSONBMap `json:"phase_state,omitempty"`
	Plan         *ExecutionPlan `json:"execution_plan,omitempty"`
	LastError    *string        `json:"last_error,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	LastActivity time.Time      `json:"last_activity"`
}

// clone returns a copy with its own phase state map, so cache readers and
// writers never share one. The execution plan is immutable once built and
// stays shared.
func (f *Flow) clone() *Flow {
	cp := *f
	cp.PhaseState = cloneState(f.PhaseState)
	return &cp
}

// cloneState copies a phase state map; nil stays nil.
func cloneState(m store.JSONBMap) store.JSONBMap {
	if m == nil {
		return nil
	}
	cp := make(store.JSONBMap, len(m)+1)
	for k, v := range m {
		cp[k] = v
	}
	return cp
}

// HistoryEntry is one phase transition as exposed by the API.
type HistoryEntry struct {
	FromPhase  string    `json:"from_phase"`
	ToPhase    string    `json:"to_phase"`
	FromStatus string    `json:"from_status"`
	ToStatus   string    `json:"to_status"`
	Reason     string    `json:"reason,omitempty"`
	Actor      string    `json:"actor,omitempty"`
	At         time.Time `json:"at"`
}
