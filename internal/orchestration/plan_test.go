package orchestration

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildExecutionPlanLinearChain(t *testing.T) {
	phases, err := PhasesFor(FlowDiscovery)
	require.NoError(t, err)

	plan, err := BuildExecutionPlan(phases)
	require.NoError(t, err)

	require.Len(t, plan.Stages, 4)
	assert.Equal(t, "import", plan.Stages[0].Name)
	assert.Equal(t, "field_mapping", plan.Stages[1].Name)
	assert.Equal(t, "cleansing", plan.Stages[2].Name)
	assert.Equal(t, "inventory", plan.Stages[3].Name)

	// A strict chain yields one single-phase group per round.
	require.Len(t, plan.ParallelGroups, 4)
	for _, group := range plan.ParallelGroups {
		assert.Len(t, group, 1)
	}
}

func TestBuildExecutionPlanParallelGroups(t *testing.T) {
	phases := []PhaseDef{
		{Name: "load"},
		{Name: "scan_network", DependsOn: []string{"load"}},
		{Name: "scan_storage", DependsOn: []string{"load"}},
		{Name: "report", DependsOn: []string{"scan_network", "scan_storage"}},
	}

	plan, err := BuildExecutionPlan(phases)
	require.NoError(t, err)

	require.Len(t, plan.ParallelGroups, 3)
	assert.Equal(t, []string{"load"}, plan.ParallelGroups[0])
	assert.ElementsMatch(t, []string{"scan_network", "scan_storage"}, plan.ParallelGroups[1])
	assert.Equal(t, []string{"report"}, plan.ParallelGroups[2])
}

func TestBuildExecutionPlanCycle(t *testing.T) {
	phases := []PhaseDef{
		{Name: "a", DependsOn: []string{"b"}},
		{Name: "b", DependsOn: []string{"a"}},
	}

	_, err := BuildExecutionPlan(phases)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cycle")
}

func TestBuildExecutionPlanUnknownDependency(t *testing.T) {
	phases := []PhaseDef{
		{Name: "a", DependsOn: []string{"missing"}},
	}

	_, err := BuildExecutionPlan(phases)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown phase")
}

func TestBuildExecutionPlanEmpty(t *testing.T) {
	_, err := BuildExecutionPlan(nil)
	require.Error(t, err)
}

func TestAllFlowTypesPlanCleanly(t *testing.T) {
	for flowType := range flowPhases {
		phases, err := PhasesFor(flowType)
		require.NoError(t, err)

		plan, err := BuildExecutionPlan(phases)
		require.NoError(t, err, "flow type %s", flowType)
		assert.Len(t, plan.Stages, len(phases))
	}
}

func TestNextPhase(t *testing.T) {
	next, err := NextPhase(FlowDiscovery, "import")
	require.NoError(t, err)
	assert.Equal(t, "field_mapping", next)

	next, err = NextPhase(FlowDiscovery, "inventory")
	require.NoError(t, err)
	assert.Empty(t, next, "last phase has no successor")

	_, err = NextPhase(FlowDiscovery, "nonsense")
	require.Error(t, err)
}

func TestCanTransition(t *testing.T) {
	assert.True(t, CanTransition(StatusCreated, StatusRunning))
	assert.True(t, CanTransition(StatusRunning, StatusWaitingInput))
	assert.True(t, CanTransition(StatusWaitingInput, StatusRunning))
	assert.True(t, CanTransition(StatusFailed, StatusRunning))

	assert.False(t, CanTransition(StatusCompleted, StatusRunning))
	assert.False(t, CanTransition(StatusCancelled, StatusRunning))
	assert.False(t, CanTransition(StatusCreated, StatusCompleted))
}
