package orchestration

import (
	"fmt"
	"sort"
	"time"
)

// ExecutionPlan captures the order the phases of a flow will run in,
// including which phases could run in parallel.
type ExecutionPlan struct {
	Stages         []ExecutionStage    `json:"stages"`
	Dependencies   map[string][]string `json:"dependencies"`
	ParallelGroups [][]string          `json:"parallel_groups"`
	CreatedAt      time.Time           `json:"created_at"`
}

// ExecutionStage is one step of the plan.
type ExecutionStage struct {
	Name          string   `json:"name"`
	Prerequisites []string `json:"prerequisites,omitempty"`
}

// BuildExecutionPlan orders phases by repeatedly extracting the ready set:
// phases whose dependencies have all been scheduled. Each extraction round
// becomes a parallel group. A round that extracts nothing means the
// dependency map has a cycle.
func BuildExecutionPlan(phases []PhaseDef) (*ExecutionPlan, error) {
	if len(phases) == 0 {
		return nil, fmt.Errorf("cannot build a plan with no phases")
	}

	deps := make(map[string][]string, len(phases))
	for _, p := range phases {
		deps[p.Name] = p.DependsOn
	}
	for name, prereqs := range deps {
		for _, pre := range prereqs {
			if _, ok := deps[pre]; !ok {
				return nil, fmt.Errorf("phase %q depends on unknown phase %q", name, pre)
			}
		}
	}

	plan := &ExecutionPlan{
		Dependencies: deps,
		CreatedAt:    time.Now().UTC(),
	}

	scheduled := make(map[string]bool, len(phases))
	remaining := len(phases)
	for remaining > 0 {
		var ready []string
		for _, p := range phases {
			if scheduled[p.Name] {
				continue
			}
			ok := true
			for _, pre := range p.DependsOn {
				if !scheduled[pre] {
					ok = false
					break
				}
			}
			if ok {
				ready = append(ready, p.Name)
			}
		}
		if len(ready) == 0 {
			var stuck []string
			for _, p := range phases {
				if !scheduled[p.Name] {
					stuck = append(stuck, p.Name)
				}
			}
			sort.Strings(stuck)
			return nil, fmt.Errorf("phase dependency cycle involving %v", stuck)
		}

		plan.ParallelGroups = append(plan.ParallelGroups, ready)
		for _, name := range ready {
			scheduled[name] = true
			remaining--
			plan.Stages = append(plan.Stages, ExecutionStage{
				Name:          name,
				Prerequisites: deps[name],
			})
		}
	}
	return plan, nil
}
