package cli

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"ai-force-assess/internal/orchestration"
)

// FlowCommand creates the flow command group.
func FlowCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "flow",
		Short: "Create and drive master flows",
		Long: `Manage master flows: discovery, collection, assessment, planning and
decommission. Each flow walks a fixed phase machine; advance runs the
current phase's crews and moves on when it completes.`,
	}

	cmd.AddCommand(
		flowCreateCommand(opts),
		flowListCommand(opts),
		flowStatusCommand(opts),
		flowAdvanceCommand(opts),
		flowCleanupCommand(opts),
	)

	return cmd
}

func flowCreateCommand(opts *rootOptions) *cobra.Command {
	var (
		flowType string
		flowName string
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a new master flow",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !orchestration.ValidFlowType(flowType) {
				return fmt.Errorf("unknown flow type %q (valid: discovery, collection, assessment, planning, decommission)", flowType)
			}
			return withOrchestrator(opts, func(ctx context.Context, orch *orchestration.Orchestrator) error {
				flow, err := orch.CreateFlow(ctx, opts.tenantID, flowType, flowName)
				if err != nil {
					return err
				}
				fmt.Printf("✅ Created %s flow %s (phase %s)\n", flow.FlowType, flow.FlowID, flow.CurrentPhase)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&flowType, "type", "", "Flow type: discovery, collection, assessment, planning, decommission")
	cmd.Flags().StringVar(&flowName, "name", "", "Human-readable flow name")
	cmd.MarkFlagRequired("type")

	return cmd
}

func flowListCommand(opts *rootOptions) *cobra.Command {
	var flowType string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List master flows for the tenant",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withOrchestrator(opts, func(ctx context.Context, orch *orchestration.Orchestrator) error {
				flows, err := orch.ListFlows(ctx, opts.tenantID, flowType)
				if err != nil {
					return err
				}
				if len(flows) == 0 {
					fmt.Println("No flows found")
					return nil
				}
				sort.Slice(flows, func(i, j int) bool {
					return flows[i].CreatedAt.After(flows[j].CreatedAt)
				})
				fmt.Printf("%-36s  %-12s  %-20s  %-13s  %s\n", "FLOW ID", "TYPE", "PHASE", "STATUS", "NAME")
				for _, f := range flows {
					fmt.Printf("%-36s  %-12s  %-20s  %-13s  %s\n",
						f.FlowID, f.FlowType, f.CurrentPhase, f.Status, truncate(f.FlowName, 40))
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&flowType, "type", "", "Filter by flow type")

	return cmd
}

func flowStatusCommand(opts *rootOptions) *cobra.Command {
	var (
		flowID  string
		history bool
	)

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show one flow's phase, status and state",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withOrchestrator(opts, func(ctx context.Context, orch *orchestration.Orchestrator) error {
				flow, err := orch.GetFlow(ctx, opts.tenantID, flowID)
				if err != nil {
					return err
				}
				printFlow(flow)
				if !history {
					return nil
				}
				entries, err := orch.GetHistory(ctx, opts.tenantID, flowID)
				if err != nil {
					return err
				}
				fmt.Println("\nHistory:")
				for _, e := range entries {
					fmt.Printf("  %s  %s/%s -> %s/%s  [%s] %s\n",
						e.At.Format(time.RFC3339), e.FromPhase, e.FromStatus, e.ToPhase, e.ToStatus, e.Actor, e.Reason)
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&flowID, "flow-id", "", "Flow ID (required)")
	cmd.Flags().BoolVar(&history, "history", false, "Include the phase transition history")
	cmd.MarkFlagRequired("flow-id")

	return cmd
}

func flowAdvanceCommand(opts *rootOptions) *cobra.Command {
	var flowID string

	cmd := &cobra.Command{
		Use:   "advance",
		Short: "Run the flow's current phase and advance it",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withOrchestrator(opts, func(ctx context.Context, orch *orchestration.Orchestrator) error {
				flow, err := orch.AdvancePhase(ctx, opts.tenantID, flowID, orchestration.ActorUser)
				if err != nil {
					return err
				}
				fmt.Printf("Flow %s is now %s/%s\n", flow.FlowID, flow.CurrentPhase, flow.Status)
				if flow.LastError != nil {
					fmt.Printf("  last error: %s\n", *flow.LastError)
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&flowID, "flow-id", "", "Flow ID (required)")
	cmd.MarkFlagRequired("flow-id")

	return cmd
}

func flowCleanupCommand(opts *rootOptions) *cobra.Command {
	var olderThan time.Duration

	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Delete terminal flows older than a retention window",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withOrchestrator(opts, func(ctx context.Context, orch *orchestration.Orchestrator) error {
				removed, err := orch.CleanupStaleFlows(ctx, opts.tenantID, olderThan)
				if err != nil {
					return err
				}
				fmt.Printf("✅ Removed %d stale flows\n", removed)
				return nil
			})
		},
	}

	cmd.Flags().DurationVar(&olderThan, "older-than", 30*24*time.Hour, "Retention window for completed/failed/cancelled flows")

	return cmd
}

// withOrchestrator opens the data store, wires the crews, runs fn, and tears
// everything down.
func withOrchestrator(opts *rootOptions, fn func(context.Context, *orchestration.Orchestrator) error) error {
	ds, err := opts.openDataStore()
	if err != nil {
		return fmt.Errorf("connecting data store: %w", err)
	}
	defer ds.Close()

	ctx := context.Background()
	ag := buildAgent(ctx)
	defer ag.Close()

	orch := orchestration.NewOrchestrator(ds)
	orchestration.NewCrewExecutor(ds, ag).Register(orch)
	return fn(ctx, orch)
}

func printFlow(f *orchestration.Flow) {
	fmt.Printf("Flow:    %s\n", f.FlowID)
	fmt.Printf("Type:    %s\n", f.FlowType)
	fmt.Printf("Name:    %s\n", f.FlowName)
	fmt.Printf("Phase:   %s\n", f.CurrentPhase)
	fmt.Printf("Status:  %s\n", f.Status)
	fmt.Printf("Updated: %s\n", f.UpdatedAt.Format(time.RFC3339))
	if f.LastError != nil {
		fmt.Printf("Error:   %s\n", *f.LastError)
	}
	if len(f.PhaseState) > 0 {
		keys := make([]string, 0, len(f.PhaseState))
		for k := range f.PhaseState {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		fmt.Println("State:")
		for _, k := range keys {
			fmt.Printf("  %s: %v\n", k, f.PhaseState[k])
		}
	}
}

// truncate shortens s for table display.
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return strings.TrimSpace(s[:max-3]) + "..."
}
