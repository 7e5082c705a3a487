package orchestration

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"ai-force-assess/internal/agent"
	"ai-force-assess/internal/cmdb"
	"ai-force-assess/internal/datastore"
	"ai-force-assess/internal/inventory"
	"ai-force-assess/internal/questionnaire"
	"ai-force-assess/internal/store"
)

// CrewExecutor implements the phase runners that do real work: CMDB
// processing for discovery, questionnaire handling for collection, and the
// analysis phases for assessment and planning. Crew calls are recorded in
// crew_runs; a nil agent degrades every phase to its rule-based path.
type CrewExecutor struct {
	store datastore.DataStore

	mapper        *cmdb.Mapper
	cleansingCrew *agent.CleansingCrew
	techDebtCrew  *agent.TechDebtCrew
	recommendCrew *agent.RecommendationCrew
}

// NewCrewExecutor builds an executor. ag may be nil.
func NewCrewExecutor(ds datastore.DataStore, ag agent.Agent) *CrewExecutor {
	e := &CrewExecutor{store: ds}
	if ag != nil {
		e.mapper = cmdb.NewMapper(agent.NewFieldMappingCrew(ag))
		e.cleansingCrew = agent.NewCleansingCrew(ag)
		e.techDebtCrew = agent.NewTechDebtCrew(ag)
		e.recommendCrew = agent.NewRecommendationCrew(ag)
	} else {
		e.mapper = cmdb.NewMapper(nil)
	}
	return e
}

// Register binds every runner to its phase.
func (e *CrewExecutor) Register(o *Orchestrator) {
	o.RegisterRunner(FlowDiscovery, "import", PhaseRunnerFunc(e.runImport))
	o.RegisterRunner(FlowDiscovery, "field_mapping", PhaseRunnerFunc(e.runFieldMapping))
	o.RegisterRunner(FlowDiscovery, "cleansing", PhaseRunnerFunc(e.runCleansing))
	o.RegisterRunner(FlowDiscovery, "inventory", PhaseRunnerFunc(e.runInventoryLoad))
	o.RegisterRunner(FlowCollection, "questionnaire", PhaseRunnerFunc(e.runQuestionnaire))
	o.RegisterRunner(FlowCollection, "responses", PhaseRunnerFunc(e.runResponses))
	o.RegisterRunner(FlowCollection, "gap_analysis", PhaseRunnerFunc(e.runGapAnalysis))
	o.RegisterRunner(FlowAssessment, "dependency_analysis", PhaseRunnerFunc(e.runDependencyAnalysis))
	o.RegisterRunner(FlowAssessment, "tech_debt", PhaseRunnerFunc(e.runTechDebt))
	o.RegisterRunner(FlowAssessment, "readiness", PhaseRunnerFunc(e.runReadiness))
	o.RegisterRunner(FlowPlanning, "recommendation", PhaseRunnerFunc(e.runRecommendation))
	o.RegisterRunner(FlowPlanning, "wave_planning", PhaseRunnerFunc(e.runWavePlanning))
	o.RegisterRunner(FlowDecommission, "candidate_review", PhaseRunnerFunc(e.runCandidateReview))
}

// batchForFlow resolves the import batch attached to a discovery flow.
func (e *CrewExecutor) batchForFlow(ctx context.Context, flow *Flow) (*store.ImportBatch, error) {
	child, err := e.store.GetChildFlow(ctx, flow.TenantID, flow.FlowID, string(flow.FlowType))
	if err != nil {
		return nil, fmt.Errorf("failed to load child flow: %w", err)
	}
	if child.BatchID == nil {
		return nil, fmt.Errorf("flow %s has no import batch attached", flow.FlowID)
	}
	return e.store.GetImportBatch(ctx, flow.TenantID, *child.BatchID)
}

// extractFromBatch rebuilds the parsed extract from the batch's raw payload.
func extractFromBatch(batch *store.ImportBatch) (*cmdb.RawExtract, error) {
	extract := &cmdb.RawExtract{Columns: []string(batch.RawColumns)}
	if len(batch.RawRows) > 0 {
		if err := json.Unmarshal([]byte(batch.RawRows), &extract.Rows); err != nil {
			return nil, fmt.Errorf("failed to decode raw rows for batch %s: %w", batch.BatchID, err)
		}
	}
	return extract, nil
}

// recordCrewRun persists one crew invocation. Failures to record are logged,
// never fatal.
func (e *CrewExecutor) recordCrewRun(ctx context.Context, flow *Flow, phase, crew string, promptChars int, raw string, runErr error) {
	run := &store.CrewRun{
		TenantID:    flow.TenantID,
		FlowID:      flow.FlowID,
		Phase:       phase,
		Crew:        crew,
		Status:      "succeeded",
		PromptChars: promptChars,
		RawResponse: raw,
		StartedAt:   time.Now().UTC(),
	}
	now := time.Now().UTC()
	run.FinishedAt = &now
	if runErr != nil {
		run.Status = "failed"
		run.Error = runErr.Error()
	}
	if _, err := e.store.SaveCrewRun(ctx, run); err != nil {
		log.Printf("failed to record %s crew run for flow %s: %v", crew, flow.FlowID, err)
	}
}

// runImport verifies the uploaded batch is attached and visible. The actual
// parsing happened at upload time; this phase gates the rest of discovery on
// the batch row existing.
func (e *CrewExecutor) runImport(ctx context.Context, flow *Flow) (*PhaseResult, error) {
	batch, err := e.batchForFlow(ctx, flow)
	if err != nil {
		return nil, err
	}
	return &PhaseResult{State: store.JSONBMap{
		"batch_id":  batch.BatchID,
		"row_count": batch.RecordCount,
	}}, nil
}

func (e *CrewExecutor) runFieldMapping(ctx context.Context, flow *Flow) (*PhaseResult, error) {
	batch, err := e.batchForFlow(ctx, flow)
	if err != nil {
		return nil, err
	}
	extract, err := extractFromBatch(batch)
	if err != nil {
		return nil, err
	}

	mappings, consult, err := e.mapper.SuggestMappings(ctx, flow.TenantID, batch.BatchID, extract)
	if err != nil {
		return nil, err
	}
	// Only an actual crew call lands in crew_runs; batches the dictionary
	// fully resolves never reach the crew.
	if consult != nil {
		e.recordCrewRun(ctx, flow, "field_mapping", agent.CrewFieldMapping, consult.PromptChars, "", consult.Err)
	}

	if err := e.store.SaveFieldMappings(ctx, mappings); err != nil {
		return nil, err
	}
	if err := e.store.UpdateImportBatchStatus(ctx, flow.TenantID, batch.BatchID, "mapped"); err != nil {
		return nil, err
	}

	mapped := 0
	for _, m := range mappings {
		if m.CanonicalField != "" {
			mapped++
		}
	}
	return &PhaseResult{State: store.JSONBMap{
		"mapped_columns":   mapped,
		"unmapped_columns": len(mappings) - mapped,
	}}, nil
}

func (e *CrewExecutor) runCleansing(ctx context.Context, flow *Flow) (*PhaseResult, error) {
	batch, err := e.batchForFlow(ctx, flow)
	if err != nil {
		return nil, err
	}
	extract, err := extractFromBatch(batch)
	if err != nil {
		return nil, err
	}
	mappings, err := e.store.GetFieldMappings(ctx, flow.TenantID, batch.BatchID)
	if err != nil {
		return nil, err
	}

	assets := cmdb.ApplyMappings(flow.TenantID, batch.BatchID, extract, mappings)
	cleansed, findings := cmdb.Cleanse(flow.TenantID, batch.BatchID, assets)

	// The crew reviews flagged rows and records suggested fixes alongside the
	// rule findings. Suggestions are advisory; nothing is applied here.
	if e.cleansingCrew != nil {
		if flagged := cmdb.FlaggedRowsJSON(cleansed, findings); flagged != "[]" {
			fixes, crewErr := e.cleansingCrew.ProposeFixes(ctx, flagged)
			e.recordCrewRun(ctx, flow, "cleansing", agent.CrewCleansing, len(flagged), "", crewErr)
			if crewErr != nil {
				log.Printf("cleansing crew failed for batch %s, keeping rule findings: %v", batch.BatchID, crewErr)
			}
			for _, fix := range fixes {
				findings = append(findings, store.CleansingFinding{
					TenantID:    flow.TenantID,
					BatchID:     batch.BatchID,
					Hostname:    fix.Hostname,
					Field:       fix.Field,
					Action:      cmdb.ActionSuggest,
					BeforeValue: fix.Before,
					AfterValue:  fix.After,
					Rule:        fix.Reason,
				})
			}
		}
	}

	if err := e.store.SaveCleansingFindings(ctx, findings); err != nil {
		return nil, err
	}
	if err := e.store.UpdateImportBatchStatus(ctx, flow.TenantID, batch.BatchID, "cleansed"); err != nil {
		return nil, err
	}
	return &PhaseResult{State: store.JSONBMap{"cleansing_findings": len(findings)}}, nil
}

func (e *CrewExecutor) runInventoryLoad(ctx context.Context, flow *Flow) (*PhaseResult, error) {
	batch, err := e.batchForFlow(ctx, flow)
	if err != nil {
		return nil, err
	}
	extract, err := extractFromBatch(batch)
	if err != nil {
		return nil, err
	}
	mappings, err := e.store.GetFieldMappings(ctx, flow.TenantID, batch.BatchID)
	if err != nil {
		return nil, err
	}

	mapped := cmdb.ApplyMappings(flow.TenantID, batch.BatchID, extract, mappings)
	cleansed, _ := cmdb.Cleanse(flow.TenantID, batch.BatchID, mapped)

	stored, err := e.store.Inventory().UpsertAssets(ctx, cleansed)
	if err != nil {
		return nil, err
	}
	if err := e.store.UpdateImportBatchStatus(ctx, flow.TenantID, batch.BatchID, "loaded"); err != nil {
		return nil, err
	}
	return &PhaseResult{State: store.JSONBMap{"assets_loaded": len(stored)}}, nil
}

func (e *CrewExecutor) runQuestionnaire(ctx context.Context, flow *Flow) (*PhaseResult, error) {
	// Re-running the phase must not mint a second questionnaire.
	child, err := e.store.GetChildFlow(ctx, flow.TenantID, flow.FlowID, string(flow.FlowType))
	if err != nil {
		return nil, fmt.Errorf("failed to load child flow: %w", err)
	}
	if child.QuestionnaireID != nil {
		return &PhaseResult{State: store.JSONBMap{"questionnaire_id": *child.QuestionnaireID}}, nil
	}

	assets, err := e.store.Inventory().ListAssets(ctx, flow.TenantID, inventory.AssetFilter{})
	if err != nil {
		return nil, err
	}

	q, err := questionnaire.Build(flow.TenantID, &flow.FlowID, nil, assets)
	if err != nil {
		return nil, err
	}
	if q == nil {
		return &PhaseResult{State: store.JSONBMap{"gaps": 0}}, nil
	}

	questionnaireID, err := e.store.CreateQuestionnaire(ctx, q)
	if err != nil {
		return nil, err
	}
	if err := e.store.AttachQuestionnaireToFlow(ctx, flow.TenantID, flow.FlowID, questionnaireID); err != nil {
		return nil, err
	}

	questions, _ := questionnaire.ParseQuestions(q)
	return &PhaseResult{State: store.JSONBMap{
		"questionnaire_id": questionnaireID,
		"gaps":             len(questions),
	}}, nil
}

func (e *CrewExecutor) runResponses(ctx context.Context, flow *Flow) (*PhaseResult, error) {
	q, questions, responses, err := e.questionnaireForFlow(ctx, flow)
	if err != nil {
		return nil, err
	}
	if q == nil {
		return &PhaseResult{State: store.JSONBMap{"completion": 1.0}}, nil
	}

	completion := questionnaire.Completion(questions, responses)
	if completion < 1 {
		return &PhaseResult{
			State:           store.JSONBMap{"completion": completion},
			WaitingForInput: true,
		}, nil
	}
	return &PhaseResult{State: store.JSONBMap{"completion": 1.0}}, nil
}

func (e *CrewExecutor) runGapAnalysis(ctx context.Context, flow *Flow) (*PhaseResult, error) {
	q, questions, responses, err := e.questionnaireForFlow(ctx, flow)
	if err != nil {
		return nil, err
	}
	if q == nil {
		return &PhaseResult{State: store.JSONBMap{"patched_assets": 0}}, nil
	}

	byQuestion := make(map[string]questionnaire.Question, len(questions))
	for _, question := range questions {
		byQuestion[question.QuestionID] = question
	}

	patched := make(map[string]*store.Asset)
	for _, r := range responses {
		question, ok := byQuestion[r.QuestionID]
		if !ok || question.AssetID == "" {
			continue
		}
		a := patched[question.AssetID]
		if a == nil {
			a, err = e.store.Inventory().GetAsset(ctx, flow.TenantID, question.AssetID)
			if err != nil {
				return nil, err
			}
			patched[question.AssetID] = a
		}
		if err := questionnaire.ApplyResponse(a, question, json.RawMessage(r.Answer)); err != nil {
			log.Printf("skipping response %s: %v", r.ResponseID, err)
		}
	}

	var updated []store.Asset
	for _, a := range patched {
		updated = append(updated, *a)
	}
	if len(updated) > 0 {
		if _, err := e.store.Inventory().UpsertAssets(ctx, updated); err != nil {
			return nil, err
		}
	}
	if err := e.store.UpdateQuestionnaireStatus(ctx, flow.TenantID, q.QuestionnaireID, questionnaire.StatusComplete); err != nil {
		return nil, err
	}
	return &PhaseResult{State: store.JSONBMap{"patched_assets": len(updated)}}, nil
}

func (e *CrewExecutor) questionnaireForFlow(ctx context.Context, flow *Flow) (*store.Questionnaire, []questionnaire.Question, []store.QuestionnaireResponse, error) {
	child, err := e.store.GetChildFlow(ctx, flow.TenantID, flow.FlowID, string(flow.FlowType))
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to load child flow: %w", err)
	}
	if child.QuestionnaireID == nil {
		return nil, nil, nil, nil
	}
	q, err := e.store.GetQuestionnaire(ctx, flow.TenantID, *child.QuestionnaireID)
	if err != nil {
		return nil, nil, nil, err
	}
	questions, err := questionnaire.ParseQuestions(q)
	if err != nil {
		return nil, nil, nil, err
	}
	responses, err := e.store.ListQuestionnaireResponses(ctx, flow.TenantID, q.QuestionnaireID)
	if err != nil {
		return nil, nil, nil, err
	}
	return q, questions, responses, nil
}

// graphForTenant loads assets and dependencies and builds the graph.
func (e *CrewExecutor) graphForTenant(ctx context.Context, tenantID string) ([]store.Asset, *inventory.DependencyGraph, error) {
	assets, err := e.store.Inventory().ListAssets(ctx, tenantID, inventory.AssetFilter{})
	if err != nil {
		return nil, nil, err
	}
	deps, err := e.store.Inventory().ListDependencies(ctx, tenantID)
	if err != nil {
		return nil, nil, err
	}
	return assets, inventory.BuildGraph(assets, deps), nil
}

func (e *CrewExecutor) runDependencyAnalysis(ctx context.Context, flow *Flow) (*PhaseResult, error) {
	_, graph, err := e.graphForTenant(ctx, flow.TenantID)
	if err != nil {
		return nil, err
	}

	nodes, edges := graph.Size()
	return &PhaseResult{State: store.JSONBMap{
		"graph_nodes":  nodes,
		"graph_edges":  edges,
		"cyclic_nodes": graph.CyclicNodes(),
	}}, nil
}

func (e *CrewExecutor) runTechDebt(ctx context.Context, flow *Flow) (*PhaseResult, error) {
	assets, _, err := e.graphForTenant(ctx, flow.TenantID)
	if err != nil {
		return nil, err
	}

	total := 0
	for _, a := range assets {
		findings := inventory.AnalyzeTechDebt(a)

		if e.techDebtCrew != nil {
			profile := fmt.Sprintf("Hostname: %s\nOS: %s %s\nEnvironment: %s\nCPU: %d cores, RAM: %d MB",
				a.Hostname, a.OS, a.OSVersion, a.Environment, a.CPUCores, a.MemoryMB)
			items, crewErr := e.techDebtCrew.Assess(ctx, profile)
			e.recordCrewRun(ctx, flow, "tech_debt", agent.CrewTechDebt, len(profile), "", crewErr)
			if crewErr != nil {
				log.Printf("tech debt crew failed for %s, keeping rule findings: %v", a.Hostname, crewErr)
			} else {
				findings = mergeCrewFindings(a, findings, items)
			}
		}

		if err := e.store.Inventory().ReplaceTechDebtFindings(ctx, flow.TenantID, a.AssetID, findings); err != nil {
			return nil, err
		}
		total += len(findings)
	}
	return &PhaseResult{State: store.JSONBMap{"tech_debt_findings": total}}, nil
}

// mergeCrewFindings appends crew items whose category the rules did not
// already cover.
func mergeCrewFindings(a store.Asset, rules []store.TechDebtFinding, items []agent.TechDebtItem) []store.TechDebtFinding {
	covered := make(map[string]bool, len(rules))
	for _, f := range rules {
		covered[f.Category] = true
	}
	for _, item := range items {
		if covered[item.Category] {
			continue
		}
		rules = append(rules, store.TechDebtFinding{
			TenantID:    a.TenantID,
			AssetID:     a.AssetID,
			Category:    item.Category,
			Severity:    item.Severity,
			Description: item.Description,
			Score:       item.Score,
		})
	}
	return rules
}

func (e *CrewExecutor) runReadiness(ctx context.Context, flow *Flow) (*PhaseResult, error) {
	assets, graph, err := e.graphForTenant(ctx, flow.TenantID)
	if err != nil {
		return nil, err
	}
	findings, err := e.store.Inventory().ListTechDebtFindings(ctx, flow.TenantID)
	if err != nil {
		return nil, err
	}

	byAsset := make(map[string][]store.TechDebtFinding)
	for _, f := range findings {
		byAsset[f.AssetID] = append(byAsset[f.AssetID], f)
	}
	cyclic := make(map[string]bool)
	for _, id := range graph.CyclicNodes() {
		cyclic[id] = true
	}

	sum := 0
	for _, a := range assets {
		out, in := graph.DependencyCount(a.AssetID)
		sum += inventory.ReadinessScore(inventory.RecommendationInput{
			Asset:        a,
			DebtScore:    inventory.DebtScore(byAsset[a.AssetID]),
			DependsOn:    out,
			DependedOnBy: in,
			InCycle:      cyclic[a.AssetID],
			Completeness: a.Completeness,
		})
	}
	avg := 0
	if len(assets) > 0 {
		avg = sum / len(assets)
	}
	return &PhaseResult{State: store.JSONBMap{
		"assets_assessed":   len(assets),
		"average_readiness": avg,
	}}, nil
}

func (e *CrewExecutor) runRecommendation(ctx context.Context, flow *Flow) (*PhaseResult, error) {
	assets, graph, err := e.graphForTenant(ctx, flow.TenantID)
	if err != nil {
		return nil, err
	}
	findings, err := e.store.Inventory().ListTechDebtFindings(ctx, flow.TenantID)
	if err != nil {
		return nil, err
	}

	byAsset := make(map[string][]store.TechDebtFinding)
	for _, f := range findings {
		byAsset[f.AssetID] = append(byAsset[f.AssetID], f)
	}
	cyclic := make(map[string]bool)
	for _, id := range graph.CyclicNodes() {
		cyclic[id] = true
	}

	for _, a := range assets {
		out, in := graph.DependencyCount(a.AssetID)
		input := inventory.RecommendationInput{
			Asset:        a,
			DebtScore:    inventory.DebtScore(byAsset[a.AssetID]),
			DependsOn:    out,
			DependedOnBy: in,
			InCycle:      cyclic[a.AssetID],
			Completeness: a.Completeness,
		}
		rec := inventory.Recommend(input)

		if e.recommendCrew != nil {
			summary := fmt.Sprintf("Hostname: %s\nEnvironment: %s\nOS: %s %s\nDebt score: %d\nDepends on: %d, depended on by: %d\nIn dependency cycle: %t",
				a.Hostname, a.Environment, a.OS, a.OSVersion, input.DebtScore, out, in, input.InCycle)
			proposal, crewErr := e.recommendCrew.Propose(ctx, summary)
			e.recordCrewRun(ctx, flow, "recommendation", agent.CrewRecommendation, len(summary), "", crewErr)
			if crewErr != nil {
				log.Printf("recommendation crew failed for %s, keeping rules strategy: %v", a.Hostname, crewErr)
			} else {
				rec.Strategy = proposal.Strategy
				rec.Rationale = proposal.Rationale
				rec.Readiness = proposal.Readiness
				rec.GeneratedBy = "crew"
			}
		}

		if err := e.store.Inventory().ReplaceRecommendation(ctx, rec); err != nil {
			return nil, err
		}
	}
	return &PhaseResult{State: store.JSONBMap{"recommendations": len(assets)}}, nil
}

func (e *CrewExecutor) runWavePlanning(ctx context.Context, flow *Flow) (*PhaseResult, error) {
	_, graph, err := e.graphForTenant(ctx, flow.TenantID)
	if err != nil {
		return nil, err
	}
	groups := graph.MoveGroups()
	return &PhaseResult{State: store.JSONBMap{
		"move_groups": groups,
		"wave_count":  len(groups),
	}}, nil
}

func (e *CrewExecutor) runCandidateReview(ctx context.Context, flow *Flow) (*PhaseResult, error) {
	recs, err := e.store.Inventory().ListRecommendations(ctx, flow.TenantID)
	if err != nil {
		return nil, err
	}
	var candidates []string
	for _, r := range recs {
		if r.Strategy == inventory.StrategyRetire {
			candidates = append(candidates, r.AssetID)
		}
	}
	// signoff stays manual; the flow parks until an operator completes it
	return &PhaseResult{
		State: store.JSONBMap{
			"retire_candidates": candidates,
			"candidate_count":   len(candidates),
		},
		WaitingForInput: true,
	}, nil
}
