package orchestration

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ai-force-assess/internal/agent"
	"ai-force-assess/internal/inventory"
	"ai-force-assess/internal/store"
)

func newExecutorHarness(t *testing.T) *Orchestrator {
	t.Helper()
	o := newTestOrchestrator(t)
	NewCrewExecutor(o.Store(), agent.NewMockAgent()).Register(o)
	return o
}

func mustAdvance(t *testing.T, o *Orchestrator, flowID string) *Flow {
	t.Helper()
	f, err := o.AdvancePhase(context.Background(), testTenant, flowID, ActorUser)
	require.NoError(t, err)
	if f.LastError != nil {
		t.Fatalf("phase %s failed: %s", f.CurrentPhase, *f.LastError)
	}
	return f
}

func TestDiscoveryPipeline(t *testing.T) {
	o := newExecutorHarness(t)
	ctx := context.Background()

	rows := []map[string]string{
		{"Server Name": "WEB-01", "IP Address": "10.0.0.1", "Operating System": "Windows Server 2016", "Env": "Prod", "Machine Contact": "ops"},
		{"Server Name": "DB-01", "IP Address": "10.0.0.2", "Operating System": "RHEL 8", "Env": "Prod", "Machine Contact": "dba"},
	}
	rowsJSON, err := json.Marshal(rows)
	require.NoError(t, err)

	flow, err := o.CreateFlow(ctx, testTenant, "discovery", "cmdb import")
	require.NoError(t, err)

	batchID, err := o.Store().CreateImportBatch(ctx, &store.ImportBatch{
		TenantID:    testTenant,
		SourceName:  "cmdb-export.csv",
		Format:      "csv",
		RecordCount: len(rows),
		Status:      "received",
		RawColumns:  store.JSONBStringArray{"Server Name", "IP Address", "Operating System", "Env", "Machine Contact"},
		RawRows:     store.JSONBRaw(rowsJSON),
	})
	require.NoError(t, err)
	require.NoError(t, o.Store().AttachBatchToFlow(ctx, testTenant, flow.FlowID, batchID))

	f := mustAdvance(t, o, flow.FlowID) // import
	assert.Equal(t, "import", f.CurrentPhase)

	f = mustAdvance(t, o, flow.FlowID) // field_mapping
	assert.Equal(t, "field_mapping", f.CurrentPhase)
	mappings, err := o.Store().GetFieldMappings(ctx, testTenant, batchID)
	require.NoError(t, err)
	byColumn := make(map[string]store.FieldMapping)
	for _, m := range mappings {
		byColumn[m.SourceColumn] = m
	}
	assert.Equal(t, "hostname", byColumn["Server Name"].CanonicalField)
	// Machine Contact has no dictionary entry; the crew resolves it.
	assert.Equal(t, "owner", byColumn["Machine Contact"].CanonicalField)

	mustAdvance(t, o, flow.FlowID) // cleansing
	batch, err := o.Store().GetImportBatch(ctx, testTenant, batchID)
	require.NoError(t, err)
	assert.Equal(t, "cleansed", batch.Status)

	f = mustAdvance(t, o, flow.FlowID) // inventory: last phase completes the flow
	assert.Equal(t, StatusCompleted, f.Status)
	assert.EqualValues(t, 2, f.PhaseState["assets_loaded"])

	batch, err = o.Store().GetImportBatch(ctx, testTenant, batchID)
	require.NoError(t, err)
	assert.Equal(t, "loaded", batch.Status)

	assets, err := o.Store().Inventory().ListAssets(ctx, testTenant, inventory.AssetFilter{})
	require.NoError(t, err)
	require.Len(t, assets, 2)
	byHost := make(map[string]store.Asset)
	for _, a := range assets {
		byHost[a.Hostname] = a
	}
	web := byHost["web-01"]
	assert.Equal(t, "production", web.Environment)
	assert.Equal(t, "Windows Server", web.OS)
	assert.Equal(t, "2016", web.OSVersion)
	assert.Equal(t, "ops", web.Owner)
}

func TestCollectionPipeline(t *testing.T) {
	o := newExecutorHarness(t)
	ctx := context.Background()

	seeded, err := o.Store().Inventory().UpsertAssets(ctx, []store.Asset{{
		TenantID:     testTenant,
		Hostname:     "app-01",
		IPAddress:    "10.0.1.1",
		OS:           "RHEL",
		OSVersion:    "8",
		Environment:  "production",
		CPUCores:     4,
		MemoryMB:     8192,
		Status:       "discovered",
		Completeness: 0.7,
	}})
	require.NoError(t, err)
	require.Len(t, seeded, 1)

	flow, err := o.CreateFlow(ctx, testTenant, "collection", "fill the gaps")
	require.NoError(t, err)

	f := mustAdvance(t, o, flow.FlowID) // questionnaire built
	assert.EqualValues(t, 2, f.PhaseState["gaps"], "owner and application are missing")

	f = mustAdvance(t, o, flow.FlowID) // responses: parked, nothing answered
	assert.Equal(t, StatusWaitingInput, f.Status)
	assert.Equal(t, "responses", f.CurrentPhase)

	// Answer every open question.
	child, err := o.Store().GetChildFlow(ctx, testTenant, flow.FlowID, "collection")
	require.NoError(t, err)
	require.NotNil(t, child.QuestionnaireID)
	q, err := o.Store().GetQuestionnaire(ctx, testTenant, *child.QuestionnaireID)
	require.NoError(t, err)

	var questions []struct {
		QuestionID string `json:"question_id"`
		Field      string `json:"field"`
	}
	require.NoError(t, json.Unmarshal([]byte(q.Questions), &questions))
	answers := map[string]string{"owner": `"platform-team"`, "application": `"billing"`}
	for _, question := range questions {
		require.NoError(t, o.Store().SaveQuestionnaireResponse(ctx, &store.QuestionnaireResponse{
			TenantID:        testTenant,
			QuestionnaireID: q.QuestionnaireID,
			QuestionID:      question.QuestionID,
			Answer:          store.JSONBRaw(answers[question.Field]),
			AnsweredBy:      "user",
		}))
	}

	f = mustAdvance(t, o, flow.FlowID) // responses complete
	assert.Equal(t, StatusRunning, f.Status)
	assert.EqualValues(t, 1.0, f.PhaseState["completion"])

	f = mustAdvance(t, o, flow.FlowID) // gap_analysis patches assets, flow done
	assert.Equal(t, StatusCompleted, f.Status)

	patched, err := o.Store().Inventory().GetAsset(ctx, testTenant, seeded[0].AssetID)
	require.NoError(t, err)
	assert.Equal(t, "platform-team", patched.Owner)
	assert.Equal(t, "billing", patched.Application)

	final, err := o.Store().GetQuestionnaire(ctx, testTenant, *child.QuestionnaireID)
	require.NoError(t, err)
	assert.Equal(t, "complete", final.Status)
}

func TestAssessmentAndPlanningPipelines(t *testing.T) {
	o := newExecutorHarness(t)
	ctx := context.Background()

	seeded, err := o.Store().Inventory().UpsertAssets(ctx, []store.Asset{
		{
			TenantID: testTenant, Hostname: "legacy-01", IPAddress: "10.0.2.1",
			OS: "Windows Server", OSVersion: "2008 R2", Environment: "production",
			CPUCores: 2, MemoryMB: 4096, Owner: "ops", Application: "erp",
			Status: "discovered", Completeness: 0.9,
		},
		{
			TenantID: testTenant, Hostname: "app-02", IPAddress: "10.0.2.2",
			OS: "RHEL", OSVersion: "9", Environment: "production",
			CPUCores: 8, MemoryMB: 16384, Owner: "ops", Application: "erp",
			Status: "discovered", Completeness: 0.9,
		},
	})
	require.NoError(t, err)
	require.NoError(t, o.Store().Inventory().SaveDependencies(ctx, []store.AssetDependency{{
		TenantID:      testTenant,
		SourceAssetID: seeded[1].AssetID,
		TargetAssetID: seeded[0].AssetID,
		DepType:       "application",
	}}))

	assess, err := o.CreateFlow(ctx, testTenant, "assessment", "assess estate")
	require.NoError(t, err)

	f := mustAdvance(t, o, assess.FlowID) // dependency_analysis
	assert.EqualValues(t, 2, f.PhaseState["graph_nodes"])
	assert.EqualValues(t, 1, f.PhaseState["graph_edges"])

	mustAdvance(t, o, assess.FlowID) // tech_debt
	findings, err := o.Store().Inventory().ListTechDebtFindings(ctx, testTenant)
	require.NoError(t, err)
	require.NotEmpty(t, findings)
	var sawEOL bool
	for _, finding := range findings {
		if finding.Category == inventory.CategoryEOLOS {
			sawEOL = true
		}
	}
	assert.True(t, sawEOL, "Windows Server 2008 must surface an EOL finding")

	f = mustAdvance(t, o, assess.FlowID) // readiness completes the flow
	assert.Equal(t, StatusCompleted, f.Status)
	assert.EqualValues(t, 2, f.PhaseState["assets_assessed"])

	plan, err := o.CreateFlow(ctx, testTenant, "planning", "plan waves")
	require.NoError(t, err)

	mustAdvance(t, o, plan.FlowID) // recommendation
	recs, err := o.Store().Inventory().ListRecommendations(ctx, testTenant)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	for _, rec := range recs {
		assert.Equal(t, "crew", rec.GeneratedBy)
		assert.Contains(t, []string{
			inventory.StrategyRehost, inventory.StrategyReplatform, inventory.StrategyRefactor,
			inventory.StrategyRepurchase, inventory.StrategyRetire, inventory.StrategyRetain,
		}, rec.Strategy)
	}

	f = mustAdvance(t, o, plan.FlowID) // wave_planning completes the flow
	assert.Equal(t, StatusCompleted, f.Status)
	assert.EqualValues(t, 1, f.PhaseState["wave_count"], "one connected component, one wave")
}

func TestDecommissionCandidateReview(t *testing.T) {
	o := newExecutorHarness(t)
	ctx := context.Background()

	seeded, err := o.Store().Inventory().UpsertAssets(ctx, []store.Asset{{
		TenantID: testTenant, Hostname: "old-01", IPAddress: "10.0.3.1",
		OS: "CentOS", OSVersion: "6", Environment: "development",
		Status: "retired", Completeness: 0.5,
	}})
	require.NoError(t, err)
	require.NoError(t, o.Store().Inventory().ReplaceRecommendation(ctx, store.Recommendation{
		TenantID:    testTenant,
		AssetID:     seeded[0].AssetID,
		Strategy:    inventory.StrategyRetire,
		Rationale:   "already retired",
		GeneratedBy: "rules",
	}))

	flow, err := o.CreateFlow(ctx, testTenant, "decommission", "retire wave")
	require.NoError(t, err)

	f := mustAdvance(t, o, flow.FlowID)
	assert.Equal(t, StatusWaitingInput, f.Status, "signoff needs a human")
	assert.EqualValues(t, 1, f.PhaseState["candidate_count"])

	// An operator signs off manually.
	f, err = o.CompletePhase(ctx, testTenant, flow.FlowID, ActorUser, "approved")
	require.NoError(t, err)
	assert.Equal(t, "signoff", f.CurrentPhase)
	f, err = o.CompletePhase(ctx, testTenant, flow.FlowID, ActorUser, "decommission executed")
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, f.Status)
}
