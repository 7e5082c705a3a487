package store

import (
	"time"
)

// MasterFlowRecord is the master orchestrator row for a flow. It is the
// single source of truth for phase and status; child flow rows mirror the
// two columns but are never read for them.
//
// Every flow carries two identifiers: ID is the surrogate primary key and
// FlowID is the business key. Only FlowID crosses the store boundary; child
// tables and the API reference flows exclusively by it.
type MasterFlowRecord struct {
	ID              string    `json:"-"`
	FlowID          string    `json:"flow_id"`
	TenantID        string    `json:"tenant_id"`
	ClientAccountID *string   `json:"client_account_id,omitempty"`
	FlowType        string    `json:"flow_type"`
	FlowName        string    `json:"flow_name"`
	CurrentPhase    string    `json:"current_phase"`
	Status          string    `json:"status"`
	PhaseState      JSONBMap  `json:"phase_state,omitempty"`
	ExecutionPlan   JSONBRaw  `json:"execution_plan,omitempty"`
	LastError       *string   `json:"last_error,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
	LastActivity    time.Time `json:"last_activity"`
}

// ChildFlowRecord is a per-flow-type child row (discovery_flows or
// collection_flows). Phase and status are denormalized mirrors of the master
// row, written in the same transaction.
type ChildFlowRecord struct {
	ID              string    `json:"-"`
	FlowID          string    `json:"flow_id"`
	TenantID        string    `json:"tenant_id"`
	CurrentPhase    string    `json:"current_phase"`
	Status          string    `json:"status"`
	BatchID         *string   `json:"batch_id,omitempty"`         // discovery: import batch
	QuestionnaireID *string   `json:"questionnaire_id,omitempty"` // collection: questionnaire
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// PhaseTransitionRecord is one row of flow_phase_history.
type PhaseTransitionRecord struct {
	FlowID     string    `json:"flow_id"`
	TenantID   string    `json:"tenant_id"`
	FromPhase  string    `json:"from_phase"`
	ToPhase    string    `json:"to_phase"`
	FromStatus string    `json:"from_status"`
	ToStatus   string    `json:"to_status"`
	Reason     string    `json:"reason,omitempty"`
	Actor      string    `json:"actor,omitempty"` // user, crew, system
	CreatedAt  time.Time `json:"created_at"`
}

// Asset is one row of the canonical asset inventory.
type Asset struct {
	AssetID      string    `json:"asset_id" db:"asset_id"`
	TenantID     string    `json:"tenant_id" db:"tenant_id"`
	BatchID      *string   `json:"batch_id,omitempty" db:"batch_id"`
	Name         string    `json:"name" db:"name"`
	Hostname     string    `json:"hostname" db:"hostname"`
	IPAddress    string    `json:"ip_address" db:"ip_address"`
	OS           string    `json:"os" db:"os"`
	OSVersion    string    `json:"os_version" db:"os_version"`
	Environment  string    `json:"environment" db:"environment"`
	CPUCores     int       `json:"cpu_cores" db:"cpu_cores"`
	MemoryMB     int       `json:"memory_mb" db:"memory_mb"`
	StorageGB    int       `json:"storage_gb" db:"storage_gb"`
	Application  string    `json:"application" db:"application"`
	Owner        string    `json:"owner" db:"owner"`
	Location     string    `json:"location" db:"location"`
	Status       string    `json:"status" db:"status"`
	Tags         []string  `json:"tags" db:"-"`
	Attributes   JSONBMap  `json:"attributes,omitempty" db:"attributes"`
	Completeness float64   `json:"completeness" db:"completeness"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"`
}

// AssetDependency is a directed edge: source depends on target.
type AssetDependency struct {
	DependencyID  string    `json:"dependency_id" db:"dependency_id"`
	TenantID      string    `json:"tenant_id" db:"tenant_id"`
	SourceAssetID string    `json:"source_asset_id" db:"source_asset_id"`
	TargetAssetID string    `json:"target_asset_id" db:"target_asset_id"`
	DepType       string    `json:"dep_type" db:"dep_type"` // network, application, data
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
}

// ImportBatch is one CMDB import.
type ImportBatch struct {
	BatchID     string           `json:"batch_id"`
	TenantID    string           `json:"tenant_id"`
	FlowID      *string          `json:"flow_id,omitempty"`
	SourceName  string           `json:"source_name"`
	Format      string           `json:"format"` // csv, json
	RecordCount int              `json:"record_count"`
	Status      string           `json:"status"` // received, mapped, cleansed, loaded
	RawColumns  JSONBStringArray `json:"raw_columns"`
	RawRows     JSONBRaw         `json:"raw_rows,omitempty"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
}

// FieldMapping is a suggested or confirmed mapping from a source CMDB column
// to a canonical inventory field.
type FieldMapping struct {
	MappingID      string    `json:"mapping_id"`
	TenantID       string    `json:"tenant_id"`
	BatchID        string    `json:"batch_id"`
	SourceColumn   string    `json:"source_column"`
	CanonicalField string    `json:"canonical_field"`
	Confidence     float64   `json:"confidence"`
	Method         string    `json:"method"` // exact, normalized, synonym, crew, manual
	Confirmed      bool      `json:"confirmed"`
	CreatedAt      time.Time `json:"created_at"`
}

// CleansingFinding records one change the cleansing pipeline made (or
// proposes) to an imported record.
type CleansingFinding struct {
	FindingID   string    `json:"finding_id"`
	TenantID    string    `json:"tenant_id"`
	BatchID     string    `json:"batch_id"`
	Hostname    string    `json:"hostname"`
	Field       string    `json:"field"`
	Action      string    `json:"action"` // normalize, dedupe, default, flag
	BeforeValue string    `json:"before_value"`
	AfterValue  string    `json:"after_value"`
	Rule        string    `json:"rule"`
	CreatedAt   time.Time `json:"created_at"`
}

// Questionnaire is an adaptive questionnaire generated from inventory gaps.
type Questionnaire struct {
	QuestionnaireID string    `json:"questionnaire_id"`
	TenantID        string    `json:"tenant_id"`
	FlowID          *string   `json:"flow_id,omitempty"`
	BatchID         *string   `json:"batch_id,omitempty"`
	Status          string    `json:"status"` // open, in_progress, complete
	Questions       JSONBRaw  `json:"questions"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// QuestionnaireResponse is one answered question.
type QuestionnaireResponse struct {
	ResponseID      string    `json:"response_id"`
	TenantID        string    `json:"tenant_id"`
	QuestionnaireID string    `json:"questionnaire_id"`
	QuestionID      string    `json:"question_id"`
	AssetID         *string   `json:"asset_id,omitempty"`
	Answer          JSONBRaw  `json:"answer"`
	AnsweredBy      string    `json:"answered_by"`
	CreatedAt       time.Time `json:"created_at"`
}

// TechDebtFinding is one identified technical-debt item on an asset.
type TechDebtFinding struct {
	FindingID   string    `json:"finding_id" db:"finding_id"`
	TenantID    string    `json:"tenant_id" db:"tenant_id"`
	AssetID     string    `json:"asset_id" db:"asset_id"`
	Category    string    `json:"category" db:"category"` // eol_os, outdated_version, unsupported_middleware
	Severity    string    `json:"severity" db:"severity"` // low, medium, high, critical
	Description string    `json:"description" db:"description"`
	Score       int       `json:"score" db:"score"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

// Recommendation is a per-asset migration recommendation.
type Recommendation struct {
	RecommendationID string    `json:"recommendation_id" db:"recommendation_id"`
	TenantID         string    `json:"tenant_id" db:"tenant_id"`
	AssetID          string    `json:"asset_id" db:"asset_id"`
	Strategy         string    `json:"strategy" db:"strategy"` // rehost, replatform, refactor, repurchase, retire, retain
	Rationale        string    `json:"rationale" db:"rationale"`
	Readiness        int       `json:"readiness" db:"readiness"` // 0-100
	GeneratedBy      string    `json:"generated_by" db:"generated_by"` // rules, crew
	CreatedAt        time.Time `json:"created_at" db:"created_at"`
}

// CrewRun records one invocation of an LLM crew against a flow phase.
type CrewRun struct {
	RunID       string     `json:"run_id"`
	TenantID    string     `json:"tenant_id"`
	FlowID      string     `json:"flow_id"`
	Phase       string     `json:"phase"`
	Crew        string     `json:"crew"`
	Status      string     `json:"status"` // running, succeeded, failed
	PromptChars int        `json:"prompt_chars"`
	RawResponse string     `json:"raw_response,omitempty"`
	Error       string     `json:"error,omitempty"`
	StartedAt   time.Time  `json:"started_at"`
	FinishedAt  *time.Time `json:"finished_at,omitempty"`
}
