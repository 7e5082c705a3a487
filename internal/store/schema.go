package store

// schemaDDL is the full DDL for the assess schema. Master flows own phase
// and status; the child flow tables carry denormalized copies that are only
// ever written inside the same transaction as the master update.
const schemaDDL = `
CREATE SCHEMA IF NOT EXISTS assess;

CREATE TABLE IF NOT EXISTS assess.master_flows (
    id                 UUID PRIMARY KEY DEFAULT gen_random_uuid(),
    flow_id            UUID NOT NULL,
    tenant_id          UUID NOT NULL,
    client_account_id  UUID,
    flow_type          TEXT NOT NULL,
    flow_name          TEXT NOT NULL DEFAULT '',
    current_phase      TEXT NOT NULL,
    status             TEXT NOT NULL,
    phase_state        JSONB,
    execution_plan     JSONB,
    last_error         TEXT,
    created_at         TIMESTAMPTZ NOT NULL DEFAULT now(),
    updated_at         TIMESTAMPTZ NOT NULL DEFAULT now(),
    last_activity      TIMESTAMPTZ NOT NULL DEFAULT now(),
    UNIQUE (tenant_id, flow_id)
);

CREATE TABLE IF NOT EXISTS assess.discovery_flows (
    id               UUID PRIMARY KEY DEFAULT gen_random_uuid(),
    flow_id          UUID NOT NULL,
    tenant_id        UUID NOT NULL,
    current_phase    TEXT NOT NULL,
    status           TEXT NOT NULL,
    batch_id         UUID,
    created_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
    updated_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
    UNIQUE (tenant_id, flow_id),
    FOREIGN KEY (tenant_id, flow_id) REFERENCES assess.master_flows (tenant_id, flow_id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS assess.collection_flows (
    id               UUID PRIMARY KEY DEFAULT gen_random_uuid(),
    flow_id          UUID NOT NULL,
    tenant_id        UUID NOT NULL,
    current_phase    TEXT NOT NULL,
    status           TEXT NOT NULL,
    questionnaire_id UUID,
    created_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
    updated_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
    UNIQUE (tenant_id, flow_id),
    FOREIGN KEY (tenant_id, flow_id) REFERENCES assess.master_flows (tenant_id, flow_id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS assess.flow_phase_history (
    id            UUID PRIMARY KEY DEFAULT gen_random_uuid(),
    flow_id       UUID NOT NULL,
    tenant_id     UUID NOT NULL,
    from_phase    TEXT NOT NULL,
    to_phase      TEXT NOT NULL,
    from_status   TEXT NOT NULL,
    to_status     TEXT NOT NULL,
    reason        TEXT NOT NULL DEFAULT '',
    actor         TEXT NOT NULL DEFAULT 'system',
    created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_flow_phase_history_flow
    ON assess.flow_phase_history (tenant_id, flow_id, created_at);

CREATE TABLE IF NOT EXISTS assess.import_batches (
    batch_id     UUID PRIMARY KEY DEFAULT gen_random_uuid(),
    tenant_id    UUID NOT NULL,
    flow_id      UUID,
    source_name  TEXT NOT NULL,
    format       TEXT NOT NULL,
    record_count INTEGER NOT NULL DEFAULT 0,
    status       TEXT NOT NULL DEFAULT 'received',
    raw_columns  JSONB,
    raw_rows     JSONB,
    created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
    updated_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS assess.field_mappings (
    mapping_id      UUID PRIMARY KEY DEFAULT gen_random_uuid(),
    tenant_id       UUID NOT NULL,
    batch_id        UUID NOT NULL REFERENCES assess.import_batches (batch_id) ON DELETE CASCADE,
    source_column   TEXT NOT NULL,
    canonical_field TEXT NOT NULL,
    confidence      DOUBLE PRECISION NOT NULL DEFAULT 0,
    method          TEXT NOT NULL,
    confirmed       BOOLEAN NOT NULL DEFAULT FALSE,
    created_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
    UNIQUE (batch_id, source_column)
);

CREATE TABLE IF NOT EXISTS assess.cleansing_findings (
    finding_id   UUID PRIMARY KEY DEFAULT gen_random_uuid(),
    tenant_id    UUID NOT NULL,
    batch_id     UUID NOT NULL REFERENCES assess.import_batches (batch_id) ON DELETE CASCADE,
    hostname     TEXT NOT NULL DEFAULT '',
    field        TEXT NOT NULL,
    action       TEXT NOT NULL,
    before_value TEXT NOT NULL DEFAULT '',
    after_value  TEXT NOT NULL DEFAULT '',
    rule         TEXT NOT NULL DEFAULT '',
    created_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS assess.assets (
    asset_id     UUID PRIMARY KEY DEFAULT gen_random_uuid(),
    tenant_id    UUID NOT NULL,
    batch_id     UUID,
    name         TEXT NOT NULL DEFAULT '',
    hostname     TEXT NOT NULL DEFAULT '',
    ip_address   TEXT NOT NULL DEFAULT '',
    os           TEXT NOT NULL DEFAULT '',
    os_version   TEXT NOT NULL DEFAULT '',
    environment  TEXT NOT NULL DEFAULT '',
    cpu_cores    INTEGER NOT NULL DEFAULT 0,
    memory_mb    INTEGER NOT NULL DEFAULT 0,
    storage_gb   INTEGER NOT NULL DEFAULT 0,
    application  TEXT NOT NULL DEFAULT '',
    owner        TEXT NOT NULL DEFAULT '',
    location     TEXT NOT NULL DEFAULT '',
    status       TEXT NOT NULL DEFAULT 'active',
    tags         TEXT[],
    attributes   JSONB,
    completeness DOUBLE PRECISION NOT NULL DEFAULT 0,
    created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
    updated_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
    UNIQUE (tenant_id, hostname, ip_address)
);

CREATE TABLE IF NOT EXISTS assess.asset_dependencies (
    dependency_id   UUID PRIMARY KEY DEFAULT gen_random_uuid(),
    tenant_id       UUID NOT NULL,
    source_asset_id UUID NOT NULL REFERENCES assess.assets (asset_id) ON DELETE CASCADE,
    target_asset_id UUID NOT NULL REFERENCES assess.assets (asset_id) ON DELETE CASCADE,
    dep_type        TEXT NOT NULL DEFAULT 'network',
    created_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
    UNIQUE (tenant_id, source_asset_id, target_asset_id, dep_type)
);

CREATE TABLE IF NOT EXISTS assess.adaptive_questionnaires (
    questionnaire_id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
    tenant_id        UUID NOT NULL,
    flow_id          UUID,
    batch_id         UUID,
    status           TEXT NOT NULL DEFAULT 'open',
    questions        JSONB,
    created_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
    updated_at       TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS assess.questionnaire_responses (
    response_id      UUID PRIMARY KEY DEFAULT gen_random_uuid(),
    tenant_id        UUID NOT NULL,
    questionnaire_id UUID NOT NULL REFERENCES assess.adaptive_questionnaires (questionnaire_id) ON DELETE CASCADE,
    question_id      TEXT NOT NULL,
    asset_id         UUID,
    answer           JSONB,
    answered_by      TEXT NOT NULL DEFAULT '',
    created_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
    UNIQUE (questionnaire_id, question_id)
);

CREATE TABLE IF NOT EXISTS assess.tech_debt_findings (
    finding_id  UUID PRIMARY KEY DEFAULT gen_random_uuid(),
    tenant_id   UUID NOT NULL,
    asset_id    UUID NOT NULL REFERENCES assess.assets (asset_id) ON DELETE CASCADE,
    category    TEXT NOT NULL,
    severity    TEXT NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    score       INTEGER NOT NULL DEFAULT 0,
    created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS assess.recommendations (
    recommendation_id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
    tenant_id         UUID NOT NULL,
    asset_id          UUID NOT NULL REFERENCES assess.assets (asset_id) ON DELETE CASCADE,
    strategy          TEXT NOT NULL,
    rationale         TEXT NOT NULL DEFAULT '',
    readiness         INTEGER NOT NULL DEFAULT 0,
    generated_by      TEXT NOT NULL DEFAULT 'rules',
    created_at        TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS assess.crew_runs (
    run_id       UUID PRIMARY KEY DEFAULT gen_random_uuid(),
    tenant_id    UUID NOT NULL,
    flow_id      UUID NOT NULL,
    phase        TEXT NOT NULL,
    crew         TEXT NOT NULL,
    status       TEXT NOT NULL DEFAULT 'running',
    prompt_chars INTEGER NOT NULL DEFAULT 0,
    raw_response TEXT NOT NULL DEFAULT '',
    error        TEXT NOT NULL DEFAULT '',
    started_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
    finished_at  TIMESTAMPTZ
);
`
