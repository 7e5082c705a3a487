package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// Crew names as persisted in crew run records.
const (
	CrewFieldMapping   = "field_mapping"
	CrewCleansing      = "cleansing"
	CrewTechDebt       = "tech_debt"
	CrewRecommendation = "recommendation"
)

// FieldMappingSuggestion is one proposed column mapping from the crew.
type FieldMappingSuggestion struct {
	SourceColumn   string  `json:"source_column"`
	CanonicalField string  `json:"canonical_field"`
	Confidence     float64 `json:"confidence"`
}

// FieldMappingCrew maps raw CMDB columns onto canonical inventory fields.
type FieldMappingCrew struct {
	agent Agent
}

// NewFieldMappingCrew wires the crew to an agent.
func NewFieldMappingCrew(a Agent) *FieldMappingCrew {
	return &FieldMappingCrew{agent: a}
}

const fieldMappingSystemPrompt = `You are a CMDB field mapping expert for an IT migration assessment platform.
Your job is to map raw CMDB export columns onto a fixed canonical schema.

CANONICAL FIELDS: name, hostname, ip_address, os, os_version, environment, cpu_cores, memory_mb, storage_gb, application, owner, location, status.

RULES:
1. Map each source column to exactly one canonical field, or to "" when no canonical field fits.
2. Confidence is 0.0-1.0. Use sample values to disambiguate, not just the column name.
3. Respond ONLY with a single, minified JSON object. Do not include markdown ticks, "json", or any other conversational text.
4. The JSON format MUST be: {"mappings":[{"source_column":"...","canonical_field":"...","confidence":0.0}]}
`

// FieldMappingUserPrompt builds the user prompt sent for the given columns.
// Sample values are keyed by column name and may be empty.
func FieldMappingUserPrompt(columns []string, samples map[string]string) string {
	var sb strings.Builder
	sb.WriteString("Columns to map:\n")
	for _, col := range columns {
		fmt.Fprintf(&sb, "- %q", col)
		if sample := samples[col]; sample != "" {
			fmt.Fprintf(&sb, " (sample: %q)", sample)
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

// SuggestMappings asks the crew to map the given columns.
func (c *FieldMappingCrew) SuggestMappings(ctx context.Context, columns []string, samples map[string]string) ([]FieldMappingSuggestion, error) {
	if len(columns) == 0 {
		return nil, nil
	}

	raw, err := c.agent.Generate(ctx, fieldMappingSystemPrompt, FieldMappingUserPrompt(columns, samples))
	if err != nil {
		return nil, fmt.Errorf("field mapping crew failed: %w", err)
	}

	var resp struct {
		Mappings []FieldMappingSuggestion `json:"mappings"`
	}
	if uErr := json.Unmarshal([]byte(raw), &resp); uErr != nil {
		return nil, fmt.Errorf("failed to parse field mapping response: %w (response was: %s)", uErr, raw)
	}
	return resp.Mappings, nil
}

// CleansingSuggestion is one proposed data fix from the cleansing crew.
type CleansingSuggestion struct {
	Hostname string `json:"hostname"`
	Field    string `json:"field"`
	Before   string `json:"before"`
	After    string `json:"after"`
	Reason   string `json:"reason"`
}

// CleansingCrew reviews asset rows the rule pipeline could not fix and
// proposes corrections.
type CleansingCrew struct {
	agent Agent
}

// NewCleansingCrew wires the crew to an agent.
func NewCleansingCrew(a Agent) *CleansingCrew {
	return &CleansingCrew{agent: a}
}

const cleansingSystemPrompt = `You are a data cleansing specialist for an IT migration assessment platform.
Given asset records flagged by rule-based cleansing, propose corrections for inconsistent or malformed values.

RULES:
1. Only propose fixes you are confident about; skip records that look correct.
2. Respond ONLY with a single, minified JSON object. Do not include markdown ticks, "json", or any other conversational text.
3. The JSON format MUST be: {"fixes":[{"hostname":"...","field":"...","before":"...","after":"...","reason":"..."}]}
`

// ProposeFixes sends flagged rows (rendered as JSON) to the crew.
func (c *CleansingCrew) ProposeFixes(ctx context.Context, flaggedRows string) ([]CleansingSuggestion, error) {
	raw, err := c.agent.Generate(ctx, cleansingSystemPrompt, flaggedRows)
	if err != nil {
		return nil, fmt.Errorf("cleansing crew failed: %w", err)
	}

	var resp struct {
		Fixes []CleansingSuggestion `json:"fixes"`
	}
	if uErr := json.Unmarshal([]byte(raw), &resp); uErr != nil {
		return nil, fmt.Errorf("failed to parse cleansing response: %w (response was: %s)", uErr, raw)
	}
	return resp.Fixes, nil
}

// TechDebtItem is one debt finding proposed by the crew.
type TechDebtItem struct {
	Category    string `json:"category"`
	Severity    string `json:"severity"`
	Description string `json:"description"`
	Score       int    `json:"score"`
}

// TechDebtCrew enriches rule-based debt analysis with LLM judgment.
type TechDebtCrew struct {
	agent Agent
}

// NewTechDebtCrew wires the crew to an agent.
func NewTechDebtCrew(a Agent) *TechDebtCrew {
	return &TechDebtCrew{agent: a}
}

const techDebtSystemPrompt = `You are a technical debt assessor for an IT migration assessment platform.
Given an asset profile, identify technical debt items a rule catalog may have missed.

RULES:
1. Categories: eol_os, outdated_os, unsupported_middleware, undersized, unknown_owner, incomplete_data.
2. Severity is one of: low, medium, high, critical. Score is 0-100.
3. Respond ONLY with a single, minified JSON object. Do not include markdown ticks, "json", or any other conversational text.
4. The JSON format MUST be: {"findings":[{"category":"...","severity":"...","description":"...","score":0}]}
`

// Assess sends one asset profile (rendered as text) to the crew.
func (c *TechDebtCrew) Assess(ctx context.Context, assetProfile string) ([]TechDebtItem, error) {
	raw, err := c.agent.Generate(ctx, techDebtSystemPrompt, assetProfile)
	if err != nil {
		return nil, fmt.Errorf("tech debt crew failed: %w", err)
	}

	var resp struct {
		Findings []TechDebtItem `json:"findings"`
	}
	if uErr := json.Unmarshal([]byte(raw), &resp); uErr != nil {
		return nil, fmt.Errorf("failed to parse tech debt response: %w (response was: %s)", uErr, raw)
	}
	return resp.Findings, nil
}

// StrategyProposal is the crew's 6R recommendation for one asset.
type StrategyProposal struct {
	Strategy  string `json:"strategy"`
	Rationale string `json:"rationale"`
	Readiness int    `json:"readiness"`
}

// RecommendationCrew proposes a migration strategy, overriding the rules
// engine when its output parses cleanly.
type RecommendationCrew struct {
	agent Agent
}

// NewRecommendationCrew wires the crew to an agent.
func NewRecommendationCrew(a Agent) *RecommendationCrew {
	return &RecommendationCrew{agent: a}
}

const recommendationSystemPrompt = `You are a cloud migration strategist for an IT migration assessment platform.
Given an asset summary with its dependency profile and technical debt score, choose one of the six migration strategies.

RULES:
1. Strategy MUST be one of: rehost, replatform, refactor, repurchase, retire, retain.
2. Readiness is 0-100 where 100 means ready to migrate today.
3. Respond ONLY with a single, minified JSON object. Do not include markdown ticks, "json", or any other conversational text.
4. The JSON format MUST be: {"strategy":"...","rationale":"...","readiness":0}
`

var validStrategies = map[string]bool{
	"rehost": true, "replatform": true, "refactor": true,
	"repurchase": true, "retire": true, "retain": true,
}

// Propose sends one asset summary to the crew and validates the strategy.
func (c *RecommendationCrew) Propose(ctx context.Context, assetSummary string) (*StrategyProposal, error) {
	raw, err := c.agent.Generate(ctx, recommendationSystemPrompt, assetSummary)
	if err != nil {
		return nil, fmt.Errorf("recommendation crew failed: %w", err)
	}

	var proposal StrategyProposal
	if uErr := json.Unmarshal([]byte(raw), &proposal); uErr != nil {
		return nil, fmt.Errorf("failed to parse recommendation response: %w (response was: %s)", uErr, raw)
	}
	if !validStrategies[proposal.Strategy] {
		return nil, fmt.Errorf("recommendation crew returned unknown strategy %q", proposal.Strategy)
	}
	if proposal.Readiness < 0 || proposal.Readiness > 100 {
		return nil, fmt.Errorf("recommendation crew returned out-of-range readiness %d", proposal.Readiness)
	}
	return &proposal, nil
}
