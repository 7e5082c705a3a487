// Package questionnaire generates adaptive questionnaires from inventory
// gaps and applies answered responses back onto assets.
package questionnaire

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"ai-force-assess/internal/store"
)

// Question is one generated question. Questions serialize into the
// questionnaire's JSONB payload.
type Question struct {
	QuestionID string `json:"question_id"`
	AssetID    string `json:"asset_id,omitempty"`
	Hostname   string `json:"hostname,omitempty"`
	Field      string `json:"field"`
	Text       string `json:"text"`
	Type       string `json:"type"` // text, number, choice
	Choices    []string `json:"choices,omitempty"`
}

// Questionnaire statuses.
const (
	StatusOpen       = "open"
	StatusInProgress = "in_progress"
	StatusComplete   = "complete"
)

// gapField describes a canonical field worth asking about when missing.
type gapField struct {
	field   string
	text    string
	qType   string
	choices []string
	missing func(a store.Asset) bool
}

var gapFields = []gapField{
	{
		field:   "owner",
		text:    "Who owns %s?",
		qType:   "text",
		missing: func(a store.Asset) bool { return strings.TrimSpace(a.Owner) == "" },
	},
	{
		field:   "environment",
		text:    "Which environment does %s belong to?",
		qType:   "choice",
		choices: []string{"production", "staging", "test", "development", "dr"},
		missing: func(a store.Asset) bool { return a.Environment == "" || a.Environment == "unknown" },
	},
	{
		field:   "application",
		text:    "Which business application does %s serve?",
		qType:   "text",
		missing: func(a store.Asset) bool { return strings.TrimSpace(a.Application) == "" },
	},
	{
		field:   "os_version",
		text:    "What OS version is %s running?",
		qType:   "text",
		missing: func(a store.Asset) bool { return a.OS != "" && a.OSVersion == "" },
	},
	{
		field:   "cpu_cores",
		text:    "How many CPU cores does %s have?",
		qType:   "number",
		missing: func(a store.Asset) bool { return a.CPUCores == 0 },
	},
	{
		field:   "memory_mb",
		text:    "How much memory (MB) does %s have?",
		qType:   "number",
		missing: func(a store.Asset) bool { return a.MemoryMB == 0 },
	},
}

// DetectGaps generates one question per missing field per asset.
func DetectGaps(assets []store.Asset) []Question {
	var questions []Question
	for _, a := range assets {
		label := a.Hostname
		if label == "" {
			label = a.Name
		}
		for _, gf := range gapFields {
			if !gf.missing(a) {
				continue
			}
			questions = append(questions, Question{
				QuestionID: fmt.Sprintf("q-%s-%s", a.AssetID, gf.field),
				AssetID:    a.AssetID,
				Hostname:   a.Hostname,
				Field:      gf.field,
				Text:       fmt.Sprintf(gf.text, label),
				Type:       gf.qType,
				Choices:    gf.choices,
			})
		}
	}
	return questions
}

// Build assembles a questionnaire record from detected gaps. Returns nil when
// the inventory has no gaps.
func Build(tenantID string, flowID, batchID *string, assets []store.Asset) (*store.Questionnaire, error) {
	questions := DetectGaps(assets)
	if len(questions) == 0 {
		return nil, nil
	}
	payload, err := json.Marshal(questions)
	if err != nil {
		return nil, fmt.Errorf("failed to encode questions: %w", err)
	}
	return &store.Questionnaire{
		TenantID:  tenantID,
		FlowID:    flowID,
		BatchID:   batchID,
		Status:    StatusOpen,
		Questions: store.JSONBRaw(payload),
	}, nil
}

// ParseQuestions decodes a questionnaire's question payload.
func ParseQuestions(q *store.Questionnaire) ([]Question, error) {
	var questions []Question
	if err := json.Unmarshal([]byte(q.Questions), &questions); err != nil {
		return nil, fmt.Errorf("failed to decode questions: %w", err)
	}
	return questions, nil
}

// Completion returns answered/total as a fraction in [0,1].
func Completion(questions []Question, responses []store.QuestionnaireResponse) float64 {
	if len(questions) == 0 {
		return 1
	}
	answered := make(map[string]bool, len(responses))
	for _, r := range responses {
		answered[r.QuestionID] = true
	}
	count := 0
	for _, q := range questions {
		if answered[q.QuestionID] {
			count++
		}
	}
	return float64(count) / float64(len(questions))
}

// ApplyResponse patches one answer onto the asset it targets. The answer
// payload is the raw JSON value the respondent submitted.
func ApplyResponse(a *store.Asset, q Question, answer json.RawMessage) error {
	var text string
	if err := json.Unmarshal(answer, &text); err != nil {
		// numeric answers arrive unquoted
		text = strings.TrimSpace(string(answer))
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return fmt.Errorf("empty answer for question %s", q.QuestionID)
	}

	switch q.Field {
	case "owner":
		a.Owner = text
	case "environment":
		a.Environment = strings.ToLower(text)
	case "application":
		a.Application = text
	case "os_version":
		a.OSVersion = text
	case "cpu_cores":
		n, err := strconv.Atoi(text)
		if err != nil {
			return fmt.Errorf("cpu_cores answer must be a number: %w", err)
		}
		a.CPUCores = n
	case "memory_mb":
		n, err := strconv.Atoi(text)
		if err != nil {
			return fmt.Errorf("memory_mb answer must be a number: %w", err)
		}
		a.MemoryMB = n
	default:
		return fmt.Errorf("question %s targets unknown field %q", q.QuestionID, q.Field)
	}
	return nil
}
