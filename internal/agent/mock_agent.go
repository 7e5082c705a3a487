package agent

import (
	"context"
	"strings"
)

// MockAgent provides simulated AI responses for testing and demonstration.
// It keys off phrases the crew system prompts always contain and returns
// minified JSON shaped like the real model's output.
type MockAgent struct{}

// NewMockAgent creates a mock agent for running without API keys.
func NewMockAgent() *MockAgent {
	return &MockAgent{}
}

// Close is a no-op.
func (m *MockAgent) Close() {}

// Generate inspects the system prompt to decide which crew is calling and
// fabricates a plausible response from the user prompt.
func (m *MockAgent) Generate(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	prompt := strings.ToLower(systemPrompt)

	switch {
	case strings.Contains(prompt, "field mapping"):
		return m.mockFieldMappings(userPrompt), nil
	case strings.Contains(prompt, "technical debt"):
		return m.mockTechDebt(userPrompt), nil
	case strings.Contains(prompt, "migration strategist"):
		return m.mockRecommendation(userPrompt), nil
	case strings.Contains(prompt, "questionnaire"):
		return m.mockQuestions(userPrompt), nil
	default:
		return `{}`, nil
	}
}

func (m *MockAgent) mockFieldMappings(userPrompt string) string {
	// Map a handful of column shapes the demo CMDB extracts use; everything
	// else comes back unmapped with zero confidence.
	var parts []string
	for _, col := range extractQuotedStrings(userPrompt) {
		lower := strings.ToLower(col)
		field := ""
		confidence := 0.0
		switch {
		case strings.Contains(lower, "host") || strings.Contains(lower, "server"):
			field, confidence = "hostname", 0.9
		case strings.Contains(lower, "ip"):
			field, confidence = "ip_address", 0.9
		case strings.Contains(lower, "os") || strings.Contains(lower, "operating"):
			field, confidence = "os", 0.8
		case strings.Contains(lower, "env"):
			field, confidence = "environment", 0.85
		case strings.Contains(lower, "app"):
			field, confidence = "application", 0.8
		case strings.Contains(lower, "owner") || strings.Contains(lower, "contact"):
			field, confidence = "owner", 0.75
		case strings.Contains(lower, "cpu") || strings.Contains(lower, "core"):
			field, confidence = "cpu_cores", 0.8
		case strings.Contains(lower, "mem") || strings.Contains(lower, "ram"):
			field, confidence = "memory_mb", 0.8
		}
		parts = append(parts, `{"source_column":"`+col+`","canonical_field":"`+field+`","confidence":`+formatConfidence(confidence)+`}`)
	}
	return `{"mappings":[` + strings.Join(parts, ",") + `]}`
}

func (m *MockAgent) mockTechDebt(userPrompt string) string {
	lower := strings.ToLower(userPrompt)
	if strings.Contains(lower, "2008") || strings.Contains(lower, "centos 6") {
		return `{"findings":[{"category":"eol_os","severity":"critical","description":"Operating system is past end of life","score":90}]}`
	}
	if strings.Contains(lower, "2012") || strings.Contains(lower, "centos 7") {
		return `{"findings":[{"category":"eol_os","severity":"high","description":"Operating system is past end of life","score":75}]}`
	}
	return `{"findings":[]}`
}

func (m *MockAgent) mockRecommendation(userPrompt string) string {
	lower := strings.ToLower(userPrompt)
	switch {
	case strings.Contains(lower, "debt score: 9") || strings.Contains(lower, "debt score: 8"):
		return `{"strategy":"refactor","rationale":"High technical debt requires re-architecture before cloud migration","readiness":35}`
	case strings.Contains(lower, "development") || strings.Contains(lower, "sandbox"):
		return `{"strategy":"retire","rationale":"Non-production workload with no downstream consumers","readiness":90}`
	default:
		return `{"strategy":"rehost","rationale":"Standard workload suitable for lift-and-shift","readiness":80}`
	}
}

func (m *MockAgent) mockQuestions(userPrompt string) string {
	var parts []string
	for i, field := range extractQuotedStrings(userPrompt) {
		if i >= 5 {
			break
		}
		parts = append(parts, `{"question_id":"q-`+field+`","field":"`+field+`","text":"What is the correct value for `+field+`?","type":"text"}`)
	}
	return `{"questions":[` + strings.Join(parts, ",") + `]}`
}

// extractQuotedStrings pulls double-quoted tokens out of a prompt.
func extractQuotedStrings(s string) []string {
	var out []string
	for {
		start := strings.IndexByte(s, '"')
		if start < 0 {
			break
		}
		s = s[start+1:]
		end := strings.IndexByte(s, '"')
		if end < 0 {
			break
		}
		if token := s[:end]; token != "" {
			out = append(out, token)
		}
		s = s[end+1:]
	}
	return out
}

func formatConfidence(c float64) string {
	switch {
	case c >= 0.9:
		return "0.9"
	case c >= 0.85:
		return "0.85"
	case c >= 0.8:
		return "0.8"
	case c >= 0.75:
		return "0.75"
	default:
		return "0"
	}
}
