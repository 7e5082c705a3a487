package agent

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// cannedAgent returns a fixed response regardless of prompt.
type cannedAgent struct {
	response string
	err      error
}

func (c *cannedAgent) Generate(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	return c.response, c.err
}

func (c *cannedAgent) Close() {}

func TestFieldMappingCrewParsesResponse(t *testing.T) {
	crew := NewFieldMappingCrew(&cannedAgent{
		response: `{"mappings":[{"source_column":"Server Name","canonical_field":"hostname","confidence":0.92}]}`,
	})

	suggestions, err := crew.SuggestMappings(context.Background(), []string{"Server Name"}, nil)
	require.NoError(t, err)
	require.Len(t, suggestions, 1)
	assert.Equal(t, "hostname", suggestions[0].CanonicalField)
	assert.InDelta(t, 0.92, suggestions[0].Confidence, 0.001)
}

func TestFieldMappingCrewEmptyColumns(t *testing.T) {
	crew := NewFieldMappingCrew(&cannedAgent{response: `{}`})

	suggestions, err := crew.SuggestMappings(context.Background(), nil, nil)
	require.NoError(t, err)
	assert.Empty(t, suggestions)
}

func TestFieldMappingCrewMalformedResponse(t *testing.T) {
	crew := NewFieldMappingCrew(&cannedAgent{response: `not json at all`})

	_, err := crew.SuggestMappings(context.Background(), []string{"host"}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse")
}

func TestTechDebtCrewParsesFindings(t *testing.T) {
	crew := NewTechDebtCrew(&cannedAgent{
		response: `{"findings":[{"category":"eol_os","severity":"critical","description":"EOL","score":90}]}`,
	})

	findings, err := crew.Assess(context.Background(), "OS: Windows Server 2008")
	require.NoError(t, err)
	require.Len(t, findings, 1)
	assert.Equal(t, 90, findings[0].Score)
}

func TestRecommendationCrewValidatesStrategy(t *testing.T) {
	crew := NewRecommendationCrew(&cannedAgent{
		response: `{"strategy":"teleport","rationale":"n/a","readiness":50}`,
	})

	_, err := crew.Propose(context.Background(), "asset summary")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown strategy")
}

func TestRecommendationCrewValidatesReadiness(t *testing.T) {
	crew := NewRecommendationCrew(&cannedAgent{
		response: `{"strategy":"rehost","rationale":"ok","readiness":150}`,
	})

	_, err := crew.Propose(context.Background(), "asset summary")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "out-of-range")
}

func TestRecommendationCrewAcceptsValidProposal(t *testing.T) {
	crew := NewRecommendationCrew(&cannedAgent{
		response: `{"strategy":"replatform","rationale":"managed database","readiness":70}`,
	})

	proposal, err := crew.Propose(context.Background(), "asset summary")
	require.NoError(t, err)
	assert.Equal(t, "replatform", proposal.Strategy)
	assert.Equal(t, 70, proposal.Readiness)
}

func TestMockAgentFieldMappings(t *testing.T) {
	mock := NewMockAgent()

	raw, err := mock.Generate(context.Background(), fieldMappingSystemPrompt, `Columns: "Server Name", "IP Addr"`)
	require.NoError(t, err)

	crew := NewFieldMappingCrew(&cannedAgent{response: raw})
	suggestions, err := crew.SuggestMappings(context.Background(), []string{"x"}, nil)
	require.NoError(t, err)
	require.Len(t, suggestions, 2)
	assert.Equal(t, "hostname", suggestions[0].CanonicalField)
	assert.Equal(t, "ip_address", suggestions[1].CanonicalField)
}

func TestStripCodeFence(t *testing.T) {
	assert.Equal(t, `{"a":1}`, stripCodeFence("```json\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":1}`, stripCodeFence(`{"a":1}`))
}
