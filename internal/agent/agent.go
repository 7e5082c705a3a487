// Package agent wraps the Gemini client behind a narrow interface and hosts
// the crews that delegate assessment work to the LLM.
package agent

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// Agent is the minimal LLM surface crews need. GeminiAgent talks to the real
// API; MockAgent serves canned responses for development and tests.
type Agent interface {
	Generate(ctx context.Context, systemPrompt, userPrompt string) (string, error)
	Close()
}

// GeminiAgent wraps the Gemini client and model used by the crews.
type GeminiAgent struct {
	client *genai.Client
	model  *genai.GenerativeModel
}

// NewGeminiAgent initializes the Gemini client. If the API key is empty, the
// caller receives a nil agent and no error so that commands can decide how to
// handle missing configuration.
func NewGeminiAgent(ctx context.Context, apiKey string) (*GeminiAgent, error) {
	if apiKey == "" {
		return nil, nil
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}

	model := client.GenerativeModel("gemini-2.5-flash-preview-09-2025")
	model.SafetySettings = []*genai.SafetySetting{
		{
			Category:  genai.HarmCategoryHarassment,
			Threshold: genai.HarmBlockNone,
		},
		{
			Category:  genai.HarmCategoryHateSpeech,
			Threshold: genai.HarmBlockNone,
		},
		{
			Category:  genai.HarmCategorySexuallyExplicit,
			Threshold: genai.HarmBlockNone,
		},
		{
			Category:  genai.HarmCategoryDangerousContent,
			Threshold: genai.HarmBlockNone,
		},
	}

	return &GeminiAgent{
		client: client,
		model:  model,
	}, nil
}

// Close releases underlying resources.
func (a *GeminiAgent) Close() {
	if a == nil || a.client == nil {
		return
	}
	if err := a.client.Close(); err != nil {
		log.Printf("warning: failed to close Gemini client: %v", err)
	}
}

// Generate sends one prompt pair and returns the raw text response with any
// markdown code fencing stripped.
func (a *GeminiAgent) Generate(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	if a == nil || a.model == nil {
		return "", fmt.Errorf("ai agent is not initialized")
	}

	a.model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(systemPrompt)}}

	resp, err := a.model.GenerateContent(ctx, genai.Text(userPrompt))
	if err != nil {
		return "", fmt.Errorf("failed to generate content: %w", err)
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0] == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("no response from agent: %v", resp)
	}

	part := resp.Candidates[0].Content.Parts[0]
	textPart, ok := part.(genai.Text)
	if !ok {
		return "", fmt.Errorf("unexpected response type from agent: %T", part)
	}

	return stripCodeFence(string(textPart)), nil
}

// stripCodeFence removes a surrounding ```json ... ``` block if the model
// added one despite instructions.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
