package assistant

import (
	"context"
	"fmt"

	"google.golang.org/genai"

	"lifeassistant/internal/core"
)

const DefaultGeminiModel = "gemini-2.5-flash"

type geminiProvider struct {
	client *genai.Client
	model  string
}

func newGeminiProvider(ctx context.Context, apiKey, model, baseURL string) (*geminiProvider, error) {
	cfg := &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	}
	if baseURL != "" {
		cfg.HTTPOptions = genai.HTTPOptions{BaseURL: baseURL}
	}
	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return &geminiProvider{client: client, model: model}, nil
}

func (g *geminiProvider) Name() string { return ProviderGemini }

func (g *geminiProvider) Model() string { return g.model }

func (g *geminiProvider) Complete(ctx context.Context, r Request) (string, error) {
	config := &genai.GenerateContentConfig{
		MaxOutputTokens: int32(r.MaxTokens),
	}
	if r.System != "" {
		config.SystemInstruction = genai.NewContentFromText(r.System, genai.RoleUser)
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.model, toGeminiContents(r.Messages), config)
	if err != nil {
		return "", fmt.Errorf("gemini generate content: %w", err)
	}
	text := resp.Text()
	if text == "" {
		return "", fmt.Errorf("empty gemini response")
	}
	return text, nil
}

// toGeminiContents maps chat roles onto Gemini's user/model roles.
func toGeminiContents(msgs []core.Message) []*genai.Content {
	contents := make([]*genai.Content, 0, len(msgs))
	for _, m := range msgs {
		role := genai.Role(genai.RoleUser)
		if m.Role == core.RoleAssistant {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(m.Content, role))
	}
	return contents
}
