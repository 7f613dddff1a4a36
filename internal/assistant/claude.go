package assistant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

const (
	DefaultClaudeModel = "claude-3-haiku-20240307"
	claudeBaseURL      = "https://api.anthropic.com"
	anthropicVersion   = "2023-06-01"
)

type claudeProvider struct {
	apiKey  string
	model   string
	baseURL string
	client  *http.Client
}

type claudeRequest struct {
	Model     string          `json:"model"`
	MaxTokens int             `json:"max_tokens"`
	System    string          `json:"system,omitempty"`
	Messages  []claudeMessage `json:"messages"`
}

type claudeMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type claudeResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
}

type claudeError struct {
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

func newClaudeProvider(apiKey, model, baseURL string, client *http.Client) *claudeProvider {
	if baseURL == "" {
		baseURL = claudeBaseURL
	}
	return &claudeProvider{
		apiKey:  apiKey,
		model:   model,
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  client,
	}
}

func (c *claudeProvider) Name() string { return ProviderClaude }

func (c *claudeProvider) Model() string { return c.model }

func (c *claudeProvider) Complete(ctx context.Context, r Request) (string, error) {
	msgs := make([]claudeMessage, len(r.Messages))
	for i, m := range r.Messages {
		msgs[i] = claudeMessage{Role: m.Role, Content: m.Content}
	}
	body, err := json.Marshal(claudeRequest{
		Model:     c.model,
		MaxTokens: r.MaxTokens,
		System:    r.System,
		Messages:  msgs,
	})
	if err != nil {
		return "", fmt.Errorf("encode claude request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/messages", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("anthropic-version", anthropicVersion)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("claude API error: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		var ce claudeError
		if json.Unmarshal(b, &ce) == nil && ce.Error.Message != "" {
			return "", fmt.Errorf("claude API %d: %s: %s", resp.StatusCode, ce.Error.Type, ce.Error.Message)
		}
		return "", fmt.Errorf("claude API %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}

	var cr claudeResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&cr); err != nil {
		return "", fmt.Errorf("decode claude response: %w", err)
	}
	for _, block := range cr.Content {
		if block.Type == "" || block.Type == "text" {
			return block.Text, nil
		}
	}
	return "", fmt.Errorf("empty claude response")
}
