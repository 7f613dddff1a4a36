package assistant

import (
	"testing"

	"google.golang.org/genai"

	"lifeassistant/internal/core"
)

func TestToGeminiContents(t *testing.T) {
	msgs := []core.Message{
		{Role: core.RoleUser, Content: "Current context:\n\nBudget: B"},
		{Role: core.RoleAssistant, Content: "I understand the context. How can I help you?"},
		{Role: core.RoleUser, Content: "hi"},
	}
	got := toGeminiContents(msgs)
	if len(got) != 3 {
		t.Fatalf("got %d contents", len(got))
	}
	wantRoles := []string{string(genai.RoleUser), string(genai.RoleModel), string(genai.RoleUser)}
	for i, c := range got {
		if c.Role != wantRoles[i] {
			t.Errorf("content %d role = %q, want %q", i, c.Role, wantRoles[i])
		}
		if len(c.Parts) != 1 || c.Parts[0].Text != msgs[i].Content {
			t.Errorf("content %d parts = %+v", i, c.Parts)
		}
	}
}
