package gemini

import (
	"errors"
	"testing"

	"github.com/google/generative-ai-go/genai"

	"github.com/lorenzotomasdiez/chameleon/internal/controller"
)

func TestToContentsAlternatesRoles(t *testing.T) {
	history, prompt, err := toContents([]controller.ChatMessage{
		{Role: "user", Content: "welcome"},
		{Role: "user", Content: "describe yourself"},
		{Role: "assistant", Content: "I am grey"},
		{Role: "user", Content: "format please"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("expected 2 history contents, got %d", len(history))
	}
	if history[0].Role != "user" || len(history[0].Parts) != 2 {
		t.Errorf("first content = %s with %d parts, want merged user turn", history[0].Role, len(history[0].Parts))
	}
	if history[1].Role != "model" {
		t.Errorf("second content role = %s, want model", history[1].Role)
	}
	if prompt.Role != "user" || prompt.Parts[0] != genai.Text("format please") {
		t.Errorf("prompt = %+v", prompt)
	}
}

func TestToContentsNeedsTrailingUserMessage(t *testing.T) {
	cases := map[string][]controller.ChatMessage{
		"empty":           nil,
		"ends with model": {{Role: "user", Content: "hi"}, {Role: "assistant", Content: "hello"}},
	}
	for name, msgs := range cases {
		if _, _, err := toContents(msgs); !errors.Is(err, ErrNoPrompt) {
			t.Errorf("%s: expected ErrNoPrompt, got %v", name, err)
		}
	}
}

func TestExtractTextUsesFirstCandidate(t *testing.T) {
	resp := &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{
			{Content: &genai.Content{Parts: []genai.Part{genai.Text(`{"vote": `), genai.Text(`"Jill"}`)}}},
			{Content: &genai.Content{Parts: []genai.Part{genai.Text("ignored")}}},
		},
	}
	if got := extractText(resp); got != `{"vote": "Jill"}` {
		t.Errorf("extractText = %q", got)
	}
	if extractText(nil) != "" {
		t.Error("nil response should give empty text")
	}
}
