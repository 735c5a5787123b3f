package core

import (
	"errors"
	"strings"
	"testing"

	"github.com/kiraleos/tweetsmith/internal/store"
)

func TestComposeInstructionOmitsAbsentConstraints(t *testing.T) {
	got := ComposeInstruction(PromptSpec{Prompt: "write a tweet about Mars"}, 5)

	for _, label := range []string{"Tone:", "Goal:", "Target audience:", "Conversation so far:"} {
		if strings.Contains(got, label) {
			t.Errorf("Expected no %q line, got:\n%s", label, got)
		}
	}
	if !strings.Contains(got, "280 characters") {
		t.Errorf("Expected the length ceiling in the directive, got:\n%s", got)
	}
	if !strings.HasSuffix(got, "Request: write a tweet about Mars") {
		t.Errorf("Expected the request last, got:\n%s", got)
	}
}

func TestComposeInstructionIncludesPresentConstraints(t *testing.T) {
	got := ComposeInstruction(PromptSpec{
		Prompt:   "launch day",
		Tone:     "Witty",
		Audience: "Tech",
	}, 5)

	if !strings.Contains(got, "Tone: Witty\n") {
		t.Errorf("Expected tone line, got:\n%s", got)
	}
	if !strings.Contains(got, "Target audience: Tech\n") {
		t.Errorf("Expected audience line, got:\n%s", got)
	}
	if strings.Contains(got, "Goal:") {
		t.Errorf("Expected no goal line, got:\n%s", got)
	}
}

func TestComposeInstructionKeepsTrailingWindow(t *testing.T) {
	history := []store.Message{
		{Role: store.RoleUser, Content: "first"},
		{Role: store.RoleAssistant, Content: "second"},
		{Role: store.RoleUser, Content: "third"},
		{Role: store.RoleAssistant, Content: "fourth"},
	}
	got := ComposeInstruction(PromptSpec{Prompt: "again", ConversationHistory: history}, 2)

	if strings.Contains(got, "first") || strings.Contains(got, "second") {
		t.Errorf("Expected older turns to be dropped, got:\n%s", got)
	}
	third := strings.Index(got, "User: third\n")
	fourth := strings.Index(got, "Assistant: fourth\n")
	if third < 0 || fourth < 0 || third > fourth {
		t.Errorf("Expected labelled turns in order, got:\n%s", got)
	}

	if none := ComposeInstruction(PromptSpec{Prompt: "again", ConversationHistory: history}, 0); strings.Contains(none, "Conversation so far:") {
		t.Errorf("Expected no history with a zero window, got:\n%s", none)
	}
}

func TestPromptSpecValidate(t *testing.T) {
	tests := []struct {
		name    string
		spec    PromptSpec
		wantErr bool
	}{
		{"minimal", PromptSpec{Prompt: "hi"}, false},
		{"all options", PromptSpec{Prompt: "hi", Tone: "Casual", Goal: "Promotion", Audience: "Students"}, false},
		{"empty prompt", PromptSpec{Prompt: "   "}, true},
		{"unknown tone", PromptSpec{Prompt: "hi", Tone: "Sarcastic"}, true},
		{"unknown goal", PromptSpec{Prompt: "hi", Goal: "Chaos"}, true},
		{"unknown audience", PromptSpec{Prompt: "hi", Audience: "Cats"}, true},
		{"bad history role", PromptSpec{Prompt: "hi", ConversationHistory: []store.Message{{Role: "system", Content: "x"}}}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.spec.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrValidation) {
				t.Errorf("Expected ErrValidation, got %v", err)
			}
		})
	}
}
