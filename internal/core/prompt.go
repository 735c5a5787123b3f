package core

import (
	"fmt"
	"slices"
	"strings"

	"github.com/kiraleos/tweetsmith/internal/store"
)

// MaxTweetLength is the hard ceiling the model is instructed to respect.
const MaxTweetLength = 280

type (
	Tone     string
	Goal     string
	Audience string
)

var (
	Tones     = []Tone{"Professional", "Casual", "Witty", "Inspirational", "Informative", "Humorous"}
	Goals     = []Goal{"Engagement", "Awareness", "Promotion", "Education", "Entertainment"}
	Audiences = []Audience{"General", "Tech", "Business", "Creators", "Students"}
)

// PromptSpec is a generation request. Empty Tone, Goal or Audience means "let the model decide".
type PromptSpec struct {
	Prompt              string          `json:"prompt"`
	Tone                Tone            `json:"tone,omitempty"`
	Goal                Goal            `json:"goal,omitempty"`
	Audience            Audience        `json:"audience,omitempty"`
	ConversationHistory []store.Message `json:"conversationHistory,omitempty"`
}

func (p PromptSpec) Validate() error {
	if strings.TrimSpace(p.Prompt) == "" {
		return validationErrorf("prompt is required")
	}
	if p.Tone != "" && !slices.Contains(Tones, p.Tone) {
		return validationErrorf("unknown tone %q", p.Tone)
	}
	if p.Goal != "" && !slices.Contains(Goals, p.Goal) {
		return validationErrorf("unknown goal %q", p.Goal)
	}
	if p.Audience != "" && !slices.Contains(Audiences, p.Audience) {
		return validationErrorf("unknown audience %q", p.Audience)
	}
	for i, m := range p.ConversationHistory {
		if !m.Role.Valid() {
			return validationErrorf("conversation history entry %d has unknown role %q", i, m.Role)
		}
	}
	return nil
}

const tweetDirective = "You are an expert social media copywriter who writes tweets.\n" +
	"Write exactly one tweet for the request below.\n" +
	"The tweet must be at most %d characters long, counting spaces, hashtags and emojis.\n" +
	"Reply with the tweet text only: no quotes, no preamble, no explanation."

// ComposeInstruction renders spec into the single instruction sent to the provider. Only the
// last window turns of the conversation history are included.
func ComposeInstruction(spec PromptSpec, window int) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, tweetDirective, MaxTweetLength)
	sb.WriteString("\n")

	if spec.Tone != "" {
		fmt.Fprintf(&sb, "Tone: %s\n", spec.Tone)
	}
	if spec.Goal != "" {
		fmt.Fprintf(&sb, "Goal: %s\n", spec.Goal)
	}
	if spec.Audience != "" {
		fmt.Fprintf(&sb, "Target audience: %s\n", spec.Audience)
	}

	if history := trailingTurns(spec.ConversationHistory, window); len(history) > 0 {
		sb.WriteString("\nConversation so far:\n")
		for _, m := range history {
			fmt.Fprintf(&sb, "%s: %s\n", roleLabel(m.Role), m.Content)
		}
	}

	sb.WriteString("\nRequest: ")
	sb.WriteString(strings.TrimSpace(spec.Prompt))
	return sb.String()
}

func trailingTurns(history []store.Message, window int) []store.Message {
	if window <= 0 {
		return nil
	}
	if len(history) > window {
		return history[len(history)-window:]
	}
	return history
}

func roleLabel(r store.Role) string {
	if r == store.RoleAssistant {
		return "Assistant"
	}
	return "User"
}
