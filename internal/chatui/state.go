// Package chatui is the view-model of the chat screen: a serializable State advanced by a pure
// Update function, and a Controller that feeds it events from the chat store and the tweet
// generator.
package chatui

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/kiraleos/tweetsmith/internal/core"
	"github.com/kiraleos/tweetsmith/internal/store"
)

// FallbackMessage replaces the assistant's turn when generation fails.
const FallbackMessage = "Sorry, something went wrong while generating your tweet. Please try again."

var (
	ErrBusy         = errors.New("a generation is in progress")
	ErrNoChat       = errors.New("no chat is open")
	ErrEmptyPrompt  = errors.New("prompt is empty")
	ErrNotStreaming = errors.New("no generation is in progress")
)

type Phase string

const (
	PhaseIdle      Phase = "idle"
	PhaseAwaiting  Phase = "awaiting-first-fragment"
	PhaseStreaming Phase = "streaming"
	PhaseSettled   Phase = "settled"
)

// Preferences are applied to every prompt submitted from the screen.
type Preferences struct {
	Tone     core.Tone     `json:"tone,omitempty"`
	Goal     core.Goal     `json:"goal,omitempty"`
	Audience core.Audience `json:"audience,omitempty"`
}

// State is everything the chat screen renders. Buffer holds the assistant text received for
// the in-flight generation; it is never part of Current until the generation settles.
type State struct {
	ChatIDs     []string          `json:"chatIds"`
	Current     *store.ChatRecord `json:"current,omitempty"`
	Buffer      string            `json:"buffer"`
	Loading     bool              `json:"loading"`
	Phase       Phase             `json:"phase"`
	Preferences Preferences       `json:"preferences"`
}

func NewState() State {
	return State{ChatIDs: []string{}, Phase: PhaseIdle}
}

// InFlight reports whether a generation has been submitted and not yet settled.
func (s State) InFlight() bool {
	return s.Phase == PhaseAwaiting || s.Phase == PhaseStreaming
}

// Event is an input to Update.
type Event interface {
	event()
}

// ChatsListed replaces the list of known chat ids.
type ChatsListed struct {
	IDs []string
}

// ChatOpened makes Chat the active chat.
type ChatOpened struct {
	Chat store.ChatRecord
}

// ChatCreated opens a new, empty chat.
type ChatCreated struct {
	ID string
	At time.Time
}

type PreferencesChanged struct {
	Preferences Preferences
}

// Submitted appends the user's prompt to the active chat and starts waiting for a reply.
type Submitted struct {
	Prompt string
	At     time.Time
}

type FragmentReceived struct {
	Text string
}

type StreamCompleted struct {
	At time.Time
}

type StreamFailed struct {
	Err error
	At  time.Time
}

func (ChatsListed) event()        {}
func (ChatOpened) event()         {}
func (ChatCreated) event()        {}
func (PreferencesChanged) event() {}
func (Submitted) event()          {}
func (FragmentReceived) event()   {}
func (StreamCompleted) event()    {}
func (StreamFailed) event()       {}

// Update returns the state that follows s after ev. s itself is never modified. An event that
// is not allowed in the current phase returns s unchanged together with an error.
func Update(s State, ev Event) (State, error) {
	switch ev := ev.(type) {
	case ChatsListed:
		s.ChatIDs = append([]string{}, ev.IDs...)
		return s, nil

	case ChatOpened:
		if s.InFlight() {
			return s, ErrBusy
		}
		chat := ev.Chat.Clone()
		if chat.Messages == nil {
			chat.Messages = []store.Message{}
		}
		s.Current = &chat
		s.ChatIDs = withID(s.ChatIDs, chat.ID)
		s.Buffer = ""
		s.Phase = PhaseIdle
		return s, nil

	case ChatCreated:
		if s.InFlight() {
			return s, ErrBusy
		}
		if ev.ID == "" {
			return s, fmt.Errorf("chat id is required")
		}
		s.Current = &store.ChatRecord{
			ID:        ev.ID,
			Messages:  []store.Message{},
			CreatedAt: ev.At,
			UpdatedAt: ev.At,
		}
		s.ChatIDs = withID(s.ChatIDs, ev.ID)
		s.Buffer = ""
		s.Phase = PhaseIdle
		return s, nil

	case PreferencesChanged:
		s.Preferences = ev.Preferences
		return s, nil

	case Submitted:
		if s.InFlight() {
			return s, ErrBusy
		}
		if s.Current == nil {
			return s, ErrNoChat
		}
		if strings.TrimSpace(ev.Prompt) == "" {
			return s, ErrEmptyPrompt
		}
		s.Current = appendMessage(s.Current, store.Message{Role: store.RoleUser, Content: ev.Prompt}, ev.At)
		s.Buffer = ""
		s.Loading = true
		s.Phase = PhaseAwaiting
		return s, nil

	case FragmentReceived:
		if !s.InFlight() {
			return s, ErrNotStreaming
		}
		s.Buffer += ev.Text
		s.Phase = PhaseStreaming
		return s, nil

	case StreamCompleted:
		if !s.InFlight() {
			return s, ErrNotStreaming
		}
		return settle(s, s.Buffer, ev.At), nil

	case StreamFailed:
		if !s.InFlight() {
			return s, ErrNotStreaming
		}
		return settle(s, FallbackMessage, ev.At), nil

	default:
		return s, fmt.Errorf("unknown event %T", ev)
	}
}

func settle(s State, reply string, at time.Time) State {
	s.Current = appendMessage(s.Current, store.Message{Role: store.RoleAssistant, Content: reply}, at)
	s.Buffer = ""
	s.Loading = false
	s.Phase = PhaseSettled
	return s
}

// appendMessage returns a copy of chat with m appended.
func appendMessage(chat *store.ChatRecord, m store.Message, at time.Time) *store.ChatRecord {
	next := chat.Clone()
	next.Messages = append(next.Messages, m)
	if !at.IsZero() {
		next.UpdatedAt = at
	}
	return &next
}

func withID(ids []string, id string) []string {
	if slices.Contains(ids, id) {
		return ids
	}
	return append(slices.Clone(ids), id)
}

// PromptSpec builds the generation request for prompt from the active chat and preferences.
// The prompt's own turn is excluded from the history.
func (s State) PromptSpec(prompt string) core.PromptSpec {
	spec := core.PromptSpec{
		Prompt:   prompt,
		Tone:     s.Preferences.Tone,
		Goal:     s.Preferences.Goal,
		Audience: s.Preferences.Audience,
	}
	if s.Current != nil {
		spec.ConversationHistory = slices.Clone(s.Current.Messages)
	}
	return spec
}
