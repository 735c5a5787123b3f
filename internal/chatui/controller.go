package chatui

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/kiraleos/tweetsmith/internal/core"
	"github.com/kiraleos/tweetsmith/internal/store"
)

var ErrChatNotFound = errors.New("chat not found")

// ChatStore persists the current user's chats. client.Client implements it.
type ChatStore interface {
	ListChatIDs(ctx context.Context) ([]string, error)
	GetChat(ctx context.Context, chatID string) (*store.ChatRecord, error)
	SaveChat(ctx context.Context, chatID string, record store.ChatRecord) error
}

// Generator streams a generated tweet. client.Client implements it.
type Generator interface {
	Generate(ctx context.Context, spec core.PromptSpec) (core.FragmentIterator, error)
}

// Controller runs the chat screen: it turns user actions into events, applies them with
// Update and persists the active chat at the points where it changes durably.
type Controller struct {
	chats     ChatStore
	generator Generator
	now       func() time.Time
	observer  func(State)

	mu    sync.Mutex
	state State
}

type ControllerOption func(*Controller)

// WithObserver registers fn to receive every new state. fn runs while the controller is
// locked and must not call back into it.
func WithObserver(fn func(State)) ControllerOption {
	return func(c *Controller) { c.observer = fn }
}

func WithClock(now func() time.Time) ControllerOption {
	return func(c *Controller) { c.now = now }
}

func NewController(chats ChatStore, generator Generator, opts ...ControllerOption) *Controller {
	c := &Controller{
		chats:     chats,
		generator: generator,
		now:       time.Now,
		state:     NewState(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// State returns a snapshot of the current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Controller) apply(ev Event) (prev, next State, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	prev = c.state
	next, err = Update(prev, ev)
	if err != nil {
		return prev, prev, err
	}
	c.state = next
	if c.observer != nil {
		c.observer(next)
	}
	return prev, next, nil
}

// Start loads the user's chat ids and opens the most recent chat, if any. Chat ids are
// time-ordered, so the most recent is the last one listed.
func (c *Controller) Start(ctx context.Context) error {
	ids, err := c.chats.ListChatIDs(ctx)
	if err != nil {
		return fmt.Errorf("failed to list chats: %w", err)
	}
	if _, _, err := c.apply(ChatsListed{IDs: ids}); err != nil {
		return err
	}
	if len(ids) == 0 {
		return nil
	}
	return c.OpenChat(ctx, ids[len(ids)-1])
}

// NewChat opens a new empty chat and returns its id. The chat is stored on its first submit.
func (c *Controller) NewChat() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("failed to generate chat id: %w", err)
	}
	if _, _, err := c.apply(ChatCreated{ID: id.String(), At: c.now().UTC()}); err != nil {
		return "", err
	}
	return id.String(), nil
}

func (c *Controller) OpenChat(ctx context.Context, chatID string) error {
	if c.State().InFlight() {
		return ErrBusy
	}
	chat, err := c.chats.GetChat(ctx, chatID)
	if err != nil {
		return fmt.Errorf("failed to load chat %s: %w", chatID, err)
	}
	if chat == nil {
		return fmt.Errorf("%w: %s", ErrChatNotFound, chatID)
	}
	_, _, err = c.apply(ChatOpened{Chat: *chat})
	return err
}

func (c *Controller) SetPreferences(p Preferences) {
	_, _, _ = c.apply(PreferencesChanged{Preferences: p})
}

// Submit sends prompt in the active chat, creating a chat first if none is open, and blocks
// until the reply has settled. The user's turn is stored before generation starts and the
// settled chat after it ends. If generation fails, FallbackMessage is stored as the reply and
// the failure is returned. An invalid prompt or preference fails with core.ErrValidation
// before anything is stored.
func (c *Controller) Submit(ctx context.Context, prompt string) error {
	if c.State().Current == nil {
		if _, err := c.NewChat(); err != nil {
			return err
		}
	}

	if err := c.State().PromptSpec(prompt).Validate(); err != nil {
		return err
	}

	prev, next, err := c.apply(Submitted{Prompt: prompt, At: c.now().UTC()})
	if err != nil {
		return err
	}
	chatID := next.Current.ID
	logger := log.With().Str("component", "chatui").Str("chat_id", chatID).Logger()

	if err := c.chats.SaveChat(ctx, chatID, *next.Current); err != nil {
		err = fmt.Errorf("failed to save chat %s: %w", chatID, err)
		return errors.Join(err, c.settle(ctx, StreamFailed{Err: err, At: c.now().UTC()}))
	}

	genErr := c.generate(ctx, prev.PromptSpec(prompt))
	var ev Event = StreamCompleted{At: c.now().UTC()}
	if genErr != nil {
		logger.Warn().Err(genErr).Msg("Generation failed, storing fallback reply")
		ev = StreamFailed{Err: genErr, At: c.now().UTC()}
	}
	return errors.Join(genErr, c.settle(ctx, ev))
}

func (c *Controller) generate(ctx context.Context, spec core.PromptSpec) error {
	it, err := c.generator.Generate(ctx, spec)
	if err != nil {
		return fmt.Errorf("failed to start generation: %w", err)
	}
	for {
		frag, err := it.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("generation failed: %w", err)
		}
		if _, _, err := c.apply(FragmentReceived{Text: frag}); err != nil {
			return err
		}
	}
}

// settle applies the terminal event ev and stores the resulting chat.
func (c *Controller) settle(ctx context.Context, ev Event) error {
	_, next, err := c.apply(ev)
	if err != nil {
		return err
	}
	if err := c.chats.SaveChat(ctx, next.Current.ID, *next.Current); err != nil {
		return fmt.Errorf("failed to save chat %s: %w", next.Current.ID, err)
	}
	return nil
}
