package chatui_test

import (
	"context"
	"errors"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/kiraleos/tweetsmith/internal/api"
	"github.com/kiraleos/tweetsmith/internal/auth"
	"github.com/kiraleos/tweetsmith/internal/chatui"
	"github.com/kiraleos/tweetsmith/internal/client"
	"github.com/kiraleos/tweetsmith/internal/core"
	"github.com/kiraleos/tweetsmith/internal/core/coretest"
	"github.com/kiraleos/tweetsmith/internal/store"
)

const testSecret = "test-secret"

type testEnv struct {
	server *httptest.Server
	authn  *auth.Authenticator
	chats  *core.ChatService
}

func newTestEnv(t *testing.T, provider core.Provider) *testEnv {
	t.Helper()

	bolt, err := store.NewBoltStore(filepath.Join(t.TempDir(), "chats.bolt"))
	if err != nil {
		t.Fatalf("failed to open bolt store: %v", err)
	}
	t.Cleanup(func() { bolt.Close() })

	chats := core.NewChatService(bolt)
	authn := auth.NewAuthenticator(testSecret)
	handler := api.NewAPIHandler(chats, core.NewRelay(provider, 5, nil))
	server := httptest.NewServer(api.NewRouter(handler, authn, nil, nil))
	t.Cleanup(server.Close)

	return &testEnv{server: server, authn: authn, chats: chats}
}

func (e *testEnv) client(t *testing.T, userID string, opts ...client.Option) *client.Client {
	t.Helper()
	token, err := e.authn.GenerateToken(userID, time.Hour)
	if err != nil {
		t.Fatalf("failed to issue token: %v", err)
	}
	return client.New(e.server.URL, token, opts...)
}

func newController(c *client.Client, opts ...chatui.ControllerOption) *chatui.Controller {
	return chatui.NewController(c, c, opts...)
}

func TestSubmitStreamsAndPersists(t *testing.T) {
	for _, tc := range []struct {
		name string
		opts []client.Option
	}{
		{name: "http"},
		{name: "websocket", opts: []client.Option{client.WithWebSocket()}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			provider := &coretest.Provider{Fragments: []string{"Red", " planet", " vibes 🚀"}}
			env := newTestEnv(t, provider)
			ctx := context.Background()

			var (
				mu     sync.Mutex
				phases []chatui.Phase
			)
			ctrl := newController(env.client(t, "u1", tc.opts...), chatui.WithObserver(func(s chatui.State) {
				mu.Lock()
				phases = append(phases, s.Phase)
				mu.Unlock()
			}))

			if err := ctrl.Start(ctx); err != nil {
				t.Fatalf("Start on a new user should succeed: %v", err)
			}
			if st := ctrl.State(); len(st.ChatIDs) != 0 || st.Current != nil {
				t.Fatalf("new user should have no chats, got %+v", st)
			}

			ctrl.SetPreferences(chatui.Preferences{Tone: "Witty"})
			if err := ctrl.Submit(ctx, "write a tweet about Mars"); err != nil {
				t.Fatalf("Submit failed: %v", err)
			}

			st := ctrl.State()
			if st.Phase != chatui.PhaseSettled || st.Loading {
				t.Fatalf("expected settled state, got %+v", st)
			}
			chatID := st.Current.ID

			instructions := provider.Instructions()
			if len(instructions) != 1 {
				t.Fatalf("expected 1 provider call, got %d", len(instructions))
			}
			if !strings.Contains(instructions[0], "Tone: Witty") || !strings.Contains(instructions[0], "write a tweet about Mars") {
				t.Errorf("instruction missing tone or prompt:\n%s", instructions[0])
			}

			mu.Lock()
			seen := append([]chatui.Phase(nil), phases...)
			mu.Unlock()
			if !containsInOrder(seen, chatui.PhaseAwaiting, chatui.PhaseStreaming, chatui.PhaseSettled) {
				t.Errorf("phases = %v", seen)
			}

			// A fresh controller sees the stored chat after a reload.
			reloaded := newController(env.client(t, "u1"))
			if err := reloaded.Start(ctx); err != nil {
				t.Fatalf("Start after reload failed: %v", err)
			}
			got := reloaded.State().Current
			if got == nil || got.ID != chatID {
				t.Fatalf("expected chat %s to be reopened, got %+v", chatID, got)
			}
			want := []store.Message{
				{Role: store.RoleUser, Content: "write a tweet about Mars"},
				{Role: store.RoleAssistant, Content: "Red planet vibes 🚀"},
			}
			if len(got.Messages) != len(want) {
				t.Fatalf("messages = %+v", got.Messages)
			}
			for i := range want {
				if got.Messages[i] != want[i] {
					t.Errorf("message %d = %+v, want %+v", i, got.Messages[i], want[i])
				}
			}
		})
	}
}

func TestSubmitFailureStoresFallback(t *testing.T) {
	for _, tc := range []struct {
		name     string
		provider *coretest.Provider
	}{
		{name: "before first fragment", provider: &coretest.Provider{FailWith: errors.New("quota exceeded")}},
		{name: "mid stream", provider: &coretest.Provider{Fragments: []string{"Red"}, FailWith: errors.New("connection reset")}},
		{name: "provider unavailable", provider: &coretest.Provider{StartErr: errors.New("dial failed")}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			env := newTestEnv(t, tc.provider)
			ctx := context.Background()
			ctrl := newController(env.client(t, "u1"))

			if err := ctrl.Submit(ctx, "write a tweet about Mars"); err == nil {
				t.Fatal("expected Submit to report the generation failure")
			}

			st := ctrl.State()
			if st.Phase != chatui.PhaseSettled || st.Loading {
				t.Fatalf("expected settled state after failure, got %+v", st)
			}

			stored, err := env.chats.GetChat(ctx, "u1", st.Current.ID)
			if err != nil || stored == nil {
				t.Fatalf("expected stored chat, got %v, %v", stored, err)
			}
			if len(stored.Messages) != 2 {
				t.Fatalf("stored messages = %+v", stored.Messages)
			}
			if stored.Messages[0].Content != "write a tweet about Mars" {
				t.Errorf("user turn = %+v", stored.Messages[0])
			}
			if stored.Messages[1] != (store.Message{Role: store.RoleAssistant, Content: chatui.FallbackMessage}) {
				t.Errorf("assistant turn = %+v, want fallback", stored.Messages[1])
			}
		})
	}
}

func TestSubmitContinuesConversation(t *testing.T) {
	provider := &coretest.Provider{Fragments: []string{"ok"}}
	env := newTestEnv(t, provider)
	ctx := context.Background()
	ctrl := newController(env.client(t, "u1"))

	if err := ctrl.Submit(ctx, "first"); err != nil {
		t.Fatalf("first Submit failed: %v", err)
	}
	if err := ctrl.Submit(ctx, "second"); err != nil {
		t.Fatalf("second Submit failed: %v", err)
	}

	instructions := provider.Instructions()
	if len(instructions) != 2 {
		t.Fatalf("expected 2 provider calls, got %d", len(instructions))
	}
	if !strings.Contains(instructions[1], "User: first") || !strings.Contains(instructions[1], "Assistant: ok") {
		t.Errorf("second instruction lacks prior turns:\n%s", instructions[1])
	}
	if strings.Contains(instructions[1], "User: second") {
		t.Errorf("second instruction repeats its own prompt as history:\n%s", instructions[1])
	}
	if got := len(ctrl.State().Current.Messages); got != 4 {
		t.Errorf("expected 4 messages, got %d", got)
	}
}

func TestSubmitRejectsInvalidPreferences(t *testing.T) {
	provider := &coretest.Provider{Fragments: []string{"x"}}
	env := newTestEnv(t, provider)
	ctx := context.Background()
	ctrl := newController(env.client(t, "u1"))

	ctrl.SetPreferences(chatui.Preferences{Tone: "Sarcastic"})
	if err := ctrl.Submit(ctx, "hello"); !errors.Is(err, core.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if err := ctrl.Submit(ctx, "  "); !errors.Is(err, core.ErrValidation) {
		t.Fatalf("expected validation error for blank prompt, got %v", err)
	}

	ids, err := env.chats.ListChatIDs(ctx, "u1")
	if err != nil || len(ids) != 0 {
		t.Errorf("nothing should be stored, got %v, %v", ids, err)
	}
	if st := ctrl.State(); st.Phase == chatui.PhaseAwaiting || len(st.Current.Messages) != 0 {
		t.Errorf("rejected submit changed state: %+v", st)
	}
	if n := len(provider.Instructions()); n != 0 {
		t.Errorf("provider called %d times", n)
	}
}

func TestChatsAreScopedToUser(t *testing.T) {
	env := newTestEnv(t, &coretest.Provider{Fragments: []string{"hi"}})
	ctx := context.Background()

	if err := newController(env.client(t, "alice")).Submit(ctx, "hello"); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}

	bob := newController(env.client(t, "bob"))
	if err := bob.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if st := bob.State(); len(st.ChatIDs) != 0 || st.Current != nil {
		t.Errorf("bob should not see alice's chats: %+v", st)
	}
}

func TestNewChatAndOpenChat(t *testing.T) {
	env := newTestEnv(t, &coretest.Provider{Fragments: []string{"x"}})
	ctx := context.Background()
	ctrl := newController(env.client(t, "u1"))

	if err := ctrl.Submit(ctx, "one"); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	first := ctrl.State().Current.ID

	second, err := ctrl.NewChat()
	if err != nil {
		t.Fatalf("NewChat failed: %v", err)
	}
	if second <= first {
		t.Errorf("expected a later, distinct id: first=%s second=%s", first, second)
	}
	if err := ctrl.Submit(ctx, "two"); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}

	if err := ctrl.OpenChat(ctx, first); err != nil {
		t.Fatalf("OpenChat failed: %v", err)
	}
	st := ctrl.State()
	if st.Current.ID != first || st.Current.Messages[0].Content != "one" {
		t.Errorf("wrong chat opened: %+v", st.Current)
	}
	if st.Phase != chatui.PhaseIdle {
		t.Errorf("phase = %s, want idle", st.Phase)
	}

	if err := ctrl.OpenChat(ctx, "missing"); !errors.Is(err, chatui.ErrChatNotFound) {
		t.Errorf("expected ErrChatNotFound, got %v", err)
	}

	// Start reopens the most recently created chat.
	reloaded := newController(env.client(t, "u1"))
	if err := reloaded.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if got := reloaded.State(); got.Current.ID != second || len(got.ChatIDs) != 2 {
		t.Errorf("expected chat %s of 2, got %s of %v", second, got.Current.ID, got.ChatIDs)
	}
}

func containsInOrder(seen []chatui.Phase, want ...chatui.Phase) bool {
	i := 0
	for _, p := range seen {
		if i < len(want) && p == want[i] {
			i++
		}
	}
	return i == len(want)
}
