package core

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/kiraleos/tweetsmith/internal/store"
)

// ChatService persists chat records in an object store, one JSON blob per chat, namespaced by
// the owning user's id.
type ChatService struct {
	objects store.ObjectStore
}

func NewChatService(objects store.ObjectStore) *ChatService {
	return &ChatService{objects: objects}
}

// SaveChat overwrites the stored record for chatID. An empty record id is set to chatID.
func (s *ChatService) SaveChat(ctx context.Context, userID, chatID string, record store.ChatRecord) error {
	key, err := store.ChatKey(userID, chatID)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrValidation, err)
	}
	if record.ID == "" {
		record.ID = chatID
	}
	if record.ID != chatID {
		return validationErrorf("record id %q does not match chat id %q", record.ID, chatID)
	}
	for i, m := range record.Messages {
		if !m.Role.Valid() {
			return validationErrorf("message %d has unknown role %q", i, m.Role)
		}
	}
	if record.Messages == nil {
		record.Messages = []store.Message{}
	}

	body, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to encode chat %s: %w", chatID, err)
	}
	if err := s.objects.Put(ctx, key, body, store.ContentTypeJSON); err != nil {
		return fmt.Errorf("failed to save chat %s: %w", chatID, err)
	}
	return nil
}

// GetChat returns the stored record, or nil when the user has no chat with that id.
func (s *ChatService) GetChat(ctx context.Context, userID, chatID string) (*store.ChatRecord, error) {
	key, err := store.ChatKey(userID, chatID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrValidation, err)
	}
	body, err := s.objects.Get(ctx, key)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("failed to load chat %s: %w", chatID, err)
	}

	var record store.ChatRecord
	if err := json.Unmarshal(body, &record); err != nil {
		return nil, fmt.Errorf("failed to decode chat %s: %w", chatID, err)
	}
	return &record, nil
}

// ListChatIDs returns the ids of every chat stored for the user, in store order.
func (s *ChatService) ListChatIDs(ctx context.Context, userID string) ([]string, error) {
	prefix, err := store.ChatsPrefix(userID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrValidation, err)
	}
	prefixes, err := s.objects.ListPrefixed(ctx, prefix, store.KeyDelimiter)
	if err != nil {
		return nil, fmt.Errorf("failed to list chats: %w", err)
	}

	ids := make([]string, 0, len(prefixes))
	for _, p := range prefixes {
		if id, ok := store.ChatIDFromPrefix(prefix, p); ok {
			ids = append(ids, id)
		}
	}
	return ids, nil
}
