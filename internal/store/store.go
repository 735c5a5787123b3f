package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

const (
	ContentTypeJSON = "application/json"
	KeyDelimiter    = "/"

	chatsSegment = "chats"
	chatDataFile = "data.json"
)

var (
	ErrNotFound   = errors.New("object not found")
	ErrInvalidKey = errors.New("invalid key segment")
)

// ObjectStore is a flat blob store addressed by string keys. Writes are unconditional:
// the last Put for a key wins.
type ObjectStore interface {
	Put(ctx context.Context, key string, body []byte, contentType string) error
	// Get returns ErrNotFound when nothing is stored under key.
	Get(ctx context.Context, key string) ([]byte, error)
	// ListPrefixed returns the distinct common prefixes (prefix + segment + delimiter)
	// of keys under prefix. Order is backend-defined.
	ListPrefixed(ctx context.Context, prefix, delimiter string) ([]string, error)
}

func validSegment(name, s string) error {
	if s == "" {
		return fmt.Errorf("%w: %s is empty", ErrInvalidKey, name)
	}
	if strings.Contains(s, KeyDelimiter) {
		return fmt.Errorf("%w: %s %q contains %q", ErrInvalidKey, name, s, KeyDelimiter)
	}
	if s == "." || s == ".." {
		return fmt.Errorf("%w: %s %q", ErrInvalidKey, name, s)
	}
	return nil
}

// ChatsPrefix is the listing prefix for all chats of a user: "<userID>/chats/".
func ChatsPrefix(userID string) (string, error) {
	if err := validSegment("user id", userID); err != nil {
		return "", err
	}
	return userID + KeyDelimiter + chatsSegment + KeyDelimiter, nil
}

// ChatKey is the key of a chat record: "<userID>/chats/<chatID>/data.json".
func ChatKey(userID, chatID string) (string, error) {
	prefix, err := ChatsPrefix(userID)
	if err != nil {
		return "", err
	}
	if err := validSegment("chat id", chatID); err != nil {
		return "", err
	}
	return prefix + chatID + KeyDelimiter + chatDataFile, nil
}

// ChatIDFromPrefix extracts the chat id from a common prefix returned by ListPrefixed.
func ChatIDFromPrefix(userPrefix, commonPrefix string) (string, bool) {
	if !strings.HasPrefix(commonPrefix, userPrefix) || !strings.HasSuffix(commonPrefix, KeyDelimiter) {
		return "", false
	}
	id := strings.TrimSuffix(strings.TrimPrefix(commonPrefix, userPrefix), KeyDelimiter)
	if id == "" || strings.Contains(id, KeyDelimiter) {
		return "", false
	}
	return id, true
}

// commonPrefixes collapses keys under prefix to their first delimiter-terminated segment,
// the way S3 reports CommonPrefixes. Keys with no delimiter past the prefix are skipped.
func commonPrefixes(keys []string, prefix, delimiter string) []string {
	out := []string{}
	seen := make(map[string]struct{})
	for _, key := range keys {
		if !strings.HasPrefix(key, prefix) {
			continue
		}
		rest := key[len(prefix):]
		i := strings.Index(rest, delimiter)
		if delimiter == "" || i < 0 {
			continue
		}
		cp := prefix + rest[:i+len(delimiter)]
		if _, ok := seen[cp]; ok {
			continue
		}
		seen[cp] = struct{}{}
		out = append(out, cp)
	}
	return out
}
