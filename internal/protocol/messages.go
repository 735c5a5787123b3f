// Package protocol defines the JSON shapes exchanged between the browser (or Go client) and
// the server.
package protocol

import "github.com/kiraleos/tweetsmith/internal/store"

// ChatAction selects the operation of a ChatRequest.
type ChatAction string

const (
	ActionSave ChatAction = "save"
	ActionGet  ChatAction = "get"
	ActionList ChatAction = "list"
)

// ChatRequest is the body of POST /api/chats. The owning user is always the authenticated
// caller.
type ChatRequest struct {
	Action   ChatAction        `json:"action"`
	ChatID   string            `json:"chatId,omitempty"`
	ChatData *store.ChatRecord `json:"chatData,omitempty"`
}

type SaveResponse struct {
	Success bool `json:"success"`
}

// GetResponse carries a null Data when the chat does not exist.
type GetResponse struct {
	Data *store.ChatRecord `json:"data"`
}

type ListResponse struct {
	ChatIDs []string `json:"chatIds"`
}

// ErrorResponse is the body of every non-2xx JSON response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// StreamEventType identifies a WebSocket generation frame.
type StreamEventType string

const (
	EventFragment StreamEventType = "fragment"
	EventDone     StreamEventType = "done"
	EventError    StreamEventType = "error"
)

// StreamEvent is one WebSocket frame of a generation. A stream is zero or more fragment
// events followed by exactly one done or error event.
type StreamEvent struct {
	Type  StreamEventType `json:"type"`
	Data  string          `json:"data,omitempty"`
	Error string          `json:"error,omitempty"`
}
