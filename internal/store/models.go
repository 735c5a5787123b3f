package store

import "time"

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAssistant
}

// Message is one turn of a chat. Its position in ChatRecord.Messages is its turn order.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// ChatRecord is the persisted form of a chat, stored as JSON under ChatKey.
type ChatRecord struct {
	ID        string    `json:"id"`
	Messages  []Message `json:"messages"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Clone returns a copy whose message slice does not alias r's.
func (r ChatRecord) Clone() ChatRecord {
	out := r
	out.Messages = append([]Message(nil), r.Messages...)
	return out
}
