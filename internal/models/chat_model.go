package models

import "time"

// MessageCap is the maximum number of messages kept per chat. Appends beyond
// the cap drop the oldest messages first (sliding window) to keep model and
// storage costs bounded.
const MessageCap = 25

// Message roles. Insertion order is conversation order; no reordering occurs.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// DefaultChatTitle is the placeholder title assigned to a new chat until the
// first assistant reply supplies one.
const DefaultChatTitle = "New Reading"

// Message is a single turn in a chat. Ts is a client-assigned millisecond
// timestamp, monotonic per append.
type Message struct {
	Role    string `json:"role" firestore:"role"`
	Content string `json:"content" firestore:"content"`
	Ts      int64  `json:"ts" firestore:"ts"`
}

// Chat is one conversation thread, stored under users/{uid}/chats/{chatId}.
type Chat struct {
	ID        string    `json:"id" firestore:"-"`
	Title     string    `json:"title" firestore:"title"`
	Messages  []Message `json:"messages" firestore:"messages"`
	CreatedAt time.Time `json:"createdAt" firestore:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt" firestore:"updatedAt,serverTimestamp"`
}

// CapMessages returns the most recent MessageCap entries of msgs, preserving
// order. The input slice is not modified.
func CapMessages(msgs []Message) []Message {
	if len(msgs) <= MessageCap {
		return msgs
	}
	return msgs[len(msgs)-MessageCap:]
}
