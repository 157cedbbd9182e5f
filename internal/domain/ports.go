package domain

import (
	"context"
	"time"
)

// Completer turns an ordered chat history (oldest first, new prompt last) into a reply.
type Completer interface {
	Complete(ctx context.Context, history []ChatMessage) (Completion, error)
}

// ConversationStore defines conversation persistence.
type ConversationStore interface {
	CreateConversation(ctx context.Context, in NewConversation) (*Conversation, error)
	ListConversations(ctx context.Context) ([]*Conversation, error)
	// GetConversation returns a nil Conversation when the id is unknown.
	GetConversation(ctx context.Context, id ConversationID) (*Conversation, []*Message, error)
	AppendMessagePair(ctx context.Context, id ConversationID, userContent, assistantContent string, at time.Time) (PairKeys, error)
}

// Item is one record of the chat table. META records use Title, MSG records use
// Role and Content.
type Item struct {
	PK        string `json:"pk" firestore:"pk"`
	SK        string `json:"sk" firestore:"sk"`
	ChatID    string `json:"chatId" firestore:"chatId"`
	Title     string `json:"title,omitempty" firestore:"title,omitempty"`
	Role      string `json:"role,omitempty" firestore:"role,omitempty"`
	Content   string `json:"content,omitempty" firestore:"content,omitempty"`
	CreatedAt string `json:"createdAt" firestore:"createdAt"`
}

// Table is the key-value engine behind the conversation store. It offers nothing
// beyond point writes and lexicographic order on the sort key.
type Table interface {
	// Put writes an item, replacing any item with the same (PK, SK).
	Put(ctx context.Context, item Item) error
	// Query returns every item of a partition sorted by SK ascending.
	Query(ctx context.Context, pk string) ([]Item, error)
	// ScanSortKey returns every item whose SK equals sk, in no particular order.
	ScanSortKey(ctx context.Context, sk string) ([]Item, error)
	Close() error
}
