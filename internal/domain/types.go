package domain

import "time"

type ConversationID string

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

type Timestamp = time.Time

// DefaultConversationTitle is used when a conversation is created without a title.
const DefaultConversationTitle = "Nuevo chat"
