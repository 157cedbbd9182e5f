package domain

// Conversation is the metadata record of a chat. It never changes after creation.
type Conversation struct {
	ID        ConversationID
	Title     string
	CreatedAt Timestamp
}

// Message is one entry of a conversation's append-only log.
// Seq is the sort key that places it within the conversation.
type Message struct {
	ConversationID ConversationID
	Seq            string
	Role           Role
	Content        string
	CreatedAt      Timestamp
}

// ChatMessage is the {role, content} shape sent to a completion provider.
type ChatMessage struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Completion is what a provider answered.
type Completion struct {
	Content string
}

// NewConversation holds caller input for CreateConversation. Both fields are optional.
type NewConversation struct {
	ID    ConversationID
	Title string
}

// PairKeys are the sequence keys written by AppendMessagePair.
type PairKeys struct {
	UserSeq      string
	AssistantSeq string
}

// Exchange is the result of a successful send.
type Exchange struct {
	Prompt    string
	Answer    string
	CreatedAt Timestamp
}
