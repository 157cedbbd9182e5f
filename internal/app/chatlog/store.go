package chatlog

import (
	"context"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/utec-cdia-v4/web-chat-ia-v3/internal/domain"
	"github.com/utec-cdia-v4/web-chat-ia-v3/internal/observability"
)

// Store implements domain.ConversationStore on top of a single key-value table.
//
// Every record of a conversation shares the partition key CHAT#<id>. The metadata
// record uses the sort key META and messages use MSG#<timestamp>#<index>#<role>, so
// a partition query returns the log already in conversation order.
type Store struct {
	table domain.Table
	now   func() time.Time
	newID func() string
}

var _ domain.ConversationStore = (*Store)(nil)

type Option func(*Store)

// WithClock sets the clock used for conversation creation times.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// WithIDGenerator sets how identifiers are made for conversations created without one.
func WithIDGenerator(newID func() string) Option {
	return func(s *Store) {
		s.newID = newID
	}
}

func NewStore(table domain.Table, opts ...Option) *Store {
	s := &Store{
		table: table,
		now:   time.Now,
		newID: generateID,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// generateID returns a time-ordered UUIDv7 token.
func generateID() string {
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	return "chat-" + id.String()
}

// CreateConversation writes one META record. A caller-supplied id that already exists
// is overwritten: last write wins.
func (s *Store) CreateConversation(ctx context.Context, in domain.NewConversation) (*domain.Conversation, error) {
	id := domain.ConversationID(strings.TrimSpace(string(in.ID)))
	if id == "" {
		id = domain.ConversationID(s.newID())
	} else if _, err := checkID(id); err != nil {
		return nil, err
	}

	title := strings.TrimSpace(in.Title)
	if title == "" {
		title = domain.DefaultConversationTitle
	}

	createdAt := s.now().UTC()

	item := domain.Item{
		PK:        PartitionKey(id),
		SK:        metaSortKey,
		ChatID:    string(id),
		Title:     title,
		CreatedAt: FormatTimestamp(createdAt),
	}
	if err := s.table.Put(ctx, item); err != nil {
		return nil, &domain.StorageError{Op: "create conversation", Err: err}
	}

	observability.LoggerFromContext(ctx).Debug("conversation created", "chat_id", id)

	return &domain.Conversation{
		ID:        id,
		Title:     title,
		CreatedAt: parseTimestamp(item.CreatedAt),
	}, nil
}

// ListConversations scans every META record and returns them newest first.
// It reads the whole table; callers needing scale should paginate instead.
func (s *Store) ListConversations(ctx context.Context) ([]*domain.Conversation, error) {
	items, err := s.table.ScanSortKey(ctx, metaSortKey)
	if err != nil {
		return nil, &domain.StorageError{Op: "list conversations", Err: err}
	}

	out := make([]*domain.Conversation, 0, len(items))
	for _, it := range items {
		out = append(out, toConversation(it))
	}

	slices.SortStableFunc(out, func(a, b *domain.Conversation) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(string(a.ID), string(b.ID))
	})
	return out, nil
}

// GetConversation loads the metadata and the ordered message log of one conversation.
// The metadata is nil when no such conversation exists.
func (s *Store) GetConversation(ctx context.Context, id domain.ConversationID) (*domain.Conversation, []*domain.Message, error) {
	id, err := checkID(id)
	if err != nil {
		return nil, nil, err
	}

	items, err := s.table.Query(ctx, PartitionKey(id))
	if err != nil {
		return nil, nil, &domain.StorageError{Op: "get conversation", Err: err}
	}

	var (
		meta *domain.Conversation
		msgs = make([]*domain.Message, 0, len(items))
	)
	for _, it := range items {
		switch {
		case it.SK == metaSortKey:
			meta = toConversation(it)
		case IsMessageKey(it.SK):
			msgs = append(msgs, &domain.Message{
				ConversationID: id,
				Seq:            it.SK,
				Role:           domain.Role(it.Role),
				Content:        it.Content,
				CreatedAt:      parseTimestamp(it.CreatedAt),
			})
		}
	}

	slices.SortFunc(msgs, func(a, b *domain.Message) int {
		return strings.Compare(a.Seq, b.Seq)
	})
	return meta, msgs, nil
}

// AppendMessagePair writes the user message and then the assistant message of one
// exchange, both stamped with at. The two puts are independent: when the second
// fails the first is kept and the error is returned as is.
func (s *Store) AppendMessagePair(
	ctx context.Context,
	id domain.ConversationID,
	userContent, assistantContent string,
	at time.Time,
) (domain.PairKeys, error) {
	id, err := checkID(id)
	if err != nil {
		return domain.PairKeys{}, err
	}

	ts := FormatTimestamp(at)
	keys := domain.PairKeys{
		UserSeq:      MessageKey(at, userIndex, domain.RoleUser),
		AssistantSeq: MessageKey(at, assistantIndex, domain.RoleAssistant),
	}

	user := domain.Item{
		PK:        PartitionKey(id),
		SK:        keys.UserSeq,
		ChatID:    string(id),
		Role:      string(domain.RoleUser),
		Content:   userContent,
		CreatedAt: ts,
	}
	if err := s.table.Put(ctx, user); err != nil {
		return domain.PairKeys{}, &domain.StorageError{Op: "append user message", Err: err}
	}

	assistant := domain.Item{
		PK:        PartitionKey(id),
		SK:        keys.AssistantSeq,
		ChatID:    string(id),
		Role:      string(domain.RoleAssistant),
		Content:   assistantContent,
		CreatedAt: ts,
	}
	if err := s.table.Put(ctx, assistant); err != nil {
		observability.LoggerFromContext(ctx).Error("assistant message write failed after user message was stored",
			"chat_id", id,
			"user_seq", keys.UserSeq,
			"error", err,
		)
		return domain.PairKeys{}, &domain.StorageError{Op: "append assistant message", Err: err}
	}

	return keys, nil
}

func toConversation(it domain.Item) *domain.Conversation {
	id := it.ChatID
	if id == "" {
		id = strings.TrimPrefix(it.PK, partitionPrefix)
	}
	return &domain.Conversation{
		ID:        domain.ConversationID(id),
		Title:     it.Title,
		CreatedAt: parseTimestamp(it.CreatedAt),
	}
}
