package conversation

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/utec-cdia-v4/web-chat-ia-v3/internal/app/chatlog"
	"github.com/utec-cdia-v4/web-chat-ia-v3/internal/domain"
	"github.com/utec-cdia-v4/web-chat-ia-v3/internal/observability"
)

type Service struct {
	completer domain.Completer
	store     domain.ConversationStore
	now       func() time.Time

	// nil unless sends to one conversation are serialized
	locks *keyedMutex
}

type Option func(*Service)

// WithClock sets the clock that stamps exchanges. It must never repeat an instant
// for keys to stay unique; the default is a chatlog.MonotonicClock.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// WithSerializedSends makes concurrent sends to the same conversation run one at a
// time within this process. Other processes are not coordinated.
func WithSerializedSends() Option {
	return func(s *Service) {
		s.locks = newKeyedMutex()
	}
}

func NewService(completer domain.Completer, store domain.ConversationStore, opts ...Option) *Service {
	s := &Service{
		completer: completer,
		store:     store,
		now:       chatlog.NewMonotonicClock(time.Now).Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) CreateConversation(ctx context.Context, in domain.NewConversation) (*domain.Conversation, error) {
	log := observability.LoggerFromContext(ctx)

	conv, err := s.store.CreateConversation(ctx, in)
	if err != nil {
		log.Error("failed to create conversation", "error", err)
		return nil, err
	}

	log.Info("conversation created", "chat_id", conv.ID)
	return conv, nil
}

func (s *Service) ListConversations(ctx context.Context) ([]*domain.Conversation, error) {
	convs, err := s.store.ListConversations(ctx)
	if err != nil {
		observability.LoggerFromContext(ctx).Error("failed to list conversations", "error", err)
		return nil, err
	}
	return convs, nil
}

// GetConversation returns the metadata (nil when unknown) and the ordered messages.
func (s *Service) GetConversation(ctx context.Context, id domain.ConversationID) (*domain.Conversation, []*domain.Message, error) {
	log := observability.LoggerFromContext(ctx).With("chat_id", id)

	conv, msgs, err := s.store.GetConversation(ctx, id)
	if err != nil {
		if _, ok := domain.IsValidation(err); !ok {
			log.Error("failed to get conversation", "error", err)
		}
		return nil, nil, err
	}

	log.Info("fetched conversation", "found", conv != nil, "message_count", len(msgs))
	return conv, msgs, nil
}

type SendMessageInput struct {
	ConversationID domain.ConversationID
	Prompt         string
}

type sendState string

const (
	stateReceivedPrompt      sendState = "received_prompt"
	stateHistoryLoaded       sendState = "history_loaded"
	stateCompletionRequested sendState = "completion_requested"
	stateCompletionSucceeded sendState = "completion_succeeded"
	stateCompletionFailed    sendState = "completion_failed"
	statePersisted           sendState = "persisted"
)

// SendMessage runs one exchange: it loads the history, asks the completer for a reply
// to the prompt, then stores the prompt and the reply as a pair. When the completion
// fails nothing is stored.
func (s *Service) SendMessage(ctx context.Context, in SendMessageInput) (*domain.Exchange, error) {
	id := domain.ConversationID(strings.TrimSpace(string(in.ConversationID)))
	if id == "" {
		return nil, domain.NewValidationError(domain.KindChatIDRequired, "conversation id is required")
	}
	prompt := strings.TrimSpace(in.Prompt)
	if prompt == "" {
		return nil, domain.NewValidationError(domain.KindPromptRequired, "prompt must not be blank")
	}

	log := observability.LoggerFromContext(ctx).With("chat_id", id)
	step := func(st sendState, kv ...any) {
		log.Debug("send message", append([]any{"state", st}, kv...)...)
	}
	step(stateReceivedPrompt, "prompt_chars", len(prompt))

	if s.locks != nil {
		unlock := s.locks.lock(id)
		defer unlock()
	}

	conv, history, err := s.store.GetConversation(ctx, id)
	if err != nil {
		if !IsClientError(err) {
			log.Error("failed to load history", "error", err)
		}
		return nil, err
	}
	if conv == nil {
		return nil, domain.ErrConversationNotFound
	}
	step(stateHistoryLoaded, "history_len", len(history))

	messages := make([]domain.ChatMessage, 0, len(history)+1)
	for _, m := range history {
		messages = append(messages, domain.ChatMessage{Role: m.Role, Content: m.Content})
	}
	messages = append(messages, domain.ChatMessage{Role: domain.RoleUser, Content: prompt})

	step(stateCompletionRequested)
	completion, err := s.completer.Complete(ctx, messages)
	if err != nil {
		step(stateCompletionFailed)
		log.Error("completion failed, exchange not stored", "error", err)
		return nil, err
	}
	step(stateCompletionSucceeded, "answer_chars", len(completion.Content))

	at := s.now()
	keys, err := s.store.AppendMessagePair(ctx, id, prompt, completion.Content, at)
	if err != nil {
		log.Error("failed to store exchange", "error", err)
		return nil, err
	}
	step(statePersisted, "user_seq", keys.UserSeq, "assistant_seq", keys.AssistantSeq)

	log.Info("send message completed")

	return &domain.Exchange{
		Prompt:    prompt,
		Answer:    completion.Content,
		CreatedAt: at,
	}, nil
}

// IsClientError reports whether err was caused by the caller's input.
func IsClientError(err error) bool {
	if _, ok := domain.IsValidation(err); ok {
		return true
	}
	return errors.Is(err, domain.ErrConversationNotFound)
}
