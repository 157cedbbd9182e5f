package domain

import (
	"errors"
	"fmt"
)

// Validation kinds reported to clients.
const (
	KindChatIDRequired = "chatId_required"
	KindChatIDInvalid  = "chatId_invalid"
	KindPromptRequired = "prompt_required"
	KindInvalidBody    = "invalid_body"
)

// ErrConversationNotFound is returned when a message is sent to an unknown conversation.
var ErrConversationNotFound = errors.New("conversation not found")

// ConfigError reports a missing or invalid setting. It is fatal and never retried.
type ConfigError struct {
	Setting string
	Reason  string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("configuration error: %s %s", e.Setting, e.Reason)
}

// ValidationError reports bad caller input. Nothing has been read or written when it is returned.
type ValidationError struct {
	Kind   string
	Detail string
}

func (e *ValidationError) Error() string {
	if e.Detail == "" {
		return e.Kind
	}
	return e.Kind + ": " + e.Detail
}

func NewValidationError(kind, detail string) *ValidationError {
	return &ValidationError{Kind: kind, Detail: detail}
}

// ProviderError is a failed completion attempt. Status is 0 for transport failures.
type ProviderError struct {
	Status    int
	Message   string
	Transient bool
	Err       error
}

func (e *ProviderError) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("completion provider connection error: %v", e.Err)
	}
	if e.Message == "" {
		return fmt.Sprintf("completion provider error: %d", e.Status)
	}
	return fmt.Sprintf("completion provider error: %d %s", e.Status, e.Message)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// RetriesExhaustedError wraps the last transient failure once the retry budget is spent.
type RetriesExhaustedError struct {
	Attempts int
	Last     error
}

func (e *RetriesExhaustedError) Error() string {
	return fmt.Sprintf("completion failed after %d attempts: %v", e.Attempts, e.Last)
}

func (e *RetriesExhaustedError) Unwrap() error { return e.Last }

// StorageError is a failure of the backing table. It is not retried.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// IsValidation reports whether err is a ValidationError and returns it.
func IsValidation(err error) (*ValidationError, bool) {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve, true
	}
	return nil, false
}
