package chatlog

import (
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/utec-cdia-v4/web-chat-ia-v3/internal/domain"
)

// TimestampLayout renders UTC instants at a fixed width so that string order and time
// order agree. RFC3339Nano trims trailing zeros and must not be used in keys.
const TimestampLayout = "2006-01-02T15:04:05.000000Z"

const (
	partitionPrefix = "CHAT#"
	metaSortKey     = "META"
	messagePrefix   = "MSG#"
)

// Intra-batch indexes of one exchange. The user message always sorts first.
const (
	userIndex      = 0
	assistantIndex = 1
)

func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

func parseTimestamp(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t.UTC()
}

// checkID trims id and rejects ids that are empty or carry control characters.
// Engines join keys with separators such as NUL, so those never reach a key.
func checkID(id domain.ConversationID) (domain.ConversationID, error) {
	id = domain.ConversationID(strings.TrimSpace(string(id)))
	if id == "" {
		return "", domain.NewValidationError(domain.KindChatIDRequired, "conversation id is required")
	}
	if strings.IndexFunc(string(id), unicode.IsControl) >= 0 {
		return "", domain.NewValidationError(domain.KindChatIDInvalid, "conversation id must not contain control characters")
	}
	return id, nil
}

func PartitionKey(id domain.ConversationID) string {
	return partitionPrefix + string(id)
}

// MessageKey builds MSG#<timestamp>#<index>#<role>.
func MessageKey(at time.Time, index int, role domain.Role) string {
	return fmt.Sprintf("%s%s#%03d#%s", messagePrefix, FormatTimestamp(at), index, role)
}

func IsMessageKey(sk string) bool {
	return strings.HasPrefix(sk, messagePrefix)
}
