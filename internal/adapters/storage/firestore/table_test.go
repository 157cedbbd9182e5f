package firestore_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utec-cdia-v4/web-chat-ia-v3/internal/adapters/storage/firestore"
	"github.com/utec-cdia-v4/web-chat-ia-v3/internal/app/chatlog"
	"github.com/utec-cdia-v4/web-chat-ia-v3/internal/domain"
)

func TestTable_AgainstEmulator(t *testing.T) {
	if os.Getenv("FIRESTORE_EMULATOR_HOST") == "" {
		t.Skip("Skipping integration test: FIRESTORE_EMULATOR_HOST not set")
	}

	ctx := context.Background()
	tbl, err := firestore.NewTable(ctx, "demo-chat", "chats-"+uuid.NewString())
	require.NoError(t, err)
	t.Cleanup(func() { _ = tbl.Close() })

	store := chatlog.NewStore(tbl)
	conv, err := store.CreateConversation(ctx, domain.NewConversation{Title: "firestore"})
	require.NoError(t, err)

	_, err = store.AppendMessagePair(ctx, conv.ID, "Hello", "Hi there", time.Now())
	require.NoError(t, err)

	meta, msgs, err := store.GetConversation(ctx, conv.ID)
	require.NoError(t, err)
	require.NotNil(t, meta)
	require.Len(t, msgs, 2)
	assert.Equal(t, domain.RoleUser, msgs[0].Role)
	assert.Equal(t, domain.RoleAssistant, msgs[1].Role)
}
