package memory_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utec-cdia-v4/web-chat-ia-v3/internal/adapters/storage/memory"
	"github.com/utec-cdia-v4/web-chat-ia-v3/internal/domain"
)

func TestTable_QuerySortsBySortKey(t *testing.T) {
	ctx := context.Background()
	tbl := memory.NewTable()

	for _, sk := range []string{"MSG#b", "META", "MSG#a", "MSG#c"} {
		require.NoError(t, tbl.Put(ctx, domain.Item{PK: "CHAT#1", SK: sk}))
	}
	require.NoError(t, tbl.Put(ctx, domain.Item{PK: "CHAT#2", SK: "MSG#0"}))

	items, err := tbl.Query(ctx, "CHAT#1")
	require.NoError(t, err)

	var sks []string
	for _, it := range items {
		sks = append(sks, it.SK)
	}
	assert.Equal(t, []string{"META", "MSG#a", "MSG#b", "MSG#c"}, sks)
}

func TestTable_PutReplacesSameKey(t *testing.T) {
	ctx := context.Background()
	tbl := memory.NewTable()

	require.NoError(t, tbl.Put(ctx, domain.Item{PK: "CHAT#1", SK: "META", Title: "old"}))
	require.NoError(t, tbl.Put(ctx, domain.Item{PK: "CHAT#1", SK: "META", Title: "new"}))

	items, err := tbl.ScanSortKey(ctx, "META")
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "new", items[0].Title)
}

func TestTable_QueryUnknownPartitionIsEmpty(t *testing.T) {
	items, err := memory.NewTable().Query(context.Background(), "CHAT#missing")
	require.NoError(t, err)
	assert.Empty(t, items)
}
