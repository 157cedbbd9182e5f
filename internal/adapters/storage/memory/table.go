package memory

import (
	"context"
	"slices"
	"strings"
	"sync"

	"github.com/utec-cdia-v4/web-chat-ia-v3/internal/domain"
)

// Table is an in-memory domain.Table.
// It is NOT persistent and is only suitable for development / local mode.
type Table struct {
	mu         sync.RWMutex
	partitions map[string]map[string]domain.Item
}

var _ domain.Table = (*Table)(nil)

func NewTable() *Table {
	return &Table{
		partitions: make(map[string]map[string]domain.Item),
	}
}

func (t *Table) Put(_ context.Context, item domain.Item) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	p, ok := t.partitions[item.PK]
	if !ok {
		p = make(map[string]domain.Item)
		t.partitions[item.PK] = p
	}
	p[item.SK] = item
	return nil
}

func (t *Table) Query(_ context.Context, pk string) ([]domain.Item, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	p := t.partitions[pk]
	out := make([]domain.Item, 0, len(p))
	for _, it := range p {
		out = append(out, it)
	}
	slices.SortFunc(out, func(a, b domain.Item) int {
		return strings.Compare(a.SK, b.SK)
	})
	return out, nil
}

func (t *Table) ScanSortKey(_ context.Context, sk string) ([]domain.Item, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var out []domain.Item
	for _, p := range t.partitions {
		if it, ok := p[sk]; ok {
			out = append(out, it)
		}
	}
	return out, nil
}

func (t *Table) Close() error { return nil }
