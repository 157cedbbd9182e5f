package firestore

import (
	"context"
	"fmt"
	"net/url"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/utec-cdia-v4/web-chat-ia-v3/internal/domain"
)

// Table is a domain.Table on one Firestore collection. Each item is a document
// holding pk and sk as fields; Query needs a composite index on (pk, sk).
type Table struct {
	client     *firestore.Client
	collection string
}

var _ domain.Table = (*Table)(nil)

// NewTable creates a Firestore-backed table named after collection.
func NewTable(ctx context.Context, projectID, collection string) (*Table, error) {
	if projectID == "" {
		return nil, fmt.Errorf("projectID is required for Firestore store")
	}

	client, err := firestore.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("creating firestore client: %w", err)
	}

	return &Table{client: client, collection: collection}, nil
}

// ─────────────────────────────────────────
// Helpers
// ─────────────────────────────────────────

func (t *Table) col() *firestore.CollectionRef {
	return t.client.Collection(t.collection)
}

// docID joins the escaped pk and sk with '|'. Escaping removes '/', which document ids
// may not contain, and '|' itself, so distinct key pairs never share a document.
func docID(pk, sk string) string {
	return url.PathEscape(pk) + "|" + url.PathEscape(sk)
}

func collect(iter *firestore.DocumentIterator, op string) ([]domain.Item, error) {
	defer iter.Stop()

	var out []domain.Item
	for {
		snap, err := iter.Next()
		if err != nil {
			if err == iterator.Done {
				break
			}
			if status.Code(err) == codes.NotFound {
				return nil, nil
			}
			return nil, fmt.Errorf("firestore %s: %w", op, err)
		}

		var it domain.Item
		if err := snap.DataTo(&it); err != nil {
			return nil, fmt.Errorf("decode item %s: %w", snap.Ref.ID, err)
		}
		out = append(out, it)
	}
	return out, nil
}

// ─────────────────────────────────────────
// domain.Table implementation
// ─────────────────────────────────────────

func (t *Table) Put(ctx context.Context, item domain.Item) error {
	_, err := t.col().Doc(docID(item.PK, item.SK)).Set(ctx, item)
	if err != nil {
		return fmt.Errorf("firestore Put: %w", err)
	}
	return nil
}

func (t *Table) Query(ctx context.Context, pk string) ([]domain.Item, error) {
	q := t.col().Where("pk", "==", pk).OrderBy("sk", firestore.Asc)
	return collect(q.Documents(ctx), "Query")
}

func (t *Table) ScanSortKey(ctx context.Context, sk string) ([]domain.Item, error) {
	q := t.col().Where("sk", "==", sk)
	return collect(q.Documents(ctx), "ScanSortKey")
}

func (t *Table) Close() error {
	return t.client.Close()
}
