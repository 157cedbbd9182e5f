package bolt

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.etcd.io/bbolt"

	"github.com/utec-cdia-v4/web-chat-ia-v3/internal/domain"
)

// keySep joins partition and sort key. Keys holding it are not rejected here, so
// reads compare the decoded item's keys before returning it.
const keySep = 0x00

// Table is a domain.Table kept in a single BoltDB file. Items live in one bucket,
// keyed pk\x00sk, so a partition is a contiguous, already sorted key range.
type Table struct {
	db     *bbolt.DB
	bucket []byte
}

var _ domain.Table = (*Table)(nil)

// Open opens (or creates) the file at path and the bucket named after table.
func Open(path, table string) (*Table, error) {
	if table == "" {
		return nil, fmt.Errorf("bolt table name is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create bolt dir: %w", err)
	}

	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bolt file: %w", err)
	}

	bucket := []byte(table)
	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucket)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create bolt bucket: %w", err)
	}

	return &Table{db: db, bucket: bucket}, nil
}

func itemKey(pk, sk string) []byte {
	k := make([]byte, 0, len(pk)+len(sk)+1)
	k = append(k, pk...)
	k = append(k, keySep)
	return append(k, sk...)
}

func (t *Table) Put(_ context.Context, item domain.Item) error {
	enc, err := json.Marshal(item)
	if err != nil {
		return fmt.Errorf("encode item: %w", err)
	}
	return t.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(t.bucket).Put(itemKey(item.PK, item.SK), enc)
	})
}

func (t *Table) Query(_ context.Context, pk string) ([]domain.Item, error) {
	prefix := itemKey(pk, "")

	var out []domain.Item
	err := t.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket(t.bucket).Cursor()
		for k, v := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
			var it domain.Item
			if err := json.Unmarshal(v, &it); err != nil {
				return fmt.Errorf("decode item %q: %w", k, err)
			}
			// pk\x00... also prefixes partitions whose own pk continues with \x00
			if it.PK != pk {
				continue
			}
			out = append(out, it)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (t *Table) ScanSortKey(_ context.Context, sk string) ([]domain.Item, error) {
	suffix := append([]byte{keySep}, sk...)

	var out []domain.Item
	err := t.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(t.bucket).ForEach(func(k, v []byte) error {
			if !bytes.HasSuffix(k, suffix) {
				return nil
			}
			var it domain.Item
			if err := json.Unmarshal(v, &it); err != nil {
				return fmt.Errorf("decode item %q: %w", k, err)
			}
			if it.SK == sk {
				out = append(out, it)
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (t *Table) Close() error {
	return t.db.Close()
}
