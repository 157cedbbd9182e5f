package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/utec-cdia-v4/web-chat-ia-v3/internal/domain"
)

// Table is a domain.Table on Redis. Each partition is a hash <table>:<pk> whose
// fields are sort keys and whose values are JSON items; the set
// <table>:partitions lists every partition for scans.
type Table struct {
	rdb  *redis.Client
	name string
}

var _ domain.Table = (*Table)(nil)

// Open connects to url (redis://...) and pings the server.
func Open(ctx context.Context, url, table string) (*Table, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	rdb := redis.NewClient(opt)

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return New(rdb, table), nil
}

func New(rdb *redis.Client, table string) *Table {
	return &Table{rdb: rdb, name: table}
}

func (t *Table) partitionKey(pk string) string {
	return t.name + ":" + pk
}

func (t *Table) partitionsKey() string {
	return t.name + ":partitions"
}

func (t *Table) Put(ctx context.Context, item domain.Item) error {
	enc, err := json.Marshal(item)
	if err != nil {
		return fmt.Errorf("encode item: %w", err)
	}

	_, err = t.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, t.partitionKey(item.PK), item.SK, enc)
		pipe.SAdd(ctx, t.partitionsKey(), item.PK)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis put: %w", err)
	}
	return nil
}

func (t *Table) Query(ctx context.Context, pk string) ([]domain.Item, error) {
	fields, err := t.rdb.HGetAll(ctx, t.partitionKey(pk)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis query: %w", err)
	}

	out := make([]domain.Item, 0, len(fields))
	for sk, raw := range fields {
		var it domain.Item
		if err := json.Unmarshal([]byte(raw), &it); err != nil {
			return nil, fmt.Errorf("decode item %s/%s: %w", pk, sk, err)
		}
		out = append(out, it)
	}
	// hashes are unordered
	slices.SortFunc(out, func(a, b domain.Item) int {
		return strings.Compare(a.SK, b.SK)
	})
	return out, nil
}

func (t *Table) ScanSortKey(ctx context.Context, sk string) ([]domain.Item, error) {
	pks, err := t.rdb.SMembers(ctx, t.partitionsKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("redis scan partitions: %w", err)
	}
	if len(pks) == 0 {
		return nil, nil
	}

	cmds := make([]*redis.StringCmd, 0, len(pks))
	_, err = t.rdb.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, pk := range pks {
			cmds = append(cmds, pipe.HGet(ctx, t.partitionKey(pk), sk))
		}
		return nil
	})
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("redis scan: %w", err)
	}

	var out []domain.Item
	for _, cmd := range cmds {
		raw, err := cmd.Result()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("redis scan: %w", err)
		}
		var it domain.Item
		if err := json.Unmarshal([]byte(raw), &it); err != nil {
			return nil, fmt.Errorf("decode item: %w", err)
		}
		out = append(out, it)
	}
	return out, nil
}

func (t *Table) Close() error {
	return t.rdb.Close()
}
