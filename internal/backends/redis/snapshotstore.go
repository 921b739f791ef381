package redis

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/EvanBelcher/nba-led-scoreboard/internal/types"

	"github.com/redis/go-redis/v9"
)

const (
	snapshotKeyNameTemplate = "_scoreboard_snap_%s"
	callLogKeyNameTemplate  = "_scoreboard_calls_%s" // for rate limiting
)

// SnapshotStore implements ports.SnapshotStore with one string key per
// snapshot.
type SnapshotStore struct {
	cli *redis.Client
}

func NewSnapshotStore(cli *redis.Client) *SnapshotStore {
	return &SnapshotStore{cli: cli}
}

func (s *SnapshotStore) Save(ctx context.Context, key string, payload []byte) error {
	return s.cli.Set(ctx, getSnapshotKeyName(key), payload, 0).Err()
}

func (s *SnapshotStore) Load(ctx context.Context, key string) ([]byte, error) {
	b, err := s.cli.Get(ctx, getSnapshotKeyName(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, types.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return b, nil
}

func (s *SnapshotStore) Keys(ctx context.Context) ([]string, error) {
	names, err := s.scan(ctx)
	if err != nil {
		return nil, err
	}
	prefix := getSnapshotKeyName("")
	keys := make([]string, 0, len(names))
	for _, n := range names {
		keys = append(keys, strings.TrimPrefix(n, prefix))
	}
	return keys, nil
}

func (s *SnapshotStore) ClearAll(ctx context.Context) error {
	names, err := s.scan(ctx)
	if err != nil {
		return err
	}
	if len(names) == 0 {
		return nil
	}
	return s.cli.Del(ctx, names...).Err()
}

func (s *SnapshotStore) scan(ctx context.Context) ([]string, error) {
	var out []string
	iter := s.cli.Scan(ctx, 0, getSnapshotKeyName("*"), 100).Iterator()
	for iter.Next(ctx) {
		out = append(out, iter.Val())
	}
	return out, iter.Err()
}

func getSnapshotKeyName(key string) string {
	return fmt.Sprintf(snapshotKeyNameTemplate, key)
}

func getCallLogKeyName(op string) string {
	return fmt.Sprintf(callLogKeyNameTemplate, op)
}
