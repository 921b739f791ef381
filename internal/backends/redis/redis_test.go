package redis

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/EvanBelcher/nba-led-scoreboard/internal/ports"
	"github.com/EvanBelcher/nba-led-scoreboard/internal/types"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/suite"
)

var (
	_ ports.SnapshotStore = (*SnapshotStore)(nil)
	_ ports.CallLog       = (*CallLog)(nil)
)

// RedisTestSuite requires a reachable Redis at TEST_REDIS_ADDR.
type RedisTestSuite struct {
	suite.Suite
	cli       *redis.Client
	snapshots *SnapshotStore
	calls     *CallLog
}

func TestRedisTestSuite(t *testing.T) {
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set")
	}
	cli := redis.NewClient(&redis.Options{Addr: addr, DB: 0})
	if err := cli.Ping(context.Background()).Err(); err != nil {
		t.Skipf("redis not reachable at %s: %v", addr, err)
	}
	suite.Run(t, &RedisTestSuite{cli: cli})
}

func (s *RedisTestSuite) SetupTest() {
	s.snapshots = NewSnapshotStore(s.cli)
	s.calls = NewCallLog(s.cli)
	s.NoError(s.snapshots.ClearAll(context.Background()))
	s.NoError(s.calls.Reset(context.Background(), "test-op"))
}

func (s *RedisTestSuite) TearDownSuite() {
	_ = s.cli.Close()
}

func (s *RedisTestSuite) TestSnapshotRoundTrip() {
	ctx := context.Background()
	_, err := s.snapshots.Load(ctx, "gamesToday")
	s.ErrorIs(err, types.ErrNotFound)

	s.Require().NoError(s.snapshots.Save(ctx, "gamesToday", []byte{1, 2, 3}))
	s.Require().NoError(s.snapshots.Save(ctx, "standings", []byte("x")))
	b, err := s.snapshots.Load(ctx, "gamesToday")
	s.Require().NoError(err)
	s.Equal([]byte{1, 2, 3}, b)

	keys, err := s.snapshots.Keys(ctx)
	s.Require().NoError(err)
	s.ElementsMatch([]string{"gamesToday", "standings"}, keys)

	s.Require().NoError(s.snapshots.ClearAll(ctx))
	keys, err = s.snapshots.Keys(ctx)
	s.Require().NoError(err)
	s.Empty(keys)
}

func (s *RedisTestSuite) TestCallLogSlidingWindow() {
	ctx := context.Background()
	now := time.Now()
	for i := 0; i < 2; i++ {
		ok, _, err := s.calls.TryAcquire(ctx, "test-op", 2, time.Minute, now.Add(time.Duration(i)*time.Second))
		s.Require().NoError(err)
		s.True(ok)
	}
	ok, wait, err := s.calls.TryAcquire(ctx, "test-op", 2, time.Minute, now.Add(10*time.Second))
	s.Require().NoError(err)
	s.False(ok)
	s.Equal(50*time.Second, wait)

	ok, _, err = s.calls.TryAcquire(ctx, "test-op", 2, time.Minute, now.Add(time.Minute))
	s.Require().NoError(err)
	s.True(ok)
}
