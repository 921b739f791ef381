package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// slidingWindow keeps one sorted set of call timestamps (ms) per operation.
// Returns {1, 0} when admitted, {0, retryAfterMs} otherwise.
var slidingWindow = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local period = tonumber(ARGV[2])
local max = tonumber(ARGV[3])
redis.call('ZREMRANGEBYSCORE', key, '-inf', now - period)
local n = redis.call('ZCARD', key)
if n < max then
  redis.call('ZADD', key, now, ARGV[4])
  redis.call('PEXPIRE', key, period)
  return {1, 0}
end
local oldest = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
return {0, tonumber(oldest[2]) + period - now}
`)

// CallLog implements ports.CallLog so that several controllers sharing one
// upstream budget see each other's calls.
type CallLog struct {
	cli *redis.Client
}

func NewCallLog(cli *redis.Client) *CallLog {
	return &CallLog{cli: cli}
}

func (c *CallLog) TryAcquire(ctx context.Context, op string, maxCalls int, period time.Duration, now time.Time) (bool, time.Duration, error) {
	if maxCalls <= 0 {
		return false, period, nil
	}
	res, err := slidingWindow.Run(ctx, c.cli, []string{getCallLogKeyName(op)},
		now.UnixMilli(), period.Milliseconds(), maxCalls, uuid.NewString()).Int64Slice()
	if err != nil {
		return false, 0, err
	}
	if len(res) != 2 {
		return false, 0, fmt.Errorf("unexpected sliding window reply %v", res)
	}
	if res[0] == 1 {
		return true, 0, nil
	}
	wait := time.Duration(res[1]) * time.Millisecond
	if wait < 0 {
		wait = 0
	}
	return false, wait, nil
}

// Reset drops the recorded calls of op.
func (c *CallLog) Reset(ctx context.Context, op string) error {
	return c.cli.Del(ctx, getCallLogKeyName(op)).Err()
}
