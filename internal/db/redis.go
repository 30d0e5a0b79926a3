package db

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/richd0tcom/trashbin/internal/domain"
)

const redisPrefix = "trashbin"

// rolloverScript archives the counter's count under the stale day and resets
// it, in one script run. It returns {applied, count}; applied is 0 when the
// counter no longer carries the expected date and -1 when a total for that day
// already exists.
var rolloverScript = redis.NewScript(`
local last = redis.call('HGET', KEYS[1], 'last_reset_date')
if last ~= ARGV[1] then
  return {0, 0}
end
if redis.call('HEXISTS', KEYS[2], ARGV[1]) == 1 then
  return {-1, 0}
end
local count = tonumber(redis.call('HGET', KEYS[1], 'count') or '0')
redis.call('HSET', KEYS[1], 'count', 0, 'last_reset_date', ARGV[2])
redis.call('HSET', KEYS[2], ARGV[1], count .. '|' .. ARGV[3])
return {1, count}
`)

var incrementScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
  redis.call('HSET', KEYS[1], 'count', 0, 'last_reset_date', ARGV[2])
end
local n = redis.call('HINCRBY', KEYS[1], 'count', ARGV[1])
return {n, redis.call('HGET', KEYS[1], 'last_reset_date')}
`)

// RedisStore keeps each category's events in a sorted set scored by unix
// milliseconds, its live counter in a hash and its archived totals in a hash
// keyed by day.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(addr string) *RedisStore {
	return &RedisStore{client: redis.NewClient(&redis.Options{Addr: addr})}
}

func NewRedisStoreWithURL(url string) (*RedisStore, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return &RedisStore{client: redis.NewClient(opts)}, nil
}

func (r *RedisStore) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func eventsKey(c domain.Category) string  { return redisPrefix + ":events:" + c.String() }
func counterKey(c domain.Category) string { return redisPrefix + ":counter:" + c.String() }
func totalsKey(c domain.Category) string  { return redisPrefix + ":totals:" + c.String() }

func (r *RedisStore) InsertBatch(ctx context.Context, events []domain.Event) error {
	if len(events) == 0 {
		return nil
	}

	pipe := r.client.Pipeline()
	for _, e := range events {
		// the uuid keeps simultaneous detections as separate members
		member := e.OccurredAt.UTC().Format(time.RFC3339Nano) + "|" + uuid.NewString()
		pipe.ZAdd(ctx, eventsKey(e.Category), redis.Z{
			Score:  float64(e.OccurredAt.UnixMilli()),
			Member: member,
		})
	}
	_, err := pipe.Exec(ctx)
	return err
}

func (r *RedisStore) Query(ctx context.Context, category domain.Category, start, end time.Time) ([]domain.Event, error) {
	members, err := r.client.ZRangeByScore(ctx, eventsKey(category), &redis.ZRangeBy{
		Min: strconv.FormatInt(start.UnixMilli(), 10),
		Max: "(" + strconv.FormatInt(end.UnixMilli(), 10),
	}).Result()
	if err != nil {
		return nil, err
	}

	events := make([]domain.Event, 0, len(members))
	for _, m := range members {
		stamp, _, _ := strings.Cut(m, "|")
		at, err := time.Parse(time.RFC3339Nano, stamp)
		if err != nil {
			return nil, fmt.Errorf("malformed event member %q: %w", m, err)
		}
		events = append(events, domain.Event{Category: category, OccurredAt: at})
	}
	return events, nil
}

func (r *RedisStore) QueryAll(ctx context.Context, categories []domain.Category, start, end time.Time) (map[domain.Category][]domain.Event, error) {
	out := make(map[domain.Category][]domain.Event, len(categories))
	for _, c := range categories {
		events, err := r.Query(ctx, c, start, end)
		if err != nil {
			return nil, err
		}
		out[c] = events
	}
	return out, nil
}

func (r *RedisStore) Read(ctx context.Context, category domain.Category) (domain.LiveCounter, error) {
	fields, err := r.client.HGetAll(ctx, counterKey(category)).Result()
	if err != nil {
		return domain.LiveCounter{}, err
	}
	if len(fields) == 0 {
		return domain.LiveCounter{}, domain.ErrCounterNotFound
	}

	count, err := strconv.ParseInt(fields["count"], 10, 64)
	if err != nil {
		return domain.LiveCounter{}, fmt.Errorf("malformed count for %s: %w", category, err)
	}
	return domain.LiveCounter{
		Category:      category,
		Count:         count,
		LastResetDate: domain.Date(fields["last_reset_date"]),
	}, nil
}

func (r *RedisStore) ConditionalReset(ctx context.Context, category domain.Category, expected, today domain.Date, archivedAt time.Time) (domain.Snapshot, bool, error) {
	res, err := rolloverScript.Run(ctx, r.client,
		[]string{counterKey(category), totalsKey(category)},
		expected.String(), today.String(), archivedAt.UnixMilli(),
	).Int64Slice()
	if err != nil {
		return domain.Snapshot{}, false, err
	}
	if len(res) != 2 {
		return domain.Snapshot{}, false, fmt.Errorf("unexpected rollover reply %v", res)
	}

	switch res[0] {
	case 0:
		return domain.Snapshot{}, false, nil
	case -1:
		return domain.Snapshot{}, false, fmt.Errorf("%w: %s total for %s already archived",
			domain.ErrInconsistentRollover, category, expected)
	}

	return domain.Snapshot{
		Category:   category,
		Count:      res[1],
		Day:        expected,
		ArchivedAt: time.UnixMilli(archivedAt.UnixMilli()),
	}, true, nil
}

func (r *RedisStore) Increment(ctx context.Context, category domain.Category, n int64, today domain.Date) (domain.LiveCounter, error) {
	res, err := incrementScript.Run(ctx, r.client, []string{counterKey(category)}, n, today.String()).Slice()
	if err != nil {
		return domain.LiveCounter{}, err
	}
	if len(res) != 2 {
		return domain.LiveCounter{}, fmt.Errorf("unexpected increment reply %v", res)
	}

	count, _ := res[0].(int64)
	last, _ := res[1].(string)
	return domain.LiveCounter{Category: category, Count: count, LastResetDate: domain.Date(last)}, nil
}

func (r *RedisStore) Snapshots(ctx context.Context, category domain.Category) ([]domain.Snapshot, error) {
	fields, err := r.client.HGetAll(ctx, totalsKey(category)).Result()
	if err != nil {
		return nil, err
	}

	out := make([]domain.Snapshot, 0, len(fields))
	for day, value := range fields {
		countStr, atStr, ok := strings.Cut(value, "|")
		if !ok {
			return nil, fmt.Errorf("malformed total %q for %s", value, day)
		}
		count, err := strconv.ParseInt(countStr, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("malformed total %q for %s: %w", value, day, err)
		}
		ms, err := strconv.ParseInt(atStr, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("malformed total %q for %s: %w", value, day, err)
		}
		out = append(out, domain.Snapshot{
			Category:   category,
			Count:      count,
			Day:        domain.Date(day),
			ArchivedAt: time.UnixMilli(ms),
		})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Day < out[j].Day })
	return out, nil
}

func (r *RedisStore) Close() error {
	return r.client.Close()
}
