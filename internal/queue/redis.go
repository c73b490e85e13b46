package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RedisQueue is a reliable queue on Redis. Available item ids live in a
// sorted set scored by id, claimed ids in a second sorted set scored by lease
// start, and payloads in a hash. A third hash maps each claimed id to the
// token of its current lease.
type RedisQueue struct {
	client *redis.Client
	keys   redisKeys
	now    func() time.Time
}

type redisKeys struct {
	seq        string
	items      string
	pending    string
	processing string
	claims     string
}

func newRedisKeys(prefix string) redisKeys {
	return redisKeys{
		seq:        prefix + ":seq",
		items:      prefix + ":items",
		pending:    prefix + ":pending",
		processing: prefix + ":processing",
		claims:     prefix + ":claims",
	}
}

type redisEnvelope struct {
	Payload   Payload `json:"payload"`
	CreatedAt int64   `json:"created_at"`
}

var claimScript = redis.NewScript(`
local popped = redis.call('ZPOPMIN', KEYS[1])
if #popped == 0 then return false end
local id = popped[1]
redis.call('ZADD', KEYS[2], ARGV[1], id)
redis.call('HSET', KEYS[4], id, ARGV[2])
return {id, redis.call('HGET', KEYS[3], id)}
`)

var deleteScript = redis.NewScript(`
if redis.call('HGET', KEYS[3], ARGV[1]) ~= ARGV[2] then return 0 end
redis.call('ZREM', KEYS[1], ARGV[1])
redis.call('HDEL', KEYS[2], ARGV[1])
redis.call('HDEL', KEYS[3], ARGV[1])
return 1
`)

var releaseScript = redis.NewScript(`
if redis.call('HGET', KEYS[3], ARGV[1]) ~= ARGV[2] then return 0 end
redis.call('ZREM', KEYS[1], ARGV[1])
redis.call('ZADD', KEYS[2], ARGV[1], ARGV[1])
redis.call('HDEL', KEYS[3], ARGV[1])
return 1
`)

var heartbeatScript = redis.NewScript(`
if redis.call('HGET', KEYS[2], ARGV[1]) ~= ARGV[3] then return 0 end
redis.call('ZADD', KEYS[1], ARGV[2], ARGV[1])
return 1
`)

var reclaimScript = redis.NewScript(`
local ids = redis.call('ZRANGEBYSCORE', KEYS[1], '-inf', '(' .. ARGV[1])
for _, id in ipairs(ids) do
  redis.call('ZREM', KEYS[1], id)
  redis.call('ZADD', KEYS[2], id, id)
  redis.call('HDEL', KEYS[3], id)
end
return #ids
`)

var deleteByDirectoryScript = redis.NewScript(`
local removed = 0
for _, id in ipairs(redis.call('ZRANGE', KEYS[1], 0, -1)) do
  local raw = redis.call('HGET', KEYS[2], id)
  if raw and cjson.decode(raw).payload.directory == ARGV[1] then
    redis.call('ZREM', KEYS[1], id)
    redis.call('HDEL', KEYS[2], id)
    removed = removed + 1
    if ARGV[2] ~= '1' then break end
  end
end
return removed
`)

// OpenRedis connects to the Redis server at url and uses keys under prefix.
func OpenRedis(url, prefix string) (*RedisQueue, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return NewRedisQueue(client, prefix), nil
}

// NewRedisQueue wraps an existing client.
func NewRedisQueue(client *redis.Client, prefix string) *RedisQueue {
	if prefix == "" {
		prefix = "ltpexport:export_queue"
	}
	return &RedisQueue{client: client, keys: newRedisKeys(prefix), now: time.Now}
}

// Enqueue appends p to the queue.
func (q *RedisQueue) Enqueue(ctx context.Context, p Payload) (*Item, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if p.Fields == nil {
		p.Fields = map[string]string{}
	}
	created := q.now().UTC()
	data, err := json.Marshal(redisEnvelope{Payload: p, CreatedAt: created.UnixMilli()})
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	id, err := q.client.Incr(ctx, q.keys.seq).Result()
	if err != nil {
		return nil, fmt.Errorf("allocate item id: %w", err)
	}
	member := strconv.FormatInt(id, 10)
	if _, err := q.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, q.keys.items, member, data)
		pipe.ZAdd(ctx, q.keys.pending, redis.Z{Score: float64(id), Member: member})
		return nil
	}); err != nil {
		return nil, fmt.Errorf("insert item: %w", err)
	}
	return &Item{ID: id, Payload: p, CreatedAt: time.UnixMilli(created.UnixMilli()).UTC()}, nil
}

// Claim leases the oldest available item.
func (q *RedisQueue) Claim(ctx context.Context) (*Item, error) {
	claimed := q.now().UTC()
	token := uuid.NewString()
	res, err := claimScript.Run(ctx, q.client,
		[]string{q.keys.pending, q.keys.processing, q.keys.items, q.keys.claims},
		claimed.UnixMilli(), token,
	).StringSlice()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("claim item: %w", err)
	}
	if len(res) != 2 {
		return nil, fmt.Errorf("claim item: unexpected reply %v", res)
	}
	item, err := decodeRedisItem(res[0], res[1])
	if err != nil {
		return nil, err
	}
	at := time.UnixMilli(claimed.UnixMilli()).UTC()
	item.ClaimedAt = &at
	item.token = token
	return item, nil
}

// Delete removes a claimed item.
func (q *RedisQueue) Delete(ctx context.Context, item *Item) error {
	if item == nil {
		return errors.New("item is nil")
	}
	n, err := deleteScript.Run(ctx, q.client,
		[]string{q.keys.processing, q.keys.items, q.keys.claims},
		item.ID, item.token,
	).Int()
	if err != nil {
		return fmt.Errorf("delete item: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("item %d: %w", item.ID, ErrLeaseLost)
	}
	return nil
}

// Release returns a claimed item to availability.
func (q *RedisQueue) Release(ctx context.Context, item *Item) error {
	if item == nil {
		return errors.New("item is nil")
	}
	n, err := releaseScript.Run(ctx, q.client,
		[]string{q.keys.processing, q.keys.pending, q.keys.claims},
		item.ID, item.token,
	).Int()
	if err != nil {
		return fmt.Errorf("release item: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("item %d: %w", item.ID, ErrLeaseLost)
	}
	item.ClaimedAt = nil
	item.token = ""
	return nil
}

// Heartbeat restarts the lease of a claimed item.
func (q *RedisQueue) Heartbeat(ctx context.Context, item *Item) error {
	if item == nil {
		return errors.New("item is nil")
	}
	now := q.now().UTC()
	n, err := heartbeatScript.Run(ctx, q.client,
		[]string{q.keys.processing, q.keys.claims},
		item.ID, now.UnixMilli(), item.token,
	).Int()
	if err != nil {
		return fmt.Errorf("update heartbeat: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("item %d: %w", item.ID, ErrLeaseLost)
	}
	at := time.UnixMilli(now.UnixMilli()).UTC()
	item.ClaimedAt = &at
	return nil
}

// List returns every item ordered by id.
func (q *RedisQueue) List(ctx context.Context) ([]*Item, error) {
	var (
		itemsCmd   *redis.MapStringStringCmd
		claimedCmd *redis.ZSliceCmd
	)
	if _, err := q.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		itemsCmd = pipe.HGetAll(ctx, q.keys.items)
		claimedCmd = pipe.ZRangeWithScores(ctx, q.keys.processing, 0, -1)
		return nil
	}); err != nil {
		return nil, fmt.Errorf("list queue items: %w", err)
	}
	claimed := make(map[string]int64)
	for _, z := range claimedCmd.Val() {
		if member, ok := z.Member.(string); ok {
			claimed[member] = int64(z.Score)
		}
	}
	items := make([]*Item, 0, len(itemsCmd.Val()))
	for member, raw := range itemsCmd.Val() {
		item, err := decodeRedisItem(member, raw)
		if err != nil {
			return nil, err
		}
		if ms, ok := claimed[member]; ok {
			at := time.UnixMilli(ms).UTC()
			item.ClaimedAt = &at
		}
		items = append(items, item)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })
	return items, nil
}

// Stats counts available and claimed items.
func (q *RedisQueue) Stats(ctx context.Context) (Stats, error) {
	var pending, claimed *redis.IntCmd
	if _, err := q.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		pending = pipe.ZCard(ctx, q.keys.pending)
		claimed = pipe.ZCard(ctx, q.keys.processing)
		return nil
	}); err != nil {
		return Stats{}, fmt.Errorf("queue stats: %w", err)
	}
	return Stats{Pending: int(pending.Val()), Claimed: int(claimed.Val())}, nil
}

// ReclaimStale releases items whose lease started before cutoff.
func (q *RedisQueue) ReclaimStale(ctx context.Context, cutoff time.Time) (int64, error) {
	n, err := reclaimScript.Run(ctx, q.client,
		[]string{q.keys.processing, q.keys.pending, q.keys.claims},
		cutoff.UTC().UnixMilli(),
	).Int64()
	if err != nil {
		return 0, fmt.Errorf("reclaim stale items: %w", err)
	}
	return n, nil
}

// DeleteByDirectory removes available items of directory in one script run,
// the oldest only unless all is set.
func (q *RedisQueue) DeleteByDirectory(ctx context.Context, directory string, all bool) (int, error) {
	flag := "0"
	if all {
		flag = "1"
	}
	n, err := deleteByDirectoryScript.Run(ctx, q.client,
		[]string{q.keys.pending, q.keys.items},
		directory, flag,
	).Int()
	if err != nil {
		return 0, fmt.Errorf("delete items by directory: %w", err)
	}
	return n, nil
}

// Clear removes every item. Item ids keep increasing across clears.
func (q *RedisQueue) Clear(ctx context.Context) (int64, error) {
	var count *redis.IntCmd
	if _, err := q.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		count = pipe.HLen(ctx, q.keys.items)
		pipe.Del(ctx, q.keys.items, q.keys.pending, q.keys.processing, q.keys.claims)
		return nil
	}); err != nil {
		return 0, fmt.Errorf("clear queue: %w", err)
	}
	return count.Val(), nil
}

// Close closes the client.
func (q *RedisQueue) Close() error {
	return q.client.Close()
}

func decodeRedisItem(member, raw string) (*Item, error) {
	id, err := strconv.ParseInt(member, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("parse item id %q: %w", member, err)
	}
	var env redisEnvelope
	if err := json.Unmarshal([]byte(raw), &env); err != nil {
		return nil, fmt.Errorf("unmarshal payload: %w", err)
	}
	return &Item{ID: id, Payload: env.Payload, CreatedAt: time.UnixMilli(env.CreatedAt).UTC()}, nil
}
