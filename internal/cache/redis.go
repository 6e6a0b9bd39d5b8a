package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"mediashare/internal/config"
)

func NewRedisClient(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return client, nil
}

// RedisStore shares cached responses between API replicas. Each tag is a set of the
// entry keys carrying it plus a generation counter. Scripts touch entry keys they read
// from tag sets, so the store needs a single Redis node rather than a cluster.
type RedisStore struct {
	client *redis.Client
	prefix string
}

func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "mediashare:cache:"
	}
	return &RedisStore{client: client, prefix: prefix}
}

func (s *RedisStore) entryKey(key string) string { return s.prefix + "entry:" + key }
func (s *RedisStore) tagKey(tag string) string   { return s.prefix + "tag:" + tag }

func (s *RedisStore) Get(ctx context.Context, key string) (Entry, bool, error) {
	raw, err := s.client.Get(ctx, s.entryKey(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Entry{}, false, nil
		}
		return Entry{}, false, fmt.Errorf("cache get: %w", err)
	}
	var entry Entry
	if err := json.Unmarshal(raw, &entry); err != nil {
		return Entry{}, false, fmt.Errorf("decode cache entry: %w", err)
	}
	return entry, true, nil
}

// setScript stores an entry only if the summed generation of its tags still matches.
// KEYS: entry, gen keys, tag keys. ARGV: gen, payload, ttl in ms, tag count.
var setScript = redis.NewScript(`
local n = tonumber(ARGV[4])
local gen = 0
for i = 1, n do
  gen = gen + tonumber(redis.call("GET", KEYS[1 + i]) or "0")
end
if gen ~= tonumber(ARGV[1]) then
  return 0
end
redis.call("SET", KEYS[1], ARGV[2], "PX", ARGV[3])
for i = 1, n do
  local tagKey = KEYS[1 + n + i]
  redis.call("SADD", tagKey, KEYS[1])
  if redis.call("PTTL", tagKey) < tonumber(ARGV[3]) then
    redis.call("PEXPIRE", tagKey, ARGV[3])
  end
end
return 1`)

// invalidateScript bumps each tag's generation and drops the tag set with its members
// in one step. KEYS: gen keys, tag keys.
var invalidateScript = redis.NewScript(`
local n = #KEYS / 2
for i = 1, n do
  redis.call("INCR", KEYS[i])
  local tagKey = KEYS[n + i]
  local members = redis.call("SMEMBERS", tagKey)
  for j = 1, #members, 500 do
    redis.call("DEL", unpack(members, j, math.min(j + 499, #members)))
  end
  redis.call("DEL", tagKey)
end
return n`)

func (s *RedisStore) Generation(ctx context.Context, tags ...string) (uint64, error) {
	if len(tags) == 0 {
		return 0, nil
	}
	values, err := s.client.MGet(ctx, s.genKeys(tags)...).Result()
	if err != nil {
		return 0, fmt.Errorf("cache generation: %w", err)
	}
	var gen uint64
	for _, value := range values {
		raw, ok := value.(string)
		if !ok {
			continue
		}
		n, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("cache generation %q: %w", raw, err)
		}
		gen += n
	}
	return gen, nil
}

func (s *RedisStore) Set(ctx context.Context, key string, entry Entry, ttl time.Duration, gen uint64, tags ...string) error {
	raw, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encode cache entry: %w", err)
	}

	keys := make([]string, 0, 1+2*len(tags))
	keys = append(keys, s.entryKey(key))
	keys = append(keys, s.genKeys(tags)...)
	keys = append(keys, s.tagKeys(tags)...)
	stored, err := setScript.Run(ctx, s.client, keys, gen, raw, ttl.Milliseconds(), len(tags)).Int()
	if err != nil {
		return fmt.Errorf("cache set: %w", err)
	}
	if stored == 0 {
		return ErrStale
	}
	return nil
}

func (s *RedisStore) Invalidate(ctx context.Context, tags ...string) error {
	if len(tags) == 0 {
		return nil
	}
	keys := append(s.genKeys(tags), s.tagKeys(tags)...)
	if err := invalidateScript.Run(ctx, s.client, keys).Err(); err != nil {
		return fmt.Errorf("cache invalidate: %w", err)
	}
	return nil
}

func (s *RedisStore) genKeys(tags []string) []string {
	keys := make([]string, len(tags))
	for i, tag := range tags {
		keys[i] = s.prefix + "gen:" + tag
	}
	return keys
}

func (s *RedisStore) tagKeys(tags []string) []string {
	keys := make([]string, len(tags))
	for i, tag := range tags {
		keys[i] = s.tagKey(tag)
	}
	return keys
}
