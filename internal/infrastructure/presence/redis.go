package presence

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	domain "github.com/worknest/messaging-api/internal/domain/presence"
)

const keyPrefix = "messaging:typing:"

// RedisStore shares typing signals between replicas. Each chat is one hash of
// user ID to encoded signal; the hash itself expires shortly after the last write.
type RedisStore struct {
	client redis.UniversalClient
	ttl    time.Duration
	log    zerolog.Logger
}

var _ domain.Store = (*RedisStore)(nil)

// evictScript deletes each field only while it still holds the value the
// caller read, so a refresh that lands after the read survives.
var evictScript = redis.NewScript(`
local n = 0
for i = 1, #ARGV, 2 do
  if redis.call('HGET', KEYS[1], ARGV[i]) == ARGV[i + 1] then
    n = n + redis.call('HDEL', KEYS[1], ARGV[i])
  end
end
return n
`)

type redisEntry struct {
	DisplayName string `json:"n"`
	LastSignal  int64  `json:"t"`
}

// NewRedisStore connects to redisURL, a comma separated list of URLs or addresses.
func NewRedisStore(ctx context.Context, redisURL string, ttl time.Duration, log zerolog.Logger) (*RedisStore, error) {
	if redisURL == "" {
		return nil, fmt.Errorf("redis URL must be provided")
	}

	opts, err := buildUniversalOptions(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	logger := log.With().Str("component", "presence-redis").Logger()
	if len(opts.Addrs) > 1 && opts.DB != 0 {
		logger.Warn().Msg("ignoring non-zero DB when using Redis Cluster configuration")
		opts.DB = 0
	}

	client := redis.NewUniversalClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	logger.Info().Int("addrs", len(opts.Addrs)).Msg("connected to redis for presence")
	return NewRedisStoreWithClient(client, ttl, logger), nil
}

// NewRedisStoreWithClient wraps an existing client.
func NewRedisStoreWithClient(client redis.UniversalClient, ttl time.Duration, log zerolog.Logger) *RedisStore {
	if ttl <= 0 {
		ttl = domain.DefaultTTL
	}
	return &RedisStore{client: client, ttl: ttl, log: log}
}

func (s *RedisStore) Set(ctx context.Context, chatID string, typist domain.Typist) error {
	payload, err := json.Marshal(redisEntry{DisplayName: typist.DisplayName, LastSignal: typist.LastSignal.UnixMilli()})
	if err != nil {
		return err
	}
	key := keyPrefix + chatID
	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, key, typist.UserID, payload)
	pipe.PExpire(ctx, key, 2*s.ttl)
	_, err = pipe.Exec(ctx)
	return err
}

func (s *RedisStore) Clear(ctx context.Context, chatID, userID string) error {
	return s.client.HDel(ctx, keyPrefix+chatID, userID).Err()
}

func (s *RedisStore) Active(ctx context.Context, chatID string, now time.Time, ttl time.Duration) ([]domain.Typist, error) {
	key := keyPrefix + chatID
	raw, err := s.client.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, err
	}

	out, expired := decodeEntries(raw, now, ttl)
	if len(expired) > 0 {
		stale := make(map[string]string, len(expired))
		for _, userID := range expired {
			stale[userID] = raw[userID]
		}
		if _, err := s.evict(ctx, key, stale); err != nil {
			s.log.Debug().Err(err).Str("chat_id", chatID).Msg("failed to evict expired typing signals")
		}
	}
	return out, nil
}

// evict removes the given field/value pairs from key, skipping fields that
// changed since they were read. It returns how many fields were removed.
func (s *RedisStore) evict(ctx context.Context, key string, stale map[string]string) (int64, error) {
	args := make([]any, 0, 2*len(stale))
	for field, value := range stale {
		args = append(args, field, value)
	}
	return evictScript.Run(ctx, s.client, []string{key}, args...).Int64()
}

// Close releases the client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// decodeEntries splits a hash into live typists and fields to evict.
// Undecodable fields are evicted too.
func decodeEntries(raw map[string]string, now time.Time, ttl time.Duration) ([]domain.Typist, []string) {
	out := make([]domain.Typist, 0, len(raw))
	var expired []string
	for userID, value := range raw {
		var entry redisEntry
		if err := json.Unmarshal([]byte(value), &entry); err != nil {
			expired = append(expired, userID)
			continue
		}
		last := time.UnixMilli(entry.LastSignal).UTC()
		if domain.Expired(last, now, ttl) {
			expired = append(expired, userID)
			continue
		}
		out = append(out, domain.Typist{UserID: userID, DisplayName: entry.DisplayName, LastSignal: last})
	}
	return out, expired
}

func buildUniversalOptions(raw string) (*redis.UniversalOptions, error) {
	opts := &redis.UniversalOptions{}

	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		if !strings.Contains(part, "://") {
			opts.Addrs = append(opts.Addrs, part)
			continue
		}

		parsed, err := redis.ParseURL(part)
		if err != nil {
			return nil, err
		}
		opts.Addrs = append(opts.Addrs, parsed.Addr)
		if opts.Username == "" {
			opts.Username = parsed.Username
		}
		if opts.Password == "" {
			opts.Password = parsed.Password
		}
		if opts.DB == 0 {
			opts.DB = parsed.DB
		}
		if opts.TLSConfig == nil {
			opts.TLSConfig = parsed.TLSConfig
		}
		if opts.DialTimeout == 0 {
			opts.DialTimeout = parsed.DialTimeout
		}
		if opts.PoolSize == 0 {
			opts.PoolSize = parsed.PoolSize
		}
	}

	if len(opts.Addrs) == 0 {
		return nil, fmt.Errorf("no Redis addresses provided")
	}
	return opts, nil
}
