package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"mercator-hq/bdl/pkg/audit"
)

// RedisConfig contains configuration for the Redis backend.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int

	// KeyPrefix namespaces every key.
	// Default: "bdl:trace:"
	KeyPrefix string

	// TTL expires records automatically. Zero keeps them until deleted.
	// Default: 0
	TTL time.Duration
}

// RedisStorage implements audit.Store on Redis. Each record is a JSON string
// key; a sorted set scored by creation time (microseconds) indexes them.
// Index members whose record expired are dropped lazily on read.
type RedisStorage struct {
	client *redis.Client
	config RedisConfig
	logger *slog.Logger
}

// NewRedisStorage connects to Redis and verifies the connection.
func NewRedisStorage(ctx context.Context, config *RedisConfig, logger *slog.Logger) (*RedisStorage, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     config.Addr,
		Password: config.Password,
		DB:       config.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, audit.NewStorageError("redis", "ping", err)
	}
	return NewRedisStorageWithClient(client, config, logger), nil
}

// NewRedisStorageWithClient uses an existing client.
func NewRedisStorageWithClient(client *redis.Client, config *RedisConfig, logger *slog.Logger) *RedisStorage {
	cfg := *config
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = "bdl:trace:"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisStorage{
		client: client,
		config: cfg,
		logger: logger.With("component", "audit.storage.redis"),
	}
}

func (s *RedisStorage) recordKey(traceID string) string {
	return s.config.KeyPrefix + "record:" + traceID
}

func (s *RedisStorage) indexKey() string {
	return s.config.KeyPrefix + "index"
}

func score(t time.Time) float64 {
	return float64(t.UnixMicro())
}

// Save stores record unless its trace id exists.
func (s *RedisStorage) Save(ctx context.Context, record *audit.Record) error {
	data, err := json.Marshal(record)
	if err != nil {
		return audit.NewStorageError("redis", "save", err)
	}
	ok, err := s.client.SetNX(ctx, s.recordKey(record.TraceID), data, s.config.TTL).Result()
	if err != nil {
		return audit.NewStorageError("redis", "save", err)
	}
	if !ok {
		return audit.NewStorageError("redis", "save", fmt.Errorf("%w: %s", audit.ErrDuplicateTrace, record.TraceID))
	}
	err = s.client.ZAdd(ctx, s.indexKey(), redis.Z{Score: score(record.CreatedAt), Member: record.TraceID}).Err()
	if err != nil {
		return audit.NewStorageError("redis", "index", err)
	}
	return nil
}

// Get returns the record for traceID.
func (s *RedisStorage) Get(ctx context.Context, traceID string) (*audit.Record, error) {
	data, err := s.client.Get(ctx, s.recordKey(traceID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%w: %s", audit.ErrTraceNotFound, traceID)
	}
	if err != nil {
		return nil, audit.NewStorageError("redis", "get", err)
	}
	var record audit.Record
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, audit.NewStorageError("redis", "decode", err)
	}
	return &record, nil
}

// List returns matching records.
func (s *RedisStorage) List(ctx context.Context, query *audit.Query) ([]*audit.Record, error) {
	if query == nil {
		query = &audit.Query{}
	}
	if err := query.Validate(); err != nil {
		return nil, err
	}
	records, err := s.matching(ctx, query)
	if err != nil {
		return nil, err
	}
	return paginate(records, query), nil
}

// Count returns the number of matching records.
func (s *RedisStorage) Count(ctx context.Context, query *audit.Query) (int64, error) {
	if query == nil {
		query = &audit.Query{}
	}
	records, err := s.matching(ctx, query)
	if err != nil {
		return 0, err
	}
	return int64(len(records)), nil
}

// Delete removes matching records and their index entries.
func (s *RedisStorage) Delete(ctx context.Context, query *audit.Query) (int64, error) {
	if query == nil {
		query = &audit.Query{}
	}
	records, err := s.matching(ctx, query)
	if err != nil {
		return 0, err
	}
	if len(records) == 0 {
		return 0, nil
	}

	keys := make([]string, len(records))
	members := make([]interface{}, len(records))
	for i, r := range records {
		keys[i] = s.recordKey(r.TraceID)
		members[i] = r.TraceID
	}
	n, err := s.client.Del(ctx, keys...).Result()
	if err != nil {
		return 0, audit.NewStorageError("redis", "delete", err)
	}
	if err := s.client.ZRem(ctx, s.indexKey(), members...).Err(); err != nil {
		return n, audit.NewStorageError("redis", "delete", err)
	}
	return n, nil
}

// Close closes the client.
func (s *RedisStorage) Close() error {
	if err := s.client.Close(); err != nil {
		return audit.NewStorageError("redis", "close", err)
	}
	return nil
}

// matching loads every record in the query's time range and filters the
// rest in memory.
func (s *RedisStorage) matching(ctx context.Context, query *audit.Query) ([]*audit.Record, error) {
	by := &redis.ZRangeBy{Min: "-inf", Max: "+inf"}
	if query.StartTime != nil {
		by.Min = strconv.FormatFloat(score(*query.StartTime), 'f', 0, 64)
	}
	if query.EndTime != nil {
		by.Max = strconv.FormatFloat(score(*query.EndTime), 'f', 0, 64)
	}
	ids, err := s.client.ZRangeByScore(ctx, s.indexKey(), by).Result()
	if err != nil {
		return nil, audit.NewStorageError("redis", "list", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = s.recordKey(id)
	}
	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, audit.NewStorageError("redis", "list", err)
	}

	var records []*audit.Record
	var expired []interface{}
	for i, v := range values {
		str, ok := v.(string)
		if !ok {
			expired = append(expired, ids[i])
			continue
		}
		var record audit.Record
		if err := json.Unmarshal([]byte(str), &record); err != nil {
			return nil, audit.NewStorageError("redis", "decode", err)
		}
		if query.Matches(&record) {
			records = append(records, &record)
		}
	}
	if len(expired) > 0 {
		if err := s.client.ZRem(ctx, s.indexKey(), expired...).Err(); err != nil {
			s.logger.Warn("failed to drop expired index entries", "count", len(expired), "error", err)
		}
	}
	return records, nil
}
