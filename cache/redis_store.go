package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// redisKeyPrefix 是所有缓存键的公共前缀,每个指纹一个 hash。
const redisKeyPrefix = "debate:cache:"

// RedisStore 将记录写入 Redis,适合多实例共享缓存。键按配置的
// TTL 过期,与缓存层的最大存活期对齐。
type RedisStore struct {
	client    *redis.Client
	keyPrefix string
	ttl       time.Duration
	logger    *zap.Logger
}

// NewRedisStore 创建 redis 后端并验证连通性。
func NewRedisStore(cfg StoreConfig, logger *zap.Logger) (*RedisStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisStore{
		client:    client,
		keyPrefix: redisKeyPrefix,
		ttl:       cfg.TTL,
		logger:    logger.With(zap.String("component", "cache-redis")),
	}, nil
}

// Load 扫描前缀下的全部 hash,无法解析的记录跳过并告警。
func (s *RedisStore) Load(ctx context.Context) ([]Record, error) {
	iter := s.client.Scan(ctx, 0, s.keyPrefix+"*", 100).Iterator()

	var records []Record
	for iter.Next(ctx) {
		key := iter.Val()
		fields, err := s.client.HGetAll(ctx, key).Result()
		if err != nil || len(fields) == 0 {
			continue
		}

		rec, err := s.decode(strings.TrimPrefix(key, s.keyPrefix), fields)
		if err != nil {
			s.logger.Warn("跳过无法解析的缓存记录",
				zap.String("key", key),
				zap.Error(err))
			continue
		}
		records = append(records, rec)
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan cache keys: %w", err)
	}

	// 新记录在前,与快照顺序一致
	sort.Slice(records, func(i, j int) bool {
		return records[i].CreatedAt.After(records[j].CreatedAt)
	})
	return records, nil
}

// Flush 写入快照中的全部记录,并删除快照之外的陈旧键。
func (s *RedisStore) Flush(ctx context.Context, records []Record) error {
	keep := make(map[string]struct{}, len(records))
	pipe := s.client.Pipeline()

	for _, rec := range records {
		if rec.Fingerprint == "" {
			continue
		}
		resultJSON, err := json.Marshal(rec.Result)
		if err != nil {
			continue
		}

		key := s.keyPrefix + rec.Fingerprint
		keep[key] = struct{}{}
		pipe.HSet(ctx, key, map[string]interface{}{
			"result":       string(resultJSON),
			"created_at":   rec.CreatedAt.Format(time.RFC3339Nano),
			"confidence":   rec.Confidence,
			"category":     rec.Category,
			"context_path": rec.ContextPath,
			"context_sig":  rec.ContextSig,
		})
		if s.ttl > 0 {
			pipe.Expire(ctx, key, s.ttl)
		}
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to flush cache records: %w", err)
	}
	return s.deleteStale(ctx, keep)
}

// deleteStale 删除快照中不存在的键,保证 Flush 的覆盖语义。
func (s *RedisStore) deleteStale(ctx context.Context, keep map[string]struct{}) error {
	iter := s.client.Scan(ctx, 0, s.keyPrefix+"*", 100).Iterator()

	var stale []string
	for iter.Next(ctx) {
		key := iter.Val()
		if _, ok := keep[key]; !ok {
			stale = append(stale, key)
		}
	}
	if err := iter.Err(); err != nil {
		return err
	}

	if len(stale) > 0 {
		return s.client.Del(ctx, stale...).Err()
	}
	return nil
}

// decode 把 hash 字段还原成 Record。
func (s *RedisStore) decode(fp string, fields map[string]string) (Record, error) {
	rec := Record{
		Fingerprint: fp,
		Category:    fields["category"],
		ContextPath: fields["context_path"],
		ContextSig:  fields["context_sig"],
	}

	if raw := fields["result"]; raw != "" {
		if err := json.Unmarshal([]byte(raw), &rec.Result); err != nil {
			return Record{}, fmt.Errorf("broken result payload: %w", err)
		}
	}
	if raw := fields["created_at"]; raw != "" {
		t, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			return Record{}, fmt.Errorf("broken created_at: %w", err)
		}
		rec.CreatedAt = t
	}
	if raw := fields["confidence"]; raw != "" {
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return Record{}, fmt.Errorf("broken confidence: %w", err)
		}
		rec.Confidence = f
	}
	return rec, nil
}

func (s *RedisStore) Close() error { return s.client.Close() }
