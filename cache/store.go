package cache

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/debateflow/types"
)

// Record 是缓存条目的持久化形态,Store 后端读写的唯一单位。
type Record struct {
	Fingerprint string                `json:"fingerprint"`
	Result      types.ConsensusResult `json:"result"`
	CreatedAt   time.Time             `json:"created_at"`
	Confidence  float64               `json:"confidence"`
	Category    string                `json:"category,omitempty"`
	ContextPath string                `json:"context_path,omitempty"`
	ContextSig  string                `json:"context_sig,omitempty"`
}

// Store 是缓存的可选持久化后端。装载在启动时发生一次,刷写由
// 缓存的后台循环驱动;实现负责自身的序列化与陈旧键清理。
type Store interface {
	// Load 读出全部持久化记录,按新到旧排序。
	Load(ctx context.Context) ([]Record, error)

	// Flush 以当前快照覆盖持久化状态。
	Flush(ctx context.Context, records []Record) error

	// Close 释放底层资源。
	Close() error
}

// StoreType 标识持久化后端类型。
type StoreType string

const (
	StoreMemory StoreType = "memory"
	StoreFile   StoreType = "file"
	StoreRedis  StoreType = "redis"
	StoreGorm   StoreType = "gorm"
)

// StoreConfig 选择并配置持久化后端。
type StoreConfig struct {
	// Type 是后端类型,空值等同 memory。
	Type StoreType `json:"type" yaml:"type"`

	// Path 是 file 后端的存储文件路径。
	Path string `json:"path" yaml:"path"`

	// Redis 后端连接参数。
	RedisAddr     string `json:"redis_addr" yaml:"redis_addr"`
	RedisDB       int    `json:"redis_db" yaml:"redis_db"`
	RedisPassword string `json:"redis_password" yaml:"redis_password"`

	// TTL 是 redis 键的过期时间,通常与缓存 MaxAge 一致;
	// 0 表示不设过期。
	TTL time.Duration `json:"ttl" yaml:"ttl"`

	// Driver 与 DSN 供 gorm 后端使用,Driver 为 sqlite 或 postgres。
	Driver string `json:"driver" yaml:"driver"`
	DSN    string `json:"dsn" yaml:"dsn"`

	// gorm 后端的连接池上限,0 取默认值(sqlite 默认单连接)。
	MaxOpenConns int `json:"max_open_conns" yaml:"max_open_conns"`
	MaxIdleConns int `json:"max_idle_conns" yaml:"max_idle_conns"`
}

// DefaultStoreConfig 返回默认的存储配置(纯内存,不落盘)。
func DefaultStoreConfig() StoreConfig {
	return StoreConfig{
		Type: StoreMemory,
		Path: "./data/debate_cache.json",
	}
}

// NewStore 按配置构建持久化后端。未知类型报错;调用方决定失败时
// 是否降级为纯内存运行。
func NewStore(cfg StoreConfig, logger *zap.Logger) (Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	switch cfg.Type {
	case "", StoreMemory:
		return NewMemoryStore(), nil
	case StoreFile:
		return NewFileStore(cfg.Path)
	case StoreRedis:
		return NewRedisStore(cfg, logger)
	case StoreGorm:
		return NewGormStore(cfg, logger)
	default:
		return nil, fmt.Errorf("unsupported cache store type: %s", cfg.Type)
	}
}

// MemoryStore 是默认后端:不持久化,装载恒为空。
type MemoryStore struct{}

// NewMemoryStore 创建内存后端。
func NewMemoryStore() *MemoryStore { return &MemoryStore{} }

func (s *MemoryStore) Load(ctx context.Context) ([]Record, error) { return nil, nil }

func (s *MemoryStore) Flush(ctx context.Context, _ []Record) error { return nil }

func (s *MemoryStore) Close() error { return nil }
