package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/BaSui01/debateflow/internal/database"
)

// flushTxRetries 是刷写事务对瞬时错误(死锁、sqlite 锁竞争)的
// 重试上限。
const flushTxRetries = 3

// gormHealthInterval 是连接池后台探活周期。
const gormHealthInterval = 30 * time.Second

// cacheRow 是 debate_cache 表的行模型,结果负载以 JSON 文本落库。
// 表结构由 internal/migration 管理,这里不做 AutoMigrate。
type cacheRow struct {
	Fingerprint string    `gorm:"column:fingerprint;primaryKey"`
	Result      string    `gorm:"column:result"`
	CreatedAt   time.Time `gorm:"column:created_at"`
	Confidence  float64   `gorm:"column:confidence"`
	Category    string    `gorm:"column:category"`
	ContextPath string    `gorm:"column:context_path"`
	ContextSig  string    `gorm:"column:context_sig"`
}

func (cacheRow) TableName() string { return "debate_cache" }

// GormStore 通过 gorm 落库,按 Driver 选择 sqlite 或 postgres 方言。
// 连接参数与事务重试交给 internal/database 的连接池管理器。
type GormStore struct {
	db     *gorm.DB
	pool   *database.PoolManager
	logger *zap.Logger
}

// NewGormStore 创建数据库后端。Driver 为空时默认 sqlite。
func NewGormStore(cfg StoreConfig, logger *zap.Logger) (*GormStore, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("gorm store requires a dsn")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	var dialector gorm.Dialector
	sqliteDriver := false
	switch cfg.Driver {
	case "", "sqlite":
		dialector = sqlite.Open(cfg.DSN)
		sqliteDriver = true
	case "postgres":
		dialector = postgres.Open(cfg.DSN)
	default:
		return nil, fmt.Errorf("unsupported gorm driver: %s (supported: sqlite, postgres)", cfg.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to open cache database: %w", err)
	}

	poolCfg := database.PoolConfig{
		MaxOpenConns:        cfg.MaxOpenConns,
		MaxIdleConns:        cfg.MaxIdleConns,
		HealthCheckInterval: gormHealthInterval,
	}
	if sqliteDriver && cfg.MaxOpenConns == 0 {
		// sqlite 靠文件锁串行化写入,单连接避开 busy 竞争
		poolCfg.MaxOpenConns = 1
		poolCfg.MaxIdleConns = 1
	}

	pool, err := database.NewPoolManager(db, poolCfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to configure cache db pool: %w", err)
	}

	return &GormStore{
		db:     db,
		pool:   pool,
		logger: logger.With(zap.String("component", "cache-gorm")),
	}, nil
}

// Pool 暴露连接池管理器,服务进程用它挂接指标回调。
func (s *GormStore) Pool() *database.PoolManager { return s.pool }

// DB 暴露底层 gorm 连接,历史记录等同库组件复用它,避免第二个
// 连接池抢同一个 sqlite 文件锁。
func (s *GormStore) DB() *gorm.DB { return s.db }

// Load 读出全表,按创建时间新到旧排序;坏行跳过并告警。
func (s *GormStore) Load(ctx context.Context) ([]Record, error) {
	var rows []cacheRow
	if err := s.db.WithContext(ctx).Order("created_at DESC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to load cache rows: %w", err)
	}

	records := make([]Record, 0, len(rows))
	for _, row := range rows {
		rec := Record{
			Fingerprint: row.Fingerprint,
			CreatedAt:   row.CreatedAt,
			Confidence:  row.Confidence,
			Category:    row.Category,
			ContextPath: row.ContextPath,
			ContextSig:  row.ContextSig,
		}
		if row.Result != "" {
			if err := json.Unmarshal([]byte(row.Result), &rec.Result); err != nil {
				s.logger.Warn("跳过无法解析的缓存行",
					zap.String("fingerprint", row.Fingerprint),
					zap.Error(err))
				continue
			}
		}
		records = append(records, rec)
	}
	return records, nil
}

// Flush 在一个事务里清空并重写全表,保证覆盖语义;瞬时的锁类
// 失败按退避重试。
func (s *GormStore) Flush(ctx context.Context, records []Record) error {
	rows := make([]cacheRow, 0, len(records))
	for _, rec := range records {
		if rec.Fingerprint == "" {
			continue
		}
		resultJSON, err := json.Marshal(rec.Result)
		if err != nil {
			continue
		}
		rows = append(rows, cacheRow{
			Fingerprint: rec.Fingerprint,
			Result:      string(resultJSON),
			CreatedAt:   rec.CreatedAt,
			Confidence:  rec.Confidence,
			Category:    rec.Category,
			ContextPath: rec.ContextPath,
			ContextSig:  rec.ContextSig,
		})
	}

	return s.pool.WithTransactionRetry(ctx, flushTxRetries, func(tx *gorm.DB) error {
		if err := tx.Where("1 = 1").Delete(&cacheRow{}).Error; err != nil {
			return fmt.Errorf("failed to clear cache table: %w", err)
		}
		if len(rows) == 0 {
			return nil
		}
		if err := tx.Create(&rows).Error; err != nil {
			return fmt.Errorf("failed to write cache rows: %w", err)
		}
		return nil
	})
}

// Close 停止探活并关闭底层连接池。
func (s *GormStore) Close() error {
	return s.pool.Close()
}
