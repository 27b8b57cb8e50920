package telemetry

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/BaSui01/debateflow/types"
)

// historyBuffer 是写入队列容量,队列满时丢弃新记录。
const historyBuffer = 256

// historyRow 是 debate_history 表的行模型。表结构由
// internal/migration 管理,这里不做 AutoMigrate。
type historyRow struct {
	ID         uint      `gorm:"column:id;primaryKey;autoIncrement"`
	SessionID  string    `gorm:"column:session_id"`
	Question   string    `gorm:"column:question"`
	Category   string    `gorm:"column:category"`
	AgentsUsed string    `gorm:"column:agents_used"`
	Winner     string    `gorm:"column:winner"`
	DurationMS int64     `gorm:"column:duration_ms"`
	Confidence float64   `gorm:"column:confidence"`
	FromCache  bool      `gorm:"column:from_cache"`
	Verified   bool      `gorm:"column:verified"`
	Flagged    bool      `gorm:"column:flagged"`
	FinishedAt time.Time `gorm:"column:finished_at"`
}

func (historyRow) TableName() string { return "debate_history" }

// HistoryFilter 限定历史查询范围。零值字段不参与过滤。
type HistoryFilter struct {
	Category string
	Flagged  *bool
	Limit    int
}

// HistorySink 把辩论记录落进数据库,供审计与历史查询。写入走
// 后台队列,Record 永不阻塞;队列满时丢新记录,只丢审计不丢辩论。
type HistorySink struct {
	db     *gorm.DB
	logger *zap.Logger

	mu      sync.Mutex
	ch      chan types.DebateRecord
	closed  bool
	wg      sync.WaitGroup
	dropped atomic.Int64
}

// NewHistorySink 创建历史记录通道。db 通常复用缓存库的连接
// (cache.GormStore.DB()),表结构需先由 migrate 建好。
func NewHistorySink(db *gorm.DB, logger *zap.Logger) (*HistorySink, error) {
	if db == nil {
		return nil, fmt.Errorf("history sink requires a gorm db")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &HistorySink{
		db:     db,
		logger: logger.With(zap.String("component", "telemetry-history")),
		ch:     make(chan types.DebateRecord, historyBuffer),
	}
	s.wg.Add(1)
	go s.run()
	return s, nil
}

// Record 排队一条记录。队列满或通道已关闭时丢弃。
func (s *HistorySink) Record(rec types.DebateRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	select {
	case s.ch <- rec:
	default:
		s.dropped.Add(1)
	}
}

// run 是唯一的写入者,逐条落库;失败只告警,记录是旁路数据。
func (s *HistorySink) run() {
	defer s.wg.Done()
	for rec := range s.ch {
		row := historyRow{
			SessionID:  rec.SessionID,
			Question:   rec.Question,
			Category:   string(rec.Category),
			AgentsUsed: joinAgentIDs(rec.AgentsUsed),
			Winner:     string(rec.Winner),
			DurationMS: rec.Duration.Milliseconds(),
			Confidence: rec.Confidence,
			FromCache:  rec.FromCache,
			Verified:   rec.Verified,
			Flagged:    rec.Flagged,
			FinishedAt: rec.FinishedAt,
		}
		if err := s.db.Create(&row).Error; err != nil {
			s.logger.Warn("failed to persist debate record",
				zap.String("session_id", rec.SessionID),
				zap.Error(err))
		}
	}
}

// List 按过滤条件返回历史记录,新到旧排序。Limit 缺省 50,
// 上限 500。
func (s *HistorySink) List(ctx context.Context, filter HistoryFilter) ([]types.DebateRecord, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	if limit > 500 {
		limit = 500
	}

	q := s.db.WithContext(ctx).Order("finished_at DESC, id DESC").Limit(limit)
	if filter.Category != "" {
		q = q.Where("category = ?", filter.Category)
	}
	if filter.Flagged != nil {
		q = q.Where("flagged = ?", *filter.Flagged)
	}

	var rows []historyRow
	if err := q.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to query debate history: %w", err)
	}

	records := make([]types.DebateRecord, 0, len(rows))
	for _, row := range rows {
		records = append(records, types.DebateRecord{
			SessionID:  row.SessionID,
			Question:   row.Question,
			Category:   types.Category(row.Category),
			AgentsUsed: splitAgentIDs(row.AgentsUsed),
			Winner:     types.AgentID(row.Winner),
			Duration:   time.Duration(row.DurationMS) * time.Millisecond,
			Confidence: row.Confidence,
			FromCache:  row.FromCache,
			Verified:   row.Verified,
			Flagged:    row.Flagged,
			FinishedAt: row.FinishedAt,
		})
	}
	return records, nil
}

// Dropped 返回因队列满而丢弃的记录数。
func (s *HistorySink) Dropped() int64 {
	return s.dropped.Load()
}

// Close 停止接收并等待队列写完。底层数据库连接归缓存库所有,
// 这里不关闭。
func (s *HistorySink) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	close(s.ch)
	s.mu.Unlock()

	s.wg.Wait()
	return nil
}

func joinAgentIDs(ids []types.AgentID) string {
	if len(ids) == 0 {
		return ""
	}
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = string(id)
	}
	return strings.Join(parts, ",")
}

func splitAgentIDs(joined string) []types.AgentID {
	if joined == "" {
		return nil
	}
	parts := strings.Split(joined, ",")
	ids := make([]types.AgentID, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			ids = append(ids, types.AgentID(p))
		}
	}
	return ids
}
