package cache

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/debateflow/types"
)

// storeIOTimeout 限制单次持久化读写的时长。
const storeIOTimeout = 10 * time.Second

// EntryMeta 是写入条目时记录的元数据,失效谓词据此决策。
type EntryMeta struct {
	Confidence  float64        `json:"confidence"`
	Category    types.Category `json:"category"`
	ContextPath string         `json:"context_path,omitempty"`
	ContextSig  string         `json:"context_sig,omitempty"`
}

// Entry 是一条缓存记录的只读视图。
type Entry struct {
	Fingerprint string                `json:"fingerprint"`
	Result      types.ConsensusResult `json:"result"`
	Meta        EntryMeta             `json:"meta"`
	CreatedAt   time.Time             `json:"created_at"`
	HitCount    int64                 `json:"hit_count"`
}

// CacheStats 是缓存计数的快照。
type CacheStats struct {
	Entries     int     `json:"entries"`
	Hits        int64   `json:"hits"`
	Misses      int64   `json:"misses"`
	Evictions   int64   `json:"evictions"`
	Expirations int64   `json:"expirations"`
	HitRate     float64 `json:"hit_rate"`
}

// Config 配置缓存层。
type Config struct {
	// Enabled 为 false 时整层直通,所有操作都是空操作。
	Enabled bool `json:"enabled" yaml:"enabled"`

	// MaxEntries 是容量上限,超出按 LRU 淘汰。
	MaxEntries int `json:"max_entries" yaml:"max_entries"`

	// MaxAge 是条目的最大存活期,过期条目在读取时剔除。
	MaxAge time.Duration `json:"max_age" yaml:"max_age"`

	// FlushInterval 是绑定持久化存储后的刷写周期。
	FlushInterval time.Duration `json:"flush_interval" yaml:"flush_interval"`

	// Store 选择可选的持久化后端。
	Store StoreConfig `json:"store" yaml:"store"`
}

// DefaultConfig 返回缓存层默认配置。
func DefaultConfig() Config {
	return Config{
		Enabled:       true,
		MaxEntries:    512,
		MaxAge:        24 * time.Hour,
		FlushInterval: 5 * time.Minute,
		Store:         DefaultStoreConfig(),
	}
}

// lruNode 是双向链表节点,head 为最近使用端。
type lruNode struct {
	key       string
	entry     *Entry
	expiresAt time.Time
	prev      *lruNode
	next      *lruNode
}

// DebateCache 以请求指纹为键缓存辩论结果。LRU 语义:读取提升
// 条目至表头,容量超限淘汰表尾。nil 或停用的缓存是透明直通。
type DebateCache struct {
	mu       sync.RWMutex
	capacity int
	maxAge   time.Duration
	items    map[string]*lruNode
	head     *lruNode
	tail     *lruNode

	hits        int64
	misses      int64
	evictions   int64
	expirations int64

	store     Store
	stopFlush chan struct{}
	flushDone chan struct{}

	disabled bool
	logger   *zap.Logger
}

// New 创建缓存。cfg.Enabled 为 false 时返回直通实例。
func New(cfg Config, logger *zap.Logger) *DebateCache {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxEntries <= 0 {
		cfg.MaxEntries = DefaultConfig().MaxEntries
	}
	if cfg.MaxAge <= 0 {
		cfg.MaxAge = DefaultConfig().MaxAge
	}

	return &DebateCache{
		capacity: cfg.MaxEntries,
		maxAge:   cfg.MaxAge,
		items:    make(map[string]*lruNode),
		disabled: !cfg.Enabled,
		logger:   logger.With(zap.String("component", "cache")),
	}
}

// Enabled 报告缓存是否参与查找与写入。
func (c *DebateCache) Enabled() bool {
	return c != nil && !c.disabled
}

// Lookup 按指纹查找。过期条目在读取时移除;命中提升至表头并累加
// 命中计数,返回的结果带 FromCache 标记。
func (c *DebateCache) Lookup(fp string) (types.ConsensusResult, bool) {
	if !c.Enabled() {
		return types.ConsensusResult{}, false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	node, ok := c.items[fp]
	if !ok {
		c.misses++
		return types.ConsensusResult{}, false
	}

	if time.Now().After(node.expiresAt) {
		c.removeNode(node)
		delete(c.items, fp)
		c.expirations++
		c.misses++
		return types.ConsensusResult{}, false
	}

	c.moveToHead(node)
	node.entry.HitCount++
	c.hits++

	result := node.entry.Result
	result.FromCache = true
	return result, true
}

// Store 写入一条结果。条目一经写入不再改写:重写相同指纹会替换
// 整个节点。先插入后淘汰,容量超限时剔除表尾。
func (c *DebateCache) Store(fp string, result types.ConsensusResult, meta EntryMeta) {
	if !c.Enabled() || fp == "" {
		return
	}

	// 入库形态不带缓存标记,命中时由 Lookup 重新打上
	result.FromCache = false
	now := time.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	if node, ok := c.items[fp]; ok {
		c.removeNode(node)
		delete(c.items, fp)
	}

	node := &lruNode{
		key: fp,
		entry: &Entry{
			Fingerprint: fp,
			Result:      result,
			Meta:        meta,
			CreatedAt:   now,
		},
		expiresAt: now.Add(c.maxAge),
	}
	c.items[fp] = node
	c.addToHead(node)

	for len(c.items) > c.capacity {
		c.evictTail()
	}
}

// Invalidate 移除所有满足谓词的条目,返回移除数量。
func (c *DebateCache) Invalidate(pred func(Entry) bool) int {
	if !c.Enabled() || pred == nil {
		return 0
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for key, node := range c.items {
		if pred(*node.entry) {
			c.removeNode(node)
			delete(c.items, key)
			removed++
		}
	}
	return removed
}

// ByCategory 匹配指定类别的条目。
func ByCategory(cat types.Category) func(Entry) bool {
	return func(e Entry) bool { return e.Meta.Category == cat }
}

// BelowConfidence 匹配置信度低于 min 的条目。
func BelowConfidence(min float64) func(Entry) bool {
	return func(e Entry) bool { return e.Meta.Confidence < min }
}

// ByContextSignature 匹配使用过 path 且记录的内容签名与当前签名
// 不一致的条目。上下文目录变动后用它清除陈旧结果。
func ByContextSignature(path, sig string) func(Entry) bool {
	return func(e Entry) bool {
		return e.Meta.ContextPath == path && e.Meta.ContextSig != sig
	}
}

// Stats 返回计数快照。HitRate 为 hits/(hits+misses),无访问时为 0。
func (c *DebateCache) Stats() CacheStats {
	if !c.Enabled() {
		return CacheStats{}
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	stats := CacheStats{
		Entries:     len(c.items),
		Hits:        c.hits,
		Misses:      c.misses,
		Evictions:   c.evictions,
		Expirations: c.expirations,
	}
	if total := stats.Hits + stats.Misses; total > 0 {
		stats.HitRate = float64(stats.Hits) / float64(total)
	}
	return stats
}

// Len 返回当前条目数。
func (c *DebateCache) Len() int {
	if !c.Enabled() {
		return 0
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// Clear 清空全部条目,生命周期计数器保留。
func (c *DebateCache) Clear() {
	if !c.Enabled() {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.items = make(map[string]*lruNode)
	c.head = nil
	c.tail = nil
}

// Snapshot 导出当前条目为持久化记录,最近使用的在前。
func (c *DebateCache) Snapshot() []Record {
	if !c.Enabled() {
		return nil
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	records := make([]Record, 0, len(c.items))
	for node := c.head; node != nil; node = node.next {
		records = append(records, Record{
			Fingerprint: node.key,
			Result:      node.entry.Result,
			CreatedAt:   node.entry.CreatedAt,
			Confidence:  node.entry.Meta.Confidence,
			Category:    string(node.entry.Meta.Category),
			ContextPath: node.entry.Meta.ContextPath,
			ContextSig:  node.entry.Meta.ContextSig,
		})
	}
	return records
}

// Restore 从持久化记录重建条目。记录按新到旧给出;过期与重复的
// 跳过,装满即止。返回实际装载数。
func (c *DebateCache) Restore(records []Record) int {
	if !c.Enabled() || len(records) == 0 {
		return 0
	}

	now := time.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	loaded := 0
	for _, rec := range records {
		if len(c.items) >= c.capacity {
			break
		}
		if rec.Fingerprint == "" {
			continue
		}
		if _, ok := c.items[rec.Fingerprint]; ok {
			continue
		}
		expiresAt := rec.CreatedAt.Add(c.maxAge)
		if !now.Before(expiresAt) {
			continue
		}

		result := rec.Result
		result.FromCache = false
		node := &lruNode{
			key: rec.Fingerprint,
			entry: &Entry{
				Fingerprint: rec.Fingerprint,
				Result:      result,
				Meta: EntryMeta{
					Confidence:  rec.Confidence,
					Category:    types.Category(rec.Category),
					ContextPath: rec.ContextPath,
					ContextSig:  rec.ContextSig,
				},
				CreatedAt: rec.CreatedAt,
			},
			expiresAt: expiresAt,
		}
		c.items[rec.Fingerprint] = node
		c.addToTail(node)
		loaded++
	}
	return loaded
}

// AttachStore 绑定持久化后端:立即装载既有记录,随后按 interval
// 周期刷写快照。存储故障只记日志,在线路径不受影响。重复绑定
// 是空操作。
func (c *DebateCache) AttachStore(store Store, interval time.Duration) {
	if !c.Enabled() || store == nil {
		return
	}
	if interval <= 0 {
		interval = DefaultConfig().FlushInterval
	}

	c.mu.Lock()
	if c.store != nil {
		c.mu.Unlock()
		return
	}
	c.store = store
	c.stopFlush = make(chan struct{})
	c.flushDone = make(chan struct{})
	c.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), storeIOTimeout)
	records, err := store.Load(ctx)
	cancel()
	if err != nil {
		c.logger.Warn("加载持久化缓存失败,以空缓存启动", zap.Error(err))
	} else if n := c.Restore(records); n > 0 {
		c.logger.Info("已从持久化存储恢复缓存", zap.Int("entries", n))
	}

	go c.flushLoop(interval)
}

// Close 停止刷写循环,做最后一次刷写并关闭存储。未绑定存储时
// 是空操作。
func (c *DebateCache) Close() error {
	if !c.Enabled() {
		return nil
	}

	c.mu.Lock()
	store := c.store
	stop := c.stopFlush
	done := c.flushDone
	c.store = nil
	c.mu.Unlock()

	if store == nil {
		return nil
	}

	close(stop)
	<-done

	ctx, cancel := context.WithTimeout(context.Background(), storeIOTimeout)
	defer cancel()
	if err := store.Flush(ctx, c.Snapshot()); err != nil {
		c.logger.Warn("关闭前缓存刷写失败", zap.Error(err))
	}
	return store.Close()
}

// flushLoop 周期性地把快照写入存储,Close 时退出。
func (c *DebateCache) flushLoop(interval time.Duration) {
	defer close(c.flushDone)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.flushOnce()
		case <-c.stopFlush:
			return
		}
	}
}

// flushOnce 做一次带超时的快照刷写,错误吞掉仅记日志。
func (c *DebateCache) flushOnce() {
	c.mu.RLock()
	store := c.store
	c.mu.RUnlock()
	if store == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), storeIOTimeout)
	defer cancel()

	if err := store.Flush(ctx, c.Snapshot()); err != nil {
		c.logger.Warn("缓存快照刷写失败", zap.Error(err))
	}
}

// ---- 双向链表操作,调用方须持有写锁 ----

func (c *DebateCache) addToHead(node *lruNode) {
	node.prev = nil
	node.next = c.head
	if c.head != nil {
		c.head.prev = node
	}
	c.head = node
	if c.tail == nil {
		c.tail = node
	}
}

func (c *DebateCache) addToTail(node *lruNode) {
	node.next = nil
	node.prev = c.tail
	if c.tail != nil {
		c.tail.next = node
	}
	c.tail = node
	if c.head == nil {
		c.head = node
	}
}

func (c *DebateCache) removeNode(node *lruNode) {
	if node.prev != nil {
		node.prev.next = node.next
	} else {
		c.head = node.next
	}
	if node.next != nil {
		node.next.prev = node.prev
	} else {
		c.tail = node.prev
	}
	node.prev = nil
	node.next = nil
}

func (c *DebateCache) moveToHead(node *lruNode) {
	if c.head == node {
		return
	}
	c.removeNode(node)
	c.addToHead(node)
}

func (c *DebateCache) evictTail() {
	if c.tail == nil {
		return
	}
	node := c.tail
	c.removeNode(node)
	delete(c.items, node.key)
	c.evictions++
}
