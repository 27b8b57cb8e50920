// CaptureSink 的遥测下游测试模拟实现。
package mocks

import (
	"sync"
	"time"

	"github.com/BaSui01/debateflow/types"
)

// CaptureSink 实现 telemetry.Sink,把收到的辩论记录攒起来供断言。
// 编排器的发布是 fire-and-forget,断言前用 Wait 等待记录到达。
type CaptureSink struct {
	mu      sync.Mutex
	records []types.DebateRecord
}

// NewCaptureSink 创建新的 CaptureSink。
func NewCaptureSink() *CaptureSink {
	return &CaptureSink{}
}

// Record 实现 telemetry.Sink。
func (s *CaptureSink) Record(rec types.DebateRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, rec)
}

// Records 返回已收到记录的副本。
func (s *CaptureSink) Records() []types.DebateRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]types.DebateRecord, len(s.records))
	copy(out, s.records)
	return out
}

// Len 返回已收到的记录数。
func (s *CaptureSink) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

// Wait 轮询等待至少 n 条记录到达,超时返回 false。
func (s *CaptureSink) Wait(n int, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if s.Len() >= n {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return s.Len() >= n
}
