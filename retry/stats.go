package retry

import "sync"

// Stats 重试统计累加器。所有并发辩论共享一个实例，
// 通过互斥锁保证并发安全；绝不作为包级全局状态暴露。
type Stats struct {
	mu               sync.Mutex
	invocations      int64
	successes        int64
	totalRetries     int64
	maxRetries       int
	byClassification map[Classification]int64
}

// NewStats 创建统计累加器
func NewStats() *Stats {
	return &Stats{byClassification: make(map[Classification]int64)}
}

// Snapshot 统计快照，含派生指标
type Snapshot struct {
	TotalInvocations int64                    `json:"total_invocations"`
	Successes        int64                    `json:"successes"`
	SuccessRate      float64                  `json:"success_rate"`
	TotalRetries     int64                    `json:"total_retries"`
	AvgRetries       float64                  `json:"avg_retries"`
	MaxRetries       int                      `json:"max_retries"`
	ByClassification map[Classification]int64 `json:"by_classification"`
}

// observe 记录一次完整调用的结果（retries 为该次调用消耗的重试数）
func (s *Stats) observe(retries int, success bool) {
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.invocations++
	if success {
		s.successes++
	}
	s.totalRetries += int64(retries)
	if retries > s.maxRetries {
		s.maxRetries = retries
	}
}

// classified 记录一次失败的分类
func (s *Stats) classified(cls Classification) {
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byClassification[cls]++
}

// Snapshot 返回当前统计快照
func (s *Stats) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		TotalInvocations: s.invocations,
		Successes:        s.successes,
		TotalRetries:     s.totalRetries,
		MaxRetries:       s.maxRetries,
		ByClassification: make(map[Classification]int64, len(s.byClassification)),
	}
	for cls, n := range s.byClassification {
		snap.ByClassification[cls] = n
	}
	if s.invocations > 0 {
		snap.SuccessRate = float64(s.successes) / float64(s.invocations)
		snap.AvgRetries = float64(s.totalRetries) / float64(s.invocations)
	}
	return snap
}

// Reset 清零全部统计
func (s *Stats) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.invocations = 0
	s.successes = 0
	s.totalRetries = 0
	s.maxRetries = 0
	s.byClassification = make(map[Classification]int64)
}
