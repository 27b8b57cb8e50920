package metrics

import (
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

var collectorNamespaceSeq uint64

// promauto 注册进全局 Registry,每个测试用独立命名空间避免冲突
func nextTestNamespace() string {
	seq := atomic.AddUint64(&collectorNamespaceSeq, 1)
	return fmt.Sprintf("test_%d", seq)
}

// =============================================================================
// 🧪 Collector 测试
// =============================================================================

func TestNewCollector(t *testing.T) {
	collector := NewCollector(nextTestNamespace(), zap.NewNop())

	assert.NotNil(t, collector)
	assert.NotNil(t, collector.httpRequestsTotal)
	assert.NotNil(t, collector.debatesTotal)
	assert.NotNil(t, collector.debateDuration)
	assert.NotNil(t, collector.proposalsTotal)
	assert.NotNil(t, collector.retryAttempts)
}

func TestNewCollector_NilLogger(t *testing.T) {
	assert.NotPanics(t, func() {
		NewCollector(nextTestNamespace(), nil)
	})
}

func TestCollector_RecordHTTPRequest(t *testing.T) {
	collector := NewCollector(nextTestNamespace(), zap.NewNop())

	collector.RecordHTTPRequest("GET", "/v1/cache/stats", 200, 100*time.Millisecond, 1024, 2048)

	count := testutil.CollectAndCount(collector.httpRequestsTotal)
	assert.Greater(t, count, 0)

	collector.RecordHTTPRequest("GET", "/v1/cache/stats", 200, 50*time.Millisecond, 512, 1024)

	newCount := testutil.CollectAndCount(collector.httpRequestsTotal)
	assert.GreaterOrEqual(t, newCount, count)
}

func TestCollector_RecordDebate(t *testing.T) {
	collector := NewCollector(nextTestNamespace(), zap.NewNop())

	collector.RecordDebate("security", "completed", 42*time.Second)
	collector.RecordDebate("coding", "failed", 3*time.Second)

	assert.Greater(t, testutil.CollectAndCount(collector.debatesTotal), 0)
	assert.Greater(t, testutil.CollectAndCount(collector.debateDuration), 0)

	// 同标签组的计数按次累加
	value := testutil.ToFloat64(collector.debatesTotal.WithLabelValues("security", "completed"))
	assert.Equal(t, float64(1), value)
}

func TestCollector_RecordVerification(t *testing.T) {
	collector := NewCollector(nextTestNamespace(), zap.NewNop())

	collector.RecordVerification("security", false)
	collector.RecordVerification("security", true)

	passed := testutil.ToFloat64(collector.verificationsTotal.WithLabelValues("security", "passed"))
	flagged := testutil.ToFloat64(collector.verificationsTotal.WithLabelValues("security", "flagged"))
	assert.Equal(t, float64(1), passed)
	assert.Equal(t, float64(1), flagged)
}

func TestCollector_RecordProposal(t *testing.T) {
	collector := NewCollector(nextTestNamespace(), zap.NewNop())

	collector.RecordProposal("claude", "success", 2*time.Second)
	collector.RecordProposal("claude", "failed", time.Second)

	assert.Greater(t, testutil.CollectAndCount(collector.proposalsTotal), 0)
	success := testutil.ToFloat64(collector.proposalsTotal.WithLabelValues("claude", "success"))
	assert.Equal(t, float64(1), success)
}

func TestCollector_RecordCacheOperation(t *testing.T) {
	collector := NewCollector(nextTestNamespace(), zap.NewNop())

	collector.RecordCacheHit("debate")
	collector.RecordCacheMiss("debate")

	assert.Greater(t, testutil.CollectAndCount(collector.cacheHits), 0)
	assert.Greater(t, testutil.CollectAndCount(collector.cacheMisses), 0)
}

func TestCollector_SyncRetryStats(t *testing.T) {
	collector := NewCollector(nextTestNamespace(), zap.NewNop())

	collector.SyncRetryStats(map[string]int64{
		"rate_limit": 7,
		"network":    3,
	})
	// 快照覆盖语义:同分类重复同步取最新值
	collector.SyncRetryStats(map[string]int64{"rate_limit": 9})

	rateLimit := testutil.ToFloat64(collector.retryAttempts.WithLabelValues("rate_limit"))
	network := testutil.ToFloat64(collector.retryAttempts.WithLabelValues("network"))
	assert.Equal(t, float64(9), rateLimit)
	assert.Equal(t, float64(3), network)
}

func TestCollector_RecordDatabaseQuery(t *testing.T) {
	collector := NewCollector(nextTestNamespace(), zap.NewNop())

	collector.RecordDBQuery("postgres", "SELECT", 20*time.Millisecond)

	assert.Greater(t, testutil.CollectAndCount(collector.dbQueryDuration), 0)
}

func TestCollector_UpdateConnectionPool(t *testing.T) {
	collector := NewCollector(nextTestNamespace(), zap.NewNop())

	collector.RecordDBConnections("postgres", 10, 5)

	open := testutil.ToFloat64(collector.dbConnectionsOpen.WithLabelValues("postgres"))
	idle := testutil.ToFloat64(collector.dbConnectionsIdle.WithLabelValues("postgres"))
	assert.Equal(t, float64(10), open)
	assert.Equal(t, float64(5), idle)
}

func TestCollector_ConcurrentRecording(t *testing.T) {
	collector := NewCollector(nextTestNamespace(), zap.NewNop())

	done := make(chan bool)
	for i := 0; i < 10; i++ {
		go func() {
			collector.RecordHTTPRequest("POST", "/v1/debates", 200, 100*time.Millisecond, 1024, 2048)
			collector.RecordDebate("general", "completed", 30*time.Second)
			collector.RecordCacheHit("debate")
			done <- true
		}()
	}
	for i := 0; i < 10; i++ {
		<-done
	}

	debates := testutil.ToFloat64(collector.debatesTotal.WithLabelValues("general", "completed"))
	assert.Equal(t, float64(10), debates)
}

func TestCollector_MetricsRegistration(t *testing.T) {
	registry := prometheus.NewRegistry()
	collector := NewCollector(nextTestNamespace(), zap.NewNop())

	registry.MustRegister(collector.debatesTotal)
	registry.MustRegister(collector.debateDuration)

	collector.RecordDebate("coding", "completed", 10*time.Second)

	count := testutil.CollectAndCount(collector.debatesTotal)
	assert.Greater(t, count, 0)
}
