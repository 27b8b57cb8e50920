package observability

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/BaSui01/debateflow/types"
)

const instrumentationName = "github.com/BaSui01/debateflow"

// Metrics 辩论指标收集器
type Metrics struct {
	tracer trace.Tracer
	meter  metric.Meter
	// 计数器
	debateTotal    metric.Int64Counter
	proposalTotal  metric.Int64Counter
	cacheHitTotal  metric.Int64Counter
	cacheMissTotal metric.Int64Counter
	tokenEstimate  metric.Int64Counter
	// 直方图
	debateDuration metric.Float64Histogram
	phaseDuration  metric.Float64Histogram
	// 活跃辩论数
	activeDebates metric.Int64UpDownCounter
}

// NewMetrics 创建指标收集器
func NewMetrics() (*Metrics, error) {
	tracer := otel.Tracer(instrumentationName)
	meter := otel.Meter(instrumentationName)

	m := &Metrics{
		tracer: tracer,
		meter:  meter,
	}

	var err error

	// 辩论计数
	m.debateTotal, err = meter.Int64Counter("debate.total",
		metric.WithDescription("Total number of debates"),
		metric.WithUnit("{debate}"))
	if err != nil {
		return nil, err
	}

	// 提案计数
	m.proposalTotal, err = meter.Int64Counter("debate.proposal.total",
		metric.WithDescription("Total number of agent proposals"),
		metric.WithUnit("{proposal}"))
	if err != nil {
		return nil, err
	}

	// 缓存命中
	m.cacheHitTotal, err = meter.Int64Counter("debate.cache.hit.total",
		metric.WithDescription("Total answer cache hits"),
		metric.WithUnit("{hit}"))
	if err != nil {
		return nil, err
	}

	// 缓存未命中
	m.cacheMissTotal, err = meter.Int64Counter("debate.cache.miss.total",
		metric.WithDescription("Total answer cache misses"),
		metric.WithUnit("{miss}"))
	if err != nil {
		return nil, err
	}

	// Token 估算
	m.tokenEstimate, err = meter.Int64Counter("debate.token.estimate",
		metric.WithDescription("Estimated tokens produced by agents"),
		metric.WithUnit("{token}"))
	if err != nil {
		return nil, err
	}

	// 辩论时长
	m.debateDuration, err = meter.Float64Histogram("debate.duration",
		metric.WithDescription("Debate duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(1, 5, 15, 30, 60, 120, 300, 600))
	if err != nil {
		return nil, err
	}

	// 阶段时长
	m.phaseDuration, err = meter.Float64Histogram("debate.phase.duration",
		metric.WithDescription("Phase duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.1, 0.5, 1, 5, 15, 30, 60, 120))
	if err != nil {
		return nil, err
	}

	// 活跃辩论数
	m.activeDebates, err = meter.Int64UpDownCounter("debate.active",
		metric.WithDescription("Number of debates in flight"),
		metric.WithUnit("{debate}"))
	if err != nil {
		return nil, err
	}

	return m, nil
}

// RecordProposal 记录一次提案的结果与输出规模。
func (m *Metrics) RecordProposal(ctx context.Context, agent types.AgentID, status string, estTokens int) {
	m.proposalTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("agent", string(agent)),
		attribute.String("status", status)))

	if estTokens > 0 {
		m.tokenEstimate.Add(ctx, int64(estTokens), metric.WithAttributes(
			attribute.String("agent", string(agent))))
	}
}

// RecordCacheLookup 记录一次缓存查询的命中情况。
func (m *Metrics) RecordCacheLookup(ctx context.Context, hit bool) {
	if hit {
		m.cacheHitTotal.Add(ctx, 1)
		return
	}
	m.cacheMissTotal.Add(ctx, 1)
}
