package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/BaSui01/debateflow/types"
)

// DebateAttrs 辩论属性
type DebateAttrs struct {
	SessionID string
	Category  types.Category
}

// DebateOutcome 辩论结果属性
type DebateOutcome struct {
	Status     string
	Winner     types.AgentID
	Confidence float64
	Duration   time.Duration
	FromCache  bool
	Flagged    bool
}

// StartDebate 打开整场辩论的根 Span 并增加活跃计数。
func (m *Metrics) StartDebate(ctx context.Context, attrs DebateAttrs) (context.Context, trace.Span) {
	ctx, span := m.tracer.Start(ctx, "debate.run",
		trace.WithAttributes(
			attribute.String("debate.session_id", attrs.SessionID),
			attribute.String("debate.category", string(attrs.Category))))

	m.activeDebates.Add(ctx, 1,
		metric.WithAttributes(attribute.String("category", string(attrs.Category))))

	return ctx, span
}

// EndDebate 结束根 Span 并落结果指标。
func (m *Metrics) EndDebate(ctx context.Context, span trace.Span, attrs DebateAttrs, outcome DebateOutcome) {
	defer span.End()

	commonAttrs := []attribute.KeyValue{
		attribute.String("category", string(attrs.Category)),
		attribute.String("status", outcome.Status),
	}

	// 减少活跃辩论
	m.activeDebates.Add(ctx, -1,
		metric.WithAttributes(attribute.String("category", string(attrs.Category))))

	// 记录辩论
	m.debateTotal.Add(ctx, 1, metric.WithAttributes(commonAttrs...))

	// 记录时长
	m.debateDuration.Record(ctx, outcome.Duration.Seconds(), metric.WithAttributes(commonAttrs...))

	// 缓存命中在此落账,未命中由编排器在查询时记录
	if outcome.FromCache {
		span.SetAttributes(attribute.Bool("debate.cache_hit", true))
	}

	// Span 属性(类别在选型后才定,这里补记终值)
	span.SetAttributes(
		attribute.String("debate.category", string(attrs.Category)),
		attribute.String("debate.status", outcome.Status),
		attribute.String("debate.winner", string(outcome.Winner)),
		attribute.Float64("debate.confidence", outcome.Confidence),
		attribute.Bool("debate.flagged", outcome.Flagged),
		attribute.Float64("debate.duration_ms", float64(outcome.Duration.Milliseconds())))
}

// StartPhase 打开单个阶段的子 Span。
func (m *Metrics) StartPhase(ctx context.Context, phase types.Phase) (context.Context, trace.Span) {
	return m.tracer.Start(ctx, "debate.phase."+string(phase),
		trace.WithAttributes(attribute.String("debate.phase", string(phase))))
}

// EndPhase 结束阶段 Span 并记录耗时分布。
func (m *Metrics) EndPhase(ctx context.Context, span trace.Span, phase types.Phase, start time.Time, err error) {
	defer span.End()

	m.phaseDuration.Record(ctx, time.Since(start).Seconds(),
		metric.WithAttributes(attribute.String("phase", string(phase))))

	if err != nil {
		span.SetAttributes(attribute.String("error", err.Error()))
	}
}

// TraceAgentCall 为单次 agent 调用建子 Span 并执行,记录实例序号与
// 产出规模。失败的调用把错误文本落在 Span 上,提案本身照常返回。
func (m *Metrics) TraceAgentCall(ctx context.Context, agent types.AgentID, instance int, fn func(context.Context) (types.Proposal, error)) (types.Proposal, error) {
	ctx, span := m.tracer.Start(ctx, "debate.agent_call",
		trace.WithAttributes(
			attribute.String("debate.agent", string(agent)),
			attribute.Int("debate.instance", instance)))
	defer span.End()

	p, err := fn(ctx)
	span.SetAttributes(attribute.Int("debate.output_chars", len(p.Content)))
	if err != nil {
		span.SetAttributes(attribute.String("error", err.Error()))
	}
	return p, err
}
