// Package telemetry 定义辩论结果记录的外发通道。编排器在每场辩论
// 结束后发布一条 types.DebateRecord;发布是 fire-and-forget 的,
// 任何 Sink 故障都被吞掉,绝不影响辩论交付。
package telemetry

import (
	"go.uber.org/zap"

	"github.com/BaSui01/debateflow/types"
)

// Sink 接收辩论结果记录。实现不得阻塞,不得让故障外泄。
type Sink interface {
	Record(rec types.DebateRecord)
}

// NopSink 丢弃所有记录。
type NopSink struct{}

func (NopSink) Record(types.DebateRecord) {}

// LogSink 把记录写进结构化日志,是没接分析库时的默认通道。
type LogSink struct {
	logger *zap.Logger
}

// NewLogSink 创建日志通道。
func NewLogSink(logger *zap.Logger) *LogSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSink{logger: logger.With(zap.String("component", "telemetry"))}
}

func (s *LogSink) Record(rec types.DebateRecord) {
	agents := make([]string, 0, len(rec.AgentsUsed))
	for _, a := range rec.AgentsUsed {
		agents = append(agents, string(a))
	}

	s.logger.Info("debate completed",
		zap.String("session_id", rec.SessionID),
		zap.String("category", string(rec.Category)),
		zap.Strings("agents", agents),
		zap.String("winner", string(rec.Winner)),
		zap.Duration("duration", rec.Duration),
		zap.Float64("confidence", rec.Confidence),
		zap.Bool("from_cache", rec.FromCache),
		zap.Bool("flagged", rec.Flagged))
}

// MultiSink 把记录广播给多个通道,单个通道的 panic 被吸收。
type MultiSink struct {
	sinks []Sink
}

// NewMultiSink 组合多个通道,nil 项忽略。
func NewMultiSink(sinks ...Sink) *MultiSink {
	out := make([]Sink, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			out = append(out, s)
		}
	}
	return &MultiSink{sinks: out}
}

func (m *MultiSink) Record(rec types.DebateRecord) {
	for _, s := range m.sinks {
		func() {
			defer func() { _ = recover() }()
			s.Record(rec)
		}()
	}
}
