package debate

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/BaSui01/debateflow/backend"
	"github.com/BaSui01/debateflow/cache"
	"github.com/BaSui01/debateflow/consensus"
	"github.com/BaSui01/debateflow/internal/ctxkeys"
	"github.com/BaSui01/debateflow/observability"
	"github.com/BaSui01/debateflow/retry"
	"github.com/BaSui01/debateflow/selection"
	"github.com/BaSui01/debateflow/telemetry"
	"github.com/BaSui01/debateflow/types"
	"github.com/BaSui01/debateflow/verify"
)

// Components 编排器的协作组件。Registry 与 Executor 必填,
// 其余为 nil 时按默认构造;Cache 为 nil 时缓存整体旁路。
type Components struct {
	Registry *types.Registry
	Executor *backend.Executor
	Selector *selection.Selector
	Engine   *consensus.Engine
	Cache    *cache.DebateCache
	Verifier *verify.Verifier
	Sink     telemetry.Sink
	Metrics  *observability.Metrics
	Context  ContextProvider
}

// Orchestrator 辩论编排器:驱动 selecting → proposing → evaluating →
// improving → synthesizing → (verifying) → done 状态机。阶段严格
// 顺序推进,单个 Agent 的失败被隔离在它自己的席位里。
type Orchestrator struct {
	registry  *types.Registry
	executor  *backend.Executor
	selector  *selection.Selector
	heuristic *selection.HeuristicStrategy
	engine    *consensus.Engine
	cache     *cache.DebateCache
	verifier  *verify.Verifier
	sink      telemetry.Sink
	metrics   *observability.Metrics
	provider  ContextProvider
	hub       *Hub
	cfg       Config
	logger    *zap.Logger
}

// New 创建编排器并把进度事件接到执行后端。
func New(c Components, cfg Config, logger *zap.Logger) (*Orchestrator, error) {
	if c.Registry == nil {
		return nil, types.NewError(types.ErrConfiguration, "orchestrator requires an agent registry")
	}
	if c.Executor == nil {
		return nil, types.NewError(types.ErrConfiguration, "orchestrator requires an executor")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.GlobalTimeout <= 0 {
		cfg.GlobalTimeout = DefaultConfig().GlobalTimeout
	}
	if cfg.StageTimeout <= 0 {
		cfg.StageTimeout = DefaultConfig().StageTimeout
	}
	if cfg.Quorum <= 0 {
		cfg.Quorum = DefaultConfig().Quorum
	}

	if c.Selector == nil {
		c.Selector = selection.NewSelector(c.Executor, c.Registry, selection.DefaultConfig(), logger)
	}
	if c.Engine == nil {
		c.Engine = consensus.NewEngine(c.Executor, c.Registry, consensus.DefaultConfig(), logger)
	}
	if c.Verifier == nil {
		c.Verifier = verify.New(c.Executor, c.Registry, verify.DefaultConfig(), logger)
	}
	if c.Sink == nil {
		c.Sink = telemetry.NopSink{}
	}
	if c.Metrics == nil {
		m, err := observability.NewMetrics()
		if err != nil {
			return nil, fmt.Errorf("failed to build metric instruments: %w", err)
		}
		c.Metrics = m
	}
	if c.Context == nil {
		c.Context = DirSignature{}
	}

	hub := NewHub(cfg.EventBuffer)
	c.Executor.SetEventSink(hub)

	return &Orchestrator{
		registry:  c.Registry,
		executor:  c.Executor,
		selector:  c.Selector,
		heuristic: selection.NewHeuristicStrategy(c.Registry, logger),
		engine:    c.Engine,
		cache:     c.Cache,
		verifier:  c.Verifier,
		sink:      c.Sink,
		metrics:   c.Metrics,
		provider:  c.Context,
		hub:       hub,
		cfg:       cfg,
		logger:    logger.With(zap.String("component", "orchestrator")),
	}, nil
}

// Run 执行一场完整辩论并返回共识结果。问题为空、显式计划非法、
// 存活 Agent 不足法定人数、评不出胜者或全局超时都会以结构化错误
// 返回;验证失败、缓存故障与遥测故障只降级,不影响交付。
func (o *Orchestrator) Run(ctx context.Context, question string, opts ...RunOption) (types.ConsensusResult, error) {
	ro := runOptions{confidenceThreshold: o.cfg.ConfidenceThreshold}
	for _, opt := range opts {
		opt(&ro)
	}

	question = strings.TrimSpace(question)
	if question == "" {
		return types.ConsensusResult{}, types.NewError(types.ErrInvalidQuestion, "question must not be empty")
	}

	sessionID := uuid.New().String()
	ctx = ctxkeys.WithSessionID(ctx, sessionID)
	if o.cfg.GlobalTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.cfg.GlobalTimeout)
		defer cancel()
	}

	start := time.Now()
	attrs := observability.DebateAttrs{SessionID: sessionID}
	ctx, span := o.metrics.StartDebate(ctx, attrs)

	o.logger.Info("debate started",
		zap.String("session_id", sessionID),
		zap.Int("question_chars", len(question)))

	// 显式计划先解析,整份计划非法时立即失败
	var explicit types.AgentPlan
	if ro.planSpec != "" {
		plan, err := selection.ParsePlan(o.registry, ro.planSpec, o.logger)
		if err != nil {
			o.metrics.EndDebate(ctx, span, attrs, observability.DebateOutcome{
				Status: "rejected", Duration: time.Since(start),
			})
			return types.ConsensusResult{}, err
		}
		explicit = plan
	}

	// 上下文签名:失败非致命,按无上下文继续
	ctxSig := ""
	if ro.contextPath != "" {
		sig, err := o.provider.Signature(ctx, ro.contextPath)
		if err != nil {
			o.logger.Warn("context signature failed, treating as no context",
				zap.String("path", ro.contextPath),
				zap.Error(err))
		} else {
			ctxSig = sig
		}
	}

	// 缓存查询。同一路径下签名已变的旧条目先清掉,命中直接交付。
	useCache := o.cache.Enabled() && !ro.noCache
	fingerprint := ""
	if useCache {
		if ro.contextPath != "" && ctxSig != "" {
			if n := o.cache.Invalidate(cache.ByContextSignature(ro.contextPath, ctxSig)); n > 0 {
				o.logger.Info("invalidated entries for changed context",
					zap.Int("count", n),
					zap.String("path", ro.contextPath))
			}
		}

		fingerprint = cache.Fingerprint(question, ro.contextPath, explicit)
		if res, ok := o.cache.Lookup(fingerprint); ok {
			o.metrics.RecordCacheLookup(ctx, true)
			duration := time.Since(start)
			o.publishPhase(sessionID, types.PhaseDone, "cache hit")
			o.logger.Info("debate served from cache",
				zap.String("session_id", sessionID),
				zap.String("fingerprint", fingerprint),
				zap.String("winner", string(res.Winner)))
			o.metrics.EndDebate(ctx, span, observability.DebateAttrs{SessionID: sessionID, Category: res.Category},
				observability.DebateOutcome{
					Status:     "cache_hit",
					Winner:     res.Winner,
					Confidence: res.Confidence,
					Duration:   duration,
					FromCache:  true,
				})
			o.emitRecord(buildRecord(sessionID, question, res, duration))
			return res, nil
		}
		o.metrics.RecordCacheLookup(ctx, false)
	}

	res, err := o.debate(ctx, sessionID, question, explicit, ro, start)
	attrs.Category = res.Category
	if err != nil {
		o.publishPhase(sessionID, types.PhaseFailed, err.Error())
		o.metrics.EndDebate(ctx, span, attrs, observability.DebateOutcome{
			Status:   "failed",
			Duration: time.Since(start),
		})
		o.logger.Warn("debate failed",
			zap.String("session_id", sessionID),
			zap.Duration("duration", time.Since(start)),
			zap.Error(err))
		return res, err
	}

	// 结果落缓存:置信度不达标的结果不值得复用
	if useCache {
		if ro.confidenceThreshold > 0 && res.Confidence < ro.confidenceThreshold {
			o.logger.Debug("result below confidence threshold, not cached",
				zap.Float64("confidence", res.Confidence),
				zap.Float64("threshold", ro.confidenceThreshold))
		} else {
			o.cache.Store(fingerprint, res, cache.EntryMeta{
				Confidence:  res.Confidence,
				Category:    res.Category,
				ContextPath: ro.contextPath,
				ContextSig:  ctxSig,
			})
		}
	}

	o.publishPhase(sessionID, types.PhaseDone, "")
	o.metrics.EndDebate(ctx, span, attrs, observability.DebateOutcome{
		Status:     "completed",
		Winner:     res.Winner,
		Confidence: res.Confidence,
		Duration:   res.Duration,
		Flagged:    res.Verification != nil && res.Verification.Flagged,
	})
	o.emitRecord(buildRecord(sessionID, question, res, res.Duration))

	o.logger.Info("debate completed",
		zap.String("session_id", sessionID),
		zap.String("winner", string(res.Winner)),
		zap.Float64("score", res.Score),
		zap.Float64("confidence", res.Confidence),
		zap.Duration("duration", res.Duration))
	return res, nil
}

// debate 驱动状态机主体,从选型一路走到验证。
func (o *Orchestrator) debate(ctx context.Context, sessionID, question string, explicit types.AgentPlan, ro runOptions, start time.Time) (types.ConsensusResult, error) {
	// ---- selecting ----
	var analysis types.QuestionAnalysis
	_ = o.stage(ctx, sessionID, types.PhaseSelecting, func(c context.Context) error {
		analysis = o.analyze(c, question, explicit, ro)
		return nil
	})
	o.logger.Info("plan selected",
		zap.String("session_id", sessionID),
		zap.String("category", string(analysis.Category)),
		zap.String("complexity", string(analysis.Complexity)),
		zap.String("criticality", string(analysis.Criticality)),
		zap.String("plan", analysis.Plan.String()))
	if err := o.timedOut(ctx, types.PhaseSelecting, nil); err != nil {
		return types.ConsensusResult{}, err
	}

	// ---- proposing ----
	var proposals []types.Proposal
	err := o.stage(ctx, sessionID, types.PhaseProposing, func(c context.Context) error {
		proposals = o.propose(c, sessionID, question, analysis.Plan, ro)
		return o.checkQuorum(analysis.Plan, proposals)
	})
	if terr := o.timedOut(ctx, types.PhaseProposing, proposals); terr != nil {
		return partial(analysis, sessionID, start), terr
	}
	if err != nil {
		return partial(analysis, sessionID, start), err
	}

	// ---- evaluating ----
	var verdict types.EvaluationResult
	var winner types.Proposal
	err = o.stage(ctx, sessionID, types.PhaseEvaluating, func(c context.Context) error {
		v, eerr := o.engine.Evaluate(c, question, proposals)
		if eerr != nil {
			return eerr
		}
		w, ferr := consensus.FindProposal(proposals, v.Best, v.BestInstance)
		if ferr != nil {
			return ferr
		}
		verdict = v
		winner = w
		return nil
	})
	if terr := o.timedOut(ctx, types.PhaseEvaluating, proposals); terr != nil {
		return partial(analysis, sessionID, start), terr
	}
	if err != nil {
		return partial(analysis, sessionID, start),
			types.NewDebateError(types.ErrNoWinner, types.PhaseEvaluating, err.Error(), proposals)
	}
	o.logger.Info("winner selected",
		zap.String("session_id", sessionID),
		zap.String("winner", string(verdict.Best)),
		zap.Int("instance", verdict.BestInstance),
		zap.Float64("score", verdict.Scores[verdict.Best]),
		zap.String("method", verdict.Method))

	// ---- improving ----
	var improvements []consensus.Improvement
	_ = o.stage(ctx, sessionID, types.PhaseImproving, func(c context.Context) error {
		ic := c
		if o.cfg.StageTimeout > 0 {
			var cancel context.CancelFunc
			ic, cancel = context.WithTimeout(c, o.cfg.StageTimeout)
			defer cancel()
		}
		improvements = o.engine.Improve(ic, question, winner, proposals)
		return nil
	})
	if terr := o.timedOut(ctx, types.PhaseImproving, proposals); terr != nil {
		return partial(analysis, sessionID, start), terr
	}

	// ---- synthesizing ----
	var answer string
	_ = o.stage(ctx, sessionID, types.PhaseSynthesizing, func(context.Context) error {
		answer = consensus.Synthesize(winner.Content, improvements)
		return nil
	})

	res := types.ConsensusResult{
		Answer:             answer,
		Winner:             verdict.Best,
		Score:              verdict.Scores[verdict.Best],
		ContributingAgents: contributors(analysis.Plan, proposals),
		FailedAgents:       failedAgents(analysis.Plan, proposals),
		Category:           analysis.Category,
		Confidence:         clamp01(verdict.Scores[verdict.Best] / 10),
		SessionID:          sessionID,
	}

	// ---- verifying ----
	if o.shouldVerify(ro, analysis) {
		verr := o.stage(ctx, sessionID, types.PhaseVerifying, func(c context.Context) error {
			vr, err := o.verifier.Verify(c, question, answer, verdict.Best, analysis)
			if err != nil {
				return err
			}
			res.Verification = &vr
			res.Confidence = vr.Confidence
			return nil
		})
		if verr != nil {
			// 验证失败非致命,结果不带验证信息交付
			o.logger.Warn("verification failed, delivering unverified result",
				zap.String("session_id", sessionID),
				zap.Error(verr))
		}
		if terr := o.timedOut(ctx, types.PhaseVerifying, proposals); terr != nil {
			return partial(analysis, sessionID, start), terr
		}
	}

	res.Duration = time.Since(start)
	return res, nil
}

// stage 给一个阶段套上事件广播与 Span/耗时指标
func (o *Orchestrator) stage(ctx context.Context, sessionID string, phase types.Phase, fn func(context.Context) error) error {
	o.publishPhase(sessionID, phase, "")
	sctx, span := o.metrics.StartPhase(ctx, phase)
	start := time.Now()
	err := fn(sctx)
	o.metrics.EndPhase(sctx, span, phase, start, err)
	return err
}

// analyze 产出问题分析:显式计划只做启发式分类再覆盖计划,
// 否则走选型器(协调路径失败自动降级启发式)。
func (o *Orchestrator) analyze(ctx context.Context, question string, explicit types.AgentPlan, ro runOptions) types.QuestionAnalysis {
	if len(explicit) > 0 {
		analysis, _ := o.heuristic.Analyze(ctx, question, ro.contextPath)
		analysis.Plan = explicit
		analysis.Rationale = "explicit plan: " + explicit.String()
		return analysis
	}
	return o.selector.Analyze(ctx, question, ro.contextPath)
}

// propose 按计划扇出提案调用:每个 Agent 实例一个 goroutine,
// 整个阶段受 StageTimeout 约束。慢与失败只占用自己的席位,
// 绝不拖累兄弟实例。
func (o *Orchestrator) propose(ctx context.Context, sessionID, question string, plan types.AgentPlan, ro runOptions) []types.Proposal {
	if o.cfg.StageTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.cfg.StageTimeout)
		defer cancel()
	}

	prompt := question
	if ro.contextPath != "" {
		prompt = fmt.Sprintf("Context: the relevant project lives at %s.\n\n%s", ro.contextPath, question)
	}

	instances := o.selector.Instances(plan)

	type slot struct {
		agent    types.AgentID
		instance types.InstanceConfig
	}
	slots := make([]slot, 0, plan.TotalInstances())
	for _, entry := range plan {
		for _, ic := range instances[entry.Agent] {
			slots = append(slots, slot{agent: entry.Agent, instance: ic})
			o.hub.Publish(types.ProgressEvent{
				Type:      types.EventAgentWaiting,
				SessionID: sessionID,
				Agent:     entry.Agent,
				Instance:  ic.Index,
				Phase:     types.PhaseProposing,
			})
		}
	}

	usage := observability.NewUsageTracker()
	proposals := make([]types.Proposal, len(slots))
	g, gctx := errgroup.WithContext(ctx)
	for i, s := range slots {
		i, s := i, s
		g.Go(func() error {
			instance := s.instance
			p, err := o.metrics.TraceAgentCall(gctx, s.agent, instance.Index, func(c context.Context) (types.Proposal, error) {
				return o.executor.Execute(c, backend.ExecuteRequest{
					SessionID:     sessionID,
					Agent:         s.agent,
					Prompt:        prompt,
					Instance:      &instance,
					DeepReasoning: ro.deepReasoning,
				})
			})
			proposals[i] = p

			status := "completed"
			if err != nil {
				status = "failed"
			}
			usage.Track(s.agent, p.Content)
			o.metrics.RecordProposal(gctx, s.agent, status, selection.EstimateTokens(p.Content))
			// 失败已记录在提案里,不让 errgroup 提前终止
			return nil
		})
	}
	_ = g.Wait()

	total := usage.Total()
	o.logger.Debug("proposal round settled",
		zap.String("session_id", sessionID),
		zap.Int("slots", len(slots)),
		zap.Int("calls", total.Calls),
		zap.Int("est_tokens", total.TokensEstimate))
	return proposals
}

// checkQuorum 校验存活 Agent 数达到法定人数;计划本身小于法定
// 人数时以计划规模为准,零存活永远不足。
func (o *Orchestrator) checkQuorum(plan types.AgentPlan, proposals []types.Proposal) error {
	alive := make(map[types.AgentID]bool)
	for _, p := range proposals {
		if !p.Failed() {
			alive[p.Agent] = true
		}
	}

	need := o.cfg.Quorum
	if n := len(plan.Agents()); n < need {
		need = n
	}
	if len(alive) > 0 && len(alive) >= need {
		return nil
	}
	return types.NewDebateError(types.ErrInsufficientConsensus, types.PhaseProposing,
		fmt.Sprintf("only %d of %d agents produced proposals, quorum is %d",
			len(alive), len(plan.Agents()), need),
		proposals)
}

// shouldVerify 判定是否执行验证:显式开关优先,其次敏感类别自动触发
func (o *Orchestrator) shouldVerify(ro runOptions, analysis types.QuestionAnalysis) bool {
	if ro.verify != nil {
		return *ro.verify
	}
	return o.verifier.Required(analysis)
}

// timedOut 把 context 到期折算成带局部状态的辩论超时错误
func (o *Orchestrator) timedOut(ctx context.Context, phase types.Phase, proposals []types.Proposal) error {
	if ctx.Err() == nil {
		return nil
	}
	return types.NewDebateError(types.ErrDebateTimeout, phase,
		"debate timed out: "+ctx.Err().Error(), proposals)
}

// publishPhase 广播阶段切换事件
func (o *Orchestrator) publishPhase(sessionID string, phase types.Phase, message string) {
	o.hub.Publish(types.ProgressEvent{
		Type:      types.EventPhaseChange,
		SessionID: sessionID,
		Phase:     phase,
		Message:   message,
	})
}

// emitRecord 把结果记录投递给遥测通道。独立 goroutine 加 recover,
// 通道故障绝不影响辩论交付。
func (o *Orchestrator) emitRecord(rec types.DebateRecord) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				o.logger.Warn("telemetry sink panicked", zap.Any("cause", r))
			}
		}()
		o.sink.Record(rec)
	}()
}

// Events 返回进度事件订阅通道。
func (o *Orchestrator) Events() <-chan types.ProgressEvent {
	return o.hub.Events()
}

// CacheStats 返回缓存统计快照。
func (o *Orchestrator) CacheStats() cache.CacheStats {
	return o.cache.Stats()
}

// ClearCache 清空缓存条目。
func (o *Orchestrator) ClearCache() {
	o.cache.Clear()
}

// RetryStats 返回重试统计快照。
func (o *Orchestrator) RetryStats() retry.Snapshot {
	return o.executor.RetryStats()
}

// ResetRetryStats 清零重试统计。
func (o *Orchestrator) ResetRetryStats() {
	o.executor.ResetRetryStats()
}

// ConfigureRetry 原子替换执行后端的重试策略。
func (o *Orchestrator) ConfigureRetry(policy retry.Policy) {
	o.executor.SetPolicy(policy)
}

// Close 停掉缓存刷写循环、做最后一次落盘并关闭事件通道。
// 之后 Events 的读端会在排空缓冲后观察到通道关闭。
func (o *Orchestrator) Close() error {
	err := o.cache.Close()
	o.hub.Close()
	return err
}

// recordQuestionLimit 限定记录里问题摘要的长度。记录是审计数据,
// 全文留在调用方手里。
const recordQuestionLimit = 200

// buildRecord 组装一条遥测结果记录
func buildRecord(sessionID, question string, res types.ConsensusResult, duration time.Duration) types.DebateRecord {
	return types.DebateRecord{
		SessionID:  sessionID,
		Question:   truncate(question, recordQuestionLimit),
		Category:   res.Category,
		AgentsUsed: res.ContributingAgents,
		Winner:     res.Winner,
		Duration:   duration,
		Confidence: res.Confidence,
		FromCache:  res.FromCache,
		Verified:   res.Verification != nil,
		Flagged:    res.Verification != nil && res.Verification.Flagged,
		FinishedAt: time.Now(),
	}
}

// partial 组装失败路径上的局部结果,错误本体里带提案现场
func partial(analysis types.QuestionAnalysis, sessionID string, start time.Time) types.ConsensusResult {
	return types.ConsensusResult{
		Category:  analysis.Category,
		SessionID: sessionID,
		Duration:  time.Since(start),
	}
}

// contributors 按计划顺序列出贡献了成功提案的 Agent
func contributors(plan types.AgentPlan, proposals []types.Proposal) []types.AgentID {
	alive := make(map[types.AgentID]bool, len(proposals))
	for _, p := range proposals {
		if !p.Failed() {
			alive[p.Agent] = true
		}
	}

	out := make([]types.AgentID, 0, len(alive))
	for _, id := range plan.Agents() {
		if alive[id] {
			out = append(out, id)
		}
	}
	return out
}

// failedAgents 列出没有任何成功提案的 Agent
func failedAgents(plan types.AgentPlan, proposals []types.Proposal) []types.AgentID {
	alive := make(map[types.AgentID]bool, len(proposals))
	for _, p := range proposals {
		if !p.Failed() {
			alive[p.Agent] = true
		}
	}

	var out []types.AgentID
	for _, id := range plan.Agents() {
		if !alive[id] {
			out = append(out, id)
		}
	}
	return out
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// truncate 按符文截断,避免切坏多字节字符。
func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "..."
}
