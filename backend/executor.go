package backend

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/debateflow/internal/ctxkeys"
	"github.com/BaSui01/debateflow/retry"
	"github.com/BaSui01/debateflow/types"
)

// Config 执行后端配置
type Config struct {
	// InvokeTimeout 单次 Agent 调用的默认预算（请求未指定时生效）
	InvokeTimeout time.Duration `yaml:"invoke_timeout" json:"invoke_timeout"`

	// MaxOutputChars 回答长度上限，超出部分截断（防失控输出）。0 表示不截断。
	MaxOutputChars int `yaml:"max_output_chars" json:"max_output_chars"`

	// HTTP 传输层配置
	HTTP HTTPConfig `yaml:"http" json:"http"`
}

// DefaultConfig 返回默认执行后端配置
func DefaultConfig() Config {
	return Config{
		InvokeTimeout:  90 * time.Second,
		MaxOutputChars: 60_000,
		HTTP:           DefaultHTTPConfig(),
	}
}

// ExecuteRequest 一次 Agent 实例调用的参数
type ExecuteRequest struct {
	SessionID     string
	Agent         types.AgentID
	Prompt        string
	Instance      *types.InstanceConfig
	DeepReasoning bool

	// Timeout 覆盖本次调用的单次尝试预算；0 时使用 Config.InvokeTimeout
	Timeout time.Duration
}

// Executor 执行后端：把一次 Agent 实例调用包装上
// 重试引擎、进度事件与空回答防御。注册表路由决定走子进程还是 HTTP。
type Executor struct {
	registry *types.Registry
	process  Invoker
	http     Invoker
	custom   Invoker
	logger   *zap.Logger
	cfg      Config
	stats    *retry.Stats

	mu      sync.RWMutex
	retryer retry.Retryer
	events  EventSink
}

// NewExecutor 创建执行后端
func NewExecutor(registry *types.Registry, cfg Config, policy retry.Policy, logger *zap.Logger) *Executor {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.InvokeTimeout <= 0 {
		cfg.InvokeTimeout = DefaultConfig().InvokeTimeout
	}
	stats := retry.NewStats()
	return &Executor{
		registry: registry,
		process:  NewProcessInvoker(logger),
		http:     NewHTTPInvoker(cfg.HTTP, logger),
		logger:   logger.With(zap.String("component", "executor")),
		cfg:      cfg,
		stats:    stats,
		retryer:  retry.New(policy, logger, stats),
	}
}

// SetInvoker 覆盖传输路由（测试替身或自定义传输）
func (e *Executor) SetInvoker(inv Invoker) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.custom = inv
}

// SetEventSink 设置进度事件接收端
func (e *Executor) SetEventSink(sink EventSink) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = sink
}

// SetPolicy 原子替换重试策略（configureRetry 入口）
func (e *Executor) SetPolicy(policy retry.Policy) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.retryer = retry.New(policy, e.logger, e.stats)
}

// RetryPolicy 返回当前生效的重试策略
func (e *Executor) RetryPolicy() retry.Policy {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.retryer.Policy()
}

// RetryStats 返回重试统计快照
func (e *Executor) RetryStats() retry.Snapshot {
	return e.stats.Snapshot()
}

// ResetRetryStats 清零重试统计
func (e *Executor) ResetRetryStats() {
	e.stats.Reset()
}

// Execute 调用一个 Agent 实例并返回 Proposal。
// 空白回答视为失败并进入重试；重试耗尽后返回携带失败原因的 Proposal
// 与对应错误。进度事件 fire-and-forget，绝不阻塞调用。
func (e *Executor) Execute(ctx context.Context, req ExecuteRequest) (types.Proposal, error) {
	instanceIdx := 1
	if req.Instance != nil {
		instanceIdx = req.Instance.Index
	}
	sessionID := req.SessionID
	if sessionID == "" {
		sessionID, _ = ctxkeys.SessionID(ctx)
	}

	proposal := types.Proposal{Agent: req.Agent, Instance: instanceIdx}
	start := time.Now()

	agent, err := e.registry.Get(req.Agent)
	if err != nil {
		proposal.Err = err.Error()
		proposal.Duration = time.Since(start)
		e.publish(types.ProgressEvent{
			Type: types.EventAgentFailed, SessionID: sessionID,
			Agent: req.Agent, Instance: instanceIdx, Message: err.Error(),
		})
		return proposal, err
	}

	e.publish(types.ProgressEvent{
		Type: types.EventAgentStarting, SessionID: sessionID,
		Agent: req.Agent, Instance: instanceIdx,
	})

	prompt := BuildPrompt(req.Prompt, req.Instance, req.DeepReasoning, agent)
	timeout := req.Timeout
	if timeout <= 0 {
		timeout = e.cfg.InvokeTimeout
	}
	opts := InvokeOptions{
		Timeout:       timeout,
		Instance:      req.Instance,
		DeepReasoning: req.DeepReasoning,
	}
	invoker := e.invokerFor(agent)

	e.publish(types.ProgressEvent{
		Type: types.EventAgentRunning, SessionID: sessionID,
		Agent: req.Agent, Instance: instanceIdx,
		Message: invoker.Name(),
	})

	text, err := retry.DoWithResult(e.currentRetryer(), ctx, func() (string, error) {
		out, ierr := invoker.Invoke(ctx, agent, prompt, opts)
		if ierr != nil {
			return "", ierr
		}
		out = strings.TrimSpace(out)
		// 成功但空白的回答按失败处理，强制进入重试而非静默成功
		if out == "" {
			return "", types.NewError(types.ErrEmptyResponse, "agent returned empty response").
				WithAgent(string(agent.ID))
		}
		return out, nil
	})
	proposal.Duration = time.Since(start)

	if err != nil {
		proposal.Err = err.Error()
		e.logger.Warn("agent invocation failed",
			zap.String("agent", string(req.Agent)),
			zap.Int("instance", instanceIdx),
			zap.Duration("duration", proposal.Duration),
			zap.Error(err),
		)
		e.publish(types.ProgressEvent{
			Type: types.EventAgentFailed, SessionID: sessionID,
			Agent: req.Agent, Instance: instanceIdx, Message: err.Error(),
		})
		return proposal, err
	}

	if e.cfg.MaxOutputChars > 0 && len(text) > e.cfg.MaxOutputChars {
		text = text[:e.cfg.MaxOutputChars]
	}
	proposal.Content = text

	e.logger.Debug("agent invocation completed",
		zap.String("agent", string(req.Agent)),
		zap.Int("instance", instanceIdx),
		zap.Duration("duration", proposal.Duration),
		zap.Int("chars", len(text)),
	)
	e.publish(types.ProgressEvent{
		Type: types.EventAgentCompleted, SessionID: sessionID,
		Agent: req.Agent, Instance: instanceIdx,
	})
	return proposal, nil
}

// Complete 实现 Caller：纯文本补全，与 Execute 同一条重试/超时纪律。
// 供选型协调、评审与验证阶段使用。
func (e *Executor) Complete(ctx context.Context, agent types.AgentID, prompt string, timeout time.Duration) (string, error) {
	p, err := e.Execute(ctx, ExecuteRequest{
		Agent:   agent,
		Prompt:  prompt,
		Timeout: timeout,
	})
	if err != nil {
		return "", err
	}
	return p.Content, nil
}

// invokerFor 按调用句柄路由：custom > process > http
func (e *Executor) invokerFor(agent types.Agent) Invoker {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.custom != nil {
		return e.custom
	}
	if agent.Command != "" {
		return e.process
	}
	return e.http
}

func (e *Executor) currentRetryer() retry.Retryer {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.retryer
}

// publish 发布进度事件；无接收端时为空操作
func (e *Executor) publish(ev types.ProgressEvent) {
	e.mu.RLock()
	sink := e.events
	e.mu.RUnlock()

	if sink == nil {
		return
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}
	sink.Publish(ev)
}
