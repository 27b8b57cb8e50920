// ScriptedInvoker 的后端调用测试模拟实现。
//
// 按提示词特征把调用路由到脚本分支,支持按 Agent 排队应答、
// 错误注入与人工延迟场景。
package mocks

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/BaSui01/debateflow/backend"
	"github.com/BaSui01/debateflow/types"
)

// 调用类别,与各子系统提示词的固定开场白一一对应。
const (
	CallPropose    = "propose"
	CallCoordinate = "coordinate"
	CallJudge      = "judge"
	CallImprove    = "improve"
	CallFactCheck  = "factcheck"
	CallChallenge  = "challenge"
)

type scriptedReply struct {
	text string
	err  error
}

// ReplyFunc 覆盖某一调用类别的应答逻辑。
type ReplyFunc func(agent types.Agent, prompt string) (string, error)

// ScriptedInvoker 是 backend.Invoker 的脚本化实现。零值即可跑完
// 整场辩论:提案返回固定文本,协调与裁判返回错误使对应子系统
// 降级到启发式,改进、评分与质询返回通过性缺省值。
type ScriptedInvoker struct {
	mu        sync.Mutex
	counts    map[string]int
	queues    map[types.AgentID][]scriptedReply
	replies   map[string]ReplyFunc
	latency   time.Duration
	failAfter int
	failErr   error
	callCount int
}

// NewScriptedInvoker 创建新的 ScriptedInvoker。
func NewScriptedInvoker() *ScriptedInvoker {
	return &ScriptedInvoker{}
}

// --- Builder 方法 ---

// WithProposal 为指定 Agent 排队一条提案应答,先进先出消费。
// 队列耗尽后回落到缺省文本。
func (s *ScriptedInvoker) WithProposal(agent types.AgentID, text string) *ScriptedInvoker {
	return s.enqueue(agent, scriptedReply{text: text})
}

// WithProposalError 为指定 Agent 排队一条提案错误。
func (s *ScriptedInvoker) WithProposalError(agent types.AgentID, err error) *ScriptedInvoker {
	return s.enqueue(agent, scriptedReply{err: err})
}

func (s *ScriptedInvoker) enqueue(agent types.AgentID, reply scriptedReply) *ScriptedInvoker {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.queues == nil {
		s.queues = make(map[types.AgentID][]scriptedReply)
	}
	s.queues[agent] = append(s.queues[agent], reply)
	return s
}

// WithCoordinator 设置协调 Agent 的固定应答(通常为计划 JSON)。
func (s *ScriptedInvoker) WithCoordinator(raw string) *ScriptedInvoker {
	return s.WithReplyFunc(CallCoordinate, staticReply(raw))
}

// WithJudge 设置裁判的固定应答(通常为结论 JSON)。
func (s *ScriptedInvoker) WithJudge(raw string) *ScriptedInvoker {
	return s.WithReplyFunc(CallJudge, staticReply(raw))
}

// WithFactCheck 设置事实核查的固定应答(评分 JSON)。
func (s *ScriptedInvoker) WithFactCheck(raw string) *ScriptedInvoker {
	return s.WithReplyFunc(CallFactCheck, staticReply(raw))
}

// WithChallenge 设置对抗质询的固定应答("PASS" 或问题清单)。
func (s *ScriptedInvoker) WithChallenge(raw string) *ScriptedInvoker {
	return s.WithReplyFunc(CallChallenge, staticReply(raw))
}

// WithReplyFunc 覆盖指定类别的应答逻辑,类别取 Call* 常量。
func (s *ScriptedInvoker) WithReplyFunc(kind string, fn ReplyFunc) *ScriptedInvoker {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.replies == nil {
		s.replies = make(map[string]ReplyFunc)
	}
	s.replies[kind] = fn
	return s
}

// WithLatency 为每次调用注入人工延迟,可被上下文取消打断。
func (s *ScriptedInvoker) WithLatency(d time.Duration) *ScriptedInvoker {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.latency = d
	return s
}

// WithFailAfter 从第 n+1 次调用起统一返回 err。
// err 为 nil 时使用通用错误。
func (s *ScriptedInvoker) WithFailAfter(n int, err error) *ScriptedInvoker {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failAfter = n
	if err == nil {
		err = errors.New("scripted backend failure")
	}
	s.failErr = err
	return s
}

func staticReply(raw string) ReplyFunc {
	return func(types.Agent, string) (string, error) { return raw, nil }
}

// --- backend.Invoker 实现 ---

// Invoke 按提示词特征分类调用并执行对应脚本。
func (s *ScriptedInvoker) Invoke(ctx context.Context, agent types.Agent, prompt string, _ backend.InvokeOptions) (string, error) {
	kind := classifyPrompt(prompt)

	s.mu.Lock()
	if s.counts == nil {
		s.counts = make(map[string]int)
	}
	s.counts[kind]++
	s.callCount++
	latency := s.latency
	failed := s.failAfter > 0 && s.callCount > s.failAfter
	failErr := s.failErr
	fn := s.replies[kind]
	var queued *scriptedReply
	if kind == CallPropose && fn == nil {
		if q := s.queues[agent.ID]; len(q) > 0 {
			queued = &q[0]
			s.queues[agent.ID] = q[1:]
		}
	}
	s.mu.Unlock()

	if latency > 0 {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(latency):
		}
	}
	if failed {
		return "", failErr
	}
	if fn != nil {
		return fn(agent, prompt)
	}
	if queued != nil {
		return queued.text, queued.err
	}

	switch kind {
	case CallCoordinate:
		// 缺省让协调失败,选型降级启发式
		return "", errors.New("coordinator unavailable")
	case CallJudge:
		// 缺省让裁判失败,评审降级启发式
		return "", errors.New("judge unavailable")
	case CallImprove:
		return fmt.Sprintf("refinement from %s", agent.ID), nil
	case CallFactCheck:
		return `{"technical_accuracy": 90, "security": 85, "completeness": 88}`, nil
	case CallChallenge:
		return "PASS", nil
	default:
		return fmt.Sprintf("answer from %s", agent.ID), nil
	}
}

// Name 实现 backend.Invoker。
func (s *ScriptedInvoker) Name() string { return "scripted" }

func classifyPrompt(prompt string) string {
	switch {
	case strings.Contains(prompt, "debate coordinator"):
		return CallCoordinate
	case strings.Contains(prompt, "impartial judge"):
		return CallJudge
	case strings.Contains(prompt, "won a multi-agent debate"):
		return CallImprove
	case strings.Contains(prompt, "independent technical reviewer"):
		return CallFactCheck
	case strings.Contains(prompt, "red-team reviewer"):
		return CallChallenge
	default:
		return CallPropose
	}
}

// --- 调用记录 ---

// Calls 返回指定类别的调用次数。
func (s *ScriptedInvoker) Calls(kind string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counts[kind]
}

// TotalCalls 返回所有类别的调用总数。
func (s *ScriptedInvoker) TotalCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.callCount
}

// Reset 清零计数与队列,脚本配置保留。
func (s *ScriptedInvoker) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counts = nil
	s.queues = nil
	s.callCount = 0
}
