package backend

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"go.uber.org/zap"

	"github.com/BaSui01/debateflow/types"
)

// ProcessInvoker 通过子进程调用 Agent：prompt 写入 stdin，stdout 作为
// 回答，stderr 尾部折叠进错误信息。context 取消会终止子进程。
type ProcessInvoker struct {
	logger *zap.Logger
}

// NewProcessInvoker 创建子进程调用器
func NewProcessInvoker(logger *zap.Logger) *ProcessInvoker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProcessInvoker{
		logger: logger.With(zap.String("component", "process_invoker")),
	}
}

// Name 实现 Invoker.Name
func (p *ProcessInvoker) Name() string {
	return "process"
}

// Invoke 实现 Invoker.Invoke
func (p *ProcessInvoker) Invoke(ctx context.Context, agent types.Agent, prompt string, opts InvokeOptions) (string, error) {
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	args := append([]string(nil), agent.Args...)
	if agent.Model != "" {
		args = append(args, "--model", agent.Model)
	}

	cmd := exec.CommandContext(ctx, agent.Command, args...)
	cmd.Stdin = strings.NewReader(prompt)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	p.logger.Debug("spawning agent process",
		zap.String("agent", string(agent.ID)),
		zap.String("command", agent.Command),
	)

	err := cmd.Run()
	if err != nil {
		return "", p.wrapError(ctx, agent, err, stderr.String())
	}

	return stdout.String(), nil
}

// wrapError 将进程失败映射到统一错误分类：超时、缺失可执行文件、
// 非零退出各归其类，stderr 尾部保留用于诊断。
func (p *ProcessInvoker) wrapError(ctx context.Context, agent types.Agent, err error, stderr string) error {
	tail := stderrTail(stderr, 300)

	if ctx.Err() == context.DeadlineExceeded {
		return types.NewError(types.ErrTimeout,
			fmt.Sprintf("agent %s timed out", agent.ID)).
			WithAgent(string(agent.ID)).
			WithCause(err)
	}
	if errors.Is(err, exec.ErrNotFound) {
		return types.NewError(types.ErrConfiguration,
			fmt.Sprintf("agent %s binary %q not found", agent.ID, agent.Command)).
			WithAgent(string(agent.ID)).
			WithCause(err)
	}

	// 非零退出保留 *exec.ExitError 链，由分类器归入 process 类（可重试）
	if tail != "" {
		return fmt.Errorf("agent %s process failed (%s): %w", agent.ID, tail, err)
	}
	return fmt.Errorf("agent %s process failed: %w", agent.ID, err)
}

func stderrTail(s string, max int) string {
	s = strings.TrimSpace(s)
	if len(s) <= max {
		return s
	}
	return "..." + s[len(s)-max:]
}
