package retry

import (
	"context"
	"errors"
	"io"
	"net"
	"os"
	"os/exec"
	"strings"

	"github.com/BaSui01/debateflow/types"
)

// Classification 错误分类，决定是否重试以及退避形态
type Classification string

// 分类常量。匹配顺序见 Classify。
const (
	ClassAuth      Classification = "authentication"
	ClassConfig    Classification = "configuration"
	ClassRateLimit Classification = "rate_limit"
	ClassTimeout   Classification = "timeout"
	ClassNetwork   Classification = "network"
	ClassProcess   Classification = "process"
	ClassGeneric   Classification = "generic"
)

// Retriable 返回该分类是否可重试。
// 认证与配置错误是致命的；其余默认乐观重试（多数故障是瞬态的）。
func (c Classification) Retriable() bool {
	switch c {
	case ClassAuth, ClassConfig:
		return false
	default:
		return true
	}
}

// ErrorCode 返回分类对应的统一错误码
func (c Classification) ErrorCode() types.ErrorCode {
	switch c {
	case ClassAuth:
		return types.ErrAuthentication
	case ClassConfig:
		return types.ErrConfiguration
	case ClassRateLimit:
		return types.ErrRateLimit
	case ClassTimeout:
		return types.ErrTimeout
	case ClassNetwork:
		return types.ErrNetwork
	default:
		return types.ErrRetriable
	}
}

// Classify 对错误进行有序分类，首个命中即返回：
//
//  1. 认证失败（401/403、invalid key）        → 不可重试
//  2. 配置缺失（可执行文件/文件不存在）        → 不可重试
//  3. 限流信号（429、rate limit、quota）      → 可重试，长退避
//  4. 超时信号                               → 可重试
//  5. 连接重置 / 5xx                          → 可重试
//  6. 子进程非零退出或启动失败                 → 可重试
//  7. 其余未分类                              → 默认可重试
func Classify(err error) Classification {
	if err == nil {
		return ClassGeneric
	}

	// 结构化错误优先按错误码归类
	var typed *types.Error
	if errors.As(err, &typed) {
		if cls, ok := classifyCode(typed); ok {
			return cls
		}
	}

	msg := strings.ToLower(err.Error())

	// 1. authentication
	if containsAny(msg,
		"401", "403", "unauthorized", "forbidden",
		"invalid api key", "invalid key", "authentication failed",
		"permission denied",
	) {
		return ClassAuth
	}

	// 2. configuration / missing resource
	if errors.Is(err, exec.ErrNotFound) || errors.Is(err, os.ErrNotExist) {
		return ClassConfig
	}
	if containsAny(msg,
		"executable file not found", "no such file or directory",
		"command not found", "not configured",
	) {
		return ClassConfig
	}

	// 3. rate limit
	if containsAny(msg,
		"429", "rate limit", "rate_limit", "too many requests",
		"quota exceeded", "resource exhausted",
	) {
		return ClassRateLimit
	}

	// 4. timeout
	if errors.Is(err, context.DeadlineExceeded) {
		return ClassTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ClassTimeout
	}
	if containsAny(msg, "timeout", "timed out", "deadline exceeded") {
		return ClassTimeout
	}

	// 5. connection reset / 5xx
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return ClassNetwork
	}
	if containsAny(msg,
		"connection reset", "connection refused", "broken pipe",
		"500", "502", "503", "504", "bad gateway",
		"service unavailable", "internal server error", "overloaded",
	) {
		return ClassNetwork
	}

	// 6. process exit / spawn failure
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return ClassProcess
	}
	if containsAny(msg, "exit status", "signal: killed", "fork/exec") {
		return ClassProcess
	}

	// 7. unclassified: optimistic default
	return ClassGeneric
}

// classifyCode 将 types.ErrorCode 映射到分类；HTTP 状态码作为兜底。
func classifyCode(e *types.Error) (Classification, bool) {
	switch e.Code {
	case types.ErrAuthentication:
		return ClassAuth, true
	case types.ErrConfiguration, types.ErrUnknownAgent:
		return ClassConfig, true
	case types.ErrRateLimit:
		return ClassRateLimit, true
	case types.ErrTimeout:
		return ClassTimeout, true
	case types.ErrNetwork:
		return ClassNetwork, true
	case types.ErrEmptyResponse, types.ErrRetriable:
		return ClassGeneric, true
	}
	switch e.HTTPStatus {
	case 401, 403:
		return ClassAuth, true
	case 429:
		return ClassRateLimit, true
	case 500, 502, 503, 504:
		return ClassNetwork, true
	}
	return ClassGeneric, false
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
