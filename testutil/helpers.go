// 测试辅助函数。
//
// 使用方法:
//
//	ctx := testutil.TestContext(t)
//	path := testutil.WriteConfig(t, yamlBody)
package testutil

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/BaSui01/debateflow/retry"
)

// --- 上下文辅助 ---

// TestContext 返回带超时的测试上下文,Cleanup 自动取消。
func TestContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	t.Cleanup(cancel)
	return ctx
}

// TestContextWithTimeout 返回带自定义超时的测试上下文。
func TestContextWithTimeout(t *testing.T, timeout time.Duration) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	t.Cleanup(cancel)
	return ctx
}

// --- 配置辅助 ---

// FastRetryPolicy 返回毫秒级延迟的重试策略,测试里代替缺省的
// 秒级退避。
func FastRetryPolicy() retry.Policy {
	p := retry.DefaultPolicy()
	p.MaxRetries = 1
	p.InitialDelay = time.Millisecond
	p.MaxDelay = 2 * time.Millisecond
	p.JitterRange = 0
	p.RateLimitFloor = time.Millisecond
	p.Timeout = 5 * time.Second
	return p
}

// WriteConfig 把 YAML 配置写进临时目录并返回文件路径。
func WriteConfig(t *testing.T, yamlBody string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "debateflow.yaml")
	if err := os.WriteFile(path, []byte(yamlBody), 0o644); err != nil {
		t.Fatalf("write config fixture: %v", err)
	}
	return path
}

// --- 上下文签名 ---

// StaticContextProvider 实现 debate.ContextProvider,返回固定
// 签名(或错误),测试缓存指纹联动时无需真实目录树。
type StaticContextProvider struct {
	Sig string
	Err error
}

// Signature 返回预设的签名与错误。
func (p StaticContextProvider) Signature(context.Context, string) (string, error) {
	return p.Sig, p.Err
}
