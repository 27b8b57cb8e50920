// Package ctxkeys 持有跨包共享的 context 键。会话 ID 由编排器写入,
// 执行后端读出并标注到进度事件上,两侧不需要相互依赖。
package ctxkeys

import "context"

// contextKey 用于在 context 中存储值的键类型
type contextKey string

const sessionIDKey contextKey = "session_id"

// WithSessionID 设置辩论会话 ID
func WithSessionID(ctx context.Context, sessionID string) context.Context {
	return context.WithValue(ctx, sessionIDKey, sessionID)
}

// SessionID 获取辩论会话 ID
func SessionID(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(sessionIDKey).(string)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}
