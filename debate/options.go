package debate

// runOptions 单场辩论的运行参数,由 RunOption 按序修饰
type runOptions struct {
	contextPath         string
	planSpec            string
	noCache             bool
	verify              *bool
	confidenceThreshold float64
	deepReasoning       bool
}

// RunOption 修饰单场辩论的运行参数。
type RunOption func(*runOptions)

// WithContextPath 绑定上下文路径,其内容签名参与缓存失效判定。
func WithContextPath(path string) RunOption {
	return func(o *runOptions) { o.contextPath = path }
}

// WithPlan 使用显式执行计划(如 "claude:2,codex"),完全绕过问题分析。
func WithPlan(spec string) RunOption {
	return func(o *runOptions) { o.planSpec = spec }
}

// WithoutCache 本次辩论跳过缓存查询与写入。
func WithoutCache() RunOption {
	return func(o *runOptions) { o.noCache = true }
}

// WithVerification 强制执行验证,即使类别不敏感。
func WithVerification() RunOption {
	return func(o *runOptions) { v := true; o.verify = &v }
}

// WithoutVerification 跳过验证,优先级高于敏感类别的自动触发。
func WithoutVerification() RunOption {
	return func(o *runOptions) { v := false; o.verify = &v }
}

// WithConfidenceThreshold 覆盖本次辩论的缓存置信度门槛。
func WithConfidenceThreshold(threshold float64) RunOption {
	return func(o *runOptions) { o.confidenceThreshold = threshold }
}

// WithDeepReasoning 要求有能力的 Agent 开启深度推理。
func WithDeepReasoning() RunOption {
	return func(o *runOptions) { o.deepReasoning = true }
}
