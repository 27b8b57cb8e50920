package api

import (
	"time"
)

// =============================================================================
// 辩论类型
// =============================================================================

// DebateRequest 代表一次辩论请求。
// @Description 辩论请求结构
type DebateRequest struct {
	// 要辩论的问题
	Question string `json:"question" example:"Should the session store be sharded?" binding:"required"`
	// 项目上下文目录（服务端本地路径）
	ContextPath string `json:"context_path,omitempty" example:"/srv/app"`
	// 手工指定的阵容（例如 claude:2,codex）,留空自动选择
	Plan string `json:"plan,omitempty" example:"claude:2,codex"`
	// 是否允许命中缓存,省略时默认允许
	UseCache *bool `json:"use_cache,omitempty" example:"true"`
	// 是否强制开关核验,省略时由问题类别决定
	Verify *bool `json:"verify,omitempty" example:"false"`
	// 是否要求支持深度推理的智能体展开长链思考
	DeepReasoning bool `json:"deep_reasoning,omitempty" example:"false"`
	// 结果写入缓存的置信度下限（0-1）,0 取配置默认值
	ConfidenceThreshold float64 `json:"confidence_threshold,omitempty" example:"0.7"`
	// 请求超时时长
	Timeout string `json:"timeout,omitempty" example:"120s"`
}

// DebateResponse 表示辩论结果。
// @Description 辩论响应结构
type DebateResponse struct {
	// 会话 ID
	SessionID string `json:"session_id" example:"d8f3a2b1"`
	// 共识答案
	Answer string `json:"answer" example:"Shard by tenant id once a single node exceeds..."`
	// 胜出提案的智能体
	Winner string `json:"winner" example:"claude"`
	// 评审打分（0-10）
	Score float64 `json:"score" example:"8.5"`
	// 归一化置信度（0-1）
	Confidence float64 `json:"confidence" example:"0.85"`
	// 问题类别
	Category string `json:"category" example:"architecture"`
	// 成功给出提案的智能体
	ContributingAgents []string `json:"contributing_agents"`
	// 全部实例失败的智能体
	FailedAgents []string `json:"failed_agents,omitempty"`
	// 辩论耗时
	Duration string `json:"duration" example:"42.7s"`
	// 是否命中缓存
	FromCache bool `json:"from_cache" example:"false"`
	// 核验明细（未核验时为空）
	Verification *VerificationDetail `json:"verification,omitempty"`
}

// VerificationDetail 表示答案核验明细。
// @Description 核验结果结构
type VerificationDetail struct {
	// 本次是否要求核验
	Required bool `json:"required" example:"true"`
	// 事实性评分（0-100）
	FactAccuracy float64 `json:"fact_accuracy" example:"92.1"`
	// 通过的质询数
	ChallengesPassed int `json:"challenges_passed" example:"3"`
	// 质询总数
	ChallengesTotal int `json:"challenges_total" example:"3"`
	// 各核验者的分项评分
	PerVerifier map[string]VerifierScoreDetail `json:"per_verifier,omitempty"`
	// 核验置信度（0-1）
	Confidence float64 `json:"confidence" example:"0.9"`
	// 是否被标记为存疑
	Flagged bool `json:"flagged" example:"false"`
	// 核验者提出的问题
	Issues []string `json:"issues,omitempty"`
}

// VerifierScoreDetail 表示单个核验者的分项评分。
// @Description 核验者评分结构
type VerifierScoreDetail struct {
	// 事实准确性（0-100）
	Accuracy float64 `json:"accuracy" example:"95"`
	// 安全性（0-100）
	Security float64 `json:"security" example:"90"`
	// 完整性（0-100）
	Completeness float64 `json:"completeness" example:"88"`
	// 加权总分（0-100）
	Weighted float64 `json:"weighted" example:"92.1"`
}

// =============================================================================
// 进度事件类型
// =============================================================================

// ProgressEventPayload 表示 SSE 推送的单条进度事件。
// @Description 进度事件结构
type ProgressEventPayload struct {
	// 事件类型（agent_waiting、agent_starting、agent_running、agent_completed、agent_failed、phase_change）
	Type string `json:"type" example:"phase_change"`
	// 会话 ID
	SessionID string `json:"session_id,omitempty" example:"d8f3a2b1"`
	// 相关智能体（阶段事件可为空）
	Agent string `json:"agent,omitempty" example:"claude"`
	// 智能体实例序号（从 1 起,单实例为 0）
	Instance int `json:"instance,omitempty" example:"1"`
	// 辩论阶段（selecting、proposing、evaluating、improving、synthesizing、verifying、done、failed）
	Phase string `json:"phase,omitempty" example:"proposing"`
	// 人类可读的进度描述
	Message string `json:"message,omitempty" example:"claude drafting proposal"`
	// 事件时间戳
	Timestamp time.Time `json:"timestamp"`
}

// =============================================================================
// 历史类型
// =============================================================================

// HistoryEntry 表示一条辩论历史记录。
// @Description 辩论历史条目
type HistoryEntry struct {
	// 会话 ID
	SessionID string `json:"session_id" example:"d8f3a2b1"`
	// 辩论的问题
	Question string `json:"question" example:"Should the session store be sharded?"`
	// 问题类别
	Category string `json:"category" example:"architecture"`
	// 参与的智能体
	AgentsUsed []string `json:"agents_used"`
	// 胜出的智能体
	Winner string `json:"winner" example:"claude"`
	// 辩论耗时
	Duration string `json:"duration" example:"42.7s"`
	// 归一化置信度（0-1）
	Confidence float64 `json:"confidence" example:"0.85"`
	// 是否命中缓存
	FromCache bool `json:"from_cache" example:"false"`
	// 是否经过核验
	Verified bool `json:"verified" example:"true"`
	// 是否被标记为存疑
	Flagged bool `json:"flagged" example:"false"`
	// 辩论结束时间
	FinishedAt time.Time `json:"finished_at"`
}

// HistoryListResponse 表示辩论历史列表。
// @Description 辩论历史响应
type HistoryListResponse struct {
	// 新到旧排列的历史记录
	Entries []HistoryEntry `json:"entries"`
}

// =============================================================================
// 缓存类型
// =============================================================================

// CacheStatsResponse 表示缓存计数快照。
// @Description 缓存统计响应
type CacheStatsResponse struct {
	// 当前条目数
	Entries int `json:"entries" example:"42"`
	// 命中次数
	Hits int64 `json:"hits" example:"128"`
	// 未命中次数
	Misses int64 `json:"misses" example:"64"`
	// LRU 淘汰次数
	Evictions int64 `json:"evictions" example:"3"`
	// 过期清理次数
	Expirations int64 `json:"expirations" example:"7"`
	// 命中率（0-1）
	HitRate float64 `json:"hit_rate" example:"0.67"`
}

// CacheInvalidateRequest 表示按条件清除缓存的请求。
// 两个条件都给出时按交集处理；至少要给出一个。
// @Description 缓存失效请求
type CacheInvalidateRequest struct {
	// 只清除该类别的条目
	Category string `json:"category,omitempty" example:"coding"`
	// 只清除置信度低于该值的条目（0-1）
	BelowConfidence float64 `json:"below_confidence,omitempty" example:"0.5"`
}

// CacheInvalidateResponse 表示清除结果。
// @Description 缓存失效响应
type CacheInvalidateResponse struct {
	// 实际移除的条目数
	Removed int `json:"removed" example:"5"`
}

// =============================================================================
// 重试类型
// =============================================================================

// RetryStatsResponse 表示重试执行器的累计计数。
// @Description 重试统计响应
type RetryStatsResponse struct {
	// 完整调用总数
	TotalInvocations int64 `json:"total_invocations" example:"200"`
	// 最终成功的调用数
	Successes int64 `json:"successes" example:"190"`
	// 成功率（0-1）
	SuccessRate float64 `json:"success_rate" example:"0.95"`
	// 消耗的重试总数
	TotalRetries int64 `json:"total_retries" example:"31"`
	// 每次调用的平均重试数
	AvgRetries float64 `json:"avg_retries" example:"0.155"`
	// 单次调用的最大重试数
	MaxRetries int `json:"max_retries" example:"3"`
	// 按失败分类的计数
	ByClassification map[string]int64 `json:"by_classification,omitempty"`
}

// =============================================================================
// 智能体类型
// =============================================================================

// AgentInfo 代表一个已注册的智能体。
// @Description 智能体信息结构
type AgentInfo struct {
	// 智能体标识
	ID string `json:"id" example:"claude"`
	// 显示名称
	Name string `json:"name" example:"Claude"`
	// 辩论角色
	Role string `json:"role" example:"architect"`
	// 擅长领域
	Strengths []string `json:"strengths"`
	// 接入方式（command 或 http）
	Kind string `json:"kind" example:"command"`
	// 是否支持深度推理指令
	SupportsDeepReasoning bool `json:"supports_deep_reasoning" example:"true"`
	// 相对成本权重（仅用于阵容排序,非计费口径）
	CostPerKiloChars float64 `json:"cost_per_kilo_chars" example:"0.012"`
}

// AgentListResponse 表示智能体列表。
// @Description 智能体列表响应
type AgentListResponse struct {
	// 注册顺序排列的智能体
	Agents []AgentInfo `json:"agents"`
}

// =============================================================================
// 错误类型
// =============================================================================

// ErrorResponse 表示错误响应。
// @Description 错误响应结构
type ErrorResponse struct {
	// 错误详情
	Error ErrorDetail `json:"error"`
}

// ErrorDetail 表示错误详细信息。
// @Description 错误详细结构
type ErrorDetail struct {
	// 错误代码
	Code string `json:"code" example:"INVALID_QUESTION"`
	// 人类可读的错误消息
	Message string `json:"message" example:"question must not be empty"`
	// HTTP 状态码
	HTTPStatus int `json:"http_status,omitempty" example:"400"`
	// 请求是否可以重试
	Retryable bool `json:"retryable,omitempty" example:"false"`
	// 出错的智能体
	Agent string `json:"agent,omitempty" example:"codex"`
}
