// 版权所有 2025 DebateFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 api 定义 DebateFlow HTTP API 的请求与响应类型。

# 概述

本包只含传输层 DTO：发起辩论、查询历史、缓存与重试统计、
智能体目录、进度事件以及统一的错误表示。字段带 swagger 注解，
供 swag 生成 OpenAPI 文档：

	swag init -g cmd/debateflow/main.go -o api --parseDependency --parseInternal

# 端点速览

  - POST   /v1/debates            — 发起一场辩论（DebateRequest → DebateResponse）
  - GET    /v1/debates/history    — 查询历史记录（HistoryListResponse）
  - GET    /v1/events             — SSE 进度事件流（ProgressEventPayload）
  - GET    /v1/agents             — 智能体目录（AgentListResponse）
  - GET    /v1/cache/stats        — 缓存统计（CacheStatsResponse）
  - POST   /v1/cache/invalidate   — 谓词式缓存失效（CacheInvalidateRequest）
  - DELETE /v1/cache              — 清空缓存
  - GET    /v1/retry/stats        — 重试统计（RetryStatsResponse）
  - GET    /v1/config             — 脱敏后的运行配置（YAML）

# 鉴权

除健康检查外的端点要求 X-API-Key 头,或启用 JWT 时的 Bearer 令牌：

	X-API-Key: your-api-key

# 错误格式

所有失败响应共用 ErrorResponse：code 取自引擎错误码（如
INVALID_QUESTION、DEBATE_TIMEOUT）,retryable 指明是否值得重发。
*/
package api
