// 版权所有 2025 DebateFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 handlers 提供 DebateFlow HTTP API 的请求处理器实现。

# 概述

handlers 包实现所有 HTTP 端点的请求处理逻辑：发起辩论、SSE 进度
流、辩论历史、缓存与重试管理、智能体目录、配置视图以及健康检查。
每个处理器只依赖一个小接口（DebateRunner、EventSource、
CacheManager 等）,引擎门面直接满足这些接口,测试用桩实现替换。

# 核心类型

  - DebateHandler    — 发起辩论,超时、计划、核验开关全走请求体
  - EventsHandler    — SSE 进度事件流,心跳保活,按会话过滤
  - HistoryHandler   — 查询持久化的辩论历史
  - CacheHandler     — 缓存统计、清空与谓词式失效
  - RetryHandler     — 重试统计查询与重置
  - AgentHandler     — 智能体目录（列表与单个查询）
  - ConfigHandler    — 输出脱敏后的运行配置（YAML）
  - HealthHandler    — 服务健康检查（/health, /healthz, /ready）
  - Response         — 统一 JSON 响应结构（success + data + error + timestamp）
  - ErrorInfo        — 结构化错误信息,含 code、retryable、agent 标记

# 主要能力

  - 统一响应格式：WriteSuccess / WriteError / WriteFailure 辅助函数
  - 请求验证：DecodeJSONBody（1 MB 限制 + 严格模式）、ValidateContentType
  - ErrorCode → HTTP 状态码自动映射（4xx/5xx）
  - SSE 流式输出：EventsHandler.HandleEvents 支持 text/event-stream
  - 可扩展健康检查：RegisterCheck 注册 PingCheck、AgentCommandCheck 等实现
*/
package handlers
