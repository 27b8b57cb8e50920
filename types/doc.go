// Copyright (c) DebateFlow Authors.
// Licensed under the MIT License.

/*
Package types 提供 DebateFlow 引擎的全局共享类型定义。

# 概述

types 是引擎最底层的公共包，不依赖任何内部包，为 retry、backend、
selection、consensus、cache、verify、debate 等上层模块提供统一的类型
契约。所有跨包共享的结构体、枚举和错误码均定义于此，以避免循环依赖。

# 核心类型

  - Agent / AgentID     — 静态 Agent 名册条目（命令行或 HTTP 调用句柄）
  - Registry            — 经校验的静态 Agent 表，未知标识符在此被拒绝
  - InstanceConfig      — 并行实例配置（index / seed / temperature / focus）
  - AgentPlan           — 一场辩论选定的 Agent 及实例数
  - QuestionAnalysis    — 问题分析结果（类别、复杂度、关键度、计划）
  - Proposal            — 单个 Agent 实例的答案，记录后不可变
  - EvaluationResult    — 评分结果（分值、最佳提案、评分方法）
  - ConsensusResult     — 最终共识答案及其来源信息
  - VerificationResult  — 可选的交叉验证结果（低于下限仅标记，不丢弃）
  - ProgressEvent       — fire-and-forget 进度事件（不阻塞辩论主流程）
  - DebateRecord        — 交给遥测 Sink 的结构化结果记录
  - Error / ErrorCode   — 结构化错误体系，含 Retryable、Agent 标记
  - DebateError         — 辩论级致命错误，携带阶段与部分状态

# 错误分类

Authentication 与 Configuration 为致命错误（不重试）；RateLimit、
Timeout、Network、Retriable 为可重试错误。单个 Agent 的失败始终被隔离，
只有跌破法定人数（quorum）才升级为辩论级失败。
*/
package types
