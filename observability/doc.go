// 版权所有 2025 DebateFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 observability 为辩论生命周期提供 OpenTelemetry 追踪与指标。

# 概述

本包基于 OpenTelemetry 标准，为一场辩论从选型、提案、评估到裁决的
全部阶段提供统一的观测手段：每场辩论一个根 Span，每个阶段一个子
Span，并按类别、状态、agent 维度落计数与直方图指标。未安装 SDK 时
otel 全局退化为 noop 实现，库内调用零开销。

# 核心接口

  - Metrics：基于 OpenTelemetry Meter 的指标收集器，提供辩论计数、
    提案计数、缓存命中/未命中、Token 估算与时长直方图等指标，
    并承载根 Span 与阶段 Span 的生命周期方法。
  - UsageTracker：会话级用量追踪器，按 agent 汇总调用次数与估算
    Token，辩论结束时随结果落日志。

# 主要指标

  - debate.total：辩论总量，按 category 与 status 维度。
  - debate.duration / debate.phase.duration：整场与分阶段耗时分布。
  - debate.proposal.total：提案总量，按 agent 与 status 维度。
  - debate.token.estimate：按 agent 估算的输出 Token 总量。
  - debate.cache.hit.total / debate.cache.miss.total：缓存命中情况。
*/
package observability
