// 版权所有 2025 DebateFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 metrics 提供基于 Prometheus 的服务端指标采集能力，覆盖
HTTP、辩论、提案、缓存、重试与数据库六大维度。

# 概述

本包通过 Collector 统一注册和记录 Prometheus 指标，使用 promauto
自动注册机制，避免手动管理 Registry。所有指标按 namespace 隔离，
支持多维度 label 分组，便于 Grafana 等工具进行可视化与告警。

# 核心类型

  - Collector：指标收集器，持有 Counter、Histogram、Gauge 等
    Prometheus 向量指标，按业务域分组管理。

# 主要能力

  - HTTP 指标：请求总数、请求耗时、请求/响应体大小，
    按 method/path/status 分组，状态码归类为 2xx/3xx/4xx/5xx。
  - 辩论指标：场次总数、全程耗时、验证结论计数，
    按 category/status 分组。
  - 提案指标：提案总数与单 Agent 耗时，按 agent/status 分组。
  - 缓存指标：命中与未命中计数，按 cache_type 分组。
  - 重试指标：按错误分类的累计重试数，从执行器快照同步。
  - 数据库指标：活跃/空闲连接数 Gauge、查询耗时 Histogram，
    按 database/operation 分组。

库内部(debate、backend 等包)的埋点走 observability 包的 OTel
仪表;本包只服务 cmd/debateflow 的 /metrics 暴露面。
*/
package metrics
