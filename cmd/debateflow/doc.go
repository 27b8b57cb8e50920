// 版权所有 2025 DebateFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
Package main 提供 DebateFlow 服务端与命令行入口。

# 概述

cmd/debateflow 是 DebateFlow 引擎的可执行入口,提供 HTTP API 服务、
命令行辩论、数据库迁移、健康检查和版本查询等子命令。程序支持 YAML
配置文件加载、结构化日志(zap)、Prometheus 指标采集、OpenTelemetry
追踪以及配置热重载。

# 核心类型

  - Server     — 主服务器,管理 HTTP、Metrics 双端口及优雅关闭
  - Middleware — HTTP 中间件函数签名 func(http.Handler) http.Handler

# 主要能力

  - 子命令:ask(命令行辩论)、serve(启动服务)、migrate(数据库迁移)、
    version、health
  - 中间件链:Recovery、RequestID、SecurityHeaders、RequestLogger、
    MetricsMiddleware、CORS、RateLimiter(基于 IP)、OTelTracing、
    APIKeyAuth(X-API-Key)或 JWTAuth(Bearer HS256)
  - SSE 事件流:/v1/events 推送辩论进度,写超时单独豁免
  - HTTPS:配置 tls_cert 与 tls_key 后以加固 TLS 参数对外服务
  - 配置热重载:HotReloadManager 监听文件变更,联动引擎 ApplyConfig
  - Metrics 服务器:独立端口暴露 /metrics(Prometheus)
  - 优雅关闭:信号监听 → 停止热更新 → 关闭 HTTP → 关闭 Metrics →
    落盘历史 → 关闭引擎
  - 构建注入:Version、BuildTime、GitCommit 通过 ldflags 设置
*/
package main
