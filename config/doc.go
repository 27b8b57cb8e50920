// 版权所有 2025 DebateFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 config 提供 DebateFlow 的统一配置管理。

# 概述

配置按 默认值 → YAML 文件 → 环境变量 的优先级装配，装配完成后
整体校验，校验不过直接拒绝启动。Loader 走 Builder 风格，环境
变量键由前缀加 env tag 逐级拼接（例如 DEBATEFLOW_RETRY_MAX_RETRIES）。

# 结构

Config 按关注面分节：日志、辩论编排、重试策略、结果缓存、执行
后端、遥测与 HTTP 服务，各节与对应引擎包的配置一一映射，由装配
方负责翻译。Agent 花名册独立成文件，经 LoadRoster 加载并逐条
校验。

# 热重载

HotReloadManager 监听配置文件，变更去抖后重新加载并做字段级
diff：可热重载字段（日志级别、重试策略、置信度门槛等）通过回调
即时下发，其余字段标注需要重启。校验失败保持当前配置，回调
panic 自动回滚到上一份。变更历史带审计日志，敏感字段全程掩蔽。
*/
package config
