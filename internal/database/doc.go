// 版权所有 2025 DebateFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 database 提供基于 GORM 的数据库连接池管理,服务于辩论缓存的
持久化后端,支持健康检查、统计采集与事务重试。

# 概述

缓存的 gorm 后端把结果落到 sqlite 或 postgres;本包通过
PoolManager 统一封装底层 sql.DB 的连接参数、生命周期与空闲回收。
后台健康检查按固定间隔探活,失败记日志,成功时把连接池快照
交给注册的统计回调(服务进程用它驱动 Prometheus 连接数仪表)。

# 核心类型

  - PoolManager:连接池管理器,提供 DB()、Ping()、GetStats()、
    Close() 等生命周期方法,Close 同时停止健康检查循环。
  - PoolConfig:连接池配置,零值字段取默认,Validate 拒绝负值
    与空闲数超过打开数的组合。
  - PoolStats:友好格式的连接池统计信息。
  - TransactionFunc:事务回调函数类型。

# 事务重试

缓存刷写以"清表加整体重写"的事务覆盖持久化状态,死锁与序列化
失败在该负载下属于可重试的瞬时错误;WithTransactionRetry 按
指数退避处理这类失败,非瞬时错误立即返回。
*/
package database
