// 版权所有 2025 DebateFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 migration 管理辩论缓存 gorm 后端的数据库 Schema,基于
golang-migrate 实现,支持 PostgreSQL 与 SQLite 两种方言。

# 概述

本包通过 embed.FS 内嵌各方言的 SQL 迁移文件,版本化管理
debate_cache 表的结构变更。sqlite 走 modernc 纯 Go 驱动,postgres
走 lib/pq,与缓存后端共用同一条 DSN,迁移与运行读写指向同一个库。

# 核心接口与类型

  - Migrator:迁移器接口,定义 Up/Down/DownAll/Steps/Goto/Force/
    Version/Status/Info/Close 操作集。
  - DefaultMigrator:Migrator 的默认实现,封装 golang-migrate 实例
    与数据库连接管理。
  - Config:迁移配置,包含方言、连接串与版本表名。
  - CLI:命令行包装,为 migrate 子命令提供格式化输出。

# 工厂函数

NewMigratorFromConfig / NewMigratorFromStoreConfig 从应用配置的
缓存存储节创建迁移器(仅 gorm 后端有 Schema 可迁移);
NewMigratorFromURL 支持命令行直连。
*/
package migration
