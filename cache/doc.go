// 版权所有 2025 DebateFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 cache 提供辩论结果的指纹缓存：同一问题、同一上下文、同一执行
计划的重复请求直接返回既有共识，省掉整轮辩论的开销。

# 概述

一次完整辩论要调用多个 Agent 各若干次，代价高且慢。本包以请求
指纹为键缓存最终的 ConsensusResult：指纹对空白差异和计划顺序
差异不敏感，语义相同的请求命中同一条目。缓存层整体可停用，
停用或未配置时所有操作都是透明直通，调用方无需分支。

# 核心模型

  - Fingerprint：问题规范化 + 上下文路径 + 计划规范序的 SHA-256。
  - DebateCache：互斥锁保护的 LRU（双向链表 + 哈希表），条目带
    最大存活期，过期在读取时剔除；写入即替换，绝不改写活条目。
  - Invalidate：谓词式失效，附带按类别、按置信度下限、按上下文
    签名变更三个现成谓词。

# 持久化

Store 接口定义可选的落盘后端：memory（默认，不持久化）、file
（单 JSON 文件原子改名写入）、redis（go-redis v9，每指纹一个
hash）、gorm（sqlite 或 postgres，表结构由迁移管理）。绑定存储
后由缓存自身负责启动装载与周期刷写，存储故障只降级不中断。
*/
package cache
