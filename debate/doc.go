// 版权所有 2025 DebateFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 debate 实现辩论编排器：把选型、提案、评审、改进、合成与验证
各阶段串成一台状态机，对外只暴露一个 Run。

# 概述

一次辩论从问题进、从共识出。编排器先查缓存，未命中时依次推进
selecting → proposing → evaluating → improving → synthesizing →
（可选 verifying）→ done，任一致命故障落入 failed。阶段之间严格
顺序，阶段内部（提案扇出、改进收集）并行。单个 Agent 的失败只
消耗它自己的席位：存活 Agent 数不低于法定人数，辩论照常推进。

# 组件装配

Components 聚合全部协作方：注册表与执行后端必填，选型器、共识
引擎、验证器缺省自动构造，缓存为 nil 时整体旁路，遥测通道缺省
为空实现。进度事件经内部 Hub 广播，缓冲满时丢最旧保最新。

# 降级语义

验证失败、缓存读写故障、遥测投递故障均不影响结果交付，只记日志
降级。全局超时以 ErrDebateTimeout 携带已完成提案返回局部现场。
*/
package debate
