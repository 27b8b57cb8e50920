// 版权所有 2025 DebateFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 selection 提供辩论前的模型选型：判定问题类别、复杂度与风险，
并产出参与辩论的 Agent 执行计划。

# 概述

并非每个问题都值得让全部模型参战。本包在辩论开始前回答三个问题：
这是什么类型的问题、它有多复杂、答错的代价有多大，然后据此从
花名册中挑选最合适的 Agent 组合，必要时为头部 Agent 启用多个
并行实例以获得答案多样性。

# 核心模型

  - Strategy：问题分析策略接口，两条实现路径共享同一契约。
  - CoordinatorStrategy：委托协调 Agent 分析，产出严格 JSON 结论；
    调用失败或结论不可解析时报错，由上层降级。
  - HeuristicStrategy：关键词表驱动的确定性分析，无外部调用，
    作为兜底路径永不失败。
  - Selector：策略编排器，统一执行席位策略——法定人数、
    并行实例门槛与高危问题的实例总数上限。

# 执行计划

  - ParsePlan 解析 "claude:2,codex,gemini:3" 形式的手写计划，
    完全绕过问题分析；非法条目丢弃并告警。
  - Instances 把计划展开为实例变体：连续序号、互异种子、
    严格递增的采样温度与轮转的关注点指令。

# 成本估算

EstimateTokens 按字符数除以 4 粗略估算 token 量，只用于
CostReduction 的相对排序，刻意不做精确化。
*/
package selection
