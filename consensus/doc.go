// 版权所有 2025 DebateFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 consensus 提供辩论的评审与共识形成：从多个提案中选出胜者，
驱动改进轮，并把胜出答案与改进意见合成为单一结论。

# 概述

辩论的价值在收敛。本包回答"谁赢了、为什么、最终答案长什么样"：
先对全部成功提案打分选出胜者，再让落选 Agent 批评并补强胜出
答案，最后合成带署名小节的结论文本。

# 评审路径

  - JudgeEvaluator：裁判 Agent 评审，产出严格 JSON 分数；调用失败
    或结论不可解析时报错，绝不捏造固定赢家。
  - HeuristicEvaluator：确定性兜底——按回答长度档位、结构化内容
    密度与问题关键词覆盖率加权打分，分项拆解随结果返回。
  - 两条路径共用同一决胜规则：分数四舍五入到 4 位小数后，
    同分取 Agent ID 字典序最小者，跨次运行完全可复现。

# 改进与合成

Engine.Improve 让每个落选且成功的 Agent 对胜出答案提改进意见，
并发受限、失败只告警。Synthesize 把胜出内容与改进小节拼接成
最终结论：连续空行收拢、跨 Agent 署名痕迹清除，胜出内容在
任何情况下都不会丢失。
*/
package consensus
