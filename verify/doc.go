// 版权所有 2025 DebateFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 verify 对合成后的答案做独立复核:敏感类别的问题在辩论结束后
交由验证 Agent 做事实核查与对抗测试,产出一个置信度而不是一票
否决——低于阈值的结果打标记,绝不丢弃。

# 概述

辩论能提高答案质量,但获胜答案仍可能带着全体参战者共有的盲区。
本包用独立的验证 Agent 跑两类检查:

  - 事实核查:每个验证者对技术准确性、安全性、完整性三个维度
    打 0-100 分,按 0.5/0.3/0.2 加权成准确率。
  - 对抗测试:固定的挑战清单(找安全漏洞、找失败边界、找性能
    悬崖),验证者要么给出具体发现,要么明确回复 PASS。

综合置信度 = 0.6 x 准确率 + 0.4 x 挑战通过率。验证者与获胜
Agent 在花名册允许时保持互斥,避免自己批改自己的卷子。

# 失败语义

验证是增益路径:任何验证者调用失败都只记日志;全部失败时整个
验证环节被省略,辩论照常交付。
*/
package verify
