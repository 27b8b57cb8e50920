// 版权所有 2025 DebateFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 testutil 提供 DebateFlow 测试的共享工具和辅助函数。

# 概述

testutil 包为门面、API 处理器与命令行入口的测试提供统一的
辅助能力。debate、consensus、verify 等核心包的测试使用各自
包内的轻量替身(内部测试包引用 testutil 会造成 import 环),
外层测试统一从这里取。

# 核心能力

  - 上下文辅助: TestContext / TestContextWithTimeout，自动注册
    Cleanup 防止泄漏
  - 配置辅助: FastRetryPolicy 毫秒级重试策略、WriteConfig 落盘
    临时 YAML 配置
  - 上下文签名: StaticContextProvider 返回固定签名,测试缓存
    指纹联动时无需真实目录树

# 子包

  - testutil/mocks: ScriptedInvoker(按提示词特征路由的脚本化
    后端,零值即可跑完整场辩论)与 CaptureSink(捕获遥测记录)
  - testutil/fixtures: 测试数据工厂,提供问题样例、裁判结论
    JSON、评分 JSON 与花名册 YAML

# 使用示例

	ctx := testutil.TestContext(t)
	verdict := fixtures.JudgeVerdict("claude", map[types.AgentID]float64{"claude": 92})
	inv := mocks.NewScriptedInvoker().WithJudge(verdict)
	eng, err := debateflow.New(debateflow.WithInvoker(inv))
*/
package testutil
