// =============================================================================
// DebateFlow 主入口
// =============================================================================
// 完整服务入口点,包含 HTTP 服务、SSE 事件流、健康检查、Prometheus 指标
//
// 使用方法:
//
//	debateflow ask "问题"                   # 命令行发起一场辩论
//	debateflow serve                        # 启动服务
//	debateflow serve --config config.yaml   # 指定配置文件
//	debateflow version                      # 显示版本信息
//	debateflow health                       # 健康检查
//	debateflow migrate up                   # 运行数据库迁移
//	debateflow migrate status               # 查看迁移状态
// =============================================================================

// @title DebateFlow API
// @version 1.0.0
// @description DebateFlow orchestrates structured debates between heterogeneous AI agents: proposals, cross-evaluation, improvement and weighted consensus, with optional adversarial verification.
// @description
// @description ## Features
// @description - Multi-agent debate pipeline with automatic agent selection
// @description - Consensus caching with confidence- and context-based invalidation
// @description - Streaming debate progress via SSE
// @description - Debate history, health monitoring and metrics

// @contact.name DebateFlow Team
// @contact.url https://github.com/BaSui01/debateflow

// @license.name MIT
// @license.url https://opensource.org/licenses/MIT

// @host localhost:8080
// @BasePath /
// @schemes http https

// @securityDefinitions.apikey ApiKeyAuth
// @in header
// @name X-API-Key
// @description API key for authentication

package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/debateflow"
	"github.com/BaSui01/debateflow/config"
	"github.com/BaSui01/debateflow/debate"
	otelinit "github.com/BaSui01/debateflow/internal/telemetry"
	"github.com/BaSui01/debateflow/internal/tlsutil"
	"github.com/BaSui01/debateflow/types"
)

// =============================================================================
// 📦 版本信息（构建时注入）
// =============================================================================

var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// =============================================================================
// 🎯 主函数
// =============================================================================

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "ask":
		runAsk(os.Args[2:])
	case "serve":
		runServe(os.Args[2:])
	case "migrate":
		runMigrate(os.Args[2:])
	case "version":
		printVersion()
	case "health":
		runHealthCheck(os.Args[2:])
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

// loadConfig 加载配置,Load 内部已做校验
func loadConfig(path string) (*config.Config, error) {
	loader := config.NewLoader()
	if path != "" {
		loader = loader.WithConfigPath(path)
	}
	return loader.Load()
}

// =============================================================================
// 🖥️ serve 命令
// =============================================================================

func runServe(args []string) {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to config file")
	fs.Parse(args)

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger, level, err := debateflow.NewLogger(cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("starting DebateFlow",
		zap.String("version", Version),
		zap.String("build_time", BuildTime),
		zap.String("git_commit", GitCommit),
	)

	// OpenTelemetry 初始化失败只降级,不拦启动
	otelProviders, err := otelinit.Init(cfg.Telemetry, logger)
	if err != nil {
		logger.Warn("failed to initialize telemetry", zap.Error(err))
	}

	srv := NewServer(cfg, *configPath, logger, level, otelProviders)

	if err := srv.Start(); err != nil {
		logger.Fatal("failed to start server", zap.Error(err))
	}

	srv.WaitForShutdown()

	logger.Info("DebateFlow stopped")
}

// =============================================================================
// 💬 ask 命令
// =============================================================================

func runAsk(args []string) {
	fs := flag.NewFlagSet("ask", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to config file")
	contextPath := fs.String("context", "", "Context file or directory bound to the question")
	planSpec := fs.String("plan", "", `Explicit debate plan, e.g. "claude:2,codex"`)
	noCache := fs.Bool("no-cache", false, "Bypass the consensus cache for this run")
	forceVerify := fs.Bool("verify", false, "Force verification even for non-sensitive categories")
	skipVerify := fs.Bool("no-verify", false, "Skip verification even for sensitive categories")
	deep := fs.Bool("deep", false, "Request deep reasoning from capable agents")
	threshold := fs.Float64("threshold", 0, "Cache confidence threshold override (0..1)")
	timeout := fs.Duration("timeout", 0, "Overall debate deadline (0 = config default)")
	asJSON := fs.Bool("json", false, "Print the full result as JSON")
	quiet := fs.Bool("quiet", false, "Suppress progress output")
	fs.Parse(args)

	question := strings.TrimSpace(strings.Join(fs.Args(), " "))
	if question == "" {
		fmt.Fprintln(os.Stderr, "Usage: debateflow ask [options] <question>")
		os.Exit(1)
	}
	if *forceVerify && *skipVerify {
		fmt.Fprintln(os.Stderr, "--verify and --no-verify are mutually exclusive")
		os.Exit(1)
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// 命令行模式日志走 stderr 且只留告警,stdout 留给答案
	cfg.Log.Format = "console"
	cfg.Log.OutputPath = "stderr"
	if cfg.Log.Level == "" || strings.EqualFold(cfg.Log.Level, "info") {
		cfg.Log.Level = "warn"
	}

	eng, err := debateflow.New(debateflow.WithConfig(cfg))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to build engine: %v\n", err)
		os.Exit(1)
	}

	var progressDone chan struct{}
	if !*quiet {
		progressDone = make(chan struct{})
		go func() {
			defer close(progressDone)
			for ev := range eng.Events() {
				fmt.Fprintln(os.Stderr, formatEvent(ev))
			}
		}()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if *timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, *timeout)
		defer cancel()
	}

	var opts []debate.RunOption
	if *contextPath != "" {
		opts = append(opts, debate.WithContextPath(*contextPath))
	}
	if *planSpec != "" {
		opts = append(opts, debate.WithPlan(*planSpec))
	}
	if *noCache {
		opts = append(opts, debate.WithoutCache())
	}
	if *forceVerify {
		opts = append(opts, debate.WithVerification())
	}
	if *skipVerify {
		opts = append(opts, debate.WithoutVerification())
	}
	if *deep {
		opts = append(opts, debate.WithDeepReasoning())
	}
	if *threshold > 0 {
		opts = append(opts, debate.WithConfidenceThreshold(*threshold))
	}

	result, askErr := eng.Ask(ctx, question, opts...)

	// 先关引擎:事件通道关闭让进度 goroutine 退出,缓存随之落盘
	if cerr := eng.Close(); cerr != nil {
		fmt.Fprintf(os.Stderr, "warning: engine close: %v\n", cerr)
	}
	if progressDone != nil {
		<-progressDone
	}

	if askErr != nil {
		fmt.Fprintf(os.Stderr, "debate failed: %v\n", askErr)
		os.Exit(1)
	}

	if err := printResult(result, *asJSON); err != nil {
		fmt.Fprintf(os.Stderr, "failed to render result: %v\n", err)
		os.Exit(1)
	}
}

// formatEvent 渲染一行进度。阶段切换顶格,单个智能体的动静缩进。
func formatEvent(ev types.ProgressEvent) string {
	if ev.Type == types.EventPhaseChange {
		if ev.Message != "" {
			return fmt.Sprintf("==> %s: %s", ev.Phase, ev.Message)
		}
		return fmt.Sprintf("==> %s", ev.Phase)
	}

	agent := string(ev.Agent)
	if ev.Instance > 1 {
		agent = fmt.Sprintf("%s#%d", agent, ev.Instance)
	}
	verb := strings.TrimPrefix(string(ev.Type), "agent_")
	if ev.Message != "" {
		return fmt.Sprintf("    %-12s %s (%s)", agent, verb, ev.Message)
	}
	return fmt.Sprintf("    %-12s %s", agent, verb)
}

// printResult 输出共识结果。答案进 stdout,元数据进 stderr,
// 方便管道只取答案。
func printResult(result types.ConsensusResult, asJSON bool) error {
	if asJSON {
		out, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(out))
		return nil
	}

	fmt.Println(result.Answer)
	fmt.Fprintln(os.Stderr)
	fmt.Fprintf(os.Stderr, "winner=%s confidence=%.2f category=%s duration=%s cached=%t\n",
		result.Winner, result.Confidence, result.Category,
		result.Duration.Round(time.Millisecond), result.FromCache)
	if v := result.Verification; v != nil {
		fmt.Fprintf(os.Stderr, "verification: accuracy=%.2f challenges=%d/%d flagged=%t\n",
			v.FactAccuracy, v.ChallengesPassed, v.ChallengesTotal, v.Flagged)
	}
	return nil
}

// =============================================================================
// 🏥 健康检查命令
// =============================================================================

func runHealthCheck(args []string) {
	fs := flag.NewFlagSet("health", flag.ExitOnError)
	addr := fs.String("addr", "http://localhost:8080", "Server address")
	fs.Parse(args)

	// https 地址也能探,TLS 参数与服务端同一套加固默认值
	client := tlsutil.SecureHTTPClient(5 * time.Second)
	resp, err := client.Get(*addr + "/health")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Health check failed: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		fmt.Fprintf(os.Stderr, "Health check failed: status %d\n", resp.StatusCode)
		os.Exit(1)
	}

	fmt.Println("OK")
}

// =============================================================================
// 📋 版本和帮助
// =============================================================================

func printVersion() {
	fmt.Printf("DebateFlow %s\n", Version)
	fmt.Printf("  Build Time: %s\n", BuildTime)
	fmt.Printf("  Git Commit: %s\n", GitCommit)
}

func printUsage() {
	fmt.Println(`DebateFlow - Multi-Agent Debate Engine

Usage:
  debateflow <command> [options]

Commands:
  ask       Run a debate from the command line
  serve     Start the DebateFlow server
  migrate   Database migration commands
  version   Show version information
  health    Check server health
  help      Show this help message

Options for 'ask':
  --config <path>     Path to configuration file (YAML)
  --context <path>    Context file or directory bound to the question
  --plan <spec>       Explicit debate plan, e.g. "claude:2,codex"
  --no-cache          Bypass the consensus cache
  --verify            Force verification
  --no-verify         Skip verification
  --deep              Request deep reasoning
  --threshold <f>     Cache confidence threshold override (0..1)
  --timeout <d>       Overall debate deadline, e.g. 5m
  --json              Print the full result as JSON
  --quiet             Suppress progress output

Options for 'serve':
  --config <path>     Path to configuration file (YAML)

Migration subcommands:
  migrate up          Apply all pending migrations
  migrate down        Rollback the last migration
  migrate status      Show migration status
  migrate version     Show current migration version
  migrate goto <v>    Migrate to a specific version
  migrate force <v>   Force set migration version
  migrate steps <n>   Apply n migrations (negative rolls back)
  migrate reset       Rollback all migrations

Examples:
  debateflow ask "Should the session store be sharded?"
  debateflow ask --plan "claude:2,deepseek" --verify "Audit this design"
  debateflow serve --config /etc/debateflow/config.yaml
  debateflow migrate up
  debateflow health --addr http://localhost:8080`)
}
