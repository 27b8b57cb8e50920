package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"

	"github.com/BaSui01/debateflow/config"
	"github.com/BaSui01/debateflow/internal/migration"
)

// =============================================================================
// 🗄️ 数据库迁移命令
// =============================================================================

// runMigrate handles the migrate command and its subcommands
func runMigrate(args []string) {
	if len(args) < 1 {
		printMigrateUsage()
		os.Exit(1)
	}

	subcommand := args[0]
	subargs := args[1:]

	switch subcommand {
	case "up":
		runMigrateUp(subargs)
	case "down":
		runMigrateDown(subargs)
	case "status":
		runMigrateStatus(subargs)
	case "version":
		runMigrateVersion(subargs)
	case "goto":
		runMigrateGoto(subargs)
	case "force":
		runMigrateForce(subargs)
	case "steps":
		runMigrateSteps(subargs)
	case "reset":
		runMigrateReset(subargs)
	case "help", "-h", "--help":
		printMigrateUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown migrate subcommand: %s\n", subcommand)
		printMigrateUsage()
		os.Exit(1)
	}
}

// printMigrateUsage prints the usage information for migrate command
func printMigrateUsage() {
	fmt.Println(`Database Migration Commands

Usage:
  debateflow migrate <subcommand> [options]

Subcommands:
  up        Apply all pending migrations
  down      Rollback the last migration (--all rolls back everything)
  status    Show migration status
  version   Show current migration version
  goto      Migrate to a specific version
  force     Force set migration version (use with caution)
  steps     Apply n migrations (negative rolls back)
  reset     Rollback all migrations
  help      Show this help message

Options:
  --config <path>     Path to configuration file (YAML)
  --db-type <type>    Database type: postgres, sqlite (default: from config)
  --db-url <url>      Database connection URL (default: from config)

Examples:
  debateflow migrate up
  debateflow migrate up --config /etc/debateflow/config.yaml
  debateflow migrate down
  debateflow migrate down --all
  debateflow migrate status
  debateflow migrate goto 2
  debateflow migrate steps -1
  debateflow migrate force 0`)
}

// migrateFlags 每个子命令共用的连接参数
type migrateFlags struct {
	configPath *string
	dbType     *string
	dbURL      *string
}

func registerMigrateFlags(fs *flag.FlagSet) migrateFlags {
	return migrateFlags{
		configPath: fs.String("config", "", "Path to config file"),
		dbType:     fs.String("db-type", "", "Database type (postgres, sqlite)"),
		dbURL:      fs.String("db-url", "", "Database connection URL"),
	}
}

// newMigrator 按命令行参数创建迁移器:显式连接串优先,
// 否则从配置文件的缓存存储节取方言与 DSN。
func (f migrateFlags) newMigrator() (*migration.DefaultMigrator, error) {
	if *f.dbType != "" && *f.dbURL != "" {
		return migration.NewMigratorFromURL(*f.dbType, *f.dbURL)
	}

	loader := config.NewLoader()
	if *f.configPath != "" {
		loader = loader.WithConfigPath(*f.configPath)
	}

	cfg, err := loader.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if *f.dbType != "" {
		cfg.Cache.Store.Driver = *f.dbType
	}

	return migration.NewMigratorFromConfig(cfg)
}

// runMigrateCommand 解析公共参数、建迁移器并执行给定动作
func runMigrateCommand(name string, args []string, action func(ctx context.Context, cli *migration.CLI) error) {
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	flags := registerMigrateFlags(fs)
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to parse flags: %v\n", err)
		os.Exit(1)
	}

	migrator, err := flags.newMigrator()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create migrator: %v\n", err)
		os.Exit(1)
	}
	defer migrator.Close()

	cli := migration.NewCLI(migrator, os.Stdout)
	if err := action(context.Background(), cli); err != nil {
		fmt.Fprintf(os.Stderr, "Migration failed: %v\n", err)
		os.Exit(1)
	}
}

// runMigrateUp applies all pending migrations
func runMigrateUp(args []string) {
	runMigrateCommand("migrate up", args, func(ctx context.Context, cli *migration.CLI) error {
		return cli.RunUp(ctx)
	})
}

// runMigrateDown rolls back the last migration, or everything with --all
func runMigrateDown(args []string) {
	fs := flag.NewFlagSet("migrate down", flag.ExitOnError)
	all := fs.Bool("all", false, "Rollback all migrations")
	flags := registerMigrateFlags(fs)
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to parse flags: %v\n", err)
		os.Exit(1)
	}

	migrator, err := flags.newMigrator()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create migrator: %v\n", err)
		os.Exit(1)
	}
	defer migrator.Close()

	cli := migration.NewCLI(migrator, os.Stdout)
	if err := cli.RunDown(context.Background(), *all); err != nil {
		fmt.Fprintf(os.Stderr, "Migration rollback failed: %v\n", err)
		os.Exit(1)
	}
}

// runMigrateStatus shows the status of all migrations
func runMigrateStatus(args []string) {
	runMigrateCommand("migrate status", args, func(ctx context.Context, cli *migration.CLI) error {
		return cli.RunStatus(ctx)
	})
}

// runMigrateVersion shows the current migration version
func runMigrateVersion(args []string) {
	runMigrateCommand("migrate version", args, func(ctx context.Context, cli *migration.CLI) error {
		return cli.RunVersion(ctx)
	})
}

// runMigrateGoto migrates to a specific version
func runMigrateGoto(args []string) {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "Usage: debateflow migrate goto <version>")
		os.Exit(1)
	}

	version, err := strconv.ParseUint(args[0], 10, 32)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid version number: %s\n", args[0])
		os.Exit(1)
	}

	runMigrateCommand("migrate goto", args[1:], func(ctx context.Context, cli *migration.CLI) error {
		return cli.RunGoto(ctx, uint(version))
	})
}

// runMigrateForce forces the migration version without running migrations
func runMigrateForce(args []string) {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "Usage: debateflow migrate force <version>")
		os.Exit(1)
	}

	version, err := strconv.ParseInt(args[0], 10, 32)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid version number: %s\n", args[0])
		os.Exit(1)
	}

	runMigrateCommand("migrate force", args[1:], func(ctx context.Context, cli *migration.CLI) error {
		return cli.RunForce(ctx, int(version))
	})
}

// runMigrateSteps applies n migrations; negative n rolls back
func runMigrateSteps(args []string) {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "Usage: debateflow migrate steps <n>")
		os.Exit(1)
	}

	n, err := strconv.Atoi(args[0])
	if err != nil || n == 0 {
		fmt.Fprintf(os.Stderr, "Invalid step count: %s\n", args[0])
		os.Exit(1)
	}

	runMigrateCommand("migrate steps", args[1:], func(ctx context.Context, cli *migration.CLI) error {
		return cli.RunSteps(ctx, n)
	})
}

// runMigrateReset rolls back all migrations
func runMigrateReset(args []string) {
	runMigrateCommand("migrate reset", args, func(ctx context.Context, cli *migration.CLI) error {
		return cli.RunDown(ctx, true)
	})
}
