// Package app assembles the himera-swap command line: serve, migrate and wallet administration.
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Proton-105/himera-swap/pkg/config"
	"github.com/Proton-105/himera-swap/pkg/logger"
)

// runtime carries what PersistentPreRunE resolved for the subcommands.
type runtime struct {
	configDir string
	cfg       *config.Config
	viper     *viper.Viper
	log       *slog.Logger
	level     *slog.LevelVar
	sentry    bool
}

// Run executes the command line and returns the process exit code.
func Run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	rt := &runtime{}
	root := rt.newRootCommand()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.SilenceUsage = true
	root.SilenceErrors = true

	err := root.ExecuteContext(ctx)
	rt.close()
	if err != nil {
		fmt.Fprintln(stderr, "error:", err)
		return 1
	}
	return 0
}

func (rt *runtime) newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "himera-swap",
		Short: "Telegram trading bot for market, limit and DCA swaps",
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return rt.load(cmd)
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&rt.configDir, "config-dir", "./configs", "directory holding <APP_ENV>.yaml")
	flags.Duration("limit-interval", 0, "limit order scan interval (overrides orders.limit_interval)")
	flags.Duration("dca-interval", 0, "DCA order scan interval (overrides orders.dca_interval)")
	flags.String("log-level", "", "log level: debug, info, warn or error")

	cmd.AddCommand(
		rt.newServeCommand(),
		rt.newMigrateCommand(),
		rt.newWalletCommand(),
	)
	return cmd
}

func (rt *runtime) load(cmd *cobra.Command) error {
	cfg, v, err := config.Load(rt.configDir, cmd.Flags())
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}
	rt.cfg, rt.viper = cfg, v

	if cfg.Sentry.Enabled {
		env := cfg.Sentry.Environment
		if env == "" {
			env = cfg.AppEnv
		}
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:         cfg.Sentry.DSN,
			Environment: env,
			SampleRate:  cfg.Sentry.SampleRate,
		}); err != nil {
			return fmt.Errorf("init sentry: %w", err)
		}
		rt.sentry = true
	}

	rt.log, rt.level = logger.Build(*cfg)
	slog.SetDefault(rt.log)
	return nil
}

func (rt *runtime) close() {
	if rt.sentry {
		sentry.Flush(2 * time.Second)
	}
}

// openDB connects to PostgreSQL with the configured pool limits.
func openDB(ctx context.Context, cfg config.DatabaseConfig) (*sqlx.DB, error) {
	db, err := sqlx.ConnectContext(ctx, "postgres", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if cfg.MaxConns > 0 {
		db.SetMaxOpenConns(cfg.MaxConns)
	}
	if cfg.MaxIdle > 0 {
		db.SetMaxIdleConns(cfg.MaxIdle)
	}
	return db, nil
}

// Main is the entry point used by cmd/bot.
func Main() {
	os.Exit(Run(context.Background(), os.Args[1:], os.Stdout, os.Stderr))
}
