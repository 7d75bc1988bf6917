package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/rushteam/blogrec/config"
	"github.com/rushteam/blogrec/core"
	"github.com/rushteam/blogrec/engine"
	"github.com/rushteam/blogrec/metrics"
	"github.com/rushteam/blogrec/pkg/logging"
	"github.com/rushteam/blogrec/store"
)

var rootCmd = &cobra.Command{
	Use:   "blogrec",
	Short: "Hybrid recommendations for blog posts",
	Long: `Blogrec keeps posts, ratings and reader preferences in SQLite and
recommends posts by fusing content similarity, collaborative filtering
and preference matching, back-filled from the popularity ranking.

Workflow: import → rate → recommend`,
	SilenceUsage: true,
}

var (
	configPath string
	logLevel   string
	dbPath     string
)

func init() {
	rootCmd.Version = "0.1.0"
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file (default: blogrec.yaml or $BLOGREC_CONFIG)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Override logging.level")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "Override store.sqlite_path")
}

func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// app 是一次命令执行用到的全部依赖。
type app struct {
	cfg    *config.Config
	log    zerolog.Logger
	db     *store.SQLStore
	kv     core.KeyValueStore
	engine *engine.Engine
}

// openApp 加载配置、打开存储并组装引擎。写入 SQLite 后引擎快照自动失效。
func openApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	if dbPath != "" {
		cfg.Store.SQLitePath = dbPath
	}
	log := logging.New(cfg.Logging, os.Stderr)

	db, err := store.OpenSQL(ctx, cfg.Store.SQLitePath)
	if err != nil {
		return nil, err
	}

	var kv core.KeyValueStore
	if cfg.Store.RedisAddr != "" {
		rs, err := store.NewRedisStore(ctx, cfg.Store.RedisAddr, cfg.Store.RedisDB)
		if err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		kv = rs
	} else {
		kv = store.NewMemoryStore()
	}

	if err := metrics.Register(nil); err != nil {
		log.Warn().Err(err).Msg("metrics registration failed")
	}

	opts, err := cfg.EngineOptions(log, kv)
	if err != nil {
		_ = kv.Close()
		_ = db.Close()
		return nil, err
	}
	eng := engine.New(db, opts...)
	db.Subscribe(func() { eng.Invalidate("store write") })

	return &app{cfg: cfg, log: log, db: db, kv: kv, engine: eng}, nil
}

func (a *app) Close() error {
	return errors.Join(a.kv.Close(), a.db.Close())
}

// withApp 包装 RunE，负责打开和关闭 app。
func withApp(run func(cmd *cobra.Command, a *app, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer func() {
			if err := a.Close(); err != nil {
				a.log.Warn().Err(err).Msg("close")
			}
		}()
		return run(cmd, a, args)
	}
}
