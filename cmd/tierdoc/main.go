package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/xxxsen/common/logger"
	"github.com/xxxsen/common/logutil"
	"github.com/xxxsen/common/webapi"
	"go.uber.org/zap"

	"github.com/xxxsen/tierdoc/internal/config"
	"github.com/xxxsen/tierdoc/internal/handler"
	"github.com/xxxsen/tierdoc/internal/job"
	"github.com/xxxsen/tierdoc/internal/middleware"
	"github.com/xxxsen/tierdoc/internal/pkg/jwt"
	"github.com/xxxsen/tierdoc/internal/schedule"
	"github.com/xxxsen/tierdoc/internal/service"
)

func main() {
	var configPath string

	rootCmd := &cobra.Command{
		Use:           "tierdoc",
		Short:         "two-level summary and chunk retrieval",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config.json or config.toml")

	rootCmd.AddCommand(
		resetCmd(&configPath),
		ingestCmd(&configPath),
		findCmd(&configPath),
		serveCmd(&configPath),
		tokenCmd(&configPath),
	)
	if err := rootCmd.Execute(); err != nil {
		logutil.GetLogger(context.Background()).Fatal("command failed", zap.Error(err))
	}
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return nil, fmt.Errorf("--config is required")
	}
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	logger.Init(
		cfg.LogConfig.File,
		cfg.LogConfig.Level,
		int(cfg.LogConfig.FileCount),
		int(cfg.LogConfig.FileSize),
		int(cfg.LogConfig.KeepDays),
		cfg.LogConfig.Console,
	)
	logutil.GetLogger(context.Background()).Info("config loaded", zap.String("config", path))
	return cfg, nil
}

func withRuntime(configPath string, fn func(ctx context.Context, cfg *config.Config, rt *runtime) error) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	rt, err := buildRuntime(cfg)
	if err != nil {
		return err
	}
	defer rt.Close()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return fn(ctx, cfg, rt)
}

func resetCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "drop and recreate the summary and chunk collections",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(*configPath, func(ctx context.Context, _ *config.Config, rt *runtime) error {
				return rt.app.Reset(ctx)
			})
		},
	}
}

func ingestCmd(configPath *string) *cobra.Command {
	var reset bool
	cmd := &cobra.Command{
		Use:   "ingest [dir]",
		Short: "ingest every supported document under dir (or the configured source)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			root := ""
			if len(args) == 1 {
				root = args[0]
			}
			return withRuntime(*configPath, func(ctx context.Context, _ *config.Config, rt *runtime) error {
				var (
					stats *service.IngestStats
					err   error
				)
				if reset {
					stats, err = rt.app.Reindex(ctx, root)
				} else {
					stats, err = rt.app.Ingest(ctx, root)
				}
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "documents=%d blocks=%d chunks=%d duration=%s\n",
					stats.Documents, stats.Blocks, stats.Chunks, stats.Duration.Round(time.Millisecond))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&reset, "reset", false, "reset collections before ingesting")
	return cmd
}

func findCmd(configPath *string) *cobra.Command {
	var req service.FindRequest
	cmd := &cobra.Command{
		Use:   "find <query>",
		Short: "find the chunks most relevant to query",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req.Query = args[0]
			return withRuntime(*configPath, func(ctx context.Context, _ *config.Config, rt *runtime) error {
				res, err := rt.app.Find(ctx, req)
				if err != nil {
					return err
				}
				printFindResult(cmd, res)
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&req.TopSummary, "top-summary", 0, "summaries kept by the first stage (default from config)")
	cmd.Flags().IntVar(&req.TopChunks, "top-chunks", 0, "chunks returned (default from config)")
	cmd.Flags().BoolVar(&req.Debug, "debug", false, "print both search stages")
	return cmd
}

func printFindResult(cmd *cobra.Command, res *service.FindResult) {
	out := cmd.OutOrStdout()
	if res.Trace != nil {
		fmt.Fprintln(out, "parents:")
		for _, p := range res.Trace.Parents {
			fmt.Fprintf(out, "- id:%d\n  score:%.4f\n", p.ID, p.Score)
		}
		fmt.Fprintln(out, "\nchunks:")
		for _, c := range res.Trace.Chunks {
			fmt.Fprintf(out, "  - id=%d\n    parent_id=%d\n    score=%.4f\n    text=\n\"\"\"\n%s\n\"\"\"\n\n", c.ID, c.ParentID, c.Score, c.Text)
		}
		return
	}
	for i, text := range res.Chunks {
		fmt.Fprintf(out, "[%d] %s\n\n", i+1, text)
	}
}

func tokenCmd(configPath *string) *cobra.Command {
	var (
		subject string
		ttl     time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "mint an admin token for the reset and ingest endpoints",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			token, err := jwt.GenerateToken(subject, jwt.RoleAdmin, []byte(cfg.Server.JWTSecret), ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&subject, "subject", "admin", "token subject")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime, 0 for none")
	return cmd
}

func serveCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "serve find and admin endpoints over http",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(*configPath, runServer)
		},
	}
}

func runServer(ctx context.Context, cfg *config.Config, rt *runtime) error {
	logger := logutil.GetLogger(ctx)
	addr := fmt.Sprintf("0.0.0.0:%d", cfg.Server.Port)
	if cfg.Server.JWTSecret == "" {
		logger.Warn("server.jwt_secret is empty, admin endpoints will reject every request")
	}

	scheduler := schedule.NewCronScheduler()
	if cfg.Schedule.ReingestCron != "" {
		if err := scheduler.AddJob(job.NewReindexJob(rt.app, cfg.Source.Dir), cfg.Schedule.ReingestCron); err != nil {
			return fmt.Errorf("schedule reindex: %w", err)
		}
	}
	if cfg.Schedule.CacheCleanupCron != "" {
		if err := scheduler.AddJob(job.NewEmbeddingCacheCleanupJob(rt.cacheRepo, cfg.Schedule.CacheMaxAgeDays), cfg.Schedule.CacheCleanupCron); err != nil {
			return fmt.Errorf("schedule cache cleanup: %w", err)
		}
	}
	scheduler.Start(ctx)
	defer scheduler.Stop()

	deps := handler.RouterDeps{
		Find:           handler.NewFindHandler(rt.app),
		Admin:          handler.NewAdminHandler(rt.app),
		JWTSecret:      []byte(cfg.Server.JWTSecret),
		AdminRateLimit: time.Duration(cfg.Server.AdminRateLimitSeconds) * time.Second,
	}
	engine, err := webapi.NewEngine(
		"/api/v1",
		addr,
		webapi.WithRegister(func(group *gin.RouterGroup) {
			handler.RegisterRoutes(group, deps)
		}),
		webapi.WithExtraMiddlewares(
			middleware.CORS(cfg.Server.CORSOrigins),
			gzip.Gzip(gzip.DefaultCompression),
		),
	)
	if err != nil {
		return fmt.Errorf("init web engine: %w", err)
	}
	logger.Info("http server listening", zap.String("addr", addr))

	go func() {
		if err := engine.Run(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("server stopping...")
	return nil
}
