package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/weddinvite/internal/config"
	"github.com/weddinvite/internal/db"
	"github.com/weddinvite/internal/handler"
	"github.com/weddinvite/internal/logging"
	"github.com/weddinvite/internal/router"
	"github.com/weddinvite/internal/seed"
	"github.com/weddinvite/internal/storage"
)

func main() {
	root := &cobra.Command{
		Use:           "weddinvite",
		Short:         "婚礼请柬服务",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "启动 HTTP 服务",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context())
		},
	})

	root.AddCommand(&cobra.Command{
		Use:   "migrate",
		Short: "执行数据库迁移",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := bootstrap()
			if err != nil {
				return err
			}
			logger.Info().Str("database", cfg.DatabasePath).Msg("database migrated")
			return nil
		},
	})

	var withDemo bool
	seedCmd := &cobra.Command{
		Use:   "seed",
		Short: "写入内置模板，可选创建演示账号与请柬",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, logger, err := bootstrap()
			if err != nil {
				return err
			}
			created, err := seed.Templates(db.DB)
			if err != nil {
				return err
			}
			logger.Info().Int("templates", created).Msg("templates seeded")

			if !withDemo {
				return nil
			}
			slug, err := seed.Demo(db.DB, time.Now())
			if err != nil {
				return err
			}
			if slug == "" {
				logger.Info().Str("email", seed.DemoEmail).Msg("demo account already exists")
				return nil
			}
			logger.Info().Str("email", seed.DemoEmail).Str("slug", slug).Msg("demo invitation published")
			return nil
		},
	}
	seedCmd.Flags().BoolVar(&withDemo, "demo", false, "同时创建演示账号 "+seed.DemoEmail)
	root.AddCommand(seedCmd)

	var adminEmail, adminPassword string
	createAdmin := &cobra.Command{
		Use:   "create-admin",
		Short: "创建管理员账号，已存在的账号会被提升为管理员",
		RunE: func(cmd *cobra.Command, args []string) error {
			if adminEmail == "" || len(adminPassword) < 8 {
				return errors.New("--email is required and --password must have at least 8 characters")
			}
			_, logger, err := bootstrap()
			if err != nil {
				return err
			}
			if err := db.EnsureAdmin(db.DB, adminEmail, adminPassword); err != nil {
				return fmt.Errorf("create admin: %w", err)
			}
			logger.Info().Str("email", adminEmail).Msg("admin account ready")
			return nil
		},
	}
	createAdmin.Flags().StringVar(&adminEmail, "email", "", "管理员邮箱")
	createAdmin.Flags().StringVar(&adminPassword, "password", "", "管理员密码")
	root.AddCommand(createAdmin)

	// 不带子命令时直接启动服务
	root.RunE = func(cmd *cobra.Command, args []string) error {
		return serve(cmd.Context())
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// bootstrap 读取配置、初始化日志并打开数据库（含自动迁移）。
func bootstrap() (config.AppConfig, zerolog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return cfg, zerolog.Nop(), fmt.Errorf("load config: %w", err)
	}
	logger := logging.New(cfg.LogLevel, cfg.LogPretty, os.Stdout)

	if err := db.Init(cfg.DatabasePath); err != nil {
		return cfg, logger, fmt.Errorf("failed to initialize database: %w", err)
	}
	return cfg, logger, nil
}

func newStorage(ctx context.Context, cfg config.AppConfig) (storage.Storage, string, error) {
	if cfg.StorageDriver == "s3" {
		store, err := storage.NewS3Storage(ctx, storage.S3Config{
			Bucket:          cfg.S3Bucket,
			Region:          cfg.S3Region,
			Endpoint:        cfg.S3Endpoint,
			AccessKeyID:     cfg.S3AccessKeyID,
			SecretAccessKey: cfg.S3SecretAccessKey,
			PublicURL:       cfg.S3PublicURL,
		})
		return store, "", err
	}

	store, err := storage.NewLocalStorage(cfg.UploadDir, cfg.UploadURLPath)
	if err != nil {
		return nil, "", err
	}
	return store, store.Root(), nil
}

func serve(ctx context.Context) error {
	cfg, logger, err := bootstrap()
	if err != nil {
		return err
	}
	gin.SetMode(cfg.GinMode)

	if err := db.EnsureAdmin(db.DB, cfg.AdminEmail, cfg.AdminPassword); err != nil {
		return fmt.Errorf("ensure admin: %w", err)
	}

	store, uploadDir, err := newStorage(ctx, cfg)
	if err != nil {
		return fmt.Errorf("init storage: %w", err)
	}

	api := handler.NewAPI(db.DB, handler.Options{
		Storage:        store,
		MaxUploadBytes: cfg.MaxUploadBytes(),
		SiteBaseURL:    cfg.SiteBaseURL,
	})
	r := router.SetupRouter(api, router.Options{
		SessionSecret:      cfg.SessionSecret,
		UploadDir:          uploadDir,
		UploadURLPath:      cfg.UploadURLPath,
		MaxMultipartMemory: cfg.MaxUploadBytes(),
		Logger:             logger,
	})

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", cfg.ListenAddr).Str("storage", cfg.StorageDriver).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("failed to run server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
