package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"github.com/xxxsen/common/logger"
	"github.com/xxxsen/common/logutil"
	"github.com/xxxsen/common/webapi"
	"go.uber.org/zap"

	"github.com/mlevan/hearth/internal/ai"
	"github.com/mlevan/hearth/internal/config"
	"github.com/mlevan/hearth/internal/db"
	"github.com/mlevan/hearth/internal/filestore"
	"github.com/mlevan/hearth/internal/handler"
	"github.com/mlevan/hearth/internal/job"
	"github.com/mlevan/hearth/internal/middleware"
	"github.com/mlevan/hearth/internal/repo"
	"github.com/mlevan/hearth/internal/schedule"
	"github.com/mlevan/hearth/internal/service"
)

const tokenSweepSpec = "0 * * * *"

func main() {
	var configPath string

	rootCmd := &cobra.Command{
		Use:   "hearth",
		Short: "hearth backend server",
	}

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "run hearth server",
		RunE: func(cmd *cobra.Command, args []string) error {
			if configPath == "" {
				return fmt.Errorf("--config is required")
			}
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			logger.Init(
				cfg.LogConfig.File,
				cfg.LogConfig.Level,
				int(cfg.LogConfig.FileCount),
				int(cfg.LogConfig.FileSize),
				int(cfg.LogConfig.KeepDays),
				cfg.LogConfig.Console,
			)
			logutil.GetLogger(context.Background()).Info("config loaded", zap.String("config", configPath))

			conn, err := db.Open(cfg.Database)
			if err != nil {
				return fmt.Errorf("open db: %w", err)
			}
			if err := db.ApplyMigrations(conn); err != nil {
				return fmt.Errorf("migrations: %w", err)
			}
			return runServer(cfg, conn)
		},
	}

	runCmd.Flags().StringVar(&configPath, "config", "", "path to config.json")
	rootCmd.AddCommand(runCmd)

	if err := rootCmd.Execute(); err != nil {
		logutil.GetLogger(context.Background()).Fatal("startup error", zap.Error(err))
	}
}

func runServer(cfg *config.Config, conn *sql.DB) error {
	logutil.GetLogger(context.Background()).Info(
		"starting server",
		zap.Int("port", cfg.Port),
		zap.String("base_url", cfg.BaseURL),
		zap.String("file_store", cfg.FileStore.Type),
	)

	userRepo := repo.NewUserRepo(conn)
	membershipRepo := repo.NewMembershipRepo(conn)
	shareRepo := repo.NewShareRepo(conn)
	postRepo := repo.NewPostRepo(conn)
	conversationRepo := repo.NewConversationRepo(conn)
	auditRepo := repo.NewAuditLogRepo(conn)

	authService := service.NewAuthService(userRepo, []byte(cfg.JWTSecret), time.Hour*time.Duration(cfg.JWTTTL), cfg.Props.EnableUserRegister)
	auditRecorder := service.NewAuditRecorder(auditRepo)
	grantService := service.NewGrantService(membershipRepo, shareRepo, postRepo, auditRecorder, service.GrantConfig{
		BaseURL:         cfg.BaseURL,
		HashShareTokens: cfg.Props.HashShareTokens,
	})
	postService := service.NewPostService(postRepo, membershipRepo)

	aiProvider, err := ai.NewProvider(cfg.AI.Provider, cfg.AI.Data)
	if err != nil {
		return fmt.Errorf("init ai provider: %w", err)
	}
	generator := ai.NewGenerator(aiProvider, cfg.AI.Model)
	chatService := service.NewChatService(conversationRepo, postService, generator, time.Duration(cfg.AI.Timeout)*time.Second)

	store, err := filestore.New(cfg.FileStore)
	if err != nil {
		return fmt.Errorf("init file store: %w", err)
	}
	mailSender := service.NewEmailSender(cfg.Mail)

	deps := handler.RouterDeps{
		Auth:        handler.NewAuthHandler(authService),
		Posts:       handler.NewPostHandler(postService),
		Memberships: handler.NewMembershipHandler(grantService, mailSender),
		Shares:      handler.NewShareHandler(grantService, postService),
		Chat:        handler.NewChatHandler(chatService),
		Files:       handler.NewFileHandler(store, cfg.FileStore),
		Audit:       handler.NewAuditHandler(auditRepo),
		JWTSecret:   []byte(cfg.JWTSecret),
	}

	engine, err := webapi.NewEngine(
		"/api/v1",
		fmt.Sprintf("0.0.0.0:%d", cfg.Port),
		webapi.WithRegister(func(group *gin.RouterGroup) {
			handler.RegisterRoutes(group, deps)
		}),
		webapi.WithExtraMiddlewares(
			middleware.CORS(cfg.Props.CORSOrigins),
			gzip.Gzip(gzip.DefaultCompression),
		),
	)
	if err != nil {
		return fmt.Errorf("init web engine: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	scheduler := schedule.NewCronScheduler()
	if err := scheduler.AddJob(job.NewTokenSweepJob(membershipRepo), tokenSweepSpec); err != nil {
		return fmt.Errorf("schedule token sweep: %w", err)
	}
	scheduler.Start(ctx)
	defer scheduler.Stop()

	logutil.GetLogger(context.Background()).Info("http server listening", zap.String("addr", fmt.Sprintf("0.0.0.0:%d", cfg.Port)))
	go func() {
		if err := engine.Run(); err != nil && err != http.ErrServerClosed {
			logutil.GetLogger(context.Background()).Error("server error", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logutil.GetLogger(context.Background()).Info("server stopping...")
	return nil
}
