package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/sports-academy-api/internal/handler"
	"github.com/noah-isme/sports-academy-api/internal/repository"
	"github.com/noah-isme/sports-academy-api/internal/service"
	"github.com/noah-isme/sports-academy-api/pkg/cache"
	"github.com/noah-isme/sports-academy-api/pkg/config"
	"github.com/noah-isme/sports-academy-api/pkg/database"
	"github.com/noah-isme/sports-academy-api/pkg/jobs"
	"github.com/noah-isme/sports-academy-api/pkg/logger"
	"github.com/noah-isme/sports-academy-api/pkg/whatsapp"
)

// @title Sports Academy API
// @version 1.0.0
// @description Campaign automation and gamification for sports academies
// @BasePath /api/v1
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	if cfg.Database.AutoMigrate {
		if err := database.Migrate(cfg.Database, logr); err != nil {
			logr.Sugar().Fatalw("migration failed", "error", err)
		}
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, continuing without shared cache", "error", err)
		redisClient = nil
	}
	cacheRepo := repository.NewCacheRepository(redisClient, logr)
	defer cacheRepo.Close() //nolint:errcheck

	metrics := service.NewMetricsService()
	cacheSvc := service.NewCacheService(cacheRepo, metrics, cfg.Gamification.LeaderboardTTL, logr, cacheRepo.Available())

	students := repository.NewStudentRepository(db)
	attendance := repository.NewAttendanceRepository(db)
	payments := repository.NewPaymentRepository(db)
	badges := repository.NewBadgeRepository(db)
	gamificationRepo := repository.NewGamificationRepository(db)
	campaigns := repository.NewCampaignRepository(db)
	messages := repository.NewCampaignMessageRepository(db)

	gamification := service.NewGamificationService(
		badges,
		gamificationRepo,
		service.NewBadgeEvaluator(students, attendance, payments),
		service.NewPointsService(logr),
		cacheSvc,
		metrics,
		service.GamificationConfig{LeaderboardTTL: cfg.Gamification.LeaderboardTTL, LeaderboardLimit: cfg.Gamification.LeaderboardLimit},
		logr,
	)

	notifier, err := newNotifier(cfg.Notifier, logr)
	if err != nil {
		logr.Sugar().Fatalw("failed to configure notifier", "driver", cfg.Notifier.Driver, "error", err)
	}

	queue := jobs.NewQueue("campaigns", jobs.QueueConfig{
		Workers:    cfg.Campaigns.Workers,
		MaxRetries: cfg.Campaigns.WorkerRetries,
		Logger:     logr,
	})
	rules := service.NewCampaignRules(students, payments, attendance, service.RuleIntervals{
		FeeReminder:        cfg.Campaigns.FeeReminderInterval,
		WelcomeMessage:     cfg.Campaigns.WelcomeInterval,
		AttendanceFollowup: cfg.Campaigns.AttendanceFollowupInterval,
		BirthdayWishes:     cfg.Campaigns.BirthdayInterval,
	}, logr)
	automation := service.NewCampaignAutomation(
		campaigns,
		rules,
		service.NewCampaignDispatcher(messages, campaigns, notifier, metrics, logr),
		service.NewDedupeGuard(cacheRepo, messages, cfg.Campaigns.DedupeWindow, cfg.Campaigns.DedupeEnabled, logr),
		queue,
		metrics,
		service.AutomationConfig{Enabled: cfg.Campaigns.AutomationEnabled, RunOnInstall: cfg.Campaigns.RunOnInstall},
		logr,
	)
	campaignSvc := service.NewCampaignService(campaigns, messages, automation, nil, logr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	queue.Start(ctx)

	if cfg.Gamification.SeedOnStart {
		created, err := gamification.InitializeDefaultBadges(ctx)
		if err != nil {
			logr.Sugar().Errorw("badge seeding failed", "error", err)
		} else {
			logr.Sugar().Infow("default badges ensured", "created", created)
		}
	}
	if err := automation.InitializeAutomation(ctx); err != nil {
		logr.Sugar().Errorw("campaign automation failed to start", "error", err)
	}

	dependencies := map[string]handler.Pinger{"postgres": db}
	if cacheRepo.Available() {
		dependencies["redis"] = handler.PingFunc(cacheRepo.Ping)
	}
	router := newRouter(cfg, logr, routeDeps{
		metrics:      metrics,
		tokens:       service.NewTokenService(cfg.JWT.Secret, cfg.JWT.Issuer),
		campaigns:    handler.NewCampaignHandler(campaignSvc, automation),
		gamification: handler.NewGamificationHandler(gamification),
		health:       handler.NewMetricsHandler(metrics, dependencies),
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Sugar().Infow("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("http shutdown incomplete", "error", err)
	}
	if err := automation.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("campaign automation shutdown incomplete", "error", err)
	}
	queue.Stop()
}

func newNotifier(cfg config.NotifierConfig, logr *zap.Logger) (whatsapp.Sender, error) {
	switch cfg.Driver {
	case config.NotifierWhatsApp:
		client, err := whatsapp.NewClient(cfg, logr)
		if err != nil {
			return nil, err
		}
		return client, nil
	case config.NotifierConsole, "":
		return whatsapp.NewConsoleSender(logr), nil
	default:
		return nil, fmt.Errorf("unknown notifier driver %q", cfg.Driver)
	}
}
