package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"reflect"
	"strings"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/noah-isme/gema-lms-gateway/internal/config"
	"github.com/noah-isme/gema-lms-gateway/internal/database"
	"github.com/noah-isme/gema-lms-gateway/internal/handler"
	"github.com/noah-isme/gema-lms-gateway/internal/lmsclient"
	"github.com/noah-isme/gema-lms-gateway/internal/middleware"
	"github.com/noah-isme/gema-lms-gateway/internal/observability"
	"github.com/noah-isme/gema-lms-gateway/internal/repository"
	"github.com/noah-isme/gema-lms-gateway/internal/router"
	"github.com/noah-isme/gema-lms-gateway/internal/service"
	"github.com/noah-isme/gema-lms-gateway/internal/session"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger := zerolog.New(os.Stdout).With().Timestamp().Str("service", cfg.AppName).Logger()
	observability.RegisterMetrics()

	db, err := database.Open(cfg.DatabaseDriver, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		log.Fatalf("failed to migrate database: %v", err)
	}

	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		redisClient, err = database.ConnectRedis(context.Background(), cfg.RedisURL)
		if err != nil {
			log.Fatalf("failed to connect to redis: %v", err)
		}
		defer redisClient.Close()
	} else {
		logger.Warn().Msg("redis not configured; sessions and admin stats are not mirrored")
	}

	natsConn, err := database.ConnectNATS(cfg.NATSURL, cfg.AppName)
	if err != nil {
		log.Fatalf("failed to connect to nats: %v", err)
	}
	if natsConn != nil {
		defer natsConn.Drain()
	}

	validate := validator.New(validator.WithRequiredStructEnabled())
	validate.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	lms := lmsclient.New(lmsclient.Config{
		BaseURL: cfg.UpstreamAPIURL(),
		Timeout: cfg.UpstreamTimeout,
	}, logger)
	sessions := session.NewStore(lms, redisClient, cfg.SessionTTL, logger)
	lms.OnUnauthorized(sessions.Teardown)

	notifier := service.NewNotifier(natsConn, cfg.EventSubject, logger)

	courseService := service.NewCourseService(lms, validate, notifier, logger)
	categoryService := service.NewCategoryService(lms, validate, notifier, logger)
	contentService := service.NewContentService(lms, validate, notifier, cfg.UploadMaxMB, logger)
	assessmentService := service.NewAssessmentService(lms, validate, notifier, logger)
	enrollmentService := service.NewEnrollmentService(lms, notifier, logger)
	certificateService := service.NewCertificateService(lms, notifier, logger)
	adminService := service.NewAdminService(lms, redisClient, cfg.StatsCacheTTL, notifier, logger)
	userService := service.NewUserService(lms, validate, notifier, logger)
	learnerService := service.NewLearnerService(courseService, contentService, assessmentService, enrollmentService, notifier, logger)
	attemptService := service.NewAttemptService(repository.NewAttemptSessionRepository(db), assessmentService, contentService, enrollmentService, certificateService, notifier, logger)

	resumeCtx, cancelResume := context.WithTimeout(context.Background(), 30*time.Second)
	report, err := attemptService.Resume(resumeCtx)
	cancelResume()
	if err != nil {
		logger.Error().Err(err).Msg("failed to resume open attempts")
	} else {
		logger.Info().Int("rearmed", report.Rearmed).Int("auto_submitted", report.AutoSubmitted).Int("failed", report.Failed).Msg("open attempts resumed")
	}

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
		BodyLimit:    (cfg.UploadMaxMB + 1) * 1024 * 1024,
	})

	middleware.Register(app, middleware.Config{Logger: &logger, AllowedOrigins: cfg.AllowedOrigins})
	router.Register(app, cfg, router.Dependencies{
		Sessions:               sessions,
		AuthHandler:            handler.NewAuthHandler(sessions, lms, validate, logger),
		LearnerHandler:         handler.NewLearnerHandler(learnerService, courseService, categoryService, certificateService, validate, logger),
		AttemptHandler:         handler.NewAttemptHandler(attemptService, validate, logger),
		AdminDashboardHandler:  handler.NewAdminDashboardHandler(adminService, logger),
		AdminCourseHandler:     handler.NewAdminCourseHandler(courseService, categoryService, validate, logger),
		AdminContentHandler:    handler.NewAdminContentHandler(contentService, logger),
		AdminAssessmentHandler: handler.NewAdminAssessmentHandler(assessmentService, logger),
		AdminUserHandler:       handler.NewAdminUserHandler(userService, logger),
		HealthChecks:           healthChecks(db, redisClient, natsConn),
	})

	go func() {
		if err := app.Listen(cfg.HTTPAddress()); err != nil {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	waitForShutdown(app, attemptService)
}

func healthChecks(db *gorm.DB, redisClient *redis.Client, natsConn *nats.Conn) []handler.DependencyCheck {
	checks := []handler.DependencyCheck{{
		Name: "database",
		Ping: func(ctx context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		},
	}}
	if redisClient != nil {
		checks = append(checks, handler.DependencyCheck{
			Name: "redis",
			Ping: func(ctx context.Context) error { return redisClient.Ping(ctx).Err() },
		})
	}
	if natsConn != nil {
		checks = append(checks, handler.DependencyCheck{
			Name: "nats",
			Ping: func(context.Context) error {
				if !natsConn.IsConnected() {
					return errors.New("nats disconnected")
				}
				return nil
			},
		})
	}
	return checks
}

func waitForShutdown(app *fiber.App, attempts service.AttemptService) {
	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-shutdownCtx.Done()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(ctx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}
	attempts.Shutdown()

	log.Println("server stopped")
}
