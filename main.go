package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"foundermatch/config"
	"foundermatch/middleware"
	"foundermatch/routes"
	"foundermatch/services"
	"foundermatch/utils"
	"foundermatch/worker"

	"github.com/getsentry/sentry-go"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/sirupsen/logrus"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		logrus.Fatalf("Failed to load configuration: %v", err)
	}

	if err := utils.InitLogging(cfg.Environment, cfg.SentryDSN); err != nil {
		logrus.Fatalf("Failed to initialize Sentry: %v", err)
	}
	defer sentry.Flush(2 * time.Second)

	db, err := config.ConnectDB(cfg)
	if err != nil {
		logrus.Fatalf("Failed to connect to database: %v", err)
	}
	defer config.CloseDB(db)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Notification email is best-effort and only runs when SMTP is set up
	var emails services.EmailQueue
	mailer := utils.NewSMTPMailer(cfg.SMTP.Host, cfg.SMTP.Port, cfg.SMTP.Username, cfg.SMTP.Password, cfg.SMTP.From)
	if mailer.Configured() {
		emailWorker := worker.NewEmailWorker(mailer, cfg.EmailQueueSize, logrus.WithField("component", "email_worker"))
		go emailWorker.Start(ctx)
		emails = emailWorker
	} else {
		logrus.Warn("SMTP is not configured, notification emails are disabled")
	}

	var gateway services.PaymentGateway
	if cfg.StripeSecretKey != "" {
		gateway = utils.NewStripeGateway(cfg.StripeSecretKey, cfg.StripeWebhookSecret)
	} else {
		logrus.Warn("Stripe is not configured, checkout is disabled")
	}

	svc := services.New(db, emails, gateway)

	reconcileWorker := worker.NewReconcileWorker(svc.Connections, cfg.ReconcileInterval, logrus.WithField("component", "reconcile_worker"))
	go reconcileWorker.Start(ctx)

	storage, err := middleware.NewRateLimitStorage(ctx, cfg.Redis)
	if err != nil {
		logrus.Fatalf("Failed to connect to Redis: %v", err)
	}
	if storage != nil {
		defer storage.Close()
	}

	issuer := utils.NewTokenIssuer(cfg.JWTSecret, cfg.AccessTokenTTL, cfg.RefreshTokenTTL)

	app := fiber.New(fiber.Config{
		AppName:      "foundermatch",
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	})
	app.Use(recover.New())
	app.Use(middleware.CORS(cfg.AllowedOrigins))

	routes.New(db, cfg, svc, issuer, storage).SetupRoutes(app)

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		logrus.Info("Shutting down server")
		cancel()
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			logrus.WithError(err).Error("Server shutdown failed")
		}
	}()

	logrus.Infof("Server starting on port %s", cfg.ServerPort)
	if err := app.Listen(":" + cfg.ServerPort); err != nil {
		logrus.Fatalf("Failed to start server: %v", err)
	}
}
