package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"rust_mentor_bot/internal/app"
	"rust_mentor_bot/internal/infra/config"
	idb "rust_mentor_bot/internal/infra/database"
	"rust_mentor_bot/internal/infra/logger"
	"rust_mentor_bot/internal/infra/openai"
	"rust_mentor_bot/internal/infra/scheduler"
	"rust_mentor_bot/internal/infra/telegram"
	"rust_mentor_bot/internal/mastery"
	"rust_mentor_bot/internal/plan"

	"gopkg.in/telebot.v3"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Log.Fatalf("Could not load application configuration: %v", err)
	}

	logger.Init(cfg)
	mainLogger := logger.Log.WithField("component", "main")
	mainLogger.WithField("environment", cfg.Environment).Info("Rust Mentor Bot starting...")

	// Initialize Database Connection
	db, err := idb.NewPostgresConnection(cfg.DatabaseURL)
	if err != nil {
		mainLogger.Fatalf("Could not connect to database: %v", err)
	}
	defer db.Close()
	mainLogger.Info("Database connection established successfully.")

	ctx := context.Background()
	if err := idb.EnsureSchema(db); err != nil {
		mainLogger.Fatalf("Could not apply database schema: %v", err)
	}

	// Initialize Repositories
	userRepo := idb.NewPostgresUserRepository(db)
	progressRepo := idb.NewPostgresProgressRepository(db)
	sessionRepo := idb.NewPostgresSessionRepository(db)
	achievementRepo := idb.NewPostgresAchievementRepository(db)
	catalogRepo := idb.NewPostgresCatalogRepository(db)
	if err := catalogRepo.SeedCatalog(ctx); err != nil {
		mainLogger.Fatalf("Could not seed topic catalog: %v", err)
	}
	mainLogger.Info("Repositories initialized, topic catalog is in place.")

	// Initialize content generator
	generator := openai.NewClient(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.OpenAIModel, cfg.GeneratorTimeout)
	mainLogger.WithField("model", cfg.OpenAIModel).Info("Lesson generator initialized.")

	// Initialize application services
	masteryCfg := mastery.DefaultConfig()
	achievementService := app.NewAchievementService(
		achievementRepo, progressRepo, catalogRepo, masteryCfg,
		logger.Log.WithField("component", "achievement_service"))
	sessionService := app.NewSessionService(
		userRepo, progressRepo, sessionRepo, catalogRepo, generator,
		mastery.NewScorer(masteryCfg), plan.NewPlanner(masteryCfg), achievementService,
		logger.Log.WithField("component", "session_service"))
	mainLogger.Info("Application services initialized.")

	// Initialize Telegram Bot
	pref := telebot.Settings{
		Token:  cfg.TelegramToken,
		Poller: &telebot.LongPoller{Timeout: 10 * time.Second},
		OnError: func(err error, c telebot.Context) { // Global error handler
			entry := logger.Log.WithField("component", "telebot").WithError(err)
			if c != nil && c.Sender() != nil {
				entry = entry.WithField("sender_id", c.Sender().ID)
			}
			entry.Error("Unhandled bot error")
		},
	}
	bot, err := telebot.NewBot(pref)
	if err != nil {
		mainLogger.Fatalf("Could not create Telegram bot: %v", err)
	}

	// Notification sweep over the reminder slots
	notificationService := app.NewNotificationService(
		userRepo, progressRepo, telegram.NewTelebotAdapter(bot), masteryCfg,
		logger.Log.WithField("component", "notification_service"))
	reminderScheduler := scheduler.NewReminderScheduler(
		notificationService,
		logger.Log.WithField("component", "scheduler"),
		cfg.CronSpecReminderCheck)
	reminderScheduler.Start()

	// Register Handlers
	telegram.RegisterLessonCommands(ctx, bot, sessionService, logger.Log.WithField("component", "telegram"))
	telegram.RegisterOutcomeHandlers(ctx, bot, sessionService, logger.Log.WithField("component", "telegram"))
	mainLogger.Info("Command handlers registered.")

	mainLogger.Info("Application setup complete. Bot and scheduler are starting...")

	// Start bot in a goroutine so it doesn't block graceful shutdown handling
	go bot.Start()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	mainLogger.Info("Shutting down application...")
	reminderScheduler.Stop()
	bot.Stop()
	mainLogger.Info("Application shut down gracefully.")
}
