package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/calvdc1/Registrar-bot/internal/attendance"
	"github.com/calvdc1/Registrar-bot/internal/bot"
	"github.com/calvdc1/Registrar-bot/internal/handlers"
	"github.com/calvdc1/Registrar-bot/internal/store"
	"github.com/calvdc1/Registrar-bot/pkg/logger"
)

func main() {
	_ = godotenv.Load()

	// Logger config from env (LOG_LEVEL, LOG_FORMAT, LOG_OUTPUT)
	loggerConfig := &logger.Config{
		Level:  getEnv("LOG_LEVEL", "info"),
		Format: getEnv("LOG_FORMAT", "json"),
		Output: getEnv("LOG_OUTPUT", "stdout"),
	}
	zapLogger, err := logger.New(loggerConfig, logger.DefaultServiceName)
	if err != nil {
		_, _ = os.Stderr.WriteString("failed to init logger: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer func() { _ = zapLogger.Sync() }()
	zap.ReplaceGlobals(zapLogger)

	token := os.Getenv("DISCORD_TOKEN")
	if token == "" {
		zap.L().Fatal("DISCORD_TOKEN is required")
	}

	st := openStore()

	b, err := bot.New(token, getEnv("COMMAND_PREFIX", "!"), zap.L())
	if err != nil {
		zap.L().Fatal("Failed to create bot", zap.Error(err))
	}

	b.Engine = attendance.NewEngine(st, b, b, zap.L())
	handlers.Register(b)

	if err := b.Open(); err != nil {
		zap.L().Fatal("Failed to connect to Discord", zap.Error(err))
	}
	defer b.Close()

	sweepInterval, err := time.ParseDuration(getEnv("SWEEP_INTERVAL", "1m"))
	if err != nil {
		zap.L().Fatal("Invalid SWEEP_INTERVAL", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		b.Engine.Run(ctx, sweepInterval)
		return nil
	})

	zap.L().Info("Bot started successfully")

	<-ctx.Done()
	zap.L().Info("Shutting down")
	_ = g.Wait()
}

func openStore() store.Store {
	if getEnv("STORE_DRIVER", "file") != "postgres" {
		return store.NewFileStore(getEnv("STORE_FILE", "attendance_data.json"), zap.L())
	}

	cfg := store.Config{
		Host:     os.Getenv("DB_HOST"),
		Port:     os.Getenv("DB_PORT"),
		User:     os.Getenv("DB_USER"),
		Password: os.Getenv("DB_PASSWORD"),
		DBName:   os.Getenv("DB_NAME"),
		SSLMode:  os.Getenv("DB_SSLMODE"),
	}
	pg, err := store.OpenPostgres(cfg, zap.L())
	if err != nil {
		zap.L().Fatal("Failed to connect to database", zap.Error(err))
	}

	zap.L().Info("Running database migrations...")
	if err := pg.RunMigrations(); err != nil {
		zap.L().Fatal("Failed to run migrations", zap.Error(err))
	}
	return pg
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
