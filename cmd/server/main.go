package main

import (
	"context"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/linemk/sweet-shop/internal/app"
	"github.com/linemk/sweet-shop/internal/config"
	"github.com/linemk/sweet-shop/internal/lib/logger"
	"github.com/pkg/errors"
)

func main() {
	// .env необязателен, в контейнере переменные приходят из окружения
	_ = godotenv.Load()

	// загрузка конфигурации
	cfg := config.MustLoad()

	// инициализация логгера, зависит от настройки окружения
	log := logger.SetupLogger(logger.Options{
		Env:     cfg.Env,
		Service: cfg.Kafka.Service,
		Level:   cfg.LogLevel,
	})
	log.Info("starting app")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// загружаем объект приложения: конфиг, БД, кэш, события, роутер
	application, err := app.NewApp(ctx, log, cfg)
	if err != nil {
		log.Error("failed to initialize app", slog.Any("error", err))
		panic(errors.Wrap(err, "failed to initialize app"))
	}
	defer application.Close()

	srv := &http.Server{
		Addr:         cfg.HTTPServer.Address,
		Handler:      application.Router,
		ReadTimeout:  cfg.HTTPServer.Timeout,
		WriteTimeout: cfg.HTTPServer.Timeout,
		IdleTimeout:  cfg.HTTPServer.IdleTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info("starting server", slog.String("address", cfg.HTTPServer.Address))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- errors.Wrap(err, "listen and serve")
		}
	}()

	// graceful shutdown
	select {
	case <-ctx.Done():
		log.Info("received shutdown signal")
	case err := <-serverErr:
		log.Error("server error", slog.Any("error", err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPServer.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("server shutdown failed", slog.Any("error", err))
		return
	}
	log.Info("server gracefully stopped")
}
