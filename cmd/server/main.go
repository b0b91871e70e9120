package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/AkashMedishetty/FeedbackSystem-sub002/internal/app/server/api"
	"github.com/AkashMedishetty/FeedbackSystem-sub002/internal/app/server/config"
	"github.com/AkashMedishetty/FeedbackSystem-sub002/internal/infrastructure/storage/postgres"
	"github.com/AkashMedishetty/FeedbackSystem-sub002/internal/utils/logger"
)

func main() {
	cfg := config.MustLoad()
	log := logger.New(cfg.Env)

	storage, err := postgres.New(cfg)
	if err != nil {
		log.Error("Ошибка инициализации хранилища", "error", err)
		os.Exit(1)
	}
	defer storage.Close()

	server := &http.Server{
		Addr:    cfg.Server.RunAddress,
		Handler: api.New(storage, log),
	}

	go func() {
		log.Info("Сервер приема отзывов запущен", "address", cfg.Server.RunAddress, "env", cfg.Env)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("Ошибка HTTP сервера", "error", err)
			os.Exit(1)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan
	log.Info("Получен сигнал завершения", "signal", sig.String())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Error("Ошибка остановки сервера", "error", err)
	}

	log.Info("Сервер завершил работу")
}
