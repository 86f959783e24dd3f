package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/dunskii/lessondesk/internal/api"
	"github.com/dunskii/lessondesk/internal/app"
	"github.com/dunskii/lessondesk/internal/config"
	"github.com/dunskii/lessondesk/internal/notify"
	"github.com/dunskii/lessondesk/internal/repository"
	"github.com/dunskii/lessondesk/internal/service"
	"github.com/dunskii/lessondesk/migrations"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger := app.NewLogger(cfg.Environment)
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := pgxpool.New(ctx, cfg.DBDSN)
	if err != nil {
		logger.Fatal("Failed to create connection pool", zap.Error(err))
	}
	defer pool.Close()

	// Применяем миграции на старте
	migrator, err := app.NewMigrator(pool, migrations.FS)
	if err != nil {
		logger.Fatal("Failed to create migrator", zap.Error(err))
	}
	if err := migrator.Run(ctx); err != nil {
		logger.Fatal("Failed to run migrations", zap.Error(err))
	}
	migrator.Close()

	// Репозитории
	termRepo := repository.NewTermRepository(pool)
	lessonRepo := repository.NewLessonRepository(pool)
	enrollmentRepo := repository.NewEnrollmentRepository(pool)
	bookingRepo := repository.NewBookingRepository(pool)

	// Очередь уведомлений: доставка внешняя, здесь только постановка.
	// Воркер живёт дольше сигнального контекста: при SIGTERM он должен
	// дорабатывать очередь, пока HTTP-сервер дообслуживает запросы,
	// остановка — явным Stop после Shutdown
	dispatcher := notify.NewQueueDispatcher(notify.NewLogSender(logger), logger, 256)
	dispatcher.Start(context.Background())

	// Сервисы
	slotService := service.NewSlotService(termRepo, lessonRepo, bookingRepo)
	bookingService := service.NewBookingService(termRepo, lessonRepo, enrollmentRepo, bookingRepo, dispatcher, logger)
	calendarService := service.NewCalendarService(termRepo, lessonRepo, enrollmentRepo, bookingRepo)

	handler := api.NewHandler(slotService, bookingService, calendarService, termRepo, lessonRepo, logger)
	router := api.NewRouter(handler, cfg.Environment)

	server := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: router,
	}

	go func() {
		logger.Info("Starting HTTP server",
			zap.String("addr", cfg.HTTPAddr),
			zap.String("environment", cfg.Environment),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown failed", zap.Error(err))
	}

	dispatcher.Stop()
	logger.Info("Stopped")
}
