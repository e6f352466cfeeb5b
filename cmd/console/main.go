// Package main запускает консоль партнёра коворкинг-сети.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/workspace-africa/partner-console/internal/config"
	"github.com/workspace-africa/partner-console/internal/credential"
	"github.com/workspace-africa/partner-console/internal/handler"
	"github.com/workspace-africa/partner-console/internal/portal"
	"github.com/workspace-africa/partner-console/internal/service"
	"github.com/workspace-africa/partner-console/internal/session"
)

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	sugar := logger.Sugar()

	cfg, err := config.Parse()
	if err != nil {
		sugar.Fatalw("configuration error", "error", err.Error())
	}

	if cfg.PortalAPIAddress == "" {
		sugar.Fatalw("portal API address is required", "flag", "-p", "env", "PORTAL_API_ADDRESS")
	}

	store, err := credential.NewStore(cfg.StateFile)
	if err != nil {
		sugar.Fatalw("credential store initialization error", "error", err.Error())
	}

	portalClient := portal.NewClient(cfg.PortalAPIAddress)
	guard := session.NewGuard(store)

	svc := service.NewService(portalClient, store, guard, logger)

	h := handler.NewHandler(svc, guard, logger)
	r := h.SetupRouter()

	server := &http.Server{
		Addr:    cfg.RunAddress,
		Handler: r,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	// Запуск HTTP-сервера локальной поверхности
	g.Go(func() error {
		sugar.Infow("starting partner console", "addr", cfg.RunAddress, "portal", cfg.PortalAPIAddress)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	// Graceful shutdown при отмене контекста (сигнал или ошибка в другой горутине)
	g.Go(func() error {
		<-ctx.Done()
		sugar.Info("shutting down console...")

		// Сеанс сканирования закрывается до остановки сервера: камера
		// не должна эмитить в мёртвый валидатор.
		if err := svc.StopScanner(); err != nil {
			sugar.Warnw("scanner shutdown error", "error", err.Error())
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown error: %w", err)
		}
		sugar.Info("console stopped gracefully")
		return nil
	})

	if err := g.Wait(); err != nil {
		sugar.Fatalw("application terminated with error", "error", err)
	}
}
