package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	appcfg "github.com/park285/Cheese-Damas/internal/config"
	"github.com/park285/Cheese-Damas/internal/msgcat"
	"github.com/park285/Cheese-Damas/internal/obslog"
	"github.com/park285/Cheese-Damas/internal/relay"
	"go.uber.org/zap"
)

func main() {
	cfg, err := appcfg.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	if err := obslog.InitFromEnv("damas-relay"); err != nil {
		log.Fatalf("logger init error: %v", err)
	}
	defer obslog.Sync()
	logger := obslog.L()

	cat, err := msgcat.New(cfg.MessagesDir)
	if err != nil {
		logger.Fatal("msgcat_init_error", zap.Error(err))
	}

	hub := relay.NewHub(cat)
	handler := relay.NewServer(hub, cat, relay.Options{
		WriteTimeout: cfg.WriteTimeout,
		SendQueue:    cfg.SendQueue,
	})
	srv := &http.Server{
		Addr:              cfg.ListenAddr(),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		t := time.NewTicker(time.Minute)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				logger.Info("relay_stats", zap.Int("rooms", hub.Len()))
			}
		}
	}()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("relay_listening", zap.String("addr", srv.Addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("relay_listen_error", zap.Error(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("relay_shutdown_error", zap.Error(err))
	}
	logger.Info("relay_stopped")
}
