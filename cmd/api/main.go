package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"vc_termsheet/pkg/api/config"
	"vc_termsheet/pkg/api/termsheet"
	coreConfig "vc_termsheet/pkg/core/config"
	"vc_termsheet/pkg/core/logging"
	"vc_termsheet/pkg/core/store"
)

func main() {
	configPath := flag.String("config", "", "path to termsheet.yaml (default $TERMSHEET_CONFIG or "+coreConfig.DefaultPath+")")
	flag.Parse()

	cfg, err := coreConfig.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "[FATAL] %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.New(cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "[FATAL] logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Postgres when configured, JSON files under the cache dir otherwise
	if cfg.Store.DatabaseURL != "" {
		if err := store.InitDB(ctx, cfg.Store.DatabaseURL); err != nil {
			logger.Warn("database unavailable, using file store", zap.Error(err))
		} else {
			defer store.Close()
		}
	}
	st, err := store.NewScenarioStore(store.GetPool(), cfg.Store.CacheDir)
	if err != nil {
		logger.Fatal("scenario store", zap.Error(err))
	}

	mgr, err := coreConfig.NewManager(cfg.Engine)
	if err != nil {
		logger.Fatal("engine config", zap.Error(err))
	}

	mux := http.NewServeMux()

	configHandler := config.NewHandler(mgr, logger)
	mux.HandleFunc("/api/config", configHandler.HandleConfig)
	mux.HandleFunc("/api/config/switch", configHandler.HandleSwitch)

	termsheet.NewHandler(mgr, st, logger).Register(mux)

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	logger.Info("API server starting",
		zap.String("addr", cfg.Server.Addr),
		zap.Bool("postgres", store.GetPool() != nil),
		zap.String("option_model", cfg.Engine.OptionModel),
		zap.String("payoff_mode", cfg.Engine.PayoffMode),
	)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal("server failed", zap.Error(err))
	}
	logger.Info("server stopped")
}
