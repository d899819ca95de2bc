package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"lifesim/internal/api"
	"lifesim/internal/config"
	"lifesim/internal/save"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Warn("read .env", "err", err)
	}
	settings, err := config.LoadSettings()
	if err != nil {
		log.Fatal("settings", "err", err)
	}

	logger := log.NewWithOptions(os.Stderr, log.Options{ReportTimestamp: true, Prefix: "lifesvc"})
	if lvl, err := log.ParseLevel(settings.LogLevel); err == nil {
		logger.SetLevel(lvl)
	} else {
		logger.Warn("unknown log level, using info", "level", settings.LogLevel)
	}

	cat, err := config.LoadAll(settings.AssetsDir)
	if err != nil {
		logger.Fatal("load catalog", "dir", settings.AssetsDir, "err", err)
	}
	if err := config.Validate(cat); err != nil {
		logger.Fatal("invalid catalog", "err", err)
	}

	ctx := context.Background()
	store, err := save.OpenFromSettings(ctx, settings)
	if err != nil {
		logger.Fatal("open save store", "err", err)
	}
	defer store.Close()
	logger.Info("database", "dialect", store.Dialect())

	archive, err := save.OpenArchive(ctx, store, settings.SaveKey, logger)
	if err != nil {
		logger.Fatal("load save", "err", err)
	}

	gin.SetMode(gin.ReleaseMode)
	srv := api.NewServer(api.Deps{
		Catalog:      cat,
		Archive:      archive,
		Logger:       logger,
		TickInterval: settings.TickInterval,
		Seed:         settings.Seed,
	})
	httpSrv := &http.Server{
		Addr:              settings.Addr,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("listening", "addr", settings.Addr, "realms", len(cat.Realms), "events", len(cat.Events))
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("serve", "err", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down")
	srv.Shutdown()
	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown", "err", err)
	}
}
