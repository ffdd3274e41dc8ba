package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"leadboard/internal/api"
	"leadboard/internal/config"
	"leadboard/internal/events"
	"leadboard/internal/history"
	"leadboard/internal/leads"
	"leadboard/internal/logger"
	"leadboard/internal/mirror"
	"leadboard/internal/scheduler"
	"leadboard/internal/sheets"
	"leadboard/internal/whatsapp"
	"leadboard/internal/ws"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	cfg := config.LoadConfig()

	log, err := logger.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	if err := cfg.Validate(); err != nil {
		log.Fatal("invalid configuration", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := mirror.Open(cfg, log)
	if err != nil {
		log.Fatal("failed to open mirror store", zap.String("backend", cfg.MirrorBackend), zap.Error(err))
	}
	defer store.Close()

	sheet, err := sheets.NewClient(ctx, cfg.SpreadsheetID, cfg.GoogleCredentialsFile, log)
	if err != nil {
		log.Fatal("failed to create sheets client", zap.Error(err))
	}

	bus := events.NewBus(log)
	defer bus.Close()

	router := history.NewRouter(bus, log)
	manager := whatsapp.NewManager(whatsapp.NewWhatsmeowDialer(log), router, bus, whatsapp.Options{
		AuthFolder:           cfg.AuthFolder,
		ReconnectDelay:       cfg.ReconnectDelay,
		MaxReconnectAttempts: cfg.ReconnectMaxAttempts,
		CountryCode:          cfg.DefaultCountryCode,
		MediaDir:             cfg.MediaDir,
	}, log)

	reconciler := leads.NewReconciler(sheet, store, cfg.SheetName, log)
	flags := leads.NewFlagWriter(sheet, store, cfg.SheetName, log)
	syncer := scheduler.New(reconciler, bus, log)
	hub := ws.NewHub(bus, log)

	gin.SetMode(gin.ReleaseMode)
	engine := api.NewRouter(api.Deps{
		Board:      reconciler,
		Flags:      flags,
		Sync:       syncer,
		Messenger:  manager,
		History:    router,
		WebSocket:  hub.ServeWs,
		CORSOrigin: cfg.CORSOrigin,
		Log:        log,
	})
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		hub.Run(gctx)
		return nil
	})

	g.Go(func() error {
		log.Info("server starting", zap.String("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		if err := manager.Initialize(gctx); err != nil {
			log.Error("whatsapp initialization failed", zap.Error(err))
		}
		return nil
	})

	if cfg.SyncEnabled {
		g.Go(func() error {
			syncer.Start(gctx, cfg.SyncInterval, cfg.SyncOnStart)
			return nil
		})
	} else {
		log.Info("auto sync disabled")
	}

	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")

		syncer.Stop()
		manager.Shutdown()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error("server stopped with error", zap.Error(err))
		os.Exit(1)
	}
	log.Info("server stopped")
}
