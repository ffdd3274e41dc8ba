package main

import (
	"context"
	"flag"
	"time"

	"leadboard/internal/config"
	"leadboard/internal/database"
	"leadboard/internal/logger"
	"leadboard/internal/mirror"

	"go.uber.org/zap"
)

func main() {
	cfg := config.LoadConfig()
	source := flag.String("from", cfg.DBPath, "sqlite mirror database to copy from")
	flag.Parse()

	log, err := logger.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	if cfg.MirrorBackend == config.BackendSQLite {
		log.Fatal("MIRROR_BACKEND must be postgres or redis for a migration")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	// 1. Connect to SQLite (Source)
	sqliteDB, err := database.OpenSQLite(*source, logger.Gorm(log))
	if err != nil {
		log.Fatal("failed to connect to sqlite", zap.Error(err))
	}
	from := mirror.NewGormStore(sqliteDB)
	defer from.Close()
	log.Info("connected to sqlite", zap.String("path", *source))

	// 2. Connect to the configured backend (Destination)
	to, err := mirror.Open(cfg, log)
	if err != nil {
		log.Fatal("failed to open destination", zap.String("backend", cfg.MirrorBackend), zap.Error(err))
	}
	defer to.Close()

	log.Info("starting mirror migration", zap.String("backend", cfg.MirrorBackend))

	failed := 0
	for _, path := range []string{mirror.PathContacts, mirror.PathBoard} {
		doc, err := from.Get(ctx, path)
		if err != nil {
			log.Error("error reading document", zap.String("path", path), zap.Error(err))
			failed++
			continue
		}
		if !doc.Exists {
			log.Info("document absent in source, skipping", zap.String("path", path))
			continue
		}
		if err := to.Put(ctx, path, doc.Body); err != nil {
			log.Error("error writing document", zap.String("path", path), zap.Error(err))
			failed++
			continue
		}
		log.Info("migrated document", zap.String("path", path), zap.Int("bytes", len(doc.Body)))
	}

	if failed > 0 {
		log.Fatal("migration finished with errors", zap.Int("failed", failed))
	}
	log.Info("migration completed")
}
