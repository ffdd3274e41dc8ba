// Package mirror stores the documents the board UI reads: the flat contact map
// and the board structure. Every path holds one JSON document that is fully
// fetched on read and fully replaced on write.
package mirror

import (
	"context"
	"fmt"

	"leadboard/internal/config"
	"leadboard/internal/database"
	"leadboard/internal/logger"

	"go.uber.org/zap"
)

const (
	PathContacts = "contatos"
	PathBoard    = "kanban-board-structure"
)

// Document is the content of one path. Version is 0 when the path was never written.
type Document struct {
	Body    []byte
	Version int64
	Exists  bool
}

// Store is a document store addressed by path.
type Store interface {
	Get(ctx context.Context, path string) (Document, error)
	// Put replaces the document regardless of its current version.
	Put(ctx context.Context, path string, body []byte) error
	// CompareAndSwap replaces the document only if its version still equals
	// version (0 meaning "absent"); otherwise it returns apperr.ErrVersionConflict.
	CompareAndSwap(ctx context.Context, path string, version int64, body []byte) error
	Close() error
}

// Open builds the store selected by cfg.MirrorBackend.
func Open(cfg *config.Config, log *zap.Logger) (Store, error) {
	switch cfg.MirrorBackend {
	case config.BackendSQLite:
		db, err := database.OpenSQLite(cfg.DBPath, logger.Gorm(log))
		if err != nil {
			return nil, err
		}
		return NewGormStore(db), nil
	case config.BackendPostgres:
		db, err := database.OpenPostgres(cfg.PostgresDSN(), logger.Gorm(log))
		if err != nil {
			return nil, err
		}
		return NewGormStore(db), nil
	case config.BackendRedis:
		return NewRedisStore(cfg.RedisURL)
	default:
		return nil, fmt.Errorf("unknown mirror backend %q", cfg.MirrorBackend)
	}
}
