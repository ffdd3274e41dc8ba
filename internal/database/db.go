package database

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
)

// SessionDBFile is the name of the WhatsApp credential database inside the auth folder.
const SessionDBFile = "session.db"

// OpenSessionDB opens (creating if needed) the sqlite database that holds the
// WhatsApp device credentials inside folder. Removing the folder removes the session.
func OpenSessionDB(folder string) (*sql.DB, error) {
	if err := os.MkdirAll(folder, 0o700); err != nil {
		return nil, fmt.Errorf("create auth folder: %w", err)
	}

	dsn := fmt.Sprintf("file:%s?_foreign_keys=on&_busy_timeout=5000", filepath.Join(folder, SessionDBFile))
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open session db: %w", err)
	}
	// sqlite serializes writers; a single connection avoids SQLITE_BUSY on credential writes.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping session db: %w", err)
	}
	return db, nil
}

// SessionExists reports whether folder already holds a credential database.
func SessionExists(folder string) bool {
	info, err := os.Stat(filepath.Join(folder, SessionDBFile))
	return err == nil && !info.IsDir()
}
