// Package db is the relay's SQLite log of delivered chat messages, the
// agent's replies and the operators that connected.
package db

import (
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"net/url"

	_ "github.com/mattn/go-sqlite3"
)

// schemaVersion is stored in PRAGMA user_version. Bump it with every change
// to schema.sql.
const schemaVersion = 1

var ErrSchemaTooNew = errors.New("database schema is newer than this relay")

//go:embed schema.sql
var schema string

type DB struct {
	*sql.DB
}

// Open opens or creates the delivery log at path and brings its schema up
// to date. A file written by a newer relay is refused.
func Open(path string) (*DB, error) {
	params := url.Values{}
	params.Set("_journal_mode", "WAL")
	params.Set("_foreign_keys", "ON")
	params.Set("_busy_timeout", "5000")

	sqlDB, err := sql.Open("sqlite3", path+"?"+params.Encode())
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// One writer; WAL lets readers through.
	sqlDB.SetMaxOpenConns(1)

	version, err := migrate(sqlDB)
	if err != nil {
		sqlDB.Close()
		return nil, err
	}

	slog.Info("delivery log opened", "path", path, "schema", version)
	return &DB{sqlDB}, nil
}

func migrate(sqlDB *sql.DB) (int, error) {
	var current int
	if err := sqlDB.QueryRow(`PRAGMA user_version`).Scan(&current); err != nil {
		return 0, fmt.Errorf("read schema version: %w", err)
	}
	if current > schemaVersion {
		return current, fmt.Errorf("%w: file has %d, relay knows %d", ErrSchemaTooNew, current, schemaVersion)
	}

	if _, err := sqlDB.Exec(schema); err != nil {
		return current, fmt.Errorf("init schema: %w", err)
	}
	if current != schemaVersion {
		if _, err := sqlDB.Exec(fmt.Sprintf(`PRAGMA user_version = %d`, schemaVersion)); err != nil {
			return current, fmt.Errorf("set schema version: %w", err)
		}
	}
	return schemaVersion, nil
}

// SchemaVersion reports the version recorded in the open database.
func (db *DB) SchemaVersion() (int, error) {
	var v int
	err := db.QueryRow(`PRAGMA user_version`).Scan(&v)
	return v, err
}
