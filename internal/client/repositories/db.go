// Package repositories opens the local SQLite database and bundles the
// repositories built on it.
package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"

	"github.com/dmitrijs2005/fridgekeeper/internal/client/migrations"
	"github.com/dmitrijs2005/fridgekeeper/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/fridgekeeper/internal/client/repositories/records"
	"github.com/dmitrijs2005/fridgekeeper/internal/logging"

	_ "modernc.org/sqlite" // pure-Go SQLite driver
)

type Repositories struct {
	DB       *sql.DB
	Metadata metadata.Repository
	Records  records.Repository
}

func (r *Repositories) Close() error {
	return r.DB.Close()
}

// DSN builds a modernc.org/sqlite data source name for path with a busy
// timeout and WAL journal.
func DSN(path string) string {
	q := url.Values{}
	q.Add("_pragma", "busy_timeout(5000)")
	q.Add("_pragma", "journal_mode(WAL)")
	q.Add("_pragma", "foreign_keys(1)")
	return "file:" + path + "?" + q.Encode()
}

// InitDatabase opens the database at dsn, applies migrations and returns the
// repositories. A single connection is used so writers serialize in-process.
func InitDatabase(ctx context.Context, dsn string, log logging.Logger) (*Repositories, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open local database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("open local database: %w", err)
	}

	if err := migrations.Up(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Repositories{
		DB:       db,
		Metadata: metadata.NewSQLiteRepository(db),
		Records:  records.NewSQLiteRepository(db, records.WithLogger(log)),
	}, nil
}
