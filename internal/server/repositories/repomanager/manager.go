// Package repomanager vends repository implementations for one database
// dialect and runs that dialect's schema migrations.
package repomanager

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/imgkeeper/internal/dbx"
	"github.com/dmitrijs2005/imgkeeper/internal/server/repositories/authtokens"
	"github.com/dmitrijs2005/imgkeeper/internal/server/repositories/images"
	"github.com/dmitrijs2005/imgkeeper/internal/server/repositories/users"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Users(db dbx.DBTX) users.Repository
	AuthTokens(db dbx.DBTX) authtokens.Repository
	Images(db dbx.DBTX) images.Repository
}

// Open connects to the database named by driver and dsn, applies pending
// migrations and returns the pool together with the matching manager.
func Open(ctx context.Context, driver, dsn string) (*sql.DB, RepositoryManager, error) {
	var (
		db  *sql.DB
		m   RepositoryManager
		err error
	)

	switch strings.ToLower(driver) {
	case DriverSQLite, "sqlite3":
		db, err = OpenSQLite(dsn)
		m = NewSQLiteRepositoryManager()
	case DriverPostgres, "pgx", "postgresql":
		db, err = OpenPostgres(dsn)
		m = NewPostgresRepositoryManager()
	default:
		return nil, nil, fmt.Errorf("unsupported database driver %q", driver)
	}
	if err != nil {
		return nil, nil, err
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("db ping: %w", err)
	}

	if err := m.RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("db migrations: %w", err)
	}

	return db, m, nil
}
