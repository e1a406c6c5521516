package repomanager

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/dmitrijs2005/imgkeeper/internal/dbx"
	"github.com/dmitrijs2005/imgkeeper/internal/filex"
	"github.com/dmitrijs2005/imgkeeper/internal/server/migrations"
	"github.com/dmitrijs2005/imgkeeper/internal/server/repositories/authtokens"
	"github.com/dmitrijs2005/imgkeeper/internal/server/repositories/images"
	"github.com/dmitrijs2005/imgkeeper/internal/server/repositories/users"
	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"
)

// SQLiteRepositoryManager vends SQLite-backed repositories.
type SQLiteRepositoryManager struct{}

func NewSQLiteRepositoryManager() *SQLiteRepositoryManager {
	return &SQLiteRepositoryManager{}
}

func (m *SQLiteRepositoryManager) Users(db dbx.DBTX) users.Repository {
	return users.NewSQLiteRepository(db)
}

func (m *SQLiteRepositoryManager) AuthTokens(db dbx.DBTX) authtokens.Repository {
	return authtokens.NewSQLiteRepository(db)
}

func (m *SQLiteRepositoryManager) Images(db dbx.DBTX) images.Repository {
	return images.NewSQLiteRepository(db)
}

func (m *SQLiteRepositoryManager) RunMigrations(ctx context.Context, db *sql.DB) error {
	return runMigrations(ctx, db, goose.DialectSQLite3, migrations.DirSQLite)
}

var sqlitePragmas = []string{
	"busy_timeout(10000)",
	"journal_mode(WAL)",
	"foreign_keys(1)",
}

// SQLiteDSN appends the connection pragmas every pooled connection needs.
func SQLiteDSN(dsn string) string {
	var b strings.Builder
	b.WriteString(dsn)
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	for _, p := range sqlitePragmas {
		b.WriteString(sep)
		b.WriteString("_pragma=")
		b.WriteString(p)
		sep = "&"
	}
	return b.String()
}

func isMemoryDSN(dsn string) bool {
	return dsn == ":memory:" || strings.Contains(dsn, "mode=memory")
}

// OpenSQLite opens a SQLite database file, creating its directory if needed.
// In-memory databases are limited to one connection so every statement sees
// the same database.
func OpenSQLite(dsn string) (*sql.DB, error) {
	if !isMemoryDSN(dsn) {
		path := strings.TrimPrefix(dsn, "file:")
		if i := strings.IndexByte(path, '?'); i >= 0 {
			path = path[:i]
		}
		if err := filex.EnsureDir(filepath.Dir(path)); err != nil {
			return nil, err
		}
	}

	db, err := sql.Open("sqlite", SQLiteDSN(dsn))
	if err != nil {
		return nil, fmt.Errorf("db open: %w", err)
	}
	if isMemoryDSN(dsn) {
		db.SetMaxOpenConns(1)
	}
	return db, nil
}
