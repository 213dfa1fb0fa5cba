package query

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/conduit-lang/entitymap/internal/orm/dbexpr"

	// Database drivers, one per dialect
	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"
)

// Open connects to the database for dialect and verifies the connection
func Open(ctx context.Context, dialect dbexpr.Dialect, dsn string) (*sql.DB, error) {
	db, err := sql.Open(dialect.DriverName(), dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s database: %w", dialect, err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to %s database: %w", dialect, err)
	}

	return db, nil
}
