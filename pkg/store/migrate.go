package store

import (
	"context"
	"database/sql"
	"embed"

	"github.com/pressly/goose/v3"

	mcperrors "github.com/voxmill/transcript-mcp/pkg/errors"
	"github.com/voxmill/transcript-mcp/pkg/logging"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

func init() {
	goose.SetBaseFS(migrationsFS)
	if err := goose.SetDialect("sqlite3"); err != nil {
		panic(err)
	}
}

// Migrate brings the schema up to the latest embedded migration.
func Migrate(ctx context.Context, db *sql.DB, logger logging.Logger) error {
	if logger == nil {
		goose.SetLogger(goose.NopLogger())
	} else {
		goose.SetLogger(logging.NewPrintfAdapter(logger, "Migrations"))
	}
	if err := goose.UpContext(ctx, db, "migrations"); err != nil {
		return mcperrors.StoreFailure("migrate", err)
	}
	return nil
}
