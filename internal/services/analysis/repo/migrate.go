package repo

import (
	"context"
	"embed"

	"seochecker/internal/modkit/repokit"
	"seochecker/internal/platform/store"
)

//go:embed migrations/*.sql
var migrations embed.FS

// Migrate applies the analysis schema with goose
func Migrate(ctx context.Context, db repokit.TxRunner) error {
	return store.Migrate(ctx, db, migrations, "migrations")
}
