package store

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"sync"

	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

// goose keeps its base fs and dialect in package globals
var gooseMu sync.Mutex

// Migrate applies the goose migrations found under dir in fsys
// the pg seam must be the pgx backed adapter returned by Open
func Migrate(ctx context.Context, tx TxRunner, fsys fs.FS, dir string) error {
	p, ok := tx.(*postgres)
	if !ok || p == nil {
		return errors.New("migrate: pg seam is not pgx backed")
	}

	// idle conns stay in the pool, closing db hands them back
	db := stdlib.OpenDBFromPool(p.pool)
	defer db.Close()

	gooseMu.Lock()
	defer gooseMu.Unlock()

	goose.SetBaseFS(fsys)
	defer goose.SetBaseFS(nil)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("migrate: dialect: %w", err)
	}
	if err := goose.UpContext(ctx, db, dir); err != nil {
		return fmt.Errorf("migrate: up: %w", err)
	}
	return nil
}
