package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

const assessmentsTableExists = `SELECT EXISTS (SELECT FROM pg_tables WHERE schemaname = current_schema() AND tablename = 'assessments')`

// InitSchema loads schemaSQL when the assessments table is missing. The whole
// script runs in one transaction so a failed load leaves nothing behind.
func (db *DB) InitSchema(ctx context.Context, schemaSQL []byte) error {
	var exists bool
	if err := db.Pool.QueryRow(ctx, assessmentsTableExists).Scan(&exists); err != nil {
		return fmt.Errorf("check schema: %w", err)
	}
	if exists {
		db.log.Debug().Msg("schema already initialized, skipping")
		return nil
	}

	db.log.Info().Msg("fresh database detected, applying schema")
	err := pgx.BeginFunc(ctx, db.Pool, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, string(schemaSQL))
		return err
	})
	if err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	db.log.Info().Msg("schema applied successfully")
	return nil
}
