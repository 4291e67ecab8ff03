// internal/store/sqlite/store.go
package sqlite

import (
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"

	"github.com/shrimpsizemoose/kladdkaka/internal/models"
	"github.com/shrimpsizemoose/kladdkaka/internal/store"
)

type SQLiteStore struct {
	store.BaseStore
}

func NewSQLiteStore(dsn, migrationsDir string) (*SQLiteStore, error) {
	db, err := sqlx.Connect("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to sqlite: %w", err)
	}

	// sqlite is single-writer, and :memory: databases live per-connection
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	s := &SQLiteStore{BaseStore: store.BaseStore{
		DB: db,
		Converter: func(query string) string {
			return query
		},
	}}

	if err := s.BaseStore.ApplyMigrations(migrationsDir, translateToSQLite); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply migrations: %w", err)
	}

	return s, nil
}

func (s *SQLiteStore) ApplyMigrations(dir string) error {
	return s.BaseStore.ApplyMigrations(dir, translateToSQLite)
}

// translateToSQLite converts Postgres SQL to SQLite dialect
func translateToSQLite(sql string) string {
	replacements := map[string]string{
		"BIGSERIAL PRIMARY KEY": "INTEGER PRIMARY KEY AUTOINCREMENT",
		"BIGINT":                "INTEGER",
		"TRUE":                  "1",
		"FALSE":                 "0",
		"now()":                 "CURRENT_TIMESTAMP",
		"VARCHAR(8)":            "TEXT",
		"VARCHAR(16)":           "TEXT",
		"::text":                "",
	}
	result := sql
	for from, to := range replacements {
		result = strings.ReplaceAll(result, from, to)
	}
	return result
}

// CreateTransaction relies on the partial unique index over
// (user_id, dedup_key): a duplicate automatic credit is swallowed by
// DO NOTHING and reported as not-inserted.
func (s *SQLiteStore) CreateTransaction(tx *models.CreditTransaction) (bool, error) {
	res, err := s.DB.NamedExec(`
		INSERT INTO credit_transactions (user_id, amount, reason, dedup_key, issuer_id, created_at)
		VALUES (:user_id, :amount, :reason, :dedup_key, :issuer_id, :created_at)
		ON CONFLICT(user_id, dedup_key) WHERE dedup_key IS NOT NULL DO NOTHING
	`, tx)
	if err != nil {
		return false, fmt.Errorf("failed to create transaction: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to count inserted rows: %w", err)
	}
	if n == 0 {
		return false, nil
	}

	id, err := res.LastInsertId()
	if err != nil {
		return false, fmt.Errorf("failed to get transaction id: %w", err)
	}
	tx.ID = id

	return true, nil
}
