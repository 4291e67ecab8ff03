package postgres

import (
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/shrimpsizemoose/kladdkaka/internal/models"
	"github.com/shrimpsizemoose/kladdkaka/internal/store"
)

type PostgresStore struct {
	store.BaseStore
}

func NewPostgresStore(dsn, migrationsDir string) (*PostgresStore, error) {
	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	s := &PostgresStore{BaseStore: store.BaseStore{
		DB: db,
		Converter: func(query string) string {
			out := query
			for i := 1; strings.Contains(out, "?"); i++ {
				out = strings.Replace(out, "?", fmt.Sprintf("$%d", i), 1)
			}
			return out
		},
	}}

	if err := s.ApplyMigrations(migrationsDir); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply migrations: %w", err)
	}

	return s, nil
}

func (s *PostgresStore) ApplyMigrations(dir string) error {
	return s.BaseStore.ApplyMigrations(dir, nil)
}

// CreateTransaction relies on the partial unique index over
// (user_id, dedup_key): a duplicate automatic credit is swallowed by
// DO NOTHING and reported as not-inserted.
func (s *PostgresStore) CreateTransaction(tx *models.CreditTransaction) (bool, error) {
	rows, err := s.DB.NamedQuery(`
		INSERT INTO credit_transactions (user_id, amount, reason, dedup_key, issuer_id, created_at)
		VALUES (:user_id, :amount, :reason, :dedup_key, :issuer_id, :created_at)
		ON CONFLICT (user_id, dedup_key) WHERE dedup_key IS NOT NULL DO NOTHING
		RETURNING id
	`, tx)
	if err != nil {
		return false, fmt.Errorf("failed to create transaction: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		// conflict target hit, nothing inserted
		return false, rows.Err()
	}

	if err := rows.Scan(&tx.ID); err != nil {
		return false, fmt.Errorf("failed to scan transaction id: %w", err)
	}

	return true, nil
}
