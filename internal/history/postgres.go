package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"passos-predictor/internal/common/errors"
)

const schemaDDL = `CREATE TABLE IF NOT EXISTS predictions (
	id          UUID PRIMARY KEY,
	batch_id    UUID,
	source      TEXT NOT NULL,
	record      JSONB NOT NULL,
	probability DOUBLE PRECISION NOT NULL,
	label       SMALLINT NOT NULL,
	model_name  TEXT,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`

const insertQuery = `INSERT INTO predictions (id, batch_id, source, record, probability, label, model_name, created_at) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

const recentQuery = `SELECT id, batch_id, source, record, probability, label, model_name, created_at FROM predictions ORDER BY created_at DESC LIMIT $1`

// PostgresStore writes entries to the predictions table.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// EnsureSchema creates the predictions table when absent.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schemaDDL); err != nil {
		return errors.NewHistoryStoreFailedError(err)
	}
	return nil
}

// Save inserts all entries in one transaction.
func (s *PostgresStore) Save(ctx context.Context, entries []Entry) error {
	if len(entries) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.NewHistoryStoreFailedError(err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, insertQuery)
	if err != nil {
		return errors.NewHistoryStoreFailedError(err)
	}
	defer stmt.Close()

	for _, e := range entries {
		record, err := json.Marshal(e.Record)
		if err != nil {
			return errors.NewHistoryStoreFailedError(fmt.Errorf("entry %s: %w", e.ID, err))
		}
		var batchID interface{}
		if e.BatchID != "" {
			batchID = e.BatchID
		}
		if _, err := stmt.ExecContext(ctx, e.ID, batchID, e.Source, record,
			e.Probability, e.Label, e.ModelName, e.CreatedAt); err != nil {
			return errors.NewHistoryStoreFailedError(fmt.Errorf("entry %s: %w", e.ID, err))
		}
	}

	if err := tx.Commit(); err != nil {
		return errors.NewHistoryStoreFailedError(err)
	}
	return nil
}

// Recent returns the latest entries, newest first.
func (s *PostgresStore) Recent(ctx context.Context, limit int) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx, recentQuery, limit)
	if err != nil {
		return nil, errors.NewHistoryStoreFailedError(err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var (
			e         Entry
			batchID   sql.NullString
			modelName sql.NullString
			record    []byte
		)
		if err := rows.Scan(&e.ID, &batchID, &e.Source, &record, &e.Probability,
			&e.Label, &modelName, &e.CreatedAt); err != nil {
			return nil, errors.NewHistoryStoreFailedError(err)
		}
		if err := json.Unmarshal(record, &e.Record); err != nil {
			return nil, errors.NewHistoryStoreFailedError(fmt.Errorf("entry %s: %w", e.ID, err))
		}
		e.BatchID = batchID.String
		e.ModelName = modelName.String
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewHistoryStoreFailedError(err)
	}
	return out, nil
}
