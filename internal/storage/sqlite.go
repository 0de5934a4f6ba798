// Package storage provides the SQLite implementation of the Storage interface.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/hyperjump/katayori/internal/models"
)

// SQLiteStorage implements Storage using SQLite.
type SQLiteStorage struct {
	db *sql.DB
}

// NewSQLiteStorage opens or creates a SQLite database at dbPath and
// initializes the schema. Parent directories are created if missing.
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteStorage{db: db}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS records (
		id TEXT PRIMARY KEY,
		source TEXT NOT NULL,
		content TEXT NOT NULL,
		sentiment REAL NOT NULL,
		entities TEXT,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_records_source ON records(source);

	CREATE TABLE IF NOT EXISTS entity_observations (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		record_id TEXT NOT NULL,
		score REAL NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_observations_name ON entity_observations(name);
	CREATE INDEX IF NOT EXISTS idx_observations_record ON entity_observations(record_id);

	CREATE TABLE IF NOT EXISTS experiments (
		id TEXT PRIMARY KEY,
		encoder TEXT,
		top_k INTEGER NOT NULL,
		n_samples INTEGER NOT NULL,
		parametric INTEGER NOT NULL,
		seed INTEGER NOT NULL,
		positive_names TEXT NOT NULL,
		negative_names TEXT NOT NULL,
		effect_size REAL NOT NULL,
		p_value REAL NOT NULL,
		permutations INTEGER NOT NULL,
		exhaustive INTEGER NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_experiments_created_at ON experiments(created_at);
	`
	_, err := db.Exec(schema)
	return err
}

// BatchUpsertRecords stores records and their per-entity observations in one
// transaction. Existing rows for the same record ID are replaced, including
// the observations, so a rescan is idempotent.
func (s *SQLiteStorage) BatchUpsertRecords(ctx context.Context, records []*models.Record) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	recStmt, err := tx.PrepareContext(ctx,
		`INSERT OR REPLACE INTO records (id, source, content, sentiment, entities, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer recStmt.Close()

	delObsStmt, err := tx.PrepareContext(ctx,
		`DELETE FROM entity_observations WHERE record_id = ?`)
	if err != nil {
		return err
	}
	defer delObsStmt.Close()

	obsStmt, err := tx.PrepareContext(ctx,
		`INSERT INTO entity_observations (name, record_id, score) VALUES (?, ?, ?)`)
	if err != nil {
		return err
	}
	defer obsStmt.Close()

	now := time.Now()
	for _, rec := range records {
		rec.CreatedAt = now
		entities := strings.Join(rec.Entities, " ")
		if _, err := recStmt.ExecContext(ctx, rec.ID, rec.Source, rec.Content, rec.Sentiment, entities, rec.CreatedAt); err != nil {
			return err
		}
		if _, err := delObsStmt.ExecContext(ctx, rec.ID); err != nil {
			return err
		}
		for _, name := range rec.Entities {
			if _, err := obsStmt.ExecContext(ctx, name, rec.ID, rec.Sentiment); err != nil {
				return err
			}
		}
	}
	return tx.Commit()
}

// GetRecord returns a record by ID.
func (s *SQLiteStorage) GetRecord(ctx context.Context, id string) (*models.Record, error) {
	var rec models.Record
	var entities string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, source, content, sentiment, entities, created_at
		 FROM records WHERE id = ?`, id,
	).Scan(&rec.ID, &rec.Source, &rec.Content, &rec.Sentiment, &entities, &rec.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("record not found: %s", id)
	}
	if err != nil {
		return nil, err
	}
	if entities != "" {
		rec.Entities = strings.Fields(entities)
	}
	return &rec, nil
}

// DeleteRecordsBySource removes all records (and their observations) that
// came from the given source file, returning the deleted record IDs.
func (s *SQLiteStorage) DeleteRecordsBySource(ctx context.Context, source string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM records WHERE source = ?`, source)
	if err != nil {
		return nil, err
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, err
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM entity_observations WHERE record_id IN (SELECT id FROM records WHERE source = ?)`, source); err != nil {
		return nil, err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM records WHERE source = ?`, source); err != nil {
		return nil, err
	}
	return ids, tx.Commit()
}

// EntityStats aggregates observations per entity name: mean score and count,
// keeping entities observed at least minCount times, ordered ascending by
// mean (ties broken by name for stable output).
func (s *SQLiteStorage) EntityStats(ctx context.Context, minCount int) ([]models.EntityStat, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT name, AVG(score), COUNT(*) FROM entity_observations
		 GROUP BY name HAVING COUNT(*) >= ?
		 ORDER BY AVG(score) ASC, name ASC`, minCount)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var stats []models.EntityStat
	for rows.Next() {
		var st models.EntityStat
		if err := rows.Scan(&st.Name, &st.Mean, &st.Count); err != nil {
			return nil, err
		}
		stats = append(stats, st)
	}
	return stats, rows.Err()
}

// SaveExperiment inserts an experiment run.
func (s *SQLiteStorage) SaveExperiment(ctx context.Context, exp *models.Experiment) error {
	positive, err := json.Marshal(exp.PositiveNames)
	if err != nil {
		return fmt.Errorf("failed to marshal positive names: %w", err)
	}
	negative, err := json.Marshal(exp.NegativeNames)
	if err != nil {
		return fmt.Errorf("failed to marshal negative names: %w", err)
	}
	exp.CreatedAt = time.Now()
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO experiments (id, encoder, top_k, n_samples, parametric, seed,
		 positive_names, negative_names, effect_size, p_value, permutations, exhaustive, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		exp.ID, exp.Encoder, exp.TopK, exp.NSamples, exp.Parametric, exp.Seed,
		string(positive), string(negative), exp.EffectSize, exp.PValue,
		exp.Permutations, exp.Exhaustive, exp.CreatedAt,
	)
	return err
}

// GetExperiment returns an experiment by ID.
func (s *SQLiteStorage) GetExperiment(ctx context.Context, id string) (*models.Experiment, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, encoder, top_k, n_samples, parametric, seed,
		 positive_names, negative_names, effect_size, p_value, permutations, exhaustive, created_at
		 FROM experiments WHERE id = ?`, id)
	exp, err := scanExperiment(row.Scan)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("experiment not found: %s", id)
	}
	return exp, err
}

// ListExperiments returns experiments newest first with offset and limit.
func (s *SQLiteStorage) ListExperiments(ctx context.Context, offset, limit int) ([]*models.Experiment, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, encoder, top_k, n_samples, parametric, seed,
		 positive_names, negative_names, effect_size, p_value, permutations, exhaustive, created_at
		 FROM experiments ORDER BY created_at DESC LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var exps []*models.Experiment
	for rows.Next() {
		exp, err := scanExperiment(rows.Scan)
		if err != nil {
			return nil, err
		}
		exps = append(exps, exp)
	}
	return exps, rows.Err()
}

func scanExperiment(scan func(dest ...interface{}) error) (*models.Experiment, error) {
	var exp models.Experiment
	var positive, negative string
	err := scan(&exp.ID, &exp.Encoder, &exp.TopK, &exp.NSamples, &exp.Parametric, &exp.Seed,
		&positive, &negative, &exp.EffectSize, &exp.PValue, &exp.Permutations, &exp.Exhaustive, &exp.CreatedAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(positive), &exp.PositiveNames); err != nil {
		return nil, fmt.Errorf("failed to unmarshal positive names: %w", err)
	}
	if err := json.Unmarshal([]byte(negative), &exp.NegativeNames); err != nil {
		return nil, fmt.Errorf("failed to unmarshal negative names: %w", err)
	}
	return &exp, nil
}

// CountRecords returns the number of stored records.
func (s *SQLiteStorage) CountRecords(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM records`).Scan(&n)
	return n, err
}

// CountObservations returns the number of stored entity observations.
func (s *SQLiteStorage) CountObservations(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM entity_observations`).Scan(&n)
	return n, err
}

// Close closes the database.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}
