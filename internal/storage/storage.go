// Package storage defines persistence for scanned corpus records, per-entity
// sentiment observations, and experiment runs.
package storage

import (
	"context"

	"github.com/hyperjump/katayori/internal/models"
)

// Storage defines record, observation, and experiment persistence.
type Storage interface {
	// Record operations. Upserts are keyed by record ID so rescanning a
	// file overwrites its rows instead of duplicating them.
	BatchUpsertRecords(ctx context.Context, records []*models.Record) error
	GetRecord(ctx context.Context, id string) (*models.Record, error)
	DeleteRecordsBySource(ctx context.Context, source string) ([]string, error)

	// Entity aggregation over stored observations.
	EntityStats(ctx context.Context, minCount int) ([]models.EntityStat, error)

	// Experiment runs.
	SaveExperiment(ctx context.Context, exp *models.Experiment) error
	GetExperiment(ctx context.Context, id string) (*models.Experiment, error)
	ListExperiments(ctx context.Context, offset, limit int) ([]*models.Experiment, error)

	// Stats
	CountRecords(ctx context.Context) (int64, error)
	CountObservations(ctx context.Context) (int64, error)

	Close() error
}
