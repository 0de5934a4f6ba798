// Package keyword provides the full-text index over corpus records, used to
// pull the contexts an entity name appears in.
package keyword

import (
	"context"

	"github.com/hyperjump/katayori/internal/models"
)

// ContextResult is one record hit for an entity-context lookup.
type ContextResult struct {
	ID    string  `json:"id"`
	Score float64 `json:"score"`
}

// ContextIndex indexes record text so the sentences mentioning an entity can
// be retrieved without rescanning the corpus.
type ContextIndex interface {
	Index(ctx context.Context, id string, record *models.Record) error
	Delete(ctx context.Context, id string) error
	// Contexts returns up to limit records mentioning name, best match first.
	Contexts(ctx context.Context, name string, limit int) ([]*ContextResult, error)
	DocCount() (uint64, error)
	Close() error
}
