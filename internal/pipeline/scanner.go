// Package pipeline wires the stages together: scanning a corpus into storage
// and the context index, and running bias experiments over the stored scores.
package pipeline

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"

	"go.uber.org/zap"

	"github.com/hyperjump/katayori/internal/config"
	"github.com/hyperjump/katayori/internal/corpus"
	"github.com/hyperjump/katayori/internal/keyword"
	"github.com/hyperjump/katayori/internal/models"
	"github.com/hyperjump/katayori/internal/nlp"
	"github.com/hyperjump/katayori/internal/storage"
)

// Scanner annotates corpus records and writes them to storage and the
// context index.
type Scanner struct {
	storage   storage.Storage
	index     keyword.ContextIndex
	annotator *nlp.Annotator
	loader    *corpus.Loader
	workers   int
	batchSize int
	logger    *zap.Logger // optional; when set, logs progress
}

// ScannerOption configures a Scanner.
type ScannerOption func(*Scanner)

// WithScanLogger sets a logger for scan progress output.
func WithScanLogger(l *zap.Logger) ScannerOption {
	return func(s *Scanner) { s.logger = l }
}

// NewScanner creates a scanner with the given dependencies.
func NewScanner(
	store storage.Storage,
	index keyword.ContextIndex,
	annotator *nlp.Annotator,
	loader *corpus.Loader,
	cfg *config.ScanConfig,
	opts ...ScannerOption,
) *Scanner {
	s := &Scanner{
		storage:   store,
		index:     index,
		annotator: annotator,
		loader:    loader,
		workers:   cfg.Workers,
		batchSize: cfg.BatchSize,
	}
	if s.workers < 1 {
		s.workers = 1
	}
	if s.batchSize < 1 {
		s.batchSize = 256
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ScanFile loads one corpus file, annotates its records, and stores them.
// Records previously scanned from the same file are replaced, including lines
// that no longer exist. Returns the number of records stored.
func (s *Scanner) ScanFile(ctx context.Context, path string) (int, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	if err := s.RemoveSource(ctx, abs); err != nil {
		return 0, err
	}
	records, err := s.loader.LoadFile(abs)
	if err != nil {
		return 0, err
	}
	if err := s.ScanRecords(ctx, records); err != nil {
		return 0, err
	}
	if s.logger != nil {
		s.logger.Debug("scanner file scanned", zap.String("path", abs), zap.Int("records", len(records)))
	}
	return len(records), nil
}

// ScanDirectory loads a corpus directory (recursive, sorted path order) and
// scans every accepted file. limit > 0 caps the number of records read.
// Returns the number of records stored.
func (s *Scanner) ScanDirectory(ctx context.Context, dir string, limit int) (int, error) {
	records, err := s.loader.LoadDirectory(dir, limit)
	if err != nil {
		return 0, err
	}
	if err := s.ScanRecords(ctx, records); err != nil {
		return 0, err
	}
	return len(records), nil
}

// ScanRecords annotates records concurrently, then stores and indexes them in
// batches. Record order in storage follows the input order via record IDs.
func (s *Scanner) ScanRecords(ctx context.Context, records []*models.Record) error {
	if len(records) == 0 {
		return nil
	}

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		firstErr error
	)
	jobs := make(chan *models.Record)
	for w := 0; w < s.workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for rec := range jobs {
				ann, err := s.annotator.Annotate(rec.Content)
				if err != nil {
					mu.Lock()
					if firstErr == nil {
						firstErr = fmt.Errorf("annotate record %s: %w", rec.ID, err)
					}
					mu.Unlock()
					continue
				}
				rec.Sentiment = ann.Polarity
				rec.Entities = ann.People
			}
		}()
	}

feed:
	for _, rec := range records {
		select {
		case <-ctx.Done():
			mu.Lock()
			if firstErr == nil {
				firstErr = ctx.Err()
			}
			mu.Unlock()
			break feed
		case jobs <- rec:
		}
	}
	close(jobs)
	wg.Wait()
	if firstErr != nil {
		return firstErr
	}

	for start := 0; start < len(records); start += s.batchSize {
		end := start + s.batchSize
		if end > len(records) {
			end = len(records)
		}
		batch := records[start:end]
		if err := s.storage.BatchUpsertRecords(ctx, batch); err != nil {
			return fmt.Errorf("store records: %w", err)
		}
		for _, rec := range batch {
			if err := s.index.Index(ctx, rec.ID, rec); err != nil {
				return fmt.Errorf("index record %s: %w", rec.ID, err)
			}
		}
		if s.logger != nil {
			s.logger.Info("scanner progress",
				zap.Int("stored", end),
				zap.Int("total", len(records)))
		}
	}
	return nil
}

// RemoveSource deletes every record scanned from the given file, from both
// storage and the context index. Used when a corpus file is removed.
func (s *Scanner) RemoveSource(ctx context.Context, path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	deleted, err := s.storage.DeleteRecordsBySource(ctx, abs)
	if err != nil {
		return fmt.Errorf("delete records for %s: %w", abs, err)
	}
	for _, id := range deleted {
		if err := s.index.Delete(ctx, id); err != nil {
			return fmt.Errorf("unindex record %s: %w", id, err)
		}
	}
	if s.logger != nil && len(deleted) > 0 {
		s.logger.Debug("scanner source removed", zap.String("path", abs), zap.Int("records", len(deleted)))
	}
	return nil
}

// Accepts reports whether the scanner's loader would read the file at path.
func (s *Scanner) Accepts(path string) bool {
	return s.loader.Accepts(path)
}
