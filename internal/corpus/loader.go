// Package corpus loads ordered text records from corpus files. A record is
// one non-empty line of extracted text, which matches corpora distributed
// one sentence per line.
package corpus

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"

	"github.com/hyperjump/katayori/internal/extract"
	"github.com/hyperjump/katayori/internal/models"
)

// Loader reads corpus files and splits them into records.
type Loader struct {
	extractor  *extract.Extractor
	extensions map[string]struct{}
}

// NewLoader creates a loader accepting files with the given extensions
// (including the leading dot). Empty extensions accepts every file.
func NewLoader(extensions []string) *Loader {
	exts := make(map[string]struct{}, len(extensions))
	for _, e := range extensions {
		exts[strings.ToLower(e)] = struct{}{}
	}
	return &Loader{extractor: extract.NewExtractor(), extensions: exts}
}

// Accepts reports whether the loader would read the file at path.
func (l *Loader) Accepts(path string) bool {
	if len(l.extensions) == 0 {
		return true
	}
	_, ok := l.extensions[strings.ToLower(filepath.Ext(path))]
	return ok
}

// LoadFile extracts text from one file and returns its records in order.
func (l *Loader) LoadFile(path string) ([]*models.Record, error) {
	text, err := l.extractor.Extract(path)
	if err != nil {
		return nil, fmt.Errorf("extract %s: %w", path, err)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	lines := splitRecords(text)
	records := make([]*models.Record, 0, len(lines))
	for i, line := range lines {
		records = append(records, &models.Record{
			ID:      RecordID(abs, i),
			Source:  abs,
			Content: line,
		})
	}
	return records, nil
}

// LoadDirectory walks root recursively, reading accepted files in sorted
// path order so record order is stable across runs. limit > 0 caps the total
// number of records returned.
func (l *Loader) LoadDirectory(root string, limit int) ([]*models.Record, error) {
	var paths []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if l.Accepts(path) {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk corpus dir %s: %w", root, err)
	}
	sort.Strings(paths)

	var records []*models.Record
	for _, path := range paths {
		fileRecords, err := l.LoadFile(path)
		if err != nil {
			return nil, err
		}
		records = append(records, fileRecords...)
		if limit > 0 && len(records) >= limit {
			return records[:limit], nil
		}
	}
	return records, nil
}

// RecordID returns a stable record ID from the source path and line index.
// The same file and line always yield the same ID, so rescans overwrite
// rather than duplicate.
func RecordID(source string, line int) string {
	hash := sha256.Sum256([]byte(fmt.Sprintf("%s#%d", filepath.Clean(source), line)))
	return "rec:" + hex.EncodeToString(hash[:16])
}

// splitRecords splits extracted text into trimmed non-empty lines.
func splitRecords(text string) []string {
	var out []string
	for _, line := range strings.Split(text, "\n") {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
