package keyword

import (
	"context"
	"fmt"
	"os"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	blevequery "github.com/blevesearch/bleve/v2/search/query"

	"github.com/hyperjump/katayori/internal/models"
)

// BleveIndex implements ContextIndex using Bleve.
type BleveIndex struct {
	index bleve.Index
}

// indexedRecord is the shape Bleve sees. Entities are indexed as a separate
// field so a name lookup can prefer records where the name was recognized as
// a person over records that merely contain the word.
type indexedRecord struct {
	Content  string `json:"content"`
	Entities string `json:"entities"`
	Source   string `json:"source"`
}

// NewBleveIndex creates or opens a Bleve index at path. An existing index is
// opened and reused so incremental scans don't force a full re-index; if the
// mapping changes in code, remove the index directory.
func NewBleveIndex(path string) (*BleveIndex, error) {
	im := bleve.NewIndexMapping()

	docMapping := bleve.NewDocumentMapping()
	textFieldMapping := bleve.NewTextFieldMapping()
	// Standard analyzer (lowercase + tokenize, no stemming) so a name query
	// like "alice" matches "Alice" exactly and is not stemmed away.
	textFieldMapping.Analyzer = standard.Name
	docMapping.AddFieldMappingsAt("content", textFieldMapping)
	docMapping.AddFieldMappingsAt("entities", textFieldMapping)
	sourceFieldMapping := bleve.NewKeywordFieldMapping()
	docMapping.AddFieldMappingsAt("source", sourceFieldMapping)
	im.AddDocumentMapping("record", docMapping)
	im.DefaultType = "record"
	im.DefaultMapping = docMapping

	if _, err := os.Stat(path); err == nil {
		index, openErr := bleve.Open(path)
		if openErr != nil {
			return nil, fmt.Errorf("failed to open Bleve index: %w", openErr)
		}
		return &BleveIndex{index: index}, nil
	}

	index, err := bleve.New(path, im)
	if err != nil {
		return nil, fmt.Errorf("failed to create Bleve index: %w", err)
	}
	return &BleveIndex{index: index}, nil
}

// Index indexes a record by id.
func (b *BleveIndex) Index(ctx context.Context, id string, record *models.Record) error {
	entities := ""
	for i, name := range record.Entities {
		if i > 0 {
			entities += " "
		}
		entities += name
	}
	return b.index.Index(id, &indexedRecord{
		Content:  record.Content,
		Entities: entities,
		Source:   record.Source,
	})
}

// Contexts returns up to limit records mentioning name. Entity-field hits are
// boosted over plain content hits so recognized mentions rank first.
func (b *BleveIndex) Contexts(ctx context.Context, name string, limit int) ([]*ContextResult, error) {
	eq := bleve.NewMatchQuery(name)
	eq.SetField("entities")
	eq.SetBoost(2.0)
	cq := bleve.NewMatchQuery(name)
	cq.SetField("content")
	q := bleve.NewDisjunctionQuery([]blevequery.Query{eq, cq}...)

	search := bleve.NewSearchRequest(q)
	search.Size = limit
	results, err := b.index.Search(search)
	if err != nil {
		return nil, fmt.Errorf("Bleve search failed: %w", err)
	}
	out := make([]*ContextResult, len(results.Hits))
	for i, hit := range results.Hits {
		out[i] = &ContextResult{ID: hit.ID, Score: hit.Score}
	}
	return out, nil
}

// Delete removes a record from the index.
func (b *BleveIndex) Delete(ctx context.Context, id string) error {
	return b.index.Delete(id)
}

// DocCount returns the total number of indexed records.
func (b *BleveIndex) DocCount() (uint64, error) {
	return b.index.DocCount()
}

// Close closes the Bleve index.
func (b *BleveIndex) Close() error {
	return b.index.Close()
}
