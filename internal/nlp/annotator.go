// Package nlp provides the linguistic stage of the pipeline: person-name
// extraction, per-record sentiment polarity, score aggregation per entity,
// and sentence-template filling.
package nlp

import (
	"fmt"
	"strings"

	"github.com/drankou/go-vader/vader"
	"github.com/jdkato/prose/v2"

	"github.com/hyperjump/katayori/internal/models"
)

// DefaultBlocklist holds entity strings the tagger labels as PERSON but that
// are not usable names (pronouns and tokenizer artifacts).
var DefaultBlocklist = []string{"he", "she", "his", "hers", "they", "their", "that's-"}

// Annotator extracts person names and a compound sentiment polarity from raw
// text records. Safe for concurrent use once constructed.
type Annotator struct {
	sia       vader.SentimentIntensityAnalyzer
	blocklist map[string]struct{}
}

// NewAnnotator creates an annotator. blocklist entries are matched
// case-insensitively; nil uses DefaultBlocklist.
func NewAnnotator(blocklist []string) (*Annotator, error) {
	if blocklist == nil {
		blocklist = DefaultBlocklist
	}
	a := &Annotator{blocklist: make(map[string]struct{}, len(blocklist))}
	for _, w := range blocklist {
		a.blocklist[strings.ToLower(w)] = struct{}{}
	}
	if err := a.sia.Init(); err != nil {
		return nil, fmt.Errorf("init sentiment analyzer: %w", err)
	}
	return a, nil
}

// Annotate runs NER and sentiment over text. People contains the usable
// person names (PERSON label, single token, not blocklisted); Polarity is
// the mean compound score over the record's sentences, in [-1, 1].
func (a *Annotator) Annotate(text string) (*models.Annotation, error) {
	doc, err := prose.NewDocument(text)
	if err != nil {
		return nil, fmt.Errorf("nlp document: %w", err)
	}

	var people []string
	for _, ent := range doc.Entities() {
		if ent.Label != "PERSON" {
			continue
		}
		if name, ok := a.usableName(ent.Text); ok {
			people = append(people, name)
		}
	}

	var compounds []float64
	for _, sent := range doc.Sentences() {
		scores := a.sia.PolarityScores(sent.Text)
		compounds = append(compounds, scores["compound"])
	}
	polarity := 0.0
	if len(compounds) > 0 {
		var sum float64
		for _, c := range compounds {
			sum += c
		}
		polarity = sum / float64(len(compounds))
	}

	return &models.Annotation{People: people, Polarity: polarity}, nil
}

// usableName filters an entity string down to a single-token, non-blocklisted
// name. Multi-word spans are rejected so scores aggregate per first name, the
// same unit the templates insert.
func (a *Annotator) usableName(text string) (string, bool) {
	name := strings.TrimSpace(text)
	if name == "" || strings.ContainsAny(name, " \t\n") {
		return "", false
	}
	if _, blocked := a.blocklist[strings.ToLower(name)]; blocked {
		return "", false
	}
	return name, true
}
