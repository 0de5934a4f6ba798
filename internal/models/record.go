// Package models defines core data structures for corpus records, entity
// sentiment statistics, and bias experiments.
package models

import "time"

// Record is one corpus text record (typically a single sentence or line)
// together with the annotations attached during a scan.
type Record struct {
	ID        string    `json:"id" db:"id"`
	Source    string    `json:"source" db:"source"`
	Content   string    `json:"content" db:"content"`
	Sentiment float64   `json:"sentiment" db:"sentiment"`
	Entities  []string  `json:"entities,omitempty" db:"-"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// Annotation is the NLP result for one record: the person names mentioned
// and the record-level polarity (mean compound score over its sentences).
type Annotation struct {
	People   []string
	Polarity float64
}

// EntityStat is the aggregated contextual sentiment for one entity name.
type EntityStat struct {
	Name  string  `json:"name"`
	Mean  float64 `json:"mean"`
	Count int     `json:"count"`
}
