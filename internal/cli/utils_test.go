package cli

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/hyperjump/katayori/internal/models"
)

func sampleExperiment() *models.Experiment {
	return &models.Experiment{
		ID:            "exp-1",
		Encoder:       "mock",
		TopK:          2,
		NSamples:      1000,
		Seed:          42,
		PositiveNames: []string{"Alice", "Carol"},
		NegativeNames: []string{"Eve", "Mallory"},
		EffectSize:    1.2345,
		PValue:        0.0312,
		Permutations:  1000,
		CreatedAt:     time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestParseOutputFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    OutputFormat
		wantErr bool
	}{
		{"", OutputText, false},
		{"text", OutputText, false},
		{"json", OutputJSON, false},
		{"xml", "", true},
	}
	for _, tt := range tests {
		got, err := ParseOutputFormat(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseOutputFormat(%q) error = %v", tt.in, err)
		}
		if got != tt.want {
			t.Errorf("ParseOutputFormat(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestWriteExperimentText(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteExperiment(&buf, sampleExperiment(), OutputText); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{"exp-1", "1.2345", "0.031200", "Alice", "Mallory"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestWriteExperimentJSON(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteExperiment(&buf, sampleExperiment(), OutputJSON); err != nil {
		t.Fatal(err)
	}
	var exp models.Experiment
	if err := json.Unmarshal(buf.Bytes(), &exp); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if exp.ID != "exp-1" || exp.EffectSize != 1.2345 {
		t.Errorf("round trip = %+v", exp)
	}
}

func TestWriteExperimentsEmpty(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteExperiments(&buf, nil, OutputText); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "no experiments") {
		t.Errorf("output = %q", buf.String())
	}
}

func TestWriteEntityStats(t *testing.T) {
	stats := []models.EntityStat{
		{Name: "Mallory", Mean: -0.52, Count: 4},
		{Name: "Alice", Mean: 0.81, Count: 7},
	}
	var buf bytes.Buffer
	if err := WriteEntityStats(&buf, stats, OutputText); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	if !strings.Contains(out, "Mallory") || !strings.Contains(out, "Alice") {
		t.Errorf("output = %q", out)
	}
	// Mallory listed before Alice (input order preserved).
	if strings.Index(out, "Mallory") > strings.Index(out, "Alice") {
		t.Error("expected input order to be preserved")
	}
}

func TestWriteContexts(t *testing.T) {
	contexts := []ContextLine{
		{ID: "rec:1", Source: "/c/a.txt", Content: "Alice smiled warmly.", Score: 1.5},
	}
	var buf bytes.Buffer
	if err := WriteContexts(&buf, "Alice", contexts, OutputText); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	if !strings.Contains(out, "Alice smiled warmly.") || !strings.Contains(out, "/c/a.txt") {
		t.Errorf("output = %q", out)
	}

	var empty bytes.Buffer
	if err := WriteContexts(&empty, "Bob", nil, OutputText); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(empty.String(), "no contexts") {
		t.Errorf("empty output = %q", empty.String())
	}
}
