package nlp

import (
	"reflect"
	"testing"
)

func TestFillTemplates(t *testing.T) {
	got, err := FillTemplates([]string{"Ana", "Bob"}, []string{"This is {}.", "{} is here."})
	if err != nil {
		t.Fatalf("FillTemplates() error: %v", err)
	}
	// Outer loop over terms, inner loop over templates.
	want := []string{"This is Ana.", "Ana is here.", "This is Bob.", "Bob is here."}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("FillTemplates() = %v, want %v", got, want)
	}
}

func TestFillTemplatesValidatesPlaceholder(t *testing.T) {
	tests := []struct {
		name     string
		template string
	}{
		{"no placeholder", "This is a sentence."},
		{"two placeholders", "{} met {} yesterday."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := FillTemplates([]string{"Ana"}, []string{tt.template}); err == nil {
				t.Error("expected error, got nil")
			}
		})
	}
}

func TestFillTemplatesEmptyTerms(t *testing.T) {
	got, err := FillTemplates(nil, DefaultTargetTemplates)
	if err != nil {
		t.Fatalf("FillTemplates() error: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("expected no filled templates, got %d", len(got))
	}
}

func TestDefaultTemplatesAreValid(t *testing.T) {
	if _, err := FillTemplates([]string{"Ana"}, DefaultTargetTemplates); err != nil {
		t.Errorf("default target templates invalid: %v", err)
	}
	if len(DefaultPositiveSamples) == 0 || len(DefaultNegativeSamples) == 0 {
		t.Error("default attribute samples must be non-empty")
	}
}
