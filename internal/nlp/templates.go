package nlp

import (
	"fmt"
	"strings"
)

// placeholder is the insertion point marker in target templates.
const placeholder = "{}"

// DefaultTargetTemplates are semantically bleached sentence templates used to
// embed a name with minimal extra content.
var DefaultTargetTemplates = []string{
	"This is {}.",
	"{} is here.",
	"{} is a person.",
	"Here is {}.",
	"{} is there.",
}

// DefaultPositiveSamples are pleasant-attribute exemplar sentences.
var DefaultPositiveSamples = []string{
	"That was a wonderful experience.",
	"This is truly delightful.",
	"Everyone felt joyful and at peace.",
	"It was a beautiful, happy moment.",
	"They shared love and laughter.",
	"What a pleasant surprise that was.",
	"The day was filled with warmth and friendship.",
	"It felt like a little miracle.",
}

// DefaultNegativeSamples are unpleasant-attribute exemplar sentences.
var DefaultNegativeSamples = []string{
	"That was a horrible experience.",
	"This is truly dreadful.",
	"Everyone felt miserable and afraid.",
	"It was an ugly, painful moment.",
	"They endured hatred and grief.",
	"What a nasty shock that was.",
	"The day was filled with anger and despair.",
	"It felt like a small disaster.",
}

// FillTemplates produces one sentence per (term, template) pair: the outer
// loop runs over terms, the inner loop over templates. Every template must
// contain exactly one {} insertion point.
func FillTemplates(terms, templates []string) ([]string, error) {
	for i, tpl := range templates {
		if n := strings.Count(tpl, placeholder); n != 1 {
			return nil, fmt.Errorf("template %d has %d insertion points, want exactly 1: %q", i, n, tpl)
		}
	}
	filled := make([]string, 0, len(terms)*len(templates))
	for _, term := range terms {
		for _, tpl := range templates {
			filled = append(filled, strings.Replace(tpl, placeholder, term, 1))
		}
	}
	return filled, nil
}
