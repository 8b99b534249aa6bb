// Package testdata holds a labeled corpus of support-bundle log lines used
// to validate the default catalog.
package testdata

import (
	_ "embed"
	"encoding/json"
	"fmt"
)

//go:embed corpus.json
var corpusJSON []byte

// CorpusEntry is a log line with the rule the default catalog must pick for
// it. An empty ExpectedPattern means the line must produce no event.
type CorpusEntry struct {
	Component        string `json:"component"`
	Raw              string `json:"raw"`
	ExpectedPattern  string `json:"expected_pattern"`
	ExpectedCategory string `json:"expected_category"`
	ExpectedSeverity string `json:"expected_severity"`
	Description      string `json:"description"`
}

// LoadCorpus parses the embedded corpus.json and returns all entries.
func LoadCorpus() ([]CorpusEntry, error) {
	var entries []CorpusEntry
	if err := json.Unmarshal(corpusJSON, &entries); err != nil {
		return nil, fmt.Errorf("parse corpus.json: %w", err)
	}
	return entries, nil
}
