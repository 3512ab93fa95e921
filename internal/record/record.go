// Package record defines the normalized unit of handoff between the
// producer (share surface) and the consumer (importer). A record is
// finalized once and never mutated afterwards; corrections require a
// new record.
package record

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// PlaceholderTitle is substituted when no attachment supplied a title.
const PlaceholderTitle = "Shared item"

// TitleMaxChars bounds a title derived from free-form text.
const TitleMaxChars = 32

// Record is the normalized result of one sharing session. Optional
// fields are empty strings when unset and omitted from the wire form.
type Record struct {
	Title     string    `json:"title"`
	Subtitle  string    `json:"subtitle,omitempty"`
	Text      string    `json:"text,omitempty"`
	URL       string    `json:"url,omitempty"`
	ImagePath string    `json:"imagePath,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// Finalize applies the title fallback and stamps CreatedAt. It must be
// called exactly once, after all attachment results have been merged.
func (r *Record) Finalize(now time.Time) {
	if strings.TrimSpace(r.Title) == "" {
		r.Title = PlaceholderTitle
	}
	r.CreatedAt = now.UTC()
}

// Marshal encodes the record in its wire form.
func Marshal(r Record) ([]byte, error) {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encoding record: %w", err)
	}
	return data, nil
}

// Unmarshal decodes a wire-form record and validates the invariants the
// producer guarantees: a non-empty title and a path-free payload
// reference.
func Unmarshal(data []byte) (Record, error) {
	var r Record
	if err := json.Unmarshal(data, &r); err != nil {
		return Record{}, fmt.Errorf("decoding record: %w", err)
	}
	if strings.TrimSpace(r.Title) == "" {
		return Record{}, fmt.Errorf("decoding record: title is empty")
	}
	if strings.ContainsAny(r.ImagePath, "/\\") {
		return Record{}, fmt.Errorf("decoding record: imagePath %q is not a bare filename", r.ImagePath)
	}
	return r, nil
}

// TitleFromText derives a title from the leading characters of shared
// text, respecting rune boundaries.
func TitleFromText(text string) string {
	text = strings.TrimSpace(text)
	runes := []rune(text)
	if len(runes) > TitleMaxChars {
		runes = runes[:TitleMaxChars]
	}
	return string(runes)
}
