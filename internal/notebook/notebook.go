// Package notebook renders notebook-style documents: an ordered sequence of
// markdown, code, and recorded-output cells.
package notebook

import (
	"encoding/json"
	"fmt"
)

// Document is a parsed notebook file.
type Document struct {
	Cells    []Cell   `json:"cells"`
	Metadata Metadata `json:"metadata"`
	Format   int      `json:"nbformat"`
}

// Metadata carries the subset of notebook metadata the renderer cares about.
type Metadata struct {
	Kernelspec struct {
		Language string `json:"language"`
	} `json:"kernelspec"`
	LanguageInfo struct {
		Name string `json:"name"`
	} `json:"language_info"`
}

// Cell is one notebook cell. Cell order in the file is the render order.
type Cell struct {
	Type    string       `json:"cell_type"`
	Source  MultiLine    `json:"source"`
	Outputs []CellOutput `json:"outputs,omitempty"`
}

// CellOutput is a recorded execution output attached to a code cell.
type CellOutput struct {
	Type      string               `json:"output_type"`
	Text      MultiLine            `json:"text,omitempty"`
	Data      map[string]MultiLine `json:"data,omitempty"`
	Name      string               `json:"ename,omitempty"`
	Value     string               `json:"evalue,omitempty"`
	Traceback []string             `json:"traceback,omitempty"`
}

// MultiLine accepts both the string and []string encodings notebook files use
// for source and text fields.
type MultiLine string

// UnmarshalJSON implements json.Unmarshaler.
func (m *MultiLine) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*m = MultiLine(s)
		return nil
	}
	var lines []string
	if err := json.Unmarshal(data, &lines); err != nil {
		return fmt.Errorf("source must be string or string list: %w", err)
	}
	joined := ""
	for _, l := range lines {
		joined += l
	}
	*m = MultiLine(joined)
	return nil
}

// Parse decodes a notebook document.
func Parse(data []byte) (*Document, error) {
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse notebook: %w", err)
	}
	if len(doc.Cells) == 0 {
		return nil, fmt.Errorf("parse notebook: no cells")
	}
	return &doc, nil
}

// Language returns the notebook's code language, defaulting to empty.
func (d *Document) Language() string {
	if d.Metadata.LanguageInfo.Name != "" {
		return d.Metadata.LanguageInfo.Name
	}
	return d.Metadata.Kernelspec.Language
}
