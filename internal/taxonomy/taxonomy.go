// Package taxonomy loads and persists category taxonomies: mappings
// from a synset identifier to a human readable label. CSV (synset,label
// header) and JSON object forms are supported, selected by extension.
package taxonomy

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Load reads a taxonomy mapping from path. The format is derived from
// the file extension: .json for a JSON object, anything else CSV.
func Load(path string) (map[string]string, error) {
	if strings.EqualFold(filepath.Ext(path), ".json") {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read taxonomy: %w", err)
		}
		mapping := make(map[string]string)
		if err := json.Unmarshal(data, &mapping); err != nil {
			return nil, fmt.Errorf("parse taxonomy %s: %w", path, err)
		}
		return mapping, nil
	}

	fh, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open taxonomy: %w", err)
	}
	defer fh.Close()

	records, err := csv.NewReader(fh).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse taxonomy %s: %w", path, err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("taxonomy %s is empty", path)
	}
	synIdx, labelIdx := -1, -1
	for i, name := range records[0] {
		switch strings.TrimSpace(strings.ToLower(name)) {
		case "synset":
			synIdx = i
		case "label":
			labelIdx = i
		}
	}
	if synIdx < 0 {
		return nil, fmt.Errorf("taxonomy %s must have a synset column", path)
	}
	mapping := make(map[string]string, len(records)-1)
	for _, row := range records[1:] {
		if synIdx >= len(row) {
			continue
		}
		label := ""
		if labelIdx >= 0 && labelIdx < len(row) {
			label = strings.TrimSpace(row[labelIdx])
		}
		mapping[strings.TrimSpace(row[synIdx])] = label
	}
	return mapping, nil
}

// Save persists a taxonomy to path, creating parent directories. JSON
// output is sorted and indented; CSV rows are written in sorted synset
// order so output is reproducible.
func Save(mapping map[string]string, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create taxonomy dir: %w", err)
	}
	if strings.EqualFold(filepath.Ext(path), ".json") {
		data, err := json.MarshalIndent(mapping, "", "  ")
		if err != nil {
			return err
		}
		return os.WriteFile(path, append(data, '\n'), 0o644)
	}

	fh, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create taxonomy: %w", err)
	}
	defer fh.Close()

	writer := csv.NewWriter(fh)
	if err := writer.Write([]string{"synset", "label"}); err != nil {
		return err
	}
	for _, synset := range sortedKeys(mapping) {
		if err := writer.Write([]string{synset, mapping[synset]}); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// Build creates a trivial taxonomy mapping each category to itself.
func Build(categories []string) map[string]string {
	mapping := make(map[string]string, len(categories))
	for _, category := range categories {
		mapping[category] = category
	}
	return mapping
}

func sortedKeys(mapping map[string]string) []string {
	keys := make([]string, 0, len(mapping))
	for key := range mapping {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
