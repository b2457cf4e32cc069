package manifest

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// manifestHeader is the persisted CSV schema. An empty view_id means
// "none"; role defaults to object and split to train when absent.
var manifestHeader = []string{"path", "role", "category", "model_id", "view_id", "split"}

// LoadManifest reads entries from a CSV manifest. Relative paths are
// resolved against base; categories are remapped through categoryMap
// when present.
func LoadManifest(path, base string, categoryMap map[string]string) ([]*Entry, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open manifest: %w", err)
	}
	defer fh.Close()

	reader := csv.NewReader(fh)
	reader.Comment = '#'
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse manifest %s: %w", path, err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("manifest %s is empty", path)
	}

	cols := make(map[string]int, len(records[0]))
	for i, name := range records[0] {
		cols[strings.TrimSpace(strings.ToLower(name))] = i
	}
	for _, required := range []string{"path", "category", "model_id"} {
		if _, ok := cols[required]; !ok {
			return nil, fmt.Errorf("manifest %s missing column %q", path, required)
		}
	}

	field := func(row []string, name string) string {
		idx, ok := cols[name]
		if !ok || idx >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[idx])
	}

	entries := make([]*Entry, 0, len(records)-1)
	for _, row := range records[1:] {
		src := field(row, "path")
		if src == "" {
			continue
		}
		if !filepath.IsAbs(src) {
			src = filepath.Join(base, src)
		}
		role := field(row, "role")
		if role == "" {
			role = RoleObject
		}
		split := field(row, "split")
		if split == "" {
			split = SplitTrain
		}
		entries = append(entries, &Entry{
			Path:     src,
			Role:     role,
			Category: remapCategory(field(row, "category"), categoryMap),
			ModelID:  field(row, "model_id"),
			ViewID:   field(row, "view_id"),
			Split:    split,
		})
	}
	return entries, nil
}

// WriteManifest persists entries as CSV. When base is non-empty, paths
// under base are written relative to it.
func WriteManifest(entries []*Entry, path, base string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create manifest dir: %w", err)
	}
	fh, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create manifest: %w", err)
	}
	defer fh.Close()

	writer := csv.NewWriter(fh)
	if err := writer.Write(manifestHeader); err != nil {
		return err
	}
	for _, entry := range entries {
		src := entry.Path
		if base != "" {
			if rel, err := filepath.Rel(base, entry.Path); err == nil && !strings.HasPrefix(rel, "..") {
				src = rel
			}
		}
		record := []string{src, entry.Role, entry.Category, entry.ModelID, entry.ViewID, entry.Split}
		if err := writer.Write(record); err != nil {
			return err
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("write manifest %s: %w", path, err)
	}
	return nil
}

// LoadCategoryMap reads a category remapping CSV with a src,dst header.
func LoadCategoryMap(path string) (map[string]string, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open category map: %w", err)
	}
	defer fh.Close()

	records, err := csv.NewReader(fh).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse category map %s: %w", path, err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("category map %s is empty", path)
	}
	srcIdx, dstIdx := -1, -1
	for i, name := range records[0] {
		switch strings.TrimSpace(strings.ToLower(name)) {
		case "src":
			srcIdx = i
		case "dst":
			dstIdx = i
		}
	}
	if srcIdx < 0 || dstIdx < 0 {
		return nil, fmt.Errorf("category map %s must have src and dst columns", path)
	}
	mapping := make(map[string]string, len(records)-1)
	for _, row := range records[1:] {
		if srcIdx >= len(row) || dstIdx >= len(row) {
			continue
		}
		mapping[strings.TrimSpace(row[srcIdx])] = strings.TrimSpace(row[dstIdx])
	}
	return mapping, nil
}
