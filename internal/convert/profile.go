// Package convert turns a manifest of point cloud entries into one of
// two fixed on-disk dataset layouts, with optional packing into a
// key-value store, and validates the result. Two layout profiles share
// a single preparation pipeline: the paired (PCN style) layout with
// partial/complete pairs and the flat (ShapeNet style) layout with one
// cloud per model.
package convert

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/banshee-data/pcdset/internal/manifest"
	"github.com/banshee-data/pcdset/internal/taxonomy"
)

// Profile is the layout strategy: where each entry lands on disk, how
// many points each role gets, the key-value store key, and any
// layout-specific post-run artifacts.
type Profile interface {
	// Name identifies the profile in logs and store metadata.
	Name() string

	// TargetCount returns the output point count for a role.
	TargetCount(role string) int

	// OutputPath returns the output file location for an entry under
	// the dataset root.
	OutputPath(root string, entry *manifest.Entry) string

	// Key returns the deterministic key-value store key for an entry.
	Key(entry *manifest.Entry) string

	// MetaPath returns the per-model metadata record location, or ""
	// when the layout has no metadata records.
	MetaPath(root string, entry *manifest.Entry) string

	// PostRun writes layout-specific artifacts after the worker pool
	// has drained (split membership files, derived taxonomy).
	PostRun(root string, result *Result, opts Options) error
}

// PairedProfile implements the PCN-style layout:
// root/split/partial/category/model_id/view_id.ext and
// root/split/complete/category/model_id.ext.
type PairedProfile struct {
	PartialN  int
	CompleteN int
	Ext       string
}

// NewPairedProfile returns a paired profile with the conventional
// 2048/16384 point counts and .ply output.
func NewPairedProfile() *PairedProfile {
	return &PairedProfile{PartialN: 2048, CompleteN: 16384, Ext: "ply"}
}

func (p *PairedProfile) Name() string { return "pcn" }

func (p *PairedProfile) TargetCount(role string) int {
	if role == manifest.RolePartial {
		return p.PartialN
	}
	return p.CompleteN
}

func (p *PairedProfile) ext() string {
	if p.Ext == "" {
		return "ply"
	}
	return strings.TrimPrefix(p.Ext, ".")
}

func (p *PairedProfile) OutputPath(root string, entry *manifest.Entry) string {
	category := manifest.Sanitize(entry.Category)
	model := manifest.Sanitize(entry.ModelID)
	if entry.Role == manifest.RolePartial {
		view := manifest.Sanitize(entry.ViewID)
		return filepath.Join(root, entry.Split, "partial", category, model, view+"."+p.ext())
	}
	return filepath.Join(root, entry.Split, "complete", category, model+"."+p.ext())
}

func (p *PairedProfile) Key(entry *manifest.Entry) string {
	// Complete entries have no view; keep the trailing segment empty
	// instead of sanitizing it into a placeholder.
	view := entry.ViewID
	if view != "" {
		view = manifest.Sanitize(view)
	}
	return fmt.Sprintf("%s/%s/%s/%s", entry.Role, manifest.Sanitize(entry.Category), manifest.Sanitize(entry.ModelID), view)
}

func (p *PairedProfile) MetaPath(string, *manifest.Entry) string { return "" }

// PostRun is a no-op: the paired layout has no membership files.
func (p *PairedProfile) PostRun(string, *Result, Options) error { return nil }

// FlatProfile implements the ShapeNet-style layout:
// root/split/category/model_id/<basename>_<N>.<ext>.
type FlatProfile struct {
	PointsN  int
	Ext      string
	Basename string
}

// NewFlatProfile returns a flat profile with 2048 points and the
// conventional points_2048.ply filename.
func NewFlatProfile() *FlatProfile {
	return &FlatProfile{PointsN: 2048, Ext: "ply", Basename: "points"}
}

func (p *FlatProfile) Name() string { return "shapenet" }

func (p *FlatProfile) TargetCount(string) int { return p.PointsN }

func (p *FlatProfile) ext() string {
	if p.Ext == "" {
		return "ply"
	}
	return strings.TrimPrefix(p.Ext, ".")
}

func (p *FlatProfile) basename() string {
	if p.Basename == "" {
		return "points"
	}
	return p.Basename
}

// FileName returns the fixed output filename stem for this profile.
func (p *FlatProfile) FileName() string {
	return fmt.Sprintf("%s_%d.%s", p.basename(), p.PointsN, p.ext())
}

func (p *FlatProfile) OutputPath(root string, entry *manifest.Entry) string {
	category := manifest.Sanitize(entry.Category)
	model := manifest.Sanitize(entry.ModelID)
	return filepath.Join(root, entry.Split, category, model, p.FileName())
}

func (p *FlatProfile) Key(entry *manifest.Entry) string {
	return fmt.Sprintf("object/%s/%s", manifest.Sanitize(entry.Category), manifest.Sanitize(entry.ModelID))
}

func (p *FlatProfile) MetaPath(root string, entry *manifest.Entry) string {
	return filepath.Join(filepath.Dir(p.OutputPath(root, entry)), "meta.json")
}

// PostRun writes one sorted membership file per split under
// root/splits and derives a trivial taxonomy when requested and not
// already present.
func (p *FlatProfile) PostRun(root string, result *Result, opts Options) error {
	splitsDir := filepath.Join(root, "splits")
	for split, tokens := range result.Splits {
		if len(tokens) == 0 {
			continue
		}
		sorted := make([]string, 0, len(tokens))
		for token := range tokens {
			sorted = append(sorted, token)
		}
		sort.Strings(sorted)

		if err := os.MkdirAll(splitsDir, 0o755); err != nil {
			return fmt.Errorf("create splits dir: %w", err)
		}
		path := filepath.Join(splitsDir, split+".txt")
		if err := os.WriteFile(path, []byte(strings.Join(sorted, "\n")+"\n"), 0o644); err != nil {
			return fmt.Errorf("write split file %s: %w", path, err)
		}
	}

	if opts.TaxonomyOut != "" {
		if _, err := os.Stat(opts.TaxonomyOut); os.IsNotExist(err) {
			mapping := taxonomy.Build(result.Categories)
			if err := taxonomy.Save(mapping, opts.TaxonomyOut); err != nil {
				return fmt.Errorf("write taxonomy: %w", err)
			}
			log.Printf("wrote taxonomy with %d categories to %s", len(mapping), opts.TaxonomyOut)
		}
	}
	return nil
}

var (
	_ Profile = (*PairedProfile)(nil)
	_ Profile = (*FlatProfile)(nil)
)
