package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
)

// fileConfig mirrors the pipeline flags as a JSON document. All fields
// are pointers so a partial config only touches what it names.
type fileConfig struct {
	Normalize    *string  `json:"normalize,omitempty"`
	Center       *bool    `json:"center,omitempty"`
	Dedup        *bool    `json:"dedup,omitempty"`
	FPS          *bool    `json:"fps,omitempty"`
	Voxel        *float64 `json:"voxel,omitempty"`
	Workers      *int     `json:"workers,omitempty"`
	Seed         *int64   `json:"seed,omitempty"`
	Overwrite    *bool    `json:"overwrite,omitempty"`
	SaveAttrs    *bool    `json:"save_attrs,omitempty"`
	SaveMeta     *bool    `json:"save_meta,omitempty"`
	ToKV         *bool    `json:"to_kv,omitempty"`
	KVCapacityGB *int     `json:"kv_capacity_gb,omitempty"`
	TaxonomyOut  *string  `json:"taxonomy_out,omitempty"`
}

const maxConfigSize = 1 << 20

// loadConfig merges a JSON config file into the pipeline options.
// Flags set explicitly on the command line win over the file.
func (p *pipelineFlags) loadConfig(fs *flag.FlagSet) error {
	if p.configPath == "" {
		return nil
	}
	cleanPath := filepath.Clean(p.configPath)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return fmt.Errorf("config file must have .json extension, got %q", ext)
	}
	info, err := os.Stat(cleanPath)
	if err != nil {
		return fmt.Errorf("stat config file: %w", err)
	}
	if info.Size() > maxConfigSize {
		return fmt.Errorf("config file too large: %d bytes (max %d)", info.Size(), maxConfigSize)
	}
	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	var cfg fileConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return fmt.Errorf("parse config file %s: %w", cleanPath, err)
	}

	set := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })

	if cfg.Normalize != nil && !set["normalize"] {
		p.opts.Normalize = *cfg.Normalize
	}
	if cfg.Center != nil && !set["center"] {
		p.opts.Center = *cfg.Center
	}
	if cfg.Dedup != nil && !set["dedup"] {
		p.opts.Dedup = *cfg.Dedup
	}
	if cfg.FPS != nil && !set["fps"] {
		p.opts.FPS = *cfg.FPS
	}
	if cfg.Voxel != nil && !set["voxel"] {
		p.opts.Voxel = *cfg.Voxel
	}
	if cfg.Workers != nil && !set["workers"] {
		p.opts.Workers = *cfg.Workers
	}
	if cfg.Seed != nil && !set["seed"] {
		p.opts.Seed = *cfg.Seed
	}
	if cfg.Overwrite != nil && !set["overwrite"] {
		p.opts.Overwrite = *cfg.Overwrite
	}
	if cfg.SaveAttrs != nil && !set["save-attrs"] {
		p.opts.SaveAttrs = *cfg.SaveAttrs
	}
	if cfg.SaveMeta != nil && !set["save-meta"] {
		p.opts.SaveMeta = *cfg.SaveMeta
	}
	if cfg.ToKV != nil && !set["to-kv"] {
		p.opts.ToKV = *cfg.ToKV
	}
	if cfg.KVCapacityGB != nil && !set["kv-capacity-gb"] {
		p.opts.KVCapacityGB = *cfg.KVCapacityGB
	}
	if cfg.TaxonomyOut != nil && !set["taxonomy-out"] {
		p.opts.TaxonomyOut = *cfg.TaxonomyOut
	}
	return nil
}
