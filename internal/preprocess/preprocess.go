// Package preprocess curates raw point cloud directories before
// conversion: random proportional sampling, optional noise
// augmentation, and sequential renaming of the outputs.
package preprocess

import (
	"fmt"
	"log"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/banshee-data/pcdset/internal/geom"
	"github.com/banshee-data/pcdset/internal/pointio"
)

// supportedExtensions are the source formats the readers understand.
var supportedExtensions = map[string]struct{}{
	".ply": {}, ".pcd": {}, ".txt": {}, ".csv": {}, ".xyz": {},
}

// Config controls a preprocessing run over one input directory.
type Config struct {
	InputDir  string
	OutputDir string

	SampleRatio float64 // fraction of points kept; must be in (0, 1]
	NoiseRatio  float64 // extra noise points relative to the sampled count
	NoiseScale  float64 // bounding box expansion for noise placement

	RenameStart int   // first sequential output index
	Seed        int64 // 0 means non-deterministic

	SaveSampled bool // persist the sampled cloud before augmentation
	SaveNoisy   bool // persist the augmented cloud
}

// DefaultConfig mirrors the conventional curation settings: keep 80%,
// add 10% noise slightly outside the original extent, and number
// outputs from 1001.
func DefaultConfig() Config {
	return Config{
		SampleRatio: 0.8,
		NoiseRatio:  0.1,
		NoiseScale:  0.05,
		RenameStart: 1001,
		Seed:        42,
		SaveSampled: true,
		SaveNoisy:   true,
	}
}

// Validate rejects out-of-range configuration before any file is touched.
func (c Config) Validate() error {
	if c.SampleRatio <= 0 || c.SampleRatio > 1 {
		return fmt.Errorf("sample ratio %g must be within (0, 1]", c.SampleRatio)
	}
	if c.NoiseRatio < 0 {
		return fmt.Errorf("noise ratio %g cannot be negative", c.NoiseRatio)
	}
	if c.NoiseScale < 0 {
		return fmt.Errorf("noise scale %g cannot be negative", c.NoiseScale)
	}
	if c.RenameStart < 0 {
		return fmt.Errorf("rename start %d must be non-negative", c.RenameStart)
	}
	return nil
}

// ListSources returns the supported point cloud files directly inside
// dir, sorted by name.
func ListSources(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", dir, err)
	}
	var files []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if _, ok := supportedExtensions[ext]; ok {
			files = append(files, filepath.Join(dir, entry.Name()))
		}
	}
	sort.Strings(files)
	return files, nil
}

// Run preprocesses every supported file in the input directory. Output
// files take sequential four-digit names starting at RenameStart, each
// persisted variant consuming one index. It returns the number of
// files written.
func Run(cfg Config) (int, error) {
	if err := cfg.Validate(); err != nil {
		return 0, err
	}
	files, err := ListSources(cfg.InputDir)
	if err != nil {
		return 0, err
	}
	if len(files) == 0 {
		log.Printf("no supported point cloud files found in %s", cfg.InputDir)
		return 0, nil
	}

	seed := cfg.Seed
	if seed == 0 {
		seed = int64(os.Getpid())
	}
	rng := rand.New(rand.NewSource(seed))

	next := cfg.RenameStart
	for _, path := range files {
		next, err = processFile(path, cfg, rng, next)
		if err != nil {
			return next - cfg.RenameStart, fmt.Errorf("preprocess %s: %w", path, err)
		}
	}
	written := next - cfg.RenameStart
	log.Printf("preprocessing complete: %d input files, %d output files", len(files), written)
	return written, nil
}

func processFile(path string, cfg Config, rng *rand.Rand, next int) (int, error) {
	cloud, err := pointio.Read(path)
	if err != nil {
		return next, err
	}

	n := int(float64(cloud.Len())*cfg.SampleRatio + 0.5)
	if n < 1 {
		n = 1
	}
	if n > cloud.Len() {
		n = cloud.Len()
	}
	sampled := geom.RandomSample(cloud.Points, n, rng)

	ext := strings.ToLower(filepath.Ext(path))
	if ext == ".pcd" {
		// No PCD writer; persist curated variants as PLY instead.
		ext = ".ply"
	}
	if cfg.SaveSampled {
		out := outputPath(cfg.OutputDir, next, ext)
		if err := pointio.Write(out, geom.Cloud{Points: sampled}); err != nil {
			return next, err
		}
		next++
	}
	if cfg.SaveNoisy {
		noisy := geom.NoisePoints(sampled, cfg.NoiseRatio, cfg.NoiseScale, rng)
		out := outputPath(cfg.OutputDir, next, ext)
		if err := pointio.Write(out, geom.Cloud{Points: noisy}); err != nil {
			return next, err
		}
		next++
	}
	return next, nil
}

func outputPath(dir string, index int, ext string) string {
	return filepath.Join(dir, fmt.Sprintf("%04d%s", index, ext))
}
