package convert

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"log"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/pcdset/internal/kvstore"
	"github.com/banshee-data/pcdset/internal/manifest"
	"github.com/banshee-data/pcdset/internal/pointio"
)

// progressEvery controls how often the advisory progress line is
// logged while the pool drains.
const progressEvery = 500

// FailedManifestName is the failure manifest written beside the output
// root when any entry could not be converted.
const FailedManifestName = "_failed.csv"

// KVStoreName is the packed store location under the output root. The
// name is part of the on-disk layout contract consumed downstream.
const KVStoreName = "lmdb"

// Result aggregates what a conversion run produced.
type Result struct {
	Converted  int
	Failed     []*manifest.Entry
	Splits     map[string]map[string]struct{} // split -> category/model tokens
	Categories []string                       // sorted, as observed
	RunID      string
}

// Converter maps manifest entries to output artifacts under a layout
// profile. Entries are processed concurrently with per-entry failure
// isolation: one bad source never aborts the run.
type Converter struct {
	Profile Profile
	Opts    Options
}

// accumulator collects per-worker results so the hot path needs no
// shared locks; accumulators merge after the pool drains.
type accumulator struct {
	converted  int
	failed     []*manifest.Entry
	splits     map[string]map[string]struct{}
	categories map[string]struct{}
}

func newAccumulator() *accumulator {
	return &accumulator{
		splits:     make(map[string]map[string]struct{}),
		categories: make(map[string]struct{}),
	}
}

// Run converts all entries into the output tree under root. It returns
// an error only for configuration problems or a failed store close;
// per-entry failures land in the result's Failed list and in the
// failure manifest beside the root.
func (c *Converter) Run(entries []*manifest.Entry, root string) (*Result, error) {
	if err := c.Opts.Validate(); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create output root: %w", err)
	}

	var store *kvstore.Writer
	if c.Opts.ToKV {
		var err error
		store, err = kvstore.Open(filepath.Join(root, KVStoreName), c.Opts.kvCapacity(), c.Opts.Overwrite)
		if err != nil {
			return nil, err
		}
	}

	seed := c.Opts.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	work := make(chan *manifest.Entry)
	accumulators := make([]*accumulator, c.Opts.workers())
	var done atomic.Int64
	total := len(entries)

	var wg sync.WaitGroup
	for w := range accumulators {
		acc := newAccumulator()
		accumulators[w] = acc
		rng := rand.New(rand.NewSource(seed + int64(w)))

		wg.Add(1)
		go func() {
			defer wg.Done()
			for entry := range work {
				if err := c.process(entry, root, store, rng); err != nil {
					log.Printf("failed to process %s: %v", entry.Path, err)
					acc.failed = append(acc.failed, entry)
				} else {
					acc.converted++
					token := manifest.Sanitize(entry.Category) + "/" + manifest.Sanitize(entry.ModelID)
					if acc.splits[entry.Split] == nil {
						acc.splits[entry.Split] = make(map[string]struct{})
					}
					acc.splits[entry.Split][token] = struct{}{}
					acc.categories[manifest.Sanitize(entry.Category)] = struct{}{}
				}
				if n := done.Add(1); n%progressEvery == 0 {
					log.Printf("converted %d/%d entries", n, total)
				}
			}
		}()
	}
	for _, entry := range entries {
		work <- entry
	}
	close(work)
	wg.Wait()

	result := &Result{
		Splits: make(map[string]map[string]struct{}),
		RunID:  uuid.NewString(),
	}
	categories := make(map[string]struct{})
	for _, acc := range accumulators {
		result.Converted += acc.converted
		result.Failed = append(result.Failed, acc.failed...)
		for split, tokens := range acc.splits {
			if result.Splits[split] == nil {
				result.Splits[split] = make(map[string]struct{})
			}
			for token := range tokens {
				result.Splits[split][token] = struct{}{}
			}
		}
		for category := range acc.categories {
			categories[category] = struct{}{}
		}
	}
	for category := range categories {
		result.Categories = append(result.Categories, category)
	}
	sort.Strings(result.Categories)

	// Store close failures are fatal: the export may be incomplete.
	if store != nil {
		meta := map[string]any{
			"profile":   c.Profile.Name(),
			"run_id":    result.RunID,
			"timestamp": time.Now().Unix(),
			"entries":   result.Converted,
		}
		if err := store.Close(meta); err != nil {
			return nil, err
		}
	}

	if err := c.Profile.PostRun(root, result, c.Opts); err != nil {
		return nil, err
	}

	if len(result.Failed) > 0 {
		failedPath := filepath.Join(root, FailedManifestName)
		if err := manifest.WriteManifest(result.Failed, failedPath, ""); err != nil {
			return nil, fmt.Errorf("write failure manifest: %w", err)
		}
		log.Printf("warning: %d entries failed, see %s", len(result.Failed), failedPath)
	}
	log.Printf("conversion %s finished: %d converted, %d failed", result.RunID, result.Converted, len(result.Failed))
	return result, nil
}

// process runs the full per-entry contract: read, prepare, persist,
// optional sidecar, optional metadata record, optional store insert.
func (c *Converter) process(entry *manifest.Entry, root string, store *kvstore.Writer, rng *rand.Rand) error {
	cloud, err := pointio.Read(entry.Path)
	if err != nil {
		return err
	}
	prepared := Prepare(cloud, c.Profile.TargetCount(entry.Role), c.Opts, rng)

	outPath := c.Profile.OutputPath(root, entry)
	if err := pointio.Write(outPath, prepared); err != nil {
		return err
	}

	if c.Opts.SaveAttrs && len(cloud.Attrs) > 0 {
		if err := writeAttrsSidecar(outPath, cloud.Attrs); err != nil {
			return err
		}
	}
	if c.Opts.SaveMeta {
		if metaPath := c.Profile.MetaPath(root, entry); metaPath != "" {
			if err := writeModelMeta(metaPath, entry); err != nil {
				return err
			}
		}
	}
	if store != nil {
		if err := store.Put(c.Profile.Key(entry), prepared); err != nil {
			return err
		}
	}
	return nil
}

// writeAttrsSidecar persists the source attribute columns next to the
// output file as CSV with one named column per attribute. The sidecar
// keeps raw per-point attributes available even though the prepared
// cloud was resampled.
func writeAttrsSidecar(outPath string, attrs map[string][]float64) error {
	names := make([]string, 0, len(attrs))
	rows := 0
	for name, col := range attrs {
		names = append(names, name)
		if len(col) > rows {
			rows = len(col)
		}
	}
	sort.Strings(names)

	sidecar := strings.TrimSuffix(outPath, filepath.Ext(outPath)) + "_attrs.csv"
	fh, err := os.Create(sidecar)
	if err != nil {
		return fmt.Errorf("create attrs sidecar: %w", err)
	}
	defer fh.Close()

	writer := csv.NewWriter(fh)
	if err := writer.Write(names); err != nil {
		return err
	}
	record := make([]string, len(names))
	for i := 0; i < rows; i++ {
		for j, name := range names {
			record[j] = ""
			if col := attrs[name]; i < len(col) {
				record[j] = fmt.Sprintf("%g", col[i])
			}
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

func writeModelMeta(path string, entry *manifest.Entry) error {
	meta := map[string]string{"source": entry.Path}
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0o644)
}
