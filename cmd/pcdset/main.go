// Command pcdset converts heterogeneous point cloud collections into
// training-ready dataset layouts, validates converted trees, and runs
// the supporting curation utilities.
package main

import (
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/banshee-data/pcdset/internal/convert"
	"github.com/banshee-data/pcdset/internal/manifest"
	"github.com/banshee-data/pcdset/internal/preprocess"
	"github.com/banshee-data/pcdset/internal/report"
)

const usageText = `usage: pcdset <command> [flags]

commands:
  convert     convert a manifest or source tree into a dataset layout
  auto        discover sources, assign splits and convert in one pass
  validate    check a converted dataset tree for structural mismatches
  preprocess  sample, augment and renumber raw point cloud files
  example     write an example manifest for a layout profile
  report      render an HTML summary of a converted dataset

run 'pcdset <command> -h' for command flags
`

// exit codes: 1 for validation failure, 2 for configuration errors
const (
	exitValidation = 1
	exitConfig     = 2
)

func main() {
	log.SetFlags(log.LstdFlags)

	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usageText)
		os.Exit(exitConfig)
	}

	var err error
	switch os.Args[1] {
	case "convert":
		err = runConvert(os.Args[2:])
	case "auto":
		err = runAuto(os.Args[2:])
	case "validate":
		err = runValidate(os.Args[2:])
	case "preprocess":
		err = runPreprocess(os.Args[2:])
	case "example":
		err = runExample(os.Args[2:])
	case "report":
		err = runReport(os.Args[2:])
	case "-h", "--help", "help":
		fmt.Print(usageText)
		return
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s", os.Args[1], usageText)
		os.Exit(exitConfig)
	}

	if err != nil {
		var verr *convert.ValidationError
		if errors.As(err, &verr) {
			log.Printf("%v", err)
			os.Exit(exitValidation)
		}
		log.Printf("error: %v", err)
		os.Exit(exitConfig)
	}
}

// profileFlags holds the layout parameters shared by convert, auto and
// validate.
type profileFlags struct {
	profile   string
	partialN  int
	completeN int
	pointsN   int
	ext       string
	basename  string
}

func (p *profileFlags) register(fs *flag.FlagSet) {
	fs.StringVar(&p.profile, "profile", "shapenet", "layout profile: pcn or shapenet")
	fs.IntVar(&p.partialN, "partial-n", 2048, "points per partial cloud (pcn)")
	fs.IntVar(&p.completeN, "complete-n", 16384, "points per complete cloud (pcn)")
	fs.IntVar(&p.pointsN, "points-n", 2048, "points per object cloud (shapenet)")
	fs.StringVar(&p.ext, "ext", "ply", "output file extension")
	fs.StringVar(&p.basename, "basename", "points", "output file basename (shapenet)")
}

func (p *profileFlags) build() (convert.Profile, error) {
	switch p.profile {
	case "pcn":
		return &convert.PairedProfile{PartialN: p.partialN, CompleteN: p.completeN, Ext: p.ext}, nil
	case "shapenet":
		return &convert.FlatProfile{PointsN: p.pointsN, Ext: p.ext, Basename: p.basename}, nil
	default:
		return nil, fmt.Errorf("unknown profile %q (want pcn or shapenet)", p.profile)
	}
}

// pipelineFlags holds the preparation and run options shared by
// convert and auto.
type pipelineFlags struct {
	opts       convert.Options
	configPath string
}

func (p *pipelineFlags) register(fs *flag.FlagSet) {
	fs.StringVar(&p.opts.Normalize, "normalize", "none", "normalization mode: none, unit or bbox")
	fs.BoolVar(&p.opts.Center, "center", false, "subtract the centroid before normalization")
	fs.BoolVar(&p.opts.Dedup, "dedup", false, "drop near-duplicate points")
	fs.BoolVar(&p.opts.FPS, "fps", false, "use farthest-point sampling")
	fs.Float64Var(&p.opts.Voxel, "voxel", 0, "voxel down-sample edge length (0 disables)")
	fs.IntVar(&p.opts.Workers, "workers", 0, "worker pool size (0 means 2*GOMAXPROCS)")
	fs.Int64Var(&p.opts.Seed, "seed", 0, "random seed (0 means non-deterministic)")
	fs.BoolVar(&p.opts.Overwrite, "overwrite", false, "replace an existing key-value store")
	fs.BoolVar(&p.opts.SaveAttrs, "save-attrs", false, "persist source attributes as sidecars")
	fs.BoolVar(&p.opts.SaveMeta, "save-meta", false, "persist per-model metadata records")
	fs.BoolVar(&p.opts.ToKV, "to-kv", false, "also pack outputs into the key-value store")
	fs.IntVar(&p.opts.KVCapacityGB, "kv-capacity-gb", 0, "key-value store capacity budget in GiB (0 means 64)")
	fs.StringVar(&p.opts.TaxonomyOut, "taxonomy-out", "", "derive a taxonomy file here (shapenet)")
	fs.StringVar(&p.configPath, "config", "", "JSON config file; fills in flags not set explicitly")
}

// splitFlags holds the optional split reassignment shared by convert
// and auto.
type splitFlags struct {
	assign bool
	ratios manifest.Ratios
	seed   int64
}

func (s *splitFlags) register(fs *flag.FlagSet, assignDefault bool) {
	fs.BoolVar(&s.assign, "assign-splits", assignDefault, "reassign splits by ratio before converting")
	fs.Float64Var(&s.ratios.Train, "train", 0.8, "train split ratio")
	fs.Float64Var(&s.ratios.Val, "val", 0.1, "validation split ratio")
	fs.Float64Var(&s.ratios.Test, "test", 0.1, "test split ratio")
	fs.Int64Var(&s.seed, "split-seed", 0, "seed for split assignment shuffling")
}

func (s *splitFlags) apply(entries []*manifest.Entry) error {
	if !s.assign {
		return nil
	}
	if err := s.ratios.Validate(); err != nil {
		return err
	}
	manifest.AssignSplits(entries, s.ratios, s.seed)
	return nil
}

func runConvert(args []string) error {
	fs := flag.NewFlagSet("convert", flag.ExitOnError)
	var (
		manifestPath = fs.String("manifest", "", "manifest CSV describing the sources")
		inputDir     = fs.String("input", "", "source tree to infer entries from (alternative to -manifest)")
		outDir       = fs.String("out", "", "output dataset root (required)")
		categoryMap  = fs.String("category-map", "", "CSV remapping source categories")
		profiles     profileFlags
		pipeline     pipelineFlags
		splits       splitFlags
	)
	profiles.register(fs)
	pipeline.register(fs)
	splits.register(fs, false)
	fs.Parse(args)

	if err := pipeline.loadConfig(fs); err != nil {
		return err
	}
	if *outDir == "" {
		return errors.New("convert: -out is required")
	}
	profile, err := profiles.build()
	if err != nil {
		return err
	}

	var remap map[string]string
	if *categoryMap != "" {
		remap, err = manifest.LoadCategoryMap(*categoryMap)
		if err != nil {
			return err
		}
	}

	var entries []*manifest.Entry
	switch {
	case *manifestPath != "":
		entries, err = manifest.LoadManifest(*manifestPath, filepath.Dir(*manifestPath), remap)
	case *inputDir != "":
		if profiles.profile == "pcn" {
			entries, err = manifest.ScanPairedTree(*inputDir, remap)
		} else {
			entries, err = manifest.ScanFlatTree(*inputDir, remap)
		}
	default:
		return errors.New("convert: one of -manifest or -input is required")
	}
	if err != nil {
		return err
	}
	if err := splits.apply(entries); err != nil {
		return err
	}

	conv := &convert.Converter{Profile: profile, Opts: pipeline.opts}
	result, err := conv.Run(entries, *outDir)
	if err != nil {
		return err
	}
	log.Printf("run %s: %d converted, %d failed, %d categories",
		result.RunID, result.Converted, len(result.Failed), len(result.Categories))
	return nil
}

func runAuto(args []string) error {
	fs := flag.NewFlagSet("auto", flag.ExitOnError)
	var (
		inputDir        = fs.String("input", "", "directory of raw point cloud files (required)")
		outDir          = fs.String("out", "", "output dataset root (required)")
		defaultCategory = fs.String("default-category", "default", "category when no folder structure exists")
		folderCategory  = fs.Bool("folder-category", true, "treat top-level folders as categories")
		manifestOut     = fs.String("manifest-out", "", "also write the discovered manifest here")
		profiles        profileFlags
		pipeline        pipelineFlags
		splits          splitFlags
	)
	profiles.register(fs)
	pipeline.register(fs)
	splits.register(fs, true)
	fs.Parse(args)

	if err := pipeline.loadConfig(fs); err != nil {
		return err
	}
	if *inputDir == "" || *outDir == "" {
		return errors.New("auto: -input and -out are required")
	}
	if profiles.profile == "pcn" {
		// Discovery yields object-role entries only; the paired layout
		// needs partial/complete pairs from a manifest or scanned tree.
		return errors.New("auto: the pcn profile is not supported, use convert with -manifest or -input")
	}
	profile, err := profiles.build()
	if err != nil {
		return err
	}

	entries, err := manifest.BuildSimpleEntries(*inputDir, manifest.BuildOptions{
		DefaultCategory:   *defaultCategory,
		UseFolderCategory: *folderCategory,
	})
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		return fmt.Errorf("auto: no supported point cloud files under %s", *inputDir)
	}
	if err := splits.apply(entries); err != nil {
		return err
	}
	if *manifestOut != "" {
		if err := manifest.WriteManifest(entries, *manifestOut, *inputDir); err != nil {
			return err
		}
	}

	conv := &convert.Converter{Profile: profile, Opts: pipeline.opts}
	result, err := conv.Run(entries, *outDir)
	if err != nil {
		return err
	}
	log.Printf("auto run %s: %d discovered, %d converted, %d failed",
		result.RunID, len(entries), result.Converted, len(result.Failed))
	return nil
}

func runValidate(args []string) error {
	fs := flag.NewFlagSet("validate", flag.ExitOnError)
	var (
		root     = fs.String("root", "", "dataset root to validate (required)")
		profiles profileFlags
	)
	profiles.register(fs)
	fs.Parse(args)

	if *root == "" {
		return errors.New("validate: -root is required")
	}
	profile, err := profiles.build()
	if err != nil {
		return err
	}
	switch p := profile.(type) {
	case *convert.PairedProfile:
		return p.ValidatePaired(*root)
	case *convert.FlatProfile:
		return p.ValidateFlat(*root)
	}
	return nil
}

func runPreprocess(args []string) error {
	fs := flag.NewFlagSet("preprocess", flag.ExitOnError)
	cfg := preprocess.DefaultConfig()
	fs.StringVar(&cfg.InputDir, "input", "", "directory of raw point cloud files (required)")
	fs.StringVar(&cfg.OutputDir, "out", "", "output directory (required)")
	fs.Float64Var(&cfg.SampleRatio, "sample-ratio", cfg.SampleRatio, "fraction of points to keep, in (0, 1]")
	fs.Float64Var(&cfg.NoiseRatio, "noise-ratio", cfg.NoiseRatio, "extra noise points relative to the sampled count")
	fs.Float64Var(&cfg.NoiseScale, "noise-scale", cfg.NoiseScale, "bounding box expansion for noise placement")
	fs.IntVar(&cfg.RenameStart, "rename-start", cfg.RenameStart, "first sequential output index")
	fs.Int64Var(&cfg.Seed, "seed", cfg.Seed, "random seed (0 means non-deterministic)")
	fs.BoolVar(&cfg.SaveSampled, "save-sampled", cfg.SaveSampled, "persist the sampled cloud")
	fs.BoolVar(&cfg.SaveNoisy, "save-noisy", cfg.SaveNoisy, "persist the noise-augmented cloud")
	fs.Parse(args)

	if cfg.InputDir == "" || cfg.OutputDir == "" {
		return errors.New("preprocess: -input and -out are required")
	}
	written, err := preprocess.Run(cfg)
	if err != nil {
		return err
	}
	log.Printf("preprocess wrote %d files to %s", written, cfg.OutputDir)
	return nil
}

func runExample(args []string) error {
	fs := flag.NewFlagSet("example", flag.ExitOnError)
	var (
		profile = fs.String("profile", "shapenet", "layout profile: pcn or shapenet")
		out     = fs.String("out", "", "example manifest path (required)")
	)
	fs.Parse(args)

	if *out == "" {
		return errors.New("example: -out is required")
	}
	switch *profile {
	case "pcn":
		return manifest.WriteExamplePaired(*out)
	case "shapenet":
		return manifest.WriteExampleFlat(*out)
	default:
		return fmt.Errorf("unknown profile %q (want pcn or shapenet)", *profile)
	}
}

func runReport(args []string) error {
	fs := flag.NewFlagSet("report", flag.ExitOnError)
	var (
		root = fs.String("root", "", "dataset root to summarise (required)")
		out  = fs.String("out", "report.html", "output HTML path")
	)
	fs.Parse(args)

	if *root == "" {
		return errors.New("report: -root is required")
	}
	summary, err := report.Scan(*root)
	if err != nil {
		return err
	}
	if err := summary.WriteHTML(*out); err != nil {
		return err
	}
	log.Printf("report for %d models written to %s", summary.Total(), *out)
	return nil
}
