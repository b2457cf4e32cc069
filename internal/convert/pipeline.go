package convert

import (
	"fmt"
	"math/rand"
	"runtime"

	"github.com/banshee-data/pcdset/internal/geom"
)

// Normalization modes for the preparation pipeline.
const (
	NormalizeNone = "none"
	NormalizeUnit = "unit"
	NormalizeBBox = "bbox"
)

// Options configures the preparation pipeline and the conversion run.
type Options struct {
	Normalize string  // none, unit or bbox
	Center    bool    // subtract the centroid
	Dedup     bool    // drop near-duplicate points
	FPS       bool    // farthest-point sampling instead of random
	Voxel     float64 // voxel down-sample edge length; <= 0 disables

	Workers      int    // worker pool size; <= 0 means 2*GOMAXPROCS
	Seed         int64  // random seed; 0 means non-deterministic
	Overwrite    bool   // allow replacing an existing key-value store
	SaveAttrs    bool   // persist source attribute columns as a sidecar
	SaveMeta     bool   // persist per-model metadata records (flat only)
	ToKV         bool   // also pack outputs into the key-value store
	KVCapacityGB int    // key-value store capacity budget; <= 0 means 64
	TaxonomyOut  string // derive a trivial taxonomy here (flat only)
}

// Validate rejects bad configuration before any work begins.
func (o Options) Validate() error {
	switch o.Normalize {
	case "", NormalizeNone, NormalizeUnit, NormalizeBBox:
	default:
		return fmt.Errorf("unknown normalization mode %q", o.Normalize)
	}
	return nil
}

func (o Options) workers() int {
	if o.Workers > 0 {
		return o.Workers
	}
	return 2 * runtime.GOMAXPROCS(0)
}

func (o Options) kvCapacity() int64 {
	gb := o.KVCapacityGB
	if gb <= 0 {
		gb = 64
	}
	return int64(gb) << 30
}

// Prepare runs the fixed geometry pipeline on a source cloud and
// resamples it to exactly target points. The order is load-bearing:
// voxel down-sampling and dedup run before normalization so scale
// statistics reflect the reduced set, and resampling runs last so it
// operates on final geometry. When sampling comes up short the result
// is padded with replacement draws from the post-normalization cloud.
func Prepare(cloud geom.Cloud, target int, opts Options, rng *rand.Rand) geom.Cloud {
	points := cloud.Points
	if opts.Voxel > 0 {
		points = geom.VoxelDownsample(points, opts.Voxel)
	}
	if opts.Dedup {
		points = geom.Dedup(points, geom.DefaultDedupEps)
	}
	if opts.Center {
		points = geom.Center(points)
	}
	switch opts.Normalize {
	case NormalizeUnit:
		points = geom.UnitSphere(points)
	case NormalizeBBox:
		points = geom.BBoxScale(points)
	}

	n := target
	if len(points) < n {
		n = len(points)
	}
	var sampled [][3]float64
	if opts.FPS {
		sampled = geom.FarthestPointSample(points, n, rng)
	} else {
		sampled = geom.RandomSample(points, n, rng)
	}
	if len(sampled) < target {
		sampled = append(sampled, geom.RandomSample(points, target-len(sampled), rng)...)
	}
	return geom.Cloud{Points: sampled}
}
