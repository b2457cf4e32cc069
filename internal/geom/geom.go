// Package geom provides stateless geometry operations over in-memory
// point clouds: normalization, down-sampling, deduplication and
// resampling. All functions return fresh slices and never mutate their
// input, so callers may share clouds across goroutines.
package geom

// Cloud is an (N,3) point set plus optional named per-point attribute
// columns. Attribute columns are aligned index-for-index with Points and
// are passed through geometry operations unchanged.
type Cloud struct {
	Points [][3]float64
	Attrs  map[string][]float64
}

// Len returns the number of points in the cloud.
func (c Cloud) Len() int { return len(c.Points) }

// column extracts one coordinate axis as a flat slice.
func column(points [][3]float64, axis int) []float64 {
	out := make([]float64, len(points))
	for i, p := range points {
		out[i] = p[axis]
	}
	return out
}
