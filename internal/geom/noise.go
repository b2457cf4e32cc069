package geom

import "math/rand"

// NoisePoints appends uniformly distributed noise points to a cloud.
// The noise count is round(len(points)*ratio); samples are drawn inside
// the axis-aligned bounding box expanded by scale on each side. A span
// floor of 1e-6 keeps degenerate axes from collapsing the sample range.
func NoisePoints(points [][3]float64, ratio, scale float64, rng *rand.Rand) [][3]float64 {
	out := append([][3]float64(nil), points...)
	if ratio <= 0 || len(points) == 0 {
		return out
	}
	count := int(float64(len(points))*ratio + 0.5)
	if count == 0 {
		return out
	}

	var lo, hi [3]float64
	lo = points[0]
	hi = points[0]
	for _, p := range points {
		for axis := 0; axis < 3; axis++ {
			if p[axis] < lo[axis] {
				lo[axis] = p[axis]
			}
			if p[axis] > hi[axis] {
				hi[axis] = p[axis]
			}
		}
	}
	for axis := 0; axis < 3; axis++ {
		span := hi[axis] - lo[axis]
		if span < 1e-6 {
			span = 1e-6
		}
		lo[axis] -= span * scale
		hi[axis] += span * scale
	}

	for i := 0; i < count; i++ {
		var p [3]float64
		for axis := 0; axis < 3; axis++ {
			p[axis] = lo[axis] + rng.Float64()*(hi[axis]-lo[axis])
		}
		out = append(out, p)
	}
	return out
}
