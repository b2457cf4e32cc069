package geom

import (
	"math"
	"math/rand"
)

// DefaultDedupEps is the quantization step used by Dedup when callers
// have no better tolerance for their data.
const DefaultDedupEps = 1e-9

type cellKey struct {
	x, y, z int64
}

// VoxelDownsample keeps one point per occupied voxel of edge length
// voxelSize. The representative is the first point encountered in input
// order, so the result is deterministic for a given input ordering.
// A non-positive voxelSize disables down-sampling and returns a copy.
func VoxelDownsample(points [][3]float64, voxelSize float64) [][3]float64 {
	if voxelSize <= 0 {
		return append([][3]float64(nil), points...)
	}
	seen := make(map[cellKey]struct{}, len(points))
	out := make([][3]float64, 0, len(points))
	for _, p := range points {
		key := cellKey{
			x: int64(math.Floor(p[0] / voxelSize)),
			y: int64(math.Floor(p[1] / voxelSize)),
			z: int64(math.Floor(p[2] / voxelSize)),
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, p)
	}
	return out
}

// Dedup removes near-duplicate points by rounding coordinates to a grid
// of step eps and keeping the first occurrence of each grid key.
// eps <= 0 falls back to DefaultDedupEps.
func Dedup(points [][3]float64, eps float64) [][3]float64 {
	if eps <= 0 {
		eps = DefaultDedupEps
	}
	seen := make(map[cellKey]struct{}, len(points))
	out := make([][3]float64, 0, len(points))
	for _, p := range points {
		key := cellKey{
			x: int64(math.Round(p[0] / eps)),
			y: int64(math.Round(p[1] / eps)),
			z: int64(math.Round(p[2] / eps)),
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, p)
	}
	return out
}

// RandomSample draws n points uniformly: without replacement when the
// cloud has at least n points, with replacement otherwise. The caller
// owns the random source, so fixing its seed makes runs reproducible.
func RandomSample(points [][3]float64, n int, rng *rand.Rand) [][3]float64 {
	if n <= 0 || len(points) == 0 {
		return nil
	}
	out := make([][3]float64, 0, n)
	if len(points) >= n {
		for _, idx := range rng.Perm(len(points))[:n] {
			out = append(out, points[idx])
		}
		return out
	}
	for i := 0; i < n; i++ {
		out = append(out, points[rng.Intn(len(points))])
	}
	return out
}

// FarthestPointSample selects n points by greedy farthest-point
// sampling: the first point is a uniformly random index, each following
// point maximizes the minimum distance to everything chosen so far
// (ties break to the lowest index). A running minimum-distance array is
// updated incrementally, giving O(N*n) time and O(N) extra space.
// Callers must clamp n to len(points); with n == len(points) the result
// is a permutation of the input.
func FarthestPointSample(points [][3]float64, n int, rng *rand.Rand) [][3]float64 {
	if n <= 0 || len(points) == 0 {
		return nil
	}
	if n > len(points) {
		n = len(points)
	}

	minDist := make([]float64, len(points))
	for i := range minDist {
		minDist[i] = math.Inf(1)
	}

	chosen := make([]int, n)
	chosen[0] = rng.Intn(len(points))
	for i := 1; i < n; i++ {
		last := points[chosen[i-1]]
		best, bestDist := 0, math.Inf(-1)
		for j, p := range points {
			dx, dy, dz := p[0]-last[0], p[1]-last[1], p[2]-last[2]
			if d := dx*dx + dy*dy + dz*dz; d < minDist[j] {
				minDist[j] = d
			}
			if minDist[j] > bestDist {
				best, bestDist = j, minDist[j]
			}
		}
		chosen[i] = best
	}

	out := make([][3]float64, n)
	for i, idx := range chosen {
		out[i] = points[idx]
	}
	return out
}
