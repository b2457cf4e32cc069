package geom

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// Center translates points so their centroid sits at the origin.
func Center(points [][3]float64) [][3]float64 {
	if len(points) == 0 {
		return nil
	}
	var cx, cy, cz float64
	for _, p := range points {
		cx += p[0]
		cy += p[1]
		cz += p[2]
	}
	n := float64(len(points))
	cx, cy, cz = cx/n, cy/n, cz/n

	out := make([][3]float64, len(points))
	for i, p := range points {
		out[i] = [3]float64{p[0] - cx, p[1] - cy, p[2] - cz}
	}
	return out
}

// UnitSphere scales points so the farthest point from the origin has
// radius 1. A degenerate cloud with zero max radius is returned as a
// copy, unscaled.
func UnitSphere(points [][3]float64) [][3]float64 {
	if len(points) == 0 {
		return nil
	}
	radii := make([]float64, len(points))
	for i, p := range points {
		radii[i] = math.Sqrt(p[0]*p[0] + p[1]*p[1] + p[2]*p[2])
	}
	radius := floats.Max(radii)
	if radius == 0 {
		return append([][3]float64(nil), points...)
	}
	out := make([][3]float64, len(points))
	for i, p := range points {
		out[i] = [3]float64{p[0] / radius, p[1] / radius, p[2] / radius}
	}
	return out
}

// BBoxScale scales points so the longest axis-aligned bounding box edge
// is 1. A cloud with zero extent on every axis is returned as a copy,
// unscaled.
func BBoxScale(points [][3]float64) [][3]float64 {
	if len(points) == 0 {
		return nil
	}
	size := 0.0
	for axis := 0; axis < 3; axis++ {
		col := column(points, axis)
		if extent := floats.Max(col) - floats.Min(col); extent > size {
			size = extent
		}
	}
	if size == 0 {
		return append([][3]float64(nil), points...)
	}
	out := make([][3]float64, len(points))
	for i, p := range points {
		out[i] = [3]float64{p[0] / size, p[1] / size, p[2] / size}
	}
	return out
}
