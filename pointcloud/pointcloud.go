// Package pointcloud defines the read-only point access used by the spatial index and the
// geometric analysis algorithms, along with the per-point scalar field they write into.
//
// Points are expressed in a local frame. Clouds built from large real-world coordinates
// (e.g. georeferenced scans) usually store a global shift so that the local coordinates stay
// small enough to be precise; see GlobalShifter.
package pointcloud

import (
	"github.com/golang/geo/r3"
)

// Cloud is an indexed collection of 3D points. It does not own any
// derived structure and is never modified by the algorithms reading it.
type Cloud interface {
	// Size returns the number of points in the cloud.
	Size() int

	// PointAt returns the local coordinates of the point at index i.
	// i must be in [0, Size()).
	PointAt(i int) r3.Vector
}

// NormalProvider is implemented by clouds that may carry one normal per point.
type NormalProvider interface {
	// NormalsAvailable reports whether NormalAt can be called.
	NormalsAvailable() bool

	// NormalAt returns the normal of the point at index i.
	NormalAt(i int) r3.Vector
}

// GlobalShifter is implemented by clouds whose local coordinates are shifted
// from the global (original) coordinates.
type GlobalShifter interface {
	// GlobalShift returns the vector to add to a local point to get its global coordinates.
	GlobalShift() r3.Vector
}

// NormalAt returns the normal of point i when the cloud provides normals.
// The second return is false when it does not.
func NormalAt(cloud Cloud, i int) (r3.Vector, bool) {
	np, ok := cloud.(NormalProvider)
	if !ok || !np.NormalsAvailable() {
		return r3.Vector{}, false
	}
	return np.NormalAt(i), true
}

// GlobalPoint returns the global coordinates of point i, that is the local point
// plus the cloud's global shift if it has one.
func GlobalPoint(cloud Cloud, i int) r3.Vector {
	p := cloud.PointAt(i)
	if gs, ok := cloud.(GlobalShifter); ok {
		return p.Add(gs.GlobalShift())
	}
	return p
}

// Points copies every point of the cloud into a slice.
func Points(cloud Cloud) []r3.Vector {
	pts := make([]r3.Vector, cloud.Size())
	for i := range pts {
		pts[i] = cloud.PointAt(i)
	}
	return pts
}
