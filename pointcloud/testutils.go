package pointcloud

import (
	"math"
	"math/rand"

	"github.com/golang/geo/r3"
)

// The generators below build deterministic synthetic clouds for tests and demos.
// Noise is uniform in [-noise, noise] along the relevant direction.

// randomUnitVector draws a direction uniformly on the unit sphere.
func randomUnitVector(rng *rand.Rand) r3.Vector {
	for {
		v := r3.Vector{X: rng.NormFloat64(), Y: rng.NormFloat64(), Z: rng.NormFloat64()}
		if n := v.Norm(); n > 1e-9 {
			return v.Mul(1 / n)
		}
	}
}

// SpherePoints returns n points on the sphere of the given center and radius.
func SpherePoints(rng *rand.Rand, center r3.Vector, radius float64, n int, noise float64) []r3.Vector {
	pts := make([]r3.Vector, n)
	for i := range pts {
		r := radius + noise*(2*rng.Float64()-1)
		pts[i] = center.Add(randomUnitVector(rng).Mul(r))
	}
	return pts
}

// CirclePoints returns n points on the circle of the given center, normal and radius.
func CirclePoints(rng *rand.Rand, center, normal r3.Vector, radius float64, n int, noise float64) []r3.Vector {
	u, v := PlaneBasis(normal)
	pts := make([]r3.Vector, n)
	for i := range pts {
		theta := 2 * math.Pi * rng.Float64()
		r := radius + noise*(2*rng.Float64()-1)
		pts[i] = center.Add(u.Mul(r * math.Cos(theta))).Add(v.Mul(r * math.Sin(theta)))
	}
	return pts
}

// PlanePoints returns n points in the square of side size centered on center, lying in the
// plane of the given normal.
func PlanePoints(rng *rand.Rand, center, normal r3.Vector, size float64, n int, noise float64) []r3.Vector {
	u, v := PlaneBasis(normal)
	w := normal.Normalize()
	pts := make([]r3.Vector, n)
	for i := range pts {
		a := size * (rng.Float64() - 0.5)
		b := size * (rng.Float64() - 0.5)
		h := noise * (2*rng.Float64() - 1)
		pts[i] = center.Add(u.Mul(a)).Add(v.Mul(b)).Add(w.Mul(h))
	}
	return pts
}

// UniformPoints returns n points uniformly distributed in the box [minPt, maxPt].
func UniformPoints(rng *rand.Rand, minPt, maxPt r3.Vector, n int) []r3.Vector {
	d := maxPt.Sub(minPt)
	pts := make([]r3.Vector, n)
	for i := range pts {
		pts[i] = r3.Vector{
			X: minPt.X + d.X*rng.Float64(),
			Y: minPt.Y + d.Y*rng.Float64(),
			Z: minPt.Z + d.Z*rng.Float64(),
		}
	}
	return pts
}

// GridPoints returns the points of a regular n*n*n grid with the given spacing, starting at origin.
func GridPoints(origin r3.Vector, n int, spacing float64) []r3.Vector {
	pts := make([]r3.Vector, 0, n*n*n)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			for k := 0; k < n; k++ {
				pts = append(pts, origin.Add(r3.Vector{
					X: float64(i) * spacing,
					Y: float64(j) * spacing,
					Z: float64(k) * spacing,
				}))
			}
		}
	}
	return pts
}

// PlaneBasis returns two unit vectors orthogonal to each other and to normal.
func PlaneBasis(normal r3.Vector) (r3.Vector, r3.Vector) {
	w := normal.Normalize()
	u := w.Ortho()
	v := w.Cross(u).Normalize()
	return u, v
}
