// Package neighbourhood computes local shape statistics of a set of neighbouring points:
// centroid, covariance, principal axes, least squares plane and the descriptors derived
// from them.
package neighbourhood

import (
	"math"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/mat"

	"go.viam.com/pcgeom/pointcloud"
)

// Neighbourhood is a set of point indices of a cloud together with lazily computed and
// cached statistics. It is not safe for concurrent use; each worker keeps its own and
// calls Reset between query points.
type Neighbourhood struct {
	cloud   pointcloud.Cloud
	indices []int

	centroid    r3.Vector
	hasCentroid bool

	cov    *mat.SymDense
	hasCov bool

	// eigen values in decreasing order and the matching unit vectors
	values   [3]float64
	vectors  [3]r3.Vector
	eigenErr bool
	hasEigen bool
}

// New returns a neighbourhood of the given points of cloud. indices is not copied.
func New(cloud pointcloud.Cloud, indices []int) *Neighbourhood {
	return &Neighbourhood{cloud: cloud, indices: indices, cov: mat.NewSymDense(3, nil)}
}

// Reset replaces the points and drops every cached value.
func (n *Neighbourhood) Reset(indices []int) {
	n.indices = indices
	n.hasCentroid = false
	n.hasCov = false
	n.hasEigen = false
	n.eigenErr = false
}

// Size returns the number of points.
func (n *Neighbourhood) Size() int {
	return len(n.indices)
}

// Indices returns the point indices.
func (n *Neighbourhood) Indices() []int {
	return n.indices
}

// Point returns the k-th point of the neighbourhood.
func (n *Neighbourhood) Point(k int) r3.Vector {
	return n.cloud.PointAt(n.indices[k])
}

// Centroid returns the mean of the points, or the zero vector when empty.
func (n *Neighbourhood) Centroid() r3.Vector {
	if n.hasCentroid {
		return n.centroid
	}
	var sum r3.Vector
	for _, idx := range n.indices {
		sum = sum.Add(n.cloud.PointAt(idx))
	}
	if len(n.indices) > 0 {
		sum = sum.Mul(1 / float64(len(n.indices)))
	}
	n.centroid, n.hasCentroid = sum, true
	return n.centroid
}

// Covariance returns the 3x3 covariance matrix of the points about their centroid,
// normalized by the number of points. The matrix is owned by the neighbourhood.
func (n *Neighbourhood) Covariance() *mat.SymDense {
	if n.hasCov {
		return n.cov
	}
	c := n.Centroid()
	var xx, xy, xz, yy, yz, zz float64
	for _, idx := range n.indices {
		d := n.cloud.PointAt(idx).Sub(c)
		xx += d.X * d.X
		xy += d.X * d.Y
		xz += d.X * d.Z
		yy += d.Y * d.Y
		yz += d.Y * d.Z
		zz += d.Z * d.Z
	}
	if count := float64(len(n.indices)); count > 0 {
		xx, xy, xz, yy, yz, zz = xx/count, xy/count, xz/count, yy/count, yz/count, zz/count
	}
	n.cov.SetSym(0, 0, xx)
	n.cov.SetSym(0, 1, xy)
	n.cov.SetSym(0, 2, xz)
	n.cov.SetSym(1, 1, yy)
	n.cov.SetSym(1, 2, yz)
	n.cov.SetSym(2, 2, zz)
	n.hasCov = true
	return n.cov
}

// Eigen returns the eigen values of the covariance matrix in decreasing order and the
// matching unit eigen vectors. ok is false with fewer than 3 points or when the
// decomposition fails.
func (n *Neighbourhood) Eigen() (values [3]float64, vectors [3]r3.Vector, ok bool) {
	if !n.hasEigen {
		n.computeEigen()
	}
	if n.eigenErr {
		return values, vectors, false
	}
	return n.values, n.vectors, true
}

func (n *Neighbourhood) computeEigen() {
	n.hasEigen = true
	n.eigenErr = true
	if len(n.indices) < 3 {
		return
	}
	var eigen mat.EigenSym
	if !eigen.Factorize(n.Covariance(), true) {
		return
	}
	vals := eigen.Values(nil)
	var vecs mat.Dense
	eigen.VectorsTo(&vecs)

	// gonum sorts in increasing order
	for k := 0; k < 3; k++ {
		col := 2 - k
		n.values[k] = math.Max(vals[col], 0)
		n.vectors[k] = r3.Vector{X: vecs.At(0, col), Y: vecs.At(1, col), Z: vecs.At(2, col)}.Normalize()
	}
	n.eigenErr = false
}

// Normal returns the direction of least variance, the unit normal of the least squares
// plane. Its orientation is arbitrary.
func (n *Neighbourhood) Normal() (r3.Vector, bool) {
	_, vectors, ok := n.Eigen()
	if !ok {
		return r3.Vector{}, false
	}
	return vectors[2], true
}

// Plane is an infinite plane through Point with unit Normal.
type Plane struct {
	Point  r3.Vector
	Normal r3.Vector
}

// SignedDistance returns the distance of p to the plane, positive on the side of Normal.
func (p Plane) SignedDistance(q r3.Vector) float64 {
	return q.Sub(p.Point).Dot(p.Normal)
}

// Project returns the orthogonal projection of q on the plane.
func (p Plane) Project(q r3.Vector) r3.Vector {
	return q.Sub(p.Normal.Mul(p.SignedDistance(q)))
}

// LeastSquaresPlane returns the plane minimizing the sum of squared distances to the points.
func (n *Neighbourhood) LeastSquaresPlane() (Plane, bool) {
	normal, ok := n.Normal()
	if !ok {
		return Plane{}, false
	}
	return Plane{Point: n.Centroid(), Normal: normal}, true
}
