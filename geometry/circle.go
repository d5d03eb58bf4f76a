package geometry

import (
	"context"
	"math"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"go.viam.com/pcgeom/neighbourhood"
	"go.viam.com/pcgeom/pointcloud"
)

// CircleResult is a fitted 3D circle.
type CircleResult struct {
	Center r3.Vector
	// Normal is the unit normal of the plane of the circle. Its orientation is arbitrary.
	Normal r3.Vector
	Radius float64
	// RMS is the root mean square distance of the points to the circle.
	RMS float64
}

// DetectCircle fits a circle on the points. They are expressed in the frame of their least
// squares plane, where the circle u^2 + v^2 = a u + b v + c is solved for by linear least
// squares. Collinear points are an InvalidInput error.
func DetectCircle(ctx context.Context, cloud pointcloud.Cloud, opts *Options) (CircleResult, error) {
	if cloud == nil {
		return CircleResult{}, errors.Wrap(InvalidInput, "nil cloud")
	}
	if err := opts.validate(); err != nil {
		return CircleResult{}, err
	}
	n := cloud.Size()
	if err := checkCloudSize(n, 3, "circle detection"); err != nil {
		return CircleResult{}, err
	}
	cb := opts.progress()
	if ctx.Err() != nil || cb.Cancelled() {
		return CircleResult{}, errors.Wrap(ProcessCancelledByUser, "circle detection cancelled")
	}

	indices := make([]int, n)
	for i := range indices {
		indices[i] = i
	}
	nb := neighbourhood.New(cloud, indices)
	values, vectors, ok := nb.Eigen()
	if !ok {
		return CircleResult{}, errors.Wrap(InvalidInput, "cannot fit a plane on the points")
	}
	if values[1] <= 1e-12*values[0] {
		return CircleResult{}, errors.Wrap(InvalidInput, "points are collinear")
	}
	frame := neighbourhood.Frame{Origin: nb.Centroid(), U: vectors[0], V: vectors[1], W: vectors[2]}
	cb.Report(0.5)

	a := mat.NewDense(n, 3, nil)
	rhs := mat.NewVecDense(n, nil)
	for i := 0; i < n; i++ {
		u, v, _ := frame.Local(cloud.PointAt(i))
		a.SetRow(i, []float64{u, v, 1})
		rhs.SetVec(i, u*u+v*v)
	}
	var x mat.VecDense
	if err := x.SolveVec(a, rhs); err != nil {
		return CircleResult{}, errors.Wrap(InvalidInput, "points are collinear")
	}
	cu, cv := x.AtVec(0)/2, x.AtVec(1)/2
	sqRadius := x.AtVec(2) + cu*cu + cv*cv
	if sqRadius <= 0 || math.IsNaN(sqRadius) {
		return CircleResult{}, errors.Wrap(InvalidInput, "degenerate circle")
	}

	result := CircleResult{
		Center: frame.Origin.Add(frame.U.Mul(cu)).Add(frame.V.Mul(cv)),
		Normal: frame.W,
		Radius: math.Sqrt(sqRadius),
	}

	var sum float64
	for i := 0; i < n; i++ {
		d := cloud.PointAt(i).Sub(result.Center)
		h := d.Dot(result.Normal)
		radial := d.Sub(result.Normal.Mul(h)).Norm() - result.Radius
		sum += h*h + radial*radial
	}
	result.RMS = math.Sqrt(sum / float64(n))

	opts.logger().Debugw("circle detected", "center", result.Center, "radius", result.Radius, "rms", result.RMS)
	cb.Report(1)
	return result, nil
}
