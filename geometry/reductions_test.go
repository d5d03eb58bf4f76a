package geometry

import (
	"context"
	"math"
	"math/rand"
	"testing"

	"github.com/golang/geo/r3"
	"go.viam.com/test"
	"gonum.org/v1/gonum/mat"

	"go.viam.com/pcgeom/pointcloud"
)

var tetrahedron = []r3.Vector{{}, {X: 2}, {Y: 2}, {Z: 2}}

func TestComputeGravityCenter(t *testing.T) {
	ctx := context.Background()
	center, err := ComputeGravityCenter(ctx, pointcloud.New(tetrahedron))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, center, test.ShouldResemble, r3.Vector{X: 0.5, Y: 0.5, Z: 0.5})

	rng := rand.New(rand.NewSource(11))
	points := pointcloud.SpherePoints(rng, r3.Vector{X: -4, Y: 1, Z: 2}, 1, 20000, 0)
	center, err = ComputeGravityCenter(ctx, pointcloud.New(points))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, center.X, test.ShouldAlmostEqual, -4, 0.05)
	test.That(t, center.Y, test.ShouldAlmostEqual, 1, 0.05)
	test.That(t, center.Z, test.ShouldAlmostEqual, 2, 0.05)

	_, err = ComputeGravityCenter(ctx, pointcloud.New(nil))
	test.That(t, CodeOf(err), test.ShouldEqual, NotEnoughPoints)
	_, err = ComputeGravityCenter(ctx, nil)
	test.That(t, CodeOf(err), test.ShouldEqual, InvalidInput)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = ComputeGravityCenter(cancelled, pointcloud.New(points))
	test.That(t, CodeOf(err), test.ShouldEqual, ProcessCancelledByUser)
}

func TestComputeWeightedGravityCenter(t *testing.T) {
	ctx := context.Background()
	cloud := pointcloud.New(tetrahedron)
	weights := pointcloud.NewScalarField("weights", 4)
	weights.SetValue(0, 1)
	weights.SetValue(1, -3)
	// the NaN weights at 2 and 3 drop those points

	center, err := ComputeWeightedGravityCenter(ctx, cloud, weights)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, center, test.ShouldResemble, r3.Vector{X: 1.5})

	weights.Fill(0)
	_, err = ComputeWeightedGravityCenter(ctx, cloud, weights)
	test.That(t, CodeOf(err), test.ShouldEqual, InvalidInput)

	_, err = ComputeWeightedGravityCenter(ctx, cloud, pointcloud.NewScalarField("short", 2))
	test.That(t, CodeOf(err), test.ShouldEqual, InvalidInput)
	_, err = ComputeWeightedGravityCenter(ctx, cloud, nil)
	test.That(t, CodeOf(err), test.ShouldEqual, InvalidInput)
}

func TestComputeCovarianceMatrix(t *testing.T) {
	ctx := context.Background()
	// points on the x axis at -1 and 1, y and z constant
	cloud := pointcloud.New([]r3.Vector{{X: -1, Y: 3}, {X: 1, Y: 3}})
	cov, err := ComputeCovarianceMatrix(ctx, cloud, nil)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, cov.At(0, 0), test.ShouldAlmostEqual, 1)
	for r := 0; r < 3; r++ {
		for c := 0; c < 3; c++ {
			if r == 0 && c == 0 {
				continue
			}
			test.That(t, cov.At(r, c), test.ShouldAlmostEqual, 0)
		}
	}

	// about another center the spread includes the offset
	origin := r3.Vector{}
	cov, err = ComputeCovarianceMatrix(ctx, cloud, &origin)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, cov.At(1, 1), test.ShouldAlmostEqual, 9)
	test.That(t, cov.At(0, 1), test.ShouldAlmostEqual, 0)

	rng := rand.New(rand.NewSource(12))
	points := pointcloud.UniformPoints(rng, r3.Vector{X: -1, Y: -2, Z: -3}, r3.Vector{X: 1, Y: 2, Z: 3}, 5000)
	cov, err = ComputeCovarianceMatrix(ctx, pointcloud.New(points), nil)
	test.That(t, err, test.ShouldBeNil)
	// variance of a uniform law of width w is w^2 / 12
	test.That(t, cov.At(0, 0), test.ShouldAlmostEqual, 4./12, 0.03)
	test.That(t, cov.At(1, 1), test.ShouldAlmostEqual, 16./12, 0.1)
	test.That(t, cov.At(2, 2), test.ShouldAlmostEqual, 36./12, 0.2)
}

func TestComputeCrossCovarianceMatrix(t *testing.T) {
	ctx := context.Background()
	rng := rand.New(rand.NewSource(13))
	p := pointcloud.New(pointcloud.UniformPoints(rng, r3.Vector{}, r3.Vector{X: 1, Y: 1, Z: 1}, 1000))

	// q is p shifted, so the cross covariance equals the covariance of p
	shifted := make([]r3.Vector, p.Size())
	for i := range shifted {
		shifted[i] = p.PointAt(i).Add(r3.Vector{X: 5, Y: -2})
	}
	q := pointcloud.New(shifted)

	cross, err := ComputeCrossCovarianceMatrix(ctx, p, q, nil, nil)
	test.That(t, err, test.ShouldBeNil)
	cov, err := ComputeCovarianceMatrix(ctx, p, nil)
	test.That(t, err, test.ShouldBeNil)
	for r := 0; r < 3; r++ {
		for c := 0; c < 3; c++ {
			test.That(t, cross.At(r, c), test.ShouldAlmostEqual, cov.At(r, c))
		}
	}

	// unit weights give the unweighted matrix
	weights := pointcloud.NewScalarField("weights", p.Size())
	weights.Fill(1)
	weighted, err := ComputeWeightedCrossCovarianceMatrix(ctx, p, q, nil, nil, weights)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, mat.EqualApprox(weighted, cross, 1e-12), test.ShouldBeTrue)
	unweighted, err := ComputeWeightedCrossCovarianceMatrix(ctx, p, q, nil, nil, nil)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, mat.Equal(unweighted, cross), test.ShouldBeTrue)

	// a rotation of 90 degrees about z maps x on y
	rotated := make([]r3.Vector, p.Size())
	for i := range rotated {
		v := p.PointAt(i)
		rotated[i] = r3.Vector{X: -v.Y, Y: v.X, Z: v.Z}
	}
	cross, err = ComputeCrossCovarianceMatrix(ctx, p, pointcloud.New(rotated), nil, nil)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, cross.At(0, 1), test.ShouldAlmostEqual, cov.At(0, 0))
	test.That(t, cross.At(1, 0), test.ShouldAlmostEqual, -cov.At(1, 1))

	_, err = ComputeCrossCovarianceMatrix(ctx, p, pointcloud.New(shifted[:10]), nil, nil)
	test.That(t, CodeOf(err), test.ShouldEqual, InvalidInput)
	_, err = ComputeCrossCovarianceMatrix(ctx, p, nil, nil, nil)
	test.That(t, CodeOf(err), test.ShouldEqual, InvalidInput)
	weights.Fill(math.NaN())
	_, err = ComputeWeightedCrossCovarianceMatrix(ctx, p, q, nil, nil, weights)
	test.That(t, CodeOf(err), test.ShouldEqual, InvalidInput)
}
