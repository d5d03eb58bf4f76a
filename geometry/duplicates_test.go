package geometry

import (
	"context"
	"math/rand"
	"testing"

	"github.com/golang/geo/r3"
	"go.viam.com/test"

	"go.viam.com/pcgeom/pointcloud"
)

func TestFlagDuplicatePoints(t *testing.T) {
	points := pointcloud.GridPoints(r3.Vector{}, 6, 1)
	// near copies of the first point and of the last one, appended after them
	points = append(points, r3.Vector{X: 0.001}, points[len(points)-1].Add(r3.Vector{Z: 0.002}))
	cloud := pointcloud.New(points)

	for _, parallel := range []bool{false, true} {
		out := pointcloud.NewScalarField("duplicates", cloud.Size())
		err := FlagDuplicatePoints(context.Background(), cloud, 0.01, out, testOptions(t, parallel))
		test.That(t, err, test.ShouldBeNil)

		var flagged []int
		for i := 0; i < cloud.Size(); i++ {
			test.That(t, out.IsValid(i), test.ShouldBeTrue)
			if out.Value(i) == 1 {
				flagged = append(flagged, i)
			} else {
				test.That(t, out.Value(i), test.ShouldEqual, 0)
			}
		}
		test.That(t, flagged, test.ShouldResemble, []int{cloud.Size() - 2, cloud.Size() - 1})
	}
}

func TestFlagDuplicatePointsChain(t *testing.T) {
	for _, tc := range []struct {
		name     string
		points   []r3.Vector
		expected []float64
	}{
		{
			"three points",
			[]r3.Vector{{}, {X: 0.9}, {X: 1.8}},
			[]float64{0, 1, 0},
		},
		{
			"long chain keeps every other point",
			[]r3.Vector{{}, {X: 0.9}, {X: 1.8}, {X: 2.7}, {X: 3.6}, {X: 4.5}},
			[]float64{0, 1, 0, 1, 0, 1},
		},
		{
			"unordered chain",
			[]r3.Vector{{X: 1.8}, {}, {X: 0.9}},
			[]float64{0, 0, 1},
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			cloud := pointcloud.New(tc.points)
			for _, parallel := range []bool{false, true} {
				out := pointcloud.NewScalarField("duplicates", cloud.Size())
				err := FlagDuplicatePoints(context.Background(), cloud, 1, out, testOptions(t, parallel))
				test.That(t, err, test.ShouldBeNil)
				test.That(t, out.Values(), test.ShouldResemble, tc.expected)
			}
		})
	}
}

func TestFlagDuplicatePointsKeptAreApart(t *testing.T) {
	rng := rand.New(rand.NewSource(8))
	cloud := pointcloud.New(pointcloud.UniformPoints(rng, r3.Vector{}, r3.Vector{X: 1, Y: 1, Z: 1}, 2000))
	const minDistance = 0.05
	out := pointcloud.NewScalarField("duplicates", cloud.Size())
	err := FlagDuplicatePoints(context.Background(), cloud, minDistance, out, testOptions(t, true))
	test.That(t, err, test.ShouldBeNil)

	var kept []r3.Vector
	for i := 0; i < cloud.Size(); i++ {
		p := cloud.PointAt(i)
		near := false
		for _, q := range kept {
			if p.Sub(q).Norm() <= minDistance {
				near = true
				break
			}
		}
		// greedy selection in index order
		if near {
			test.That(t, out.Value(i), test.ShouldEqual, 1)
		} else {
			test.That(t, out.Value(i), test.ShouldEqual, 0)
			kept = append(kept, p)
		}
	}
	test.That(t, len(kept), test.ShouldBeLessThan, cloud.Size())
}

func TestFlagDuplicatePointsParallelMatchesSequential(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	points := pointcloud.UniformPoints(rng, r3.Vector{}, r3.Vector{X: 1, Y: 1, Z: 1}, 3000)
	points = append(points, points[:300]...)
	cloud := pointcloud.New(points)

	run := func(parallel bool) []float64 {
		out := pointcloud.NewScalarField("duplicates", cloud.Size())
		err := FlagDuplicatePoints(context.Background(), cloud, 0.02, out, testOptions(t, parallel))
		test.That(t, err, test.ShouldBeNil)
		return out.Values()
	}
	sequential := run(false)
	test.That(t, run(true), test.ShouldResemble, sequential)
	// every exact copy has its original at a lower index
	for i := 3000; i < cloud.Size(); i++ {
		test.That(t, sequential[i], test.ShouldEqual, 1)
	}
}

func TestFlagDuplicatePointsErrors(t *testing.T) {
	cloud := pointcloud.New(pointcloud.GridPoints(r3.Vector{}, 3, 1))
	out := pointcloud.NewScalarField("duplicates", cloud.Size())
	ctx := context.Background()

	for _, d := range []float64{0, -1} {
		err := FlagDuplicatePoints(ctx, cloud, d, out, nil)
		test.That(t, CodeOf(err), test.ShouldEqual, InvalidInput)
	}
	err := FlagDuplicatePoints(ctx, nil, 1, out, nil)
	test.That(t, CodeOf(err), test.ShouldEqual, InvalidInput)
	err = FlagDuplicatePoints(ctx, cloud, 1, nil, nil)
	test.That(t, CodeOf(err), test.ShouldEqual, InvalidInput)
	err = FlagDuplicatePoints(ctx, pointcloud.New(nil), 1, out, nil)
	test.That(t, CodeOf(err), test.ShouldEqual, NotEnoughPoints)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	err = FlagDuplicatePoints(cancelled, cloud, 0.5, out, nil)
	test.That(t, CodeOf(err), test.ShouldEqual, ProcessCancelledByUser)
	test.That(t, out.CountValid(), test.ShouldEqual, 0)

	// a single point is never a duplicate
	single := pointcloud.NewScalarField("single", 1)
	err = FlagDuplicatePoints(ctx, pointcloud.New([]r3.Vector{{X: 3}}), 1, single, nil)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, single.Value(0), test.ShouldEqual, 0)
}
