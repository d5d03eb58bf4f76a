package geometry

import (
	"context"
	"math"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"go.viam.com/pcgeom/pointcloud"
	"go.viam.com/pcgeom/utils"
)

// partialSum is the accumulator of one group of points.
type partialSum struct {
	weight float64
	vector r3.Vector
	matrix [3][3]float64
}

func (s *partialSum) addOuter(a, b r3.Vector, w float64) {
	av := [3]float64{a.X, a.Y, a.Z}
	bv := [3]float64{b.X, b.Y, b.Z}
	for r := 0; r < 3; r++ {
		for c := 0; c < 3; c++ {
			s.matrix[r][c] += w * av[r] * bv[c]
		}
	}
	s.weight += w
}

// reduce runs member on every index of [0, size) over parallel groups, each group
// accumulating into its own partialSum, then merges the partial sums in group order.
func reduce(ctx context.Context, size int, member func(i int, acc *partialSum)) (partialSum, error) {
	var partials []partialSum
	err := utils.GroupWorkParallel(
		ctx,
		size,
		func(numGroups int) {
			partials = make([]partialSum, numGroups)
		},
		func(groupNum, groupSize, from, to int) (utils.MemberWorkFunc, utils.GroupWorkDoneFunc) {
			acc := &partials[groupNum]
			return func(memberNum, workNum int) {
				member(workNum, acc)
			}, nil
		},
	)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return partialSum{}, errors.Wrap(ProcessCancelledByUser, err.Error())
		}
		return partialSum{}, errors.Wrap(ProcessFailed, err.Error())
	}

	var total partialSum
	for _, p := range partials {
		total.weight += p.weight
		total.vector = total.vector.Add(p.vector)
		for r := 0; r < 3; r++ {
			for c := 0; c < 3; c++ {
				total.matrix[r][c] += p.matrix[r][c]
			}
		}
	}
	return total, nil
}

// ComputeGravityCenter returns the mean of the points.
func ComputeGravityCenter(ctx context.Context, cloud pointcloud.Cloud) (r3.Vector, error) {
	if cloud == nil {
		return r3.Vector{}, errors.Wrap(InvalidInput, "nil cloud")
	}
	if err := checkCloudSize(cloud.Size(), 1, "gravity center"); err != nil {
		return r3.Vector{}, err
	}
	sum, err := reduce(ctx, cloud.Size(), func(i int, acc *partialSum) {
		acc.vector = acc.vector.Add(cloud.PointAt(i))
		acc.weight++
	})
	if err != nil {
		return r3.Vector{}, err
	}
	return sum.vector.Mul(1 / sum.weight), nil
}

// weightOf returns the accumulation weight of point i: the absolute weight, or 0 for NaN.
func weightOf(weights *pointcloud.ScalarField, i int) float64 {
	w := weights.Value(i)
	if math.IsNaN(w) {
		return 0
	}
	return math.Abs(w)
}

func checkWeights(weights *pointcloud.ScalarField, size int) error {
	if weights == nil {
		return errors.Wrap(InvalidInput, "nil weights")
	}
	if weights.Size() < size {
		return errors.Wrapf(InvalidInput, "%d weights for %d points", weights.Size(), size)
	}
	return nil
}

// ComputeWeightedGravityCenter returns the mean of the points weighted by the absolute
// values of weights. NaN weights are ignored. A null total weight is an InvalidInput error.
func ComputeWeightedGravityCenter(ctx context.Context, cloud pointcloud.Cloud, weights *pointcloud.ScalarField) (r3.Vector, error) {
	if cloud == nil {
		return r3.Vector{}, errors.Wrap(InvalidInput, "nil cloud")
	}
	if err := checkWeights(weights, cloud.Size()); err != nil {
		return r3.Vector{}, err
	}
	if err := checkCloudSize(cloud.Size(), 1, "weighted gravity center"); err != nil {
		return r3.Vector{}, err
	}
	sum, err := reduce(ctx, cloud.Size(), func(i int, acc *partialSum) {
		w := weightOf(weights, i)
		if w == 0 {
			return
		}
		acc.vector = acc.vector.Add(cloud.PointAt(i).Mul(w))
		acc.weight += w
	})
	if err != nil {
		return r3.Vector{}, err
	}
	if sum.weight == 0 {
		return r3.Vector{}, errors.Wrap(InvalidInput, "total weight is zero")
	}
	return sum.vector.Mul(1 / sum.weight), nil
}

// ComputeCovarianceMatrix returns sum((p - c)(p - c)^T) / N about center, or about the
// gravity center when center is nil.
func ComputeCovarianceMatrix(ctx context.Context, cloud pointcloud.Cloud, center *r3.Vector) (*mat.SymDense, error) {
	if cloud == nil {
		return nil, errors.Wrap(InvalidInput, "nil cloud")
	}
	if err := checkCloudSize(cloud.Size(), 1, "covariance matrix"); err != nil {
		return nil, err
	}
	c, err := centerOrGravity(ctx, cloud, center, nil)
	if err != nil {
		return nil, err
	}
	sum, err := reduce(ctx, cloud.Size(), func(i int, acc *partialSum) {
		d := cloud.PointAt(i).Sub(c)
		acc.addOuter(d, d, 1)
	})
	if err != nil {
		return nil, err
	}
	cov := mat.NewSymDense(3, nil)
	for r := 0; r < 3; r++ {
		for col := r; col < 3; col++ {
			cov.SetSym(r, col, sum.matrix[r][col]/sum.weight)
		}
	}
	return cov, nil
}

// ComputeCrossCovarianceMatrix returns sum((P_i - cP)(Q_i - cQ)^T) / N of the couples
// (P_i, Q_i). Nil centers are replaced by the gravity centers.
func ComputeCrossCovarianceMatrix(ctx context.Context, p, q pointcloud.Cloud, centerP, centerQ *r3.Vector) (*mat.Dense, error) {
	return ComputeWeightedCrossCovarianceMatrix(ctx, p, q, centerP, centerQ, nil)
}

// ComputeWeightedCrossCovarianceMatrix is ComputeCrossCovarianceMatrix with each couple
// weighted by the absolute value of its weight, normalized by the total weight. NaN
// weights are ignored. Nil centers are replaced by the weighted gravity centers. Nil
// weights give the unweighted matrix.
func ComputeWeightedCrossCovarianceMatrix(
	ctx context.Context,
	p, q pointcloud.Cloud,
	centerP, centerQ *r3.Vector,
	coupleWeights *pointcloud.ScalarField,
) (*mat.Dense, error) {
	if p == nil || q == nil {
		return nil, errors.Wrap(InvalidInput, "nil cloud")
	}
	if p.Size() != q.Size() {
		return nil, errors.Wrapf(InvalidInput, "clouds have different sizes %d and %d", p.Size(), q.Size())
	}
	if coupleWeights != nil {
		if err := checkWeights(coupleWeights, p.Size()); err != nil {
			return nil, err
		}
	}
	if err := checkCloudSize(p.Size(), 1, "cross covariance matrix"); err != nil {
		return nil, err
	}

	cP, err := centerOrGravity(ctx, p, centerP, coupleWeights)
	if err != nil {
		return nil, err
	}
	cQ, err := centerOrGravity(ctx, q, centerQ, coupleWeights)
	if err != nil {
		return nil, err
	}

	sum, err := reduce(ctx, p.Size(), func(i int, acc *partialSum) {
		w := 1.
		if coupleWeights != nil {
			if w = weightOf(coupleWeights, i); w == 0 {
				return
			}
		}
		acc.addOuter(p.PointAt(i).Sub(cP), q.PointAt(i).Sub(cQ), w)
	})
	if err != nil {
		return nil, err
	}
	if sum.weight == 0 {
		return nil, errors.Wrap(InvalidInput, "total weight is zero")
	}

	cov := mat.NewDense(3, 3, nil)
	for r := 0; r < 3; r++ {
		for c := 0; c < 3; c++ {
			cov.Set(r, c, sum.matrix[r][c]/sum.weight)
		}
	}
	return cov, nil
}

func centerOrGravity(ctx context.Context, cloud pointcloud.Cloud, center *r3.Vector, weights *pointcloud.ScalarField) (r3.Vector, error) {
	switch {
	case center != nil:
		return *center, nil
	case weights != nil:
		return ComputeWeightedGravityCenter(ctx, cloud, weights)
	default:
		return ComputeGravityCenter(ctx, cloud)
	}
}
