package geometry

import (
	"context"
	"math"
	"math/rand"
	"time"

	"github.com/golang/geo/r3"
	"github.com/montanaflynn/stats"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"go.viam.com/pcgeom/pointcloud"
	"go.viam.com/pcgeom/progress"
	"go.viam.com/pcgeom/utils"
)

// SphereResult is a fitted sphere.
type SphereResult struct {
	Center r3.Vector
	Radius float64
	// RMS is the root mean square distance of every point of the cloud to the sphere.
	RMS float64
	// InlierRMS is the root mean square distance of the inliers to the sphere.
	InlierRMS float64
	// InlierCount is the number of points kept by the robust threshold.
	InlierCount int
}

const maxRefineIterations = 100

// ComputeSphereFrom4 returns the sphere through four points, solving
// x^2 + y^2 + z^2 + Dx + Ey + Fz + G = 0 for each of them. Coplanar or coincident points are
// an InvalidInput error.
func ComputeSphereFrom4(a, b, c, d r3.Vector) (r3.Vector, float64, error) {
	// work relative to a to keep the system well scaled
	rel := [4]r3.Vector{{}, b.Sub(a), c.Sub(a), d.Sub(a)}

	scale := math.Max(rel[1].Norm(), math.Max(rel[2].Norm(), rel[3].Norm()))
	for _, p := range rel[1:] {
		for _, q := range rel[1:] {
			scale = math.Max(scale, p.Sub(q).Norm())
		}
	}
	volume := math.Abs(rel[1].Dot(rel[2].Cross(rel[3])))
	if scale == 0 || volume <= 1e-12*scale*scale*scale {
		return r3.Vector{}, 0, errors.Wrap(InvalidInput, "points are coplanar")
	}

	m := mat.NewDense(4, 4, nil)
	rhs := mat.NewVecDense(4, nil)
	for k, p := range rel {
		m.SetRow(k, []float64{p.X, p.Y, p.Z, 1})
		rhs.SetVec(k, -p.Norm2())
	}
	var x mat.VecDense
	if err := x.SolveVec(m, rhs); err != nil {
		return r3.Vector{}, 0, errors.Wrap(InvalidInput, err.Error())
	}

	center := r3.Vector{X: -x.AtVec(0) / 2, Y: -x.AtVec(1) / 2, Z: -x.AtVec(2) / 2}
	sqRadius := center.Norm2() - x.AtVec(3)
	if sqRadius <= 0 || math.IsNaN(sqRadius) {
		return r3.Vector{}, 0, errors.Wrap(InvalidInput, "degenerate sphere")
	}
	return center.Add(a), math.Sqrt(sqRadius), nil
}

// DetectSphereRobust fits a sphere on a cloud containing up to outliersRatio outliers.
// Candidates through 4 random points are scored by the median of the squared distances of
// an evaluation subset (least median of squares). Enough candidates are drawn to find an
// outlier free sample with the given confidence, then the best one is refined by least
// squares over the points within 2.5 robust standard deviations.
//
// A non zero seed makes the result deterministic. A zero confidence selects
// Config.Confidence.
func DetectSphereRobust(
	ctx context.Context,
	cloud pointcloud.Cloud,
	outliersRatio float64,
	confidence float64,
	seed int64,
	opts *Options,
) (SphereResult, error) {
	if cloud == nil {
		return SphereResult{}, errors.Wrap(InvalidInput, "nil cloud")
	}
	if outliersRatio < 0 || outliersRatio >= 1 || math.IsNaN(outliersRatio) {
		return SphereResult{}, errors.Wrapf(InvalidInput, "outliers ratio must be in [0, 1), got %v", outliersRatio)
	}
	if err := opts.validate(); err != nil {
		return SphereResult{}, err
	}
	conf := opts.config()
	if confidence == 0 {
		confidence = conf.Confidence
	}
	if confidence <= 0 || confidence >= 1 || math.IsNaN(confidence) {
		return SphereResult{}, errors.Wrapf(InvalidInput, "confidence must be in (0, 1), got %v", confidence)
	}
	n := cloud.Size()
	if err := checkCloudSize(n, 4, "sphere detection"); err != nil {
		return SphereResult{}, err
	}
	logger := opts.logger()
	cb := opts.progress()

	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	//nolint:gosec
	rng := rand.New(rand.NewSource(seed))

	trials := sampleCount(outliersRatio, confidence)
	if trials > conf.SphereMaxIterations {
		trials = conf.SphereMaxIterations
	}

	evaluation := make([]int, 0, n)
	if n <= conf.SphereEvaluationSize {
		for i := 0; i < n; i++ {
			evaluation = append(evaluation, i)
		}
	} else {
		evaluation = append(evaluation, rng.Perm(n)[:conf.SphereEvaluationSize]...)
	}
	logger.Debugw("detecting sphere", "points", n, "trials", trials, "evaluation_size", len(evaluation))

	np := progress.NewNormalized(cb, trials)
	residuals := make(stats.Float64Data, len(evaluation))
	bestMedian := math.Inf(1)
	var best SphereResult
	valid := 0
	for attempt := 0; attempt < conf.SphereMaxIterations && valid < trials; attempt++ {
		if ctx.Err() != nil || cb.Cancelled() {
			return SphereResult{}, errors.Wrap(ProcessCancelledByUser, "sphere detection cancelled")
		}
		sample := sampleFourDistinct(rng, n)
		center, radius, err := ComputeSphereFrom4(
			cloud.PointAt(sample[0]), cloud.PointAt(sample[1]), cloud.PointAt(sample[2]), cloud.PointAt(sample[3]))
		if err != nil {
			continue
		}
		valid++
		np.OneStep()

		for k, idx := range evaluation {
			d := cloud.PointAt(idx).Sub(center).Norm() - radius
			residuals[k] = utils.Square(d)
		}
		median, err := stats.Median(residuals)
		if err != nil {
			return SphereResult{}, errors.Wrap(ProcessFailed, err.Error())
		}
		if median < bestMedian {
			bestMedian = median
			best = SphereResult{Center: center, Radius: radius}
		}
	}
	if math.IsInf(bestMedian, 1) {
		return SphereResult{}, errors.Wrap(ProcessFailed, "no valid sphere candidate")
	}

	// robust standard deviation of the least median of squares estimate
	sigma := 1.4826 * (1 + 5/math.Max(float64(n-4), 1)) * math.Sqrt(bestMedian)
	threshold := math.Max(2.5*sigma, 1e-6*best.Radius)
	var inliers []r3.Vector
	for i := 0; i < n; i++ {
		p := cloud.PointAt(i)
		if d := p.Sub(best.Center).Norm() - best.Radius; d*d <= threshold*threshold {
			inliers = append(inliers, p)
		}
	}

	iterations := 0
	if len(inliers) >= 4 {
		var center r3.Vector
		var radius float64
		center, radius, iterations = refineSphere(inliers, best.Center, conf.MinRelativeCenterShift)
		if finiteVector(center) && radius > 0 && !math.IsInf(radius, 0) {
			best.Center, best.Radius = center, radius
		}
	}

	best.InlierCount = len(inliers)
	best.InlierRMS = sphereRMS(inliers, best.Center, best.Radius)
	best.RMS = sphereRMS(pointcloud.Points(cloud), best.Center, best.Radius)
	logger.Debugw("sphere detected",
		"center", best.Center, "radius", best.Radius, "median", bestMedian,
		"inliers", best.InlierCount, "refine_iterations", iterations)
	cb.Report(1)
	return best, nil
}

// sampleCount returns the number of 4 point samples needed to draw at least one free of
// outliers with the given confidence.
func sampleCount(outliersRatio, confidence float64) int {
	good := math.Pow(1-outliersRatio, 4)
	if good >= 1 {
		return 1
	}
	count := math.Ceil(math.Log(1-confidence) / math.Log(1-good))
	if count < 1 || math.IsNaN(count) {
		return 1
	}
	if count > math.MaxInt32 {
		return math.MaxInt32
	}
	return int(count)
}

func sampleFourDistinct(rng *rand.Rand, n int) [4]int {
	var idx [4]int
	for i := 0; i < 4; i++ {
		for {
			idx[i] = rng.Intn(n)
			unique := true
			for j := 0; j < i; j++ {
				if idx[i] == idx[j] {
					unique = false
					break
				}
			}
			if unique {
				break
			}
		}
	}
	return idx
}

// refineSphere minimizes the sum of squared distances to the sphere with the fixed point
// iteration c = mean(P) + r * mean((c - P_i) / |c - P_i|), r = mean(|c - P_i|). It stops
// once the center moves by less than minRelativeShift times the radius.
func refineSphere(points []r3.Vector, center r3.Vector, minRelativeShift float64) (r3.Vector, float64, int) {
	var mean r3.Vector
	for _, p := range points {
		mean = mean.Add(p)
	}
	count := float64(len(points))
	mean = mean.Mul(1 / count)

	radius := 0.
	iteration := 0
	for iteration < maxRefineIterations {
		iteration++
		var sumLength float64
		var sumDir r3.Vector
		for _, p := range points {
			d := center.Sub(p)
			length := d.Norm()
			sumLength += length
			if length > 0 {
				sumDir = sumDir.Add(d.Mul(1 / length))
			}
		}
		radius = sumLength / count
		next := mean.Add(sumDir.Mul(radius / count))
		shift := next.Sub(center).Norm()
		center = next
		if radius == 0 || shift/radius < minRelativeShift {
			break
		}
	}

	var sumLength float64
	for _, p := range points {
		sumLength += p.Sub(center).Norm()
	}
	radius = sumLength / count
	return center, radius, iteration
}

func sphereRMS(points []r3.Vector, center r3.Vector, radius float64) float64 {
	if len(points) == 0 {
		return 0
	}
	var sum float64
	for _, p := range points {
		d := p.Sub(center).Norm() - radius
		sum += utils.Square(d)
	}
	return math.Sqrt(sum / float64(len(points)))
}

func finiteVector(v r3.Vector) bool {
	for _, c := range []float64{v.X, v.Y, v.Z} {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return false
		}
	}
	return true
}
