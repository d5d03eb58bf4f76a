package geometry

import (
	"context"
	"math"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"

	"go.viam.com/pcgeom/neighbourhood"
	"go.viam.com/pcgeom/octree"
	"go.viam.com/pcgeom/pointcloud"
	"go.viam.com/pcgeom/progress"
)

// Characteristic is a per point descriptor computed over the spherical neighbourhood of
// each point.
type Characteristic int

// The available characteristics. The meaning of the sub option depends on it.
const (
	// Feature is a geometric feature; the sub option is a neighbourhood.GeomFeature.
	Feature Characteristic = iota
	// Curvature is a curvature estimate; the sub option is a neighbourhood.CurvatureType.
	Curvature
	// LocalDensity counts the neighbours; the sub option is a Density.
	LocalDensity
	// ApproxLocalDensity derives the density from the nearest neighbour distance; the sub
	// option is a Density.
	ApproxLocalDensity
	// Roughness is the distance to the plane fitted on the neighbours; no sub option.
	Roughness
	// MomentOrder1 is the first order moment along the local normal; no sub option.
	MomentOrder1
)

func (c Characteristic) String() string {
	switch c {
	case Feature:
		return "feature"
	case Curvature:
		return "curvature"
	case LocalDensity:
		return "local_density"
	case ApproxLocalDensity:
		return "approx_local_density"
	case Roughness:
		return "roughness"
	case MomentOrder1:
		return "moment_order1"
	default:
		return "unknown"
	}
}

// Density selects how a neighbour count is turned into a density.
type Density int

// The available densities.
const (
	// DensityKNN is the raw number of neighbours.
	DensityKNN Density = iota + 1
	// Density2D divides by the area of the disc of the kernel radius.
	Density2D
	// Density3D divides by the volume of the ball of the kernel radius.
	Density3D
)

// Valid reports whether d is one of the known densities.
func (d Density) Valid() bool {
	return d >= DensityKNN && d <= Density3D
}

// fromCount turns count points within radius into a density.
func (d Density) fromCount(count int, radius float64) float64 {
	switch d {
	case Density2D:
		return float64(count) / (math.Pi * radius * radius)
	case Density3D:
		return float64(count) / (4. / 3. * math.Pi * radius * radius * radius)
	default:
		return float64(count)
	}
}

// minPoints returns the size a cloud must have for the characteristic to be computable
// at all, or an UnhandledCharacteristic error.
func minPoints(c Characteristic, subOption int) (int, error) {
	switch c {
	case Feature:
		if !neighbourhood.GeomFeature(subOption).Valid() {
			return 0, errors.Wrapf(UnhandledCharacteristic, "unknown feature %d", subOption)
		}
		return neighbourhood.MinPointsForPlane, nil
	case Curvature:
		switch neighbourhood.CurvatureType(subOption) {
		case neighbourhood.GaussianCurvature, neighbourhood.MeanCurvature:
			return neighbourhood.MinPointsForQuadric, nil
		case neighbourhood.NormalChangeRate:
			return neighbourhood.MinPointsForPlane, nil
		default:
			return 0, errors.Wrapf(UnhandledCharacteristic, "unknown curvature type %d", subOption)
		}
	case LocalDensity, ApproxLocalDensity:
		if !Density(subOption).Valid() {
			return 0, errors.Wrapf(UnhandledCharacteristic, "unknown density type %d", subOption)
		}
		if c == ApproxLocalDensity {
			return 2, nil
		}
		return 1, nil
	case Roughness:
		// the point itself is not part of its neighbourhood
		return neighbourhood.MinPointsForPlane + 1, nil
	case MomentOrder1:
		return neighbourhood.MinPointsForPlane, nil
	default:
		return 0, errors.Wrapf(UnhandledCharacteristic, "unknown characteristic %d", int(c))
	}
}

type characteristicParams struct {
	c         Characteristic
	subOption int
	radius    float64
	level     int
	upDir     *r3.Vector
	octree    *octree.Octree
	values    []float64
}

// ComputeCharacteristic computes a characteristic for every point of cloud over its
// neighbours within kernelRadius and stores it in out. Points whose neighbourhood is too
// small get NaN. upDir orients the Roughness sign and may be nil for unsigned roughness.
//
// With ApproxLocalDensity, kernelRadius is ignored and ComputeLocalDensityApprox is used.
func ComputeCharacteristic(
	ctx context.Context,
	c Characteristic,
	subOption int,
	cloud pointcloud.Cloud,
	kernelRadius float64,
	out *pointcloud.ScalarField,
	upDir *r3.Vector,
	opts *Options,
) error {
	if cloud == nil {
		return errors.Wrap(InvalidInput, "nil cloud")
	}
	minimum, err := minPoints(c, subOption)
	if err != nil {
		return err
	}
	if c == ApproxLocalDensity {
		return ComputeLocalDensityApprox(ctx, cloud, Density(subOption), out, opts)
	}
	if kernelRadius <= 0 || math.IsNaN(kernelRadius) || math.IsInf(kernelRadius, 0) {
		return errors.Wrapf(InvalidInput, "kernel radius must be positive, got %v", kernelRadius)
	}
	if upDir != nil && upDir.Norm2() == 0 {
		return errors.Wrap(InvalidInput, "null up direction")
	}
	if err := opts.validate(); err != nil {
		return err
	}
	values, err := prepareOutput(out, cloud.Size())
	if err != nil {
		return err
	}
	if err := checkCloudSize(cloud.Size(), minimum, c.String()); err != nil {
		return err
	}

	o, err := octreeFor(ctx, cloud, opts)
	if err != nil {
		return err
	}
	params := &characteristicParams{
		c:         c,
		subOption: subOption,
		radius:    kernelRadius,
		level:     o.FindBestLevelForRadius(kernelRadius),
		upDir:     upDir,
		octree:    o,
		values:    values,
	}
	logger := opts.logger()
	logger.Debugw("computing characteristic", "characteristic", c, "sub_option", subOption, "radius", kernelRadius, "level", params.level)

	err = octree.ForEachCell(ctx, o, params.level, params, computeCharacteristicInCell, opts.config().traversal(), opts.progress())
	if err != nil {
		return fromOctreeError(err)
	}
	commitOutput(out, values)
	return nil
}

func computeCharacteristicInCell(cell octree.Cell, params *characteristicParams, np *progress.Normalized) error {
	cloud := params.octree.Cloud()
	nb := neighbourhood.New(cloud, nil)
	var (
		buf     []octree.Neighbour
		indices []int
	)
	for _, idx := range cell.Points {
		p := cloud.PointAt(idx)
		buf = params.octree.NeighboursWithinRadiusAtLevel(p, params.radius, params.level, buf)

		if params.c == LocalDensity {
			// the point is within its own radius
			params.values[idx] = Density(params.subOption).fromCount(len(buf), params.radius)
		} else {
			indices = indices[:0]
			for _, n := range buf {
				if params.c == Roughness && n.Index == idx {
					continue
				}
				indices = append(indices, n.Index)
			}
			nb.Reset(indices)
			if v, ok := characteristicOf(nb, p, params); ok {
				params.values[idx] = v
			}
		}

		if !np.OneStep() {
			return nil
		}
	}
	return nil
}

func characteristicOf(nb *neighbourhood.Neighbourhood, p r3.Vector, params *characteristicParams) (float64, bool) {
	switch params.c {
	case Feature:
		return nb.Feature(neighbourhood.GeomFeature(params.subOption))
	case Curvature:
		return nb.Curvature(p, neighbourhood.CurvatureType(params.subOption))
	case Roughness:
		return nb.Roughness(p, params.upDir)
	case MomentOrder1:
		return nb.MomentOrder1(p)
	default:
		return math.NaN(), false
	}
}
