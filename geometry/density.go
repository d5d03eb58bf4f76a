package geometry

import (
	"context"
	"math"

	"github.com/pkg/errors"

	"go.viam.com/pcgeom/octree"
	"go.viam.com/pcgeom/pointcloud"
	"go.viam.com/pcgeom/progress"
)

type densityParams struct {
	density Density
	level   int
	octree  *octree.Octree
	values  []float64
}

// ComputeLocalDensityApprox estimates the density around every point from the distance R
// to its nearest neighbour, as if exactly one neighbour lay within R: 1/R for DensityKNN,
// 1/(pi R^2) for Density2D and 1/(4/3 pi R^3) for Density3D. Points with an exact
// duplicate get NaN.
func ComputeLocalDensityApprox(
	ctx context.Context,
	cloud pointcloud.Cloud,
	density Density,
	out *pointcloud.ScalarField,
	opts *Options,
) error {
	if cloud == nil {
		return errors.Wrap(InvalidInput, "nil cloud")
	}
	if !density.Valid() {
		return errors.Wrapf(UnhandledCharacteristic, "unknown density type %d", int(density))
	}
	if err := opts.validate(); err != nil {
		return err
	}
	values, err := prepareOutput(out, cloud.Size())
	if err != nil {
		return err
	}
	if err := checkCloudSize(cloud.Size(), 2, "approximate density"); err != nil {
		return err
	}

	o, err := octreeFor(ctx, cloud, opts)
	if err != nil {
		return err
	}
	params := &densityParams{
		density: density,
		level:   o.FindBestLevelForPopulation(3),
		octree:  o,
		values:  values,
	}
	opts.logger().Debugw("computing approximate density", "density", int(density), "level", params.level)

	err = octree.ForEachCell(ctx, o, params.level, params, computeApproxDensityInCell, opts.config().traversal(), opts.progress())
	if err != nil {
		return fromOctreeError(err)
	}
	commitOutput(out, values)
	return nil
}

func computeApproxDensityInCell(cell octree.Cell, params *densityParams, np *progress.Normalized) error {
	for _, idx := range cell.Points {
		if nn, ok := params.octree.NearestNeighbour(idx, params.level); ok && nn.SquareDist > 0 {
			r := math.Sqrt(nn.SquareDist)
			switch params.density {
			case Density2D:
				params.values[idx] = 1 / (math.Pi * r * r)
			case Density3D:
				params.values[idx] = 1 / (4. / 3. * math.Pi * r * r * r)
			default:
				params.values[idx] = 1 / r
			}
		}
		if !np.OneStep() {
			return nil
		}
	}
	return nil
}
