package geometry

import (
	"context"
	"math"

	"github.com/pkg/errors"

	"go.viam.com/pcgeom/octree"
	"go.viam.com/pcgeom/pointcloud"
	"go.viam.com/pcgeom/progress"
)

type duplicateParams struct {
	minDistance float64
	level       int
	octree      *octree.Octree

	// lower holds, per point, the lower index points within minDistance.
	lower [][]int
}

// FlagDuplicatePoints writes 1 in out for every point to remove and 0 for every point to keep,
// so that no two kept points are within minDistance of each other. Points are decided in
// index order: a point is flagged when a kept point of lower index lies within minDistance.
// Neighbours are gathered cell by cell, possibly in parallel, and the flags are resolved in
// a single pass afterwards, so the result does not depend on parallelism.
func FlagDuplicatePoints(
	ctx context.Context,
	cloud pointcloud.Cloud,
	minDistance float64,
	out *pointcloud.ScalarField,
	opts *Options,
) error {
	if cloud == nil {
		return errors.Wrap(InvalidInput, "nil cloud")
	}
	if minDistance <= 0 || math.IsNaN(minDistance) || math.IsInf(minDistance, 0) {
		return errors.Wrapf(InvalidInput, "minimum distance must be positive, got %v", minDistance)
	}
	if err := opts.validate(); err != nil {
		return err
	}
	values, err := prepareOutput(out, cloud.Size())
	if err != nil {
		return err
	}
	if err := checkCloudSize(cloud.Size(), 1, "duplicate flagging"); err != nil {
		return err
	}

	o, err := octreeFor(ctx, cloud, opts)
	if err != nil {
		return err
	}
	params := &duplicateParams{
		minDistance: minDistance,
		level:       o.FindBestLevelForRadius(minDistance),
		octree:      o,
		lower:       make([][]int, cloud.Size()),
	}
	opts.logger().Debugw("flagging duplicate points", "min_distance", minDistance, "level", params.level)

	err = octree.ForEachCell(ctx, o, params.level, params, flagDuplicatesInCell, opts.config().traversal(), opts.progress())
	if err != nil {
		return fromOctreeError(err)
	}
	resolveDuplicates(params.lower, values)
	commitOutput(out, values)
	return nil
}

func flagDuplicatesInCell(cell octree.Cell, params *duplicateParams, np *progress.Normalized) error {
	cloud := params.octree.Cloud()
	var buf []octree.Neighbour
	for _, idx := range cell.Points {
		buf = params.octree.NeighboursWithinRadiusAtLevel(cloud.PointAt(idx), params.minDistance, params.level, buf)
		var lower []int
		for _, n := range buf {
			if n.Index < idx {
				lower = append(lower, n.Index)
			}
		}
		params.lower[idx] = lower
		if !np.OneStep() {
			return nil
		}
	}
	return nil
}

// resolveDuplicates flags, in index order, every point having a kept lower index neighbour.
func resolveDuplicates(lower [][]int, values []float64) {
	for i, neighbours := range lower {
		flag := 0.
		for _, j := range neighbours {
			if values[j] == 0 {
				flag = 1
				break
			}
		}
		values[i] = flag
	}
}
