// Package geometry implements the geometric analysis algorithms of point clouds: per point
// characteristics computed over octree neighbourhoods, duplicate flagging, gravity center
// and covariance reductions, and robust sphere and circle fitting.
//
// Every algorithm returns an error wrapping an ErrorCode; use CodeOf or errors.Is to test
// for a specific outcome. Output scalar fields are only written on success.
package geometry

import (
	"context"

	"github.com/pkg/errors"

	"go.viam.com/pcgeom/octree"
	"go.viam.com/pcgeom/pointcloud"
)

// octreeFor returns the octree of the options when it indexes cloud, or builds one.
func octreeFor(ctx context.Context, cloud pointcloud.Cloud, opts *Options) (*octree.Octree, error) {
	if opts != nil && opts.Octree != nil {
		if opts.Octree.Size() != cloud.Size() {
			return nil, errors.Wrapf(InvalidInput, "octree indexes %d points, cloud has %d", opts.Octree.Size(), cloud.Size())
		}
		return opts.Octree, nil
	}
	o, err := octree.Build(ctx, cloud, opts.logger())
	if err != nil {
		switch {
		case errors.Is(err, octree.ErrNotEnoughPoints),
			errors.Is(err, octree.ErrInvalidInput),
			errors.Is(err, octree.ErrTooManyPoints),
			errors.Is(err, octree.ErrCancelled):
			return nil, fromOctreeError(err)
		default:
			return nil, errors.Wrap(OctreeComputationFailed, err.Error())
		}
	}
	return o, nil
}

// prepareOutput checks the output field and returns a NaN filled scratch buffer of the
// cloud size. Results are copied to the field by commitOutput once the pass succeeded.
func prepareOutput(out *pointcloud.ScalarField, size int) ([]float64, error) {
	if out == nil {
		return nil, errors.Wrap(InvalidInput, "nil output scalar field")
	}
	scratch := pointcloud.NewScalarField("", size)
	return scratch.Values(), nil
}

func commitOutput(out *pointcloud.ScalarField, values []float64) {
	if out.Size() < len(values) {
		out.Resize(len(values))
	}
	for i, v := range values {
		out.SetValue(i, v)
	}
}
