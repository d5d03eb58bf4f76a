// Package octree implements a static octree over an indexed point cloud. Space is split into a
// hierarchy of cubic cells; a cell at level L has an edge of side/2^L. Every point gets a Morton
// code at the deepest level and the point indices are kept sorted by code, so the points of any
// cell at any level form a contiguous range of that single array.
//
// The octree is read-only once built and can be shared by any number of goroutines.
package octree

import (
	"context"
	"math"
	"sort"

	"github.com/edaniels/golog"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"

	"go.viam.com/pcgeom/logging"
	"go.viam.com/pcgeom/pointcloud"
)

// MaxLevel is the deepest subdivision level. Three interleaved 21 bit cell coordinates
// fill a 63 bit code.
const MaxLevel = 21

// MaxPoints is the largest cloud that can be indexed.
const MaxPoints = math.MaxInt32

var (
	// ErrNotEnoughPoints is returned when building an octree on an empty cloud.
	ErrNotEnoughPoints = errors.New("not enough points")
	// ErrInvalidInput is returned for bad parameters or non finite coordinates.
	ErrInvalidInput = errors.New("invalid input")
	// ErrTooManyPoints is returned when the cloud does not fit in the index.
	ErrTooManyPoints = errors.New("too many points")
	// ErrCancelled is returned when a traversal stopped because cancellation was requested.
	ErrCancelled = errors.New("process cancelled by user")
)

// Octree is the spatial index of a cloud.
type Octree struct {
	logger     golog.Logger
	cloud      pointcloud.Cloud
	origin     r3.Vector
	sideLength float64

	// codes[k] is the deepest level code of point indices[k]; codes is sorted.
	codes   []uint64
	indices []int
	// position in codes/indices of each point
	rank []int

	cellCounts [MaxLevel + 1]int
}

// Build indexes every point of the cloud. The bounding cube is the cloud's bounding box
// made cubic and slightly enlarged so that no point lies on its upper faces.
func Build(ctx context.Context, cloud pointcloud.Cloud, logger golog.Logger) (*Octree, error) {
	logger = logging.OrGlobal(logger)
	if cloud == nil {
		return nil, errors.Wrap(ErrInvalidInput, "nil cloud")
	}
	n := cloud.Size()
	if n == 0 {
		return nil, errors.Wrap(ErrNotEnoughPoints, "cannot build an octree on an empty cloud")
	}
	if n > MaxPoints {
		return nil, errors.Wrapf(ErrTooManyPoints, "%d points", n)
	}

	meta := pointcloud.NewMetaData()
	for i := 0; i < n; i++ {
		p := cloud.PointAt(i)
		if !finite(p) {
			return nil, errors.Wrapf(ErrInvalidInput, "point %d has non finite coordinates %v", i, p)
		}
		meta.Merge(p)
	}

	side := meta.MaxSideLength()
	if side == 0 {
		side = 1
	}
	side *= 1 + 1e-6
	center := meta.Min().Add(meta.Max()).Mul(0.5)
	origin := center.Sub(r3.Vector{X: side / 2, Y: side / 2, Z: side / 2})

	o := &Octree{
		logger:     logger,
		cloud:      cloud,
		origin:     origin,
		sideLength: side,
		codes:      make([]uint64, n),
		indices:    make([]int, n),
		rank:       make([]int, n),
	}

	for i := 0; i < n; i++ {
		x, y, z := o.deepestPosition(cloud.PointAt(i))
		o.codes[i] = interleave(x, y, z)
		o.indices[i] = i
	}
	if err := ctx.Err(); err != nil {
		return nil, errors.Wrap(ErrCancelled, err.Error())
	}

	sort.Sort(byCode{o})
	for k, idx := range o.indices {
		o.rank[idx] = k
	}

	for level := 0; level <= MaxLevel; level++ {
		shift := levelShift(level)
		count := 0
		for k := range o.codes {
			if k == 0 || o.codes[k]>>shift != o.codes[k-1]>>shift {
				count++
			}
		}
		o.cellCounts[level] = count
	}

	logger.Debugw("octree built", "points", n, "side", side, "deepest_cells", o.cellCounts[MaxLevel])
	return o, nil
}

type byCode struct {
	o *Octree
}

func (b byCode) Len() int { return len(b.o.codes) }

func (b byCode) Less(i, j int) bool {
	if b.o.codes[i] != b.o.codes[j] {
		return b.o.codes[i] < b.o.codes[j]
	}
	return b.o.indices[i] < b.o.indices[j]
}

func (b byCode) Swap(i, j int) {
	b.o.codes[i], b.o.codes[j] = b.o.codes[j], b.o.codes[i]
	b.o.indices[i], b.o.indices[j] = b.o.indices[j], b.o.indices[i]
}

func finite(p r3.Vector) bool {
	for _, v := range []float64{p.X, p.Y, p.Z} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// Size returns the number of indexed points.
func (o *Octree) Size() int {
	return len(o.indices)
}

// Cloud returns the indexed cloud.
func (o *Octree) Cloud() pointcloud.Cloud {
	return o.cloud
}

// Logger returns the logger of the octree.
func (o *Octree) Logger() golog.Logger {
	return o.logger
}

// Origin returns the minimum corner of the bounding cube.
func (o *Octree) Origin() r3.Vector {
	return o.origin
}

// SideLength returns the edge length of the bounding cube.
func (o *Octree) SideLength() float64 {
	return o.sideLength
}

// CellSize returns the edge length of the cells at the given level.
func (o *Octree) CellSize(level int) float64 {
	return o.sideLength / float64(uint64(1)<<uint(level))
}

// CellCount returns the number of non empty cells at the given level.
func (o *Octree) CellCount(level int) int {
	if level < 0 || level > MaxLevel {
		return 0
	}
	return o.cellCounts[level]
}

// deepestPosition returns the integer coordinates of the deepest level cell containing p,
// clamped to the grid.
func (o *Octree) deepestPosition(p r3.Vector) (uint64, uint64, uint64) {
	scale := float64(uint64(1)<<MaxLevel) / o.sideLength
	d := p.Sub(o.origin)
	return clampCoord(d.X * scale), clampCoord(d.Y * scale), clampCoord(d.Z * scale)
}

func clampCoord(v float64) uint64 {
	const maxCoord = uint64(1)<<MaxLevel - 1
	if v <= 0 || math.IsNaN(v) {
		return 0
	}
	if v >= float64(maxCoord) {
		return maxCoord
	}
	return uint64(v)
}

// levelShift is the number of low code bits dropped to get a cell address at level.
func levelShift(level int) uint {
	return uint(3 * (MaxLevel - level))
}

// FindBestLevelForRadius returns the deepest level whose cells are at least as large as
// radius, so that the points within radius of any location lie in the 3x3x3 block of
// cells around it.
func (o *Octree) FindBestLevelForRadius(radius float64) int {
	if radius <= 0 || math.IsNaN(radius) {
		return MaxLevel
	}
	for level := MaxLevel; level > 0; level-- {
		if o.CellSize(level) >= radius {
			return level
		}
	}
	return 0
}

// FindBestLevelForPopulation returns the level, starting at 1, whose mean number of points
// per non empty cell is the closest to population.
func (o *Octree) FindBestLevelForPopulation(population int) int {
	best := 1
	bestDiff := math.Inf(1)
	for level := 1; level <= MaxLevel; level++ {
		mean := float64(o.Size()) / float64(o.cellCounts[level])
		diff := math.Abs(mean - float64(population))
		if diff < bestDiff {
			best, bestDiff = level, diff
		}
		if mean < float64(population) {
			break
		}
	}
	return best
}
