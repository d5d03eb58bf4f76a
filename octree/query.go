package octree

import (
	"math"

	"github.com/golang/geo/r3"

	"go.viam.com/pcgeom/utils"
)

// Neighbour is a point found by a proximity query.
type Neighbour struct {
	Index      int
	SquareDist float64
}

// gridPosition returns the signed cell coordinates of p at level. They may be out of the
// grid when p is outside of the bounding cube.
func (o *Octree) gridPosition(p r3.Vector, level int) (int64, int64, int64) {
	cs := o.CellSize(level)
	d := p.Sub(o.origin)
	return gridCoord(d.X / cs), gridCoord(d.Y / cs), gridCoord(d.Z / cs)
}

// gridCoord floors v, bounded far enough outside of any grid to stay exact.
func gridCoord(v float64) int64 {
	const bound = float64(int64(1) << 40)
	return int64(math.Floor(utils.Clamp(v, -bound, bound)))
}

// PointsWithinRadius returns the indices of every point whose distance to center is at
// most radius, in increasing cell address order.
func (o *Octree) PointsWithinRadius(center r3.Vector, radius float64) []int {
	neighbours := o.NeighboursWithinRadius(center, radius, nil)
	out := make([]int, len(neighbours))
	for k, n := range neighbours {
		out[k] = n.Index
	}
	return out
}

// NeighboursWithinRadius appends to buf every point whose distance to center is at most
// radius, with its squared distance. The cells are searched at FindBestLevelForRadius(radius).
func (o *Octree) NeighboursWithinRadius(center r3.Vector, radius float64, buf []Neighbour) []Neighbour {
	return o.NeighboursWithinRadiusAtLevel(center, radius, o.FindBestLevelForRadius(radius), buf)
}

// NeighboursWithinRadiusAtLevel is NeighboursWithinRadius with an explicit search level.
// Coarse levels scan more points, fine levels scan more cells; results are identical.
func (o *Octree) NeighboursWithinRadiusAtLevel(center r3.Vector, radius float64, level int, buf []Neighbour) []Neighbour {
	buf = buf[:0]
	if radius < 0 || math.IsNaN(radius) || level < 0 || level > MaxLevel {
		return buf
	}
	sqRadius := radius * radius
	cs := o.CellSize(level)
	// a point within radius can be at most floor(radius/cs)+1 cells away along each axis
	span := gridCoord(radius/cs) + 1
	gridMax := int64(1)<<uint(level) - 1

	px, py, pz := o.gridPosition(center, level)
	x0, x1 := clampRange(px-span, px+span, gridMax)
	y0, y1 := clampRange(py-span, py+span, gridMax)
	z0, z1 := clampRange(pz-span, pz+span, gridMax)
	if x0 > x1 || y0 > y1 || z0 > z1 {
		return buf
	}

	if float64(x1-x0+1)*float64(y1-y0+1)*float64(z1-z0+1) > float64(len(o.indices)) {
		// more cells than points: scanning everything is cheaper
		for _, idx := range o.indices {
			d2 := o.cloud.PointAt(idx).Sub(center).Norm2()
			if d2 <= sqRadius {
				buf = append(buf, Neighbour{Index: idx, SquareDist: d2})
			}
		}
		return buf
	}

	for x := x0; x <= x1; x++ {
		for y := y0; y <= y1; y++ {
			for z := z0; z <= z1; z++ {
				buf = o.collectCell(level, interleave(uint64(x), uint64(y), uint64(z)), center, sqRadius, buf)
			}
		}
	}
	return buf
}

func clampRange(lo, hi, gridMax int64) (int64, int64) {
	if lo < 0 {
		lo = 0
	}
	if hi > gridMax {
		hi = gridMax
	}
	return lo, hi
}

func (o *Octree) collectCell(level int, address uint64, center r3.Vector, sqRadius float64, buf []Neighbour) []Neighbour {
	start, end := o.cellRange(level, address)
	for _, idx := range o.indices[start:end] {
		d2 := o.cloud.PointAt(idx).Sub(center).Norm2()
		if d2 <= sqRadius {
			buf = append(buf, Neighbour{Index: idx, SquareDist: d2})
		}
	}
	return buf
}

// NearestNeighbour returns the closest point to point i other than i itself. Cells are
// visited in growing shells around the cell of i at the given level, and the search stops
// once the unvisited cells are all farther than the best candidate. ok is false when the
// cloud has a single point.
func (o *Octree) NearestNeighbour(i, level int) (Neighbour, bool) {
	return o.nearest(o.cloud.PointAt(i), i, level)
}

// NearestNeighbourOf returns the closest indexed point to p.
func (o *Octree) NearestNeighbourOf(p r3.Vector, level int) (Neighbour, bool) {
	return o.nearest(p, -1, level)
}

func (o *Octree) nearest(p r3.Vector, exclude, level int) (Neighbour, bool) {
	if level < 0 || level > MaxLevel {
		level = o.FindBestLevelForPopulation(3)
	}
	cs := o.CellSize(level)
	gridMax := int64(1)<<uint(level) - 1
	px, py, pz := o.gridPosition(p, level)

	best := Neighbour{Index: -1, SquareDist: math.Inf(1)}
	consider := func(idx int) {
		if idx == exclude {
			return
		}
		d2 := o.cloud.PointAt(idx).Sub(p).Norm2()
		if d2 < best.SquareDist || (d2 == best.SquareDist && idx < best.Index) {
			best = Neighbour{Index: idx, SquareDist: d2}
		}
	}
	visit := func(x, y, z int64) {
		start, end := o.cellRange(level, interleave(uint64(x), uint64(y), uint64(z)))
		for _, idx := range o.indices[start:end] {
			consider(idx)
		}
	}

	// no cell of the grid is closer than the largest out of grid offset
	var dStart int64
	for _, c := range []int64{px, py, pz} {
		if -c > dStart {
			dStart = -c
		}
		if c-gridMax > dStart {
			dStart = c - gridMax
		}
	}

	for d := dStart; ; d++ {
		if side := float64(2*d + 1); side*side*side-(side-2)*(side-2)*(side-2) > float64(len(o.indices)) {
			// the shell has more cells than there are points
			for _, idx := range o.indices {
				consider(idx)
			}
			break
		}
		x0, x1 := clampRange(px-d, px+d, gridMax)
		y0, y1 := clampRange(py-d, py+d, gridMax)
		z0, z1 := clampRange(pz-d, pz+d, gridMax)
		// only the faces of the block at distance d are new
		for x := x0; x <= x1; x++ {
			onX := x == px-d || x == px+d
			for y := y0; y <= y1; y++ {
				if onX || y == py-d || y == py+d {
					for z := z0; z <= z1; z++ {
						visit(x, y, z)
					}
					continue
				}
				if z := pz - d; z >= z0 {
					visit(x, y, z)
				}
				if z := pz + d; d > 0 && z <= z1 {
					visit(x, y, z)
				}
			}
		}

		covered := px-d <= 0 && py-d <= 0 && pz-d <= 0 && px+d >= gridMax && py+d >= gridMax && pz+d >= gridMax
		if covered {
			break
		}
		if best.Index >= 0 {
			// distance from p to the outside of the visited block
			lo := o.origin.Add(r3.Vector{X: float64(px-d) * cs, Y: float64(py-d) * cs, Z: float64(pz-d) * cs})
			hi := lo.Add(r3.Vector{X: float64(2*d+1) * cs, Y: float64(2*d+1) * cs, Z: float64(2*d+1) * cs})
			margin := math.Min(
				math.Min(math.Min(p.X-lo.X, hi.X-p.X), math.Min(p.Y-lo.Y, hi.Y-p.Y)),
				math.Min(p.Z-lo.Z, hi.Z-p.Z),
			)
			if margin > 0 && best.SquareDist <= margin*margin {
				break
			}
		}
	}
	return best, best.Index >= 0
}
