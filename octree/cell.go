package octree

import (
	"iter"
	"sort"
)

// Cell is a view on the points of one non empty cell. Points is a sub slice of the
// octree's sorted index array and must not be modified.
type Cell struct {
	Level   int
	Address uint64
	Points  []int
}

// Position returns the integer coordinates of the cell in the grid of its level.
func (c Cell) Position() (x, y, z uint64) {
	return deinterleave(c.Address)
}

// CellsAtLevel yields the non empty cells of a level in increasing address order.
// Each call starts a new pass.
func (o *Octree) CellsAtLevel(level int) iter.Seq[Cell] {
	return func(yield func(Cell) bool) {
		if level < 0 || level > MaxLevel {
			return
		}
		shift := levelShift(level)
		start := 0
		for start < len(o.codes) {
			address := o.codes[start] >> shift
			end := start + 1
			for end < len(o.codes) && o.codes[end]>>shift == address {
				end++
			}
			if !yield(Cell{Level: level, Address: address, Points: o.indices[start:end:end]}) {
				return
			}
			start = end
		}
	}
}

// CellAt returns the cell of the given address, if it holds any point.
func (o *Octree) CellAt(level int, address uint64) (Cell, bool) {
	start, end := o.cellRange(level, address)
	if start == end {
		return Cell{}, false
	}
	return Cell{Level: level, Address: address, Points: o.indices[start:end:end]}, true
}

// CellAddressOf returns the address at the given level of the cell holding point i.
func (o *Octree) CellAddressOf(i, level int) uint64 {
	return o.codes[o.rank[i]] >> levelShift(level)
}

// cellRange returns the bounds in the sorted arrays of the points of a cell.
func (o *Octree) cellRange(level int, address uint64) (int, int) {
	shift := levelShift(level)
	lo := address << shift
	start := sort.Search(len(o.codes), func(k int) bool { return o.codes[k] >= lo })
	end := start + sort.Search(len(o.codes)-start, func(k int) bool { return o.codes[start+k]>>shift > address })
	return start, end
}

// Morton coding: bit k of x, y and z become bits 3k, 3k+1 and 3k+2 of the code.

func spreadBits(v uint64) uint64 {
	v &= 0x1fffff
	v = (v | v<<32) & 0x1f00000000ffff
	v = (v | v<<16) & 0x1f0000ff0000ff
	v = (v | v<<8) & 0x100f00f00f00f00f
	v = (v | v<<4) & 0x10c30c30c30c30c3
	v = (v | v<<2) & 0x1249249249249249
	return v
}

func compactBits(v uint64) uint64 {
	v &= 0x1249249249249249
	v = (v ^ (v >> 2)) & 0x10c30c30c30c30c3
	v = (v ^ (v >> 4)) & 0x100f00f00f00f00f
	v = (v ^ (v >> 8)) & 0x1f0000ff0000ff
	v = (v ^ (v >> 16)) & 0x1f00000000ffff
	v = (v ^ (v >> 32)) & 0x1fffff
	return v
}

func interleave(x, y, z uint64) uint64 {
	return spreadBits(x) | spreadBits(y)<<1 | spreadBits(z)<<2
}

func deinterleave(code uint64) (x, y, z uint64) {
	return compactBits(code), compactBits(code >> 1), compactBits(code >> 2)
}
