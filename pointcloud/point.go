package pointcloud

import (
	"math"

	"github.com/golang/geo/r3"
)

// NewVector convenience method for creating a vector.
func NewVector(x, y, z float64) r3.Vector {
	return r3.Vector{X: x, Y: y, Z: z}
}

// MetaData is data about what's stored in the point cloud.
type MetaData struct {
	HasNormals bool

	MinX, MaxX float64
	MinY, MaxY float64
	MinZ, MaxZ float64

	count int
}

// NewMetaData creates a new MetaData with an empty (inverted) bounding box.
func NewMetaData() MetaData {
	return MetaData{
		MinX: math.MaxFloat64,
		MinY: math.MaxFloat64,
		MinZ: math.MaxFloat64,
		MaxX: -math.MaxFloat64,
		MaxY: -math.MaxFloat64,
		MaxZ: -math.MaxFloat64,
	}
}

// MetaDataOf scans the cloud and returns its bounding box.
func MetaDataOf(cloud Cloud) MetaData {
	meta := NewMetaData()
	for i := 0; i < cloud.Size(); i++ {
		meta.Merge(cloud.PointAt(i))
	}
	if np, ok := cloud.(NormalProvider); ok {
		meta.HasNormals = np.NormalsAvailable()
	}
	return meta
}

// Merge updates the bounding box to contain p.
func (meta *MetaData) Merge(v r3.Vector) {
	meta.count++

	if v.X > meta.MaxX {
		meta.MaxX = v.X
	}
	if v.Y > meta.MaxY {
		meta.MaxY = v.Y
	}
	if v.Z > meta.MaxZ {
		meta.MaxZ = v.Z
	}

	if v.X < meta.MinX {
		meta.MinX = v.X
	}
	if v.Y < meta.MinY {
		meta.MinY = v.Y
	}
	if v.Z < meta.MinZ {
		meta.MinZ = v.Z
	}
}

// Empty reports whether no point was merged.
func (meta MetaData) Empty() bool {
	return meta.count == 0
}

// Min returns the minimum corner of the bounding box.
func (meta MetaData) Min() r3.Vector {
	return r3.Vector{X: meta.MinX, Y: meta.MinY, Z: meta.MinZ}
}

// Max returns the maximum corner of the bounding box.
func (meta MetaData) Max() r3.Vector {
	return r3.Vector{X: meta.MaxX, Y: meta.MaxY, Z: meta.MaxZ}
}

// MaxSideLength is the length of the longest side of the bounding box.
func (meta MetaData) MaxSideLength() float64 {
	if meta.Empty() {
		return 0
	}
	return math.Max(math.Max(meta.MaxX-meta.MinX, meta.MaxY-meta.MinY), meta.MaxZ-meta.MinZ)
}
