package pointcloud

import (
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
)

// BasicCloud is the in-memory implementation of Cloud backed by a slice of points,
// with optional normals and global shift.
type BasicCloud struct {
	points  []r3.Vector
	normals []r3.Vector
	shift   r3.Vector
	meta    MetaData
}

// New returns a cloud holding a copy of the given points.
func New(points []r3.Vector) *BasicCloud {
	cloud := &BasicCloud{
		points: make([]r3.Vector, len(points)),
		meta:   NewMetaData(),
	}
	for i, p := range points {
		cloud.points[i] = p
		cloud.meta.Merge(p)
	}
	return cloud
}

// NewWithNormals returns a cloud holding a copy of the given points and normals.
func NewWithNormals(points, normals []r3.Vector) (*BasicCloud, error) {
	cloud := New(points)
	if err := cloud.SetNormals(normals); err != nil {
		return nil, err
	}
	return cloud, nil
}

// Size returns the number of points.
func (cloud *BasicCloud) Size() int {
	return len(cloud.points)
}

// PointAt returns the local point at index i.
func (cloud *BasicCloud) PointAt(i int) r3.Vector {
	return cloud.points[i]
}

// MetaData returns the bounding box of the cloud.
func (cloud *BasicCloud) MetaData() MetaData {
	return cloud.meta
}

// SetNormals attaches one normal per point.
func (cloud *BasicCloud) SetNormals(normals []r3.Vector) error {
	if len(normals) != len(cloud.points) {
		return errors.Errorf("expected %d normals, got %d", len(cloud.points), len(normals))
	}
	cloud.normals = make([]r3.Vector, len(normals))
	copy(cloud.normals, normals)
	cloud.meta.HasNormals = true
	return nil
}

// NormalsAvailable reports whether normals were attached.
func (cloud *BasicCloud) NormalsAvailable() bool {
	return cloud.normals != nil
}

// NormalAt returns the normal at index i.
func (cloud *BasicCloud) NormalAt(i int) r3.Vector {
	return cloud.normals[i]
}

// SetGlobalShift sets the local to global shift.
func (cloud *BasicCloud) SetGlobalShift(shift r3.Vector) {
	cloud.shift = shift
}

// GlobalShift returns the local to global shift.
func (cloud *BasicCloud) GlobalShift() r3.Vector {
	return cloud.shift
}

// Subset is a read-only view on some points of another cloud.
type Subset struct {
	parent  Cloud
	indices []int
}

// NewSubset returns a view on the parent cloud restricted to the given indices, in that order.
func NewSubset(parent Cloud, indices []int) *Subset {
	return &Subset{parent: parent, indices: indices}
}

// Size returns the number of points in the view.
func (s *Subset) Size() int {
	return len(s.indices)
}

// PointAt returns the i-th point of the view.
func (s *Subset) PointAt(i int) r3.Vector {
	return s.parent.PointAt(s.indices[i])
}

// ParentIndex returns the index in the parent cloud of the i-th point of the view.
func (s *Subset) ParentIndex(i int) int {
	return s.indices[i]
}
