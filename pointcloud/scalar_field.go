package pointcloud

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// ScalarField is a per-point output channel of float64 values. Slots that were
// never written hold NaN, which marks an invalid value.
//
// Writing different indices from different goroutines is safe; nothing else is.
type ScalarField struct {
	name   string
	values []float64
}

// NewScalarField returns a field of the given size with every value invalid.
func NewScalarField(name string, size int) *ScalarField {
	sf := &ScalarField{name: name, values: make([]float64, size)}
	sf.Fill(math.NaN())
	return sf
}

// Name returns the name of the field.
func (sf *ScalarField) Name() string {
	return sf.name
}

// Size returns the number of values.
func (sf *ScalarField) Size() int {
	return len(sf.values)
}

// Value returns the value at index i.
func (sf *ScalarField) Value(i int) float64 {
	return sf.values[i]
}

// SetValue sets the value at index i.
func (sf *ScalarField) SetValue(i int, v float64) {
	sf.values[i] = v
}

// IsValid reports whether the value at index i is not NaN.
func (sf *ScalarField) IsValid(i int) bool {
	return !math.IsNaN(sf.values[i])
}

// Fill sets every value to v.
func (sf *ScalarField) Fill(v float64) {
	for i := range sf.values {
		sf.values[i] = v
	}
}

// Resize grows or shrinks the field. New slots are invalid.
func (sf *ScalarField) Resize(size int) {
	if size <= len(sf.values) {
		sf.values = sf.values[:size]
		return
	}
	old := len(sf.values)
	sf.values = append(sf.values, make([]float64, size-old)...)
	for i := old; i < size; i++ {
		sf.values[i] = math.NaN()
	}
}

// Values returns the underlying values. The slice must not be resized by the caller.
func (sf *ScalarField) Values() []float64 {
	return sf.values
}

// CountValid returns the number of values that are not NaN.
func (sf *ScalarField) CountValid() int {
	n := 0
	for _, v := range sf.values {
		if !math.IsNaN(v) {
			n++
		}
	}
	return n
}

// MinMax returns the extrema of the valid values. ok is false if there are none.
func (sf *ScalarField) MinMax() (minVal, maxVal float64, ok bool) {
	valid := make([]float64, 0, len(sf.values))
	for _, v := range sf.values {
		if !math.IsNaN(v) {
			valid = append(valid, v)
		}
	}
	if len(valid) == 0 {
		return 0, 0, false
	}
	return floats.Min(valid), floats.Max(valid), true
}
