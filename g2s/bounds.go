package g2s

import "fmt"

// Validate checks a sparse coordinate against the declared axes.  Undeclared axes
// give an UnknownAxisError; a negative index or one not less than its axis extent
// gives an OutOfBoundsError.  Axes are checked in declared order so the reported
// axis is deterministic.
func (a AxisOrder) Validate(c SparseCoord) error {
	for name := range c {
		if a.Index(name) < 0 {
			return &UnknownAxisError{Axis: name}
		}
	}
	for _, axis := range a {
		if err := axis.check(c[axis.Name]); err != nil {
			return err
		}
	}
	return nil
}

// ValidateDense checks a dense image coordinate.  Spatial components must be zero
// since images always cover the whole frame.
func (a AxisOrder) ValidateDense(d DenseCoord) error {
	if len(d) != NumSpatialDims+len(a) {
		return fmt.Errorf("dense coordinate %s has %d dimensions, expected %d: %w",
			d, len(d), NumSpatialDims+len(a), ErrOutOfBounds)
	}
	for i, name := range spatialNames {
		if d[i] != 0 {
			return &OutOfBoundsError{Axis: name, Index: d[i], Extent: 1}
		}
	}
	for i, axis := range a {
		if err := axis.check(d[NumSpatialDims+i]); err != nil {
			return err
		}
	}
	return nil
}

var spatialNames = [NumSpatialDims]string{"width", "height"}

func (a Axis) check(index int) error {
	if index < 0 || index >= a.Extent {
		return &OutOfBoundsError{Axis: a.Name, Index: index, Extent: a.Extent}
	}
	return nil
}

// CheckShape verifies that a dense image coordinate addresses a frame within a dense
// shape.  Engines use it for their own bounds check independent of axis names.
func CheckShape(d DenseCoord, shape []int) error {
	if len(d) != len(shape) {
		return fmt.Errorf("coordinate %s has %d dimensions but shape %v has %d: %w",
			d, len(d), shape, len(shape), ErrOutOfBounds)
	}
	for i, v := range d {
		if i < NumSpatialDims {
			if v != 0 {
				return &OutOfBoundsError{Axis: spatialNames[i], Index: v, Extent: 1}
			}
			continue
		}
		if v < 0 || v >= shape[i] {
			return &OutOfBoundsError{Axis: fmt.Sprintf("dim%d", i), Index: v, Extent: shape[i]}
		}
	}
	return nil
}

// ValidShape returns an error if a dense shape can't describe a dataset: it needs
// the spatial dimensions and every dimension must be positive.
func ValidShape(shape []int) error {
	if len(shape) < NumSpatialDims {
		return fmt.Errorf("shape %v needs at least %d dimensions", shape, NumSpatialDims)
	}
	for i, v := range shape {
		if v <= 0 {
			return fmt.Errorf("shape %v has non-positive dimension %d", shape, i)
		}
	}
	return nil
}
