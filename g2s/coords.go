/*
	This file holds the coordinate model.  Acquisition code tags each image with a sparse
	set of axis/index pairs; storage engines address images with a dense vector whose
	layout is fixed when the dataset shape is declared:

		[width, height, axis0, axis1, ...]   for a shape
		[0,     0,      idx0,  idx1,  ...]   for an image coordinate

	The spatial dimensions come first and an image always covers the full frame, so the
	spatial entries of an image coordinate are always zero.
*/

package g2s

import (
	"encoding/binary"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// NumSpatialDims is the number of leading frame dimensions (width, height) in every
// dense shape and coordinate.
const NumSpatialDims = 2

// Axis is a named acquisition dimension with an exclusive upper bound on its index.
type Axis struct {
	Name   string
	Extent int
}

func (a Axis) String() string {
	return fmt.Sprintf("%s(%d)", a.Name, a.Extent)
}

// AxisOrder is the ordered list of axes of a dataset.  Its order determines the
// position of each axis in dense coordinates and never changes once a dataset is created.
type AxisOrder []Axis

// NewAxisOrder builds an axis order from ordered names and per-axis extents.  Axes
// without an extent get an extent of 1, i.e., only index 0 is valid.  An extent given
// for an undeclared axis is an error unless it is at most 1, since such an axis could
// never carry a nonzero index anyway.
func NewAxisOrder(names []string, extents map[string]int) (AxisOrder, error) {
	axes := make(AxisOrder, 0, len(names))
	seen := make(map[string]struct{}, len(names))
	for _, name := range names {
		if name == "" {
			return nil, fmt.Errorf("axis names cannot be empty")
		}
		if _, dup := seen[name]; dup {
			return nil, fmt.Errorf("axis %q declared more than once", name)
		}
		seen[name] = struct{}{}
		extent, found := extents[name]
		if !found {
			extent = 1
		}
		if extent < 0 {
			return nil, fmt.Errorf("axis %q has negative extent %d", name, extent)
		}
		axes = append(axes, Axis{Name: name, Extent: extent})
	}
	for name, extent := range extents {
		if _, found := seen[name]; !found && extent > 1 {
			return nil, &UnknownAxisError{Axis: name}
		}
	}
	return axes, nil
}

// Names returns the axis names in order.
func (a AxisOrder) Names() []string {
	names := make([]string, len(a))
	for i, axis := range a {
		names[i] = axis.Name
	}
	return names
}

// Index returns the position of the named axis or -1 if it isn't declared.
func (a AxisOrder) Index(name string) int {
	for i, axis := range a {
		if axis.Name == name {
			return i
		}
	}
	return -1
}

// Extent returns the extent of the named axis.
func (a AxisOrder) Extent(name string) (int, bool) {
	if i := a.Index(name); i >= 0 {
		return a[i].Extent, true
	}
	return 0, false
}

// Shape returns the dense shape for a frame of the given size.
func (a AxisOrder) Shape(width, height int) []int {
	shape := make([]int, NumSpatialDims+len(a))
	shape[0] = width
	shape[1] = height
	for i, axis := range a {
		shape[NumSpatialDims+i] = axis.Extent
	}
	return shape
}

// NumImages returns the number of distinct image coordinates, i.e., the product of
// all axis extents.
func (a AxisOrder) NumImages() int {
	n := 1
	for _, axis := range a {
		n *= axis.Extent
	}
	return n
}

// Equal returns true if both axis orders have the same names and extents in the same order.
func (a AxisOrder) Equal(b AxisOrder) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func (a AxisOrder) String() string {
	parts := make([]string, len(a))
	for i, axis := range a {
		parts[i] = axis.String()
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

// ToDense maps a sparse coordinate to its dense coordinate.  Axes absent from the
// sparse coordinate are index 0.  A sparse axis that isn't declared is an error
// since silently dropping it would alias two different images.
func (a AxisOrder) ToDense(c SparseCoord) (DenseCoord, error) {
	for name := range c {
		if a.Index(name) < 0 {
			return nil, &UnknownAxisError{Axis: name}
		}
	}
	dense := make(DenseCoord, NumSpatialDims+len(a))
	for i, axis := range a {
		dense[NumSpatialDims+i] = c[axis.Name]
	}
	return dense, nil
}

// ToSparse maps a dense coordinate back to a sparse coordinate with an explicit
// entry for every declared axis, including those at index 0.
func (a AxisOrder) ToSparse(d DenseCoord) (SparseCoord, error) {
	if len(d) != NumSpatialDims+len(a) {
		return nil, fmt.Errorf("dense coordinate %s has %d dimensions, expected %d",
			d, len(d), NumSpatialDims+len(a))
	}
	c := make(SparseCoord, len(a))
	for i, axis := range a {
		c[axis.Name] = d[NumSpatialDims+i]
	}
	return c, nil
}

// Normalize returns a sparse coordinate with an explicit entry for every declared axis.
func (a AxisOrder) Normalize(c SparseCoord) (SparseCoord, error) {
	d, err := a.ToDense(c)
	if err != nil {
		return nil, err
	}
	return a.ToSparse(d)
}

// Key returns a string that is identical for all sparse coordinates naming the same
// image, whichever zero-valued axes they spell out.
func (a AxisOrder) Key(c SparseCoord) (string, error) {
	d, err := a.ToDense(c)
	if err != nil {
		return "", err
	}
	return d.Key(), nil
}

// AxesFromShape rebuilds an axis order from an engine-reported dense shape.  If the
// given names match the number of non-spatial dimensions they are used, otherwise the
// axes are named "axis2", "axis3", ... after their dense position.
func AxesFromShape(shape []int, names []string) (axes AxisOrder, width, height int, err error) {
	if len(shape) < NumSpatialDims {
		err = fmt.Errorf("dataset shape %v has fewer than %d dimensions", shape, NumSpatialDims)
		return
	}
	width, height = shape[0], shape[1]
	n := len(shape) - NumSpatialDims
	if len(names) != n {
		names = make([]string, n)
		for i := range names {
			names[i] = fmt.Sprintf("axis%d", i+NumSpatialDims)
		}
	}
	extents := make(map[string]int, n)
	for i, name := range names {
		extents[name] = shape[NumSpatialDims+i]
	}
	axes, err = NewAxisOrder(names, extents)
	return
}

// SparseCoord maps axis names to indices.  Absent axes are index 0.
type SparseCoord map[string]int

// Index returns the index along the named axis, 0 if absent.
func (c SparseCoord) Index(axis string) int {
	return c[axis]
}

// Duplicate returns a copy of the coordinate.
func (c SparseCoord) Duplicate() SparseCoord {
	dup := make(SparseCoord, len(c))
	for k, v := range c {
		dup[k] = v
	}
	return dup
}

// Axes returns the explicitly set axis names in sorted order.
func (c SparseCoord) Axes() []string {
	axes := make([]string, 0, len(c))
	for k := range c {
		axes = append(axes, k)
	}
	sort.Strings(axes)
	return axes
}

func (c SparseCoord) String() string {
	axes := c.Axes()
	parts := make([]string, len(axes))
	for i, axis := range axes {
		parts[i] = fmt.Sprintf("%s:%d", axis, c[axis])
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

// DenseCoord is a full coordinate vector: spatial dimensions then every declared axis.
type DenseCoord []int

// Duplicate returns a copy of the coordinate.
func (d DenseCoord) Duplicate() DenseCoord {
	return append(DenseCoord{}, d...)
}

// Equal returns true if both coordinates have identical components.
func (d DenseCoord) Equal(d2 DenseCoord) bool {
	if len(d) != len(d2) {
		return false
	}
	for i := range d {
		if d[i] != d2[i] {
			return false
		}
	}
	return true
}

// Key returns a compact string form of the coordinate suitable as a map key.
func (d DenseCoord) Key() string {
	var sb strings.Builder
	for i, v := range d {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(strconv.Itoa(v))
	}
	return sb.String()
}

func (d DenseCoord) String() string {
	return "(" + d.Key() + ")"
}

// Bytes encodes the coordinate as big-endian uint32 components so that byte order
// matches component order.
func (d DenseCoord) Bytes() []byte {
	b := make([]byte, 4*len(d))
	for i, v := range d {
		binary.BigEndian.PutUint32(b[4*i:], uint32(v))
	}
	return b
}

// DenseCoordFromBytes decodes the output of DenseCoord.Bytes.
func DenseCoordFromBytes(b []byte) (DenseCoord, error) {
	if len(b)%4 != 0 {
		return nil, fmt.Errorf("encoded dense coordinate has %d bytes, not a multiple of 4", len(b))
	}
	d := make(DenseCoord, len(b)/4)
	for i := range d {
		d[i] = int(binary.BigEndian.Uint32(b[4*i:]))
	}
	return d, nil
}

// Linear returns the position of an image coordinate when all image coordinates of
// the shape are enumerated with the first axis varying fastest.  Spatial components
// are ignored.
func (d DenseCoord) Linear(shape []int) int {
	linear, stride := 0, 1
	for i := NumSpatialDims; i < len(shape) && i < len(d); i++ {
		linear += d[i] * stride
		stride *= shape[i]
	}
	return linear
}

// DenseFromLinear is the inverse of DenseCoord.Linear.
func DenseFromLinear(linear int, shape []int) DenseCoord {
	d := make(DenseCoord, len(shape))
	for i := NumSpatialDims; i < len(shape); i++ {
		if shape[i] == 0 {
			continue
		}
		d[i] = linear % shape[i]
		linear /= shape[i]
	}
	return d
}

// ShapeNumImages returns the number of images addressed by a dense shape.
func ShapeNumImages(shape []int) int {
	if len(shape) < NumSpatialDims {
		return 0
	}
	n := 1
	for _, extent := range shape[NumSpatialDims:] {
		n *= extent
	}
	return n
}
