package g2s

import (
	"errors"
	"testing"

	. "github.com/janelia-flyem/go/gocheck"
)

// Hook up gocheck into the "go test" runner.
func Test(t *testing.T) { TestingT(t) }

type DataSuite struct{}

var _ = Suite(&DataSuite{})

func channelTime(c *C) AxisOrder {
	axes, err := NewAxisOrder([]string{"channel", "time"}, map[string]int{"channel": 2, "time": 3})
	c.Assert(err, IsNil)
	return axes
}

func (s *DataSuite) TestAxisOrder(c *C) {
	axes := channelTime(c)
	c.Assert(axes.Names(), DeepEquals, []string{"channel", "time"})
	c.Assert(axes.Index("time"), Equals, 1)
	c.Assert(axes.Index("z"), Equals, -1)
	c.Assert(axes.Shape(4, 4), DeepEquals, []int{4, 4, 2, 3})
	c.Assert(axes.NumImages(), Equals, 6)
	c.Assert(axes.String(), Equals, "[channel(2), time(3)]")

	extent, found := axes.Extent("channel")
	c.Assert(found, Equals, true)
	c.Assert(extent, Equals, 2)

	// missing extents default to a single index
	axes, err := NewAxisOrder([]string{"channel", "z"}, map[string]int{"channel": 2})
	c.Assert(err, IsNil)
	c.Assert(axes.Shape(8, 6), DeepEquals, []int{8, 6, 2, 1})

	_, err = NewAxisOrder([]string{"channel", "channel"}, nil)
	c.Assert(err, NotNil)
	_, err = NewAxisOrder([]string{""}, nil)
	c.Assert(err, NotNil)
	_, err = NewAxisOrder([]string{"channel"}, map[string]int{"channel": -1})
	c.Assert(err, NotNil)
	_, err = NewAxisOrder([]string{"channel"}, map[string]int{"time": 5})
	c.Assert(errors.Is(err, ErrUnknownAxis), Equals, true)
	_, err = NewAxisOrder([]string{"channel"}, map[string]int{"time": 1})
	c.Assert(err, IsNil)
}

func (s *DataSuite) TestToDense(c *C) {
	axes := channelTime(c)

	d, err := axes.ToDense(SparseCoord{"channel": 1})
	c.Assert(err, IsNil)
	c.Assert(d, DeepEquals, DenseCoord{0, 0, 1, 0})

	d2, err := axes.ToDense(SparseCoord{"channel": 1, "time": 0})
	c.Assert(err, IsNil)
	c.Assert(d2.Equal(d), Equals, true)

	d3, err := axes.ToDense(SparseCoord{"time": 2})
	c.Assert(err, IsNil)
	c.Assert(d3, DeepEquals, DenseCoord{0, 0, 0, 2})

	empty, err := axes.ToDense(nil)
	c.Assert(err, IsNil)
	c.Assert(empty, DeepEquals, DenseCoord{0, 0, 0, 0})

	_, err = axes.ToDense(SparseCoord{"channel": 1, "z": 3})
	c.Assert(errors.Is(err, ErrUnknownAxis), Equals, true)
	var unknown *UnknownAxisError
	c.Assert(errors.As(err, &unknown), Equals, true)
	c.Assert(unknown.Axis, Equals, "z")
}

func (s *DataSuite) TestDeterminism(c *C) {
	axes := channelTime(c)
	coord := SparseCoord{"time": 2, "channel": 1}
	first, err := axes.ToDense(coord)
	c.Assert(err, IsNil)
	for i := 0; i < 100; i++ {
		again, err := axes.ToDense(coord.Duplicate())
		c.Assert(err, IsNil)
		c.Assert(again, DeepEquals, first)
	}
}

func (s *DataSuite) TestRoundTrip(c *C) {
	axes := channelTime(c)
	coords := []SparseCoord{
		{},
		{"channel": 1},
		{"time": 2},
		{"channel": 1, "time": 0},
		{"channel": 0, "time": 1},
	}
	for _, coord := range coords {
		d, err := axes.ToDense(coord)
		c.Assert(err, IsNil)
		back, err := axes.ToSparse(d)
		c.Assert(err, IsNil)
		c.Assert(back, HasLen, 2)
		for _, name := range axes.Names() {
			c.Assert(back[name], Equals, coord.Index(name))
		}
		k1, err := axes.Key(coord)
		c.Assert(err, IsNil)
		k2, err := axes.Key(back)
		c.Assert(err, IsNil)
		c.Assert(k1, Equals, k2)
	}

	_, err := axes.ToSparse(DenseCoord{0, 0, 1})
	c.Assert(err, NotNil)
}

func (s *DataSuite) TestNormalizeAndKey(c *C) {
	axes := channelTime(c)
	n, err := axes.Normalize(SparseCoord{"channel": 1})
	c.Assert(err, IsNil)
	c.Assert(n, DeepEquals, SparseCoord{"channel": 1, "time": 0})

	k1, _ := axes.Key(SparseCoord{"channel": 1})
	k2, _ := axes.Key(SparseCoord{"channel": 1, "time": 0})
	k3, _ := axes.Key(SparseCoord{"channel": 1, "time": 1})
	c.Assert(k1, Equals, k2)
	c.Assert(k1 == k3, Equals, false)

	c.Assert(SparseCoord{"time": 1, "channel": 0}.String(), Equals, "{channel:0, time:1}")
}

func (s *DataSuite) TestDenseBytes(c *C) {
	d := DenseCoord{0, 0, 7, 65536}
	b := d.Bytes()
	c.Assert(b, HasLen, 16)
	back, err := DenseCoordFromBytes(b)
	c.Assert(err, IsNil)
	c.Assert(back, DeepEquals, d)
	_, err = DenseCoordFromBytes([]byte{1, 2, 3})
	c.Assert(err, NotNil)
	c.Assert(d.String(), Equals, "(0,0,7,65536)")
}

func (s *DataSuite) TestLinearEnumeration(c *C) {
	shape := []int{4, 4, 2, 3}
	c.Assert(ShapeNumImages(shape), Equals, 6)
	seen := make(map[string]bool)
	for i := 0; i < ShapeNumImages(shape); i++ {
		d := DenseFromLinear(i, shape)
		c.Assert(CheckShape(d, shape), IsNil)
		c.Assert(d.Linear(shape), Equals, i)
		seen[d.Key()] = true
	}
	c.Assert(seen, HasLen, 6)
	c.Assert(DenseFromLinear(1, shape), DeepEquals, DenseCoord{0, 0, 1, 0})
	c.Assert(DenseFromLinear(2, shape), DeepEquals, DenseCoord{0, 0, 0, 1})
}

func (s *DataSuite) TestAxesFromShape(c *C) {
	axes, w, h, err := AxesFromShape([]int{32, 16, 2, 3}, []string{"channel", "time"})
	c.Assert(err, IsNil)
	c.Assert(w, Equals, 32)
	c.Assert(h, Equals, 16)
	c.Assert(axes.Equal(channelTime(c)), Equals, true)

	axes, _, _, err = AxesFromShape([]int{32, 16, 5}, []string{"channel", "time"})
	c.Assert(err, IsNil)
	c.Assert(axes.Names(), DeepEquals, []string{"axis2"})

	_, _, _, err = AxesFromShape([]int{32}, nil)
	c.Assert(err, NotNil)
}
