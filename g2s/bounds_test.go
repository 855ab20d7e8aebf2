package g2s

import (
	"errors"

	. "github.com/janelia-flyem/go/gocheck"
)

func (s *DataSuite) TestBoundsEnforcement(c *C) {
	axes := channelTime(c)
	for _, axis := range axes {
		err := axes.Validate(SparseCoord{axis.Name: axis.Extent - 1})
		c.Assert(err, IsNil)

		for _, bad := range []int{axis.Extent, axis.Extent + 1, -1} {
			err = axes.Validate(SparseCoord{axis.Name: bad})
			c.Assert(errors.Is(err, ErrOutOfBounds), Equals, true)
			var oob *OutOfBoundsError
			c.Assert(errors.As(err, &oob), Equals, true)
			c.Assert(oob.Axis, Equals, axis.Name)
			c.Assert(oob.Index, Equals, bad)
			c.Assert(oob.Extent, Equals, axis.Extent)
		}
	}

	err := axes.Validate(SparseCoord{"channel": 2})
	c.Assert(err, ErrorMatches, `index 2 on axis "channel" is outside extent 2`)

	err = axes.Validate(SparseCoord{"position": 0})
	c.Assert(errors.Is(err, ErrUnknownAxis), Equals, true)
}

func (s *DataSuite) TestValidateDense(c *C) {
	axes := channelTime(c)
	c.Assert(axes.ValidateDense(DenseCoord{0, 0, 1, 2}), IsNil)
	c.Assert(errors.Is(axes.ValidateDense(DenseCoord{0, 0, 2, 0}), ErrOutOfBounds), Equals, true)
	c.Assert(errors.Is(axes.ValidateDense(DenseCoord{1, 0, 0, 0}), ErrOutOfBounds), Equals, true)
	c.Assert(errors.Is(axes.ValidateDense(DenseCoord{0, 0, 0}), ErrOutOfBounds), Equals, true)
}

func (s *DataSuite) TestCheckShape(c *C) {
	shape := []int{4, 4, 2, 3}
	c.Assert(CheckShape(DenseCoord{0, 0, 1, 2}, shape), IsNil)
	c.Assert(errors.Is(CheckShape(DenseCoord{0, 0, 1, 3}, shape), ErrOutOfBounds), Equals, true)
	c.Assert(errors.Is(CheckShape(DenseCoord{0, 1, 0, 0}, shape), ErrOutOfBounds), Equals, true)
	c.Assert(errors.Is(CheckShape(DenseCoord{0, 0, 0}, shape), ErrOutOfBounds), Equals, true)

	c.Assert(ValidShape(shape), IsNil)
	c.Assert(ValidShape([]int{4}), NotNil)
	c.Assert(ValidShape([]int{4, 4, 0}), NotNil)
}

func (s *DataSuite) TestCheckImage(c *C) {
	img := NewGray16Image(make([]uint16, 16), 4, 4, SparseCoord{"channel": 1})
	c.Assert(CheckImage(img, 4, 4, Gray16), IsNil)

	err := CheckImage(img, 8, 4, Gray16)
	c.Assert(errors.Is(err, ErrImageSize), Equals, true)

	err = CheckImage(img, 4, 4, Gray8)
	c.Assert(errors.Is(err, ErrImageSize), Equals, true)

	short := NewGray16Image(make([]uint16, 15), 4, 4, nil)
	err = CheckImage(short, 4, 4, Gray16)
	c.Assert(errors.Is(err, ErrImageSize), Equals, true)

	rgb := &Image{Pixels: make([]byte, 64), Width: 4, Height: 4, PixelType: RGB32}
	err = CheckImage(rgb, 4, 4, RGB32)
	c.Assert(errors.Is(err, ErrUnsupportedImageKind), Equals, true)
}

func (s *DataSuite) TestErrorKinds(c *C) {
	lerr := &LifecycleError{Op: "PutImage", State: Uninitialized}
	c.Assert(errors.Is(lerr, ErrLifecycle), Equals, true)
	c.Assert(errors.Is(lerr, ErrEngine), Equals, false)
	c.Assert(lerr.Error(), Equals, "PutImage not allowed while dataset is uninitialized")

	base := errors.New("disk full")
	eerr := NewEngineError("AddImage", base)
	c.Assert(errors.Is(eerr, ErrEngine), Equals, true)
	c.Assert(errors.Is(eerr, base), Equals, true)
	c.Assert(NewEngineError("AddImage", eerr), Equals, eerr)
	c.Assert(NewEngineError("AddImage", nil), IsNil)
}
