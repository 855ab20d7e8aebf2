package badger

import (
	"github.com/tinylib/msgp/msgp"

	"github.com/go2scope/g2s/g2s"
)

// header is the dataset description stored once at creation.
type header struct {
	Shape     []int
	PixelType g2s.PixelType
	Summary   []byte
}

// imageRecord is the value stored for each image.  Pixels hold serialized data
// (see g2s.SerializeData); Meta is the per-image metadata document.
type imageRecord struct {
	Coord  g2s.DenseCoord
	Pixels []byte
	Meta   []byte
}

func appendInts(o []byte, v []int) []byte {
	o = msgp.AppendArrayHeader(o, uint32(len(v)))
	for _, x := range v {
		o = msgp.AppendInt(o, x)
	}
	return o
}

func readInts(bts []byte) (v []int, o []byte, err error) {
	var sz uint32
	sz, bts, err = msgp.ReadArrayHeaderBytes(bts)
	if err != nil {
		return
	}
	v = make([]int, sz)
	for i := range v {
		v[i], bts, err = msgp.ReadIntBytes(bts)
		if err != nil {
			return
		}
	}
	o = bts
	return
}

// MarshalMsg implements msgp.Marshaler
func (z *header) MarshalMsg(b []byte) (o []byte, err error) {
	o = msgp.Require(b, z.Msgsize())
	o = msgp.AppendMapHeader(o, 3)
	o = msgp.AppendString(o, "shape")
	o = appendInts(o, z.Shape)
	o = msgp.AppendString(o, "pixeltype")
	o = msgp.AppendString(o, z.PixelType.String())
	o = msgp.AppendString(o, "summary")
	o = msgp.AppendBytes(o, z.Summary)
	return
}

// UnmarshalMsg implements msgp.Unmarshaler
func (z *header) UnmarshalMsg(bts []byte) (o []byte, err error) {
	var sz uint32
	sz, bts, err = msgp.ReadMapHeaderBytes(bts)
	if err != nil {
		return
	}
	for ; sz > 0; sz-- {
		var field []byte
		field, bts, err = msgp.ReadMapKeyZC(bts)
		if err != nil {
			return
		}
		switch msgp.UnsafeString(field) {
		case "shape":
			z.Shape, bts, err = readInts(bts)
		case "pixeltype":
			var s string
			s, bts, err = msgp.ReadStringBytes(bts)
			if err == nil {
				z.PixelType, err = g2s.ParsePixelType(s)
			}
		case "summary":
			z.Summary, bts, err = msgp.ReadBytesBytes(bts, nil)
		default:
			bts, err = msgp.Skip(bts)
		}
		if err != nil {
			return
		}
	}
	o = bts
	return
}

func (z *header) Msgsize() (s int) {
	s = 1 + 6 + msgp.ArrayHeaderSize + len(z.Shape)*msgp.IntSize +
		10 + msgp.StringPrefixSize + 8 +
		8 + msgp.BytesPrefixSize + len(z.Summary)
	return
}

// MarshalMsg implements msgp.Marshaler
func (z *imageRecord) MarshalMsg(b []byte) (o []byte, err error) {
	o = msgp.Require(b, z.Msgsize())
	o = msgp.AppendMapHeader(o, 3)
	o = msgp.AppendString(o, "coord")
	o = appendInts(o, z.Coord)
	o = msgp.AppendString(o, "pixels")
	o = msgp.AppendBytes(o, z.Pixels)
	o = msgp.AppendString(o, "meta")
	o = msgp.AppendBytes(o, z.Meta)
	return
}

// UnmarshalMsg implements msgp.Unmarshaler
func (z *imageRecord) UnmarshalMsg(bts []byte) (o []byte, err error) {
	var sz uint32
	sz, bts, err = msgp.ReadMapHeaderBytes(bts)
	if err != nil {
		return
	}
	for ; sz > 0; sz-- {
		var field []byte
		field, bts, err = msgp.ReadMapKeyZC(bts)
		if err != nil {
			return
		}
		switch msgp.UnsafeString(field) {
		case "coord":
			var coord []int
			coord, bts, err = readInts(bts)
			z.Coord = coord
		case "pixels":
			z.Pixels, bts, err = msgp.ReadBytesBytes(bts, nil)
		case "meta":
			z.Meta, bts, err = msgp.ReadBytesBytes(bts, nil)
		default:
			bts, err = msgp.Skip(bts)
		}
		if err != nil {
			return
		}
	}
	o = bts
	return
}

func (z *imageRecord) Msgsize() (s int) {
	s = 1 + 6 + msgp.ArrayHeaderSize + len(z.Coord)*msgp.IntSize +
		7 + msgp.BytesPrefixSize + len(z.Pixels) +
		5 + msgp.BytesPrefixSize + len(z.Meta)
	return
}
