/*
	This file holds the image model: single frames of pixel data tagged with a sparse
	coordinate and an opaque per-image metadata document.
*/

package g2s

import (
	"encoding/binary"
	"fmt"
	"strings"
)

// PixelType describes the pixel layout of a dataset.
type PixelType uint8

const (
	PixelUnknown PixelType = iota
	Gray8
	Gray16
	Gray32
	RGB32
)

// ParsePixelType accepts the names used in acquisition metadata, e.g., "GRAY16".
func ParsePixelType(s string) (PixelType, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "GRAY8", "8BIT":
		return Gray8, nil
	case "GRAY16", "16BIT":
		return Gray16, nil
	case "GRAY32", "32BIT":
		return Gray32, nil
	case "RGB32", "32BITRGB":
		return RGB32, nil
	default:
		return PixelUnknown, fmt.Errorf("unknown pixel type %q", s)
	}
}

func (p PixelType) String() string {
	switch p {
	case Gray8:
		return "GRAY8"
	case Gray16:
		return "GRAY16"
	case Gray32:
		return "GRAY32"
	case RGB32:
		return "RGB32"
	default:
		return "UNKNOWN"
	}
}

// BytesPerPixel returns the number of bytes per pixel.
func (p PixelType) BytesPerPixel() int {
	switch p {
	case Gray8:
		return 1
	case Gray16:
		return 2
	case Gray32, RGB32:
		return 4
	default:
		return 0
	}
}

// Components returns the number of components per pixel.
func (p PixelType) Components() int {
	if p == RGB32 {
		return 3
	}
	return 1
}

// BitDepth returns the number of bits per component.
func (p PixelType) BitDepth() int {
	if p == RGB32 {
		return 8
	}
	return 8 * p.BytesPerPixel()
}

// Image is a single frame of pixel data.  Pixels are little-endian for multi-byte
// pixel types.
type Image struct {
	Pixels    []byte
	Coords    SparseCoord
	Metadata  ImageMetadata
	Width     int
	Height    int
	PixelType PixelType
}

// NewGray16Image packs 16-bit pixels into a little-endian image.
func NewGray16Image(pixels []uint16, width, height int, coords SparseCoord) *Image {
	b := make([]byte, 2*len(pixels))
	for i, v := range pixels {
		binary.LittleEndian.PutUint16(b[2*i:], v)
	}
	return &Image{
		Pixels:    b,
		Coords:    coords,
		Metadata:  ImageMetadata{},
		Width:     width,
		Height:    height,
		PixelType: Gray16,
	}
}

// Gray16 returns the pixels of a 16-bit image.
func (img *Image) Gray16() ([]uint16, error) {
	if img.PixelType != Gray16 {
		return nil, fmt.Errorf("image has pixel type %s, not GRAY16", img.PixelType)
	}
	pix := make([]uint16, len(img.Pixels)/2)
	for i := range pix {
		pix[i] = binary.LittleEndian.Uint16(img.Pixels[2*i:])
	}
	return pix, nil
}

// NumComponents returns the number of components per pixel.
func (img *Image) NumComponents() int {
	return img.PixelType.Components()
}

// NumBytes returns the expected size of the pixel buffer.
func (img *Image) NumBytes() int {
	return img.Width * img.Height * img.PixelType.BytesPerPixel()
}

func (img *Image) String() string {
	return fmt.Sprintf("%s image %d x %d at %s", img.PixelType, img.Width, img.Height, img.Coords)
}

// CheckImage verifies that an image can be written to a dataset with the given frame.
// Multi-component images are rejected outright.
func CheckImage(img *Image, width, height int, pixelType PixelType) error {
	if img == nil {
		return fmt.Errorf("nil image")
	}
	if n := img.NumComponents(); n > 1 {
		return &UnsupportedImageKindError{Components: n}
	}
	sizeErr := &ImageSizeError{
		Width: img.Width, Height: img.Height,
		WantWidth: width, WantHeight: height,
		Bytes: len(img.Pixels), WantBytes: width * height * pixelType.BytesPerPixel(),
	}
	if img.Width != width || img.Height != height {
		return sizeErr
	}
	if img.PixelType != pixelType {
		return fmt.Errorf("image pixel type %s does not match dataset pixel type %s: %w",
			img.PixelType, pixelType, ErrImageSize)
	}
	if sizeErr.Bytes != sizeErr.WantBytes {
		return sizeErr
	}
	return nil
}
