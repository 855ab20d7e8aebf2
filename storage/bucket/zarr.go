package bucket

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/go2scope/g2s/g2s"
)

// Object names within a dataset prefix.
const (
	zarrayName = ".zarray"
	zattrsName = ".zattrs"
	g2sName    = ".g2s"
	metaDir    = "meta"
)

// zarrayMeta is the Zarr v2 .zarray document.  Every frame is one chunk.
type zarrayMeta struct {
	ZarrFormat         int         `json:"zarr_format"`
	Shape              []int       `json:"shape"`
	Chunks             []int       `json:"chunks"`
	DType              string      `json:"dtype"`
	Compressor         *compressor `json:"compressor"`
	FillValue          int         `json:"fill_value"`
	Order              string      `json:"order"`
	Filters            []string    `json:"filters"`
	DimensionSeparator string      `json:"dimension_separator"`
}

type compressor struct {
	ID    string `json:"id"`
	Level int    `json:"level,omitempty"`
}

// datasetInfo holds what the Zarr documents can't express, e.g., GRAY32 vs RGB32.
type datasetInfo struct {
	PixelType   string `json:"pixelType"`
	Compression string `json:"compression"`
}

// reversed returns the dense vector in C order, i.e., slowest-varying axis first.
func reversed(v []int) []int {
	r := make([]int, len(v))
	for i, x := range v {
		r[len(v)-1-i] = x
	}
	return r
}

func newZarray(shape []int, pixelType g2s.PixelType, compress g2s.Compression) (*zarrayMeta, error) {
	dtype, err := zarrDType(pixelType)
	if err != nil {
		return nil, err
	}
	chunks := make([]int, len(shape))
	for i := range chunks {
		chunks[i] = 1
	}
	chunks[0], chunks[1] = shape[0], shape[1]
	z := &zarrayMeta{
		ZarrFormat:         2,
		Shape:              reversed(shape),
		Chunks:             reversed(chunks),
		DType:              dtype,
		Order:              "C",
		DimensionSeparator: ".",
	}
	switch compress {
	case g2s.Uncompressed:
	case g2s.LZ4, g2s.Zstd:
		z.Compressor = &compressor{ID: compress.String()}
	default:
		return nil, fmt.Errorf("compression %s has no zarr codec", compress)
	}
	return z, nil
}

// denseShape returns the dense shape described by the .zarray document.
func (z *zarrayMeta) denseShape() []int {
	return reversed(z.Shape)
}

func (z *zarrayMeta) compression() (g2s.Compression, error) {
	if z.Compressor == nil {
		return g2s.Uncompressed, nil
	}
	switch z.Compressor.ID {
	case "lz4":
		return g2s.LZ4, nil
	case "zstd":
		return g2s.Zstd, nil
	default:
		return g2s.Uncompressed, fmt.Errorf("unsupported zarr compressor %q", z.Compressor.ID)
	}
}

func zarrDType(pixelType g2s.PixelType) (string, error) {
	switch pixelType {
	case g2s.Gray8:
		return "|u1", nil
	case g2s.Gray16:
		return "<u2", nil
	case g2s.Gray32, g2s.RGB32:
		return "<u4", nil
	default:
		return "", fmt.Errorf("pixel type %s has no zarr dtype", pixelType)
	}
}

func pixelTypeFromDType(dtype string) (g2s.PixelType, error) {
	switch dtype {
	case "|u1", "<u1":
		return g2s.Gray8, nil
	case "<u2":
		return g2s.Gray16, nil
	case "<u4":
		return g2s.Gray32, nil
	default:
		return g2s.PixelUnknown, fmt.Errorf("unsupported zarr dtype %q", dtype)
	}
}

// chunkKey returns the Zarr chunk key of a dense image coordinate.
func chunkKey(coord g2s.DenseCoord) string {
	var sb strings.Builder
	for i, idx := range reversed(coord) {
		if i > 0 {
			sb.WriteByte('.')
		}
		sb.WriteString(strconv.Itoa(idx))
	}
	return sb.String()
}
