/*
	This file supports serialization/deserialization and compression of data.
*/

package g2s

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"strings"

	"github.com/golang/snappy"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Compression is the format of compression for storing data.
// NOTE: Should be no more than 8 (3 bits) of compression types.
type Compression uint8

const (
	Uncompressed Compression = iota
	Snappy
	LZ4
	Zstd
)

// ParseCompression accepts "none", "snappy", "lz4" or "zstd".
func ParseCompression(s string) (Compression, error) {
	switch strings.ToLower(s) {
	case "", "none", "uncompressed":
		return Uncompressed, nil
	case "snappy":
		return Snappy, nil
	case "lz4":
		return LZ4, nil
	case "zstd":
		return Zstd, nil
	default:
		return Uncompressed, fmt.Errorf("unknown compression %q", s)
	}
}

func (compress Compression) String() string {
	switch compress {
	case Uncompressed:
		return "none"
	case Snappy:
		return "snappy"
	case LZ4:
		return "lz4"
	case Zstd:
		return "zstd"
	default:
		return "unknown"
	}
}

// Checksum is the type of checksum employed for error checking stored data.
// NOTE: Should be no more than 4 (2 bits) of checksum types.
type Checksum uint8

const (
	NoChecksum Checksum = iota
	CRC32
)

func (checksum Checksum) String() string {
	switch checksum {
	case NoChecksum:
		return "No checksum"
	case CRC32:
		return "CRC32 checksum"
	default:
		return "Unknown checksum"
	}
}

// SerializationFormat is a single byte combining both compression and checksum methods.
type SerializationFormat uint8

func EncodeSerializationFormat(compress Compression, checksum Checksum) SerializationFormat {
	a := (uint8(compress) & 0x07) << 5
	b := (uint8(checksum) & 0x03) << 3
	return SerializationFormat(a | b)
}

func DecodeSerializationFormat(s SerializationFormat) (compress Compression, checksum Checksum) {
	compress = Compression(uint8(s) >> 5)
	checksum = Checksum((uint8(s) >> 3) & 0x03)
	return
}

// zstd encoders and decoders are safe for concurrent use.
var (
	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
)

func init() {
	var err error
	if zstdEncoder, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedFastest)); err != nil {
		panic("g2s: zstd encoder initialization failed: " + err.Error())
	}
	if zstdDecoder, err = zstd.NewReader(nil); err != nil {
		panic("g2s: zstd decoder initialization failed: " + err.Error())
	}
}

// Compress returns data compressed without any framing beyond what the compression
// format itself requires.  LZ4 blocks are prefixed with the uncompressed size as a
// little-endian uint32.
func Compress(data []byte, compress Compression) ([]byte, error) {
	switch compress {
	case Uncompressed:
		return data, nil
	case Snappy:
		return snappy.Encode(nil, data), nil
	case LZ4:
		out := make([]byte, 4+lz4.CompressBlockBound(len(data)))
		binary.LittleEndian.PutUint32(out[0:4], uint32(len(data)))
		if len(data) == 0 {
			return out[:4], nil
		}
		n, err := lz4.CompressBlock(data, out[4:], nil)
		if err != nil {
			return nil, fmt.Errorf("lz4 compress: %v", err)
		}
		if n == 0 {
			// incompressible data is stored as a literal-only block
			n, err = lz4LiteralBlock(data, out[4:])
			if err != nil {
				return nil, err
			}
		}
		return out[:4+n], nil
	case Zstd:
		return zstdEncoder.EncodeAll(data, nil), nil
	default:
		return nil, fmt.Errorf("illegal compression (%s) during serialization", compress)
	}
}

// Uncompress reverses Compress.
func Uncompress(cdata []byte, compress Compression) ([]byte, error) {
	switch compress {
	case Uncompressed:
		return cdata, nil
	case Snappy:
		return snappy.Decode(nil, cdata)
	case LZ4:
		if len(cdata) < 4 {
			return nil, fmt.Errorf("lz4 data too short (%d bytes)", len(cdata))
		}
		origSize := binary.LittleEndian.Uint32(cdata[0:4])
		data := make([]byte, int(origSize))
		if origSize == 0 {
			return data, nil
		}
		n, err := lz4.UncompressBlock(cdata[4:], data)
		if err != nil {
			return nil, fmt.Errorf("lz4 uncompress: %v", err)
		}
		if n != int(origSize) {
			return nil, fmt.Errorf("lz4 uncompress: got %d bytes, expected %d", n, origSize)
		}
		return data, nil
	case Zstd:
		return zstdDecoder.DecodeAll(cdata, nil)
	default:
		return nil, fmt.Errorf("illegal compression format (%d) in deserialization", compress)
	}
}

// lz4LiteralBlock writes data as a single LZ4 sequence of literals, which is always
// a valid block.
func lz4LiteralBlock(data, dst []byte) (int, error) {
	var buf bytes.Buffer
	n := len(data)
	if n < 15 {
		buf.WriteByte(byte(n << 4))
	} else {
		buf.WriteByte(0xF0)
		rest := n - 15
		for rest >= 255 {
			buf.WriteByte(255)
			rest -= 255
		}
		buf.WriteByte(byte(rest))
	}
	buf.Write(data)
	if buf.Len() > len(dst) {
		return 0, fmt.Errorf("lz4 literal block of %d bytes exceeds bound %d", buf.Len(), len(dst))
	}
	return copy(dst, buf.Bytes()), nil
}

// SerializeData serializes a slice of bytes using optional compression and checksum.
func SerializeData(data []byte, compress Compression, checksum Checksum) ([]byte, error) {
	var buffer bytes.Buffer

	// Store the requested compression and checksum
	format := EncodeSerializationFormat(compress, checksum)
	buffer.WriteByte(byte(format))

	byteData, err := Compress(data, compress)
	if err != nil {
		return nil, err
	}

	switch checksum {
	case NoChecksum:
	case CRC32:
		var crc [4]byte
		binary.LittleEndian.PutUint32(crc[:], crc32.ChecksumIEEE(byteData))
		buffer.Write(crc[:])
	default:
		return nil, fmt.Errorf("illegal checksum (%s) in SerializeData()", checksum)
	}

	// Note the actual data is written last, after any checksum so we don't have to
	// worry about length when deserializing.
	buffer.Write(byteData)
	return buffer.Bytes(), nil
}

// DeserializeData deserializes a slice of bytes using stored compression and checksum.
func DeserializeData(s []byte) (data []byte, compress Compression, err error) {
	if len(s) < 1 {
		err = fmt.Errorf("cannot deserialize empty data")
		return
	}
	var checksum Checksum
	compress, checksum = DecodeSerializationFormat(SerializationFormat(s[0]))
	cdata := s[1:]

	switch checksum {
	case NoChecksum:
	case CRC32:
		if len(cdata) < 4 {
			err = fmt.Errorf("serialized data too short for CRC32 checksum")
			return
		}
		storedCrc32 := binary.LittleEndian.Uint32(cdata[0:4])
		cdata = cdata[4:]
		if crc := crc32.ChecksumIEEE(cdata); crc != storedCrc32 {
			err = fmt.Errorf("bad checksum: stored %x got %x", storedCrc32, crc)
			return
		}
	default:
		err = fmt.Errorf("illegal checksum in deserializing data")
		return
	}

	data, err = Uncompress(cdata, compress)
	return
}
