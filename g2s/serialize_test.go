package g2s

import (
	"bytes"
	"math/rand"

	. "github.com/janelia-flyem/go/gocheck"
)

func testPayloads() map[string][]byte {
	random := make([]byte, 5000)
	rand.New(rand.NewSource(42)).Read(random)
	ramp := make([]byte, 2*64*64)
	for i := range ramp {
		ramp[i] = byte(i / 16)
	}
	return map[string][]byte{
		"empty":  {},
		"short":  []byte("g2s"),
		"random": random,
		"ramp":   ramp,
		"zeros":  make([]byte, 10000),
	}
}

func (s *DataSuite) TestSerializationFormat(c *C) {
	for _, compress := range []Compression{Uncompressed, Snappy, LZ4, Zstd} {
		for _, checksum := range []Checksum{NoChecksum, CRC32} {
			format := EncodeSerializationFormat(compress, checksum)
			gotCompress, gotChecksum := DecodeSerializationFormat(format)
			c.Assert(gotCompress, Equals, compress)
			c.Assert(gotChecksum, Equals, checksum)
		}
	}
}

func (s *DataSuite) TestSerializeData(c *C) {
	for name, payload := range testPayloads() {
		for _, compress := range []Compression{Uncompressed, Snappy, LZ4, Zstd} {
			for _, checksum := range []Checksum{NoChecksum, CRC32} {
				comment := Commentf("payload %s, compression %s, %s", name, compress, checksum)
				ser, err := SerializeData(payload, compress, checksum)
				c.Assert(err, IsNil, comment)
				data, gotCompress, err := DeserializeData(ser)
				c.Assert(err, IsNil, comment)
				c.Assert(gotCompress, Equals, compress, comment)
				c.Assert(bytes.Equal(data, payload), Equals, true, comment)
			}
		}
	}
}

func (s *DataSuite) TestCorruptChecksum(c *C) {
	ser, err := SerializeData([]byte("some pixel data"), Uncompressed, CRC32)
	c.Assert(err, IsNil)
	ser[len(ser)-1] ^= 0xFF
	_, _, err = DeserializeData(ser)
	c.Assert(err, ErrorMatches, "bad checksum.*")

	_, _, err = DeserializeData(nil)
	c.Assert(err, NotNil)
}

func (s *DataSuite) TestParseCompression(c *C) {
	for _, name := range []string{"none", "snappy", "lz4", "zstd"} {
		compress, err := ParseCompression(name)
		c.Assert(err, IsNil)
		c.Assert(compress.String(), Equals, name)
	}
	compress, err := ParseCompression("")
	c.Assert(err, IsNil)
	c.Assert(compress, Equals, Uncompressed)
	_, err = ParseCompression("gzip")
	c.Assert(err, NotNil)
}
