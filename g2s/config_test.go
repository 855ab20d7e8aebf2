package g2s

import (
	"path/filepath"

	. "github.com/janelia-flyem/go/gocheck"
)

func (s *DataSuite) TestConfig(c *C) {
	config := NewConfig()
	config.SetAll(map[string]interface{}{
		"Path":       "/tmp/g2s",
		"queue":      int64(64),
		"InMemory":   true,
		"flush":      "250",
		"SyncWrites": "false",
	})

	path, found, err := config.GetString("path")
	c.Assert(err, IsNil)
	c.Assert(found, Equals, true)
	c.Assert(path, Equals, "/tmp/g2s")

	queue, found, err := config.GetInt("Queue")
	c.Assert(err, IsNil)
	c.Assert(found, Equals, true)
	c.Assert(queue, Equals, 64)

	flush, _, err := config.GetInt("flush")
	c.Assert(err, IsNil)
	c.Assert(flush, Equals, 250)

	inmem, _, err := config.GetBool("inmemory")
	c.Assert(err, IsNil)
	c.Assert(inmem, Equals, true)

	sync, _, err := config.GetBool("syncwrites")
	c.Assert(err, IsNil)
	c.Assert(sync, Equals, false)

	_, found, err = config.GetString("missing")
	c.Assert(err, IsNil)
	c.Assert(found, Equals, false)

	_, _, err = config.GetString("queue")
	c.Assert(err, NotNil)

	var nilConfig Config
	_, found = nilConfig.Get("path")
	c.Assert(found, Equals, false)
}

func (s *DataSuite) TestConvertToAbsolute(c *C) {
	abs, err := ConvertToAbsolute("data", "/var/g2s")
	c.Assert(err, IsNil)
	c.Assert(abs, Equals, filepath.Join("/var/g2s", "data"))

	abs, err = ConvertToAbsolute("/already/abs", "/var/g2s")
	c.Assert(err, IsNil)
	c.Assert(abs, Equals, "/already/abs")

	dir := c.MkDir()
	c.Assert(DirExists(dir), Equals, true)
	c.Assert(DirExists(filepath.Join(dir, "nope")), Equals, false)
}
