package g2s

import (
	"encoding/json"

	. "github.com/janelia-flyem/go/gocheck"
)

const testSummary = `{
	"AxisOrder": ["channel", "z", "time"],
	"IntendedDimensions": {"channel": 2, "z": 3, "time": 1},
	"Width": 64,
	"Height": 32,
	"PixelType": "GRAY16",
	"Prefix": "acq",
	"ChannelNames": ["DAPI", "FITC"],
	"Objective": "20x",
	"Exposure-ms": 12.5
}`

func (s *DataSuite) TestParseSummaryMetadata(c *C) {
	summary, err := ParseSummaryMetadata([]byte(testSummary))
	c.Assert(err, IsNil)
	c.Assert(summary.Width, Equals, 64)
	c.Assert(summary.Height, Equals, 32)
	c.Assert(summary.PixelType, Equals, Gray16)
	c.Assert(summary.Prefix, Equals, "acq")
	c.Assert(summary.ChannelNames, DeepEquals, []string{"DAPI", "FITC"})

	axes, err := summary.Axes()
	c.Assert(err, IsNil)
	c.Assert(axes.Shape(summary.Width, summary.Height), DeepEquals, []int{64, 32, 2, 3, 1})

	objective, found := summary.Get("Objective")
	c.Assert(found, Equals, true)
	c.Assert(string(objective), Equals, `"20x"`)
}

func (s *DataSuite) TestSummaryPassThrough(c *C) {
	summary, err := ParseSummaryMetadata([]byte(testSummary))
	c.Assert(err, IsNil)
	c.Assert(summary.Set("Operator", "ndg"), IsNil)

	b, err := json.Marshal(summary)
	c.Assert(err, IsNil)

	var doc map[string]interface{}
	c.Assert(json.Unmarshal(b, &doc), IsNil)
	c.Assert(doc["Objective"], Equals, "20x")
	c.Assert(doc["Exposure-ms"], Equals, 12.5)
	c.Assert(doc["Operator"], Equals, "ndg")
	c.Assert(doc["PixelType"], Equals, "GRAY16")

	again, err := ParseSummaryMetadata(b)
	c.Assert(err, IsNil)
	c.Assert(again.AxisOrder, DeepEquals, summary.AxisOrder)
	c.Assert(again.IntendedDimensions, DeepEquals, summary.IntendedDimensions)

	dup := summary.Duplicate()
	dup.IntendedDimensions["channel"] = 9
	c.Assert(summary.IntendedDimensions["channel"], Equals, 2)
}

func (s *DataSuite) TestBadSummaryMetadata(c *C) {
	bad := []string{
		`not json`,
		`{"Width": 64, "Height": 32}`,
		`{"AxisOrder": ["z", "z"], "Width": 64, "Height": 32}`,
		`{"AxisOrder": ["z"], "Width": 0, "Height": 32}`,
		`{"AxisOrder": ["z"], "Width": 64, "Height": 32, "IntendedDimensions": {"z": -1}}`,
		`{"AxisOrder": ["z"], "Width": 64, "Height": 32, "PixelType": "CMYK"}`,
	}
	for _, doc := range bad {
		_, err := ParseSummaryMetadata([]byte(doc))
		c.Assert(err, NotNil, Commentf("document %s", doc))
	}

	summary, err := ParseSummaryMetadata([]byte(`{"AxisOrder": ["z"], "Width": 8, "Height": 8}`))
	c.Assert(err, IsNil)
	c.Assert(summary.PixelType, Equals, Gray16)
}

func (s *DataSuite) TestStandardSummary(c *C) {
	summary := StandardSummaryMetadata(16, 8, Gray8)
	axes, err := summary.Axes()
	c.Assert(err, IsNil)
	c.Assert(axes.NumImages(), Equals, 1)
	c.Assert(axes.Names(), DeepEquals, []string{"channel", "z", "time", "position"})
}

func (s *DataSuite) TestImageMetadata(c *C) {
	md, err := ParseImageMetadata(nil)
	c.Assert(err, IsNil)
	c.Assert(md, HasLen, 0)

	md, err = ParseImageMetadata([]byte(`{"Exposure-ms": 10, "Image-index": 3}`))
	c.Assert(err, IsNil)
	index, found := md.ImageIndex()
	c.Assert(found, Equals, true)
	c.Assert(index, Equals, 3)

	md.SetEssential(64, 32, Gray16)
	c.Assert(md.Keys(), DeepEquals, []string{"Exposure-ms", "Height", "Image-index", "PixelType", "Width"})

	b, err := md.Bytes()
	c.Assert(err, IsNil)
	back, err := ParseImageMetadata(b)
	c.Assert(err, IsNil)
	c.Assert(back["PixelType"], Equals, "GRAY16")
	c.Assert(back["Width"], Equals, float64(64))

	_, err = ParseImageMetadata([]byte(`[1, 2]`))
	c.Assert(err, NotNil)

	var empty ImageMetadata
	b, err = empty.Bytes()
	c.Assert(err, IsNil)
	c.Assert(string(b), Equals, "{}")
}
