/*
	This file holds the summary and per-image metadata documents.  Both are JSON objects
	that storage engines persist verbatim.  Only a handful of summary keys matter to
	the coordinate model; everything else passes through untouched.
*/

package g2s

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Keys of the summary metadata document used by g2s.
const (
	KeyAxisOrder          = "AxisOrder"
	KeyIntendedDimensions = "IntendedDimensions"
	KeyWidth              = "Width"
	KeyHeight             = "Height"
	KeyPixelType          = "PixelType"
	KeyPrefix             = "Prefix"
	KeyChannelNames       = "ChannelNames"

	// KeyImageIndex is injected into per-image metadata with a sequential index.
	KeyImageIndex = "Image-index"
)

const summarySchemaJSON = `{
	"type": "object",
	"required": ["AxisOrder", "Width", "Height"],
	"properties": {
		"AxisOrder": {
			"type": "array",
			"items": {"type": "string", "minLength": 1},
			"uniqueItems": true
		},
		"IntendedDimensions": {
			"type": "object",
			"additionalProperties": {"type": "integer", "minimum": 0}
		},
		"Width": {"type": "integer", "minimum": 1},
		"Height": {"type": "integer", "minimum": 1},
		"PixelType": {"type": "string"},
		"Prefix": {"type": "string"},
		"ChannelNames": {"type": "array", "items": {"type": "string"}}
	}
}`

var summarySchema = jsonschema.MustCompileString("summary.json", summarySchemaJSON)

// SummaryMetadata describes the declared shape of a dataset plus any descriptive
// fields the acquisition software wants persisted.
type SummaryMetadata struct {
	AxisOrder          []string
	IntendedDimensions map[string]int
	Width              int
	Height             int
	PixelType          PixelType
	Prefix             string
	ChannelNames       []string

	// other keys of the original document, passed through verbatim.
	extra map[string]json.RawMessage
}

// StandardSummaryMetadata returns a summary for a single-image dataset with the
// conventional channel, z, time, position axes.
func StandardSummaryMetadata(width, height int, pixelType PixelType) *SummaryMetadata {
	return &SummaryMetadata{
		AxisOrder:          []string{"channel", "z", "time", "position"},
		IntendedDimensions: map[string]int{"channel": 1, "z": 1, "time": 1, "position": 1},
		Width:              width,
		Height:             height,
		PixelType:          pixelType,
	}
}

// ParseSummaryMetadata validates and decodes a summary metadata document.
func ParseSummaryMetadata(data []byte) (*SummaryMetadata, error) {
	var doc interface{}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("summary metadata is not valid JSON: %v", err)
	}
	if err := summarySchema.Validate(doc); err != nil {
		return nil, fmt.Errorf("bad summary metadata: %v", err)
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	s := &SummaryMetadata{PixelType: Gray16}
	var pixelType string
	fields := []struct {
		key string
		dst interface{}
	}{
		{KeyAxisOrder, &s.AxisOrder},
		{KeyIntendedDimensions, &s.IntendedDimensions},
		{KeyWidth, &s.Width},
		{KeyHeight, &s.Height},
		{KeyPixelType, &pixelType},
		{KeyPrefix, &s.Prefix},
		{KeyChannelNames, &s.ChannelNames},
	}
	for _, f := range fields {
		v, found := raw[f.key]
		if !found {
			continue
		}
		if err := json.Unmarshal(v, f.dst); err != nil {
			return nil, fmt.Errorf("bad %q in summary metadata: %v", f.key, err)
		}
		delete(raw, f.key)
	}
	if pixelType != "" {
		pt, err := ParsePixelType(pixelType)
		if err != nil {
			return nil, err
		}
		s.PixelType = pt
	}
	s.extra = raw
	return s, nil
}

// Axes returns the axis order declared by the summary.
func (s *SummaryMetadata) Axes() (AxisOrder, error) {
	return NewAxisOrder(s.AxisOrder, s.IntendedDimensions)
}

// Get returns a pass-through value of the document.
func (s *SummaryMetadata) Get(key string) (json.RawMessage, bool) {
	v, found := s.extra[key]
	return v, found
}

// Set stores a pass-through value in the document.
func (s *SummaryMetadata) Set(key string, value interface{}) error {
	b, err := json.Marshal(value)
	if err != nil {
		return err
	}
	if s.extra == nil {
		s.extra = make(map[string]json.RawMessage)
	}
	s.extra[key] = b
	return nil
}

// Duplicate returns a deep copy.
func (s *SummaryMetadata) Duplicate() *SummaryMetadata {
	dup := *s
	dup.AxisOrder = append([]string(nil), s.AxisOrder...)
	dup.ChannelNames = append([]string(nil), s.ChannelNames...)
	if s.IntendedDimensions != nil {
		dup.IntendedDimensions = make(map[string]int, len(s.IntendedDimensions))
		for k, v := range s.IntendedDimensions {
			dup.IntendedDimensions[k] = v
		}
	}
	if s.extra != nil {
		dup.extra = make(map[string]json.RawMessage, len(s.extra))
		for k, v := range s.extra {
			dup.extra[k] = v
		}
	}
	return &dup
}

// MarshalJSON writes the full document including pass-through keys.
func (s *SummaryMetadata) MarshalJSON() ([]byte, error) {
	doc := make(map[string]interface{}, len(s.extra)+7)
	for k, v := range s.extra {
		doc[k] = v
	}
	doc[KeyAxisOrder] = s.AxisOrder
	if s.AxisOrder == nil {
		doc[KeyAxisOrder] = []string{}
	}
	if s.IntendedDimensions != nil {
		doc[KeyIntendedDimensions] = s.IntendedDimensions
	}
	doc[KeyWidth] = s.Width
	doc[KeyHeight] = s.Height
	doc[KeyPixelType] = s.PixelType.String()
	if s.Prefix != "" {
		doc[KeyPrefix] = s.Prefix
	}
	if s.ChannelNames != nil {
		doc[KeyChannelNames] = s.ChannelNames
	}
	return json.Marshal(doc)
}

// UnmarshalJSON allows a SummaryMetadata to be embedded in other JSON documents.
func (s *SummaryMetadata) UnmarshalJSON(data []byte) error {
	parsed, err := ParseSummaryMetadata(data)
	if err != nil {
		return err
	}
	*s = *parsed
	return nil
}

// ImageMetadata is the opaque per-image document.
type ImageMetadata map[string]interface{}

// ParseImageMetadata decodes a per-image document.  An empty slice gives an empty document.
func ParseImageMetadata(data []byte) (ImageMetadata, error) {
	md := ImageMetadata{}
	if len(data) == 0 {
		return md, nil
	}
	if err := json.Unmarshal(data, &md); err != nil {
		return nil, fmt.Errorf("image metadata is not a JSON object: %v", err)
	}
	return md, nil
}

// Bytes serializes the document.
func (md ImageMetadata) Bytes() ([]byte, error) {
	if md == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(map[string]interface{}(md))
}

// Duplicate returns a shallow copy of the document.
func (md ImageMetadata) Duplicate() ImageMetadata {
	dup := make(ImageMetadata, len(md)+4)
	for k, v := range md {
		dup[k] = v
	}
	return dup
}

// ImageIndex returns the sequential image index injected on write.
func (md ImageMetadata) ImageIndex() (int, bool) {
	return md.intValue(KeyImageIndex)
}

// SetEssential adds the frame description a reader needs to interpret the pixels.
func (md ImageMetadata) SetEssential(width, height int, pixelType PixelType) {
	md[KeyWidth] = width
	md[KeyHeight] = height
	md[KeyPixelType] = pixelType.String()
}

func (md ImageMetadata) intValue(key string) (int, bool) {
	switch v := md[key].(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	case json.Number:
		i, err := v.Int64()
		return int(i), err == nil
	default:
		return 0, false
	}
}

// Keys returns the document keys in sorted order.
func (md ImageMetadata) Keys() []string {
	keys := make([]string, 0, len(md))
	for k := range md {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
