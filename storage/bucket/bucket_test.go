package bucket

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/go2scope/g2s/g2s"
	"github.com/go2scope/g2s/storage"
)

func newClient(t *testing.T, url, compression string) *Client {
	t.Helper()
	c := g2s.NewConfig()
	c.Set("url", url)
	if compression != "" {
		c.Set("compression", compression)
	}
	client, err := storage.NewClient(g2s.StoreConfig{Config: c, Engine: "bucket"})
	if err != nil {
		t.Fatalf("can't create bucket client: %v", err)
	}
	return client.(*Client)
}

func TestChunkKey(t *testing.T) {
	if key := chunkKey(g2s.DenseCoord{0, 0, 1, 2}); key != "2.1.0.0" {
		t.Errorf("expected chunk key 2.1.0.0, got %s", key)
	}
	z, err := newZarray([]int{64, 32, 2, 3}, g2s.Gray16, g2s.Zstd)
	if err != nil {
		t.Fatal(err)
	}
	if want := []int{3, 2, 32, 64}; !equalInts(z.Shape, want) {
		t.Errorf("expected zarr shape %v, got %v", want, z.Shape)
	}
	if want := []int{1, 1, 32, 64}; !equalInts(z.Chunks, want) {
		t.Errorf("expected zarr chunks %v, got %v", want, z.Chunks)
	}
	if z.DType != "<u2" || z.Compressor == nil || z.Compressor.ID != "zstd" {
		t.Errorf("unexpected zarray %+v", z)
	}
	if !equalInts(z.denseShape(), []int{64, 32, 2, 3}) {
		t.Errorf("dense shape not recovered: %v", z.denseShape())
	}
}

func equalInts(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestMemBucket(t *testing.T) {
	for _, compression := range []string{"none", "lz4", "zstd"} {
		client := newClient(t, "mem://", compression)
		shape := []int{8, 4, 3}
		h, err := client.CreateDataset("acq", "run1", shape, g2s.Gray8, []byte(`{"AxisOrder":["time"],"Width":8,"Height":4,"Operator":"ndg"}`))
		if err != nil {
			t.Fatalf("CreateDataset: %v", err)
		}
		pix := bytes.Repeat([]byte{7, 8}, 16)
		if err := client.AddImage(h, pix, g2s.DenseCoord{0, 0, 2}, []byte(`{"Image-index":0}`)); err != nil {
			t.Fatalf("AddImage: %v", err)
		}
		got, found, err := client.GetImage(h, g2s.DenseCoord{0, 0, 2})
		if err != nil || !found || !bytes.Equal(got, pix) {
			t.Errorf("%s: image not read back: found %t, err %v", compression, found, err)
		}
		_, found, err = client.GetImage(h, g2s.DenseCoord{0, 0, 1})
		if err != nil || found {
			t.Errorf("%s: expected unwritten image not found, got found %t err %v", compression, found, err)
		}
		meta, found, err := client.GetImageMeta(h, g2s.DenseCoord{0, 0, 2})
		if err != nil || !found || string(meta) != `{"Image-index":0}` {
			t.Errorf("%s: bad image metadata %s (found %t, err %v)", compression, meta, found, err)
		}
		if err := client.AddImage(h, pix, g2s.DenseCoord{0, 0, 3}, nil); !errors.Is(err, g2s.ErrOutOfBounds) {
			t.Errorf("%s: expected out of bounds, got %v", compression, err)
		}

		attrs, err := client.bucket.ReadAll(context.Background(), "acq/run1/.zattrs")
		if err != nil {
			t.Fatalf("reading .zattrs: %v", err)
		}
		var doc map[string]interface{}
		if err := json.Unmarshal(attrs, &doc); err != nil || doc["Operator"] != "ndg" {
			t.Errorf("summary not stored as zarr attributes: %s", attrs)
		}
		if _, err := client.CreateDataset("acq", "run1", shape, g2s.Gray8, nil); err == nil {
			t.Errorf("%s: expected error recreating dataset", compression)
		}
		if err := client.CloseDataset(h); err != nil {
			t.Errorf("CloseDataset: %v", err)
		}
		if err := client.Close(); err != nil {
			t.Errorf("Close: %v", err)
		}
	}
}

func TestFileBucketReload(t *testing.T) {
	dir := t.TempDir()
	client := newClient(t, "file://"+dir, "lz4")
	shape := []int{4, 4, 2, 2}
	h, err := client.CreateDataset("", "ds", shape, g2s.Gray16, []byte(`{"AxisOrder":["channel","z"],"Width":4,"Height":4}`))
	if err != nil {
		t.Fatalf("CreateDataset: %v", err)
	}
	frames := make(map[string][]byte)
	for i := 0; i < g2s.ShapeNumImages(shape); i++ {
		coord := g2s.DenseFromLinear(i, shape)
		pix := bytes.Repeat([]byte{byte(i), 0}, 16)
		if err := client.AddImage(h, pix, coord, nil); err != nil {
			t.Fatalf("AddImage %s: %v", coord, err)
		}
		frames[coord.Key()] = pix
	}
	if err := client.Close(); err != nil {
		t.Fatal(err)
	}

	client = newClient(t, "file://"+dir, "")
	defer client.Close()
	h, err = client.LoadDataset("ds")
	if err != nil {
		t.Fatalf("LoadDataset: %v", err)
	}
	got, err := client.GetDatasetShape(h)
	if err != nil || !equalInts(got, shape) {
		t.Errorf("expected shape %v, got %v (%v)", shape, got, err)
	}
	pt, err := client.GetDatasetPixelType(h)
	if err != nil || pt != g2s.Gray16 {
		t.Errorf("expected GRAY16, got %s (%v)", pt, err)
	}
	for key, pix := range frames {
		var coord g2s.DenseCoord
		for i := 0; i < g2s.ShapeNumImages(shape); i++ {
			if c := g2s.DenseFromLinear(i, shape); c.Key() == key {
				coord = c
			}
		}
		read, found, err := client.GetImage(h, coord)
		if err != nil || !found || !bytes.Equal(read, pix) {
			t.Errorf("frame %s not read back (found %t, err %v)", key, found, err)
		}
		meta, found, err := client.GetImageMeta(h, coord)
		if err != nil || !found || string(meta) != "{}" {
			t.Errorf("expected empty metadata for %s, got %s (found %t, err %v)", key, meta, found, err)
		}
	}
	if _, err := client.LoadDataset("nothing-here"); err == nil {
		t.Errorf("expected error loading missing dataset")
	}
}

func TestBadSettings(t *testing.T) {
	for _, settings := range []map[string]interface{}{
		{},
		{"url": "mem://", "compression": "snappy"},
		{"url": "mem://", "compression": "brotli"},
	} {
		c := g2s.NewConfig()
		c.SetAll(settings)
		if _, err := storage.NewClient(g2s.StoreConfig{Config: c, Engine: "bucket"}); err == nil {
			t.Errorf("expected error for settings %v", settings)
		}
	}
	client := newClient(t, "mem://", "")
	defer client.Close()
	if _, err := client.CreateDataset("x", "y", []int{4, 4}, g2s.Gray16, []byte("not json")); err == nil {
		t.Errorf("expected error for non-object summary")
	}
}
