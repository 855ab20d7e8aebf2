/*
	Package bucket implements a storage engine that lays datasets out as Zarr v2 arrays
	on any gocloud blob bucket.  The "url" setting selects the bucket:

		file:///data/acquisitions
		mem://
		gs://my-bucket

	Each frame is one chunk so images can be written independently and in any order.
*/
package bucket

import (
	"context"
	"encoding/json"
	"fmt"
	"path"
	"sync"

	"github.com/blang/semver"
	"gocloud.dev/blob"
	_ "gocloud.dev/blob/fileblob"
	_ "gocloud.dev/blob/gcsblob"
	_ "gocloud.dev/blob/memblob"
	"gocloud.dev/gcerrors"

	"github.com/go2scope/g2s/g2s"
	"github.com/go2scope/g2s/storage"
)

func init() {
	ver, err := semver.Make("0.1.0")
	if err != nil {
		g2s.Errorf("Unable to make semver in bucket: %v\n", err)
	}
	e := Engine{"bucket", "Zarr v2 arrays in a blob bucket", ver}
	storage.RegisterEngine(e)
}

// --- Engine Implementation ------

type Engine struct {
	name   string
	desc   string
	semver semver.Version
}

func (e Engine) GetName() string {
	return e.name
}

func (e Engine) GetDescription() string {
	return e.desc
}

func (e Engine) GetSemVer() semver.Version {
	return e.semver
}

func (e Engine) String() string {
	return fmt.Sprintf("%s [%s]", e.name, e.semver)
}

// NewClient opens the bucket given by the "url" setting.
func (e Engine) NewClient(config g2s.StoreConfig) (storage.Client, error) {
	url, compress, err := parseConfig(config.Config)
	if err != nil {
		return nil, err
	}
	bucket, err := blob.OpenBucket(context.Background(), url)
	if err != nil {
		g2s.Errorf("Can't open bucket reference @ %q: %v\n", url, err)
		return nil, err
	}
	return &Client{
		url:      url,
		bucket:   bucket,
		compress: compress,
		datasets: make(map[storage.Handle]*dataset),
	}, nil
}

func parseConfig(c g2s.Config) (url string, compress g2s.Compression, err error) {
	var found bool
	url, found, err = c.GetString("url")
	if err != nil {
		return
	}
	if !found || url == "" {
		err = fmt.Errorf("%q must be specified for bucket configuration", "url")
		return
	}
	compress = g2s.Zstd
	var s string
	if s, found, err = c.GetString("compression"); err != nil || !found {
		return
	}
	if compress, err = g2s.ParseCompression(s); err != nil {
		return
	}
	if compress == g2s.Snappy {
		err = fmt.Errorf("snappy has no zarr codec, use zstd, lz4 or none")
	}
	return
}

// Client stores datasets as prefixes of one bucket.
type Client struct {
	url      string
	bucket   *blob.Bucket
	compress g2s.Compression

	mu       sync.RWMutex
	datasets map[storage.Handle]*dataset
}

type dataset struct {
	prefix    string
	shape     []int
	pixelType g2s.PixelType
	compress  g2s.Compression
	summary   []byte
}

func (d *dataset) key(name string) string {
	return path.Join(d.prefix, name)
}

func (client *Client) String() string {
	return fmt.Sprintf("bucket @ %s", client.url)
}

func (client *Client) get(h storage.Handle) (*dataset, error) {
	client.mu.RLock()
	defer client.mu.RUnlock()
	d, found := client.datasets[h]
	if !found {
		return nil, &storage.UnknownHandleError{Handle: h}
	}
	return d, nil
}

func (client *Client) add(d *dataset) storage.Handle {
	h := storage.NewHandle()
	client.mu.Lock()
	client.datasets[h] = d
	client.mu.Unlock()
	return h
}

func (client *Client) writeJSON(ctx context.Context, key string, v interface{}) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return client.bucket.WriteAll(ctx, key, b, &blob.WriterOptions{ContentType: "application/json"})
}

// CreateDataset writes the Zarr documents of a new array at <path>/<name> within the bucket.
func (client *Client) CreateDataset(dir, name string, shape []int, pixelType g2s.PixelType, summary []byte) (storage.Handle, error) {
	if err := g2s.ValidShape(shape); err != nil {
		return "", err
	}
	prefix := path.Join(dir, name)
	if prefix == "" || prefix == "." {
		return "", fmt.Errorf("bucket datasets need a path or name")
	}
	zarray, err := newZarray(shape, pixelType, client.compress)
	if err != nil {
		return "", err
	}
	if len(summary) == 0 {
		summary = []byte("{}")
	}
	var attrs map[string]interface{}
	if err := json.Unmarshal(summary, &attrs); err != nil {
		return "", fmt.Errorf("summary metadata must be a JSON object for zarr attributes: %v", err)
	}

	ctx := context.Background()
	d := &dataset{
		prefix:    prefix,
		shape:     append([]int(nil), shape...),
		pixelType: pixelType,
		compress:  client.compress,
		summary:   summary,
	}
	exists, err := client.bucket.Exists(ctx, d.key(zarrayName))
	if err != nil {
		return "", err
	}
	if exists {
		return "", fmt.Errorf("dataset already exists at %q in %s", prefix, client)
	}
	if err := client.writeJSON(ctx, d.key(zarrayName), zarray); err != nil {
		return "", err
	}
	if err := client.bucket.WriteAll(ctx, d.key(zattrsName), summary, nil); err != nil {
		return "", err
	}
	info := datasetInfo{PixelType: pixelType.String(), Compression: client.compress.String()}
	if err := client.writeJSON(ctx, d.key(g2sName), info); err != nil {
		return "", err
	}
	h := client.add(d)
	g2s.Infof("Created zarr dataset %s @ %q in %s with shape %v\n", h, prefix, client, shape)
	return h, nil
}

// LoadDataset reads the Zarr documents at the given prefix.
func (client *Client) LoadDataset(prefix string) (storage.Handle, error) {
	ctx := context.Background()
	d := &dataset{prefix: prefix}
	b, err := client.bucket.ReadAll(ctx, d.key(zarrayName))
	if err != nil {
		if gcerrors.Code(err) == gcerrors.NotFound {
			return "", fmt.Errorf("no zarr array found at %q in %s", prefix, client)
		}
		return "", err
	}
	var zarray zarrayMeta
	if err := json.Unmarshal(b, &zarray); err != nil {
		return "", fmt.Errorf("bad %s at %q: %v", zarrayName, prefix, err)
	}
	if zarray.ZarrFormat != 2 {
		return "", fmt.Errorf("unsupported zarr format %d at %q", zarray.ZarrFormat, prefix)
	}
	d.shape = zarray.denseShape()
	if err := g2s.ValidShape(d.shape); err != nil {
		return "", err
	}
	if d.compress, err = zarray.compression(); err != nil {
		return "", err
	}
	if d.pixelType, err = pixelTypeFromDType(zarray.DType); err != nil {
		return "", err
	}
	if b, err = client.bucket.ReadAll(ctx, d.key(g2sName)); err == nil {
		var info datasetInfo
		if err := json.Unmarshal(b, &info); err == nil {
			if pt, err := g2s.ParsePixelType(info.PixelType); err == nil {
				d.pixelType = pt
			}
		}
	} else if gcerrors.Code(err) != gcerrors.NotFound {
		return "", err
	}
	d.summary, err = client.bucket.ReadAll(ctx, d.key(zattrsName))
	if err != nil {
		if gcerrors.Code(err) != gcerrors.NotFound {
			return "", err
		}
		d.summary = []byte("{}")
	}
	h := client.add(d)
	g2s.Infof("Loaded zarr dataset %s @ %q in %s with shape %v\n", h, prefix, client, d.shape)
	return h, nil
}

// AddImage writes the frame chunk and its metadata synchronously.
func (client *Client) AddImage(h storage.Handle, pixels []byte, coord g2s.DenseCoord, meta []byte) error {
	d, err := client.get(h)
	if err != nil {
		return err
	}
	if err := g2s.CheckShape(coord, d.shape); err != nil {
		return err
	}
	want := d.shape[0] * d.shape[1] * d.pixelType.BytesPerPixel()
	if len(pixels) != want {
		return fmt.Errorf("image at %s has %d bytes, dataset frames have %d", coord, len(pixels), want)
	}
	chunk, err := g2s.Compress(pixels, d.compress)
	if err != nil {
		return err
	}
	ctx := context.Background()
	key := chunkKey(coord)
	if err := client.bucket.WriteAll(ctx, d.key(key), chunk, nil); err != nil {
		return err
	}
	storage.NoteWrite(len(chunk))
	if len(meta) > 0 {
		if err := client.bucket.WriteAll(ctx, d.key(path.Join(metaDir, key)), meta, nil); err != nil {
			return err
		}
	}
	return nil
}

func (client *Client) readObject(d *dataset, coord g2s.DenseCoord, key string) ([]byte, bool, error) {
	if err := g2s.CheckShape(coord, d.shape); err != nil {
		return nil, false, err
	}
	b, err := client.bucket.ReadAll(context.Background(), d.key(key))
	if err != nil {
		if gcerrors.Code(err) == gcerrors.NotFound {
			return nil, false, nil
		}
		return nil, false, err
	}
	storage.NoteRead(len(b))
	return b, true, nil
}

func (client *Client) GetImage(h storage.Handle, coord g2s.DenseCoord) ([]byte, bool, error) {
	d, err := client.get(h)
	if err != nil {
		return nil, false, err
	}
	chunk, found, err := client.readObject(d, coord, chunkKey(coord))
	if err != nil || !found {
		return nil, found, err
	}
	pixels, err := g2s.Uncompress(chunk, d.compress)
	if err != nil {
		return nil, false, fmt.Errorf("chunk %s: %v", chunkKey(coord), err)
	}
	return pixels, true, nil
}

func (client *Client) GetImageMeta(h storage.Handle, coord g2s.DenseCoord) ([]byte, bool, error) {
	d, err := client.get(h)
	if err != nil {
		return nil, false, err
	}
	meta, found, err := client.readObject(d, coord, path.Join(metaDir, chunkKey(coord)))
	if err != nil || found {
		return meta, found, err
	}
	// An image written without metadata still exists.
	_, found, err = client.readObject(d, coord, chunkKey(coord))
	if found {
		meta = []byte("{}")
	}
	return meta, found, err
}

func (client *Client) GetDatasetShape(h storage.Handle) ([]int, error) {
	d, err := client.get(h)
	if err != nil {
		return nil, err
	}
	return append([]int(nil), d.shape...), nil
}

func (client *Client) GetDatasetPixelType(h storage.Handle) (g2s.PixelType, error) {
	d, err := client.get(h)
	if err != nil {
		return g2s.PixelUnknown, err
	}
	return d.pixelType, nil
}

func (client *Client) GetSummaryMeta(h storage.Handle) ([]byte, error) {
	d, err := client.get(h)
	if err != nil {
		return nil, err
	}
	return d.summary, nil
}

// CloseDataset releases the handle.  Writes are synchronous so nothing is pending.
func (client *Client) CloseDataset(h storage.Handle) error {
	client.mu.Lock()
	defer client.mu.Unlock()
	if _, found := client.datasets[h]; !found {
		return &storage.UnknownHandleError{Handle: h}
	}
	delete(client.datasets, h)
	return nil
}

// Close releases all handles and closes the bucket.
func (client *Client) Close() error {
	client.mu.Lock()
	client.datasets = make(map[storage.Handle]*dataset)
	client.mu.Unlock()
	return client.bucket.Close()
}
