/*
	This file contains the Dataset: the lifecycle state machine that owns a dataset's axis
	order and engine handle, and the read/write path through the caches to the engine.
*/

package datastore

import (
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/singleflight"

	"github.com/go2scope/g2s/g2s"
	"github.com/go2scope/g2s/storage"
)

// Option configures a Dataset at construction.
type Option func(*Dataset)

// WithReadCache bounds a cache of images fetched from the engine to numBytes.  The
// default of zero disables it.
func WithReadCache(numBytes int) Option {
	return func(d *Dataset) {
		d.readCache = newReadCache(numBytes)
	}
}

// WithSavePath sets the location passed to the engine when the shape is declared.
func WithSavePath(path, name string) Option {
	return func(d *Dataset) {
		d.savePath = path
		d.name = name
	}
}

// Dataset coordinates one dataset between acquisition code and a storage engine.
// Lifecycle transitions (DeclareShape, OpenExisting, Close) must be serialized by the
// caller; PutImage, GetImage and the queries are safe for concurrent use once the
// dataset is created.
type Dataset struct {
	client   storage.Client
	savePath string
	name     string

	mu         sync.RWMutex
	state      g2s.State
	handle     storage.Handle
	axes       g2s.AxisOrder
	width      int
	height     int
	pixelType  g2s.PixelType
	summary    *g2s.SummaryMetadata
	shape      []int
	readOnly   bool
	finalShape []int

	cache      *WriteCache
	readCache  *readCache
	fetches    singleflight.Group
	imageIndex int64
}

// NewDataset returns an uninitialized dataset that will be stored through client.
func NewDataset(client storage.Client, opts ...Option) *Dataset {
	d := &Dataset{client: client}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *Dataset) String() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.handle == "" {
		return fmt.Sprintf("dataset (%s)", d.state)
	}
	return fmt.Sprintf("dataset %s (%s) with axes %s", d.handle, d.state, d.axes)
}

func engineError(op string, err error) error {
	if err == nil {
		return nil
	}
	engineErrorMetric.WithLabelValues(op).Inc()
	return g2s.NewEngineError(op, err)
}

// DeclareShape fixes the axes, frame and pixel type from the summary metadata and
// creates the dataset in the engine.  It may only be called once.
func (d *Dataset) DeclareShape(summary *g2s.SummaryMetadata) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.state != g2s.Uninitialized {
		return &g2s.LifecycleError{Op: "DeclareShape", State: d.state}
	}
	if summary == nil {
		return fmt.Errorf("DeclareShape needs summary metadata")
	}
	if n := summary.PixelType.Components(); n > 1 {
		return &g2s.UnsupportedImageKindError{Components: n}
	}
	if summary.Width <= 0 || summary.Height <= 0 {
		return fmt.Errorf("summary metadata frame %d x %d is not valid", summary.Width, summary.Height)
	}
	axes, err := summary.Axes()
	if err != nil {
		return err
	}
	shape := axes.Shape(summary.Width, summary.Height)
	blob, err := json.Marshal(summary)
	if err != nil {
		return err
	}
	timedLog := g2s.NewTimeLog()
	h, err := d.client.CreateDataset(d.savePath, d.name, shape, summary.PixelType, blob)
	if err != nil {
		return engineError("CreateDataset", err)
	}
	d.handle = h
	d.axes = axes
	d.width, d.height = summary.Width, summary.Height
	d.pixelType = summary.PixelType
	d.summary = summary.Duplicate()
	d.shape = shape
	d.cache = NewWriteCache(axes)
	d.state = g2s.Created
	timedLog.Infof("Created dataset %s with axes %s, shape %v", h, axes, shape)
	return nil
}

// OpenExisting loads a dataset for reading.  The axis order comes from the shape the
// engine reports, named after the stored summary when it matches.
func (d *Dataset) OpenExisting(path string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.state != g2s.Uninitialized {
		return &g2s.LifecycleError{Op: "OpenExisting", State: d.state}
	}
	h, err := d.client.LoadDataset(path)
	if err != nil {
		return engineError("LoadDataset", err)
	}
	if err := d.adopt(h); err != nil {
		if cerr := d.client.CloseDataset(h); cerr != nil {
			g2s.Errorf("Unable to close dataset %s after failed open: %v\n", h, cerr)
		}
		return err
	}
	g2s.Infof("Opened dataset %s @ %q with axes %s, shape %v\n", h, path, d.axes, d.shape)
	return nil
}

func (d *Dataset) adopt(h storage.Handle) error {
	shape, err := d.client.GetDatasetShape(h)
	if err != nil {
		return engineError("GetDatasetShape", err)
	}
	pixelType, err := d.client.GetDatasetPixelType(h)
	if err != nil {
		return engineError("GetDatasetPixelType", err)
	}
	blob, err := d.client.GetSummaryMeta(h)
	if err != nil {
		return engineError("GetSummaryMeta", err)
	}
	var names []string
	summary, err := g2s.ParseSummaryMetadata(blob)
	if err != nil {
		g2s.Warningf("Stored summary metadata of %s unusable, naming axes by position: %v\n", h, err)
	} else {
		names = summary.AxisOrder
	}
	axes, width, height, err := g2s.AxesFromShape(shape, names)
	if err != nil {
		return err
	}
	if summary == nil || len(summary.AxisOrder) != len(axes) {
		summary = &g2s.SummaryMetadata{}
	}
	summary.AxisOrder = axes.Names()
	summary.IntendedDimensions = make(map[string]int, len(axes))
	for _, axis := range axes {
		summary.IntendedDimensions[axis.Name] = axis.Extent
	}
	summary.Width, summary.Height = width, height
	summary.PixelType = pixelType

	d.handle = h
	d.axes = axes
	d.width, d.height = width, height
	d.pixelType = pixelType
	d.summary = summary
	d.shape = shape
	d.readOnly = true
	d.cache = NewWriteCache(axes)
	d.state = g2s.Created
	return nil
}

// Close closes the engine dataset and clears the caches.  Closing a closed dataset
// is a no-op.  The dataset is closed even if the engine reports an error.
func (d *Dataset) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	switch d.state {
	case g2s.Closed:
		return nil
	case g2s.Uninitialized:
		return &g2s.LifecycleError{Op: "Close", State: d.state}
	}
	shape, err := d.client.GetDatasetShape(d.handle)
	if err != nil {
		g2s.Warningf("Unable to get final shape of dataset %s: %v\n", d.handle, err)
		shape = d.shape
	}
	d.finalShape = shape
	err = d.client.CloseDataset(d.handle)
	d.cache.Clear()
	d.readCache.clear()
	d.state = g2s.Closed
	if err != nil {
		return engineError("CloseDataset", err)
	}
	g2s.Infof("Closed dataset %s\n", d.handle)
	return nil
}

// requireCreated returns a LifecycleError unless the dataset is Created.  The caller
// must hold d.mu.
func (d *Dataset) requireCreated(op string) error {
	if d.state != g2s.Created {
		return &g2s.LifecycleError{Op: op, State: d.state}
	}
	return nil
}

// PutImage validates an image, sends it to the engine and makes it visible in the
// write cache.  The pixels are copied so the caller may reuse its buffer once
// PutImage returns.  An error leaves the cache untouched.
func (d *Dataset) PutImage(img *g2s.Image) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if err := d.requireCreated("PutImage"); err != nil {
		return err
	}
	if d.readOnly {
		return &g2s.LifecycleError{Op: "PutImage on a dataset opened for reading", State: d.state}
	}
	if err := g2s.CheckImage(img, d.width, d.height, d.pixelType); err != nil {
		return err
	}
	if err := d.axes.Validate(img.Coords); err != nil {
		return err
	}
	dense, err := d.axes.ToDense(img.Coords)
	if err != nil {
		return err
	}
	coords, err := d.axes.ToSparse(dense)
	if err != nil {
		return err
	}
	meta := img.Metadata.Duplicate()
	meta[g2s.KeyImageIndex] = int(atomic.AddInt64(&d.imageIndex, 1) - 1)
	meta.SetEssential(d.width, d.height, d.pixelType)
	metaBytes, err := meta.Bytes()
	if err != nil {
		return fmt.Errorf("image metadata at %s: %v", coords, err)
	}
	pixels := append([]byte(nil), img.Pixels...)
	if err := d.client.AddImage(d.handle, pixels, dense, metaBytes); err != nil {
		return engineError("AddImage", err)
	}
	stored := &g2s.Image{
		Pixels:    pixels,
		Coords:    coords,
		Metadata:  meta,
		Width:     img.Width,
		Height:    img.Height,
		PixelType: img.PixelType,
	}
	if err := d.cache.Put(coords, stored); err != nil {
		return err
	}
	d.readCache.del(dense.Key())
	imagesWrittenMetric.Inc()
	return nil
}

// GetImage returns the image at coords, or found == false if none has been written.
// The write cache is consulted first, then images already read from the engine, then
// the engine itself.
func (d *Dataset) GetImage(coords g2s.SparseCoord) (img *g2s.Image, found bool, err error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if err = d.requireCreated("GetImage"); err != nil {
		return
	}
	if err = d.axes.Validate(coords); err != nil {
		return
	}
	if img, found = d.cache.Get(coords); found {
		writeCacheHitMetric.Inc()
		return
	}
	dense, err := d.axes.ToDense(coords)
	if err != nil {
		return
	}
	return d.fetch(dense)
}

// fetch reads an image from the engine, collapsing concurrent reads of the same
// coordinate.  The caller must hold d.mu.
func (d *Dataset) fetch(dense g2s.DenseCoord) (*g2s.Image, bool, error) {
	key := dense.Key()
	coords, err := d.axes.ToSparse(dense)
	if err != nil {
		return nil, false, err
	}
	if pixels, metaBytes, found := d.readCache.get(key); found {
		readCacheHitMetric.Inc()
		return d.newImage(coords, pixels, metaBytes)
	}
	type result struct {
		pixels, meta []byte
		found        bool
	}
	v, err, _ := d.fetches.Do(key, func() (interface{}, error) {
		engineReadMetric.Inc()
		pixels, found, err := d.client.GetImage(d.handle, dense)
		if err != nil {
			return nil, engineError("GetImage", err)
		}
		if !found {
			return result{}, nil
		}
		meta, _, err := d.client.GetImageMeta(d.handle, dense)
		if err != nil {
			return nil, engineError("GetImageMeta", err)
		}
		d.readCache.set(key, pixels, meta)
		return result{pixels, meta, true}, nil
	})
	if err != nil {
		return nil, false, err
	}
	r := v.(result)
	if !r.found {
		return nil, false, nil
	}
	return d.newImage(coords, r.pixels, r.meta)
}

func (d *Dataset) newImage(coords g2s.SparseCoord, pixels, metaBytes []byte) (*g2s.Image, bool, error) {
	meta, err := g2s.ParseImageMetadata(metaBytes)
	if err != nil {
		return nil, false, err
	}
	meta.SetEssential(d.width, d.height, d.pixelType)
	return &g2s.Image{
		Pixels:    pixels,
		Coords:    coords,
		Metadata:  meta,
		Width:     d.width,
		Height:    d.height,
		PixelType: d.pixelType,
	}, true, nil
}

// HasImage returns true if an image has been written at coords.
func (d *Dataset) HasImage(coords g2s.SparseCoord) (bool, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if err := d.requireCreated("HasImage"); err != nil {
		return false, err
	}
	if err := d.axes.Validate(coords); err != nil {
		return false, err
	}
	if d.cache.ContainsKey(coords) {
		return true, nil
	}
	dense, err := d.axes.ToDense(coords)
	if err != nil {
		return false, err
	}
	return d.inEngine(dense)
}

// inEngine checks for an image without reading its pixels.  The caller must hold d.mu.
func (d *Dataset) inEngine(dense g2s.DenseCoord) (bool, error) {
	if _, _, found := d.readCache.get(dense.Key()); found {
		return true, nil
	}
	_, found, err := d.client.GetImageMeta(d.handle, dense)
	if err != nil {
		return false, engineError("GetImageMeta", err)
	}
	return found, nil
}

// AnyImage returns some image of the dataset, or found == false if it holds none.
func (d *Dataset) AnyImage() (*g2s.Image, bool, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if err := d.requireCreated("AnyImage"); err != nil {
		return nil, false, err
	}
	if img, found := d.cache.any(); found {
		return img, true, nil
	}
	if !d.readOnly {
		return nil, false, nil
	}
	for i := 0; i < g2s.ShapeNumImages(d.shape); i++ {
		img, found, err := d.fetch(g2s.DenseFromLinear(i, d.shape))
		if err != nil || found {
			return img, found, err
		}
	}
	return nil, false, nil
}

// ImageCoords returns the coordinates of all images in the dataset, ordered by their
// position in the dense shape with the first axis varying fastest.  For a dataset
// written through this Dataset they come from the write cache; for an opened dataset
// every coordinate of the shape is probed in the engine.
func (d *Dataset) ImageCoords() ([]g2s.SparseCoord, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.imageCoords()
}

func (d *Dataset) imageCoords() ([]g2s.SparseCoord, error) {
	if err := d.requireCreated("ImageCoords"); err != nil {
		return nil, err
	}
	if !d.readOnly {
		return d.cache.coords(), nil
	}
	var coords []g2s.SparseCoord
	for i := 0; i < g2s.ShapeNumImages(d.shape); i++ {
		dense := g2s.DenseFromLinear(i, d.shape)
		found, err := d.inEngine(dense)
		if err != nil {
			return nil, err
		}
		if found {
			c, err := d.axes.ToSparse(dense)
			if err != nil {
				return nil, err
			}
			coords = append(coords, c)
		}
	}
	return coords, nil
}

// ImagesMatching returns the coordinates of images whose index equals partial on
// every axis partial names.
func (d *Dataset) ImagesMatching(partial g2s.SparseCoord) ([]g2s.SparseCoord, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if err := d.requireCreated("ImagesMatching"); err != nil {
		return nil, err
	}
	for axis := range partial {
		if d.axes.Index(axis) < 0 {
			return nil, &g2s.UnknownAxisError{Axis: axis}
		}
	}
	all, err := d.imageCoords()
	if err != nil {
		return nil, err
	}
	var matches []g2s.SparseCoord
	for _, c := range all {
		if matchesOn(c, partial, nil) {
			matches = append(matches, c)
		}
	}
	return matches, nil
}

// ImagesIgnoringAxes returns the coordinates of images that equal coords on every
// declared axis except the ignored ones, e.g., all z planes of one channel and time.
func (d *Dataset) ImagesIgnoringAxes(coords g2s.SparseCoord, ignore ...string) ([]g2s.SparseCoord, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if err := d.requireCreated("ImagesIgnoringAxes"); err != nil {
		return nil, err
	}
	normalized, err := d.axes.Normalize(coords)
	if err != nil {
		return nil, err
	}
	ignored := make(map[string]bool, len(ignore))
	for _, axis := range ignore {
		if d.axes.Index(axis) < 0 {
			return nil, &g2s.UnknownAxisError{Axis: axis}
		}
		ignored[axis] = true
	}
	all, err := d.imageCoords()
	if err != nil {
		return nil, err
	}
	var matches []g2s.SparseCoord
	for _, c := range all {
		if matchesOn(c, normalized, ignored) {
			matches = append(matches, c)
		}
	}
	return matches, nil
}

func matchesOn(c, want g2s.SparseCoord, ignored map[string]bool) bool {
	for axis, idx := range want {
		if !ignored[axis] && c.Index(axis) != idx {
			return false
		}
	}
	return true
}

// MaxIndex returns the largest index written along an axis, or -1 if the dataset
// holds no images.
func (d *Dataset) MaxIndex(axis string) (int, error) {
	indices, err := d.MaxIndices()
	if err != nil {
		return -1, err
	}
	idx, found := indices[axis]
	if !found {
		return -1, &g2s.UnknownAxisError{Axis: axis}
	}
	return idx, nil
}

// MaxIndices returns the largest index written along every axis.
func (d *Dataset) MaxIndices() (map[string]int, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	all, err := d.imageCoords()
	if err != nil {
		return nil, err
	}
	indices := make(map[string]int, len(d.axes))
	for _, axis := range d.axes {
		indices[axis.Name] = -1
	}
	for _, c := range all {
		for axis, idx := range c {
			if idx > indices[axis] {
				indices[axis] = idx
			}
		}
	}
	return indices, nil
}

// Axes returns the declared axis order.  It is empty until the dataset is created.
func (d *Dataset) Axes() g2s.AxisOrder {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return append(g2s.AxisOrder(nil), d.axes...)
}

// AxisNames returns the declared axis names sorted alphabetically.
func (d *Dataset) AxisNames() []string {
	names := d.Axes().Names()
	sort.Strings(names)
	return names
}

// SummaryMetadata returns a copy of the summary document, or nil before creation.
func (d *Dataset) SummaryMetadata() *g2s.SummaryMetadata {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.summary == nil {
		return nil
	}
	return d.summary.Duplicate()
}

// NumImages returns the number of images in the dataset.  While created through this
// Dataset it counts distinct coordinates written; for an opened dataset, and after
// Close, it is derived from the shape the engine reported.
func (d *Dataset) NumImages() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	switch d.state {
	case g2s.Created:
		if d.readOnly {
			return g2s.ShapeNumImages(d.shape)
		}
		return d.cache.Len()
	case g2s.Closed:
		return g2s.ShapeNumImages(d.finalShape)
	default:
		return 0
	}
}

// State returns the lifecycle state.
func (d *Dataset) State() g2s.State {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.state
}

// Handle returns the engine handle, empty until the dataset is created.
func (d *Dataset) Handle() storage.Handle {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.handle
}

// Shape returns the dense shape, or the final engine-reported shape once closed.
func (d *Dataset) Shape() []int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.state == g2s.Closed {
		return append([]int(nil), d.finalShape...)
	}
	return append([]int(nil), d.shape...)
}

// ReadOnly returns true for datasets opened with OpenExisting.
func (d *Dataset) ReadOnly() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.readOnly
}
