/*
	This file holds the write cache: an in-memory shadow of every image written through a
	Dataset so that a producer or any of its peers can read an image back as soon as
	PutImage returns, regardless of when the storage engine makes it durable.
*/

package datastore

import (
	"sort"
	"sync"

	"github.com/go2scope/g2s/g2s"
)

// WriteCache maps normalized sparse coordinates to the last image written there.
// Entries are never evicted individually; the whole cache is cleared when the
// dataset closes.
type WriteCache struct {
	axes g2s.AxisOrder

	mu     sync.RWMutex
	images map[string]*g2s.Image
}

// NewWriteCache returns an empty cache for a dataset with the given axes.
func NewWriteCache(axes g2s.AxisOrder) *WriteCache {
	return &WriteCache{
		axes:   axes,
		images: make(map[string]*g2s.Image),
	}
}

// Put stores img at coords, replacing any earlier image at the same normalized
// coordinate.
func (c *WriteCache) Put(coords g2s.SparseCoord, img *g2s.Image) error {
	key, err := c.axes.Key(coords)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.images[key] = img
	c.mu.Unlock()
	return nil
}

// Get returns the image at coords.  Coordinates naming undeclared axes are never cached.
func (c *WriteCache) Get(coords g2s.SparseCoord) (*g2s.Image, bool) {
	key, err := c.axes.Key(coords)
	if err != nil {
		return nil, false
	}
	return c.get(key)
}

func (c *WriteCache) get(key string) (*g2s.Image, bool) {
	c.mu.RLock()
	img, found := c.images[key]
	c.mu.RUnlock()
	return img, found
}

// ContainsKey returns true if an image has been written at coords.
func (c *WriteCache) ContainsKey(coords g2s.SparseCoord) bool {
	_, found := c.Get(coords)
	return found
}

// Clear drops every cached image.
func (c *WriteCache) Clear() {
	c.mu.Lock()
	c.images = make(map[string]*g2s.Image)
	c.mu.Unlock()
}

// Len returns the number of distinct coordinates cached.
func (c *WriteCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.images)
}

// coords returns the normalized coordinates of all cached images ordered by their
// position in the dense shape.
func (c *WriteCache) coords() []g2s.SparseCoord {
	c.mu.RLock()
	images := make([]*g2s.Image, 0, len(c.images))
	for _, img := range c.images {
		images = append(images, img)
	}
	c.mu.RUnlock()

	shape := c.axes.Shape(1, 1)
	type entry struct {
		linear int
		coords g2s.SparseCoord
	}
	entries := make([]entry, 0, len(images))
	for _, img := range images {
		d, err := c.axes.ToDense(img.Coords)
		if err != nil {
			continue
		}
		entries = append(entries, entry{d.Linear(shape), img.Coords})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].linear < entries[j].linear })
	out := make([]g2s.SparseCoord, len(entries))
	for i, e := range entries {
		out[i] = e.coords
	}
	return out
}

// any returns some cached image.
func (c *WriteCache) any() (*g2s.Image, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, img := range c.images {
		return img, true
	}
	return nil, false
}
