package datastore

import (
	"github.com/coocood/freecache"
	"github.com/tinylib/msgp/msgp"

	"github.com/go2scope/g2s/g2s"
)

// readCache holds images already fetched from the storage engine.  Unlike the write
// cache it is bounded; frames too large for it are simply not cached.
type readCache struct {
	cache *freecache.Cache
}

func newReadCache(numBytes int) *readCache {
	if numBytes <= 0 {
		return nil
	}
	g2s.Infof("Created freecache of ~ %d MB for engine reads.\n", numBytes>>20)
	return &readCache{cache: freecache.NewCache(numBytes)}
}

func (rc *readCache) get(key string) (pixels, meta []byte, found bool) {
	if rc == nil {
		return
	}
	value, err := rc.cache.Get([]byte(key))
	if err != nil {
		if err != freecache.ErrNotFound {
			g2s.Errorf("Read cache get for %s: %v\n", key, err)
		}
		return
	}
	if pixels, value, err = msgp.ReadBytesBytes(value, nil); err != nil {
		return nil, nil, false
	}
	if meta, _, err = msgp.ReadBytesBytes(value, nil); err != nil {
		return nil, nil, false
	}
	return pixels, meta, true
}

func (rc *readCache) set(key string, pixels, meta []byte) {
	if rc == nil {
		return
	}
	value := msgp.AppendBytes(nil, pixels)
	value = msgp.AppendBytes(value, meta)
	if err := rc.cache.Set([]byte(key), value, 0); err != nil {
		g2s.Debugf("Image %s not added to read cache: %v\n", key, err)
	}
}

func (rc *readCache) del(key string) {
	if rc != nil {
		rc.cache.Del([]byte(key))
	}
}

func (rc *readCache) clear() {
	if rc != nil {
		rc.cache.Clear()
	}
}
