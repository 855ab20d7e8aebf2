package badger

import (
	"fmt"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v3"

	"github.com/go2scope/g2s/g2s"
	"github.com/go2scope/g2s/storage"
)

// Key layout within a dataset's BadgerDB.
var (
	headerKey   = []byte{'h'}
	imagePrefix = byte('i')
)

func imageKey(coord g2s.DenseCoord) []byte {
	return append([]byte{imagePrefix}, coord.Bytes()...)
}

// dataset is one open BadgerDB plus the goroutine that commits queued images.
type dataset struct {
	dir      string
	db       *badger.DB
	hdr      header
	settings settings
	readOnly bool

	// mu guards closed and the queue channel.  Senders hold the read lock so close
	// can't race a send on a closed channel.
	mu     sync.RWMutex
	closed bool
	queue  chan *pendingImage
	done   chan struct{}

	stopSyncCh chan struct{}

	errMu sync.Mutex
	err   error
}

type pendingImage struct {
	key   []byte
	value []byte
}

func newDataset(dir string, db *badger.DB, hdr header, s settings, readOnly bool) *dataset {
	d := &dataset{
		dir:      dir,
		db:       db,
		hdr:      hdr,
		settings: s,
		readOnly: readOnly,
	}
	if !readOnly {
		d.queue = make(chan *pendingImage, s.queueSize)
		d.done = make(chan struct{})
		go d.writer()
		if dir != "" {
			d.stopSyncCh = make(chan struct{})
			go d.syncPeriodically()
		}
	}
	return d
}

func (d *dataset) String() string {
	if d.dir == "" {
		return "in-memory badger dataset"
	}
	return fmt.Sprintf("badger dataset @ %s", d.dir)
}

// setErr records the first asynchronous write error.
func (d *dataset) setErr(err error) {
	d.errMu.Lock()
	if d.err == nil {
		d.err = err
	}
	d.errMu.Unlock()
}

// takeErr returns the pending write error and keeps it for later calls.
func (d *dataset) takeErr() error {
	d.errMu.Lock()
	defer d.errMu.Unlock()
	return d.err
}

func (d *dataset) addImage(pixels []byte, coord g2s.DenseCoord, meta []byte) error {
	if d.readOnly {
		return fmt.Errorf("%s was loaded read-only", d)
	}
	if err := g2s.CheckShape(coord, d.hdr.Shape); err != nil {
		return err
	}
	want := d.hdr.Shape[0] * d.hdr.Shape[1] * d.hdr.PixelType.BytesPerPixel()
	if len(pixels) != want {
		return fmt.Errorf("image at %s has %d bytes, dataset frames have %d", coord, len(pixels), want)
	}
	if err := d.takeErr(); err != nil {
		return err
	}
	ser, err := g2s.SerializeData(pixels, d.settings.compress, d.settings.checksum)
	if err != nil {
		return err
	}
	rec := imageRecord{Coord: coord, Pixels: ser, Meta: meta}
	value, err := rec.MarshalMsg(nil)
	if err != nil {
		return err
	}

	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return fmt.Errorf("%s is closed", d)
	}
	d.queue <- &pendingImage{key: imageKey(coord), value: value}
	return nil
}

// writer drains the queue into write batches, committing after flushCount images or
// whenever the queue runs empty.
func (d *dataset) writer() {
	defer close(d.done)
	var wb *badger.WriteBatch
	var n, bytes int
	flush := func() {
		if wb == nil {
			return
		}
		if err := wb.Flush(); err != nil {
			g2s.Errorf("Badger write batch of %d images failed for %s: %v\n", n, d, err)
			d.setErr(err)
		} else {
			storage.NoteWrite(bytes)
		}
		wb, n, bytes = nil, 0, 0
	}
	for p := range d.queue {
		if wb == nil {
			wb = d.db.NewWriteBatch()
		}
		if err := wb.Set(p.key, p.value); err != nil {
			g2s.Errorf("Badger write batch set failed for %s: %v\n", d, err)
			d.setErr(err)
			wb.Cancel()
			wb, n, bytes = nil, 0, 0
			continue
		}
		n++
		bytes += len(p.value)
		if n >= d.settings.flushCount || len(d.queue) == 0 {
			flush()
		}
	}
	flush()
}

// Periodically sync to prevent too many writes from being buffered
// if the process crashes.
func (d *dataset) syncPeriodically() {
	ticker := time.NewTicker(syncInterval)
	defer ticker.Stop()
	for {
		select {
		case <-d.stopSyncCh:
			return
		case <-ticker.C:
			if err := d.db.Sync(); err != nil {
				g2s.Warningf("Periodic sync of %s failed: %v\n", d, err)
			}
		}
	}
}

func (d *dataset) getRecord(coord g2s.DenseCoord) (rec imageRecord, found bool, err error) {
	if err = g2s.CheckShape(coord, d.hdr.Shape); err != nil {
		return
	}
	var value []byte
	err = d.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(imageKey(coord))
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		value, err = item.ValueCopy(nil)
		return err
	})
	if err != nil || value == nil {
		return
	}
	storage.NoteRead(len(value))
	if _, err = rec.UnmarshalMsg(value); err != nil {
		err = fmt.Errorf("corrupt image record at %s: %v", coord, err)
		return
	}
	found = true
	return
}

func (d *dataset) close() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	if !d.readOnly {
		close(d.queue)
	}
	d.mu.Unlock()

	var err error
	if !d.readOnly {
		<-d.done
		err = d.takeErr()
		if d.stopSyncCh != nil {
			close(d.stopSyncCh)
			if serr := d.db.Sync(); serr != nil && err == nil {
				err = serr
			}
		}
	}
	if cerr := d.db.Close(); cerr != nil && err == nil {
		err = cerr
	}
	g2s.Infof("Closed %s\n", d)
	return err
}

func putHeader(db *badger.DB, hdr header) error {
	value, err := hdr.MarshalMsg(nil)
	if err != nil {
		return err
	}
	return db.Update(func(txn *badger.Txn) error {
		return txn.Set(headerKey, value)
	})
}

func getHeader(db *badger.DB) (hdr header, found bool, err error) {
	err = db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(headerKey)
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			if _, err := hdr.UnmarshalMsg(val); err != nil {
				return fmt.Errorf("corrupt dataset header: %v", err)
			}
			found = true
			return nil
		})
	})
	if err == nil && found {
		err = g2s.ValidShape(hdr.Shape)
	}
	return
}
