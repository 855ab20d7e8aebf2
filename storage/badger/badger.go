package badger

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/blang/semver"
	"github.com/dgraph-io/badger/v3"

	"github.com/go2scope/g2s/g2s"
	"github.com/go2scope/g2s/storage"
)

const (
	// DefaultQueueSize is the number of images that may wait for the writer goroutine
	// before AddImage blocks.
	DefaultQueueSize = 256

	// DefaultFlushCount is the maximum number of images committed in one write batch.
	DefaultFlushCount = 32

	// DefaultSyncWrites is true if all writes are synced to disk, thereby making db resilient
	// at cost of speed.
	DefaultSyncWrites = false

	syncInterval = 30 * time.Second
)

func init() {
	ver, err := semver.Make("0.1.0")
	if err != nil {
		g2s.Errorf("Unable to make semver in badger: %v\n", err)
	}
	e := Engine{"badger", "BadgerDB image store", ver}
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

// NewClient returns a badger client.  Datasets given without a path are created under
// the configured "path".
func (e Engine) NewClient(config g2s.StoreConfig) (storage.Client, error) {
	s, err := parseConfig(config.Config)
	if err != nil {
		return nil, err
	}
	return &Client{
		settings: s,
		datasets: make(map[storage.Handle]*dataset),
	}, nil
}

type settings struct {
	path       string
	inMemory   bool
	queueSize  int
	flushCount int
	compress   g2s.Compression
	checksum   g2s.Checksum
	syncWrites bool
	config     g2s.Config
}

func parseConfig(c g2s.Config) (s settings, err error) {
	s = settings{
		queueSize:  DefaultQueueSize,
		flushCount: DefaultFlushCount,
		compress:   g2s.LZ4,
		checksum:   g2s.CRC32,
		syncWrites: DefaultSyncWrites,
		config:     c,
	}
	var found, testing, useChecksum bool
	var str string
	if s.path, _, err = c.GetString("path"); err != nil {
		return
	}
	if s.inMemory, _, err = c.GetBool("inmemory"); err != nil {
		return
	}
	if testing, _, err = c.GetBool("testing"); err != nil {
		return
	}
	if testing && s.path != "" {
		s.path = filepath.Join(os.TempDir(), s.path)
	}
	var n int
	if n, found, err = c.GetInt("queue"); err != nil {
		return
	} else if found {
		if n < 0 {
			err = fmt.Errorf("%q setting must not be negative (%d)", "queue", n)
			return
		}
		s.queueSize = n
	}
	if n, found, err = c.GetInt("flush"); err != nil {
		return
	} else if found {
		if n < 1 {
			err = fmt.Errorf("%q setting must be positive (%d)", "flush", n)
			return
		}
		s.flushCount = n
	}
	if str, found, err = c.GetString("compression"); err != nil {
		return
	} else if found {
		if s.compress, err = g2s.ParseCompression(str); err != nil {
			return
		}
	}
	if useChecksum, found, err = c.GetBool("checksum"); err != nil {
		return
	} else if found && !useChecksum {
		s.checksum = g2s.NoChecksum
	}
	if s.syncWrites, found, err = c.GetBool("syncwrites"); err != nil {
		return
	} else if !found {
		s.syncWrites = DefaultSyncWrites
	}
	return
}

// Client manages the badger datasets created or loaded through it.  Each dataset is
// its own BadgerDB.
type Client struct {
	settings settings

	mu       sync.RWMutex
	datasets map[storage.Handle]*dataset
}

func (client *Client) String() string {
	if client.settings.inMemory {
		return "badger (in-memory)"
	}
	return fmt.Sprintf("badger @ %s", client.settings.path)
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

// CreateDataset creates a new BadgerDB at <path>/<name>.
func (client *Client) CreateDataset(path, name string, shape []int, pixelType g2s.PixelType, summary []byte) (storage.Handle, error) {
	if err := g2s.ValidShape(shape); err != nil {
		return "", err
	}
	if pixelType.BytesPerPixel() == 0 {
		return "", fmt.Errorf("can't create dataset with pixel type %s", pixelType)
	}
	if path == "" {
		path = client.settings.path
	}
	var dir string
	if !client.settings.inMemory {
		if path == "" || name == "" {
			return "", fmt.Errorf("badger datasets need a path and name (got %q, %q)", path, name)
		}
		dir = filepath.Join(path, name)
		if entries, err := os.ReadDir(dir); err == nil && len(entries) > 0 {
			return "", fmt.Errorf("dataset directory %s already exists and is not empty", dir)
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return "", fmt.Errorf("can't make dataset directory at %s: %v", dir, err)
		}
	}
	db, err := client.open(dir, false)
	if err != nil {
		return "", err
	}
	hdr := header{Shape: append([]int(nil), shape...), PixelType: pixelType, Summary: summary}
	if err := putHeader(db, hdr); err != nil {
		db.Close()
		return "", err
	}
	d := newDataset(dir, db, hdr, client.settings, false)
	h := client.add(d)
	g2s.Infof("Created badger dataset %s @ %q with shape %v\n", h, dir, shape)
	return h, nil
}

// LoadDataset opens the BadgerDB dataset at path for reading.
func (client *Client) LoadDataset(path string) (storage.Handle, error) {
	if client.settings.inMemory {
		return "", fmt.Errorf("in-memory badger client can't load dataset %q", path)
	}
	if !g2s.DirExists(path) {
		return "", fmt.Errorf("no dataset directory at %s", path)
	}
	db, err := client.open(path, true)
	if err != nil {
		return "", err
	}
	hdr, found, err := getHeader(db)
	if err != nil {
		db.Close()
		return "", err
	}
	if !found {
		db.Close()
		return "", fmt.Errorf("no g2s dataset found in badger store @ %s", path)
	}
	d := newDataset(path, db, hdr, client.settings, true)
	h := client.add(d)
	g2s.Infof("Loaded badger dataset %s @ %q with shape %v\n", h, path, hdr.Shape)
	return h, nil
}

func (client *Client) open(dir string, readOnly bool) (*badger.DB, error) {
	opts, err := getOptions(dir, client.settings)
	if err != nil {
		return nil, err
	}
	opts.ReadOnly = readOnly
	timedLog := g2s.NewTimeLog()
	db, err := badger.Open(*opts)
	if err != nil {
		return nil, fmt.Errorf("can't open badger @ %q: %v", dir, err)
	}
	timedLog.Debugf("Opened badger @ %q", dir)
	return db, nil
}

func (client *Client) AddImage(h storage.Handle, pixels []byte, coord g2s.DenseCoord, meta []byte) error {
	d, err := client.get(h)
	if err != nil {
		return err
	}
	return d.addImage(pixels, coord, meta)
}

func (client *Client) GetImage(h storage.Handle, coord g2s.DenseCoord) ([]byte, bool, error) {
	d, err := client.get(h)
	if err != nil {
		return nil, false, err
	}
	rec, found, err := d.getRecord(coord)
	if err != nil || !found {
		return nil, found, err
	}
	pixels, _, err := g2s.DeserializeData(rec.Pixels)
	if err != nil {
		return nil, false, fmt.Errorf("image at %s: %v", coord, err)
	}
	return pixels, true, nil
}

func (client *Client) GetImageMeta(h storage.Handle, coord g2s.DenseCoord) ([]byte, bool, error) {
	d, err := client.get(h)
	if err != nil {
		return nil, false, err
	}
	rec, found, err := d.getRecord(coord)
	if err != nil || !found {
		return nil, found, err
	}
	return rec.Meta, true, nil
}

func (client *Client) GetDatasetShape(h storage.Handle) ([]int, error) {
	d, err := client.get(h)
	if err != nil {
		return nil, err
	}
	return append([]int(nil), d.hdr.Shape...), nil
}

func (client *Client) GetDatasetPixelType(h storage.Handle) (g2s.PixelType, error) {
	d, err := client.get(h)
	if err != nil {
		return g2s.PixelUnknown, err
	}
	return d.hdr.PixelType, nil
}

func (client *Client) GetSummaryMeta(h storage.Handle) ([]byte, error) {
	d, err := client.get(h)
	if err != nil {
		return nil, err
	}
	return d.hdr.Summary, nil
}

// CloseDataset drains the write queue, syncs and closes the dataset's BadgerDB.  Any
// write error not yet reported is returned.
func (client *Client) CloseDataset(h storage.Handle) error {
	client.mu.Lock()
	d, found := client.datasets[h]
	delete(client.datasets, h)
	client.mu.Unlock()
	if !found {
		return &storage.UnknownHandleError{Handle: h}
	}
	return d.close()
}

// Close closes all open datasets, returning the first error encountered.
func (client *Client) Close() error {
	client.mu.Lock()
	datasets := client.datasets
	client.datasets = make(map[storage.Handle]*dataset)
	client.mu.Unlock()

	var firstErr error
	for h, d := range datasets {
		if err := d.close(); err != nil {
			g2s.Errorf("Error closing badger dataset %s: %v\n", h, err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}
