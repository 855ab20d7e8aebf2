/*
	Package storage defines the contract between a g2s dataset and the image store that
	persists it.  Each storage engine registers itself at init time and hands out a Client
	for a given store configuration:

		import _ "github.com/go2scope/g2s/storage/badger"

		client, err := storage.NewClient(g2s.StoreConfig{Engine: "badger", Config: c})

	Engines address images by dense coordinate only.  Translation from the sparse
	coordinates of acquisition software happens above this level.
*/
package storage

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/blang/semver"
	"github.com/twinj/uuid"

	"github.com/go2scope/g2s/g2s"
)

// Handle is an opaque identifier issued by an engine for one created or loaded dataset.
// The empty Handle denotes no dataset.
type Handle string

// NewHandle returns a fresh random handle.
func NewHandle() Handle {
	return Handle(uuid.NewV4().String())
}

// Client is the interface every storage engine implements.  All methods may block on
// I/O and none are retried; retry policy, if any, belongs to the engine.
type Client interface {
	// CreateDataset creates a dataset named name under path with the given dense shape
	// and returns its handle.  It fails if the location isn't writable, already holds a
	// dataset, or the shape is invalid.
	CreateDataset(path, name string, shape []int, pixelType g2s.PixelType, summary []byte) (Handle, error)

	// LoadDataset opens an existing dataset.  It fails if path holds no recognizable dataset.
	LoadDataset(path string) (Handle, error)

	// AddImage stores an image.  Engines may persist asynchronously; an error from an
	// earlier asynchronous write may surface on a later AddImage or CloseDataset.
	AddImage(h Handle, pixels []byte, coord g2s.DenseCoord, meta []byte) error

	// GetImage returns the pixels at coord.  An image that was never written returns
	// found == false and a nil error.
	GetImage(h Handle, coord g2s.DenseCoord) (pixels []byte, found bool, err error)

	// GetImageMeta returns the per-image metadata document stored with an image.
	GetImageMeta(h Handle, coord g2s.DenseCoord) (meta []byte, found bool, err error)

	// GetDatasetShape returns the dense shape of the dataset.
	GetDatasetShape(h Handle) ([]int, error)

	// GetDatasetPixelType returns the pixel type declared at creation.
	GetDatasetPixelType(h Handle) (g2s.PixelType, error)

	// GetSummaryMeta returns the summary metadata document stored at creation.
	GetSummaryMeta(h Handle) ([]byte, error)

	// CloseDataset flushes pending writes and releases the handle.
	CloseDataset(h Handle) error

	// Close closes every dataset still open on the client.
	Close() error
}

// Engine is a storage engine that can create clients.
type Engine interface {
	GetName() string
	GetDescription() string
	GetSemVer() semver.Version
	String() string

	// NewClient returns a client for the given store configuration.
	NewClient(config g2s.StoreConfig) (Client, error)
}

var (
	enginesMu    sync.RWMutex
	availEngines map[string]Engine
)

// RegisterEngine registers an Engine for use.
func RegisterEngine(e Engine) {
	enginesMu.Lock()
	defer enginesMu.Unlock()
	if availEngines == nil {
		availEngines = map[string]Engine{e.GetName(): e}
	} else {
		availEngines[e.GetName()] = e
	}
}

// GetEngine returns an Engine of the given name or nil if none is registered.
func GetEngine(name string) Engine {
	enginesMu.RLock()
	defer enginesMu.RUnlock()
	if availEngines == nil {
		return nil
	}
	e, found := availEngines[name]
	if !found {
		return nil
	}
	return e
}

// Engines returns the registered engines sorted by name.
func Engines() []Engine {
	enginesMu.RLock()
	defer enginesMu.RUnlock()
	engines := make([]Engine, 0, len(availEngines))
	for _, e := range availEngines {
		engines = append(engines, e)
	}
	sort.Slice(engines, func(i, j int) bool { return engines[i].GetName() < engines[j].GetName() })
	return engines
}

// EnginesAvailable returns a description of the available storage engines.
func EnginesAvailable() string {
	var engines []string
	for _, e := range Engines() {
		engines = append(engines, e.String())
	}
	return strings.Join(engines, "; ")
}

// NewClient returns a client from the engine named in the configuration.
func NewClient(config g2s.StoreConfig) (Client, error) {
	e := GetEngine(config.Engine)
	if e == nil {
		return nil, fmt.Errorf("storage engine %q not available (available: %s)", config.Engine, EnginesAvailable())
	}
	client, err := e.NewClient(config)
	if err != nil {
		return nil, fmt.Errorf("could not create %s client: %v", e, err)
	}
	g2s.Infof("Created storage client from engine %s\n", e)
	return client, nil
}

// UnknownHandleError is returned when a handle was never issued by the client or has
// already been closed.
type UnknownHandleError struct {
	Handle Handle
}

func (e *UnknownHandleError) Error() string {
	return fmt.Sprintf("dataset handle %q is not open", string(e.Handle))
}
