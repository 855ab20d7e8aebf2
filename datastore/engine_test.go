package datastore

import (
	"fmt"
	"sync"

	"github.com/go2scope/g2s/g2s"
	"github.com/go2scope/g2s/storage"
)

// memClient is a storage.Client that holds datasets in memory.  With deferVisible set
// it behaves like an asynchronous engine: added images are not readable until flush.
type memClient struct {
	mu           sync.Mutex
	datasets     map[storage.Handle]*memDataset
	saved        map[string]*memDataset
	deferVisible bool

	failAdd    error
	failCreate error
	failClose  error

	gets int
}

type memDataset struct {
	shape     []int
	pixelType g2s.PixelType
	summary   []byte
	images    map[string][]byte
	metas     map[string][]byte
	pending   map[string][]byte
}

func newMemClient() *memClient {
	return &memClient{
		datasets: make(map[storage.Handle]*memDataset),
		saved:    make(map[string]*memDataset),
	}
}

func (m *memClient) dataset(h storage.Handle) (*memDataset, error) {
	d, found := m.datasets[h]
	if !found {
		return nil, &storage.UnknownHandleError{Handle: h}
	}
	return d, nil
}

func (m *memClient) CreateDataset(path, name string, shape []int, pixelType g2s.PixelType, summary []byte) (storage.Handle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failCreate != nil {
		return "", m.failCreate
	}
	if err := g2s.ValidShape(shape); err != nil {
		return "", err
	}
	d := &memDataset{
		shape:     append([]int(nil), shape...),
		pixelType: pixelType,
		summary:   summary,
		images:    make(map[string][]byte),
		metas:     make(map[string][]byte),
		pending:   make(map[string][]byte),
	}
	h := storage.NewHandle()
	m.datasets[h] = d
	m.saved[path+"/"+name] = d
	return h, nil
}

func (m *memClient) LoadDataset(path string) (storage.Handle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, found := m.saved[path]
	if !found {
		return "", fmt.Errorf("no dataset at %q", path)
	}
	h := storage.NewHandle()
	m.datasets[h] = d
	return h, nil
}

func (m *memClient) AddImage(h storage.Handle, pixels []byte, coord g2s.DenseCoord, meta []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failAdd != nil {
		return m.failAdd
	}
	d, err := m.dataset(h)
	if err != nil {
		return err
	}
	if err := g2s.CheckShape(coord, d.shape); err != nil {
		return err
	}
	key := coord.Key()
	d.metas[key] = meta
	if m.deferVisible {
		d.pending[key] = pixels
	} else {
		d.images[key] = pixels
	}
	return nil
}

// flush makes deferred images readable.
func (m *memClient) flush() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, d := range m.datasets {
		for k, v := range d.pending {
			d.images[k] = v
		}
		d.pending = make(map[string][]byte)
	}
}

func (m *memClient) GetImage(h storage.Handle, coord g2s.DenseCoord) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gets++
	d, err := m.dataset(h)
	if err != nil {
		return nil, false, err
	}
	pixels, found := d.images[coord.Key()]
	return pixels, found, nil
}

func (m *memClient) GetImageMeta(h storage.Handle, coord g2s.DenseCoord) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, err := m.dataset(h)
	if err != nil {
		return nil, false, err
	}
	if _, found := d.images[coord.Key()]; !found {
		return nil, false, nil
	}
	return d.metas[coord.Key()], true, nil
}

func (m *memClient) GetDatasetShape(h storage.Handle) ([]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, err := m.dataset(h)
	if err != nil {
		return nil, err
	}
	return append([]int(nil), d.shape...), nil
}

func (m *memClient) GetDatasetPixelType(h storage.Handle) (g2s.PixelType, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, err := m.dataset(h)
	if err != nil {
		return g2s.PixelUnknown, err
	}
	return d.pixelType, nil
}

func (m *memClient) GetSummaryMeta(h storage.Handle) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, err := m.dataset(h)
	if err != nil {
		return nil, err
	}
	return d.summary, nil
}

func (m *memClient) CloseDataset(h storage.Handle) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, err := m.dataset(h); err != nil {
		return err
	}
	delete(m.datasets, h)
	return m.failClose
}

func (m *memClient) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.datasets = make(map[storage.Handle]*memDataset)
	return nil
}

func (m *memClient) engineGets() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.gets
}
