// Package rowset keeps the most recent measurement rows for each dataset in
// memory. A dataset is identified by its operating area and forecast model.
// Each mutation bumps the dataset's version, which downstream product caches
// use for invalidation.
package rowset

import (
	"sort"
	"sync"
	"time"

	"github.com/couchcryptid/ocean-map-engine/internal/domain"
	"github.com/couchcryptid/ocean-map-engine/internal/observability"
)

// DefaultRowCap bounds how many rows a single dataset retains. When an append
// pushes a dataset past the cap, the oldest rows are dropped.
const DefaultRowCap = 10000

// Key identifies a dataset by area and model.
type Key struct {
	Area  string
	Model string
}

func (k Key) String() string {
	return k.Area + "|" + k.Model
}

// Snapshot is a point-in-time copy of a dataset. Rows is a fresh slice on
// every read; callers must treat the row maps themselves as read-only.
type Snapshot struct {
	Key       Key
	Version   uint64
	Rows      []domain.Row
	UpdatedAt time.Time
}

// Info describes a resident dataset without carrying its rows.
type Info struct {
	Area      string    `json:"area"`
	Model     string    `json:"model"`
	Version   uint64    `json:"version"`
	RowCount  int       `json:"row_count"`
	UpdatedAt time.Time `json:"updated_at"`
}

type dataset struct {
	rows      []domain.Row
	version   uint64
	updatedAt time.Time
}

// Store is a thread-safe in-memory dataset store.
type Store struct {
	mu       sync.RWMutex
	datasets map[Key]*dataset
	rowCap   int
	metrics  *observability.Metrics
}

// New creates a Store. A rowCap of zero or less falls back to DefaultRowCap.
func New(rowCap int, metrics *observability.Metrics) *Store {
	if rowCap <= 0 {
		rowCap = DefaultRowCap
	}
	return &Store{
		datasets: make(map[Key]*dataset),
		rowCap:   rowCap,
		metrics:  metrics,
	}
}

// Append adds rows to a dataset, creating it if absent, and returns the new
// version. Rows beyond the cap are evicted oldest-first.
func (s *Store) Append(key Key, rows []domain.Row) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	ds, ok := s.datasets[key]
	if !ok {
		ds = &dataset{}
		s.datasets[key] = ds
		s.metrics.DatasetsResident.Set(float64(len(s.datasets)))
	}

	ds.rows = append(ds.rows, rows...)
	if over := len(ds.rows) - s.rowCap; over > 0 {
		ds.rows = append([]domain.Row(nil), ds.rows[over:]...)
	}
	ds.version++
	ds.updatedAt = time.Now().UTC()
	return ds.version
}

// Replace swaps a dataset's rows wholesale and returns the new version. The
// cap applies here too, keeping the newest rows.
func (s *Store) Replace(key Key, rows []domain.Row) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	ds, ok := s.datasets[key]
	if !ok {
		ds = &dataset{}
		s.datasets[key] = ds
		s.metrics.DatasetsResident.Set(float64(len(s.datasets)))
	}

	if len(rows) > s.rowCap {
		rows = rows[len(rows)-s.rowCap:]
	}
	ds.rows = append([]domain.Row(nil), rows...)
	ds.version++
	ds.updatedAt = time.Now().UTC()
	return ds.version
}

// Get returns a snapshot of the dataset, or false if it is not resident.
func (s *Store) Get(key Key) (Snapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ds, ok := s.datasets[key]
	if !ok {
		return Snapshot{}, false
	}
	return Snapshot{
		Key:       key,
		Version:   ds.version,
		Rows:      append([]domain.Row(nil), ds.rows...),
		UpdatedAt: ds.updatedAt,
	}, true
}

// List returns metadata for every resident dataset, sorted by area then model.
func (s *Store) List() []Info {
	s.mu.RLock()
	defer s.mu.RUnlock()

	infos := make([]Info, 0, len(s.datasets))
	for key, ds := range s.datasets {
		infos = append(infos, Info{
			Area:      key.Area,
			Model:     key.Model,
			Version:   ds.version,
			RowCount:  len(ds.rows),
			UpdatedAt: ds.updatedAt,
		})
	}
	sort.Slice(infos, func(i, j int) bool {
		if infos[i].Area != infos[j].Area {
			return infos[i].Area < infos[j].Area
		}
		return infos[i].Model < infos[j].Model
	})
	return infos
}
