package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	bolt "go.etcd.io/bbolt"
)

// JobStatus is the lifecycle state of one album production.
type JobStatus string

const (
	StatusPending    JobStatus = "pending"
	StatusProcessing JobStatus = "processing"
	StatusCompleted  JobStatus = "completed"
	StatusFailed     JobStatus = "failed"
)

// ErrJobNotFound is returned when no record exists for an album.
var ErrJobNotFound = errors.New("job not found")

var bucketJobs = []byte("jobs")

// JobRecord is the last known production state of an album.
type JobRecord struct {
	AlbumID      string    `json:"album_id"`
	Status       JobStatus `json:"status"`
	ErrorKind    string    `json:"error_kind,omitempty"`
	Message      string    `json:"message,omitempty"`
	PagesTotal   int       `json:"pages_total"`
	PagesDone    int       `json:"pages_done"`
	DocumentPath string    `json:"document_path,omitempty"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// History persists job records in BoltDB.
//
// An empty path gives a memory-only history that forgets everything on
// Close, which is what tests and one-off CLI runs use.
type History struct {
	db *bolt.DB
	mu sync.RWMutex
	// Memory-only mode
	mem map[string][]byte
}

// OpenHistory opens (or creates) the job history at path.
func OpenHistory(path string) (*History, error) {
	if path == "" {
		return &History{mem: make(map[string][]byte)}, nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, err
	}
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt db: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketJobs)
		return err
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &History{db: db}, nil
}

// Close releases the database.
func (h *History) Close() error {
	if h.db != nil {
		return h.db.Close()
	}
	return nil
}

// Get returns the record of albumID or ErrJobNotFound.
func (h *History) Get(albumID string) (*JobRecord, error) {
	var data []byte
	if h.db == nil {
		h.mu.RLock()
		data = h.mem[albumID]
		h.mu.RUnlock()
	} else {
		err := h.db.View(func(tx *bolt.Tx) error {
			if v := tx.Bucket(bucketJobs).Get([]byte(albumID)); v != nil {
				data = make([]byte, len(v))
				copy(data, v)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}

	if data == nil {
		return nil, ErrJobNotFound
	}
	var rec JobRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("decode job %s: %w", albumID, err)
	}
	return &rec, nil
}

// Update applies fn to the record of albumID, creating it if needed, and
// stores the result with a fresh UpdatedAt.
func (h *History) Update(albumID string, fn func(rec *JobRecord)) (*JobRecord, error) {
	apply := func(current []byte) ([]byte, *JobRecord, error) {
		rec := &JobRecord{AlbumID: albumID, Status: StatusPending}
		if current != nil {
			if err := json.Unmarshal(current, rec); err != nil {
				return nil, nil, fmt.Errorf("decode job %s: %w", albumID, err)
			}
		}
		fn(rec)
		rec.AlbumID = albumID
		rec.UpdatedAt = time.Now().UTC()
		data, err := json.Marshal(rec)
		return data, rec, err
	}

	if h.db == nil {
		h.mu.Lock()
		defer h.mu.Unlock()
		data, rec, err := apply(h.mem[albumID])
		if err != nil {
			return nil, err
		}
		h.mem[albumID] = data
		return rec, nil
	}

	var out *JobRecord
	err := h.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketJobs)
		data, rec, err := apply(b.Get([]byte(albumID)))
		if err != nil {
			return err
		}
		out = rec
		return b.Put([]byte(albumID), data)
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// List returns every record, most recently updated first.
func (h *History) List() ([]JobRecord, error) {
	var raw [][]byte
	if h.db == nil {
		h.mu.RLock()
		for _, v := range h.mem {
			raw = append(raw, v)
		}
		h.mu.RUnlock()
	} else {
		err := h.db.View(func(tx *bolt.Tx) error {
			return tx.Bucket(bucketJobs).ForEach(func(k, v []byte) error {
				raw = append(raw, append([]byte(nil), v...))
				return nil
			})
		})
		if err != nil {
			return nil, err
		}
	}

	records := make([]JobRecord, 0, len(raw))
	for _, data := range raw {
		var rec JobRecord
		if err := json.Unmarshal(data, &rec); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].UpdatedAt.After(records[j].UpdatedAt)
	})
	return records, nil
}
