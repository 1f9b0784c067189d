// Package history persists applied registry refreshes in a bbolt file so that
// the refresh log survives restarts.
package history

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	bolt "go.etcd.io/bbolt"

	"toolhub/internal/domain"
)

var ErrStoreClosed = errors.New("refresh history store is closed")

var refreshBucket = []byte("refreshes")

// Entry is one persisted refresh. Sequence increases across restarts while
// Generation restarts from 1 with every process.
type Entry struct {
	Sequence       uint64    `json:"sequence"`
	Generation     uint64    `json:"generation"`
	ETag           string    `json:"etag"`
	Tools          []string  `json:"tools"`
	ProviderErrors []string  `json:"providerErrors,omitempty"`
	SchemaErrors   []string  `json:"schemaErrors,omitempty"`
	Collisions     []string  `json:"collisions,omitempty"`
	StartedAt      time.Time `json:"startedAt"`
	DurationMs     int64     `json:"durationMs"`
	RecordedAt     time.Time `json:"recordedAt"`
}

type Store struct {
	mu     sync.RWMutex
	db     *bolt.DB
	path   string
	keep   int
	closed bool
	clock  func() time.Time
}

// Open opens or creates the history file at path, retaining at most keep entries.
func Open(path string, keep int) (*Store, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return nil, fmt.Errorf("history path is required")
	}
	if keep <= 0 {
		keep = domain.DefaultHistoryKeep
	}
	if err := os.MkdirAll(filepath.Dir(trimmed), 0o755); err != nil {
		return nil, fmt.Errorf("ensure history dir: %w", err)
	}
	db, err := bolt.Open(trimmed, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open history db: %w", err)
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(refreshBucket)
		return err
	}); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init history db: %w", err)
	}
	return &Store{db: db, path: trimmed, keep: keep, clock: time.Now}, nil
}

func (s *Store) Path() string {
	return s.path
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

// Record appends an applied refresh and trims the oldest entries beyond the
// retention limit.
func (s *Store) Record(ctx context.Context, report domain.RefreshReport) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	entry := Entry{
		Generation: report.Generation,
		ETag:       report.ETag,
		Tools:      report.Tools,
		Collisions: report.Collisions,
		StartedAt:  report.StartedAt,
		DurationMs: report.Duration.Milliseconds(),
		RecordedAt: s.clock(),
	}
	for _, err := range report.ProviderErrors {
		entry.ProviderErrors = append(entry.ProviderErrors, err.Error())
	}
	for _, err := range report.SchemaErrors {
		entry.SchemaErrors = append(entry.SchemaErrors, err.Error())
	}

	return s.update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(refreshBucket)
		seq, err := bucket.NextSequence()
		if err != nil {
			return err
		}
		entry.Sequence = seq
		data, err := json.Marshal(entry)
		if err != nil {
			return fmt.Errorf("encode history entry: %w", err)
		}
		if err := bucket.Put(sequenceKey(seq), data); err != nil {
			return err
		}
		return trim(bucket, s.keep)
	})
}

// List returns up to limit entries, newest first. A non-positive limit
// returns every retained entry.
func (s *Store) List(limit int) ([]Entry, error) {
	var entries []Entry
	err := s.view(func(tx *bolt.Tx) error {
		cursor := tx.Bucket(refreshBucket).Cursor()
		for key, value := cursor.Last(); key != nil; key, value = cursor.Prev() {
			if limit > 0 && len(entries) >= limit {
				break
			}
			var entry Entry
			if err := json.Unmarshal(value, &entry); err != nil {
				return fmt.Errorf("decode history entry %d: %w", binary.BigEndian.Uint64(key), err)
			}
			entries = append(entries, entry)
		}
		return nil
	})
	return entries, err
}

// Latest returns the newest entry, if any.
func (s *Store) Latest() (Entry, bool, error) {
	entries, err := s.List(1)
	if err != nil || len(entries) == 0 {
		return Entry{}, false, err
	}
	return entries[0], true, nil
}

func trim(bucket *bolt.Bucket, keep int) error {
	var keys [][]byte
	cursor := bucket.Cursor()
	for key, _ := cursor.First(); key != nil; key, _ = cursor.Next() {
		keys = append(keys, append([]byte(nil), key...))
	}
	if len(keys) <= keep {
		return nil
	}
	for _, key := range keys[:len(keys)-keep] {
		if err := bucket.Delete(key); err != nil {
			return err
		}
	}
	return nil
}

func sequenceKey(seq uint64) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, seq)
	return key
}

func (s *Store) view(fn func(*bolt.Tx) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrStoreClosed
	}
	return s.db.View(fn)
}

func (s *Store) update(fn func(*bolt.Tx) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrStoreClosed
	}
	return s.db.Update(fn)
}
