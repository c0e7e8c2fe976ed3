// Package localstore is the client's durable key-value state. Values are
// JSON documents kept in badger with a write-through in-memory cache.
package localstore

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"
)

const keyPrefix = "watchparty:"

var ErrClosed = errors.New("local store is closed")

type Store struct {
	db     *badger.DB
	ownsDB bool
	closed bool
	logger *slog.Logger

	mu    sync.RWMutex
	cache map[string][]byte
}

// Open opens a store in dir. An empty dir keeps everything in memory.
func Open(dir string, logger *slog.Logger) (*Store, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	if dir == "" {
		opts = opts.WithInMemory(true)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}

	s := New(db, logger)
	s.ownsDB = true

	return s, nil
}

// New wraps an already opened database. Close does not close db.
func New(db *badger.DB, logger *slog.Logger) *Store {
	return &Store{
		db:     db,
		logger: logger,
		cache:  make(map[string][]byte),
	}
}

// Close is safe to call more than once.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.ownsDB || s.closed {
		return nil
	}
	s.closed = true

	return s.db.Close()
}

// Set stores value under key.
func (s *Store) Set(key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", key, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	if err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(keyPrefix+key), data)
	}); err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	s.cache[key] = data

	return nil
}

func (s *Store) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.cache, key)
	if s.closed {
		return ErrClosed
	}
	if err := s.db.Update(func(txn *badger.Txn) error {
		err := txn.Delete([]byte(keyPrefix + key))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		return err
	}); err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}

	return nil
}

// raw returns the stored document for key, reading through to badger on a
// cache miss.
func (s *Store) raw(key string) ([]byte, bool) {
	s.mu.RLock()
	data, ok := s.cache[key]
	closed := s.closed
	s.mu.RUnlock()
	if ok {
		return data, true
	}
	if closed {
		return nil, false
	}

	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(keyPrefix + key))
		if err != nil {
			return err
		}

		data, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		if !errors.Is(err, badger.ErrKeyNotFound) {
			s.logger.Warn("failed to read local state", "key", key, "error", err)
		}
		return nil, false
	}

	s.mu.Lock()
	s.cache[key] = data
	s.mu.Unlock()

	return data, true
}

// Get decodes the value stored under key. Missing or undecodable values
// yield def.
func Get[T any](s *Store, key string, def T) T {
	data, ok := s.raw(key)
	if !ok {
		return def
	}

	var value T
	if err := json.Unmarshal(data, &value); err != nil {
		s.logger.Warn("discarding corrupt local state", "key", key, "error", err)
		return def
	}

	return value
}
