package pstore

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/ValentinKolb/evercookie/lib/db"
	"github.com/ValentinKolb/evercookie/lib/store"
	"github.com/ValentinKolb/evercookie/lib/store/lstore"
	"github.com/lni/dragonboat/v4/logger"
)

var log = logger.GetLogger("store")

// storeImpl is a durable web storage substrate. It keeps the working set in a db.KVDB (through
// an lstore) and writes a full snapshot of the db to a file after every successful mutation.
type storeImpl struct {
	store.IStore

	db   db.KVDB
	path string
	opts *lstore.Options

	// mu serializes mutations, the snapshot that follows them and a rollback
	mu sync.Mutex
}

// NewPersistentStore opens the durable store at path. An existing snapshot is loaded, a missing
// file starts an empty store. The factory must return a db that supports Save and Load.
func NewPersistentStore(path string, factory store.DBFactory, opts *lstore.Options) (store.IStore, error) {
	kv := factory()
	if !kv.SupportsFeature(db.FeatureSave | db.FeatureLoad) {
		_ = kv.Close()
		return nil, store.NewError(store.RetCUnsupportedOperation, "durable storage requires Save and Load support")
	}

	if err := load(kv, path); err != nil {
		_ = kv.Close()
		return nil, err
	}

	return &storeImpl{
		IStore: lstore.NewLocalStore(func() db.KVDB { return kv }, opts),
		db:     kv,
		path:   path,
		opts:   opts,
	}, nil
}

// load reads the snapshot at path into kv. A missing file is not an error.
func load(kv db.KVDB, path string) error {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to open snapshot: %w", err)
	}
	defer f.Close()

	if err := kv.Load(f); err != nil {
		return fmt.Errorf("failed to load snapshot %s: %w", path, err)
	}
	log.Debugf("loaded %d items from %s", kv.Len(), path)
	return nil
}

// flush writes the current db state to the snapshot file atomically (temp file + rename).
func (s *storeImpl) flush() error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create storage directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() {
		// no-op after a successful rename
		_ = os.Remove(tmpName)
	}()

	if err := s.db.Save(tmp); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to write snapshot: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to sync snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close snapshot: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("failed to replace snapshot: %w", err)
	}
	return nil
}

// mutate runs op and persists the result. If the snapshot cannot be written the db is reset
// to its state before op, so memory never holds what the file does not. Persistence failures
// are reported as internal errors.
func (s *storeImpl) mutate(op func() error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var checkpoint bytes.Buffer
	if err := s.db.Save(&checkpoint); err != nil {
		return store.NewError(store.RetCInternalError, fmt.Sprintf("failed to checkpoint storage: %v", err))
	}

	if err := op(); err != nil {
		return err
	}
	if err := s.flush(); err != nil {
		s.rollback(&checkpoint)
		return store.NewError(store.RetCInternalError, err.Error())
	}
	return nil
}

// rollback restores the db from checkpoint (caller holds mu). The local store is rebuilt so
// its quota usage matches the restored data.
func (s *storeImpl) rollback(checkpoint *bytes.Buffer) {
	if err := s.db.Load(checkpoint); err != nil {
		log.Errorf("failed to roll back %s: %v", s.path, err)
		return
	}
	s.IStore = lstore.NewLocalStore(func() db.KVDB { return s.db }, s.opts)
	log.Warningf("rolled back %s after a failed snapshot", s.path)
}

// --------------------------------------------------------------------------
// Interface Methods (docu see store/interface.go)
// --------------------------------------------------------------------------

func (s *storeImpl) SetItem(key, value string) error {
	return s.mutate(func() error { return s.IStore.SetItem(key, value) })
}

func (s *storeImpl) RemoveItem(key string) error {
	return s.mutate(func() error { return s.IStore.RemoveItem(key) })
}

func (s *storeImpl) Clear() error {
	return s.mutate(func() error { return s.IStore.Clear() })
}

func (s *storeImpl) GetItem(key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.IStore.GetItem(key)
}

func (s *storeImpl) Length() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.IStore.Length()
}

func (s *storeImpl) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.IStore.Close()
}
