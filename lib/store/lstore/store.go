package lstore

import (
	"fmt"
	"sync"

	"github.com/ValentinKolb/evercookie/lib/db"
	"github.com/ValentinKolb/evercookie/lib/store"
)

// DefaultQuotaBytes is the default storage quota (5 MiB), the common browser limit per origin.
const DefaultQuotaBytes = 5 * 1024 * 1024

// Options configures a local store.
type Options struct {
	// QuotaBytes limits the summed length of all keys and values (0 = DefaultQuotaBytes, <0 = unlimited).
	QuotaBytes int
}

type storeImpl struct {
	db    db.KVDB
	quota int

	// mu serializes writes so the usage counter stays consistent with the db
	mu     sync.Mutex
	usage  int
	closed bool
}

// NewLocalStore creates a new local store instance.
// The store keeps its data only in the db created by the factory, which makes it suitable
// as session storage: it lives exactly as long as the process (or the db) does.
func NewLocalStore(factory store.DBFactory, opts *Options) store.IStore {
	quota := DefaultQuotaBytes
	if opts != nil && opts.QuotaBytes != 0 {
		quota = opts.QuotaBytes
	}

	s := &storeImpl{
		db:    factory(),
		quota: quota,
	}
	// the db may already hold data (e.g. a loaded snapshot)
	s.usage = s.db.SizeBytes()
	return s
}

// --------------------------------------------------------------------------
// Interface Methods (docu see store/interface.go)
// --------------------------------------------------------------------------

func (s *storeImpl) SetItem(key, value string) error {
	if !s.db.SupportsFeature(db.FeatureSet | db.FeatureGet) {
		return store.NewError(store.RetCUnsupportedOperation, "SetItem operation is not supported")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return store.NewError(store.RetCClosed, "store is closed")
	}

	delta := len(key) + len(value)
	if old, ok := s.db.Get(key); ok {
		delta -= len(key) + len(old)
	}
	if s.quota > 0 && s.usage+delta > s.quota {
		return store.NewError(store.RetCQuotaExceeded, fmt.Sprintf("setting %q exceeds the quota of %d bytes", key, s.quota))
	}

	s.db.Set(key, value)
	s.usage += delta
	return nil
}

func (s *storeImpl) GetItem(key string) (string, bool, error) {
	if !s.db.SupportsFeature(db.FeatureGet) {
		return "", false, store.NewError(store.RetCUnsupportedOperation, "GetItem operation is not supported")
	}
	value, ok := s.db.Get(key)
	return value, ok, nil
}

func (s *storeImpl) RemoveItem(key string) error {
	if !s.db.SupportsFeature(db.FeatureDelete | db.FeatureGet) {
		return store.NewError(store.RetCUnsupportedOperation, "RemoveItem operation is not supported")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if old, ok := s.db.Get(key); ok {
		s.db.Delete(key)
		s.usage -= len(key) + len(old)
	}
	return nil
}

func (s *storeImpl) Clear() error {
	if !s.db.SupportsFeature(db.FeatureClear) {
		return store.NewError(store.RetCUnsupportedOperation, "Clear operation is not supported")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.db.Clear()
	s.usage = 0
	return nil
}

func (s *storeImpl) Length() (int, error) {
	return s.db.Len(), nil
}

func (s *storeImpl) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}
