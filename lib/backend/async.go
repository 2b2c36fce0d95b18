package backend

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/ValentinKolb/evercookie/lib/objectstore"
	"github.com/lni/dragonboat/v4/logger"
)

var log = logger.GetLogger("backend")

// AsyncOptions configures the async store backend.
type AsyncOptions struct {
	Dir           string // directory of the container file
	Name          string // container name
	Version       int    // container version
	StoreName     string // object store holding the records
	MaxRecoveries int    // container rebuilds per operation before ErrSchemaRecoveryFailed
	// OnRecovery is called before every container rebuild (optional).
	OnRecovery func()
}

// AsyncAdapter is the backend over the versioned object store. Every operation opens the
// container, runs one transaction on the object store and closes the container again.
//
// If the container opens at the expected version but the object store is missing (schema
// drift), the container is closed, deleted and reopened so the upgrade recreates the object
// store. This is repeated at most MaxRecoveries times per operation.
type AsyncAdapter struct {
	opts AsyncOptions

	// mu serializes all operations, a rebuild must not delete a container another
	// operation has open
	mu sync.Mutex
}

// NewAsyncStore creates the async store backend.
func NewAsyncStore(opts AsyncOptions) *AsyncAdapter {
	return &AsyncAdapter{opts: opts}
}

func (a *AsyncAdapter) Kind() Kind { return AsyncStore }

// Write stores value under key unless the object store already holds a value for key. The
// check and the put run in the same read-write transaction.
func (a *AsyncAdapter) Write(ctx context.Context, key, value string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	db, tx, err := a.openStore(ctx, objectstore.ReadWrite)
	if err != nil {
		return err
	}
	defer db.Close()
	defer tx.Rollback()

	_, found, err := tx.Get(ctx, key)
	if err != nil {
		return err
	}
	if found {
		log.Debugf("key %q already present in object store, not overwriting", key)
		return nil
	}

	if err := tx.Put(ctx, key, value); err != nil {
		return err
	}
	return tx.Commit()
}

func (a *AsyncAdapter) Read(ctx context.Context, key string) (string, bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	db, tx, err := a.openStore(ctx, objectstore.ReadOnly)
	if err != nil {
		return "", false, err
	}
	defer db.Close()
	defer tx.Rollback()

	return tx.Get(ctx, key)
}

// Clear deletes the whole container.
func (a *AsyncAdapter) Clear(context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	return objectstore.DeleteDatabase(a.opts.Dir, a.opts.Name)
}

// Repair opens the container and rebuilds it if the object store is missing. It returns nil if
// the object store is usable afterwards.
func (a *AsyncAdapter) Repair(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	db, tx, err := a.openStore(ctx, objectstore.ReadOnly)
	if err != nil {
		return err
	}
	_ = tx.Rollback()
	return db.Close()
}

// openStore opens the container and starts a transaction on the object store, rebuilding the
// container on schema drift (caller holds mu).
func (a *AsyncAdapter) openStore(ctx context.Context, mode objectstore.Mode) (*objectstore.DB, *objectstore.Tx, error) {
	for attempt := 0; ; attempt++ {
		db, err := objectstore.Open(ctx, a.opts.Dir, a.opts.Name, a.opts.Version, a.upgrade)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open container %q: %w", a.opts.Name, err)
		}

		tx, err := db.Transaction(ctx, a.opts.StoreName, mode)
		if err == nil {
			return db, tx, nil
		}
		_ = db.Close()

		if !errors.Is(err, objectstore.ErrNotFound) {
			return nil, nil, err
		}
		if attempt >= a.opts.MaxRecoveries {
			return nil, nil, fmt.Errorf("%w: object store %q still missing after %d rebuilds", ErrSchemaRecoveryFailed, a.opts.StoreName, attempt)
		}

		log.Warningf("object store %q missing in container %q (version %d), rebuilding container",
			a.opts.StoreName, a.opts.Name, a.opts.Version)
		if a.opts.OnRecovery != nil {
			a.opts.OnRecovery()
		}
		if err := objectstore.DeleteDatabase(a.opts.Dir, a.opts.Name); err != nil {
			return nil, nil, err
		}
	}
}

func (a *AsyncAdapter) upgrade(ctx context.Context, u *objectstore.Upgrade, oldVersion, newVersion int) error {
	ok, err := u.HasObjectStore(ctx, a.opts.StoreName)
	if err != nil || ok {
		return err
	}
	log.Debugf("creating object store %q (version %d -> %d)", a.opts.StoreName, oldVersion, newVersion)
	return u.CreateObjectStore(ctx, a.opts.StoreName)
}
