package backend

import (
	"context"

	"github.com/ValentinKolb/evercookie/lib/store"
)

type storageBackend struct {
	kind  Kind
	store store.IStore
}

// NewDurable creates the durable web storage backend over s.
func NewDurable(s store.IStore) IBackend {
	return &storageBackend{kind: DurableStore, store: s}
}

// NewSession creates the session web storage backend over s.
func NewSession(s store.IStore) IBackend {
	return &storageBackend{kind: SessionStore, store: s}
}

func (b *storageBackend) Kind() Kind { return b.kind }

func (b *storageBackend) Write(_ context.Context, key, value string) error {
	return b.store.SetItem(key, value)
}

func (b *storageBackend) Read(_ context.Context, key string) (string, bool, error) {
	return b.store.GetItem(key)
}

func (b *storageBackend) Clear(context.Context) error {
	return b.store.Clear()
}
