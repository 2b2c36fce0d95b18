// Package pstore implements the durable web storage substrate: a store.IStore whose content
// survives process restarts. It composes an lstore (for quota accounting and feature checks)
// with a snapshot file written by the db's Save method after every mutation. The snapshot is
// replaced atomically, so a crash leaves either the old or the new state on disk.
package pstore
