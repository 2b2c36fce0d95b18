// Package backend adapts every storage substrate to one contract, IBackend: the cookie jar, the
// durable and session web storage, the versioned async object store and the write-only side
// channels.
//
// The async store adapter carries the schema recovery: when the container opens at the
// expected version but its object store is missing, the container is deleted and reopened so
// the upgrade recreates it. Rebuilds are bounded per operation; exhausting them yields
// ErrSchemaRecoveryFailed.
//
// Side channels (ICapturer) never hold the value itself. NewSideChannel stores their artifact
// in a sink backend under "<kind>-<key>", and reading them fails with ErrWriteOnly.
package backend
