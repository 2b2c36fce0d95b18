package lockmgr

// ILockManager defines the interface for a lock provider.
type ILockManager interface {
	// AcquireLock tries to acquire the lock for the given key without blocking.
	// Returns a boolean indicating whether the lock was acquired, the owner ID needed to release it,
	// and an error if any.
	AcquireLock(key string) (ok bool, ownerID string, err error)

	// ReleaseLock releases the lock for the given key.
	// Returns a boolean indicating whether the lock was released, and an error if any.
	// The method also returns true if the lock did not exist.
	ReleaseLock(key string, ownerID string) (ok bool, err error)
}
