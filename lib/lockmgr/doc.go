// Package lockmgr implements non-blocking, owner-checked locks on top of a db.KVDB. The
// evercookie client uses it as the in-flight guard of Set: the lock for a key is held from the
// existence probe until all writes for that key have finished.
//
// The lock manager only ever stores in the provided db and has no other internal state.
// Therefore it is safe to be created multiple times on the same db. As long as the same db is
// used every time, all locks work as expected.
//
// Implementation Approach:
//
//	- Lock Acquisition: Attempts to create the key using SetIfUnset, which guarantees that
//	  only one requester can successfully create the key. The value is a randomly generated
//	  owner ID that identifies the lock holder.
//
//	- Safe Release: ReleaseLock first verifies that the requester is the legitimate owner of the
//	  lock by comparing owner IDs before deleting the key.
//
// Locks do not expire. A holder that never releases keeps the key locked for the lifetime of
// the db.
//
// Usage Example:
//
//	locks := lockmgr.NewLockManager(maple.NewMapleDB(nil))
//
//	acquired, ownerID, err := locks.AcquireLock("id")
//	if err != nil {
//	    // Handle error
//	}
//
//	if acquired {
//	    // ...
//	    _, _ = locks.ReleaseLock("id", ownerID)
//	}
package lockmgr
