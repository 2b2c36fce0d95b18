package lockmgr

import (
	"github.com/ValentinKolb/evercookie/lib/db"
)

// keyPrefix separates lock keys from other keys when the db is shared
const keyPrefix = "lock:"

type lockMgrImpl struct {
	db db.KVDB
}

// NewLockManager creates a lock manager that keeps its locks in the given db.
func NewLockManager(kv db.KVDB) ILockManager {
	return &lockMgrImpl{
		db: kv,
	}
}

func (lm *lockMgrImpl) AcquireLock(key string) (bool, string, error) {
	ownerID, err := generateOwnerID()
	if err != nil {
		return false, "", err
	}

	// only one caller can create the key (atomic CAS operation)
	if !lm.db.SetIfUnset(keyPrefix+key, ownerID) {
		return false, "", nil
	}
	return true, ownerID, nil
}

func (lm *lockMgrImpl) ReleaseLock(key string, ownerID string) (bool, error) {
	value, ok := lm.db.Get(keyPrefix + key)
	if !ok {
		return true, nil
	}

	// the lock belongs to someone else
	if value != ownerID {
		return false, nil
	}

	// nobody else can acquire the key while we hold it, so the delete cannot remove a foreign lock
	lm.db.Delete(keyPrefix + key)
	return true, nil
}
