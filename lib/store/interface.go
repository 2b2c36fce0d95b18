package store

import (
	"fmt"
	"github.com/ValentinKolb/evercookie/lib/db"
)

// --------------------------------------------------------------------------
// Interface Definition
// --------------------------------------------------------------------------

// DBFactory is a function type that creates a new db used by the store.
// This is used to abstract the creation of the db from the store implementation.
type DBFactory func() db.KVDB

// IStore is the interface of a web storage substrate: a flat namespace mapping string keys to
// string values. It mirrors the item operations of the browser Storage API.
// All write operations return only an error (nil on success),
// while read operations return the requested data along with an error (nil on success).
type IStore interface {
	// SetItem inserts or updates a key–value pair.
	SetItem(key, value string) (err error)
	// GetItem returns the value for a key. The boolean return value indicates whether a value for the key was found.
	GetItem(key string) (value string, loaded bool, err error)
	// RemoveItem deletes a key–value pair. Removing a missing key is not an error.
	RemoveItem(key string) (err error)
	// Clear removes all key–value pairs.
	Clear() (err error)
	// Length returns the number of stored items.
	Length() (n int, err error)
	// Close releases the resources held by the store.
	Close() (err error)
}

// --------------------------------------------------------------------------
// Custom Error Type
// --------------------------------------------------------------------------

// Error is a custom error type that wraps a return code (of type RetCode)
// and an error message.
type Error struct {
	Code RetCode // The return code
	Msg  string  // The error message.
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("StoreError (code %s): %s", e.Code, e.Msg)
}

// Is reports whether target is a store error with the same code.
// This allows errors.Is(err, &store.Error{Code: store.RetCQuotaExceeded}).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

// NewError creates a new store error with the given code and message.
func NewError(code RetCode, msg string) *Error {
	return &Error{
		Code: code,
		Msg:  msg,
	}
}

// --------------------------------------------------------------------------
// Return Codes
// --------------------------------------------------------------------------

type RetCode uint64

const (
	RetCSuccess              RetCode = iota // 0: Command executed successfully.
	RetCInternalError                       // 1: Command failed due to an internal error.
	RetCUnsupportedOperation                // 2: Operation is not supported by underlying database.
	RetCQuotaExceeded                       // 3: The write would exceed the configured quota.
	RetCClosed                              // 4: The store has been closed.
)

func (c RetCode) String() string {
	switch c {
	case RetCSuccess:
		return "Success"
	case RetCInternalError:
		return "InternalError"
	case RetCUnsupportedOperation:
		return "UnsupportedOperation"
	case RetCQuotaExceeded:
		return "QuotaExceeded"
	case RetCClosed:
		return "Closed"
	default:
		return "Unknown"
	}
}
