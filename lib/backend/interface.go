package backend

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrAdapterUnavailable is returned by a side channel that cannot run in the current host.
	// Callers skip the adapter silently.
	ErrAdapterUnavailable = errors.New("adapter unavailable")
	// ErrSchemaRecoveryFailed is returned by the async store when the object store is still
	// missing after the configured number of container rebuilds.
	ErrSchemaRecoveryFailed = errors.New("schema recovery failed")
	// ErrWriteOnly is returned when a write-only backend (a side channel) is read.
	ErrWriteOnly = errors.New("backend is write-only")
	// ErrInvalidRecord is returned when a key or value cannot be stored by a backend.
	ErrInvalidRecord = errors.New("invalid record")
)

// --------------------------------------------------------------------------
// Kind
// --------------------------------------------------------------------------

// Kind identifies a storage substrate.
type Kind int

const (
	Cookie Kind = iota
	DurableStore
	SessionStore
	AsyncStore
	SideChannelWebRTC
	SideChannelCanvas
)

var kindNames = map[Kind]string{
	Cookie:            "cookie",
	DurableStore:      "durable",
	SessionStore:      "session",
	AsyncStore:        "async",
	SideChannelWebRTC: "webrtc",
	SideChannelCanvas: "canvas",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// SideChannel reports whether the kind is a write-only side channel.
func (k Kind) SideChannel() bool {
	return k == SideChannelWebRTC || k == SideChannelCanvas
}

// ParseKind returns the kind with the given name (case-insensitive).
func ParseKind(s string) (Kind, error) {
	for k, name := range kindNames {
		if strings.EqualFold(s, name) {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown backend: %q", s)
}

// ReadOrder is the fixed reconciliation order of the readable backends.
var ReadOrder = []Kind{Cookie, DurableStore, SessionStore, AsyncStore}

// --------------------------------------------------------------------------
// Interface Definition
// --------------------------------------------------------------------------

// IBackend is a storage substrate that can hold one value per key.
type IBackend interface {
	// Kind returns the substrate this backend writes to.
	Kind() Kind
	// Write stores value under key, replacing what is there.
	Write(ctx context.Context, key, value string) (err error)
	// Read returns the value stored under key. found is false if the key is absent.
	Read(ctx context.Context, key string) (value string, found bool, err error)
	// Clear removes everything from the substrate, as an external clearing would.
	Clear(ctx context.Context) (err error)
}

// ICapturer derives an artifact from a record through a side channel (e.g. a WebRTC offer or a
// rendered image). The artifact is what gets stored; the value itself is never read back from
// it.
type ICapturer interface {
	Kind() Kind
	Capture(ctx context.Context, key, value string) (artifact string, err error)
}

// Result is the outcome of reading one backend.
type Result struct {
	Kind  Kind
	Value string
	Found bool
	Err   error
}

func (r Result) String() string {
	switch {
	case r.Err != nil:
		return fmt.Sprintf("%-8s error: %v", r.Kind, r.Err)
	case !r.Found:
		return fmt.Sprintf("%-8s (absent)", r.Kind)
	default:
		return fmt.Sprintf("%-8s %s", r.Kind, r.Value)
	}
}
