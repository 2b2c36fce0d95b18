package backend

import (
	"context"
	"fmt"
)

type sideChannelBackend struct {
	capturer ICapturer
	sink     IBackend
}

// NewSideChannel creates a write-only backend that stores the artifact captured by c in sink
// under the derived key "<kind>-<key>" (e.g. "webrtc-id").
func NewSideChannel(c ICapturer, sink IBackend) IBackend {
	return &sideChannelBackend{capturer: c, sink: sink}
}

// SideChannelKey returns the key the artifact of a side channel is stored under.
func SideChannelKey(kind Kind, key string) string {
	return kind.String() + "-" + key
}

func (s *sideChannelBackend) Kind() Kind { return s.capturer.Kind() }

func (s *sideChannelBackend) Write(ctx context.Context, key, value string) error {
	artifact, err := s.capturer.Capture(ctx, key, value)
	if err != nil {
		return err
	}
	if err := s.sink.Write(ctx, SideChannelKey(s.Kind(), key), artifact); err != nil {
		return fmt.Errorf("failed to store %s artifact: %w", s.Kind(), err)
	}
	return nil
}

func (s *sideChannelBackend) Read(context.Context, string) (string, bool, error) {
	return "", false, ErrWriteOnly
}

// Clear is a no-op: the artifacts live in the sink and are cleared with it.
func (s *sideChannelBackend) Clear(context.Context) error {
	return nil
}
