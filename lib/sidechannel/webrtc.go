package sidechannel

import (
	"context"
	"errors"
	"fmt"

	"github.com/ValentinKolb/evercookie/lib/backend"
	"github.com/pion/webrtc/v4"
)

type webrtcCapturer struct {
	config webrtc.Configuration
}

// NewWebRTC creates the WebRTC side channel. Its artifact is the SDP of a local offer with one
// data channel, which carries the host's ICE candidates and fingerprint.
func NewWebRTC() backend.ICapturer {
	return &webrtcCapturer{}
}

func (w *webrtcCapturer) Kind() backend.Kind { return backend.SideChannelWebRTC }

func (w *webrtcCapturer) Capture(ctx context.Context, key, _ string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	pc, err := webrtc.NewPeerConnection(w.config)
	if err != nil {
		return "", errors.Join(backend.ErrAdapterUnavailable, err)
	}
	defer func() {
		if err := pc.Close(); err != nil {
			log.Debugf("closing peer connection for %q: %v", key, err)
		}
	}()

	if _, err := pc.CreateDataChannel("", nil); err != nil {
		return "", fmt.Errorf("create data channel: %w", err)
	}
	offer, err := pc.CreateOffer(nil)
	if err != nil {
		return "", fmt.Errorf("create offer: %w", err)
	}
	if err := pc.SetLocalDescription(offer); err != nil {
		return "", fmt.Errorf("set local description: %w", err)
	}

	// candidates gathered so far are included, gathering is not awaited
	desc := pc.LocalDescription()
	if desc == nil {
		return "", fmt.Errorf("no local description")
	}
	return desc.SDP, nil
}
