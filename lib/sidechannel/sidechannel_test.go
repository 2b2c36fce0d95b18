package sidechannel

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"image"
	"image/png"
	"strings"
	"testing"

	"github.com/ValentinKolb/evercookie/lib/backend"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeCanvas(t *testing.T, artifact string) image.Image {
	const prefix = "data:image/png;base64,"
	require.True(t, strings.HasPrefix(artifact, prefix))
	raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(artifact, prefix))
	require.NoError(t, err)
	img, err := png.Decode(bytes.NewReader(raw))
	require.NoError(t, err)
	return img
}

func TestCanvas(t *testing.T) {
	c := NewCanvas()
	assert.Equal(t, backend.SideChannelCanvas, c.Kind())

	artifact, err := c.Capture(context.Background(), "id", "abc123")
	require.NoError(t, err)

	img := decodeCanvas(t, artifact)
	assert.Equal(t, image.Rect(0, 0, 300, 150), img.Bounds())

	// some pixels near the text origin are drawn
	drawn := 0
	for y := 10; y < 30; y++ {
		for x := 10; x < 100; x++ {
			if _, _, _, a := img.At(x, y).RGBA(); a != 0 {
				drawn++
			}
		}
	}
	assert.Positive(t, drawn)
}

func TestCanvasIsDeterministic(t *testing.T) {
	c := NewCanvas()
	a, err := c.Capture(context.Background(), "id", "abc123")
	require.NoError(t, err)
	b, err := c.Capture(context.Background(), "id", "abc123")
	require.NoError(t, err)
	other, err := c.Capture(context.Background(), "id", "def456")
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, other)
}

func TestCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewCanvas().Capture(ctx, "id", "abc123")
	assert.ErrorIs(t, err, context.Canceled)
	_, err = NewWebRTC().Capture(ctx, "id", "abc123")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestWebRTC(t *testing.T) {
	w := NewWebRTC()
	assert.Equal(t, backend.SideChannelWebRTC, w.Kind())

	sdp, err := w.Capture(context.Background(), "id", "abc123")
	if errors.Is(err, backend.ErrAdapterUnavailable) {
		t.Skipf("webrtc unavailable: %v", err)
	}
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(sdp, "v=0"))
	assert.Contains(t, sdp, "m=application")
	assert.NotContains(t, sdp, "abc123")
}
