package sidechannel

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"image"
	"image/color"
	"image/png"

	"github.com/ValentinKolb/evercookie/lib/backend"
	"github.com/lni/dragonboat/v4/logger"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

var log = logger.GetLogger("sidechannel")

// default size of an HTML canvas
const (
	canvasWidth  = 300
	canvasHeight = 150
	textX, textY = 10, 10
)

type canvasCapturer struct {
	face font.Face
}

// NewCanvas creates the canvas side channel. Its artifact is a PNG data URI of key+value drawn
// onto a blank 300x150 canvas; the exact pixels depend on the font rasterizer.
func NewCanvas() backend.ICapturer {
	return &canvasCapturer{face: basicfont.Face7x13}
}

func (c *canvasCapturer) Kind() backend.Kind { return backend.SideChannelCanvas }

func (c *canvasCapturer) Capture(ctx context.Context, key, value string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	img := image.NewRGBA(image.Rect(0, 0, canvasWidth, canvasHeight))
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(color.Black),
		Face: c.face,
		// the text is positioned by its top edge
		Dot: fixed.P(textX, textY+c.face.Metrics().Ascent.Ceil()),
	}
	d.DrawString(key + value)

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return "", fmt.Errorf("encode canvas: %w", err)
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}
