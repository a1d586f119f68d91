package qr

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"math"

	"golang.org/x/image/draw"
)

// DataURLPrefix starts every snapshot produced by Canvas.DataURL.
const DataURLPrefix = "data:image/png;base64,"

// Canvas is the painted render target. It is immutable once returned by a
// Renderer, so it can be read from any goroutine.
type Canvas struct {
	img *image.NRGBA
}

// Image returns the painted pixels.
func (c *Canvas) Image() image.Image { return c.img }

// Size is the canvas edge length in pixels.
func (c *Canvas) Size() int { return c.img.Bounds().Dx() }

// EncodePNG writes the canvas as PNG.
func (c *Canvas) EncodePNG(w io.Writer) error {
	if err := png.Encode(w, c.img); err != nil {
		return fmt.Errorf("encoding canvas: %w", err)
	}
	return nil
}

// PNG returns the canvas encoded as PNG bytes.
func (c *Canvas) PNG() ([]byte, error) {
	var buf bytes.Buffer
	if err := c.EncodePNG(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// DataURL exports the canvas as a base64 PNG data URL.
func (c *Canvas) DataURL() (string, error) {
	b, err := c.PNG()
	if err != nil {
		return "", err
	}
	return DataURLPrefix + base64.StdEncoding.EncodeToString(b), nil
}

// paint scales the bare symbol to p.Size with nearest neighbour, keeping
// module edges sharp, then draws the logo centred on top.
func paint(symbol image.Image, p Params) *Canvas {
	dst := image.NewNRGBA(image.Rect(0, 0, p.Size, p.Size))
	draw.Draw(dst, dst.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	draw.NearestNeighbor.Scale(dst, dst.Bounds(), symbol, symbol.Bounds(), draw.Over, nil)

	if p.Logo != nil && p.LogoWidth > 0 && p.LogoHeight > 0 {
		draw.CatmullRom.Scale(dst, logoRect(p), p.Logo, p.Logo.Bounds(), draw.Over, nil)
	}
	return &Canvas{img: dst}
}

func logoRect(p Params) image.Rectangle {
	w := int(math.Max(1, math.Round(p.LogoWidth)))
	h := int(math.Max(1, math.Round(p.LogoHeight)))
	x := int(math.Round((float64(p.Size) - float64(w)) / 2))
	y := int(math.Round((float64(p.Size) - float64(h)) / 2))
	return image.Rect(x, y, x+w, y+h)
}
