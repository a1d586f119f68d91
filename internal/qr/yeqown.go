package qr

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"io"

	"github.com/yeqown/go-qrcode/v2"
	"github.com/yeqown/go-qrcode/writer/standard"
)

// Yeqown renders with github.com/yeqown/go-qrcode.
type Yeqown struct{}

// Render implements Renderer.
func (Yeqown) Render(ctx context.Context, p Params) (*Canvas, error) {
	if err := p.normalize(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	qrc, err := qrcode.NewWith(p.Value, p.Level.yeqownOption())
	if err != nil {
		return nil, fmt.Errorf("encoding qr symbol: %w", err)
	}

	// One pixel per module; paint does the scaling so every backend produces
	// the same canvas geometry.
	capture := &captureEncoder{}
	w := standard.NewWithWriter(nopCloser{io.Discard},
		standard.WithQRWidth(1),
		standard.WithBorderWidth(quietZone),
		standard.WithBgColor(color.White),
		standard.WithFgColor(color.Black),
		standard.WithCustomImageEncoder(capture),
	)
	if err := qrc.Save(w); err != nil {
		return nil, fmt.Errorf("drawing qr symbol: %w", err)
	}
	if capture.img == nil {
		return nil, errors.New("qr: writer produced no image")
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return paint(capture.img, p), nil
}

// captureEncoder keeps the writer's image instead of encoding it.
type captureEncoder struct {
	img image.Image
}

func (c *captureEncoder) Encode(_ io.Writer, img image.Image) error {
	c.img = img
	return nil
}

type nopCloser struct {
	io.Writer
}

func (nopCloser) Close() error { return nil }
