package qr

import (
	"context"
	"fmt"

	skip2 "github.com/skip2/go-qrcode"
)

// Skip2 renders with github.com/skip2/go-qrcode.
type Skip2 struct{}

// Render implements Renderer.
func (Skip2) Render(ctx context.Context, p Params) (*Canvas, error) {
	if err := p.normalize(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	q, err := skip2.New(p.Value, p.Level.skip2())
	if err != nil {
		return nil, fmt.Errorf("encoding qr symbol: %w", err)
	}
	// A negative size means pixels per module; the library adds its own
	// four-module quiet zone.
	symbol := q.Image(-1)

	return paint(symbol, p), nil
}
