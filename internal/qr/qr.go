// Package qr renders QR codes with an optional centred logo onto a fixed
// size canvas and exports that canvas as PNG.
package qr

import (
	"context"
	"errors"
	"fmt"
	"image"
	"strings"
)

// DefaultSize is the output edge length in pixels.
const DefaultSize = 200

// quietZone is the border in modules around the symbol before scaling.
const quietZone = 4

var (
	// ErrEmptyValue is returned when there is nothing to encode.
	ErrEmptyValue = errors.New("qr: empty value")
	// ErrUnknownBackend is returned by New for an unrecognised backend name.
	ErrUnknownBackend = errors.New("qr: unknown backend")
)

// Params is everything a renderer needs for one paint.
type Params struct {
	Value string
	// Logo is drawn centred at LogoWidth x LogoHeight when non-nil.
	Logo       image.Image
	LogoWidth  float64
	LogoHeight float64
	Size       int
	Level      Level
}

// Renderer paints a QR symbol for Params and hands back the canvas.
type Renderer interface {
	Render(ctx context.Context, p Params) (*Canvas, error)
}

// New returns the renderer for a backend name: "yeqown" or "skip2".
func New(backend string) (Renderer, error) {
	switch strings.ToLower(backend) {
	case "", "yeqown":
		return Yeqown{}, nil
	case "skip2":
		return Skip2{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, backend)
	}
}

func (p *Params) normalize() error {
	if p.Value == "" {
		return ErrEmptyValue
	}
	if p.Size <= 0 {
		p.Size = DefaultSize
	}
	if p.Level == "" {
		p.Level = LevelHigh
	}
	return nil
}
