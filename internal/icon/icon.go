// Package icon decodes user-supplied logo images and computes the size they
// are drawn at on top of a QR code.
package icon

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"

	"github.com/disintegration/imaging"
	"github.com/gabriel-vasile/mimetype"
)

// MaxLogoSide bounds the longer axis of a fitted logo.
const MaxLogoSide = 50.0

// DefaultLogoSide is the logo width and height before any icon is chosen.
const DefaultLogoSide = 100.0

// MaxPixels bounds width*height of a raster icon before it is decoded.
const MaxPixels = 4096 * 4096

var (
	// ErrUnsupportedFormat is returned for anything other than PNG, JPEG or SVG.
	ErrUnsupportedFormat = errors.New("icon: unsupported image format")
	// ErrEmptyImage is returned when an image decodes to zero pixels.
	ErrEmptyImage = errors.New("icon: image has no pixels")
	// ErrTooLarge is returned for raster icons over MaxPixels.
	ErrTooLarge = errors.New("icon: image dimensions too large")
)

// Accept is the file picker filter offered to users.
const Accept = "image/png, image/jpeg"

// File is an icon selected by the user.
type File struct {
	Name        string
	ContentType string
	Data        []byte
}

// Sized is a decoded icon together with its fitted logo dimensions.
type Sized struct {
	Image  image.Image
	Width  float64
	Height float64
}

// Decode decodes a PNG, JPEG or SVG icon. JPEG orientation metadata is
// applied so the natural dimensions match what a browser would report.
func Decode(ctx context.Context, data []byte) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var (
		img image.Image
		err error
	)
	mt := mimetype.Detect(data)
	switch {
	case mt.Is("image/png"), mt.Is("image/jpeg"):
		if err := checkDimensions(data); err != nil {
			return nil, err
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		img, err = imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	case mt.Is("image/svg+xml"):
		img, err = decodeSVG(data)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, mt.String())
	}
	if err != nil {
		return nil, fmt.Errorf("decoding %s icon: %w", mt.String(), err)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b := img.Bounds()
	if b.Dx() <= 0 || b.Dy() <= 0 {
		return nil, ErrEmptyImage
	}
	return img, nil
}

// checkDimensions reads only the image header and rejects empty or
// oversized rasters.
func checkDimensions(data []byte) error {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("reading icon header: %w", err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return ErrEmptyImage
	}
	if int64(cfg.Width)*int64(cfg.Height) > MaxPixels {
		return fmt.Errorf("%w: %dx%d", ErrTooLarge, cfg.Width, cfg.Height)
	}
	return nil
}

// UploadType sniffs data and returns its content type when it is one the
// file picker offers, PNG or JPEG.
func UploadType(data []byte) (string, error) {
	mt := mimetype.Detect(data)
	switch {
	case mt.Is("image/png"):
		return "image/png", nil
	case mt.Is("image/jpeg"):
		return "image/jpeg", nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, mt.String())
	}
}

// Fit scales natural pixel dimensions so the longer side equals MaxLogoSide,
// keeping the aspect ratio. Squares take the portrait branch and come out
// at MaxLogoSide on both axes.
func Fit(width, height int) (float64, float64) {
	if width <= 0 || height <= 0 {
		return 0, 0
	}
	w, h := float64(width), float64(height)
	if w > h {
		return MaxLogoSide, MaxLogoSide * (h / w)
	}
	return MaxLogoSide * (w / h), MaxLogoSide
}

// Probe decodes data and fits it. It honours ctx before and after decoding;
// a cancelled probe returns ctx.Err().
func Probe(ctx context.Context, data []byte) (Sized, error) {
	img, err := Decode(ctx, data)
	if err != nil {
		return Sized{}, err
	}
	b := img.Bounds()
	w, h := Fit(b.Dx(), b.Dy())
	return Sized{Image: img, Width: w, Height: h}, nil
}
