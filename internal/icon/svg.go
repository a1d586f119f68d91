package icon

import (
	"bytes"
	"image"
	"math"

	"github.com/srwiley/oksvg"
	"github.com/srwiley/rasterx"
)

// maxSVGSide caps the raster size of an SVG icon whose viewBox is huge.
const maxSVGSide = 1024

// decodeSVG rasterizes an SVG at its viewBox size, so the viewBox plays the
// role of natural dimensions.
func decodeSVG(data []byte) (image.Image, error) {
	svg, err := oksvg.ReadIconStream(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}

	w, h := svg.ViewBox.W, svg.ViewBox.H
	if w <= 0 || h <= 0 {
		return nil, ErrEmptyImage
	}
	if longest := math.Max(w, h); longest > maxSVGSide {
		scale := maxSVGSide / longest
		w, h = w*scale, h*scale
	}
	iw, ih := int(math.Ceil(w)), int(math.Ceil(h))

	svg.SetTarget(0, 0, float64(iw), float64(ih))
	img := image.NewRGBA(image.Rect(0, 0, iw, ih))
	scanner := rasterx.NewScannerGV(iw, ih, img, img.Bounds())
	raster := rasterx.NewDasher(iw, ih, scanner)
	svg.Draw(raster, 1.0)

	return img, nil
}
