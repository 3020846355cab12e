package frontend

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
	"sync"

	"github.com/srwiley/oksvg"
	"github.com/srwiley/rasterx"
)

const faviconSize = 64

var favicon struct {
	once sync.Once
	data []byte
	err  error
}

func iconSVG() ([]byte, error) {
	return assetsFS.ReadFile("views/icon.svg")
}

// faviconPNG returns the icon rasterized once to a transparent square PNG
func faviconPNG() ([]byte, error) {
	favicon.once.Do(func() {
		svg, err := iconSVG()
		if err != nil {
			favicon.err = err
			return
		}
		favicon.data, favicon.err = renderSVGToPNG(svg, faviconSize)
	})
	return favicon.data, favicon.err
}

func renderSVGToPNG(svgData []byte, size int) ([]byte, error) {
	icon, err := oksvg.ReadIconStream(bytes.NewReader(svgData))
	if err != nil {
		return nil, fmt.Errorf("failed to parse SVG: %w", err)
	}
	icon.SetTarget(0, 0, float64(size), float64(size))

	dst := image.NewNRGBA(image.Rect(0, 0, size, size))
	scanner := rasterx.NewScannerGV(size, size, dst, dst.Bounds())
	dasher := rasterx.NewDasher(size, size, scanner)
	icon.Draw(dasher, 1.0)

	var buf bytes.Buffer
	if err := png.Encode(&buf, dst); err != nil {
		return nil, fmt.Errorf("failed to encode rendered SVG as PNG: %w", err)
	}
	return buf.Bytes(), nil
}
