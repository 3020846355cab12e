package core

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"image/png"
)

var pngSignature = []byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A}

var errNoAlpha = errors.New("model output has no alpha channel")

// PNG colour types that carry an alpha sample per pixel
const (
	colorTypeGrayAlpha = 4
	colorTypeRGBA      = 6
)

// validateResultPNG checks that data is a decodable PNG with transparency, either
// through an alpha colour type or a tRNS chunk
func validateResultPNG(data []byte) error {
	// signature + IHDR length/type + 13 byte IHDR payload
	if len(data) < 33 || !bytes.Equal(data[:8], pngSignature) || string(data[12:16]) != "IHDR" {
		return errors.New("model output is not a PNG image")
	}
	if _, err := png.Decode(bytes.NewReader(data)); err != nil {
		return fmt.Errorf("model output is not a valid PNG: %w", err)
	}

	switch data[25] {
	case colorTypeGrayAlpha, colorTypeRGBA:
		return nil
	}

	// tRNS must appear before the first IDAT chunk
	for offset := 8; offset+8 <= len(data); {
		length := int(binary.BigEndian.Uint32(data[offset : offset+4]))
		chunk := string(data[offset+4 : offset+8])
		switch chunk {
		case "tRNS":
			return nil
		case "IDAT", "IEND":
			return errNoAlpha
		}
		offset += 12 + length
	}
	return errNoAlpha
}
