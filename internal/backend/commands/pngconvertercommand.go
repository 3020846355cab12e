package commands

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/draw"
	"image/png"
	"log/slog"

	"github.com/jo-hoe/bgremover/internal/backend/commandstructure"

	_ "image/gif"
	_ "image/jpeg"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// ErrDecode marks input that could not be decoded as an image
var ErrDecode = errors.New("cannot decode image")

// hasCorrectPngSignature checks whether the provided data begins with a valid PNG signature
func hasCorrectPngSignature(data []byte) bool {
	// PNG signature: 0x89 'P' 'N' 'G' 0x0D 0x0A 0x1A 0x0A
	if len(data) < 8 {
		return false
	}
	expected := []byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A}
	return bytes.Equal(data[:8], expected)
}

// PngConverterCommand decodes any supported raster format and re-encodes it as a
// 4-channel (NRGBA) PNG, the canonical payload handed to the segmentation model
type PngConverterCommand struct {
	name string
}

// NewPngConverterCommand creates a new PNG converter command
func NewPngConverterCommand(params map[string]any) (commandstructure.Command, error) {
	return NewPngConverterCommandDirect(), nil
}

// NewPngConverterCommandDirect creates a new PNG converter command directly (no parameters needed)
func NewPngConverterCommandDirect() *PngConverterCommand {
	return &PngConverterCommand{
		name: "PngConverterCommand",
	}
}

// Name returns the command name
func (c *PngConverterCommand) Name() string {
	return c.name
}

// Execute always decodes and re-encodes, also for PNG input. The output is always an
// 8-bit RGBA PNG (colour type 6), even for fully opaque input.
func (c *PngConverterCommand) Execute(_ context.Context, imageData []byte) ([]byte, error) {
	img, currentFormat, err := image.Decode(bytes.NewReader(imageData))
	if err != nil {
		slog.Warn("PngConverterCommand: failed to decode image",
			"input_size_bytes", len(imageData),
			"png_signature", hasCorrectPngSignature(imageData),
			"error", err)
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}

	slog.Debug("PngConverterCommand: decoded raster image",
		"current_format", currentFormat,
		"width", img.Bounds().Dx(),
		"height", img.Bounds().Dy())

	out, err := encodePNG(toNRGBA(img))
	if err != nil {
		return nil, err
	}
	slog.Debug("PngConverterCommand: conversion complete", "output_size_bytes", len(out))
	return out, nil
}

// toNRGBA converts img to non-premultiplied RGBA anchored at the origin
func toNRGBA(img image.Image) *image.NRGBA {
	if nrgba, ok := img.(*image.NRGBA); ok && nrgba.Bounds().Min == (image.Point{}) {
		return nrgba
	}
	b := img.Bounds()
	dst := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
	return dst
}

// alphaNRGBA reports itself as never opaque so that png.Encode keeps the alpha
// channel instead of writing opaque images as RGB
type alphaNRGBA struct {
	*image.NRGBA
}

func (alphaNRGBA) Opaque() bool {
	return false
}

// encodePNG writes img as an 8-bit RGBA PNG
func encodePNG(img *image.NRGBA) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, alphaNRGBA{img}); err != nil {
		slog.Error("PngConverterCommand: failed to encode image to PNG", "error", err)
		return nil, fmt.Errorf("failed to encode image to PNG: %w", err)
	}
	return buf.Bytes(), nil
}

func init() {
	// Register the command in the default registry
	if err := commandstructure.DefaultRegistry.Register("PngConverterCommand", NewPngConverterCommand); err != nil {
		panic(fmt.Sprintf("failed to register PngConverterCommand: %v", err))
	}
}
