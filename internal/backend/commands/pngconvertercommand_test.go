package commands

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/jo-hoe/bgremover/internal/backend/commandstructure"
)

func TestPngConverterCommand_Name(t *testing.T) {
	command, err := NewPngConverterCommand(map[string]any{})
	if err != nil {
		t.Fatalf("Failed to create command: %v", err)
	}

	if command.Name() != "PngConverterCommand" {
		t.Errorf("Expected name 'PngConverterCommand', got '%s'", command.Name())
	}
}

func TestPngConverterCommand_Execute_InvalidImage(t *testing.T) {
	command := NewPngConverterCommandDirect()

	_, err := command.Execute(context.Background(), []byte("not a valid image"))
	if err == nil {
		t.Fatal("Expected error for invalid image data, got nil")
	}
	if !errors.Is(err, ErrDecode) {
		t.Errorf("Expected ErrDecode, got %v", err)
	}
}

func TestPngConverterCommand_Execute_Formats(t *testing.T) {
	source := newGradient(40, 30)

	for _, format := range []string{"png", "jpeg", "bmp", "tiff"} {
		t.Run(format, func(t *testing.T) {
			input := encodeWith(t, format, source)

			result, err := NewPngConverterCommandDirect().Execute(context.Background(), input)
			if err != nil {
				t.Fatalf("Execute failed: %v", err)
			}
			if !hasCorrectPngSignature(result) {
				t.Fatal("Expected PNG output")
			}

			img, err := png.Decode(bytes.NewReader(result))
			if err != nil {
				t.Fatalf("Result is not valid PNG: %v", err)
			}
			if img.Bounds().Dx() != 40 || img.Bounds().Dy() != 30 {
				t.Errorf("Expected 40x30, got %dx%d", img.Bounds().Dx(), img.Bounds().Dy())
			}
		})
	}
}

func TestPngConverterCommand_Execute_PalettedBecomesRGBA(t *testing.T) {
	palette := color.Palette{color.NRGBA{A: 0}, color.NRGBA{R: 255, A: 255}}
	src := image.NewPaletted(image.Rect(0, 0, 4, 4), palette)
	src.SetColorIndex(1, 1, 1)

	result, err := NewPngConverterCommandDirect().Execute(context.Background(), encodeWith(t, "png", src))
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	img, err := png.Decode(bytes.NewReader(result))
	if err != nil {
		t.Fatalf("Result is not valid PNG: %v", err)
	}
	if _, ok := img.(*image.Paletted); ok {
		t.Fatal("Expected paletted input to be expanded to RGBA")
	}
	// Transparency survives the conversion
	if _, _, _, a := img.At(0, 0).RGBA(); a != 0 {
		t.Errorf("Expected transparent pixel at (0,0), got alpha %d", a)
	}
	if r, _, _, a := img.At(1, 1).RGBA(); r != 0xffff || a != 0xffff {
		t.Errorf("Expected opaque red at (1,1), got r=%d a=%d", r, a)
	}
}

func TestPngConverterCommand_Execute_OpaqueInputKeepsAlphaChannel(t *testing.T) {
	source := newGradient(8, 8)

	for _, format := range []string{"jpeg", "bmp", "png"} {
		t.Run(format, func(t *testing.T) {
			result, err := NewPngConverterCommandDirect().Execute(context.Background(), encodeWith(t, format, source))
			if err != nil {
				t.Fatalf("Execute failed: %v", err)
			}
			if colorType := pngColorType(t, result); colorType != 6 {
				t.Errorf("Expected IHDR colour type 6 (RGBA), got %d", colorType)
			}

			img, err := png.Decode(bytes.NewReader(result))
			if err != nil {
				t.Fatalf("Result is not valid PNG: %v", err)
			}
			if _, ok := img.(*image.NRGBA); !ok {
				t.Errorf("Expected decoded *image.NRGBA, got %T", img)
			}
			if _, _, _, a := img.At(3, 3).RGBA(); a != 0xffff {
				t.Errorf("Expected opaque pixel, got alpha %d", a)
			}
		})
	}
}

func TestPngConverterCommand_Execute_NonZeroOrigin(t *testing.T) {
	full := newGradient(20, 20)
	sub := full.SubImage(image.Rect(5, 5, 15, 10))

	result, err := NewPngConverterCommandDirect().Execute(context.Background(), encodeWith(t, "png", sub))
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	cfg, err := png.DecodeConfig(bytes.NewReader(result))
	if err != nil {
		t.Fatalf("DecodeConfig failed: %v", err)
	}
	if cfg.Width != 10 || cfg.Height != 5 {
		t.Errorf("Expected 10x5, got %dx%d", cfg.Width, cfg.Height)
	}
}

func TestPngConverterCommand_RegisteredInDefaultRegistry(t *testing.T) {
	if !commandstructure.DefaultRegistry.IsRegistered("PngConverterCommand") {
		t.Error("Expected PngConverterCommand to be registered in DefaultRegistry")
	}

	command, err := commandstructure.DefaultRegistry.Create("PngConverterCommand", map[string]any{})
	if err != nil {
		t.Fatalf("Failed to create command via registry: %v", err)
	}
	if _, ok := command.(*PngConverterCommand); !ok {
		t.Fatal("Expected command to be *PngConverterCommand")
	}
}

func TestHasCorrectPngSignature(t *testing.T) {
	tests := []struct {
		name     string
		data     []byte
		expected bool
	}{
		{
			name:     "Valid PNG signature",
			data:     []byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A, 0x00},
			expected: true,
		},
		{
			name:     "Invalid signature",
			data:     []byte{0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00},
			expected: false,
		},
		{
			name:     "Too short",
			data:     []byte{0x89, 'P', 'N', 'G'},
			expected: false,
		},
		{
			name:     "JPEG signature",
			data:     []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00, 0x10, 0x4A, 0x46},
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := hasCorrectPngSignature(tt.data)
			if result != tt.expected {
				t.Errorf("Expected %v, got %v", tt.expected, result)
			}
		})
	}
}
