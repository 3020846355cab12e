package commands

import (
	"bytes"
	"context"
	"fmt"
	"image/png"
	"log/slog"

	"github.com/jo-hoe/bgremover/internal/backend/commandstructure"
	"github.com/nfnt/resize"
)

// DefaultResampleFilter is used when no "filter" parameter is given
const DefaultResampleFilter = "lanczos3"

var resampleFilters = map[string]resize.InterpolationFunction{
	"nearest":  resize.NearestNeighbor,
	"bilinear": resize.Bilinear,
	"bicubic":  resize.Bicubic,
	"mitchell": resize.MitchellNetravali,
	"lanczos2": resize.Lanczos2,
	"lanczos3": resize.Lanczos3,
}

// FitCommand downscales a PNG so that its longest side does not exceed MaxDimension.
// Images that already fit are returned unchanged. Aspect ratio is preserved.
type FitCommand struct {
	name         string
	maxDimension int
	filter       string
}

// NewFitCommand creates a fit command from configuration parameters.
// "maxDimension" is required and must be positive, "filter" names the resample filter.
func NewFitCommand(params map[string]any) (commandstructure.Command, error) {
	if err := commandstructure.ValidateRequiredParams(params, []string{"maxDimension"}); err != nil {
		return nil, err
	}
	return NewFitCommandWithParams(
		commandstructure.GetIntParam(params, "maxDimension", 0),
		commandstructure.GetStringParam(params, "filter", DefaultResampleFilter),
	)
}

// NewFitCommandWithParams creates a fit command from a concrete maximum dimension and filter name
func NewFitCommandWithParams(maxDimension int, filter string) (*FitCommand, error) {
	if maxDimension <= 0 {
		return nil, fmt.Errorf("maxDimension must be positive, got %d", maxDimension)
	}
	if filter == "" {
		filter = DefaultResampleFilter
	}
	if _, ok := resampleFilters[filter]; !ok {
		return nil, fmt.Errorf("unknown resample filter: %s", filter)
	}
	return &FitCommand{
		name:         "FitCommand",
		maxDimension: maxDimension,
		filter:       filter,
	}, nil
}

// Name returns the command name
func (c *FitCommand) Name() string {
	return c.name
}

func (c *FitCommand) Execute(_ context.Context, imageData []byte) ([]byte, error) {
	cfg, err := png.DecodeConfig(bytes.NewReader(imageData))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	longest := max(cfg.Width, cfg.Height)
	if longest <= c.maxDimension {
		return imageData, nil
	}

	img, err := png.Decode(bytes.NewReader(imageData))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}

	// Thumbnail keeps the aspect ratio within the given bounding box
	limit := uint(c.maxDimension)
	resized := resize.Thumbnail(limit, limit, img, resampleFilters[c.filter])

	slog.Debug("FitCommand: image downscaled",
		"orig_width", cfg.Width,
		"orig_height", cfg.Height,
		"width", resized.Bounds().Dx(),
		"height", resized.Bounds().Dy(),
		"filter", c.filter)

	return encodePNG(toNRGBA(resized))
}

func init() {
	if err := commandstructure.DefaultRegistry.Register("FitCommand", NewFitCommand); err != nil {
		panic(fmt.Sprintf("failed to register FitCommand: %v", err))
	}
}
