package segmentation

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
)

const defaultCommand = "rembg"

var defaultArgs = []string{"i", "-", "-"}

// CommandSegmenter runs an executable that reads the image on stdin and writes
// the result to stdout, `rembg i - -` by default
type CommandSegmenter struct {
	name string
	args []string
}

// NewCommandSegmenter creates a command based segmenter. An empty name selects
// rembg with its default arguments.
func NewCommandSegmenter(name string, args []string) *CommandSegmenter {
	if name == "" {
		name = defaultCommand
		if len(args) == 0 {
			args = defaultArgs
		}
	}
	return &CommandSegmenter{name: name, args: args}
}

func newCommandSegmenterFromConfig(cfg Config) (Segmenter, error) {
	return NewCommandSegmenter(cfg.Command, cfg.Args), nil
}

func (s *CommandSegmenter) Remove(ctx context.Context, png []byte) ([]byte, error) {
	cmd := exec.CommandContext(ctx, s.name, s.args...)
	cmd.Stdin = bytes.NewReader(png)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("%s interrupted: %w", s.name, ctxErr)
		}
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			return nil, fmt.Errorf("%s failed: %w", s.name, err)
		}
		return nil, fmt.Errorf("%s failed: %w: %s", s.name, err, msg)
	}

	if stdout.Len() == 0 {
		return nil, errors.New(s.name + " produced no output")
	}

	slog.Debug("segmentation: command finished",
		"command", s.name,
		"input_size_bytes", len(png),
		"output_size_bytes", stdout.Len())

	return stdout.Bytes(), nil
}
