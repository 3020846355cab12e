package commandstructure

import "context"

// Command is one step of the image preparation pipeline that runs before the
// segmentation model is invoked
type Command interface {
	Name() string
	Execute(ctx context.Context, imageData []byte) ([]byte, error)
}

// CommandFactory is a function type that creates a command from configuration parameters
type CommandFactory func(params map[string]any) (Command, error)

// CommandConfig represents a command configuration with name and parameters
type CommandConfig struct {
	Name   string
	Params map[string]any
}
