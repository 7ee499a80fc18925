// Package generator implements the image generation backends for the
// refinement pipeline. Each backend turns a text prompt into PNG bytes; the
// backend is selected once at startup from configuration.
package generator

import (
	"context"
	"fmt"

	"github.com/vispera/promptloop/internal/httpclient"
	"github.com/vispera/promptloop/utils"
)

// ImageGenerator turns a text prompt into a PNG image.
type ImageGenerator interface {
	Name() string
	Generate(ctx context.Context, prompt string) ([]byte, error)
}

// Settings configures a backend instance.
type Settings struct {
	Endpoint string
	APIKey   string
	HTTP     httpclient.Options
}

// Constructor creates a generator backend.
type Constructor func(settings Settings, logger utils.Logger) ImageGenerator

func knownGenerators() map[string]Constructor {
	return map[string]Constructor{
		"stablediffusion": NewStableDiffusion,
		"openai":          NewOpenAIImages,
	}
}

// New creates the named generator backend. Unknown names are a configuration
// error reported before any cycle runs.
func New(name string, settings Settings, logger utils.Logger) (ImageGenerator, error) {
	constructor, ok := knownGenerators()[name]
	if !ok {
		return nil, fmt.Errorf("unknown image generator: %s", name)
	}
	return constructor(settings, logger), nil
}
