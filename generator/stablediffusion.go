package generator

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/vispera/promptloop/internal/httpclient"
	"github.com/vispera/promptloop/utils"
)

// StableDiffusion talks to an AUTOMATIC1111-compatible txt2img endpoint.
type StableDiffusion struct {
	endpoint string
	client   *httpclient.Client
	logger   utils.Logger

	// Generation parameters sent with every request.
	Steps  int
	Width  int
	Height int
}

func NewStableDiffusion(settings Settings, logger utils.Logger) ImageGenerator {
	return &StableDiffusion{
		endpoint: strings.TrimRight(settings.Endpoint, "/"),
		client:   httpclient.New(settings.HTTP, logger),
		logger:   logger,
		Steps:    30,
		Width:    512,
		Height:   512,
	}
}

func (g *StableDiffusion) Name() string {
	return "stablediffusion"
}

func (g *StableDiffusion) Generate(ctx context.Context, prompt string) ([]byte, error) {
	reqBody, err := json.Marshal(map[string]any{
		"prompt": prompt,
		"steps":  g.Steps,
		"width":  g.Width,
		"height": g.Height,
	})
	if err != nil {
		return nil, err
	}

	body, err := g.client.PostJSON(ctx, g.endpoint+"/sdapi/v1/txt2img", nil, reqBody)
	if err != nil {
		return nil, fmt.Errorf("txt2img request failed: %w", err)
	}

	var response struct {
		Images []string `json:"images"`
	}
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, fmt.Errorf("malformed txt2img response: %w", err)
	}
	if len(response.Images) == 0 {
		return nil, fmt.Errorf("txt2img returned no images")
	}

	image, err := base64.StdEncoding.DecodeString(response.Images[0])
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	g.logger.Debug("Image generated", "bytes", len(image), "prompt", prompt)
	return image, nil
}
