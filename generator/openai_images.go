package generator

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/vispera/promptloop/internal/httpclient"
	"github.com/vispera/promptloop/utils"
)

const openaiImagesEndpoint = "https://api.openai.com/v1/images/generations"

// OpenAIImages generates images through the OpenAI Images API.
type OpenAIImages struct {
	endpoint string
	apiKey   string
	client   *httpclient.Client
	logger   utils.Logger

	Model string
	Size  string
}

func NewOpenAIImages(settings Settings, logger utils.Logger) ImageGenerator {
	endpoint := settings.Endpoint
	if endpoint == "" {
		endpoint = openaiImagesEndpoint
	}
	return &OpenAIImages{
		endpoint: endpoint,
		apiKey:   settings.APIKey,
		client:   httpclient.New(settings.HTTP, logger),
		logger:   logger,
		Model:    "dall-e-3",
		Size:     "1024x1024",
	}
}

func (g *OpenAIImages) Name() string {
	return "openai"
}

func (g *OpenAIImages) Generate(ctx context.Context, prompt string) ([]byte, error) {
	reqBody, err := json.Marshal(map[string]any{
		"model":           g.Model,
		"prompt":          prompt,
		"n":               1,
		"size":            g.Size,
		"response_format": "b64_json",
	})
	if err != nil {
		return nil, err
	}

	headers := map[string]string{"Authorization": "Bearer " + g.apiKey}
	body, err := g.client.PostJSON(ctx, g.endpoint, headers, reqBody)
	if err != nil {
		return nil, fmt.Errorf("image generation request failed: %w", err)
	}

	var response struct {
		Data []struct {
			B64JSON string `json:"b64_json"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, fmt.Errorf("malformed image response: %w", err)
	}
	if len(response.Data) == 0 {
		return nil, fmt.Errorf("image API returned no images")
	}

	image, err := base64.StdEncoding.DecodeString(response.Data[0].B64JSON)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	g.logger.Debug("Image generated", "bytes", len(image), "prompt", prompt)
	return image, nil
}
