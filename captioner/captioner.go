// Package captioner implements the image captioning backends. A captioner
// turns a generated image back into text so the language model can compare
// it against the user's original intent.
package captioner

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/vispera/promptloop/internal/httpclient"
	"github.com/vispera/promptloop/utils"
)

// Captioner produces a text caption for an image.
type Captioner interface {
	Name() string
	Caption(ctx context.Context, image []byte) (string, error)
}

// Settings configures a captioner backend instance.
type Settings struct {
	Endpoint string
	APIKey   string
	HTTP     httpclient.Options
}

// Constructor creates a captioner backend.
type Constructor func(settings Settings, logger utils.Logger) Captioner

func knownCaptioners() map[string]Constructor {
	return map[string]Constructor{
		"blip": NewBLIP,
	}
}

// New creates the named captioner backend.
func New(name string, settings Settings, logger utils.Logger) (Captioner, error) {
	constructor, ok := knownCaptioners()[name]
	if !ok {
		return nil, fmt.Errorf("unknown captioner: %s", name)
	}
	return constructor(settings, logger), nil
}

// BLIP posts the image to a BLIP-style caption service and returns the
// caption text.
type BLIP struct {
	endpoint string
	client   *httpclient.Client
	logger   utils.Logger
}

func NewBLIP(settings Settings, logger utils.Logger) Captioner {
	return &BLIP{
		endpoint: strings.TrimRight(settings.Endpoint, "/"),
		client:   httpclient.New(settings.HTTP, logger),
		logger:   logger,
	}
}

func (c *BLIP) Name() string {
	return "blip"
}

func (c *BLIP) Caption(ctx context.Context, image []byte) (string, error) {
	reqBody, err := json.Marshal(map[string]string{
		"image": base64.StdEncoding.EncodeToString(image),
	})
	if err != nil {
		return "", err
	}

	body, err := c.client.PostJSON(ctx, c.endpoint+"/caption", nil, reqBody)
	if err != nil {
		return "", fmt.Errorf("caption request failed: %w", err)
	}

	var response struct {
		Caption string `json:"caption"`
	}
	if err := json.Unmarshal(body, &response); err != nil {
		return "", fmt.Errorf("malformed caption response: %w", err)
	}
	if response.Caption == "" {
		return "", fmt.Errorf("caption service returned an empty caption")
	}

	c.logger.Debug("Image captioned", "caption", response.Caption)
	return response.Caption, nil
}
