// Package encoder wraps a CLIP-style multimodal embedding service. Images
// and text are encoded into fixed-length feature vectors which are unit
// L2-normalized locally, so cosine similarity reduces to a dot product.
package encoder

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/vispera/promptloop/internal/httpclient"
	"github.com/vispera/promptloop/utils"
)

// Settings configures the embedding service client.
type Settings struct {
	Endpoint string
	Model    string
	HTTP     httpclient.Options
}

// Encoder is the embedding service client shared by similarity judging and
// the evaluation harness.
type Encoder struct {
	endpoint string
	model    string
	client   *httpclient.Client
	logger   utils.Logger
}

func New(settings Settings, logger utils.Logger) *Encoder {
	return &Encoder{
		endpoint: strings.TrimRight(settings.Endpoint, "/"),
		model:    settings.Model,
		client:   httpclient.New(settings.HTTP, logger),
		logger:   logger,
	}
}

// EncodeImages encodes a batch of images in a single call and returns one
// unit-normalized vector per image, in input order. A count mismatch between
// request and response is an error: scores downstream are aligned by index,
// so a silently shifted vector would corrupt every row for the batch.
func (e *Encoder) EncodeImages(ctx context.Context, images [][]byte) ([][]float32, error) {
	if len(images) == 0 {
		return nil, fmt.Errorf("no images to encode")
	}

	encoded := make([]string, len(images))
	for i, img := range images {
		if len(img) == 0 {
			return nil, fmt.Errorf("image %d is empty", i)
		}
		encoded[i] = base64.StdEncoding.EncodeToString(img)
	}

	reqBody, err := json.Marshal(map[string]any{
		"model":  e.model,
		"images": encoded,
	})
	if err != nil {
		return nil, err
	}

	body, err := e.client.PostJSON(ctx, e.endpoint+"/encode/images", nil, reqBody)
	if err != nil {
		return nil, fmt.Errorf("image encoding request failed: %w", err)
	}

	var response struct {
		Embeddings [][]float32 `json:"embeddings"`
	}
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, fmt.Errorf("malformed embedding response: %w", err)
	}
	if len(response.Embeddings) != len(images) {
		return nil, fmt.Errorf("embedding count mismatch: sent %d images, got %d vectors",
			len(images), len(response.Embeddings))
	}

	for i := range response.Embeddings {
		Normalize(response.Embeddings[i])
	}
	return response.Embeddings, nil
}

// EncodeText encodes a single text string into a unit-normalized vector.
func (e *Encoder) EncodeText(ctx context.Context, text string) ([]float32, error) {
	reqBody, err := json.Marshal(map[string]any{
		"model": e.model,
		"text":  text,
	})
	if err != nil {
		return nil, err
	}

	body, err := e.client.PostJSON(ctx, e.endpoint+"/encode/text", nil, reqBody)
	if err != nil {
		return nil, fmt.Errorf("text encoding request failed: %w", err)
	}

	var response struct {
		Embedding []float32 `json:"embedding"`
	}
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, fmt.Errorf("malformed embedding response: %w", err)
	}
	if len(response.Embedding) == 0 {
		return nil, fmt.Errorf("embedding service returned an empty vector")
	}

	Normalize(response.Embedding)
	return response.Embedding, nil
}

// Normalize scales v to unit L2 norm in place. The zero vector is left
// unchanged.
func Normalize(v []float32) {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return
	}
	norm := float32(math.Sqrt(sum))
	for i := range v {
		v[i] /= norm
	}
}

// Cosine returns the cosine similarity of two vectors. For unit-normalized
// inputs this is the plain dot product. Mismatched lengths yield 0 rather
// than a partial dot product.
func Cosine(a, b []float32) float32 {
	if len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(normA) * math.Sqrt(normB)))
}
