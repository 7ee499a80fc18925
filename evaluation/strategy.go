package evaluation

import (
	"context"
	"fmt"

	"github.com/vispera/promptloop/encoder"
)

// ImageEncoder is the narrow contract the harness needs from the embedding
// encoder.
type ImageEncoder interface {
	EncodeImages(ctx context.Context, images [][]byte) ([][]float32, error)
	EncodeText(ctx context.Context, text string) ([]float32, error)
}

// Strategy scores one prompt folder's images given the ordered prompt
// lineage and the batch-encoded image features. It returns one score per
// scored image together with the image ids the scores belong to.
type Strategy interface {
	Name() string
	Scores(ctx context.Context, enc ImageEncoder, prompts []string, features [][]float32) ([]float64, []int, error)
}

// Alignment scores every image against the cycle-0 user prompt:
// 100 × (image · text), the usual scaled cosine alignment metric. Cycle 0's
// image is scored against its own prompt like every other cycle.
type Alignment struct{}

func (Alignment) Name() string { return "alignment" }

func (Alignment) Scores(ctx context.Context, enc ImageEncoder, prompts []string, features [][]float32) ([]float64, []int, error) {
	textFeatures, err := enc.EncodeText(ctx, prompts[0])
	if err != nil {
		return nil, nil, err
	}

	scores := make([]float64, len(features))
	ids := make([]int, len(features))
	for i, imageFeatures := range features {
		scores[i] = 100.0 * float64(encoder.Cosine(imageFeatures, textFeatures))
		ids[i] = i
	}
	return scores, ids, nil
}

// Drift scores every image after the reference cycle against the reference
// cycle's image. Lower means further from the reference. The reference index
// is configurable; 0 compares against the first generated image.
type Drift struct {
	Reference int
}

func (Drift) Name() string { return "drift" }

func (d Drift) Scores(ctx context.Context, enc ImageEncoder, prompts []string, features [][]float32) ([]float64, []int, error) {
	if d.Reference < 0 || d.Reference >= len(features) {
		return nil, nil, fmt.Errorf("drift reference %d out of range for %d images", d.Reference, len(features))
	}

	reference := features[d.Reference]
	var scores []float64
	var ids []int
	for i, imageFeatures := range features {
		if i <= d.Reference {
			continue
		}
		scores = append(scores, float64(encoder.Cosine(reference, imageFeatures)))
		ids = append(ids, i)
	}
	return scores, ids, nil
}

// NewStrategy creates the named scoring strategy. Unknown names are a
// configuration error.
func NewStrategy(name string, driftReference int) (Strategy, error) {
	switch name {
	case "alignment":
		return Alignment{}, nil
	case "drift":
		return Drift{Reference: driftReference}, nil
	default:
		return nil, fmt.Errorf("unknown evaluation strategy: %s", name)
	}
}
