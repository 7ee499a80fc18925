package encoder

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vispera/promptloop/internal/httpclient"
	"github.com/vispera/promptloop/utils"
)

func newTestEncoder(t *testing.T, handler http.HandlerFunc) *Encoder {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return New(Settings{
		Endpoint: server.URL,
		Model:    "ViT-B-32",
		HTTP:     httpclient.Options{RequestsPerMin: 6000},
	}, &utils.TestLogger{})
}

func TestEncodeImagesNormalizesAndPreservesOrder(t *testing.T) {
	enc := newTestEncoder(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/encode/images", r.URL.Path)
		json.NewEncoder(w).Encode(map[string]any{
			"embeddings": [][]float32{{3, 4}, {0, 5}},
		})
	})

	vectors, err := enc.EncodeImages(context.Background(), [][]byte{{1}, {2}})
	require.NoError(t, err)
	require.Len(t, vectors, 2)
	assert.InDelta(t, 0.6, vectors[0][0], 1e-6)
	assert.InDelta(t, 0.8, vectors[0][1], 1e-6)
	assert.InDelta(t, 0.0, vectors[1][0], 1e-6)
	assert.InDelta(t, 1.0, vectors[1][1], 1e-6)
}

func TestEncodeImagesCountMismatch(t *testing.T) {
	enc := newTestEncoder(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"embeddings": [][]float32{{1, 0}},
		})
	})

	_, err := enc.EncodeImages(context.Background(), [][]byte{{1}, {2}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mismatch")
}

func TestEncodeImagesRejectsEmptyInput(t *testing.T) {
	enc := newTestEncoder(t, func(w http.ResponseWriter, r *http.Request) {})

	_, err := enc.EncodeImages(context.Background(), nil)
	assert.Error(t, err)

	_, err = enc.EncodeImages(context.Background(), [][]byte{{1}, {}})
	assert.Error(t, err)
}

func TestEncodeText(t *testing.T) {
	enc := newTestEncoder(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/encode/text", r.URL.Path)
		var req map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "a cat on a mat", req["text"])
		json.NewEncoder(w).Encode(map[string]any{"embedding": []float32{1, 1}})
	})

	vector, err := enc.EncodeText(context.Background(), "a cat on a mat")
	require.NoError(t, err)
	require.Len(t, vector, 2)
	assert.InDelta(t, 1.0/math.Sqrt2, float64(vector[0]), 1e-6)
}

func TestNormalize(t *testing.T) {
	v := []float32{3, 4}
	Normalize(v)
	assert.InDelta(t, 1.0, float64(v[0]*v[0]+v[1]*v[1]), 1e-6)

	zero := []float32{0, 0}
	Normalize(zero)
	assert.Equal(t, []float32{0, 0}, zero)
}

func TestCosine(t *testing.T) {
	assert.InDelta(t, 1.0, float64(Cosine([]float32{1, 0}, []float32{2, 0})), 1e-6)
	assert.InDelta(t, 0.0, float64(Cosine([]float32{1, 0}, []float32{0, 3})), 1e-6)
	assert.InDelta(t, -1.0, float64(Cosine([]float32{1, 0}, []float32{-5, 0})), 1e-6)
	assert.Equal(t, float32(0), Cosine([]float32{0, 0}, []float32{1, 0}))

	// Mismatched dimensions never panic or produce a partial score.
	assert.Equal(t, float32(0), Cosine([]float32{1, 0, 0}, []float32{1, 0}))
	assert.Equal(t, float32(0), Cosine(nil, []float32{1}))
}
