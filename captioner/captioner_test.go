package captioner

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vispera/promptloop/internal/httpclient"
	"github.com/vispera/promptloop/utils"
)

func TestNewUnknownCaptioner(t *testing.T) {
	_, err := New("oracle", Settings{}, &utils.TestLogger{})
	assert.Error(t, err)
}

func TestBLIPCaption(t *testing.T) {
	image := []byte{0x89, 'P', 'N', 'G'}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/caption", r.URL.Path)
		var req map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		decoded, err := base64.StdEncoding.DecodeString(req["image"])
		require.NoError(t, err)
		assert.Equal(t, image, decoded)
		json.NewEncoder(w).Encode(map[string]string{"caption": "a cat resting on a mat"})
	}))
	defer server.Close()

	c, err := New("blip", Settings{
		Endpoint: server.URL,
		HTTP:     httpclient.Options{RequestsPerMin: 6000},
	}, &utils.TestLogger{})
	require.NoError(t, err)
	assert.Equal(t, "blip", c.Name())

	caption, err := c.Caption(context.Background(), image)
	require.NoError(t, err)
	assert.Equal(t, "a cat resting on a mat", caption)
}

func TestBLIPEmptyCaption(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"caption": ""})
	}))
	defer server.Close()

	c := NewBLIP(Settings{
		Endpoint: server.URL,
		HTTP:     httpclient.Options{RequestsPerMin: 6000},
	}, &utils.TestLogger{})

	_, err := c.Caption(context.Background(), []byte{1})
	assert.Error(t, err)
}
