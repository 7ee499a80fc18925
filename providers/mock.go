package providers

import (
	"encoding/json"
	"fmt"

	"github.com/vispera/promptloop/utils"
)

// MockProvider is a test double that replays canned responses. The llm
// client still performs a real HTTP round trip, so point the endpoint at an
// httptest server whose body the mock echoes back through ParseResponse.
type MockProvider struct {
	endpoint  string
	Responses []string
	Tokens    int
	Requests  [][]Message
	callCount int
	logger    utils.Logger
}

func NewMockProvider() *MockProvider {
	return &MockProvider{
		Tokens: 10,
		logger: utils.NewLogger(utils.LogLevelOff),
	}
}

func (p *MockProvider) Name() string                { return "mock" }
func (p *MockProvider) Endpoint() string            { return p.endpoint }
func (p *MockProvider) SetEndpoint(endpoint string) { p.endpoint = endpoint }
func (p *MockProvider) SetOption(key string, v any) {}
func (p *MockProvider) SetLogger(l utils.Logger)    { p.logger = l }

func (p *MockProvider) Headers() map[string]string {
	return map[string]string{"Content-Type": "application/json"}
}

func (p *MockProvider) PrepareRequest(messages []Message, options map[string]any) ([]byte, error) {
	p.Requests = append(p.Requests, messages)
	return json.Marshal(map[string]any{"messages": messages})
}

// ParseResponse ignores the wire body and returns the next canned response.
func (p *MockProvider) ParseResponse(body []byte) (*Response, error) {
	if len(p.Responses) == 0 {
		return nil, fmt.Errorf("mock provider has no responses configured")
	}
	idx := p.callCount
	if idx >= len(p.Responses) {
		idx = len(p.Responses) - 1
	}
	p.callCount++
	return &Response{Content: p.Responses[idx], TotalTokens: p.Tokens}, nil
}
