package providers

import (
	"encoding/json"
	"fmt"

	"github.com/vispera/promptloop/utils"
)

// OpenAIProvider implements the Provider interface for OpenAI's chat
// completions API.
type OpenAIProvider struct {
	apiKey   string
	model    string
	endpoint string
	options  map[string]any
	logger   utils.Logger
}

// NewOpenAIProvider creates a new OpenAI provider instance.
func NewOpenAIProvider(apiKey, model string) Provider {
	return &OpenAIProvider{
		apiKey:  apiKey,
		model:   model,
		options: make(map[string]any),
		logger:  utils.NewLogger(utils.LogLevelWarn),
	}
}

func (p *OpenAIProvider) Name() string {
	return "openai"
}

func (p *OpenAIProvider) Endpoint() string {
	if p.endpoint != "" {
		return p.endpoint
	}
	return "https://api.openai.com/v1/chat/completions"
}

// SetEndpoint overrides the default API endpoint, for proxies and
// self-hosted OpenAI-compatible services.
func (p *OpenAIProvider) SetEndpoint(endpoint string) {
	p.endpoint = endpoint
}

func (p *OpenAIProvider) Headers() map[string]string {
	return map[string]string{
		"Content-Type":  "application/json",
		"Authorization": "Bearer " + p.apiKey,
	}
}

func (p *OpenAIProvider) SetOption(key string, value any) {
	p.options[key] = value
	p.logger.Debug("Option set", "key", key, "value", value)
}

func (p *OpenAIProvider) SetLogger(logger utils.Logger) {
	p.logger = logger
}

// PrepareRequest builds the request body for the chat completions endpoint.
func (p *OpenAIProvider) PrepareRequest(messages []Message, options map[string]any) ([]byte, error) {
	request := map[string]any{
		"model":    p.model,
		"messages": messages,
	}
	for k, v := range p.options {
		request[k] = v
	}
	for k, v := range options {
		request[k] = v
	}

	reqJSON, err := json.Marshal(request)
	if err != nil {
		p.logger.Error("Failed to marshal request", "error", err)
		return nil, err
	}

	p.logger.Debug("Request prepared", "request", string(reqJSON))
	return reqJSON, nil
}

// ParseResponse extracts the generated text and token usage from the API
// response body.
func (p *OpenAIProvider) ParseResponse(body []byte) (*Response, error) {
	var response struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
		Usage struct {
			TotalTokens int `json:"total_tokens"`
		} `json:"usage"`
	}

	if err := json.Unmarshal(body, &response); err != nil {
		return nil, fmt.Errorf("malformed response body: %w", err)
	}

	if len(response.Choices) == 0 {
		return nil, fmt.Errorf("empty response from API")
	}

	return &Response{
		Content:     response.Choices[0].Message.Content,
		TotalTokens: response.Usage.TotalTokens,
	}, nil
}
