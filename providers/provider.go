// Package providers implements chat-completion backends for the language
// model adapter. Each backend translates an ordered list of role-tagged
// messages into a backend-specific HTTP request and parses the response into
// generated text plus token usage.
package providers

import (
	"github.com/vispera/promptloop/utils"
)

// Message is one role-tagged text unit in a chat request.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Response is the parsed result of a chat completion call. TotalTokens is
// zero when the backend does not report usage.
type Response struct {
	Content     string
	TotalTokens int
}

// Provider defines the interface every chat-completion backend implements.
type Provider interface {
	Name() string
	Endpoint() string
	SetEndpoint(endpoint string)
	Headers() map[string]string
	SetOption(key string, value any)
	SetLogger(logger utils.Logger)

	PrepareRequest(messages []Message, options map[string]any) ([]byte, error)
	ParseResponse(body []byte) (*Response, error)
}

// ProviderConstructor creates a provider instance for the given credentials.
type ProviderConstructor func(apiKey, model string) Provider
