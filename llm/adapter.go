package llm

import (
	"context"
	"fmt"

	"github.com/pkoukk/tiktoken-go"

	"github.com/vispera/promptloop/providers"
	"github.com/vispera/promptloop/templates"
	"github.com/vispera/promptloop/utils"
)

// Adapter exposes the two operations the refinement controller needs from a
// language model: judging caption similarity and rewriting prompts. Both are
// independent single-turn exchanges built from the template engine; no
// conversation history is carried between calls.
type Adapter struct {
	client *Client

	role               string
	rewriteTemplate    string
	similarityTemplate string
	classifier         Classifier
	strict             bool

	tokenUsage int
	model      string
	encoding   *tiktoken.Tiktoken
	logger     utils.Logger
}

type AdapterOption func(*Adapter)

// WithRole overrides the system role text.
func WithRole(role string) AdapterOption {
	return func(a *Adapter) { a.role = role }
}

// WithRewriteTemplate overrides the prompt-rewrite template.
func WithRewriteTemplate(t string) AdapterOption {
	return func(a *Adapter) { a.rewriteTemplate = t }
}

// WithSimilarityTemplate overrides the similarity-judgment template.
func WithSimilarityTemplate(t string) AdapterOption {
	return func(a *Adapter) { a.similarityTemplate = t }
}

// WithClassifier swaps the similarity response classifier.
func WithClassifier(c Classifier) AdapterOption {
	return func(a *Adapter) { a.classifier = c }
}

// WithStrictVerdict switches to the schema-constrained JSON verdict: the
// similarity prompt carries a JSON schema instruction and the response is
// parsed and validated instead of substring-matched.
func WithStrictVerdict() AdapterOption {
	return func(a *Adapter) {
		a.strict = true
		a.classifier = StrictVerdict
	}
}

// NewAdapter creates an adapter over the given client. The model name feeds
// the local token estimator used when a backend omits usage counts.
func NewAdapter(client *Client, model string, logger utils.Logger, opts ...AdapterOption) *Adapter {
	adapter := &Adapter{
		client:             client,
		role:               templates.DefaultRole,
		rewriteTemplate:    templates.DefaultRewrite,
		similarityTemplate: templates.DefaultSimilarity,
		classifier:         LooseYes,
		model:              model,
		logger:             logger,
	}

	for _, opt := range opts {
		opt(adapter)
	}

	return adapter
}

// CheckSimilarity asks the backend whether the caption matches the user
// prompt. The classifier interprets the raw response; a malformed answer
// counts as "not similar".
func (a *Adapter) CheckSimilarity(ctx context.Context, userPrompt, imageCaption string) (bool, error) {
	prompt := templates.Fill(a.similarityTemplate, map[string]string{
		templates.PlaceholderUserPrompt:   userPrompt,
		templates.PlaceholderImageCaption: imageCaption,
	})

	if a.strict {
		instruction, err := VerdictSchemaInstruction()
		if err != nil {
			return false, fmt.Errorf("failed to build verdict schema: %w", err)
		}
		prompt += instruction
	}

	response, err := a.query(ctx, prompt)
	if err != nil {
		return false, err
	}

	similar := a.classifier(response)
	a.logger.Debug("Similarity judged", "similar", similar, "response", response)
	return similar, nil
}

// GenerateOptimizedPrompt asks the backend to rewrite the prompt given the
// caption of the last generated image and the prompt lineage so far. The raw
// response is the new prompt; no post-processing is applied.
func (a *Adapter) GenerateOptimizedPrompt(ctx context.Context, userPrompt, imageCaption string, previousPrompts []string) (string, error) {
	vars := map[string]string{
		templates.PlaceholderUserPrompt:   userPrompt,
		templates.PlaceholderImageCaption: imageCaption,
	}
	// With an empty lineage the placeholder stays unexpanded, matching the
	// template engine's pass-through contract.
	if len(previousPrompts) > 0 {
		vars[templates.PlaceholderPreviousPrompts] = templates.JoinPrevious(previousPrompts)
	}

	prompt := templates.Fill(a.rewriteTemplate, vars)
	return a.query(ctx, prompt)
}

// TokenUsage returns the tokens accumulated across all queries. The counter
// is observational only; nothing enforces an upper bound.
func (a *Adapter) TokenUsage() int {
	return a.tokenUsage
}

func (a *Adapter) query(ctx context.Context, prompt string) (string, error) {
	messages := []providers.Message{
		{Role: "system", Content: a.role},
		{Role: "user", Content: prompt},
	}

	resp, err := a.client.Chat(ctx, messages)
	if err != nil {
		return "", err
	}

	a.accountTokens(messages, resp)
	return resp.Content, nil
}

func (a *Adapter) accountTokens(messages []providers.Message, resp *providers.Response) {
	if resp.TotalTokens > 0 {
		a.tokenUsage += resp.TotalTokens
		return
	}

	// Backend reported no usage; estimate locally. The encoder is loaded on
	// first use only, since most backends do report usage.
	if a.encoding == nil {
		encoding, err := tiktoken.EncodingForModel(a.model)
		if err != nil {
			a.logger.Warn("Failed to get encoding for model, defaulting to gpt-4o", "model", a.model, "error", err)
			if encoding, err = tiktoken.EncodingForModel("gpt-4o"); err != nil {
				a.logger.Warn("Token estimation unavailable", "error", err)
				return
			}
		}
		a.encoding = encoding
	}

	total := len(a.encoding.Encode(resp.Content, nil, nil))
	for _, m := range messages {
		total += len(a.encoding.Encode(m.Content, nil, nil))
	}
	a.tokenUsage += total
}
