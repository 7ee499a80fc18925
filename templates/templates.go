// Package templates fills the model-facing prompt templates used by the
// refinement pipeline. Templates are plain text containing placeholder
// tokens; filling is literal substring substitution, so unknown or missing
// placeholders pass through verbatim and filling never fails.
package templates

import (
	"fmt"
	"os"
	"strings"
)

// Recognized placeholder tokens.
const (
	PlaceholderUserPrompt      = "<USER_PROMPT>"
	PlaceholderImageCaption    = "<IMAGE_CAPTION>"
	PlaceholderPreviousPrompts = "<PREVIOUS_PROMPTS>"
)

// Default template texts, overridable via LoadFile.
const (
	DefaultRole = `You are an expert prompt engineer for text-to-image models. ` +
		`You rewrite prompts so that the generated image matches the user's intent as closely as possible.`

	DefaultRewrite = `The user asked for an image of: <USER_PROMPT>
The image that was generated from the current prompt was captioned as: <IMAGE_CAPTION>
Previously attempted prompts:
<PREVIOUS_PROMPTS>
Write an improved prompt for the image generator that brings the next image closer to the user's request. Reply with the prompt text only.`

	DefaultSimilarity = `The user asked for an image of: <USER_PROMPT>
The generated image was captioned as: <IMAGE_CAPTION>
Does the caption describe an image that matches the user's request? Answer "Yes" or "No".`
)

// Fill replaces every occurrence of each placeholder key in template with its
// mapped value. Placeholders without a mapping are left untouched.
func Fill(template string, vars map[string]string) string {
	out := template
	for placeholder, value := range vars {
		out = strings.ReplaceAll(out, placeholder, value)
	}
	return out
}

// JoinPrevious renders a prompt lineage as numbered lines for substitution
// into <PREVIOUS_PROMPTS>. An empty list yields the empty string; callers
// must then skip the substitution so the placeholder stays unexpanded,
// matching the engine's pass-through contract.
func JoinPrevious(prompts []string) string {
	if len(prompts) == 0 {
		return ""
	}
	var sb strings.Builder
	for i, p := range prompts {
		fmt.Fprintf(&sb, "%d. %s\n", i+1, p)
	}
	return sb.String()
}

// LoadFile reads a template from disk, for deployments that keep prompt
// texts outside the binary.
func LoadFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read template file %s: %w", path, err)
	}
	return string(data), nil
}
