package llm

import (
	"encoding/json"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/invopop/jsonschema"
)

// Classifier decides whether a raw similarity response means the caption
// matches the user prompt. A malformed response is treated as "not similar",
// never surfaced as an error.
type Classifier func(response string) bool

// LooseYes reports a match when the literal substring "Yes" appears anywhere
// in the response. Any text containing "Yes", even mid-sentence, counts as a
// match; the backend is trusted to answer in a constrained way.
func LooseYes(response string) bool {
	return strings.Contains(response, "Yes")
}

// SimilarityVerdict is the structured answer the strict classifier expects.
type SimilarityVerdict struct {
	Match  bool   `json:"match"`
	Reason string `json:"reason" validate:"required"`
}

var verdictValidate = validator.New()

// StrictVerdict parses the response as a SimilarityVerdict JSON object and
// validates it. Anything that does not parse and validate is "not similar".
func StrictVerdict(response string) bool {
	var verdict SimilarityVerdict
	if err := json.Unmarshal([]byte(extractJSON(response)), &verdict); err != nil {
		return false
	}
	if err := verdictValidate.Struct(&verdict); err != nil {
		return false
	}
	return verdict.Match
}

// extractJSON trims surrounding prose or markdown fences around a JSON
// object, keeping the outermost brace-delimited span.
func extractJSON(s string) string {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end <= start {
		return s
	}
	return s[start : end+1]
}

// VerdictSchemaInstruction renders the verdict JSON schema as an instruction
// block appended to the similarity prompt when the strict classifier is in
// use.
func VerdictSchemaInstruction() (string, error) {
	reflector := jsonschema.Reflector{DoNotReference: true}
	schema := reflector.Reflect(&SimilarityVerdict{})
	schemaJSON, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return "", err
	}
	return "\n\nAnswer with a single JSON object matching this schema:\n" + string(schemaJSON), nil
}
