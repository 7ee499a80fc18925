package templates

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFill(t *testing.T) {
	testCases := []struct {
		name     string
		template string
		vars     map[string]string
		expected string
	}{
		{
			name:     "replaces user prompt and caption",
			template: "want: <USER_PROMPT>, got: <IMAGE_CAPTION>",
			vars: map[string]string{
				PlaceholderUserPrompt:   "a cat on a mat",
				PlaceholderImageCaption: "a dog on a rug",
			},
			expected: "want: a cat on a mat, got: a dog on a rug",
		},
		{
			name:     "replaces every occurrence",
			template: "<USER_PROMPT> and again <USER_PROMPT>",
			vars:     map[string]string{PlaceholderUserPrompt: "x"},
			expected: "x and again x",
		},
		{
			name:     "unknown placeholder passes through",
			template: "keep <SOMETHING_ELSE> as is",
			vars:     map[string]string{PlaceholderUserPrompt: "x"},
			expected: "keep <SOMETHING_ELSE> as is",
		},
		{
			name:     "missing mapping leaves placeholder unexpanded",
			template: "history: <PREVIOUS_PROMPTS>",
			vars:     map[string]string{PlaceholderUserPrompt: "x"},
			expected: "history: <PREVIOUS_PROMPTS>",
		},
		{
			name:     "no placeholders at all",
			template: "plain text",
			vars:     map[string]string{PlaceholderUserPrompt: "x"},
			expected: "plain text",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, Fill(tc.template, tc.vars))
		})
	}
}

func TestFillRemovesAllPlaceholderTokens(t *testing.T) {
	out := Fill(DefaultSimilarity, map[string]string{
		PlaceholderUserPrompt:   "a red balloon",
		PlaceholderImageCaption: "a balloon floating over a field",
	})
	assert.NotContains(t, out, PlaceholderUserPrompt)
	assert.NotContains(t, out, PlaceholderImageCaption)
	assert.Contains(t, out, "a red balloon")
	assert.Contains(t, out, "a balloon floating over a field")
}

func TestJoinPrevious(t *testing.T) {
	assert.Equal(t, "", JoinPrevious(nil))
	assert.Equal(t, "", JoinPrevious([]string{}))
	assert.Equal(t, "1. first\n2. second\n", JoinPrevious([]string{"first", "second"}))
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rewrite.txt")
	require.NoError(t, os.WriteFile(path, []byte("custom <USER_PROMPT>"), 0o644))

	tmpl, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "custom <USER_PROMPT>", tmpl)

	_, err = LoadFile(filepath.Join(dir, "missing.txt"))
	assert.Error(t, err)
}
