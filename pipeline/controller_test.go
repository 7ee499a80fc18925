package pipeline

import (
	"context"
	"fmt"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vispera/promptloop/utils"
)

type fakeGenerator struct {
	calls  []string
	failAt int // 1-based call number to fail on; 0 means never
}

func (g *fakeGenerator) Name() string { return "fake" }

func (g *fakeGenerator) Generate(ctx context.Context, prompt string) ([]byte, error) {
	g.calls = append(g.calls, prompt)
	if g.failAt > 0 && len(g.calls) == g.failAt {
		return nil, fmt.Errorf("backend unreachable")
	}
	return []byte(fmt.Sprintf("png-%d", len(g.calls))), nil
}

type fakeCaptioner struct {
	captions []string
}

func (c *fakeCaptioner) Name() string { return "fake" }

func (c *fakeCaptioner) Caption(ctx context.Context, image []byte) (string, error) {
	caption := fmt.Sprintf("caption of %s", image)
	c.captions = append(c.captions, caption)
	return caption, nil
}

type fakeLanguage struct {
	similarAt    int // 0-based cycle index at which CheckSimilarity says yes; -1 never
	checkCalls   int
	rewriteCalls int
	lastPrevious []string
}

func (l *fakeLanguage) CheckSimilarity(ctx context.Context, userPrompt, imageCaption string) (bool, error) {
	defer func() { l.checkCalls++ }()
	return l.similarAt >= 0 && l.checkCalls == l.similarAt, nil
}

func (l *fakeLanguage) GenerateOptimizedPrompt(ctx context.Context, userPrompt, imageCaption string, previousPrompts []string) (string, error) {
	l.rewriteCalls++
	l.lastPrevious = append([]string(nil), previousPrompts...)
	return fmt.Sprintf("rewrite %d of %s", l.rewriteCalls, userPrompt), nil
}

func runController(t *testing.T, maxCycles int, terminate bool, lang *fakeLanguage, gen *fakeGenerator) (*Result, *PromptStore, error) {
	t.Helper()
	store, err := NewPromptStore(t.TempDir(), 0)
	require.NoError(t, err)

	controller := NewController(gen, &fakeCaptioner{}, lang, maxCycles, terminate, &utils.TestLogger{})
	result, err := controller.Run(context.Background(), store, "a cat on a mat")
	return result, store, err
}

func TestControllerExhaustsBudget(t *testing.T) {
	lang := &fakeLanguage{similarAt: -1}
	result, store, err := runController(t, 4, false, lang, &fakeGenerator{})
	require.NoError(t, err)

	assert.Equal(t, 4, result.Cycles)
	assert.Equal(t, ReasonBudgetExhausted, result.Reason)
	assert.Len(t, result.Prompts, 4)
	assert.Len(t, result.ImagePaths, 4)

	// Early termination disabled: the similarity judgment is never consulted.
	assert.Zero(t, lang.checkCalls)

	prompts, err := LoadPrompts(store.Dir())
	require.NoError(t, err)
	require.Len(t, prompts, 4)
	assert.Equal(t, "a cat on a mat", prompts[0])

	for i := 0; i < 4; i++ {
		_, err := os.Stat(ImagePath(store.Dir(), i))
		assert.NoError(t, err, "image_%d.png should exist", i)
	}
}

func TestControllerFirstTagIsUserPrompt(t *testing.T) {
	_, store, err := runController(t, 3, false, &fakeLanguage{similarAt: -1}, &fakeGenerator{})
	require.NoError(t, err)

	raw, err := os.ReadFile(store.Dir() + "/prompts.csv")
	require.NoError(t, err)
	lines := string(raw)
	assert.Regexp(t, `(?s)^user_prompt\t.*`, lines)
	assert.Equal(t, 2, countOccurrences(lines, "optimized_prompt\t"))
}

func countOccurrences(s, sub string) int {
	count := 0
	for i := 0; i+len(sub) <= len(s); i++ {
		if s[i:i+len(sub)] == sub {
			count++
		}
	}
	return count
}

func TestControllerEarlyTermination(t *testing.T) {
	lang := &fakeLanguage{similarAt: 1}
	result, store, err := runController(t, 5, true, lang, &fakeGenerator{})
	require.NoError(t, err)

	// Similar at cycle 1: two cycles completed, artifacts persisted for both.
	assert.Equal(t, 2, result.Cycles)
	assert.Equal(t, ReasonSimilaritySatisfied, result.Reason)

	prompts, err := LoadPrompts(store.Dir())
	require.NoError(t, err)
	assert.Len(t, prompts, 2)

	_, err = os.Stat(ImagePath(store.Dir(), 1))
	assert.NoError(t, err)
	_, err = os.Stat(ImagePath(store.Dir(), 2))
	assert.True(t, os.IsNotExist(err))
}

func TestControllerCycleZeroUsesUnmodifiedUserPrompt(t *testing.T) {
	gen := &fakeGenerator{}
	_, _, err := runController(t, 3, false, &fakeLanguage{similarAt: -1}, gen)
	require.NoError(t, err)

	require.NotEmpty(t, gen.calls)
	assert.Equal(t, "a cat on a mat", gen.calls[0])
	// Later cycles use rewrites, never the original again.
	for _, call := range gen.calls[1:] {
		assert.NotEqual(t, "a cat on a mat", call)
	}
}

func TestControllerRewriteReceivesFullLineage(t *testing.T) {
	lang := &fakeLanguage{similarAt: -1}
	_, _, err := runController(t, 3, false, lang, &fakeGenerator{})
	require.NoError(t, err)

	// The last rewrite call saw both prior prompts.
	require.Len(t, lang.lastPrevious, 2)
	assert.Equal(t, "a cat on a mat", lang.lastPrevious[0])
}

func TestControllerCollaboratorFailureKeepsPriorCycles(t *testing.T) {
	gen := &fakeGenerator{failAt: 3}
	lang := &fakeLanguage{similarAt: -1}
	_, store, err := runController(t, 5, false, lang, gen)
	require.Error(t, err)

	// Cycles 0 and 1 completed before the failure; their artifacts remain.
	prompts, loadErr := LoadPrompts(store.Dir())
	require.NoError(t, loadErr)
	assert.Len(t, prompts, 2)
	_, statErr := os.Stat(ImagePath(store.Dir(), 1))
	assert.NoError(t, statErr)
	_, statErr = os.Stat(ImagePath(store.Dir(), 2))
	assert.True(t, os.IsNotExist(statErr))
}

func TestControllerRejectsZeroBudget(t *testing.T) {
	store, err := NewPromptStore(t.TempDir(), 0)
	require.NoError(t, err)
	controller := NewController(&fakeGenerator{}, &fakeCaptioner{}, &fakeLanguage{}, 0, false, &utils.TestLogger{})
	_, err = controller.Run(context.Background(), store, "a cat")
	assert.Error(t, err)
}
