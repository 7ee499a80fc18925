// Package pipeline contains the refinement controller and the on-disk
// experiment layout it shares with the evaluation harness: one directory per
// prompt holding image_{n}.png files and a prompts.csv lineage log, plus a
// hyperparameters.json at the experiment root.
package pipeline

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Tags for prompts.csv entries. Cycle 0 is always the unmodified user
// prompt; every later cycle's prompt is a rewrite.
const (
	TagUserPrompt      = "user_prompt"
	TagOptimizedPrompt = "optimized_prompt"
)

const promptsFileName = "prompts.csv"

// PromptStore owns one prompt's artifact directory. Writes are synchronous
// and append-only: after cycle k completes, exactly k+1 consistent
// (prompt, image) pairs exist on disk.
type PromptStore struct {
	dir string
}

// NewPromptStore creates the directory for the given prompt id and resets
// any artifacts a previous run left there. The prompt log appends while
// images overwrite, so a stale lineage would break the one-image-per-entry
// pairing the evaluation harness relies on.
func NewPromptStore(experimentDir string, promptID int) (*PromptStore, error) {
	dir := filepath.Join(experimentDir, fmt.Sprintf("%d", promptID))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create prompt directory: %w", err)
	}
	if err := clearArtifacts(dir); err != nil {
		return nil, err
	}
	return &PromptStore{dir: dir}, nil
}

func clearArtifacts(dir string) error {
	if err := os.Remove(filepath.Join(dir, promptsFileName)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to reset prompt log: %w", err)
	}
	stale, err := filepath.Glob(filepath.Join(dir, "image_*.png"))
	if err != nil {
		return err
	}
	for _, path := range stale {
		if err := os.Remove(path); err != nil {
			return fmt.Errorf("failed to remove stale image: %w", err)
		}
	}
	return nil
}

func (s *PromptStore) Dir() string {
	return s.dir
}

// AppendPrompt appends one tagged entry to prompts.csv. Prompt text may
// contain newlines; LoadPrompts folds those continuation lines back into the
// entry.
func (s *PromptStore) AppendPrompt(tag, text string) error {
	if tag != TagUserPrompt && tag != TagOptimizedPrompt {
		return fmt.Errorf("invalid prompt tag: %s", tag)
	}

	f, err := os.OpenFile(filepath.Join(s.dir, promptsFileName), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open prompt log: %w", err)
	}
	defer f.Close()

	if _, err := fmt.Fprintf(f, "%s\t%s\n", tag, text); err != nil {
		return fmt.Errorf("failed to append prompt: %w", err)
	}
	return nil
}

// SaveImage writes the cycle's image and returns its path.
func (s *PromptStore) SaveImage(cycle int, image []byte) (string, error) {
	path := ImagePath(s.dir, cycle)
	if err := os.WriteFile(path, image, 0o644); err != nil {
		return "", fmt.Errorf("failed to write image: %w", err)
	}
	return path, nil
}

// ImagePath returns the conventional path of a cycle's image inside a prompt
// directory.
func ImagePath(dir string, cycle int) string {
	return filepath.Join(dir, fmt.Sprintf("image_%d.png", cycle))
}

// LoadPrompts parses a prompt directory's prompts.csv into the ordered
// lineage. A physical line that does not start with a known tag is a
// continuation of the previous entry and is concatenated onto it without a
// separating token.
func LoadPrompts(dir string) ([]string, error) {
	data, err := os.ReadFile(filepath.Join(dir, promptsFileName))
	if err != nil {
		return nil, fmt.Errorf("failed to read prompt log: %w", err)
	}

	var prompts []string
	for _, line := range strings.Split(strings.TrimRight(string(data), "\n"), "\n") {
		tag, text, found := strings.Cut(line, "\t")
		if found && (tag == TagUserPrompt || tag == TagOptimizedPrompt) {
			prompts = append(prompts, text)
			continue
		}
		if len(prompts) == 0 {
			return nil, fmt.Errorf("prompt log in %s starts with an untagged line", dir)
		}
		prompts[len(prompts)-1] += line
	}

	if len(prompts) == 0 {
		return nil, fmt.Errorf("prompt log in %s is empty", dir)
	}
	return prompts, nil
}
