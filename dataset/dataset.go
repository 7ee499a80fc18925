// Package dataset provides the prompt sources an experiment can draw from.
package dataset

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

// Source yields the user prompts for an experiment.
type Source interface {
	Prompts() ([]string, error)
}

// Literal is a single prompt given directly on the command line.
type Literal struct {
	Prompt string
}

func (l Literal) Prompts() ([]string, error) {
	if strings.TrimSpace(l.Prompt) == "" {
		return nil, fmt.Errorf("empty prompt")
	}
	return []string{l.Prompt}, nil
}

// File reads one prompt per line; blank lines are skipped.
type File struct {
	Path string
}

func (f File) Prompts() ([]string, error) {
	file, err := os.Open(f.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open prompt file: %w", err)
	}
	defer file.Close()

	var prompts []string
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line != "" {
			prompts = append(prompts, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read prompt file: %w", err)
	}
	if len(prompts) == 0 {
		return nil, fmt.Errorf("prompt file %s contains no prompts", f.Path)
	}
	return prompts, nil
}
