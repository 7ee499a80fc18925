// Package evaluation scores the artifacts a refinement run persisted. It
// re-reads the controller's on-disk layout folder by folder, batches each
// folder's images through the embedding encoder, and writes one row per
// (prompt_id, image_id) to a tab-separated results table.
package evaluation

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/vispera/promptloop/pipeline"
	"github.com/vispera/promptloop/utils"
)

// Harness runs one scoring strategy over every prompt folder of an
// experiment directory.
type Harness struct {
	ExperimentDir string
	Strategy      Strategy

	encoder ImageEncoder
	logger  utils.Logger
}

func NewHarness(experimentDir string, strategy Strategy, enc ImageEncoder, logger utils.Logger) *Harness {
	return &Harness{
		ExperimentDir: experimentDir,
		Strategy:      strategy,
		encoder:       enc,
		logger:        logger,
	}
}

// Evaluate scans the experiment directory and writes
// results_<strategy>.tsv. A folder whose artifacts are missing or
// misaligned fails only that folder; after each completed folder the rows
// so far are flushed to a .partial.tsv so a crash cannot lose the whole
// accumulation. If no folder evaluates successfully the run is an error and
// no final table is written. Folder iteration order is whatever the
// directory listing yields.
func (h *Harness) Evaluate(ctx context.Context) ([]Row, error) {
	if _, err := pipeline.LoadHyperparameters(h.ExperimentDir); err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(h.ExperimentDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read experiment directory: %w", err)
	}

	partialPath := h.resultsPath(".partial.tsv")
	var rows []Row
	completed := 0
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		promptID, err := strconv.Atoi(entry.Name())
		if err != nil {
			h.logger.Warn("Skipping non-numeric folder", "name", entry.Name())
			continue
		}

		folderRows, err := h.evaluateFolder(ctx, promptID, filepath.Join(h.ExperimentDir, entry.Name()))
		if err != nil {
			h.logger.Error("Folder evaluation failed", "prompt_id", promptID, "error", err)
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			continue
		}
		completed++
		rows = append(rows, folderRows...)

		if err := writeTSV(partialPath, rows); err != nil {
			h.logger.Warn("Failed to flush partial results", "error", err)
		}
	}

	if completed == 0 {
		return nil, fmt.Errorf("no prompt folder evaluated successfully under %s", h.ExperimentDir)
	}

	if err := writeTSV(h.resultsPath(".tsv"), rows); err != nil {
		return nil, err
	}
	os.Remove(partialPath)

	h.logger.Info("Evaluation finished", "strategy", h.Strategy.Name(), "rows", len(rows))
	return rows, nil
}

func (h *Harness) resultsPath(suffix string) string {
	return filepath.Join(h.ExperimentDir, "results_"+h.Strategy.Name()+suffix)
}

func (h *Harness) evaluateFolder(ctx context.Context, promptID int, dir string) ([]Row, error) {
	prompts, err := pipeline.LoadPrompts(dir)
	if err != nil {
		return nil, err
	}

	// One image per prompt entry; a missing or unreadable file is an error,
	// never skipped, since scores align by index.
	images := make([][]byte, len(prompts))
	paths := make([]string, len(prompts))
	for i := range prompts {
		paths[i] = pipeline.ImagePath(dir, i)
		image, err := os.ReadFile(paths[i])
		if err != nil {
			return nil, fmt.Errorf("failed to load image %d: %w", i, err)
		}
		images[i] = image
	}

	features, err := h.encoder.EncodeImages(ctx, images)
	if err != nil {
		return nil, err
	}

	scores, ids, err := h.Strategy.Scores(ctx, h.encoder, prompts, features)
	if err != nil {
		return nil, err
	}

	rows := make([]Row, len(scores))
	for i, imageID := range ids {
		rows[i] = Row{
			PromptID:        promptID,
			ImageID:         imageID,
			Score:           scores[i],
			UserPrompt:      prompts[0],
			OptimizedPrompt: prompts[imageID],
			ImagePath:       paths[imageID],
		}
	}
	return rows, nil
}
