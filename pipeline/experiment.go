package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/vispera/promptloop/config"
	"github.com/vispera/promptloop/dataset"
	"github.com/vispera/promptloop/utils"
)

const hyperparametersFileName = "hyperparameters.json"

// Hyperparameters is the immutable run configuration recorded alongside the
// experiment's artifacts. The evaluation harness reads it back as read-only
// input.
type Hyperparameters struct {
	ExperimentName        string    `json:"experiment_name" validate:"required"`
	RunID                 string    `json:"run_id" validate:"required"`
	CreatedAt             time.Time `json:"created_at"`
	MaxCycles             int       `json:"max_cycles" validate:"min=1"`
	TerminateOnSimilarity bool      `json:"terminate_on_similarity"`
	Provider              string    `json:"provider" validate:"required"`
	Model                 string    `json:"model" validate:"required"`
	ImageGenerator        string    `json:"image_generator" validate:"required"`
	Captioner             string    `json:"captioner" validate:"required"`
	Classifier            string    `json:"classifier"`
}

// NewHyperparameters snapshots the run configuration.
func NewHyperparameters(cfg *config.Config) Hyperparameters {
	return Hyperparameters{
		ExperimentName:        cfg.ExperimentName,
		RunID:                 uuid.NewString(),
		CreatedAt:             time.Now().UTC(),
		MaxCycles:             cfg.MaxCycles,
		TerminateOnSimilarity: cfg.TerminateOnSimilarity,
		Provider:              cfg.Provider,
		Model:                 cfg.Model,
		ImageGenerator:        cfg.ImageGenerator,
		Captioner:             cfg.Captioner,
		Classifier:            cfg.Classifier,
	}
}

// Save writes hyperparameters.json into the experiment directory.
func (h Hyperparameters) Save(dir string) error {
	data, err := json.MarshalIndent(h, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(dir, hyperparametersFileName), data, 0o644); err != nil {
		return fmt.Errorf("failed to write hyperparameters: %w", err)
	}
	return nil
}

// LoadHyperparameters reads and validates hyperparameters.json from an
// experiment directory, failing fast on unreadable or incomplete files.
func LoadHyperparameters(dir string) (Hyperparameters, error) {
	var h Hyperparameters
	data, err := os.ReadFile(filepath.Join(dir, hyperparametersFileName))
	if err != nil {
		return h, fmt.Errorf("failed to read hyperparameters: %w", err)
	}
	if err := json.Unmarshal(data, &h); err != nil {
		return h, fmt.Errorf("malformed hyperparameters: %w", err)
	}
	if err := validator.New().Struct(&h); err != nil {
		return h, fmt.Errorf("invalid hyperparameters: %w", err)
	}
	return h, nil
}

// Experiment drives one controller per prompt and owns the experiment
// directory. A failing prompt aborts only its own loop; artifacts persisted
// by completed cycles of other prompts are untouched.
type Experiment struct {
	Dir             string
	Hyperparameters Hyperparameters

	controller *Controller
	logger     utils.Logger
}

// NewExperiment creates the experiment directory and records the
// hyperparameters before any cycle runs.
func NewExperiment(outputRoot string, hp Hyperparameters, controller *Controller, logger utils.Logger) (*Experiment, error) {
	dir := filepath.Join(outputRoot, hp.ExperimentName)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create experiment directory: %w", err)
	}
	if err := hp.Save(dir); err != nil {
		return nil, err
	}
	return &Experiment{
		Dir:             dir,
		Hyperparameters: hp,
		controller:      controller,
		logger:          logger,
	}, nil
}

// Run refines every prompt from the source in sequence. It returns an error
// only when no prompt completed at all.
func (e *Experiment) Run(ctx context.Context, source dataset.Source) error {
	prompts, err := source.Prompts()
	if err != nil {
		return err
	}

	completed := 0
	for promptID, userPrompt := range prompts {
		store, err := NewPromptStore(e.Dir, promptID)
		if err != nil {
			return err
		}

		result, err := e.controller.Run(ctx, store, userPrompt)
		if err != nil {
			e.logger.Error("Prompt refinement failed", "prompt_id", promptID, "error", err)
			if ctx.Err() != nil {
				return ctx.Err()
			}
			continue
		}

		completed++
		e.logger.Info("Prompt refined",
			"prompt_id", promptID,
			"cycles", result.Cycles,
			"reason", result.Reason)
	}

	if completed == 0 {
		return fmt.Errorf("no prompt completed refinement")
	}
	return nil
}
