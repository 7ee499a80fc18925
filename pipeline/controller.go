package pipeline

import (
	"context"
	"fmt"

	"github.com/vispera/promptloop/captioner"
	"github.com/vispera/promptloop/generator"
	"github.com/vispera/promptloop/utils"
)

// TerminationReason records why a prompt's refinement loop stopped. Both
// reasons are success outcomes; collaborator failures abort the loop with an
// error instead.
type TerminationReason string

const (
	ReasonBudgetExhausted     TerminationReason = "budget_exhausted"
	ReasonSimilaritySatisfied TerminationReason = "similarity_satisfied"
)

// LanguageModel is the narrow contract the controller needs from the llm
// adapter.
type LanguageModel interface {
	CheckSimilarity(ctx context.Context, userPrompt, imageCaption string) (bool, error)
	GenerateOptimizedPrompt(ctx context.Context, userPrompt, imageCaption string, previousPrompts []string) (string, error)
}

// Result is the finalized state of one prompt's refinement loop.
type Result struct {
	UserPrompt string
	Prompts    []string
	Captions   []string
	ImagePaths []string
	Cycles     int
	Reason     TerminationReason
}

// Controller drives the refinement cycles for one prompt at a time:
// generate an image, caption it, judge similarity, and rewrite the prompt
// until the cycle budget runs out or the judgment is satisfied.
type Controller struct {
	Generator             generator.ImageGenerator
	Captioner             captioner.Captioner
	Language              LanguageModel
	MaxCycles             int
	TerminateOnSimilarity bool

	logger utils.Logger
}

func NewController(gen generator.ImageGenerator, capt captioner.Captioner, lang LanguageModel,
	maxCycles int, terminateOnSimilarity bool, logger utils.Logger) *Controller {
	return &Controller{
		Generator:             gen,
		Captioner:             capt,
		Language:              lang,
		MaxCycles:             maxCycles,
		TerminateOnSimilarity: terminateOnSimilarity,
		logger:                logger,
	}
}

// Run executes the refinement loop for one prompt. Each cycle's image and
// prompt are persisted synchronously before the next cycle starts, so a
// failure in cycle k+1 never loses cycle k's artifacts. Cycle 0 always uses
// the unmodified user prompt.
func (c *Controller) Run(ctx context.Context, store *PromptStore, userPrompt string) (*Result, error) {
	if c.MaxCycles < 1 {
		return nil, fmt.Errorf("max cycles must be at least 1")
	}

	result := &Result{UserPrompt: userPrompt}
	currentPrompt := userPrompt

	for cycle := 0; cycle < c.MaxCycles; cycle++ {
		c.logger.Debug("Cycle started", "cycle", cycle, "prompt", currentPrompt)

		image, err := c.Generator.Generate(ctx, currentPrompt)
		if err != nil {
			return nil, fmt.Errorf("cycle %d: image generation failed: %w", cycle, err)
		}

		caption, err := c.Captioner.Caption(ctx, image)
		if err != nil {
			return nil, fmt.Errorf("cycle %d: captioning failed: %w", cycle, err)
		}

		imagePath, err := store.SaveImage(cycle, image)
		if err != nil {
			return nil, fmt.Errorf("cycle %d: %w", cycle, err)
		}
		tag := TagOptimizedPrompt
		if cycle == 0 {
			tag = TagUserPrompt
		}
		if err := store.AppendPrompt(tag, currentPrompt); err != nil {
			return nil, fmt.Errorf("cycle %d: %w", cycle, err)
		}

		result.Prompts = append(result.Prompts, currentPrompt)
		result.Captions = append(result.Captions, caption)
		result.ImagePaths = append(result.ImagePaths, imagePath)
		result.Cycles = cycle + 1

		if cycle+1 == c.MaxCycles {
			result.Reason = ReasonBudgetExhausted
			break
		}

		if c.TerminateOnSimilarity {
			similar, err := c.Language.CheckSimilarity(ctx, userPrompt, caption)
			if err != nil {
				return nil, fmt.Errorf("cycle %d: similarity check failed: %w", cycle, err)
			}
			if similar {
				result.Reason = ReasonSimilaritySatisfied
				break
			}
		}

		optimized, err := c.Language.GenerateOptimizedPrompt(ctx, userPrompt, caption, result.Prompts)
		if err != nil {
			return nil, fmt.Errorf("cycle %d: prompt rewrite failed: %w", cycle, err)
		}
		currentPrompt = optimized
	}

	c.logger.Info("Refinement finished", "cycles", result.Cycles, "reason", result.Reason)
	return result, nil
}
