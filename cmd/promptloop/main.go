// Command promptloop runs the closed-loop text-to-image refinement pipeline
// and the batch evaluation harness over its persisted artifacts.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	_ "go.uber.org/automaxprocs"

	"github.com/vispera/promptloop/captioner"
	"github.com/vispera/promptloop/config"
	"github.com/vispera/promptloop/dataset"
	"github.com/vispera/promptloop/encoder"
	"github.com/vispera/promptloop/evaluation"
	"github.com/vispera/promptloop/generator"
	"github.com/vispera/promptloop/internal/httpclient"
	"github.com/vispera/promptloop/llm"
	"github.com/vispera/promptloop/pipeline"
	"github.com/vispera/promptloop/providers"
	"github.com/vispera/promptloop/templates"
)

var (
	flagExperiment string
	flagPrompt     string
	flagPromptFile string
	flagMaxCycles  int
	flagTerminate  bool
	flagGenerator  string
	flagCaptioner  string
	flagProvider   string
	flagModel      string
	flagClassifier string
	flagOutputRoot string
	flagStrategy   string
	flagDriftRef   int
)

func main() {
	root := &cobra.Command{
		Use:           "promptloop",
		Short:         "Iterative text-to-image prompt refinement and evaluation",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.AddCommand(newRunCmd(), newEvaluateCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig merges environment config with the flags the user set.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, err
	}

	var opts []config.ConfigOption
	if cmd.Flags().Changed("experiment") {
		opts = append(opts, config.SetExperimentName(flagExperiment))
	}
	if cmd.Flags().Changed("output-root") {
		opts = append(opts, config.SetOutputRoot(flagOutputRoot))
	}
	if cmd.Flags().Changed("max-cycles") {
		opts = append(opts, config.SetMaxCycles(flagMaxCycles))
	}
	if cmd.Flags().Changed("terminate-on-similarity") {
		opts = append(opts, config.SetTerminateOnSimilarity(flagTerminate))
	}
	if cmd.Flags().Changed("image-generator") {
		opts = append(opts, config.SetImageGenerator(flagGenerator))
	}
	if cmd.Flags().Changed("captioner") {
		opts = append(opts, config.SetCaptioner(flagCaptioner))
	}
	if cmd.Flags().Changed("provider") {
		opts = append(opts, config.SetProvider(flagProvider))
	}
	if cmd.Flags().Changed("model") {
		opts = append(opts, config.SetModel(flagModel))
	}
	if cmd.Flags().Changed("classifier") {
		opts = append(opts, config.SetClassifier(flagClassifier))
	}
	if cmd.Flags().Changed("strategy") {
		opts = append(opts, config.SetStrategy(flagStrategy))
	}
	if cmd.Flags().Changed("drift-reference") {
		opts = append(opts, config.SetDriftReference(flagDriftRef))
	}
	config.ApplyOptions(cfg, opts...)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func httpOptions(cfg *config.Config) httpclient.Options {
	return httpclient.Options{
		Timeout:        cfg.Timeout,
		MaxRetries:     cfg.MaxRetries,
		RetryDelay:     cfg.RetryDelay,
		RequestsPerMin: cfg.RequestsPerMin,
	}
}

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the refinement loop for a prompt or a prompt file",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			logger := cfg.Logger()

			var source dataset.Source
			switch {
			case flagPromptFile != "":
				source = dataset.File{Path: flagPromptFile}
			case flagPrompt != "":
				source = dataset.Literal{Prompt: flagPrompt}
			default:
				return fmt.Errorf("either --prompt or --prompt-file is required")
			}

			registry := providers.NewProviderRegistry()
			provider, err := registry.Get(cfg.Provider, cfg.APIKeys[cfg.Provider], cfg.Model)
			if err != nil {
				return err
			}
			provider.SetLogger(logger)

			client := llm.NewClient(provider, llm.ClientOptions{
				Timeout:        cfg.Timeout,
				MaxRetries:     cfg.MaxRetries,
				RetryDelay:     cfg.RetryDelay,
				RequestsPerMin: cfg.RequestsPerMin,
			}, logger)

			adapterOpts, err := adapterOptions(cfg)
			if err != nil {
				return err
			}
			adapter := llm.NewAdapter(client, cfg.Model, logger, adapterOpts...)

			gen, err := generator.New(cfg.ImageGenerator, generator.Settings{
				Endpoint: cfg.GeneratorEndpoint,
				APIKey:   cfg.APIKeys[cfg.ImageGenerator],
				HTTP:     httpOptions(cfg),
			}, logger)
			if err != nil {
				return err
			}

			capt, err := captioner.New(cfg.Captioner, captioner.Settings{
				Endpoint: cfg.CaptionerEndpoint,
				APIKey:   cfg.APIKeys[cfg.Captioner],
				HTTP:     httpOptions(cfg),
			}, logger)
			if err != nil {
				return err
			}

			controller := pipeline.NewController(gen, capt, adapter,
				cfg.MaxCycles, cfg.TerminateOnSimilarity, logger)

			experiment, err := pipeline.NewExperiment(cfg.OutputRoot,
				pipeline.NewHyperparameters(cfg), controller, logger)
			if err != nil {
				return err
			}

			if err := experiment.Run(cmd.Context(), source); err != nil {
				return err
			}

			logger.Info("Run finished", "experiment", cfg.ExperimentName, "tokens_used", adapter.TokenUsage())
			return nil
		},
	}

	cmd.Flags().StringVar(&flagPrompt, "prompt", "", "Literal prompt to refine")
	cmd.Flags().StringVar(&flagPromptFile, "prompt-file", "", "File with one prompt per line")
	cmd.Flags().IntVar(&flagMaxCycles, "max-cycles", 5, "Maximum refinement cycles per prompt")
	cmd.Flags().BoolVar(&flagTerminate, "terminate-on-similarity", false, "Stop early when the language model judges the caption similar enough")
	cmd.Flags().StringVar(&flagGenerator, "image-generator", "stablediffusion", "Image generator backend")
	cmd.Flags().StringVar(&flagCaptioner, "captioner", "blip", "Captioning backend")
	cmd.Flags().StringVar(&flagProvider, "provider", "openai", "Chat-completion provider")
	cmd.Flags().StringVar(&flagModel, "model", "gpt-4o-mini", "Language model name")
	cmd.Flags().StringVar(&flagClassifier, "classifier", "loose", "Similarity classifier: loose or strict")
	addCommonFlags(cmd)
	return cmd
}

func adapterOptions(cfg *config.Config) ([]llm.AdapterOption, error) {
	var opts []llm.AdapterOption
	if cfg.Classifier == "strict" {
		opts = append(opts, llm.WithStrictVerdict())
	}

	for _, tmpl := range []struct {
		path   string
		option func(string) llm.AdapterOption
	}{
		{cfg.RoleTemplateFile, llm.WithRole},
		{cfg.RewriteTemplateFile, llm.WithRewriteTemplate},
		{cfg.SimilarityTemplateFile, llm.WithSimilarityTemplate},
	} {
		if tmpl.path == "" {
			continue
		}
		text, err := templates.LoadFile(tmpl.path)
		if err != nil {
			return nil, err
		}
		opts = append(opts, tmpl.option(text))
	}
	return opts, nil
}

func newEvaluateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "evaluate",
		Short: "Score a finished experiment's artifacts",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			logger := cfg.Logger()

			strategy, err := evaluation.NewStrategy(cfg.Strategy, cfg.DriftReference)
			if err != nil {
				return err
			}

			enc := encoder.New(encoder.Settings{
				Endpoint: cfg.EncoderEndpoint,
				Model:    cfg.EncoderModel,
				HTTP:     httpOptions(cfg),
			}, logger)

			experimentDir := filepath.Join(cfg.OutputRoot, cfg.ExperimentName)
			harness := evaluation.NewHarness(experimentDir, strategy, enc, logger)

			rows, err := harness.Evaluate(cmd.Context())
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "wrote %d rows to %s\n",
				len(rows), filepath.Join(experimentDir, "results_"+strategy.Name()+".tsv"))
			return nil
		},
	}

	cmd.Flags().StringVar(&flagStrategy, "strategy", "alignment", "Scoring strategy: alignment or drift")
	cmd.Flags().IntVar(&flagDriftRef, "drift-reference", 0, "Reference cycle index for the drift strategy")
	addCommonFlags(cmd)
	return cmd
}

func addCommonFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&flagExperiment, "experiment", "default-experiment", "Experiment name")
	cmd.Flags().StringVar(&flagOutputRoot, "output-root", "data/results", "Directory holding experiment folders")
}
