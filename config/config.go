// Package config holds the run configuration for the refinement pipeline.
// Values come from the environment (caarlos0/env), can be overridden with
// functional options, and are validated before any cycle runs.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"

	"github.com/vispera/promptloop/utils"
)

type Config struct {
	// Experiment
	ExperimentName        string `env:"PL_EXPERIMENT_NAME" envDefault:"default-experiment" validate:"required"`
	OutputRoot            string `env:"PL_OUTPUT_ROOT" envDefault:"data/results" validate:"required"`
	MaxCycles             int    `env:"PL_MAX_CYCLES" envDefault:"5" validate:"min=1"`
	TerminateOnSimilarity bool   `env:"PL_TERMINATE_ON_SIMILARITY" envDefault:"false"`

	// Language model backend
	Provider string `env:"PL_LLM_PROVIDER" envDefault:"openai" validate:"required"`
	Model    string `env:"PL_LLM_MODEL" envDefault:"gpt-4o-mini" validate:"required"`
	APIKeys  map[string]string

	// Collaborator backends
	ImageGenerator    string `env:"PL_IMAGE_GENERATOR" envDefault:"stablediffusion" validate:"required"`
	Captioner         string `env:"PL_CAPTIONER" envDefault:"blip" validate:"required"`
	GeneratorEndpoint string `env:"PL_GENERATOR_ENDPOINT" envDefault:"http://localhost:7860"`
	CaptionerEndpoint string `env:"PL_CAPTIONER_ENDPOINT" envDefault:"http://localhost:5000"`
	EncoderEndpoint   string `env:"PL_ENCODER_ENDPOINT" envDefault:"http://localhost:8081"`
	EncoderModel      string `env:"PL_ENCODER_MODEL" envDefault:"ViT-B-32"`

	// Template overrides; empty means the built-in defaults.
	RoleTemplateFile       string `env:"PL_ROLE_TEMPLATE"`
	RewriteTemplateFile    string `env:"PL_REWRITE_TEMPLATE"`
	SimilarityTemplateFile string `env:"PL_SIMILARITY_TEMPLATE"`

	// Similarity classifier: "loose" substring match or "strict" schema JSON.
	Classifier string `env:"PL_CLASSIFIER" envDefault:"loose" validate:"oneof=loose strict"`

	// HTTP behavior shared by all collaborator clients.
	Timeout        time.Duration `env:"PL_TIMEOUT" envDefault:"60s"`
	MaxRetries     int           `env:"PL_MAX_RETRIES" envDefault:"3" validate:"min=0"`
	RetryDelay     time.Duration `env:"PL_RETRY_DELAY" envDefault:"2s"`
	RequestsPerMin int           `env:"PL_REQUESTS_PER_MIN" envDefault:"60" validate:"min=1"`

	// Evaluation
	Strategy       string `env:"PL_EVAL_STRATEGY" envDefault:"alignment" validate:"oneof=alignment drift"`
	DriftReference int    `env:"PL_DRIFT_REFERENCE" envDefault:"0" validate:"min=0"`

	LogLevel utils.LogLevel `env:"PL_LOG_LEVEL" envDefault:"WARN"`

	logger utils.Logger
}

// LoadConfig builds a Config from the environment and collects provider API
// keys from *_API_KEY variables.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		APIKeys: make(map[string]string),
	}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}

	loadAPIKeys(cfg)
	return cfg, nil
}

func loadAPIKeys(cfg *Config) {
	for _, envVar := range os.Environ() {
		key, value, found := strings.Cut(envVar, "=")
		if found && strings.HasSuffix(strings.ToUpper(key), "_API_KEY") {
			provider := strings.TrimSuffix(strings.ToUpper(key), "_API_KEY")
			cfg.APIKeys[strings.ToLower(provider)] = value
		}
	}
}

// Validate fails fast on configuration errors, before any cycle runs.
func (c *Config) Validate() error {
	v := validator.New()
	if err := v.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// Logger returns the configured logger, creating a default one on first use.
func (c *Config) Logger() utils.Logger {
	if c.logger == nil {
		c.logger = utils.NewLogger(c.LogLevel)
	}
	return c.logger
}

type ConfigOption func(*Config)

func NewConfig() *Config {
	return &Config{
		ExperimentName: "default-experiment",
		OutputRoot:     "data/results",
		MaxCycles:      5,
		Provider:       "openai",
		Model:          "gpt-4o-mini",
		ImageGenerator: "stablediffusion",
		Captioner:      "blip",
		Classifier:     "loose",
		Strategy:       "alignment",
		Timeout:        60 * time.Second,
		MaxRetries:     3,
		RetryDelay:     2 * time.Second,
		RequestsPerMin: 60,
		APIKeys:        make(map[string]string),
		LogLevel:       utils.LogLevelWarn,
	}
}

// ApplyOptions applies the given options to the config in order.
func ApplyOptions(cfg *Config, opts ...ConfigOption) {
	for _, opt := range opts {
		opt(cfg)
	}
}

func SetExperimentName(name string) ConfigOption {
	return func(c *Config) { c.ExperimentName = name }
}

func SetOutputRoot(root string) ConfigOption {
	return func(c *Config) { c.OutputRoot = root }
}

func SetMaxCycles(n int) ConfigOption {
	return func(c *Config) {
		if n < 1 {
			n = 1
		}
		c.MaxCycles = n
	}
}

func SetTerminateOnSimilarity(enabled bool) ConfigOption {
	return func(c *Config) { c.TerminateOnSimilarity = enabled }
}

func SetProvider(provider string) ConfigOption {
	return func(c *Config) { c.Provider = provider }
}

func SetModel(model string) ConfigOption {
	return func(c *Config) { c.Model = model }
}

func SetAPIKey(apiKey string) ConfigOption {
	return func(c *Config) {
		if c.APIKeys == nil {
			c.APIKeys = make(map[string]string)
		}
		c.APIKeys[c.Provider] = apiKey
	}
}

func SetImageGenerator(name string) ConfigOption {
	return func(c *Config) { c.ImageGenerator = name }
}

func SetCaptioner(name string) ConfigOption {
	return func(c *Config) { c.Captioner = name }
}

func SetClassifier(name string) ConfigOption {
	return func(c *Config) { c.Classifier = name }
}

func SetStrategy(name string) ConfigOption {
	return func(c *Config) { c.Strategy = name }
}

func SetDriftReference(idx int) ConfigOption {
	return func(c *Config) { c.DriftReference = idx }
}

func SetTimeout(timeout time.Duration) ConfigOption {
	return func(c *Config) { c.Timeout = timeout }
}

func SetMaxRetries(maxRetries int) ConfigOption {
	return func(c *Config) { c.MaxRetries = maxRetries }
}

func SetRetryDelay(delay time.Duration) ConfigOption {
	return func(c *Config) { c.RetryDelay = delay }
}

func SetLogLevel(level utils.LogLevel) ConfigOption {
	return func(c *Config) { c.LogLevel = level }
}

func SetLogger(logger utils.Logger) ConfigOption {
	return func(c *Config) { c.logger = logger }
}
