package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"linkbrief/internal/summarizer"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	Addr string `env:"ADDR" envDefault:":8080"`

	LLMProvider     string `env:"LLM_PROVIDER"      envDefault:"groq"`
	LLMModel        string `env:"LLM_MODEL"`
	LLMBaseURL      string `env:"LLM_BASE_URL"`
	MaxWords        int    `env:"MAX_WORDS"         envDefault:"300"`
	PromptTemplate  string `env:"PROMPT_TEMPLATE"`
	MaxContentChars int    `env:"MAX_CONTENT_CHARS" envDefault:"24000"`

	FetchTimeout time.Duration `env:"FETCH_TIMEOUT" envDefault:"20s"`

	LogLevel  string `env:"LOG_LEVEL"  envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`

	TelegramToken string  `env:"TELEGRAM_TOKEN"`
	AllowedUsers  []int64 `env:"ALLOWED_USERS"`
	// LLMAPIKey is used by the Telegram front only. Browser users bring their own key.
	LLMAPIKey string `env:"LLM_API_KEY"`
}

// Load reads an optional .env file and then the process environment.
func Load(envFiles ...string) (Config, error) {
	if err := godotenv.Load(envFiles...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env file: %w", err)
	}

	return Parse(env.Options{})
}

// Parse reads the configuration from opts (the process environment when opts.Environment is nil).
func Parse(opts env.Options) (Config, error) {
	cfg, err := env.ParseAsWithOptions[Config](opts)
	if err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}

	cfg.LLMProvider = strings.ToLower(strings.TrimSpace(cfg.LLMProvider))

	if err = cfg.validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func (c Config) validate() error {
	var errs []error

	if c.MaxWords <= 0 {
		errs = append(errs, fmt.Errorf("MAX_WORDS must be positive (got %d)", c.MaxWords))
	}

	if c.MaxContentChars <= 0 {
		errs = append(errs, fmt.Errorf("MAX_CONTENT_CHARS must be positive (got %d)", c.MaxContentChars))
	}

	if c.FetchTimeout <= 0 {
		errs = append(errs, fmt.Errorf("FETCH_TIMEOUT must be positive (got %s)", c.FetchTimeout))
	}

	switch c.LLMProvider {
	case summarizer.ProviderGroq, summarizer.ProviderOpenAI, summarizer.ProviderAnthropic:
	default:
		errs = append(errs, fmt.Errorf("LLM_PROVIDER %q is not supported", c.LLMProvider))
	}

	return errors.Join(errs...)
}

func (c Config) Summarizer() summarizer.Config {
	return summarizer.Config{
		Provider:        c.LLMProvider,
		Model:           c.LLMModel,
		BaseURL:         c.LLMBaseURL,
		MaxWords:        c.MaxWords,
		PromptTemplate:  c.PromptTemplate,
		MaxContentChars: c.MaxContentChars,
	}
}

func (c Config) TelegramEnabled() bool {
	return c.TelegramToken != ""
}
