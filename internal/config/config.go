package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	HTTPAddr     string        `env:"HTTP_ADDR" envDefault:":8080"`
	ReadTimeout  time.Duration `env:"HTTP_READ_TIMEOUT" envDefault:"15s"`
	WriteTimeout time.Duration `env:"HTTP_WRITE_TIMEOUT" envDefault:"90s"`
	IdleTimeout  time.Duration `env:"HTTP_IDLE_TIMEOUT" envDefault:"120s"`

	CORSOrigins    []string `env:"CORS_ORIGINS" envSeparator:","`
	RateLimitRPS   float64  `env:"RATE_LIMIT_RPS" envDefault:"10"`
	RateLimitBurst int      `env:"RATE_LIMIT_BURST" envDefault:"20"`
	MetricsEnabled bool     `env:"METRICS_ENABLED" envDefault:"true"`
	MaxUploadMB    int64    `env:"MAX_UPLOAD_MB" envDefault:"16"`

	// Per-request workspaces live under ScratchDir and are swept once older than ScratchMaxAge.
	ScratchDir    string        `env:"SCRATCH_DIR"`
	ScratchMaxAge time.Duration `env:"SCRATCH_MAX_AGE" envDefault:"15m"`

	WordsFile  string `env:"WORDS_FILE"`
	WordsWatch bool   `env:"WORDS_WATCH" envDefault:"true"`

	Transcoder        string        `env:"TRANSCODER" envDefault:"ffmpeg"`
	TranscoderCommand string        `env:"TRANSCODER_COMMAND"`
	TranscodeTimeout  time.Duration `env:"TRANSCODE_TIMEOUT" envDefault:"30s"`

	STTProvider string        `env:"STT_PROVIDER" envDefault:"whisper"`
	// STTURL overrides the provider endpoint. Empty uses the provider's default.
	STTURL      string        `env:"STT_URL"`
	STTModel    string        `env:"STT_MODEL"`
	STTAPIKey   string        `env:"STT_API_KEY"`
	STTLanguage string        `env:"STT_LANGUAGE" envDefault:"ar"`
	STTTimeout  time.Duration `env:"STT_TIMEOUT" envDefault:"30s"`
	STTPrompt   string        `env:"STT_PROMPT"`

	// STTTemperature is the sampling temperature sent to providers that accept one.
	STTTemperature float64 `env:"STT_TEMPERATURE" envDefault:"0"`

	MatchThreshold    float64 `env:"MATCH_THRESHOLD" envDefault:"0.80"`
	MatchRules        string  `env:"MATCH_RULES" envDefault:"arabic"`
	MatchLengthAdjust bool    `env:"MATCH_LENGTH_ADJUST" envDefault:"true"`

	// DatabaseURL switches session/progress records to PostgreSQL. Empty keeps them in memory.
	DatabaseURL string `env:"DATABASE_URL"`

	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
}

// Overrides holds CLI flag values that take priority over env vars.
type Overrides struct {
	EnvFile     string
	HTTPAddr    string
	LogLevel    string
	DatabaseURL string
	WordsFile   string
	ScratchDir  string
	STTProvider string
}

// Load reads configuration from .env file, environment variables, and CLI overrides.
// Priority: CLI flags > environment variables > .env file > struct defaults.
func Load(overrides Overrides) (*Config, error) {
	// Load .env file (silent if missing)
	envFile := overrides.EnvFile
	if envFile == "" {
		envFile = ".env"
	}
	if _, err := os.Stat(envFile); err == nil {
		_ = godotenv.Load(envFile)
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}

	// Apply CLI overrides (non-empty values win)
	if overrides.HTTPAddr != "" {
		cfg.HTTPAddr = overrides.HTTPAddr
	}
	if overrides.LogLevel != "" {
		cfg.LogLevel = overrides.LogLevel
	}
	if overrides.DatabaseURL != "" {
		cfg.DatabaseURL = overrides.DatabaseURL
	}
	if overrides.WordsFile != "" {
		cfg.WordsFile = overrides.WordsFile
	}
	if overrides.ScratchDir != "" {
		cfg.ScratchDir = overrides.ScratchDir
	}
	if overrides.STTProvider != "" {
		cfg.STTProvider = overrides.STTProvider
	}

	if cfg.ScratchDir == "" {
		cfg.ScratchDir = filepath.Join(os.TempDir(), "anomia-engine")
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.MatchThreshold < 0 || c.MatchThreshold > 1 {
		return fmt.Errorf("MATCH_THRESHOLD must be within [0,1], got %v", c.MatchThreshold)
	}
	if c.MaxUploadMB < 1 {
		return fmt.Errorf("MAX_UPLOAD_MB must be >= 1, got %d", c.MaxUploadMB)
	}
	if c.TranscodeTimeout <= 0 {
		return fmt.Errorf("TRANSCODE_TIMEOUT must be positive")
	}
	if c.STTTimeout <= 0 {
		return fmt.Errorf("STT_TIMEOUT must be positive")
	}
	if c.STTTemperature < 0 || c.STTTemperature > 1 {
		return fmt.Errorf("STT_TEMPERATURE must be within [0,1], got %v", c.STTTemperature)
	}
	switch c.STTProvider {
	case "whisper", "deepinfra", "elevenlabs", "openai":
	default:
		return fmt.Errorf("unknown STT_PROVIDER %q (want whisper, deepinfra, elevenlabs or openai)", c.STTProvider)
	}
	return nil
}

// MaxUploadBytes returns the upload size limit in bytes.
func (c *Config) MaxUploadBytes() int64 {
	return c.MaxUploadMB << 20
}
