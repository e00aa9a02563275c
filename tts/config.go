package tts

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v11"
	homedir "github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Config is the full configuration surface the core consumes. It is owned
// by the host: loaded from the YAML config file, overlaid with environment
// variables and finally with CLI flags.
type Config struct {
	// Engine selects the default backend when the requested voice does
	// not pin one.
	Engine string `yaml:"engine" mapstructure:"engine"`

	// Voice is the default voice identifier.
	Voice string `yaml:"voice" mapstructure:"voice"`

	// WPM is the default speech rate in words per minute.
	WPM int `yaml:"wpm" mapstructure:"wpm"`

	// Debug enables debug logging.
	Debug bool `yaml:"debug" mapstructure:"debug" env:"READANYTHING_DEBUG"`

	Cache    CacheConfig    `yaml:"cache" mapstructure:"cache"`
	Timeouts TimeoutConfig  `yaml:"timeouts" mapstructure:"timeouts"`
	GTTS     GTTSConfig     `yaml:"gtts" mapstructure:"gtts"`
	Edge     EdgeConfig     `yaml:"edge" mapstructure:"edge"`
	OpenAI   OpenAIConfig   `yaml:"openai" mapstructure:"openai"`
	Piper    PiperConfig    `yaml:"piper" mapstructure:"piper"`
}

// CacheConfig controls the synthesized-audio cache.
type CacheConfig struct {
	Enabled   bool   `yaml:"enabled" mapstructure:"enabled"`
	Dir       string `yaml:"dir" mapstructure:"dir"`
	MaxSizeMB int    `yaml:"max_size_mb" mapstructure:"max_size_mb"`
}

// TimeoutConfig bounds every suspension point in the core.
type TimeoutConfig struct {
	Probe     time.Duration `yaml:"probe" mapstructure:"probe"`
	Discovery time.Duration `yaml:"discovery" mapstructure:"discovery"`
	Synthesis time.Duration `yaml:"synthesis" mapstructure:"synthesis"`
	Stop      time.Duration `yaml:"stop" mapstructure:"stop"`
}

// GTTSConfig holds Google TTS settings.
type GTTSConfig struct {
	Language string `yaml:"language" mapstructure:"language"`
	Binary   string `yaml:"binary" mapstructure:"binary"`
}

// EdgeConfig holds Edge TTS settings.
type EdgeConfig struct {
	Voice string `yaml:"voice" mapstructure:"voice"`
}

// OpenAIConfig holds OpenAI speech settings. The API key is never written
// to the config file; it comes from the environment.
type OpenAIConfig struct {
	APIKey string `yaml:"-" mapstructure:"-" env:"OPENAI_API_KEY"`
	Model  string `yaml:"model" mapstructure:"model"`
}

// PiperConfig holds Piper settings. ModelDirs is an ordered list of
// candidate directories; the first directory containing a model of a given
// name wins.
type PiperConfig struct {
	Binary    string   `yaml:"binary" mapstructure:"binary"`
	ModelDirs []string `yaml:"model_dirs" mapstructure:"model_dirs"`
}

// DefaultConfig returns the configuration used when no file exists.
func DefaultConfig() Config {
	return Config{
		Engine: string(EngineSystem),
		WPM:    BaselineWPM,
		Cache: CacheConfig{
			Enabled:   true,
			MaxSizeMB: 100,
		},
		Timeouts: TimeoutConfig{
			Probe:     3 * time.Second,
			Discovery: 8 * time.Second,
			Synthesis: 30 * time.Second,
			Stop:      2 * time.Second,
		},
		GTTS: GTTSConfig{Language: "en"},
		Edge: EdgeConfig{Voice: "en-US-AriaNeural"},
		OpenAI: OpenAIConfig{
			Model: "tts-1",
		},
		Piper: PiperConfig{
			Binary: "piper",
			ModelDirs: []string{
				"~/.local/share/piper/voices",
				"~/.local/share/readanything/voices",
				"/usr/share/piper/voices",
			},
		},
	}
}

// LoadConfig unmarshals the viper tree over the defaults and then applies
// environment overrides. Relative and ~ paths are expanded.
func LoadConfig(v *viper.Viper) (Config, error) {
	cfg := DefaultConfig()
	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("unable to parse configuration: %w", err)
	}
	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("unable to parse environment: %w", err)
	}
	if err := cfg.expandPaths(); err != nil {
		return cfg, err
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate rejects values the core cannot work with.
func (c *Config) Validate() error {
	if c.WPM != 0 && (c.WPM < MinWPM || c.WPM > MaxWPM) {
		return fmt.Errorf("wpm must be between %d and %d, got %d", MinWPM, MaxWPM, c.WPM)
	}
	if c.Cache.MaxSizeMB < 0 {
		return fmt.Errorf("cache max_size_mb must not be negative, got %d", c.Cache.MaxSizeMB)
	}
	if c.GTTS.Language != "" && (len(c.GTTS.Language) < 2 || len(c.GTTS.Language) > 5) {
		return fmt.Errorf("gtts language code must be 2-5 characters, got %q", c.GTTS.Language)
	}
	return nil
}

// Save writes the configuration as YAML.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("unable to marshal configuration: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("unable to create config directory: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

func (c *Config) expandPaths() error {
	if c.Cache.Dir != "" {
		dir, err := homedir.Expand(c.Cache.Dir)
		if err != nil {
			return fmt.Errorf("invalid cache dir: %w", err)
		}
		c.Cache.Dir = dir
	}
	for i, d := range c.Piper.ModelDirs {
		dir, err := homedir.Expand(d)
		if err != nil {
			return fmt.Errorf("invalid piper model dir %q: %w", d, err)
		}
		c.Piper.ModelDirs[i] = dir
	}
	return nil
}
