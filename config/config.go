// Package config loads settings from flags, environment, an optional .env
// file and an optional YAML file, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	envPrefix = "MOCKINTERVIEW"
	fileName  = "mockinterview"
)

var Difficulties = []string{"Easy", "Medium", "Hard"}

type SpeechConfig struct {
	Provider string `mapstructure:"provider"`
	Model    string `mapstructure:"model"`
	Device   string `mapstructure:"device"`
}

type VoiceConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Command string `mapstructure:"command"`
}

type Config struct {
	BackendURL     string        `mapstructure:"backend_url"`
	Domain         string        `mapstructure:"domain"`
	Domains        []string      `mapstructure:"domains"`
	Difficulty     string        `mapstructure:"difficulty"`
	SilenceDelay   time.Duration `mapstructure:"silence_delay"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	ReportDir      string        `mapstructure:"report_dir"`
	Language       string        `mapstructure:"language"`
	DeepgramAPIKey string        `mapstructure:"deepgram_api_key"`
	Speech         SpeechConfig  `mapstructure:"speech"`
	Voice          VoiceConfig   `mapstructure:"voice"`

	// File is the config file that was read, if any.
	File string `mapstructure:"-"`
}

// Options controls where Load looks. Flags maps config keys to the cobra
// flag names that override them.
type Options struct {
	File     string
	EnvFile  string
	Flags    *pflag.FlagSet
	FlagKeys map[string]string
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("backend_url", "http://localhost:8080")
	v.SetDefault("domain", "Java Microservices")
	v.SetDefault("domains", []string{
		"Java Microservices",
		"Go Backend",
		"Python Data Engineering",
		"Frontend React",
		"DevOps & SRE",
		"System Design",
	})
	v.SetDefault("difficulty", "Hard")
	v.SetDefault("silence_delay", "2500ms")
	v.SetDefault("request_timeout", "120s")
	v.SetDefault("report_dir", ".")
	v.SetDefault("language", "en")
	v.SetDefault("deepgram_api_key", "")
	v.SetDefault("speech.provider", "deepgram")
	v.SetDefault("speech.model", "nova-3")
	v.SetDefault("speech.device", "")
	v.SetDefault("voice.enabled", true)
	v.SetDefault("voice.command", "")
}

func Load(opts Options) (*Config, error) {
	envFile := opts.EnvFile
	if envFile == "" {
		envFile = ".env"
	}
	// .env never overrides variables already set in the environment
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load %s: %w", envFile, err)
	}

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv("deepgram_api_key", envPrefix+"_DEEPGRAM_API_KEY", "DEEPGRAM_API_KEY"); err != nil {
		return nil, err
	}

	if opts.File != "" {
		v.SetConfigFile(opts.File)
	} else {
		v.SetConfigName(fileName)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if dir, err := os.UserConfigDir(); err == nil {
			v.AddConfigPath(filepath.Join(dir, fileName))
		}
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if opts.File != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	if opts.Flags != nil {
		for key, name := range opts.FlagKeys {
			f := opts.Flags.Lookup(name)
			if f == nil {
				continue
			}
			if err := v.BindPFlag(key, f); err != nil {
				return nil, fmt.Errorf("bind flag %s: %w", name, err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.File = v.ConfigFileUsed()
	cfg.normalize()
	return &cfg, nil
}

func (c *Config) normalize() {
	c.BackendURL = strings.TrimRight(strings.TrimSpace(c.BackendURL), "/")
	c.Domain = strings.TrimSpace(c.Domain)
	for _, d := range Difficulties {
		if strings.EqualFold(c.Difficulty, d) {
			c.Difficulty = d
		}
	}
	if c.Domain != "" && !slices.Contains(c.Domains, c.Domain) {
		c.Domains = append([]string{c.Domain}, c.Domains...)
	}
}

func (c *Config) Validate() error {
	var errs []error
	u, err := url.Parse(c.BackendURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		errs = append(errs, fmt.Errorf("backend_url %q must be an absolute http(s) URL", c.BackendURL))
	}
	if c.Domain == "" {
		errs = append(errs, errors.New("domain must not be empty"))
	}
	if !slices.Contains(Difficulties, c.Difficulty) {
		errs = append(errs, fmt.Errorf("difficulty %q must be one of %s", c.Difficulty, strings.Join(Difficulties, ", ")))
	}
	if c.SilenceDelay <= 0 {
		errs = append(errs, errors.New("silence_delay must be positive"))
	}
	if c.RequestTimeout <= 0 {
		errs = append(errs, errors.New("request_timeout must be positive"))
	}
	return errors.Join(errs...)
}

// SpeechEnabled reports whether live transcription is configured.
func (c *Config) SpeechEnabled() bool {
	return !strings.EqualFold(c.Speech.Provider, "none") && c.DeepgramAPIKey != ""
}
