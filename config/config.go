package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

const (
	SecretSourceEnv   = "env"
	SecretSourceRedis = "redis"

	DefaultProgressTTL = 30 * 24 * time.Hour
)

// Config holds all runtime settings. Answer secrets never live here.
type Config struct {
	Server struct {
		Addr         string   `yaml:"addr"`
		StaticDir    string   `yaml:"static_dir"`
		PhotosDir    string   `yaml:"photos_dir"`
		AllowOrigins []string `yaml:"allow_origins"`
	} `yaml:"server"`

	Questions struct {
		Path string `yaml:"path"`
	} `yaml:"questions"`

	Secrets struct {
		Source  string `yaml:"source"`
		SaltEnv string `yaml:"salt_env"`
	} `yaml:"secrets"`

	Redis struct {
		URL string `yaml:"url"`
	} `yaml:"redis"`

	Progress struct {
		TTL            time.Duration `yaml:"ttl"`
		EnforceOrder   bool          `yaml:"enforce_order"`
		SigningKeyFile string        `yaml:"signing_key_file"`
	} `yaml:"progress"`

	Events struct {
		Enabled bool `yaml:"enabled"`
	} `yaml:"events"`

	Log LogConfig `yaml:"log"`
}

// Default returns a configuration that serves ./data/questions.yaml on :3000
func Default() *Config {
	var cfg Config
	cfg.Server.Addr = ":3000"
	cfg.Questions.Path = "data/questions.yaml"
	cfg.Secrets.Source = SecretSourceEnv
	cfg.Secrets.SaltEnv = "ANSWER_SALT"
	cfg.Progress.TTL = DefaultProgressTTL
	cfg.Events.Enabled = true
	cfg.Log = LogConfig{Level: "info", Format: "text"}
	return &cfg
}

// Load reads the YAML file at path (optional), applies environment
// overrides and validates the result
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to unmarshal yaml: %w", err)
		}
	}

	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// ApplyEnv overrides file settings with deployment environment variables
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup("PORT"); ok && v != "" {
		c.Server.Addr = ":" + v
	}
	if v, ok := lookup("REDIS_URL"); ok && v != "" {
		c.Redis.URL = v
	}
	if v, ok := lookup("KEEPSAKE_QUESTIONS"); ok && v != "" {
		c.Questions.Path = v
	}
	if v, ok := lookup("KEEPSAKE_SECRET_SOURCE"); ok && v != "" {
		c.Secrets.Source = v
	}
	if v, ok := lookup("KEEPSAKE_SIGNING_KEY_FILE"); ok && v != "" {
		c.Progress.SigningKeyFile = v
	}
	if v, ok := lookup("KEEPSAKE_STATIC_DIR"); ok && v != "" {
		c.Server.StaticDir = v
	}
	if v, ok := lookup("KEEPSAKE_ENFORCE_ORDER"); ok && v != "" {
		enforce, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid KEEPSAKE_ENFORCE_ORDER %q: %w", v, err)
		}
		c.Progress.EnforceOrder = enforce
	}
	if v, ok := lookup("LOG_LEVEL"); ok && v != "" {
		c.Log.Level = v
	}
	return nil
}

// Validate checks that the configuration can be served
func (c *Config) Validate() error {
	var errs []error

	if strings.TrimSpace(c.Server.Addr) == "" {
		errs = append(errs, errors.New("server.addr is required"))
	}
	if strings.TrimSpace(c.Questions.Path) == "" {
		errs = append(errs, errors.New("questions.path is required"))
	}

	switch c.Secrets.Source {
	case SecretSourceEnv:
		if c.Secrets.SaltEnv == "" {
			errs = append(errs, errors.New("secrets.salt_env is required for the env source"))
		}
	case SecretSourceRedis:
		if c.Redis.URL == "" {
			errs = append(errs, errors.New("redis.url is required for the redis secret source"))
		}
	default:
		errs = append(errs, fmt.Errorf("secrets.source must be %q or %q, got %q", SecretSourceEnv, SecretSourceRedis, c.Secrets.Source))
	}

	if c.Progress.TTL <= 0 {
		errs = append(errs, errors.New("progress.ttl must be positive"))
	}

	if _, err := logrus.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, fmt.Errorf("log.level: %w", err))
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		errs = append(errs, fmt.Errorf("log.format must be text or json, got %q", c.Log.Format))
	}

	return errors.Join(errs...)
}
