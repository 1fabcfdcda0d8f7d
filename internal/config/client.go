package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// ClientConfig is the resolved configuration of the shopctl command line client.
type ClientConfig struct {
	APIURL   string
	UserID   string
	Timeout  time.Duration
	CacheTTL time.Duration

	LogLevel string
}

// clientFile mirrors the YAML layout of shopctl.yaml.
type clientFile struct {
	API struct {
		URL     string `yaml:"url"`
		Timeout string `yaml:"timeout"`
	} `yaml:"api"`
	User struct {
		ID string `yaml:"id"`
	} `yaml:"user"`
	Cache struct {
		TTL string `yaml:"ttl"`
	} `yaml:"cache"`
	Log struct {
		Level string `yaml:"level"`
	} `yaml:"log"`
}

// LoadClient resolves configuration in order: defaults, YAML file, environment.
// A missing file is not an error; an empty path skips the file.
func LoadClient(path string) (*ClientConfig, error) {
	cfg := &ClientConfig{
		APIURL:   "http://localhost:8080",
		Timeout:  10 * time.Second,
		CacheTTL: 30 * time.Second,
		LogLevel: "warn",
	}

	if path != "" {
		if err := cfg.overlayFile(path); err != nil {
			return nil, err
		}
	}

	cfg.APIURL = getenv("SHOP_API_URL", cfg.APIURL)
	cfg.UserID = getenv("SHOP_USER_ID", cfg.UserID)
	cfg.LogLevel = getenv("SHOP_LOG_LEVEL", cfg.LogLevel)

	var err error
	if cfg.Timeout, err = durationEnv("SHOP_TIMEOUT", cfg.Timeout); err != nil {
		return nil, err
	}
	if cfg.CacheTTL, err = durationEnv("SHOP_CACHE_TTL", cfg.CacheTTL); err != nil {
		return nil, err
	}

	if cfg.APIURL == "" {
		return nil, fmt.Errorf("api url must be set")
	}
	return cfg, nil
}

func (c *ClientConfig) overlayFile(path string) error {
	raw, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}

	var f clientFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}

	if f.API.URL != "" {
		c.APIURL = f.API.URL
	}
	if f.User.ID != "" {
		c.UserID = f.User.ID
	}
	if f.Log.Level != "" {
		c.LogLevel = f.Log.Level
	}
	if f.API.Timeout != "" {
		d, err := time.ParseDuration(f.API.Timeout)
		if err != nil {
			return fmt.Errorf("api.timeout: %w", err)
		}
		c.Timeout = d
	}
	if f.Cache.TTL != "" {
		d, err := time.ParseDuration(f.Cache.TTL)
		if err != nil {
			return fmt.Errorf("cache.ttl: %w", err)
		}
		c.CacheTTL = d
	}
	return nil
}
