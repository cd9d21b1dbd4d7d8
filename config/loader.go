package config

import (
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Default values applied after a successful load.
const (
	DefaultPort           = 16181
	DefaultQueueSize      = 16
	DefaultRetryAttempts  = 3
	DefaultRetryBackoffMS = 50
	DefaultBackend        = "memory"
)

// Load reads cfg from the given path, falling back to config.yml in
// the working directory when path is empty.
func Load(path string) (AppConfig, error) {
	paths := []string{path, "config.yml", "./deploy/config.yml"}
	var data []byte
	var err error
	for _, p := range paths {
		if p == "" {
			continue
		}
		data, err = os.ReadFile(p)
		if err == nil {
			break
		}
	}
	if err != nil {
		return AppConfig{}, err
	}
	return Parse(data)
}

// Parse unmarshals, validates and defaults a raw YAML document.
func Parse(data []byte) (AppConfig, error) {
	var cfg AppConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return AppConfig{}, err
	}
	v := validator.New()
	if err := v.Struct(cfg); err != nil {
		return AppConfig{}, err
	}
	applyDefaults(&cfg)
	return cfg, nil
}

func applyDefaults(cfg *AppConfig) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = DefaultPort
	}
	if cfg.Broadcast.QueueSize == 0 {
		cfg.Broadcast.QueueSize = DefaultQueueSize
	}
	if cfg.Ingest.RetryAttempts == 0 {
		cfg.Ingest.RetryAttempts = DefaultRetryAttempts
	}
	if cfg.Ingest.RetryBackoffMS == 0 {
		cfg.Ingest.RetryBackoffMS = DefaultRetryBackoffMS
	}
	if cfg.Storage.Backend == "" {
		cfg.Storage.Backend = DefaultBackend
	}
}
