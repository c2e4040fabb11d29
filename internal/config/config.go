package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"backend/internal/models"
)

// Config holds the application's configuration.
type Config struct {
	Database struct {
		URL string `yaml:"url"`
	} `yaml:"database"`
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`
	Auth struct {
		JWTSecret     string `yaml:"jwt_secret"`
		TokenTTLHours int    `yaml:"token_ttl_hours"`
	} `yaml:"auth"`
	LLM struct {
		Providers []ProviderConfig `yaml:"providers"`
		// Hard ceiling for a single orchestration run, including the
		// paced message inserts.
		RunTimeoutMinutes int `yaml:"run_timeout_minutes"`
	} `yaml:"llm"`
	Discovery struct {
		APIKey     string   `yaml:"api_key"`
		MaxResults int      `yaml:"max_results"`
		Queries    []string `yaml:"queries"`
	} `yaml:"discovery"`
	VectorStore struct {
		Enabled    bool   `yaml:"enabled"`
		APIKey     string `yaml:"api_key"`
		Model      string `yaml:"model"`
		Dimensions int    `yaml:"dimensions"`
		MatchCount int    `yaml:"match_count"`
	} `yaml:"vector_store"`
	Worker struct {
		EnabledDefault bool   `yaml:"enabled_default"`
		TickSeconds    int64  `yaml:"tick_seconds"`
		RunWindow      string `yaml:"run_window"`     // "06:00"
		MachinePrefix  string `yaml:"machine_prefix"` // e.g. "[SCOUT]"
	} `yaml:"worker"`
	Telegram struct {
		Enabled   bool   `yaml:"enabled"`
		BotToken  string `yaml:"bot_token"`
		ChannelID int64  `yaml:"channel_id"`
	} `yaml:"telegram"`
	Personas []models.Persona `yaml:"personas"`
}

// ProviderConfig describes one LLM provider in the fallback chain.
type ProviderConfig struct {
	Type              string `yaml:"type"` // "gemini" or "openrouter"
	APIKey            string `yaml:"api_key"`
	ModelName         string `yaml:"model_name"`
	MaxRetries        int    `yaml:"max_retries"`
	RetryDelaySeconds int64  `yaml:"retry_delay_seconds"`
	RequestsPerMinute int    `yaml:"requests_per_minute"`
}

// RetryDelay converts the configured delay into a duration.
func (p ProviderConfig) RetryDelay() time.Duration {
	return time.Duration(p.RetryDelaySeconds) * time.Second
}

// LoadConfig reads configuration from the specified YAML file.
func LoadConfig(configPath string) (*Config, error) {
	config := &Config{}

	file, err := os.Open(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer file.Close()

	decoder := yaml.NewDecoder(file)
	if err := decoder.Decode(config); err != nil {
		return nil, fmt.Errorf("failed to decode config file: %w", err)
	}

	applyDefaults(config)
	return config, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Port == "" {
		cfg.Server.Port = ":8080"
	}
	if cfg.Auth.TokenTTLHours == 0 {
		cfg.Auth.TokenTTLHours = 24
	}
	if cfg.LLM.RunTimeoutMinutes == 0 {
		cfg.LLM.RunTimeoutMinutes = 10
	}
	if cfg.Discovery.MaxResults == 0 {
		cfg.Discovery.MaxResults = 5
	}
	if cfg.VectorStore.Model == "" {
		cfg.VectorStore.Model = "text-embedding-004"
	}
	if cfg.VectorStore.Dimensions == 0 {
		cfg.VectorStore.Dimensions = 768
	}
	if cfg.VectorStore.MatchCount == 0 {
		cfg.VectorStore.MatchCount = 3
	}
	if cfg.Worker.TickSeconds == 0 {
		cfg.Worker.TickSeconds = 60
	}
	if cfg.Worker.RunWindow == "" {
		cfg.Worker.RunWindow = "06:00"
	}
	if cfg.Worker.MachinePrefix == "" {
		cfg.Worker.MachinePrefix = "[SCOUT]"
	}
}
