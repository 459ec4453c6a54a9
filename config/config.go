// Package config loads service configuration from environment variables,
// with an optional .env file for local development.
package config

import (
	"fmt"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config is the full service configuration.
type Config struct {
	App    AppConfig
	Server ServerConfig
	Store  StoreConfig
	Model  ModelConfig
}

// AppConfig holds service identity and logging settings.
type AppConfig struct {
	Name     string `envconfig:"APP_NAME" default:"agentgraph"`
	Env      string `envconfig:"APP_ENV" default:"development"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
}

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	Host string `envconfig:"SERVER_HOST" default:"0.0.0.0"`
	Port int    `envconfig:"SERVER_PORT" default:"8080"`
}

// Addr returns the listen address.
func (c ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// StoreConfig selects the conversation store backend. An empty SQLitePath
// keeps everything in memory.
type StoreConfig struct {
	SQLitePath string `envconfig:"SQLITE_PATH"`
}

// ModelConfig holds model provider settings. Provider keys fall back to the
// SDK's own environment lookup when empty.
type ModelConfig struct {
	Provider     string `envconfig:"MODEL_PROVIDER" default:"openai"`
	Name         string `envconfig:"MODEL_NAME" default:"gpt-4o-mini"`
	OpenAIKey    string `envconfig:"OPENAI_API_KEY"`
	AnthropicKey string `envconfig:"ANTHROPIC_API_KEY"`
}

// Load reads configuration from environment variables. A .env file in the
// working directory is loaded first when present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("process env config: %w", err)
	}
	return &cfg, nil
}
