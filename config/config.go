// Package config provides application configuration loading and management.
package config

import (
	"errors"
	"log"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// Config holds client configuration values loaded from file or environment
// variables.
type Config struct {
	APIBaseURL     string `mapstructure:"API_BASE_URL"`
	SessionBackend string `mapstructure:"SESSION_BACKEND"`
	SessionPath    string `mapstructure:"SESSION_PATH"`
	RedisURL       string `mapstructure:"REDIS_URL"`
}

// LoadConfig loads client configuration from file and environment variables.
func LoadConfig() *Config {
	viper.AddConfigPath(".")
	viper.SetConfigName("config")
	viper.SetConfigType("yml")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		var notFoundErr viper.ConfigFileNotFoundError
		if errors.As(err, &notFoundErr) {
			log.Println("Config file not found; using environment variables and defaults")
		} else {
			log.Fatalf("Error reading config file: %s", err)
		}
	}

	// Set default values
	viper.SetDefault("API_BASE_URL", "http://localhost:5000/api")
	viper.SetDefault("SESSION_BACKEND", "file")
	viper.SetDefault("SESSION_PATH", defaultSessionPath())
	viper.SetDefault("REDIS_URL", "localhost:6379")

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		log.Fatalf("Unable to decode config into struct, %v", err)
	}

	return &config
}

func defaultSessionPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "connecto-session.db"
	}
	return filepath.Join(home, ".connecto", "session.db")
}
