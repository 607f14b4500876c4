package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Storage   StorageConfig   `mapstructure:"storage"`
	OpenAI    OpenAIConfig    `mapstructure:"openai"`
	Reasoning ReasoningConfig `mapstructure:"reasoning"`
	Auth      AuthConfig      `mapstructure:"auth"`
}

type ServerConfig struct {
	Addr string `mapstructure:"addr"`
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
}

type StorageConfig struct {
	// Backend selects the persistence variant: "postgres" for the
	// networked deployment, "file" for the local-first one, "memory"
	// for throwaway runs.
	Backend string `mapstructure:"backend"`
	DataDir string `mapstructure:"data_dir"`
}

type OpenAIConfig struct {
	APIKey      string  `mapstructure:"api_key"`
	Model       string  `mapstructure:"model"`
	ChatModel   string  `mapstructure:"chat_model"`
	MaxTokens   int     `mapstructure:"max_tokens"`
	Temperature float64 `mapstructure:"temperature"`
}

type ReasoningConfig struct {
	TimeoutSeconds int `mapstructure:"timeout_seconds"`
	MaxInsights    int `mapstructure:"max_insights"`
}

type AuthConfig struct {
	GoogleClientID string `mapstructure:"google_client_id"`
}

func (r ReasoningConfig) Timeout() time.Duration {
	return time.Duration(r.TimeoutSeconds) * time.Second
}

func parseDatabaseURL(dbURL string) (DatabaseConfig, error) {
	u, err := url.Parse(dbURL)
	if err != nil {
		return DatabaseConfig{}, err
	}

	password, _ := u.User.Password()
	port := 5432 // default PostgreSQL port
	if u.Port() != "" {
		fmt.Sscanf(u.Port(), "%d", &port)
	}

	// Remove leading slash from path to get database name
	dbName := strings.TrimPrefix(u.Path, "/")

	return DatabaseConfig{
		Host:     u.Hostname(),
		Port:     port,
		User:     u.User.Username(),
		Password: password,
		DBName:   dbName,
		SSLMode:  "disable",
	}, nil
}

func LoadConfig(path string) (*Config, error) {
	v := viper.New()

	// Set default values
	v.SetDefault("server.addr", ":8000")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("storage.backend", "file")
	v.SetDefault("storage.data_dir", "./data")
	v.SetDefault("openai.model", "gpt-4o-mini")
	v.SetDefault("openai.max_tokens", 1024)
	v.SetDefault("openai.temperature", 0.7)
	v.SetDefault("reasoning.timeout_seconds", 30)
	v.SetDefault("reasoning.max_insights", 3)

	// Enable environment variable support
	v.AutomaticEnv()

	// Read the config file
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	// Check for DATABASE_URL environment variable
	if dbURL := v.GetString("DATABASE_URL"); dbURL != "" {
		dbConfig, err := parseDatabaseURL(dbURL)
		if err != nil {
			return nil, fmt.Errorf("failed to parse DATABASE_URL: %v", err)
		}
		config.Database = dbConfig
		config.Storage.Backend = "postgres"
	}

	// Get other environment variables
	if apiKey := v.GetString("OPENAI_API_KEY"); apiKey != "" {
		config.OpenAI.APIKey = apiKey
	}

	if clientID := v.GetString("GOOGLE_CLIENT_ID"); clientID != "" {
		config.Auth.GoogleClientID = clientID
	}

	return &config, nil
}
