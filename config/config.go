package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`

	Model struct {
		Path string `yaml:"path"`
	} `yaml:"model"`

	Explain struct {
		SampleSize        int     `yaml:"sample_size"`
		CacheTTLDays      int     `yaml:"cache_ttl_days"`
		SurrogateSamples  int     `yaml:"surrogate_samples"`
		SurrogateJitter   float64 `yaml:"surrogate_jitter"`
		SurrogateFeatures int     `yaml:"surrogate_features"`
	} `yaml:"explain"`

	// Runtime configuration
	RedisURL           string
	ElasticsearchAddrs []string
	ElasticsearchUser  string
	ElasticsearchPass  string
	ElasticsearchIndex string
}

// LoadConfig loads the configuration from a file
func LoadConfig() (*Config, error) {
	// Default config file path
	configPath := "config/config.yaml"

	// Check if config path is set in environment
	explicit := false
	if envPath := os.Getenv("CONFIG_PATH"); envPath != "" {
		configPath = envPath
		explicit = true
	}

	var cfg Config
	data, err := os.ReadFile(configPath)
	if err != nil {
		// The defaults below cover a missing file at the standard path;
		// a path the operator set explicitly must exist.
		if explicit || !os.IsNotExist(err) {
			return nil, fmt.Errorf("error reading config file: %v", err)
		}
	} else if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %v", err)
	}

	// Fill in defaults
	if cfg.Server.Port == "" {
		cfg.Server.Port = "8080"
	}
	if cfg.Model.Path == "" {
		cfg.Model.Path = "models/absenteeism.json"
	}
	if cfg.Explain.SampleSize <= 0 {
		cfg.Explain.SampleSize = 100
	}
	if cfg.Explain.CacheTTLDays <= 0 {
		cfg.Explain.CacheTTLDays = 7
	}
	if cfg.Explain.SurrogateSamples <= 0 {
		cfg.Explain.SurrogateSamples = 200
	}
	if cfg.Explain.SurrogateJitter <= 0 {
		cfg.Explain.SurrogateJitter = 0.5
	}
	if cfg.Explain.SurrogateFeatures <= 0 {
		cfg.Explain.SurrogateFeatures = 10
	}

	// Load environment variables
	cfg.RedisURL = getEnv("REDIS_URL", "redis://localhost:6379")

	cfg.ElasticsearchAddrs = []string{os.Getenv("ELASTICSEARCH_URL")}
	if cfg.ElasticsearchAddrs[0] == "" {
		cfg.ElasticsearchAddrs = []string{"http://localhost:9200"}
	}

	cfg.ElasticsearchUser = os.Getenv("ELASTICSEARCH_USER")
	cfg.ElasticsearchPass = os.Getenv("ELASTICSEARCH_PASS")
	cfg.ElasticsearchIndex = getEnv("ELASTICSEARCH_INDEX", "explanations")

	if envPath := os.Getenv("MODEL_PATH"); envPath != "" {
		cfg.Model.Path = envPath
	}
	if envPort := os.Getenv("PORT"); envPort != "" {
		cfg.Server.Port = envPort
	}

	return &cfg, nil
}

// CacheTTL returns the explanation cache lifetime as a duration.
func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.Explain.CacheTTLDays) * 24 * time.Hour
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
