package common

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all application configuration
type Config struct {
	Fragment FragmentConfig `yaml:"fragment"`
	Image    ImageConfig    `yaml:"image"`
	LLM      LLMConfig      `yaml:"llm"`
	Store    StoreConfig    `yaml:"store"`
	Ingest   IngestConfig   `yaml:"ingest"`
	Workers  WorkersConfig  `yaml:"workers"`
}

// FragmentConfig holds page tiling configuration
type FragmentConfig struct {
	TileWidth           int     `yaml:"tile_width"`
	TileHeight          int     `yaml:"tile_height"`
	OverlapRatio        float64 `yaml:"overlap_ratio"`
	ComplexityThreshold float64 `yaml:"complexity_threshold"`
	DynamicEnabled      bool    `yaml:"dynamic_enabled"`
}

// ImageConfig holds page rendering/decoding configuration
type ImageConfig struct {
	DPI       int    `yaml:"dpi"`
	MaxWidth  int    `yaml:"max_width"`
	MaxHeight int    `yaml:"max_height"`
	Pdftoppm  string `yaml:"pdftoppm"`
}

// LLMConfig holds extraction client configuration
type LLMConfig struct {
	BaseURL           string        `yaml:"base_url"`
	APIKey            string        `yaml:"api_key"`
	Model             string        `yaml:"model"`
	Temperature       float32       `yaml:"temperature"`
	Timeout           time.Duration `yaml:"timeout"`
	RequestsPerSecond float64       `yaml:"requests_per_second"`
	Burst             int           `yaml:"burst"`
}

// StoreConfig holds results store configuration
type StoreConfig struct {
	DataDir string `yaml:"data_dir"`
}

// IngestConfig holds inbox watching configuration
type IngestConfig struct {
	Roots       []string      `yaml:"roots"`
	InitialScan bool          `yaml:"initial_scan"`
	Debounce    time.Duration `yaml:"debounce"`
}

// WorkersConfig holds concurrency limits
type WorkersConfig struct {
	Pages     int `yaml:"pages"`
	Fragments int `yaml:"fragments"`
	QueueSize int `yaml:"queue_size"`
}

// LoadConfig loads configuration from environment variables
func LoadConfig() *Config {
	return &Config{
		Fragment: FragmentConfig{
			TileWidth:           getEnvAsInt("FRAGMENT_TILE_WIDTH", 1024),
			TileHeight:          getEnvAsInt("FRAGMENT_TILE_HEIGHT", 1024),
			OverlapRatio:        getEnvAsFloat64("FRAGMENT_OVERLAP_RATIO", 0.1),
			ComplexityThreshold: getEnvAsFloat64("FRAGMENT_COMPLEXITY_THRESHOLD", 0.03),
			DynamicEnabled:      getEnvAsBool("FRAGMENT_DYNAMIC_ENABLED", false),
		},
		Image: ImageConfig{
			DPI:       getEnvAsInt("IMAGE_DPI", 300),
			MaxWidth:  getEnvAsInt("IMAGE_MAX_WIDTH", 2048),
			MaxHeight: getEnvAsInt("IMAGE_MAX_HEIGHT", 2048),
			Pdftoppm:  getEnv("PDFTOPPM", "pdftoppm"),
		},
		LLM: LLMConfig{
			BaseURL:           getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
			APIKey:            getEnv("OPENAI_API_KEY", ""),
			Model:             getEnv("OPENAI_MODEL", "gpt-4o-mini"),
			Temperature:       getEnvAsFloat32("OPENAI_TEMPERATURE", 0.0),
			Timeout:           getEnvAsDuration("OPENAI_TIMEOUT", 60*time.Second),
			RequestsPerSecond: getEnvAsFloat64("OPENAI_RPS", 1.0),
			Burst:             getEnvAsInt("OPENAI_BURST", 2),
		},
		Store: StoreConfig{
			DataDir: getEnv("STORE_DIR", "./data"),
		},
		Ingest: IngestConfig{
			Roots:       splitList(getEnv("INBOX_ROOTS", "")),
			InitialScan: getEnvAsBool("INBOX_INITIAL_SCAN", true),
			Debounce:    getEnvAsDuration("INBOX_DEBOUNCE", 500*time.Millisecond),
		},
		Workers: WorkersConfig{
			Pages:     getEnvAsInt("PAGE_WORKERS", 4),
			Fragments: getEnvAsInt("FRAGMENT_WORKERS", 4),
			QueueSize: getEnvAsInt("QUEUE_SIZE", 256),
		},
	}
}

// LoadConfigFile overlays settings from a YAML file onto cfg.
// Missing file is an error; the daemon treats the file as optional and
// only calls this when a path is configured.
func LoadConfigFile(path string, cfg *Config) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(b, cfg); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsFloat32(key string, defaultValue float32) float32 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 32); err == nil {
			return float32(floatVal)
		}
	}
	return defaultValue
}

func getEnvAsFloat64(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func splitList(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if v := strings.TrimSpace(p); v != "" {
			out = append(out, v)
		}
	}
	return out
}

// Validate validates the loaded configuration
func (c *Config) Validate() error {
	if c.Fragment.TileWidth <= 0 || c.Fragment.TileHeight <= 0 {
		return NewConfigurationError(fmt.Sprintf("tile dimensions must be positive, got %dx%d", c.Fragment.TileWidth, c.Fragment.TileHeight))
	}
	if c.Fragment.OverlapRatio < 0 || c.Fragment.OverlapRatio >= 1 {
		return NewConfigurationError(fmt.Sprintf("overlap ratio must be in [0,1), got %v", c.Fragment.OverlapRatio))
	}
	if c.Fragment.ComplexityThreshold < 0 || c.Fragment.ComplexityThreshold > 1 {
		return NewConfigurationError(fmt.Sprintf("complexity threshold must be in [0,1], got %v", c.Fragment.ComplexityThreshold))
	}
	if c.Image.MaxWidth <= 0 || c.Image.MaxHeight <= 0 {
		return NewConfigurationError("image max dimensions must be positive")
	}
	if c.LLM.APIKey == "" {
		return NewConfigurationError("OPENAI_API_KEY is required")
	}
	return nil
}
