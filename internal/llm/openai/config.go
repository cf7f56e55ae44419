package openai

import (
	"log/slog"
	"net/http"
	"os"
	"time"

	"golang.org/x/time/rate"
)

// Config for the OpenAI-compatible vision client.
type Config struct {
	APIKey            string        // if empty, falls back to env OPENAI_API_KEY
	BaseURL           string        // default https://api.openai.com/v1
	Model             string        // e.g., "gpt-4o-mini"
	Temperature       float32       // 0..2
	Timeout           time.Duration // http client timeout
	RequestsPerSecond float64       // client-side throttle; the service is shared
	Burst             int
	Lenient           bool // sanitize near-valid responses before failing
}

type Client struct {
	cfg     Config
	http    *http.Client
	limiter *rate.Limiter
	log     *slog.Logger
}

func NewClient(cfg Config, logger *slog.Logger) *Client {
	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = 1.0
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 2
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		cfg:     cfg,
		http:    &http.Client{Timeout: cfg.Timeout},
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.Burst),
		log:     logger,
	}
}
