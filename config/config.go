package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"ewintr.nl/ytstats/ratelimit"
	"ewintr.nl/ytstats/retry"
)

const (
	ModeFast         = "fast"
	ModeConservative = "conservative"
)

// Fields maps each logical role to the name of a database property. Empty
// optional names leave that property untouched.
type Fields struct {
	VideoURL  string
	Views     string
	Likes     string
	Comments  string
	Published string
	Title     string
}

// RateLimits holds one limiter setting per call path into the database.
type RateLimits struct {
	Query  ratelimit.Config
	Update ratelimit.Config
}

// MaxThrottled bounds how often a single call is put back after a 429.
const MaxThrottled = 10

func FastRateLimits() RateLimits {
	return RateLimits{
		Query:  limit(50*time.Millisecond, 1),
		Update: limit(10*time.Millisecond, 20),
	}
}

// ConservativeRateLimits keeps both paths inside the published budget of
// three requests per second.
func ConservativeRateLimits() RateLimits {
	return RateLimits{
		Query:  limit(333*time.Millisecond, 1),
		Update: limit(333*time.Millisecond, 1),
	}
}

func limit(interval time.Duration, maxConcurrent int) ratelimit.Config {
	return ratelimit.Config{
		Interval:      interval,
		MaxConcurrent: maxConcurrent,
		Fallback:      ratelimit.DefaultFallback,
		MaxThrottled:  MaxThrottled,
	}
}

func RateLimitsFor(mode string) RateLimits {
	if mode == ModeConservative {
		return ConservativeRateLimits()
	}
	return FastRateLimits()
}

type Config struct {
	NotionToken      string
	NotionDatabaseID string
	NotionEndpoint   string
	YoutubeAPIKey    string
	YoutubeEndpoint  string

	Fields       Fields
	UpdateTitle  bool
	SetThumbnail bool

	RateLimitMode  string
	RateLimits     RateLimits
	RequestTimeout time.Duration
	FetchRetry     retry.Config
	ResolveRetry   retry.Config
	UpdateRetry    retry.Config

	LogLevel           string
	LogFormat          string
	LogFile            string
	MetricsPushgateway string
	APIPort            int
}

func Default() Config {
	return Config{
		NotionEndpoint: "https://api.notion.com/v1",
		RateLimitMode:  ModeFast,
		RateLimits:     FastRateLimits(),
		RequestTimeout: 30 * time.Second,
		FetchRetry:     retry.Default(),
		ResolveRetry: retry.Config{
			MaxRetries:     2,
			InitialBackoff: time.Second,
			MaxBackoff:     5 * time.Second,
			Multiplier:     2,
		},
		UpdateRetry: retry.Default(),
		LogLevel:    "info",
		LogFormat:   "text",
		APIPort:     8080,
	}
}

// Load reads the configuration from the environment.
func Load() (Config, error) {
	cfg := Default()

	required := []struct {
		key string
		dst *string
	}{
		{"NOTION_TOKEN", &cfg.NotionToken},
		{"NOTION_DATABASE_ID", &cfg.NotionDatabaseID},
		{"YOUTUBE_API_KEY", &cfg.YoutubeAPIKey},
		{"FIELD_VIDEO_URL", &cfg.Fields.VideoURL},
		{"FIELD_VIEWS", &cfg.Fields.Views},
	}
	var missing []string
	for _, r := range required {
		*r.dst = getParam(r.key, "")
		if *r.dst == "" {
			missing = append(missing, r.key)
		}
	}
	if len(missing) > 0 {
		return cfg, fmt.Errorf("missing required environment variables: %s", strings.Join(missing, ", "))
	}

	cfg.NotionEndpoint = getParam("NOTION_ENDPOINT", cfg.NotionEndpoint)
	cfg.YoutubeEndpoint = getParam("YOUTUBE_ENDPOINT", "")
	cfg.Fields.Likes = getParam("FIELD_LIKES", "")
	cfg.Fields.Comments = getParam("FIELD_COMMENTS", "")
	cfg.Fields.Published = getParam("FIELD_PUBLISHED", "")
	cfg.Fields.Title = getParam("FIELD_TITLE", "")

	var err error
	if cfg.UpdateTitle, err = parseBool("UPDATE_TITLE", false); err != nil {
		return cfg, err
	}
	if cfg.SetThumbnail, err = parseBool("SET_THUMBNAIL", false); err != nil {
		return cfg, err
	}
	cfg.RateLimitMode = strings.ToLower(getParam("RATE_LIMIT_MODE", ModeFast))
	cfg.RateLimits = RateLimitsFor(cfg.RateLimitMode)
	if cfg.RequestTimeout, err = time.ParseDuration(getParam("REQUEST_TIMEOUT", cfg.RequestTimeout.String())); err != nil {
		return cfg, fmt.Errorf("invalid REQUEST_TIMEOUT: %w", err)
	}

	cfg.LogLevel = getParam("LOG_LEVEL", cfg.LogLevel)
	cfg.LogFormat = getParam("LOG_FORMAT", cfg.LogFormat)
	cfg.LogFile = getParam("LOG_FILE", "")
	cfg.MetricsPushgateway = getParam("METRICS_PUSHGATEWAY", "")
	if cfg.APIPort, err = strconv.Atoi(getParam("API_PORT", strconv.Itoa(cfg.APIPort))); err != nil {
		return cfg, fmt.Errorf("invalid API_PORT: %w", err)
	}

	return cfg, cfg.Validate()
}

func (c Config) Validate() error {
	if c.RateLimitMode != ModeFast && c.RateLimitMode != ModeConservative {
		return fmt.Errorf("rate limit mode must be %q or %q, got %q", ModeFast, ModeConservative, c.RateLimitMode)
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("request timeout must be positive")
	}
	if c.Fields.VideoURL == "" || c.Fields.Views == "" {
		return fmt.Errorf("video url and view count fields are required")
	}
	for name, r := range map[string]retry.Config{"fetch": c.FetchRetry, "resolve": c.ResolveRetry, "update": c.UpdateRetry} {
		if r.MaxRetries < 0 {
			return fmt.Errorf("%s retries must be non-negative", name)
		}
	}
	return nil
}

func getParam(param, def string) string {
	if val, ok := os.LookupEnv(param); ok {
		return val
	}
	return def
}

func parseBool(param string, def bool) (bool, error) {
	val := getParam(param, strconv.FormatBool(def))
	b, err := strconv.ParseBool(val)
	if err != nil {
		return def, fmt.Errorf("invalid %s: %w", param, err)
	}
	return b, nil
}
