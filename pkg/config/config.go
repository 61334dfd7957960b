// Package config loads the server configuration. Values are layered:
// compiled-in defaults, then an optional TOML file, then MCP_-prefixed
// environment variables, validated as a whole before use.
//
// A minimal file looks like:
//
//	[server]
//	addr = ":8080"
//
//	[captions]
//	base_url = "https://captions.example.com"
//	api_key  = "secret"
//
//	[auth.tokens]
//	"token-a" = "alice"
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/go-playground/validator/v10"
)

// ErrInvalid reports a configuration that parsed but failed validation.
var ErrInvalid = errors.New("invalid configuration")

// Duration decodes TOML strings and environment values like "30s" or "1m30s".
type Duration time.Duration

// UnmarshalText implements encoding.TextUnmarshaler for TOML decoding.
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

// MarshalText renders the duration in time.Duration notation.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Config is the full server configuration.
type Config struct {
	Server   Server   `toml:"server"`
	Channels Channels `toml:"channels"`
	Captions Captions `toml:"captions"`
	Store    Store    `toml:"store"`
	Auth     Auth     `toml:"auth"`
	Log      Log      `toml:"log"`
	Metrics  Metrics  `toml:"metrics"`
	Tracing  Tracing  `toml:"tracing"`
}

// Server names the MCP server and tunes its HTTP listener.
type Server struct {
	Name              string   `toml:"name" validate:"required"`
	Instructions      string   `toml:"instructions"`
	Addr              string   `toml:"addr" validate:"required"`
	ReadHeaderTimeout Duration `toml:"read_header_timeout"`
	ShutdownTimeout   Duration `toml:"shutdown_timeout"`
	ToolCallTimeout   Duration `toml:"tool_call_timeout"`
}

// Channels tunes the per-session SSE channels.
type Channels struct {
	InboxSize         int      `toml:"inbox_size" validate:"min=1,max=4096"`
	KeepAliveInterval Duration `toml:"keepalive_interval"`
	MaxBodyBytes      int64    `toml:"max_body_bytes" validate:"min=1024"`
}

// Captions configures the downstream captions API client. RateLimit is
// requests per second; a negative value disables client-side limiting.
type Captions struct {
	BaseURL           string   `toml:"base_url" validate:"required,url"`
	APIKey            string   `toml:"api_key"`
	Timeout           Duration `toml:"timeout"`
	MaxRetries        int      `toml:"max_retries" validate:"min=0,max=10"`
	InitialRetryDelay Duration `toml:"initial_retry_delay"`
	MaxRetryDelay     Duration `toml:"max_retry_delay"`
	RateLimit         float64  `toml:"rate_limit"`
	RateBurst         int      `toml:"rate_burst" validate:"min=0"`
	Proxies           []string `toml:"proxies" validate:"dive,url"`
}

// Store locates the saved-transcript database.
type Store struct {
	Path string `toml:"path" validate:"required"`
}

// Auth maps bearer tokens to subject names. An empty map disables
// authentication and attributes every caller to the "local" subject.
type Auth struct {
	Tokens map[string]string `toml:"tokens"`
}

// Log selects the logger level and output format.
type Log struct {
	Level  string `toml:"level" validate:"oneof=debug info warn error fatal"`
	Format string `toml:"format" validate:"oneof=text json"`
}

// Metrics configures the Prometheus exposition listener.
type Metrics struct {
	Enabled bool   `toml:"enabled"`
	Addr    string `toml:"addr"`
	Path    string `toml:"path"`
}

// Tracing configures OTLP trace export.
type Tracing struct {
	Enabled     bool    `toml:"enabled"`
	Endpoint    string  `toml:"endpoint" validate:"required_if=Enabled true"`
	Protocol    string  `toml:"protocol" validate:"oneof=otlp-grpc otlp-http noop"`
	Insecure    bool    `toml:"insecure"`
	SampleRate  float64 `toml:"sample_rate" validate:"min=0,max=1"`
	Environment string  `toml:"environment"`
}

// Default returns the compiled-in defaults. The captions base URL has no
// default; it must come from the file or MCP_CAPTIONS_BASE_URL.
func Default() *Config {
	return &Config{
		Server: Server{
			Name:              "transcript-mcp",
			Addr:              ":8080",
			ReadHeaderTimeout: Duration(10 * time.Second),
			ShutdownTimeout:   Duration(15 * time.Second),
			ToolCallTimeout:   Duration(2 * time.Minute),
		},
		Channels: Channels{
			InboxSize:         32,
			KeepAliveInterval: Duration(30 * time.Second),
			MaxBodyBytes:      4 << 20,
		},
		Captions: Captions{
			Timeout:           Duration(30 * time.Second),
			MaxRetries:        3,
			InitialRetryDelay: Duration(500 * time.Millisecond),
			MaxRetryDelay:     Duration(10 * time.Second),
			RateLimit:         5,
			RateBurst:         5,
		},
		Store: Store{
			Path: "data/transcripts.db",
		},
		Log: Log{
			Level:  "info",
			Format: "text",
		},
		Metrics: Metrics{
			Enabled: true,
			Addr:    ":9090",
			Path:    "/metrics",
		},
		Tracing: Tracing{
			Protocol:    "noop",
			SampleRate:  1,
			Environment: "production",
		},
	}
}

// Load builds the effective configuration: defaults, then the TOML file at
// path (skipped when path is empty), then environment overrides. Unknown
// file keys are an error so typos fail fast instead of silently keeping a
// default.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		meta, err := toml.DecodeFile(path, cfg)
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
		if undecoded := meta.Undecoded(); len(undecoded) > 0 {
			keys := make([]string, len(undecoded))
			for i, key := range undecoded {
				keys[i] = key.String()
			}
			sort.Strings(keys)
			return nil, fmt.Errorf("%w: unknown keys in %s: %s", ErrInvalid, path, strings.Join(keys, ", "))
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv layers MCP_-prefixed environment variables over the current
// values. Unset or unparsable variables leave the existing value in place.
func (c *Config) applyEnv() {
	c.Server.Name = getEnv("MCP_SERVER_NAME", c.Server.Name)
	c.Server.Instructions = getEnv("MCP_INSTRUCTIONS", c.Server.Instructions)
	c.Server.Addr = getEnv("MCP_ADDR", c.Server.Addr)
	c.Server.ReadHeaderTimeout = getEnvDuration("MCP_READ_HEADER_TIMEOUT", c.Server.ReadHeaderTimeout)
	c.Server.ShutdownTimeout = getEnvDuration("MCP_SHUTDOWN_TIMEOUT", c.Server.ShutdownTimeout)
	c.Server.ToolCallTimeout = getEnvDuration("MCP_TOOL_CALL_TIMEOUT", c.Server.ToolCallTimeout)

	c.Channels.InboxSize = getEnvInt("MCP_INBOX_SIZE", c.Channels.InboxSize)
	c.Channels.KeepAliveInterval = getEnvDuration("MCP_KEEPALIVE_INTERVAL", c.Channels.KeepAliveInterval)
	c.Channels.MaxBodyBytes = getEnvInt64("MCP_MAX_BODY_BYTES", c.Channels.MaxBodyBytes)

	c.Captions.BaseURL = getEnv("MCP_CAPTIONS_BASE_URL", c.Captions.BaseURL)
	c.Captions.APIKey = getEnv("MCP_CAPTIONS_API_KEY", c.Captions.APIKey)
	c.Captions.Timeout = getEnvDuration("MCP_CAPTIONS_TIMEOUT", c.Captions.Timeout)
	c.Captions.MaxRetries = getEnvInt("MCP_CAPTIONS_MAX_RETRIES", c.Captions.MaxRetries)
	c.Captions.InitialRetryDelay = getEnvDuration("MCP_CAPTIONS_INITIAL_RETRY_DELAY", c.Captions.InitialRetryDelay)
	c.Captions.MaxRetryDelay = getEnvDuration("MCP_CAPTIONS_MAX_RETRY_DELAY", c.Captions.MaxRetryDelay)
	c.Captions.RateLimit = getEnvFloat("MCP_CAPTIONS_RATE_LIMIT", c.Captions.RateLimit)
	c.Captions.RateBurst = getEnvInt("MCP_CAPTIONS_RATE_BURST", c.Captions.RateBurst)
	c.Captions.Proxies = getEnvStringSlice("MCP_CAPTIONS_PROXIES", c.Captions.Proxies)

	c.Store.Path = getEnv("MCP_DB_PATH", c.Store.Path)

	c.Auth.Tokens = getEnvStringMap("MCP_AUTH_TOKENS", c.Auth.Tokens)

	c.Log.Level = getEnv("MCP_LOG_LEVEL", c.Log.Level)
	c.Log.Format = getEnv("MCP_LOG_FORMAT", c.Log.Format)

	c.Metrics.Enabled = getEnvBool("MCP_METRICS_ENABLED", c.Metrics.Enabled)
	c.Metrics.Addr = getEnv("MCP_METRICS_ADDR", c.Metrics.Addr)
	c.Metrics.Path = getEnv("MCP_METRICS_PATH", c.Metrics.Path)

	c.Tracing.Enabled = getEnvBool("MCP_TRACING_ENABLED", c.Tracing.Enabled)
	c.Tracing.Endpoint = getEnv("MCP_TRACING_ENDPOINT", c.Tracing.Endpoint)
	c.Tracing.Protocol = getEnv("MCP_TRACING_PROTOCOL", c.Tracing.Protocol)
	c.Tracing.Insecure = getEnvBool("MCP_TRACING_INSECURE", c.Tracing.Insecure)
	c.Tracing.SampleRate = getEnvFloat("MCP_TRACING_SAMPLE_RATE", c.Tracing.SampleRate)
	c.Tracing.Environment = getEnv("MCP_ENVIRONMENT", c.Tracing.Environment)
}

// validate is shared by every Load and Validate call. Violations report the
// TOML key path so the message points at the line the operator has to fix.
var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("toml"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Validate checks every section against its constraints.
func (c *Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}

	lines := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		lines = append(lines, fmt.Sprintf("%s %s", keyPath(fe), constraintText(fe)))
	}
	return fmt.Errorf("%w: %s", ErrInvalid, strings.Join(lines, "; "))
}

// keyPath strips the root struct name from the validator namespace, leaving
// the TOML key ("captions.base_url").
func keyPath(fe validator.FieldError) string {
	if _, rest, found := strings.Cut(fe.Namespace(), "."); found {
		return rest
	}
	return fe.Namespace()
}

// constraintText renders a validator tag as a short readable constraint.
func constraintText(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required", "required_if":
		return "is required"
	case "url":
		return "must be a valid URL"
	case "oneof":
		return fmt.Sprintf("must be one of [%s]", fe.Param())
	case "min":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s", fe.Param())
	default:
		if fe.Param() != "" {
			return fmt.Sprintf("failed constraint %s=%s", fe.Tag(), fe.Param())
		}
		return fmt.Sprintf("failed constraint %s", fe.Tag())
	}
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvInt64(key string, fallback int64) int64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseInt(value, 10, 64); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback Duration) Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return Duration(parsed)
		}
	}
	return fallback
}

func getEnvStringSlice(key string, fallback []string) []string {
	if value := os.Getenv(key); value != "" {
		var parsed []string
		if err := json.Unmarshal([]byte(value), &parsed); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvStringMap(key string, fallback map[string]string) map[string]string {
	if value := os.Getenv(key); value != "" {
		var parsed map[string]string
		if err := json.Unmarshal([]byte(value), &parsed); err == nil {
			return parsed
		}
	}
	return fallback
}
