// Package config provides application configuration management with multi-source priority.
//
// Configuration sources (highest to lowest priority):
//  1. Environment variables (runtime override)
//  2. Config file (~/.kaiwa/config.yaml)
//  3. Default values (sensible defaults for quick start)
//
// Main configuration categories:
//   - Completion: provider selection, Azure OpenAI endpoint/deployment, model tuning
//   - Agent: which response strategy handles user input
//   - Search: web search behavior for the search-augmented agent
//   - Fetcher: page fetching limits for source expansion
//   - Telemetry: OTLP trace export (serve mode)
//
// Security: API keys are read from environment variables and masked in MarshalJSON.
// Validation: fail-fast range checks in validation.go with sentinel errors for errors.Is().
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

var (
	// ErrConfigNil indicates the configuration is nil.
	ErrConfigNil = errors.New("configuration is nil")

	// ErrMissingAPIKey indicates a required API key is missing.
	ErrMissingAPIKey = errors.New("missing API key")

	// ErrMissingEndpoint indicates the Azure OpenAI endpoint is not set.
	ErrMissingEndpoint = errors.New("missing Azure OpenAI endpoint")

	// ErrMissingDeployment indicates the Azure OpenAI deployment name is not set.
	ErrMissingDeployment = errors.New("missing Azure OpenAI deployment")

	// ErrInvalidProvider indicates the completion provider is not supported.
	ErrInvalidProvider = errors.New("invalid provider")

	// ErrInvalidModelName indicates the model name is invalid.
	ErrInvalidModelName = errors.New("invalid model name")

	// ErrInvalidTemperature indicates the temperature value is out of range.
	ErrInvalidTemperature = errors.New("invalid temperature")

	// ErrInvalidMaxTokens indicates the max tokens value is out of range.
	ErrInvalidMaxTokens = errors.New("invalid max tokens")

	// ErrInvalidAgentType indicates the agent type is not supported.
	ErrInvalidAgentType = errors.New("invalid agent type")

	// ErrInvalidMaxResults indicates the search result limit is out of range.
	ErrInvalidMaxResults = errors.New("invalid max search results")

	// ErrInvalidRefinements indicates the query refinement budget is out of range.
	ErrInvalidRefinements = errors.New("invalid max query refinements")

	// ErrInvalidRegion indicates the search region code is malformed.
	ErrInvalidRegion = errors.New("invalid search region")
)

// Completion provider identifiers used in Config.Provider.
const (
	ProviderAzure  = "azure"
	ProviderGemini = "gemini"
)

// Agent type identifiers used in Config.AgentType.
const (
	AgentDirect    = "direct"
	AgentContext   = "context"
	AgentTools     = "tools"
	AgentWebSearch = "websearch"
)

// DefaultAPIVersion is the Azure OpenAI API version used when none is configured.
const DefaultAPIVersion = "2023-05-15"

// SearchConfig controls the search-augmented agent.
type SearchConfig struct {
	// Enabled allows the agent to search without an explicit trigger token.
	// Trigger tokens force a search regardless of this flag.
	Enabled bool `mapstructure:"enabled" json:"enabled"`
	// MaxResults caps how many results are merged into the completion context.
	MaxResults int `mapstructure:"max_results" json:"max_results"`
	// Region is the DuckDuckGo region code (e.g., "jp-jp", "us-en", "wt-wt").
	Region string `mapstructure:"region" json:"region"`
	// NewsEnabled reserves up to half the result slots for news results.
	NewsEnabled bool `mapstructure:"news_enabled" json:"news_enabled"`
	// MaxQueryRefinements bounds how many times a thin result set may be
	// retried with a regenerated query.
	MaxQueryRefinements int `mapstructure:"max_query_refinements" json:"max_query_refinements"`
}

// FetcherConfig holds page fetcher limits for source expansion.
type FetcherConfig struct {
	// Parallelism is max concurrent requests per domain (default: 2)
	Parallelism int `mapstructure:"parallelism" json:"parallelism"`
	// DelayMs is delay between requests in milliseconds (default: 1000)
	DelayMs int `mapstructure:"delay_ms" json:"delay_ms"`
	// TimeoutMs is request timeout in milliseconds (default: 30000)
	TimeoutMs int `mapstructure:"timeout_ms" json:"timeout_ms"`
}

// TelemetryConfig holds OTLP trace export settings for serve mode.
type TelemetryConfig struct {
	// Endpoint is the OTLP HTTP collector endpoint (default: localhost:4318)
	Endpoint string `mapstructure:"endpoint" json:"endpoint"`
	// Environment is the deployment environment tag (dev, staging, prod)
	Environment string `mapstructure:"environment" json:"environment"`
	// ServiceName is the service name attached to exported spans
	ServiceName string `mapstructure:"service_name" json:"service_name"`
	// Enabled turns trace export on. Off by default.
	Enabled bool `mapstructure:"enabled" json:"enabled"`
}

// Config stores application configuration.
// SECURITY: Sensitive fields are explicitly masked in MarshalJSON().
// When adding new sensitive fields (API keys, tokens), update MarshalJSON.
type Config struct {
	// Completion provider configuration
	Provider    string  `mapstructure:"provider" json:"provider"`     // "azure" (default) or "gemini"
	ModelName   string  `mapstructure:"model_name" json:"model_name"` // Gemini model identifier (ignored for Azure, which routes by deployment)
	Temperature float32 `mapstructure:"temperature" json:"temperature"`
	MaxTokens   int     `mapstructure:"max_tokens" json:"max_tokens"`

	// Azure OpenAI configuration (only used when provider is "azure")
	AzureEndpoint   string `mapstructure:"azure_endpoint" json:"azure_endpoint"`       // https://<resource>.openai.azure.com/
	AzureAPIVersion string `mapstructure:"azure_api_version" json:"azure_api_version"` // e.g. "2023-05-15"
	AzureDeployment string `mapstructure:"azure_deployment" json:"azure_deployment"`   // deployment name, e.g. "gpt-35-turbo"
	AzureAPIKey     string `mapstructure:"azure_api_key" json:"azure_api_key"`         // SENSITIVE: masked in MarshalJSON

	// Gemini configuration (only used when provider is "gemini")
	GeminiAPIKey string `mapstructure:"gemini_api_key" json:"gemini_api_key"` // SENSITIVE: masked in MarshalJSON

	// AgentType selects the response strategy: direct, context, tools, websearch.
	AgentType string `mapstructure:"agent_type" json:"agent_type"`

	// Search configuration for the websearch agent
	Search SearchConfig `mapstructure:"search" json:"search"`

	// Fetcher configuration for source expansion
	Fetcher FetcherConfig `mapstructure:"fetcher" json:"fetcher"`

	// Telemetry configuration (serve mode only)
	Telemetry TelemetryConfig `mapstructure:"telemetry" json:"telemetry"`

	// Serve mode configuration
	CORSOrigins []string `mapstructure:"cors_origins" json:"cors_origins"`
	TrustProxy  bool     `mapstructure:"trust_proxy" json:"trust_proxy"` // Trust X-Real-IP/X-Forwarded-For headers (set true behind reverse proxy)
}

// Load loads configuration.
// Priority: Environment variables > Configuration file > Default values
func Load() (*Config, error) {
	// Configuration directory: ~/.kaiwa/
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("getting user home directory: %w", err)
	}

	configDir := filepath.Join(home, ".kaiwa")

	// Ensure directory exists (use 0750 permission for better security)
	if err := os.MkdirAll(configDir, 0o750); err != nil {
		return nil, fmt.Errorf("creating config directory: %w", err)
	}

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(configDir)
	viper.AddConfigPath(".") // Also support current directory

	setDefaults()
	bindEnvVariables()

	// Read configuration file (if exists)
	if err := viper.ReadInConfig(); err != nil {
		// Configuration file not found is not an error, use default values
		var configNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &configNotFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		slog.Debug("configuration file not found, using default values",
			"search_paths", []string{configDir, "."},
			"config_name", "config.yaml")
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}

	cfg.normalize()

	// CRITICAL: Validate immediately (fail-fast)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating configuration: %w", err)
	}

	return &cfg, nil
}

// normalize applies canonical forms before validation.
// The Azure endpoint must end with "/" for deployment URL construction.
func (c *Config) normalize() {
	if c.AzureEndpoint != "" && !strings.HasSuffix(c.AzureEndpoint, "/") {
		c.AzureEndpoint += "/"
	}
	c.Provider = strings.ToLower(c.Provider)
	c.AgentType = strings.ToLower(c.AgentType)
}

// setDefaults sets all default configuration values.
func setDefaults() {
	// Completion defaults
	viper.SetDefault("provider", ProviderAzure)
	viper.SetDefault("model_name", "gemini-2.5-flash")
	viper.SetDefault("temperature", 0.7)
	viper.SetDefault("max_tokens", 2048)
	viper.SetDefault("azure_api_version", DefaultAPIVersion)
	viper.SetDefault("azure_deployment", "gpt-35-turbo")

	// Agent defaults
	viper.SetDefault("agent_type", AgentDirect)

	// Search defaults
	viper.SetDefault("search.enabled", true)
	viper.SetDefault("search.max_results", 3)
	viper.SetDefault("search.region", "jp-jp")
	viper.SetDefault("search.news_enabled", true)
	viper.SetDefault("search.max_query_refinements", 1)

	// Fetcher defaults
	viper.SetDefault("fetcher.parallelism", 2)
	viper.SetDefault("fetcher.delay_ms", 1000)
	viper.SetDefault("fetcher.timeout_ms", 30000)

	// Telemetry defaults
	viper.SetDefault("telemetry.endpoint", "localhost:4318")
	viper.SetDefault("telemetry.environment", "dev")
	viper.SetDefault("telemetry.service_name", "kaiwa")
	viper.SetDefault("telemetry.enabled", false)

	// CORS defaults
	viper.SetDefault("cors_origins", []string{"http://localhost:4200"})

	// Proxy trust (default: false — safe for direct exposure; set true behind reverse proxy)
	viper.SetDefault("trust_proxy", false)
}

// bindEnvVariables binds environment variables explicitly.
// API keys come from environment only and never belong in config.yaml.
func bindEnvVariables() {
	// Helper to panic on unexpected bind errors (hardcoded strings can't fail)
	// If this panics, it's a BUG in our code, not a runtime error
	mustBind := func(key, envVar string) {
		if err := viper.BindEnv(key, envVar); err != nil {
			panic(fmt.Sprintf("BUG: failed to bind %q to %q: %v", key, envVar, err))
		}
	}

	// Azure OpenAI credentials and routing
	mustBind("azure_api_key", "AZURE_OPENAI_API_KEY")
	mustBind("azure_endpoint", "AZURE_OPENAI_ENDPOINT")
	mustBind("azure_api_version", "AZURE_OPENAI_API_VERSION")
	mustBind("azure_deployment", "AZURE_OPENAI_DEPLOYMENT_NAME")

	// Gemini credentials
	mustBind("gemini_api_key", "GEMINI_API_KEY")

	// Provider and agent overrides
	mustBind("provider", "KAIWA_PROVIDER")
	mustBind("model_name", "KAIWA_MODEL_NAME")
	mustBind("agent_type", "KAIWA_AGENT")

	// Search overrides
	mustBind("search.enabled", "KAIWA_SEARCH_ENABLED")
	mustBind("search.region", "KAIWA_SEARCH_REGION")

	// Serve mode
	mustBind("cors_origins", "KAIWA_CORS_ORIGINS")
	mustBind("trust_proxy", "KAIWA_TRUST_PROXY")

	// Telemetry
	mustBind("telemetry.enabled", "KAIWA_TELEMETRY_ENABLED")
	mustBind("telemetry.endpoint", "OTEL_EXPORTER_OTLP_ENDPOINT")
}

// maskedValue is the placeholder for masked sensitive data.
// Using ████████ (full-width blocks U+2588) to avoid substring matching
// against real secret content.
const maskedValue = "████████"

// maskSecret masks a secret string for safe logging.
// Shows first 2 and last 2 characters, masks the rest.
// SECURITY: For secrets <=8 chars, fully masks to prevent substring attacks.
//
// THREAT MODEL: This defends against accidental logging of real secrets.
// It is NOT cryptographically secure - if logs are compromised, rotate secrets.
func maskSecret(s string) string {
	if s == "" {
		return ""
	}
	// Fully mask short secrets to prevent substring matching attacks
	if len(s) <= 8 {
		return maskedValue
	}
	// For longer secrets, show first/last 2 chars for debug utility
	prefix := make([]byte, 2)
	suffix := make([]byte, 2)
	copy(prefix, s[:2])
	copy(suffix, s[len(s)-2:])
	return string(prefix) + "<" + maskedValue + ">" + string(suffix)
}

// MarshalJSON implements json.Marshaler with explicit sensitive field masking.
//
// Sensitive fields masked:
//   - AzureAPIKey
//   - GeminiAPIKey
//
// When adding new sensitive fields, update this method.
func (c Config) MarshalJSON() ([]byte, error) {
	type alias Config
	a := alias(c)
	a.AzureAPIKey = maskSecret(a.AzureAPIKey)
	a.GeminiAPIKey = maskSecret(a.GeminiAPIKey)
	data, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}
	return data, nil
}

// String implements Stringer to prevent accidental printing of secrets.
func (c Config) String() string {
	data, err := c.MarshalJSON()
	if err != nil {
		return fmt.Sprintf("Config{error: %v}", err)
	}
	return string(data)
}
