package config

import (
	"errors"
	"testing"
)

func TestValidate_NilConfig(t *testing.T) {
	t.Parallel()

	var cfg *Config
	if err := cfg.Validate(); !errors.Is(err, ErrConfigNil) {
		t.Errorf("Validate() on nil = %v, want ErrConfigNil", err)
	}
}

func TestValidate_Valid(t *testing.T) {
	t.Parallel()

	if err := validConfig().Validate(); err != nil {
		t.Errorf("Validate() = %v, want nil", err)
	}
}

func TestValidate_Azure(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr error
	}{
		{
			name:    "missing api key",
			mutate:  func(c *Config) { c.AzureAPIKey = "" },
			wantErr: ErrMissingAPIKey,
		},
		{
			name:    "missing endpoint",
			mutate:  func(c *Config) { c.AzureEndpoint = "" },
			wantErr: ErrMissingEndpoint,
		},
		{
			name:    "missing deployment",
			mutate:  func(c *Config) { c.AzureDeployment = "" },
			wantErr: ErrMissingDeployment,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := validConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidate_Gemini(t *testing.T) {
	t.Parallel()

	cfg := validConfig()
	cfg.Provider = ProviderGemini
	cfg.ModelName = "gemini-2.5-flash"
	cfg.GeminiAPIKey = ""
	if err := cfg.Validate(); !errors.Is(err, ErrMissingAPIKey) {
		t.Errorf("Validate() = %v, want ErrMissingAPIKey", err)
	}

	cfg.GeminiAPIKey = "test-gemini-key"
	cfg.ModelName = ""
	if err := cfg.Validate(); !errors.Is(err, ErrInvalidModelName) {
		t.Errorf("Validate() = %v, want ErrInvalidModelName", err)
	}

	cfg.ModelName = "gemini-2.5-flash"
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() = %v, want nil", err)
	}
}

func TestValidate_Ranges(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr error
	}{
		{
			name:    "unknown provider",
			mutate:  func(c *Config) { c.Provider = "ollama" },
			wantErr: ErrInvalidProvider,
		},
		{
			name:    "temperature too high",
			mutate:  func(c *Config) { c.Temperature = 2.1 },
			wantErr: ErrInvalidTemperature,
		},
		{
			name:    "temperature negative",
			mutate:  func(c *Config) { c.Temperature = -0.1 },
			wantErr: ErrInvalidTemperature,
		},
		{
			name:    "max tokens zero",
			mutate:  func(c *Config) { c.MaxTokens = 0 },
			wantErr: ErrInvalidMaxTokens,
		},
		{
			name:    "unknown agent type",
			mutate:  func(c *Config) { c.AgentType = "pipeline" },
			wantErr: ErrInvalidAgentType,
		},
		{
			name:    "max results zero",
			mutate:  func(c *Config) { c.Search.MaxResults = 0 },
			wantErr: ErrInvalidMaxResults,
		},
		{
			name:    "max results too high",
			mutate:  func(c *Config) { c.Search.MaxResults = 11 },
			wantErr: ErrInvalidMaxResults,
		},
		{
			name:    "negative refinements",
			mutate:  func(c *Config) { c.Search.MaxQueryRefinements = -1 },
			wantErr: ErrInvalidRefinements,
		},
		{
			name:    "excessive refinements",
			mutate:  func(c *Config) { c.Search.MaxQueryRefinements = 6 },
			wantErr: ErrInvalidRefinements,
		},
		{
			name:    "malformed region",
			mutate:  func(c *Config) { c.Search.Region = "japan" },
			wantErr: ErrInvalidRegion,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := validConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestIsValidRegion(t *testing.T) {
	t.Parallel()

	tests := []struct {
		region string
		want   bool
	}{
		{"jp-jp", true},
		{"us-en", true},
		{"wt-wt", true},
		{"uk-en", true},
		{"", false},
		{"jp", false},
		{"jp-", false},
		{"-jp", false},
		{"JP-JP", false},
		{"jp-jp-jp", false},
		{"j-p", false},
	}

	for _, tt := range tests {
		t.Run(tt.region, func(t *testing.T) {
			t.Parallel()
			if got := isValidRegion(tt.region); got != tt.want {
				t.Errorf("isValidRegion(%q) = %v, want %v", tt.region, got, tt.want)
			}
		})
	}
}
