package config

import (
	"fmt"
	"slices"
	"strings"
)

// Validate validates configuration values.
// Returns sentinel errors that can be checked with errors.Is().
func (c *Config) Validate() error {
	// 0. Check for nil config (defensive programming)
	if c == nil {
		return ErrConfigNil
	}

	// 1. Provider validation and provider-specific credentials
	switch c.Provider {
	case ProviderAzure:
		if c.AzureAPIKey == "" {
			return fmt.Errorf("%w: AZURE_OPENAI_API_KEY environment variable is required", ErrMissingAPIKey)
		}
		if c.AzureEndpoint == "" {
			return fmt.Errorf("%w: set AZURE_OPENAI_ENDPOINT (e.g. https://your-resource.openai.azure.com/)", ErrMissingEndpoint)
		}
		if c.AzureDeployment == "" {
			return fmt.Errorf("%w: set AZURE_OPENAI_DEPLOYMENT_NAME", ErrMissingDeployment)
		}
	case ProviderGemini:
		if c.GeminiAPIKey == "" {
			return fmt.Errorf("%w: GEMINI_API_KEY environment variable is required\n"+
				"Get your API key at: https://ai.google.dev/gemini-api/docs/api-key",
				ErrMissingAPIKey)
		}
		if c.ModelName == "" {
			return fmt.Errorf("%w: model_name cannot be empty", ErrInvalidModelName)
		}
	default:
		return fmt.Errorf("%w: %q, must be %q or %q", ErrInvalidProvider, c.Provider, ProviderAzure, ProviderGemini)
	}

	// 2. Model tuning validation
	// Temperature range: 0.0 (deterministic) to 2.0 (maximum creativity)
	if c.Temperature < 0.0 || c.Temperature > 2.0 {
		return fmt.Errorf("%w: must be between 0.0 and 2.0, got %.2f", ErrInvalidTemperature, c.Temperature)
	}

	if c.MaxTokens < 1 || c.MaxTokens > 2097152 {
		return fmt.Errorf("%w: must be between 1 and 2,097,152, got %d", ErrInvalidMaxTokens, c.MaxTokens)
	}

	// 3. Agent type validation
	validAgents := []string{AgentDirect, AgentContext, AgentTools, AgentWebSearch}
	if !slices.Contains(validAgents, c.AgentType) {
		return fmt.Errorf("%w: %q is not valid, must be one of: %v", ErrInvalidAgentType, c.AgentType, validAgents)
	}

	// 4. Search configuration validation
	if c.Search.MaxResults < 1 || c.Search.MaxResults > 10 {
		return fmt.Errorf("%w: must be between 1 and 10, got %d", ErrInvalidMaxResults, c.Search.MaxResults)
	}

	if c.Search.MaxQueryRefinements < 0 || c.Search.MaxQueryRefinements > 5 {
		return fmt.Errorf("%w: must be between 0 and 5, got %d", ErrInvalidRefinements, c.Search.MaxQueryRefinements)
	}

	// Region codes are "xx-yy" (e.g. "jp-jp") or "wt-wt" for worldwide
	if !isValidRegion(c.Search.Region) {
		return fmt.Errorf("%w: %q, expected a code like \"jp-jp\", \"us-en\" or \"wt-wt\"", ErrInvalidRegion, c.Search.Region)
	}

	return nil
}

// isValidRegion checks a DuckDuckGo region code: two lowercase ASCII groups
// joined by a hyphen.
func isValidRegion(region string) bool {
	parts := strings.Split(region, "-")
	if len(parts) != 2 {
		return false
	}
	for _, p := range parts {
		if len(p) < 2 || len(p) > 3 {
			return false
		}
		for i := range len(p) {
			if p[i] < 'a' || p[i] > 'z' {
				return false
			}
		}
	}
	return true
}
