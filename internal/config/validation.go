package config

import (
	"fmt"
	"os"
	"strings"
)

// Validate performs fail-fast validation of the loaded configuration.
// It is called by Load before any component is constructed; a missing
// generation credential therefore aborts startup rather than surfacing
// per-request.
func (c *Config) Validate() error {
	switch c.Provider {
	case ProviderGemini, ProviderGoogleAI:
		if os.Getenv("GEMINI_API_KEY") == "" {
			return fmt.Errorf("%w: GEMINI_API_KEY is required for provider %q", ErrMissingAPIKey, c.Provider)
		}
	case ProviderOpenAI:
		if os.Getenv("OPENAI_API_KEY") == "" {
			return fmt.Errorf("%w: OPENAI_API_KEY is required for provider %q", ErrMissingAPIKey, c.Provider)
		}
	default:
		return fmt.Errorf("%w: %q (supported: gemini, googleai, openai)", ErrInvalidProvider, c.Provider)
	}

	if strings.TrimSpace(c.ModelName) == "" {
		return fmt.Errorf("%w: model name must not be empty", ErrInvalidModelName)
	}

	if c.Temperature < 0 || c.Temperature > 2 {
		return fmt.Errorf("%w: %v (must be in [0, 2])", ErrInvalidTemperature, c.Temperature)
	}
	if c.MaxTokens <= 0 || c.MaxTokens > 65536 {
		return fmt.Errorf("%w: %d (must be in (0, 65536])", ErrInvalidMaxTokens, c.MaxTokens)
	}
	if c.TopP <= 0 || c.TopP > 1 {
		return fmt.Errorf("%w: %v (must be in (0, 1])", ErrInvalidTopP, c.TopP)
	}

	if c.GenerationTimeoutSeconds <= 0 || c.GenerationTimeoutSeconds > 300 {
		return fmt.Errorf("%w: %ds (must be in (0, 300])", ErrInvalidTimeout, c.GenerationTimeoutSeconds)
	}

	if c.RecentTurns <= 0 || c.RecentTurns > 100 {
		return fmt.Errorf("%w: %d (must be in (0, 100])", ErrInvalidRecentTurns, c.RecentTurns)
	}
	if c.HistoryMaxLines < 10 || c.HistoryMaxLines > 100000 {
		return fmt.Errorf("%w: %d (must be in [10, 100000])", ErrInvalidHistoryCap, c.HistoryMaxLines)
	}

	if c.RatePerSecond <= 0 {
		return fmt.Errorf("%w: rate %v per second (must be positive)", ErrInvalidRateLimit, c.RatePerSecond)
	}
	if c.RateBurst < 1 {
		return fmt.Errorf("%w: burst %d (must be at least 1)", ErrInvalidRateLimit, c.RateBurst)
	}

	if strings.TrimSpace(c.PostgresHost) == "" {
		return fmt.Errorf("%w: host must not be empty", ErrInvalidPostgresHost)
	}
	if c.PostgresPort <= 0 || c.PostgresPort > 65535 {
		return fmt.Errorf("%w: %d", ErrInvalidPostgresPort, c.PostgresPort)
	}
	if strings.TrimSpace(c.PostgresDBName) == "" {
		return fmt.Errorf("%w: database name must not be empty", ErrInvalidPostgresDBName)
	}

	return nil
}
