package advisory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
)

// Config selects and configures the generator.
type Config struct {
	Provider string
	APIKey   string
	Model    string
	BaseURL  string
	Timeout  time.Duration
}

// NewGenerator builds the generator for cfg.Provider. A missing API key
// returns ErrUnavailable so the caller can run with advisory disabled.
func NewGenerator(ctx context.Context, cfg Config) (Generator, error) {
	switch cfg.Provider {
	case "", ProviderGemini:
		return NewGeminiGenerator(ctx, cfg.APIKey, cfg.Model)
	case ProviderOpenAI:
		return NewOpenAIGenerator(cfg.APIKey, cfg.Model, cfg.BaseURL)
	case ProviderCompatible:
		return NewCompatibleGenerator(cfg.APIKey, cfg.Model, cfg.BaseURL, cfg.Timeout)
	default:
		return nil, fmt.Errorf("unsupported advisory provider %q", cfg.Provider)
	}
}

// New builds a gateway. Any generator construction failure leaves the
// gateway disabled; predictions never depend on it.
func New(ctx context.Context, cfg Config, opts Options) *Gateway {
	gen, err := NewGenerator(ctx, cfg)
	if err != nil {
		if errors.Is(err, ErrUnavailable) {
			log.Warn().Str("provider", cfg.Provider).Msg("No advisory API key set, advisory questions disabled")
		} else {
			log.Error().Err(err).Str("provider", cfg.Provider).Msg("Failed to create advisory client, advisory questions disabled")
		}
		return NewGateway(nil, opts)
	}

	if opts.Timeout <= 0 {
		opts.Timeout = cfg.Timeout
	}
	log.Info().Str("provider", gen.Name()).Str("model", cfg.Model).Msg("Advisory service configured")
	return NewGateway(gen, opts)
}
