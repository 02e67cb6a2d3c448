package llm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/finsphere/finsphere/internal/breaker"
)

// ErrNoModels is returned by a FallbackClient with nothing configured
var ErrNoModels = errors.New("no LLM models configured")

// NamedCompleter pairs a model with the name it is logged under
type NamedCompleter struct {
	Name      string
	Completer Completer
}

// FallbackClient tries each model in order until one answers. The whole
// chain runs inside the LLM circuit breaker so a dead model server stops
// costing request latency once the breaker opens.
type FallbackClient struct {
	models   []NamedCompleter
	breakers *breaker.Manager
}

// NewFallbackClient creates a client with automatic model fallback.
// A nil manager disables the breaker.
func NewFallbackClient(breakers *breaker.Manager, models ...NamedCompleter) *FallbackClient {
	if breakers == nil {
		breakers = breaker.NewPassthroughManager()
	}
	return &FallbackClient{models: models, breakers: breakers}
}

// CompleteWithSystem implements Completer
func (fc *FallbackClient) CompleteWithSystem(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	if len(fc.models) == 0 {
		return "", ErrNoModels
	}

	return breaker.Execute(fc.breakers, fc.breakers.LLM(), breaker.ServiceLLM, func() (string, error) {
		var lastErr error

		for i, m := range fc.models {
			if err := ctx.Err(); err != nil {
				return "", err
			}

			start := time.Now()
			text, err := m.Completer.CompleteWithSystem(ctx, systemPrompt, userPrompt)
			if err == nil {
				if i > 0 {
					log.Info().
						Str("model", m.Name).
						Int("attempt", i+1).
						Dur("duration", time.Since(start)).
						Msg("LLM completion succeeded on fallback model")
				}
				return text, nil
			}

			lastErr = err
			log.Warn().
				Err(err).
				Str("model", m.Name).
				Int("attempt", i+1).
				Int("total_models", len(fc.models)).
				Msg("LLM completion failed, trying fallback")
		}

		return "", fmt.Errorf("all models failed, last error: %w", lastErr)
	})
}
