package insight

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/flightyield/seatcast/internal/cache"
	"github.com/flightyield/seatcast/internal/htmlutil"
	"github.com/flightyield/seatcast/internal/metrics"
	"github.com/flightyield/seatcast/internal/models"
)

const (
	// NoInsight is the sentinel returned when every token budget down to the
	// floor overflowed the generation context. It is a result, not an error.
	NoInsight = "no insight available"

	maxOutputTokens = 900
	tokenStep       = 200
	tokenFloor      = 100

	cacheSize = 256
)

// GenerateFunc produces narrative text for a system instruction and user
// prompt under an output-token budget.
type GenerateFunc func(ctx context.Context, system, user string, maxTokens int) (string, error)

// NarrativeStore persists narratives across restarts.
type NarrativeStore interface {
	Narrative(route string, departureDate time.Time) (string, bool, error)
	SaveNarrative(route string, departureDate time.Time, text string) error
}

// Compiler turns forecast runs into cached strategic narratives. Lookups go
// memory cache, then durable store, then the generation service, so a
// repeated view of the same flight never pays for a second API call.
type Compiler struct {
	generate GenerateFunc
	store    NarrativeStore
	memory   *cache.TTL[string, string]
}

func NewCompiler(generate GenerateFunc, store NarrativeStore) (*Compiler, error) {
	memory, err := cache.NewTTL[string, string](cacheSize, 0)
	if err != nil {
		return nil, err
	}
	return &Compiler{generate: generate, store: store, memory: memory}, nil
}

// Narrative returns the narrative for a run, generating and caching it on
// first sight of the (route, departure date) key.
func (c *Compiler) Narrative(ctx context.Context, run *models.ForecastRun) (string, error) {
	key := run.Key()
	if text, ok := c.memory.Get(key); ok {
		metrics.NarrativeCacheTotal.WithLabelValues("memory").Inc()
		return text, nil
	}
	if c.store != nil {
		text, ok, err := c.store.Narrative(run.Route, run.DepartureDate)
		if err != nil {
			return "", fmt.Errorf("narrative lookup: %w", err)
		}
		if ok {
			metrics.NarrativeCacheTotal.WithLabelValues("store").Inc()
			c.memory.Set(key, text)
			return text, nil
		}
	}
	metrics.NarrativeCacheTotal.WithLabelValues("miss").Inc()

	text, err := c.generateWithShrink(ctx, BuildPrompt(run.Facts))
	if err != nil {
		metrics.NarrativeRequestsTotal.WithLabelValues("error").Inc()
		return "", err
	}

	c.memory.Set(key, text)
	if text == NoInsight {
		// The sentinel stays out of the durable store so a later batch run
		// can try again with fresher, smaller facts.
		metrics.NarrativeRequestsTotal.WithLabelValues("exhausted").Inc()
		return text, nil
	}

	metrics.NarrativeRequestsTotal.WithLabelValues("generated").Inc()
	if c.store != nil {
		if err := c.store.SaveNarrative(run.Route, run.DepartureDate, text); err != nil {
			log.Printf("insight: persisting narrative for %s: %v", key, err)
		}
	}
	return text, nil
}

// generateWithShrink walks the output-token budget down on context-length
// failures, abandoning the call once the floor has been tried.
func (c *Compiler) generateWithShrink(ctx context.Context, prompt string) (string, error) {
	for budget := maxOutputTokens; budget >= tokenFloor; budget -= tokenStep {
		text, err := c.generate(ctx, systemInstruction, prompt, budget)
		if err == nil {
			return htmlutil.Sanitize(text), nil
		}
		if !IsContextLength(err) {
			return "", fmt.Errorf("generate narrative: %w", err)
		}
		log.Printf("insight: context length exceeded at %d output tokens, shrinking", budget)
	}
	return NoInsight, nil
}
