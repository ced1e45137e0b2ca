// Package llm implements the CompletionService against real model
// providers. Providers are tried in configured order with transparent
// failover; per-provider latency is tracked as a rolling average so the
// latency-optimized strategy can reorder subsequent calls.
package llm

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/blociq/comms-engine/pkg/contracts"
	"github.com/blociq/comms-engine/pkg/models"
)

// Provider kinds.
const (
	KindOpenAI    = "openai"
	KindAnthropic = "anthropic"
	KindGemini    = "gemini"
	KindOllama    = "ollama"
)

// Routing strategies.
const (
	StrategyFallback = "fallback"
	StrategyLatency  = "latency"
)

const (
	defaultMaxTokens   = 1200
	defaultTemperature = 0.7
)

// ProviderConfig describes one configured upstream provider.
type ProviderConfig struct {
	Name     string
	Kind     string
	Endpoint string
	APIKey   string
	Model    string // default model when the request names none
}

// Client routes completion requests to configured providers.
type Client struct {
	providers []ProviderConfig
	strategy  string
	client    *http.Client

	gemini geminiCaller // non-nil once a gemini provider initialises

	// Latency tracking: provider name → rolling avg ms
	latencyMu sync.RWMutex
	latencies map[string]int64
}

var _ contracts.CompletionService = (*Client)(nil)

// New creates a completion client over the given providers. Providers
// are tried in slice order under the fallback strategy.
func New(ctx context.Context, providers []ProviderConfig, strategy string) (*Client, error) {
	if len(providers) == 0 {
		return nil, fmt.Errorf("no completion providers configured")
	}
	if strategy == "" {
		strategy = StrategyFallback
	}

	c := &Client{
		providers: providers,
		strategy:  strategy,
		client: &http.Client{
			Timeout: 120 * time.Second,
		},
		latencies: make(map[string]int64),
	}

	for _, p := range providers {
		if p.Kind != KindGemini {
			continue
		}
		g, err := newGeminiCaller(ctx, p.APIKey)
		if err != nil {
			return nil, fmt.Errorf("gemini: init client: %w", err)
		}
		c.gemini = g
		break
	}

	return c, nil
}

// Complete sends the request to the first provider that succeeds.
func (c *Client) Complete(ctx context.Context, req *models.CompletionRequest) (*models.CompletionResponse, error) {
	ordered := c.orderProviders()

	var lastErr error
	for _, provider := range ordered {
		resp, err := c.callProvider(ctx, &provider, req)
		if err != nil {
			log.Warn().
				Str("provider", provider.Name).
				Str("kind", provider.Kind).
				Err(err).
				Msg("Provider call failed, trying next")
			lastErr = err
			continue
		}
		return resp, nil
	}

	return nil, fmt.Errorf("all providers failed, last error: %w", lastErr)
}

// orderProviders returns providers in try order for the strategy.
func (c *Client) orderProviders() []ProviderConfig {
	ordered := make([]ProviderConfig, len(c.providers))
	copy(ordered, c.providers)

	if c.strategy == StrategyLatency {
		c.latencyMu.RLock()
		sort.SliceStable(ordered, func(i, j int) bool {
			li := c.latencies[ordered[i].Name]
			lj := c.latencies[ordered[j].Name]
			if li == 0 {
				li = 1000 // default 1s for unknown
			}
			if lj == 0 {
				lj = 1000
			}
			return li < lj
		})
		c.latencyMu.RUnlock()
	}

	return ordered
}

func (c *Client) callProvider(ctx context.Context, provider *ProviderConfig, req *models.CompletionRequest) (*models.CompletionResponse, error) {
	start := time.Now()

	model := req.Model
	if model == "" {
		model = provider.Model
	}
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}

	var resp *models.CompletionResponse
	var err error

	switch provider.Kind {
	case KindOpenAI:
		resp, err = c.callOpenAI(ctx, provider, model, maxTokens, req)
	case KindAnthropic:
		resp, err = c.callAnthropic(ctx, provider, model, maxTokens, req)
	case KindGemini:
		resp, err = c.callGemini(ctx, provider, model, req)
	case KindOllama:
		resp, err = c.callOllama(ctx, provider, model, req)
	default:
		// Generic OpenAI-compatible endpoint
		resp, err = c.callOpenAI(ctx, provider, model, maxTokens, req)
	}

	if err != nil {
		return nil, err
	}

	latencyMs := time.Since(start).Milliseconds()
	resp.LatencyMs = latencyMs

	c.latencyMu.Lock()
	prev := c.latencies[provider.Name]
	if prev == 0 {
		c.latencies[provider.Name] = latencyMs
	} else {
		// Exponential moving average
		c.latencies[provider.Name] = (prev*7 + latencyMs*3) / 10
	}
	c.latencyMu.Unlock()

	return resp, nil
}
