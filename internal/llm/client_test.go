package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/blociq/comms-engine/pkg/models"
)

func openAIStub(t *testing.T, content string, gotBody *openAIRequest) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if gotBody != nil {
			if err := json.NewDecoder(r.Body).Decode(gotBody); err != nil {
				t.Errorf("bad request body: %v", err)
			}
		}
		json.NewEncoder(w).Encode(map[string]any{
			"id": "cmpl-1",
			"choices": []map[string]any{
				{"message": map[string]string{"content": content}},
			},
			"usage": map[string]int{"prompt_tokens": 10, "completion_tokens": 20, "total_tokens": 30},
		})
	}))
}

func failingStub(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream down", http.StatusInternalServerError)
	}))
}

func TestCompleteSendsSystemAndUser(t *testing.T) {
	var got openAIRequest
	srv := openAIStub(t, "Dear Resident,", &got)
	defer srv.Close()

	c, err := New(context.Background(), []ProviderConfig{
		{Name: "primary", Kind: KindOpenAI, Endpoint: srv.URL, APIKey: "k", Model: "gpt-4"},
	}, StrategyFallback)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	resp, err := c.Complete(context.Background(), &models.CompletionRequest{
		System:    "You are a property manager.",
		User:      "Draft a reply.",
		MaxTokens: 500,
	})
	if err != nil {
		t.Fatalf("Complete failed: %v", err)
	}

	if resp.Content != "Dear Resident," {
		t.Errorf("unexpected content: %q", resp.Content)
	}
	if resp.Provider != "primary" || resp.Model != "gpt-4" {
		t.Errorf("unexpected provenance: %s/%s", resp.Provider, resp.Model)
	}
	if resp.InputTokens != 10 || resp.OutputTokens != 20 {
		t.Errorf("usage not captured: in=%d out=%d", resp.InputTokens, resp.OutputTokens)
	}

	if len(got.Messages) != 2 {
		t.Fatalf("expected system+user messages, got %d", len(got.Messages))
	}
	if got.Messages[0].Role != "system" || got.Messages[1].Role != "user" {
		t.Errorf("unexpected message roles: %+v", got.Messages)
	}
	if got.MaxTokens != 500 {
		t.Errorf("max_tokens not forwarded: %d", got.MaxTokens)
	}
}

func TestCompleteFallsBackToNextProvider(t *testing.T) {
	bad := failingStub(t)
	defer bad.Close()
	good := openAIStub(t, "from backup", nil)
	defer good.Close()

	c, err := New(context.Background(), []ProviderConfig{
		{Name: "primary", Kind: KindOpenAI, Endpoint: bad.URL, APIKey: "k", Model: "gpt-4"},
		{Name: "backup", Kind: KindOllama, Endpoint: good.URL, Model: "llama3"},
	}, StrategyFallback)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	resp, err := c.Complete(context.Background(), &models.CompletionRequest{User: "hi"})
	if err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
	if resp.Provider != "backup" {
		t.Errorf("expected fallback to backup, got %s", resp.Provider)
	}
	if resp.Content != "from backup" {
		t.Errorf("unexpected content: %q", resp.Content)
	}
}

func TestCompleteAllProvidersFail(t *testing.T) {
	bad := failingStub(t)
	defer bad.Close()

	c, err := New(context.Background(), []ProviderConfig{
		{Name: "only", Kind: KindOpenAI, Endpoint: bad.URL, APIKey: "k", Model: "gpt-4"},
	}, StrategyFallback)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	_, err = c.Complete(context.Background(), &models.CompletionRequest{User: "hi"})
	if err == nil {
		t.Fatal("expected error when every provider fails")
	}
	if !strings.Contains(err.Error(), "all providers failed") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestAnthropicResponseParsing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("x-api-key") != "secret" {
			t.Errorf("missing api key header")
		}
		if r.Header.Get("anthropic-version") == "" {
			t.Errorf("missing anthropic-version header")
		}
		var req anthropicRequest
		json.NewDecoder(r.Body).Decode(&req)
		if req.System == "" {
			t.Errorf("system prompt not sent as top-level field")
		}
		json.NewEncoder(w).Encode(map[string]any{
			"id": "msg-1",
			"content": []map[string]string{
				{"type": "text", "text": "Dear "},
				{"type": "text", "text": "Resident,"},
			},
			"usage": map[string]int{"input_tokens": 5, "output_tokens": 7},
		})
	}))
	defer srv.Close()

	c, err := New(context.Background(), []ProviderConfig{
		{Name: "anthropic", Kind: KindAnthropic, Endpoint: srv.URL, APIKey: "secret", Model: "claude-3-5-haiku-20241022"},
	}, StrategyFallback)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	resp, err := c.Complete(context.Background(), &models.CompletionRequest{System: "sys", User: "hi"})
	if err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
	if resp.Content != "Dear Resident," {
		t.Errorf("text parts not concatenated: %q", resp.Content)
	}
	if resp.InputTokens != 5 || resp.OutputTokens != 7 {
		t.Errorf("usage not captured: %+v", resp)
	}
}

type fakeGemini struct {
	gotPrompt string
}

func (f *fakeGemini) generate(_ context.Context, model, prompt string) (string, error) {
	f.gotPrompt = prompt
	return "gemini says hi", nil
}

func TestGeminiPromptIncludesSystem(t *testing.T) {
	c := &Client{
		providers: []ProviderConfig{{Name: "gemini", Kind: KindGemini, Model: "gemini-2.0-flash"}},
		strategy:  StrategyFallback,
		latencies: make(map[string]int64),
	}
	fake := &fakeGemini{}
	c.gemini = fake

	resp, err := c.Complete(context.Background(), &models.CompletionRequest{System: "house rules", User: "draft it"})
	if err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
	if resp.Content != "gemini says hi" {
		t.Errorf("unexpected content: %q", resp.Content)
	}
	if !strings.HasPrefix(fake.gotPrompt, "house rules\n\n") {
		t.Errorf("system instruction not prepended: %q", fake.gotPrompt)
	}
}

func TestLatencyStrategyPrefersFastProvider(t *testing.T) {
	slow := openAIStub(t, "slow", nil)
	defer slow.Close()
	fast := openAIStub(t, "fast", nil)
	defer fast.Close()

	c, err := New(context.Background(), []ProviderConfig{
		{Name: "slow", Kind: KindOpenAI, Endpoint: slow.URL, APIKey: "k", Model: "gpt-4"},
		{Name: "fast", Kind: KindOpenAI, Endpoint: fast.URL, APIKey: "k", Model: "gpt-4"},
	}, StrategyLatency)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	// Seed the rolling averages as if prior calls had been observed.
	c.latencyMu.Lock()
	c.latencies["slow"] = 5000
	c.latencies["fast"] = 50
	c.latencyMu.Unlock()

	ordered := c.orderProviders()
	if ordered[0].Name != "fast" {
		t.Errorf("latency strategy should try fast first, got %s", ordered[0].Name)
	}

	resp, err := c.Complete(context.Background(), &models.CompletionRequest{User: "hi"})
	if err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
	if resp.Content != "fast" {
		t.Errorf("expected fast provider to serve, got %q", resp.Content)
	}
}
