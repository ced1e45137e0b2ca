package llm

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/blociq/comms-engine/pkg/models"
)

// geminiCaller is the narrow slice of the genai client used here,
// separated so tests can substitute a fake.
type geminiCaller interface {
	generate(ctx context.Context, model, prompt string) (string, error)
}

type geminiClient struct {
	client *genai.Client
}

// newGeminiCaller creates a Gemini client. An empty apiKey falls back
// to Application Default Credentials.
func newGeminiCaller(ctx context.Context, apiKey string) (geminiCaller, error) {
	cfg := &genai.ClientConfig{}
	if apiKey != "" {
		cfg.APIKey = apiKey
	}
	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return &geminiClient{client: client}, nil
}

func (g *geminiClient) generate(ctx context.Context, model, prompt string) (string, error) {
	content := genai.NewContentFromText(prompt, genai.RoleUser)
	resp, err := g.client.Models.GenerateContent(ctx, model, []*genai.Content{content}, nil)
	if err != nil {
		return "", fmt.Errorf("failed to generate content: %w", err)
	}
	if len(resp.Candidates) == 0 {
		return "", fmt.Errorf("no response candidates")
	}

	var result strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if part.Text != "" {
			result.WriteString(part.Text)
		}
	}
	return result.String(), nil
}

func (c *Client) callGemini(ctx context.Context, provider *ProviderConfig, model string, req *models.CompletionRequest) (*models.CompletionResponse, error) {
	if c.gemini == nil {
		return nil, fmt.Errorf("gemini: client not initialized for provider %s", provider.Name)
	}

	// Gemini takes a single prompt; prepend the system instruction.
	prompt := req.User
	if req.System != "" {
		prompt = req.System + "\n\n" + req.User
	}

	content, err := c.gemini.generate(ctx, model, prompt)
	if err != nil {
		return nil, fmt.Errorf("gemini: %w", err)
	}

	return &models.CompletionResponse{
		Provider: provider.Name,
		Model:    model,
		Content:  content,
	}, nil
}
