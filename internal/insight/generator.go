package insight

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"github.com/flightyield/seatcast/internal/httputil"
)

const (
	// DefaultModel balances narrative quality against per-call cost.
	DefaultModel = "gpt-4o-mini"

	generationTimeout = 60 * time.Second
	temperature       = 0.4
)

// Generator produces narrative text through OpenAI chat completions.
type Generator struct {
	client openai.Client
	model  string
}

// NewGenerator creates a narrative generator.
// It reads the OPENAI_API_KEY environment variable for authentication.
func NewGenerator(model string) (*Generator, error) {
	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		return nil, errors.New("OPENAI_API_KEY environment variable not set")
	}
	if model == "" {
		model = DefaultModel
	}

	client := openai.NewClient(
		option.WithAPIKey(apiKey),
		option.WithHTTPClient(httputil.NewClient(generationTimeout)),
	)

	return &Generator{client: client, model: model}, nil
}

// Generate requests one completion under the given output-token budget.
func (g *Generator) Generate(ctx context.Context, system, user string, maxTokens int) (string, error) {
	resp, err := g.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(g.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(system),
			openai.UserMessage(user),
		},
		MaxTokens:   openai.Int(int64(maxTokens)),
		Temperature: openai.Float(temperature),
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("no completion choices returned")
	}
	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		return "", errors.New("empty completion returned")
	}
	return text, nil
}

// IsContextLength reports whether err is the service's context-length
// overflow condition, the one failure the compiler shrinks and retries.
func IsContextLength(err error) bool {
	var apiErr *openai.Error
	if !errors.As(err, &apiErr) {
		return false
	}
	if apiErr.Code == "context_length_exceeded" {
		return true
	}
	return strings.Contains(strings.ToLower(apiErr.Message), "context length")
}
