package ollama

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ollama/ollama/api"

	"github.com/menta2k/facade-measure/pkg/types"
)

// DefaultTimeout applies when the caller's context has no deadline
const DefaultTimeout = 300 * time.Second

// Client wraps the Ollama API client
type Client struct {
	client *api.Client
}

// NewClient creates a new Ollama client. Any path on ollamaURL is dropped.
func NewClient(ollamaURL string) (*Client, error) {
	parsedURL, err := url.Parse(ollamaURL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}
	if parsedURL.Scheme == "" || parsedURL.Host == "" {
		return nil, fmt.Errorf("invalid URL: %q has no scheme or host", ollamaURL)
	}

	baseURL := &url.URL{
		Scheme: parsedURL.Scheme,
		Host:   parsedURL.Host,
	}

	// Ignore OLLAMA_HOST and use the configured URL
	return &Client{client: api.NewClient(baseURL, http.DefaultClient)}, nil
}

// SimpleQuery asks a free-form question about an image
func (c *Client) SimpleQuery(ctx context.Context, model, prompt, imgB64 string) (string, error) {
	return c.chat(ctx, model, prompt, imgB64, nil)
}

// AnalyzeFacade asks the model for the façade outline and its openings
func (c *Client) AnalyzeFacade(ctx context.Context, model, prompt, imgB64 string) (*types.FacadeAnalysis, error) {
	content, err := c.chat(ctx, model, prompt, imgB64, modelOptions(model))
	if err != nil {
		return nil, err
	}
	if content == "" {
		return nil, fmt.Errorf("empty response from ollama")
	}
	return types.ParseFacadeAnalysis(content), nil
}

func (c *Client) chat(ctx context.Context, model, prompt, imgB64 string, options map[string]any) (string, error) {
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, DefaultTimeout)
		defer cancel()
	}

	imgBytes, err := base64.StdEncoding.DecodeString(imgB64)
	if err != nil {
		return "", fmt.Errorf("failed to decode base64 image: %w", err)
	}

	streamFalse := false
	req := &api.ChatRequest{
		Model: model,
		Messages: []api.Message{
			{
				Role:    "user",
				Content: prompt,
				Images:  []api.ImageData{api.ImageData(imgBytes)},
			},
		},
		Stream:  &streamFalse,
		Options: options,
	}

	var responseContent string
	err = c.client.Chat(ctx, req, func(resp api.ChatResponse) error {
		responseContent += resp.Message.Content
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("ollama chat error: %w", err)
	}
	return responseContent, nil
}

// modelOptions lowers the temperature for structured output and tunes the
// context window for MiniCPM-V 4.x
func modelOptions(model string) map[string]any {
	options := map[string]any{"temperature": 0.2}
	m := strings.ToLower(model)
	if strings.Contains(m, "minicpm-v4") || strings.Contains(m, "minicpm-v-4") || strings.Contains(m, "minicpmv4") {
		options["top_p"] = 0.8
		options["num_ctx"] = 4096
	}
	return options
}
