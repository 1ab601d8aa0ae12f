package ollama

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ollama/ollama/api"

	"github.com/menta2k/croppy/pkg/client"
	"github.com/menta2k/croppy/pkg/types"
)

// DefaultURL is the local Ollama server.
const DefaultURL = "http://localhost:11434"

// DefaultTimeout bounds a request whose context has no deadline. Vision
// models on CPU are slow.
const DefaultTimeout = 300 * time.Second

// Client wraps the Ollama API client
type Client struct {
	client *api.Client
}

var _ client.VisionClient = (*Client)(nil)

// NewClient creates a client for the server at ollamaURL, or DefaultURL when
// it is empty. Any path is ignored.
func NewClient(ollamaURL string) (*Client, error) {
	return NewClientWithHTTP(ollamaURL, http.DefaultClient)
}

// NewClientWithHTTP is NewClient with a caller-supplied HTTP client.
func NewClientWithHTTP(ollamaURL string, hc *http.Client) (*Client, error) {
	if ollamaURL == "" {
		ollamaURL = DefaultURL
	}
	parsedURL, err := url.Parse(ollamaURL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}
	if parsedURL.Scheme == "" || parsedURL.Host == "" {
		return nil, fmt.Errorf("invalid URL %q: scheme and host required", ollamaURL)
	}

	baseURL := &url.URL{Scheme: parsedURL.Scheme, Host: parsedURL.Host}
	return &Client{client: api.NewClient(baseURL, hc)}, nil
}

// SimpleQuery sends prompt and image and returns the reply as plain text.
func (c *Client) SimpleQuery(ctx context.Context, model, prompt, imgB64 string) (string, error) {
	return c.chat(ctx, model, prompt, imgB64, nil, nil)
}

// LocateSubject asks the model for the main subject's box and parses the reply.
func (c *Client) LocateSubject(ctx context.Context, model, prompt, imgB64 string) (*types.AnalysisResult, error) {
	raw, err := c.chat(ctx, model, prompt, imgB64, json.RawMessage(`"json"`), modelOptions(model))
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(raw) == "" {
		return nil, errors.New("empty response from ollama")
	}
	return client.ParseSubject(raw), nil
}

func (c *Client) chat(ctx context.Context, model, prompt, imgB64 string, format json.RawMessage, options map[string]any) (string, error) {
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, DefaultTimeout)
		defer cancel()
	}

	msg := api.Message{Role: "user", Content: prompt}
	if imgB64 != "" {
		imgBytes, err := base64.StdEncoding.DecodeString(imgB64)
		if err != nil {
			return "", fmt.Errorf("failed to decode base64 image: %w", err)
		}
		msg.Images = []api.ImageData{api.ImageData(imgBytes)}
	}

	stream := false
	req := &api.ChatRequest{
		Model:    model,
		Messages: []api.Message{msg},
		Stream:   &stream,
		Format:   format,
		Options:  options,
	}

	var content strings.Builder
	err := c.client.Chat(ctx, req, func(resp api.ChatResponse) error {
		content.WriteString(resp.Message.Content)
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("ollama chat error: %w", err)
	}
	return content.String(), nil
}

// modelOptions returns sampling options tuned for known models.
func modelOptions(model string) map[string]any {
	m := strings.ToLower(model)
	if strings.Contains(m, "minicpm-v4") || strings.Contains(m, "minicpm-v-4") || strings.Contains(m, "minicpmv4") {
		return map[string]any{"temperature": 0.7, "top_p": 0.8, "num_ctx": 4096}
	}
	return map[string]any{"temperature": 0.2}
}
