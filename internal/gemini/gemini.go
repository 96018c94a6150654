package gemini

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/albydefault/notes-app/internal/retry"
)

// callTimeout bounds a single generation request so a stuck remote call
// fails instead of holding the session open.
const callTimeout = 5 * time.Minute

// Client is a thin wrapper around the Gemini API for the two call shapes
// the pipeline needs: text-only and text-plus-images.
type Client struct {
	client *genai.Client
	model  string
}

// NewClient creates a Gemini client for the given model.
func NewClient(ctx context.Context, apiKey, model string) (*Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY environment variable not set")
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create new gemini client: %w", err)
	}
	return &Client{client: client, model: model}, nil
}

func (c *Client) Close() error {
	return c.client.Close()
}

// GenerateText runs a text-only generation call.
func (c *Client) GenerateText(ctx context.Context, prompt string) (string, error) {
	return c.generate(ctx, []genai.Part{genai.Text(prompt)})
}

// GenerateFromImages runs a multimodal call over the prompt followed by the
// images at the given paths, in order.
func (c *Client) GenerateFromImages(ctx context.Context, prompt string, imagePaths []string) (string, error) {
	parts := []genai.Part{genai.Text(prompt)}
	for _, path := range imagePaths {
		data, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("failed to read image %s: %w", path, err)
		}
		parts = append(parts, genai.ImageData(imageFormat(path), data))
	}
	return c.generate(ctx, parts)
}

func (c *Client) generate(ctx context.Context, parts []genai.Part) (string, error) {
	model := c.client.GenerativeModel(c.model)

	var text string
	err := retry.Do(ctx, func() error {
		callCtx, cancel := context.WithTimeout(ctx, callTimeout)
		defer cancel()

		resp, err := model.GenerateContent(callCtx, parts...)
		if err != nil {
			slog.Warn("Gemini call failed", "model", c.model, "error", err)
			return fmt.Errorf("failed to generate content: %w", err)
		}

		text, err = extractText(resp)
		return err
	})
	if err != nil {
		return "", err
	}

	slog.Debug("Gemini call succeeded", "model", c.model, "length", len(text))
	return text, nil
}

func extractText(resp *genai.GenerateContentResponse) (string, error) {
	if len(resp.Candidates) == 0 {
		return "", fmt.Errorf("no candidates returned from Gemini")
	}
	candidate := resp.Candidates[0]
	if candidate.Content == nil || len(candidate.Content.Parts) == 0 {
		return "", fmt.Errorf("empty content returned from Gemini")
	}
	if txt, ok := candidate.Content.Parts[0].(genai.Text); ok {
		return string(txt), nil
	}
	return "", fmt.Errorf("unexpected response format from Gemini")
}

func imageFormat(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png":
		return "png"
	default:
		return "jpeg"
	}
}
