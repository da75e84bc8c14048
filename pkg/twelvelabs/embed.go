// Package twelvelabs provides the embedding client for the catalog index.
// Text and image queries are embedded by the same upstream model family
// (Marengo), producing 1024-dimension vectors that live in one index
// alongside the ingested video-segment embeddings.
package twelvelabs

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

const (
	// DefaultModel is the retrieval embedding model.
	DefaultModel = "Marengo-retrieval-2.7"
	// Dims is the vector dimension the model produces.
	Dims = 1024
)

// Client calls the Twelve Labs embed API over HTTP.
type Client struct {
	baseURL string
	apiKey  string
	model   string
	client  *http.Client
}

// New creates an embedding client. The HTTP client carries its own timeout
// so a hung upstream surfaces as an error instead of blocking the caller.
func New(baseURL, apiKey string) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		model:   DefaultModel,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

type embedRequest struct {
	ModelName   string `json:"model_name"`
	Text        string `json:"text,omitempty"`
	ImageBase64 string `json:"image_base64,omitempty"`
}

type embedResponse struct {
	Embedding []float32 `json:"embedding"`
}

// EmbedText embeds a text query.
func (c *Client) EmbedText(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, fmt.Errorf("twelvelabs: empty text")
	}
	return c.embed(ctx, embedRequest{ModelName: c.model, Text: text})
}

// EmbedImage embeds an uploaded image.
func (c *Client) EmbedImage(ctx context.Context, image []byte) ([]float32, error) {
	if len(image) == 0 {
		return nil, fmt.Errorf("twelvelabs: empty image")
	}
	return c.embed(ctx, embedRequest{
		ModelName:   c.model,
		ImageBase64: base64.StdEncoding.EncodeToString(image),
	})
}

func (c *Client) embed(ctx context.Context, reqBody embedRequest) ([]float32, error) {
	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("twelvelabs embed: marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/v1.3/embed", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("twelvelabs embed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		return nil, fmt.Errorf("twelvelabs embed: status %d", resp.StatusCode)
	}

	var result embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("twelvelabs embed decode: %w", err)
	}
	if len(result.Embedding) != Dims {
		return nil, fmt.Errorf("twelvelabs embed: got %d dims, want %d", len(result.Embedding), Dims)
	}
	return result.Embedding, nil
}
