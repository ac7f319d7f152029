// Package classify talks to a local model server for event triage.
// The server is a small HTTP wrapper around an on-device model; when it is
// down the caller is expected to fall back to deterministic rules.
package classify

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const defaultTimeout = 30 * time.Second

// Client is a classification backend over HTTP.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
}

// New creates a client for the model server at baseURL.
func New(baseURL string) *Client {
	return &Client{
		BaseURL:    baseURL,
		HTTPClient: &http.Client{Timeout: defaultTimeout},
	}
}

type classifyRequest struct {
	Prompt    string `json:"prompt"`
	MaxTokens int    `json:"max_tokens"`
}

type classifyResponse struct {
	Content string `json:"content"`
	Error   string `json:"error,omitempty"`
}

// Classify sends a prompt to the model server and returns the raw
// completion text.
func (c *Client) Classify(prompt string, maxTokens int) (string, error) {
	body, err := json.Marshal(classifyRequest{Prompt: prompt, MaxTokens: maxTokens})
	if err != nil {
		return "", fmt.Errorf("failed to encode request: %w", err)
	}

	resp, err := c.HTTPClient.Post(c.BaseURL+"/classify", "application/json", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("model server unreachable: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("model server returned %d: %s", resp.StatusCode, bytes.TrimSpace(data))
	}

	var parsed classifyResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return "", fmt.Errorf("unparsable model response: %w", err)
	}
	if parsed.Error != "" {
		return "", fmt.Errorf("model server error: %s", parsed.Error)
	}
	return parsed.Content, nil
}

// Health reports whether the model server is up.
func (c *Client) Health() error {
	resp, err := c.HTTPClient.Get(c.BaseURL + "/health")
	if err != nil {
		return fmt.Errorf("model server unreachable: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("model server returned %d", resp.StatusCode)
	}
	return nil
}
