// Package gateway wraps the remote document-understanding service with rate
// limiting, retry with backoff, and circuit breaking.
package gateway

import (
	"context"
	"fmt"
	"strings"

	"github.com/nmoreno/facturia/internal/model"
)

// RawResponse is the free-text payload returned by the remote service. It is
// intended to contain structured data but carries no schema guarantee.
type RawResponse struct {
	Text string
}

// Client submits one document to a remote classification service.
type Client interface {
	Classify(ctx context.Context, doc *model.Document, instructions string) (RawResponse, error)
}

// ClientConfig holds configuration for the remote service clients.
type ClientConfig struct {
	Provider    string
	APIKey      string
	Model       string
	Temperature float64
	MaxTokens   int
}

// NewClient creates a remote classifier client for the configured provider.
func NewClient(cfg ClientConfig) (Client, error) {
	switch strings.ToLower(cfg.Provider) {
	case "gemini", "":
		return newGeminiClient(cfg)
	case "anthropic":
		return newAnthropicClient(cfg)
	default:
		return nil, fmt.Errorf("unsupported classification provider: %s", cfg.Provider)
	}
}
