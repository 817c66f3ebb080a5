// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/nexora-labs/nexora-tui/internal/model"
)

// =============================================================================
// RELAY CONFIGURATION
// =============================================================================

// RelayConfig holds configuration options for the relay client.
type RelayConfig struct {
	// BaseURL is the relay base URL (default: http://127.0.0.1:8000)
	BaseURL string

	// ChatPath is the streaming chat endpoint (default: /chat)
	ChatPath string

	// ConnectTimeout bounds dialing and waiting for response headers (default: 10s).
	// The body itself is streamed without a deadline; cancel the context instead.
	ConnectTimeout time.Duration

	// ChunkSize is the maximum chunk handed to the decoder (default: 4096)
	ChunkSize int

	// Logger receives request diagnostics (default: no-op)
	Logger *zap.Logger
}

// DefaultRelayConfig returns the default relay configuration.
func DefaultRelayConfig() RelayConfig {
	return RelayConfig{
		BaseURL:        "http://127.0.0.1:8000",
		ChatPath:       "/chat",
		ConnectTimeout: 10 * time.Second,
		ChunkSize:      DefaultChunkSize,
	}
}

// chatRequest is the relay request body.
type chatRequest struct {
	Message string `json:"message"`
	Model   string `json:"model"`
}

// errorBody covers the relay's {"detail": ...} and generic {"error": ...} bodies.
type errorBody struct {
	Detail json.RawMessage `json:"detail"`
	Error  string          `json:"error"`
}

// =============================================================================
// RELAY CLIENT
// =============================================================================

// RelayClient sends chat turns to the relay backend.
//
// The relay answers POST {base}/chat with the model's text as a raw byte
// stream. RelayClient is safe for concurrent use; the base URL may be swapped
// at runtime with SetBaseURL.
type RelayClient struct {
	mu      sync.RWMutex
	baseURL string

	config     RelayConfig
	httpClient *http.Client
	logger     *zap.Logger
}

// NewRelayClient creates a relay client, filling zero config values with defaults.
func NewRelayClient(config RelayConfig) *RelayClient {
	defaults := DefaultRelayConfig()
	if config.BaseURL == "" {
		config.BaseURL = defaults.BaseURL
	}
	if config.ChatPath == "" {
		config.ChatPath = defaults.ChatPath
	}
	if config.ConnectTimeout == 0 {
		config.ConnectTimeout = defaults.ConnectTimeout
	}
	if config.ChunkSize <= 0 {
		config.ChunkSize = defaults.ChunkSize
	}
	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &RelayClient{
		baseURL: strings.TrimRight(config.BaseURL, "/"),
		config:  config,
		logger:  logger,
		httpClient: &http.Client{
			// No overall Timeout: it would cut long streams short.
			Transport: &http.Transport{
				Proxy:                 http.ProxyFromEnvironment,
				DialContext:           (&net.Dialer{Timeout: config.ConnectTimeout}).DialContext,
				ResponseHeaderTimeout: config.ConnectTimeout,
				MaxIdleConnsPerHost:   2,
				IdleConnTimeout:       90 * time.Second,
			},
		},
	}
}

// BaseURL returns the current relay base URL.
func (c *RelayClient) BaseURL() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.baseURL
}

// SetBaseURL points subsequent requests at a new relay.
func (c *RelayClient) SetBaseURL(baseURL string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.baseURL = strings.TrimRight(baseURL, "/")
}

// SendTurn posts the message and model id and returns the response body as a ByteStream.
func (c *RelayClient) SendTurn(ctx context.Context, message string, modelID model.ID) (ByteStream, error) {
	body, err := json.Marshal(chatRequest{Message: message, Model: string(modelID)})
	if err != nil {
		return nil, &Error{Op: "request", Err: err}
	}

	url := c.BaseURL() + c.config.ChatPath
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, &Error{Op: "request", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")

	c.logger.Debug("relay request", zap.String("url", url), zap.String("model", string(modelID)))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &Error{Op: "open", Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		return nil, &HTTPError{
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Detail:     readErrorDetail(resp.Body),
		}
	}

	if resp.Body == nil || resp.Body == http.NoBody {
		if resp.Body != nil {
			resp.Body.Close()
		}
		return nil, &Error{Op: "open", Err: ErrNoBody}
	}

	return NewReaderStream(resp.Body, c.config.ChunkSize), nil
}

// Ping checks that the relay answers its health endpoint.
func (c *RelayClient) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL()+"/", nil)
	if err != nil {
		return &Error{Op: "request", Err: err}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &Error{Op: "open", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &HTTPError{StatusCode: resp.StatusCode, Status: resp.Status, Detail: readErrorDetail(resp.Body)}
	}

	var health struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 4096)).Decode(&health); err != nil {
		return &Error{Op: "read", Err: fmt.Errorf("decode health response: %w", err)}
	}
	if health.Status != "healthy" {
		return &Error{Op: "read", Err: fmt.Errorf("relay reports status %q", health.Status)}
	}
	return nil
}

// readErrorDetail extracts a human-readable message from an error body.
func readErrorDetail(r io.Reader) string {
	data, err := io.ReadAll(io.LimitReader(r, 8192))
	if err != nil || len(data) == 0 {
		return ""
	}

	var eb errorBody
	if err := json.Unmarshal(data, &eb); err == nil {
		if len(eb.Detail) > 0 {
			var s string
			if json.Unmarshal(eb.Detail, &s) == nil {
				return s
			}
			return string(eb.Detail)
		}
		if eb.Error != "" {
			return eb.Error
		}
	}
	return strings.TrimSpace(string(data))
}
