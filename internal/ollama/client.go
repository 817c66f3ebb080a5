// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/nexora-labs/nexora-tui/internal/model"
	"github.com/nexora-labs/nexora-tui/internal/transport"
)

// =============================================================================
// ERROR TYPES
// =============================================================================

// ClientError represents an error from the Ollama client.
type ClientError struct {
	Type    ErrorType
	Message string
	Cause   error
}

func (e *ClientError) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *ClientError) Unwrap() error {
	return e.Cause
}

// ErrorType categorizes client errors for handling.
type ErrorType int

const (
	ErrTypeUnknown ErrorType = iota
	ErrTypeNotRunning
	ErrTypeTimeout
	ErrTypeModelNotFound
	ErrTypeConnection
	ErrTypeInvalidResponse
)

// Sentinel errors for easy checking.
var (
	ErrNotRunning    = &ClientError{Type: ErrTypeNotRunning, Message: "Ollama is not running"}
	ErrTimeout       = &ClientError{Type: ErrTypeTimeout, Message: "request timed out"}
	ErrModelNotFound = &ClientError{Type: ErrTypeModelNotFound, Message: "model not found"}
)

// =============================================================================
// CLIENT CONFIGURATION
// =============================================================================

// ClientConfig holds configuration options for the Ollama client.
type ClientConfig struct {
	// BaseURL is the Ollama API base URL (default: http://127.0.0.1:11434)
	// Note: Uses explicit IPv4 address instead of localhost to avoid IPv6 resolution issues on Windows
	BaseURL string

	// Timeout for non-streaming requests (default: 30s)
	Timeout time.Duration

	// StreamTimeout for establishing streaming connections (default: 5s)
	StreamTimeout time.Duration

	// ChunkSize is the maximum chunk handed to the decoder (default: 4096)
	ChunkSize int

	// Options are sent with every chat request when set
	Options *Options

	// Logger receives request diagnostics (default: no-op)
	Logger *zap.Logger
}

// DefaultConfig returns the default client configuration.
func DefaultConfig() *ClientConfig {
	return &ClientConfig{
		BaseURL:       "http://127.0.0.1:11434",
		Timeout:       30 * time.Second,
		StreamTimeout: 5 * time.Second,
		ChunkSize:     transport.DefaultChunkSize,
	}
}

// =============================================================================
// CLIENT
// =============================================================================

// Client handles communication with the Ollama API and implements
// transport.Transport.
//
// The Client is thread-safe for concurrent use.
type Client struct {
	mu      sync.RWMutex
	baseURL string

	config       *ClientConfig
	httpClient   *http.Client
	streamClient *http.Client
	logger       *zap.Logger
}

var (
	_ transport.Transport = (*Client)(nil)
	_ transport.Pinger    = (*Client)(nil)
)

// NewClient creates a new Ollama client with default configuration.
func NewClient() *Client {
	return NewClientWithConfig(DefaultConfig())
}

// NewClientWithConfig creates a new Ollama client with custom configuration.
func NewClientWithConfig(config *ClientConfig) *Client {
	if config == nil {
		config = DefaultConfig()
	}

	// Fill in defaults for any zero values
	defaults := DefaultConfig()
	if config.BaseURL == "" {
		config.BaseURL = defaults.BaseURL
	}
	if config.Timeout == 0 {
		config.Timeout = defaults.Timeout
	}
	if config.StreamTimeout == 0 {
		config.StreamTimeout = defaults.StreamTimeout
	}
	if config.ChunkSize <= 0 {
		config.ChunkSize = defaults.ChunkSize
	}
	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Client{
		baseURL: strings.TrimRight(config.BaseURL, "/"),
		config:  config,
		logger:  logger,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
		// No overall timeout for streaming; cancellation comes from the context.
		streamClient: &http.Client{
			Transport: &http.Transport{
				Proxy:       http.ProxyFromEnvironment,
				DialContext: (&net.Dialer{Timeout: config.StreamTimeout}).DialContext,
			},
		},
	}
}

// BaseURL returns the current Ollama base URL.
func (c *Client) BaseURL() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.baseURL
}

// SetBaseURL points subsequent requests at a different Ollama server.
func (c *Client) SetBaseURL(baseURL string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.baseURL = strings.TrimRight(baseURL, "/")
}

// =============================================================================
// HEALTH CHECK
// =============================================================================

// CheckRunning verifies that Ollama is reachable and running.
func (c *Client) CheckRunning(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL(), nil)
	if err != nil {
		return &ClientError{Type: ErrTypeConnection, Message: "failed to create request", Cause: err}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return classifyDoError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &ClientError{
			Type:    ErrTypeConnection,
			Message: "unexpected status from Ollama: " + resp.Status,
		}
	}

	return nil
}

// Ping implements transport.Pinger.
func (c *Client) Ping(ctx context.Context) error {
	return c.CheckRunning(ctx)
}

// =============================================================================
// MODEL OPERATIONS
// =============================================================================

// ListModels retrieves all locally installed models.
func (c *Client) ListModels(ctx context.Context) ([]ModelInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL()+"/api/tags", nil)
	if err != nil {
		return nil, &ClientError{Type: ErrTypeConnection, Message: "failed to create request", Cause: err}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, classifyDoError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &ClientError{
			Type:    ErrTypeInvalidResponse,
			Message: "failed to list models: " + resp.Status,
		}
	}

	var result ListModelsResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, &ClientError{Type: ErrTypeInvalidResponse, Message: "failed to decode response", Cause: err}
	}

	return result.Models, nil
}

// =============================================================================
// STREAMING CHAT
// =============================================================================

// SendTurn sends message as a single user turn to /api/chat and returns the
// assistant's text as a byte stream. The NDJSON framing is consumed here so
// callers see only content bytes.
func (c *Client) SendTurn(ctx context.Context, message string, modelID model.ID) (transport.ByteStream, error) {
	reqBody := ChatRequest{
		Model:    string(modelID),
		Messages: []Message{NewUserMessage(message)},
		Stream:   true,
		Options:  c.config.Options,
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, &transport.Error{Op: "request", Err: err}
	}

	url := c.BaseURL() + "/api/chat"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, &transport.Error{Op: "request", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	c.logger.Debug("ollama request", zap.String("url", url), zap.String("model", string(modelID)))

	resp, err := c.streamClient.Do(req)
	if err != nil {
		return nil, &transport.Error{Op: "open", Err: classifyDoError(err)}
	}

	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		httpErr := &transport.HTTPError{StatusCode: resp.StatusCode, Status: resp.Status}
		var ollamaErr OllamaError
		if err := json.NewDecoder(io.LimitReader(resp.Body, 8192)).Decode(&ollamaErr); err == nil {
			httpErr.Detail = ollamaErr.Error
		}
		if resp.StatusCode == http.StatusNotFound && httpErr.Detail == "" {
			httpErr.Detail = ErrModelNotFound.Message
		}
		return nil, httpErr
	}

	if resp.Body == nil || resp.Body == http.NoBody {
		return nil, &transport.Error{Op: "open", Err: transport.ErrNoBody}
	}

	pr, pw := io.Pipe()
	go func() {
		reader := NewStreamReader(resp.Body)
		err := reader.Process(ctx, func(chunk StreamChunk) error {
			if chunk.Content == "" {
				return nil
			}
			_, werr := io.WriteString(pw, chunk.Content)
			return werr
		})
		resp.Body.Close()
		c.logger.Debug("ollama stream closed",
			zap.String("model", reader.GetModel()),
			zap.Int("chunks", reader.GetTokenCount()),
			zap.Error(err))
		pw.CloseWithError(err)
	}()

	return transport.NewReaderStream(&pipeBody{PipeReader: pr, body: resp.Body}, c.config.ChunkSize), nil
}

// pipeBody closes both ends so the parsing goroutine exits promptly.
type pipeBody struct {
	*io.PipeReader
	body io.Closer
}

func (p *pipeBody) Close() error {
	p.PipeReader.Close()
	return p.body.Close()
}

// =============================================================================
// UTILITY METHODS
// =============================================================================

// GetConfig returns the client configuration.
func (c *Client) GetConfig() *ClientConfig {
	return c.config
}

func classifyDoError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return &ClientError{Type: ErrTypeTimeout, Message: ErrTimeout.Message, Cause: err}
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	return &ClientError{Type: ErrTypeNotRunning, Message: ErrNotRunning.Message, Cause: err}
}

// IsNotRunning checks if an error indicates Ollama is not running.
func IsNotRunning(err error) bool {
	var clientErr *ClientError
	if errors.As(err, &clientErr) {
		return clientErr.Type == ErrTypeNotRunning
	}
	return false
}

// IsTimeout checks if an error is a timeout error.
func IsTimeout(err error) bool {
	var clientErr *ClientError
	if errors.As(err, &clientErr) {
		return clientErr.Type == ErrTypeTimeout
	}
	return false
}

// IsModelNotFound checks if an error is a model not found error.
func IsModelNotFound(err error) bool {
	if httpErr, ok := transport.IsHTTPError(err); ok {
		return httpErr.StatusCode == http.StatusNotFound
	}
	var clientErr *ClientError
	if errors.As(err, &clientErr) {
		return clientErr.Type == ErrTypeModelNotFound
	}
	return false
}
