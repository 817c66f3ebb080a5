// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/nexora-labs/nexora-tui/internal/config"
	"github.com/nexora-labs/nexora-tui/internal/ollama"
	"github.com/nexora-labs/nexora-tui/internal/transport"
)

// endpoint is the part of both backend clients that config reload needs.
type endpoint interface {
	transport.Transport
	transport.Pinger
	BaseURL() string
	SetBaseURL(string)
}

// Backend is the configured chat backend.
type Backend struct {
	endpoint

	// Kind is config.BackendRelay or config.BackendOllama
	Kind string

	// ollama is set for the Ollama backend only
	ollama *ollama.Client
}

// NewBackend builds the transport selected by cfg.Backend.Kind.
func NewBackend(cfg *config.Config, logger *zap.Logger) (*Backend, error) {
	timeout := time.Duration(cfg.Backend.ConnectTimeoutSecs) * time.Second

	switch cfg.Backend.Kind {
	case config.BackendRelay:
		client := transport.NewRelayClient(transport.RelayConfig{
			BaseURL:        cfg.Backend.URL,
			ChatPath:       cfg.Backend.ChatPath,
			ConnectTimeout: timeout,
			ChunkSize:      cfg.Backend.ChunkSize,
			Logger:         logger.Named("relay"),
		})
		return &Backend{endpoint: client, Kind: config.BackendRelay}, nil

	case config.BackendOllama:
		oc := ollama.DefaultConfig()
		oc.BaseURL = cfg.Backend.URL
		oc.StreamTimeout = timeout
		oc.ChunkSize = cfg.Backend.ChunkSize
		oc.Logger = logger.Named("ollama")
		client := ollama.NewClientWithConfig(oc)
		return &Backend{endpoint: client, Kind: config.BackendOllama, ollama: client}, nil

	default:
		return nil, fmt.Errorf("unknown backend kind %q", cfg.Backend.Kind)
	}
}

// ListRemoteModels returns the models installed on an Ollama backend.
func (b *Backend) ListRemoteModels(ctx context.Context) ([]ollama.ModelInfo, error) {
	if b.ollama == nil {
		return nil, &UsageError{
			Field:   "--remote",
			Reason:  "listing installed models needs the ollama backend",
			Example: "NEXORA_BACKEND=ollama nexora models --remote",
		}
	}
	return b.ollama.ListModels(ctx)
}
