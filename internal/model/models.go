// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for chat turns and models.
package model

import (
	"fmt"
	"strings"
)

// ID identifies a model on the wire. Valid values are the members of a Catalog.
type ID string

// String returns the string representation of the id.
func (id ID) String() string {
	return string(id)
}

// =============================================================================
// MODEL INFO TYPE
// =============================================================================

// Info describes one selectable model.
type Info struct {
	// ID is the model identifier sent to the backend
	ID ID `json:"id" toml:"id" yaml:"id"`

	// Name is the human-readable display name
	Name string `json:"name" toml:"name" yaml:"name"`

	// Provider identifies who serves the model (OpenAI, xAI, Local)
	Provider string `json:"provider" toml:"provider" yaml:"provider"`

	// Description is a brief explanation of the model's strengths
	Description string `json:"description" toml:"description" yaml:"description"`
}

// Label returns the display name, falling back to the id.
func (i Info) Label() string {
	if i.Name != "" {
		return i.Name
	}
	return string(i.ID)
}

// =============================================================================
// CATALOG
// =============================================================================

// Catalog is the closed, ordered set of models a session may use.
// The first entry is the default selection.
type Catalog []Info

// DefaultCatalog returns the models served by the relay backend.
func DefaultCatalog() Catalog {
	return Catalog{
		{
			ID:          "gpt-3.5-turbo",
			Name:        "GPT-3.5 Turbo",
			Provider:    "OpenAI",
			Description: "Fast general purpose chat",
		},
		{
			ID:          "gpt-4o",
			Name:        "GPT-4o",
			Provider:    "OpenAI",
			Description: "Fast multimodal model with vision",
		},
		{
			ID:          "gpt-4o-mini",
			Name:        "GPT-4o Mini",
			Provider:    "OpenAI",
			Description: "Cost-effective for simple tasks",
		},
		{
			ID:          "grok-2-latest",
			Name:        "Grok 2",
			Provider:    "xAI",
			Description: "xAI's conversational model",
		},
	}
}

// CatalogFromIDs builds a catalog from bare ids, borrowing metadata from the
// default catalog when an id is known there.
func CatalogFromIDs(ids []string) Catalog {
	known := DefaultCatalog()
	out := make(Catalog, 0, len(ids))
	for _, raw := range ids {
		id := ID(strings.TrimSpace(raw))
		if info, ok := known.Lookup(id); ok {
			out = append(out, info)
			continue
		}
		out = append(out, Info{ID: id, Name: string(id), Provider: inferProvider(id)})
	}
	return out
}

// Contains reports whether id is a member of the catalog.
func (c Catalog) Contains(id ID) bool {
	_, ok := c.Lookup(id)
	return ok
}

// Lookup returns the entry for id.
func (c Catalog) Lookup(id ID) (Info, bool) {
	for _, info := range c {
		if info.ID == id {
			return info, true
		}
	}
	return Info{}, false
}

// IDs returns the member ids in catalog order.
func (c Catalog) IDs() []ID {
	ids := make([]ID, len(c))
	for i, info := range c {
		ids[i] = info.ID
	}
	return ids
}

// Validate checks that the catalog is non-empty and has no duplicate or blank ids.
func (c Catalog) Validate() error {
	if len(c) == 0 {
		return fmt.Errorf("model catalog is empty")
	}
	seen := make(map[ID]bool, len(c))
	for i, info := range c {
		if strings.TrimSpace(string(info.ID)) == "" {
			return fmt.Errorf("model catalog entry %d has an empty id", i)
		}
		if seen[info.ID] {
			return fmt.Errorf("model catalog lists %q more than once", info.ID)
		}
		seen[info.ID] = true
	}
	return nil
}

// inferProvider guesses a provider label from common id prefixes.
func inferProvider(id ID) string {
	lower := strings.ToLower(string(id))
	switch {
	case strings.HasPrefix(lower, "gpt"), strings.HasPrefix(lower, "o1"), strings.HasPrefix(lower, "o3"):
		return "OpenAI"
	case strings.HasPrefix(lower, "grok"):
		return "xAI"
	case strings.HasPrefix(lower, "claude"):
		return "Anthropic"
	default:
		return "Local"
	}
}
