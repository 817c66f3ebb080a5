// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for chat turns and models.
package model

import (
	"errors"
	"fmt"
	"sync"
)

// ErrInvalidModel is matched by every InvalidModelError.
var ErrInvalidModel = errors.New("invalid model")

// InvalidModelError reports a selection outside the catalog.
type InvalidModelError struct {
	ID ID
}

func (e *InvalidModelError) Error() string {
	return fmt.Sprintf("invalid model %q", string(e.ID))
}

// Is lets errors.Is match ErrInvalidModel.
func (e *InvalidModelError) Is(target error) bool {
	return target == ErrInvalidModel
}

// IsInvalidModel checks if an error is an invalid model selection.
func IsInvalidModel(err error) bool {
	return errors.Is(err, ErrInvalidModel)
}

// =============================================================================
// SELECTOR
// =============================================================================

// Selector holds the active model for a session. It is safe for concurrent use.
type Selector struct {
	mu      sync.RWMutex
	catalog Catalog
	current ID
}

// NewSelector creates a selector over catalog, starting at its first entry.
// An empty catalog falls back to DefaultCatalog.
func NewSelector(catalog Catalog) *Selector {
	if len(catalog) == 0 {
		catalog = DefaultCatalog()
	}
	cp := make(Catalog, len(catalog))
	copy(cp, catalog)
	return &Selector{catalog: cp, current: cp[0].ID}
}

// Select makes id the active model. Ids outside the catalog are rejected
// and the previous selection is kept.
func (s *Selector) Select(id ID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.catalog.Contains(id) {
		return &InvalidModelError{ID: id}
	}
	s.current = id
	return nil
}

// Current returns the active model id.
func (s *Selector) Current() ID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// CurrentInfo returns the catalog entry of the active model.
func (s *Selector) CurrentInfo() Info {
	s.mu.RLock()
	defer s.mu.RUnlock()
	info, _ := s.catalog.Lookup(s.current)
	return info
}

// Next advances to the following catalog entry (wrapping) and returns it.
// A negative step moves backwards.
func (s *Selector) Next(step int) ID {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := 0
	for i, info := range s.catalog {
		if info.ID == s.current {
			idx = i
			break
		}
	}
	n := len(s.catalog)
	idx = ((idx+step)%n + n) % n
	s.current = s.catalog[idx].ID
	return s.current
}

// Catalog returns a copy of the selectable models.
func (s *Selector) Catalog() Catalog {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cp := make(Catalog, len(s.catalog))
	copy(cp, s.catalog)
	return cp
}
