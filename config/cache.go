// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"fmt"
	"path/filepath"
	"sync"

	"github.com/tiendc/go-deepcopy"
)

// Cache holds the parsed project-level configuration per configuration directory.
//
// Every read hands out an independent deep copy, so callers may merge into or
// modify the result without affecting the cached base.
type Cache struct {
	mu      sync.Mutex
	entries map[string]map[string]any
}

// NewCache returns an empty [Cache].
func NewCache() *Cache {
	return &Cache{
		entries: make(map[string]map[string]any),
	}
}

// defaultCache is shared by resolvers created without [WithCache].
var defaultCache = NewCache()

// load returns the cached project configuration for dir, calling fill on a miss.
//
// The lock is held across fill so concurrent resolutions of the same directory
// read project.yml once.
func (c *Cache) load(dir string, fill func() (map[string]any, error)) (map[string]any, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := filepath.Clean(dir)
	base, hit := c.entries[key]
	if !hit {
		loaded, err := fill()
		if err != nil {
			return nil, false, err
		}
		c.entries[key] = loaded
		base = loaded
	}

	out, err := cloneMap(base)
	if err != nil {
		return nil, hit, err
	}
	return out, hit, nil
}

// store replaces the cached project configuration for dir.
func (c *Cache) store(dir string, base map[string]any) error {
	stored, err := cloneMap(base)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[filepath.Clean(dir)] = stored
	return nil
}

// Invalidate drops every cached project configuration.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	clear(c.entries)
}

// Len reports the number of cached directories.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func cloneMap(src map[string]any) (map[string]any, error) {
	dst := make(map[string]any, len(src))
	if len(src) == 0 {
		return dst, nil
	}
	if err := deepcopy.Copy(&dst, src); err != nil {
		return nil, fmt.Errorf("copy cached configuration: %w", err)
	}
	return dst, nil
}
