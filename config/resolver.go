// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"maps"
	"os"
	"path/filepath"
	"slices"

	"gopkg.in/yaml.v3"
)

const (
	// ProjectFile is the name of the project-level configuration file.
	ProjectFile = "project.yml"

	// DefaultDir is the configuration directory used when none is given.
	DefaultDir = "./configs"
)

// Resolver builds [Namespace] values from a configuration directory.
type Resolver struct {
	dir    string
	cache  *Cache
	logger *slog.Logger
}

// Option is a functional option for configuring a [Resolver].
type Option func(*Resolver)

// WithCache sets the project-level cache. Resolvers share a process-wide cache by default.
func WithCache(cache *Cache) Option {
	return func(r *Resolver) {
		r.cache = cache
	}
}

// WithLogger sets a custom logger for the resolver.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Resolver) {
		r.logger = logger
	}
}

// NewResolver returns a [Resolver] reading from dir, or [DefaultDir] when dir is empty.
func NewResolver(dir string, opts ...Option) *Resolver {
	if dir == "" {
		dir = DefaultDir
	}

	r := &Resolver{
		dir:    dir,
		cache:  defaultCache,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}

	return r
}

// Dir returns the configuration directory.
func (r *Resolver) Dir() string {
	return r.dir
}

// Resolve loads the project configuration, merges the files of modelName on top
// of it and returns the resulting namespace. An empty modelName resolves the
// project configuration alone.
func (r *Resolver) Resolve(ctx context.Context, modelName string) (*Namespace, error) {
	merged, err := r.resolve(ctx, modelName, false)
	if err != nil {
		return nil, err
	}

	ns := &Namespace{
		resolver:  r,
		modelName: modelName,
	}
	ns.replace(merged)

	return ns, nil
}

// resolve produces the merged raw configuration. With fresh set the project file is
// read from disk and the cache entry replaced; otherwise the cached base is reused.
func (r *Resolver) resolve(ctx context.Context, modelName string, fresh bool) (map[string]any, error) {
	var base map[string]any
	if fresh {
		loaded, err := r.loadProject(ctx)
		if err != nil {
			return nil, err
		}
		if err := r.cache.store(r.dir, loaded); err != nil {
			return nil, err
		}
		base = loaded
	} else {
		cached, hit, err := r.cache.load(r.dir, func() (map[string]any, error) {
			return r.loadProject(ctx)
		})
		if err != nil {
			return nil, err
		}
		if hit {
			r.logger.DebugContext(ctx, "Reusing cached project configuration",
				slog.String("dir", r.dir),
				slog.Int("entries", r.cache.Len()),
			)
		}
		base = cached
	}

	if modelName == "" {
		return base, nil
	}

	override, err := r.loadModel(ctx, modelName)
	if err != nil {
		return nil, err
	}

	return Merge(base, override), nil
}

// loadProject reads project.yml. A missing file yields an empty configuration.
func (r *Resolver) loadProject(ctx context.Context) (map[string]any, error) {
	path := filepath.Join(r.dir, ProjectFile)

	data, err := readMapping(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			r.logger.ErrorContext(ctx, "Project configuration file not found", slog.String("path", path))
			return map[string]any{}, nil
		}
		r.logger.ErrorContext(ctx, "Failed to load project configuration",
			slog.String("path", path),
			slog.Any("error", err),
		)
		return nil, err
	}

	r.logger.InfoContext(ctx, "Loaded project configuration", slog.String("path", path))
	return data, nil
}

// loadModel merges every YAML file directly inside the model directory.
func (r *Resolver) loadModel(ctx context.Context, modelName string) (map[string]any, error) {
	dir := filepath.Join(r.dir, modelName)

	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		r.logger.ErrorContext(ctx, "Model configuration directory does not exist", slog.String("dir", dir))
		return map[string]any{}, nil
	}

	files, err := modelFiles(dir)
	if err != nil {
		return nil, fmt.Errorf("list model configuration %s: %w", dir, err)
	}
	if len(files) == 0 {
		r.logger.WarnContext(ctx, "No YAML configuration files found", slog.String("dir", dir))
		return map[string]any{}, nil
	}

	override := map[string]any{}
	for _, path := range files {
		data, err := readMapping(path)
		if err != nil {
			r.logger.ErrorContext(ctx, "Failed to load model configuration",
				slog.String("path", path),
				slog.Any("error", err),
			)
			return nil, err
		}
		if len(data) == 0 {
			continue
		}
		override = Merge(override, data)
		r.logger.InfoContext(ctx, "Loaded model configuration", slog.String("path", path))
	}

	return override, nil
}

// modelFiles lists the *.yaml and *.yml regular files of dir in lexicographic order.
func modelFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var files []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		switch filepath.Ext(entry.Name()) {
		case ".yaml", ".yml":
			files = append(files, filepath.Join(dir, entry.Name()))
		}
	}

	return files, nil
}

// readMapping reads path and decodes it as a YAML mapping. Empty documents decode to
// an empty map; read errors are returned unwrapped so callers can test for absence.
func readMapping(path string) (map[string]any, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var data map[string]any
	if err := yaml.Unmarshal(raw, &data); err != nil {
		return nil, &ParseError{Path: path, Err: err}
	}
	if data == nil {
		return map[string]any{}, nil
	}

	return canonicalize(normalize(data).(map[string]any)), nil
}

// canonicalize upper-cases the top-level keys of doc. Keys differing only in case
// are merged in lexicographic key order.
func canonicalize(doc map[string]any) map[string]any {
	out := make(map[string]any, len(doc))
	for _, key := range slices.Sorted(maps.Keys(doc)) {
		k := canonical(key)
		value := doc[key]
		if prev, ok := out[k]; ok {
			value = Merge(map[string]any{k: prev}, map[string]any{k: value})[k]
		}
		out[k] = value
	}
	return out
}
