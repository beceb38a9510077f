// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

// Package pool provides strongly-typed object pooling on top of [sync.Pool].
//
// A [Pool] resets each object as it is returned, so callers always Get a clean
// value:
//
//	buf := pool.Buffer.Get()
//	defer pool.Buffer.Put(buf)
//
// Do not keep references to a pooled object after Put.
package pool
