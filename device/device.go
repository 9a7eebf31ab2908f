// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package device exposes device contexts and the context pool the engine
// synchronizes against.
package device

import (
	"github.com/born-ml/dygraph/internal/device"
	"github.com/born-ml/dygraph/internal/tensor"
)

// Context is one device's execution context; Wait blocks until all
// outstanding device work has completed.
type Context = device.Context

// Pool hands out one context per device, created on first request.
type Pool = device.Pool

// NewPool creates an empty context pool.
func NewPool() *Pool {
	return device.NewPool()
}

// DefaultPool returns the process-wide context pool.
func DefaultPool() *Pool {
	return device.DefaultPool()
}

// Get returns the default pool's context for the given device.
func Get(dev tensor.Device) (Context, error) {
	return device.DefaultPool().Get(dev)
}
