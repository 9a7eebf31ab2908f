// Package device provides device contexts and the context pool the engine
// synchronizes against. Kernel dispatch is synchronous from the caller's view;
// device-side work may complete asynchronously and is awaited through a
// context's Wait before the scope it wrote into is mutated or destroyed.
package device

import (
	"fmt"
	"sync"

	"github.com/born-ml/dygraph/internal/tensor"
)

// Context is one device's execution context.
type Context interface {
	// Wait blocks until all outstanding device work has completed.
	Wait()

	// Device returns the device this context drives.
	Device() tensor.Device
}

// cpuContext is the host context. CPU kernels complete before returning, so
// Wait is a no-op.
type cpuContext struct{}

func (cpuContext) Wait() {}

func (cpuContext) Device() tensor.Device { return tensor.CPU }

// Pool hands out one context per device, created on first request.
type Pool struct {
	mu       sync.Mutex
	contexts map[tensor.Device]Context
}

// NewPool creates an empty context pool.
func NewPool() *Pool {
	return &Pool{contexts: make(map[tensor.Device]Context)}
}

// Get returns the context for the given device, initializing it on first use.
func (p *Pool) Get(dev tensor.Device) (Context, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if ctx, ok := p.contexts[dev]; ok {
		return ctx, nil
	}

	var (
		ctx Context
		err error
	)
	switch dev {
	case tensor.CPU:
		ctx = cpuContext{}
	case tensor.WebGPU:
		ctx, err = newWebGPUContext()
	default:
		err = fmt.Errorf("no context available for device %s", dev)
	}
	if err != nil {
		return nil, err
	}
	p.contexts[dev] = ctx
	return ctx, nil
}

var (
	defaultPool     *Pool
	defaultPoolOnce sync.Once
)

// DefaultPool returns the process-wide context pool.
func DefaultPool() *Pool {
	defaultPoolOnce.Do(func() {
		defaultPool = NewPool()
	})
	return defaultPool
}
