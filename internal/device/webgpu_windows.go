//go:build windows

package device

import (
	"fmt"

	"github.com/go-webgpu/webgpu/wgpu"

	"github.com/born-ml/dygraph/internal/tensor"
)

// webgpuContext drives a WebGPU device. Queue submissions complete
// asynchronously; Wait forces completion by mapping a staging buffer, which
// WebGPU orders after all previously submitted work.
type webgpuContext struct {
	instance *wgpu.Instance
	adapter  *wgpu.Adapter
	device   *wgpu.Device
	queue    *wgpu.Queue
}

// newWebGPUContext initializes the WebGPU instance, adapter, device and queue.
func newWebGPUContext() (ctx Context, err error) {
	// Recover from panic if the wgpu_native library is not found.
	defer func() {
		if r := recover(); r != nil {
			ctx = nil
			err = fmt.Errorf("webgpu: native library not available: %v", r)
		}
	}()

	instance := wgpu.CreateInstance(nil)
	adapter, adapterErr := instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		PowerPreference: wgpu.PowerPreferenceHighPerformance,
	})
	if adapterErr != nil {
		instance.Release()
		return nil, fmt.Errorf("webgpu: failed to request adapter: %w", adapterErr)
	}

	device, deviceErr := adapter.RequestDevice(nil)
	if deviceErr != nil {
		adapter.Release()
		instance.Release()
		return nil, fmt.Errorf("webgpu: failed to request device: %w", deviceErr)
	}

	queue := device.GetQueue()
	if queue == nil {
		device.Release()
		adapter.Release()
		instance.Release()
		return nil, fmt.Errorf("webgpu: failed to get queue")
	}

	return &webgpuContext{
		instance: instance,
		adapter:  adapter,
		device:   device,
		queue:    queue,
	}, nil
}

// Wait blocks until all work submitted to the queue so far has completed.
func (c *webgpuContext) Wait() {
	const size = 4
	staging := c.device.CreateBuffer(&wgpu.BufferDescriptor{
		Usage: wgpu.BufferUsageMapRead | wgpu.BufferUsageCopyDst,
		Size:  size,
	})
	defer staging.Release()

	// Mapping completes only after all previously submitted queue work.
	if err := staging.MapAsync(c.device, wgpu.MapModeRead, 0, size); err != nil {
		return
	}
	staging.Unmap()
}

// Device returns tensor.WebGPU.
func (c *webgpuContext) Device() tensor.Device {
	return tensor.WebGPU
}
