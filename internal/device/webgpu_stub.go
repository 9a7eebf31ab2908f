//go:build !windows

package device

import "fmt"

// newWebGPUContext reports WebGPU as unavailable on platforms where the
// native library is not built.
func newWebGPUContext() (Context, error) {
	return nil, fmt.Errorf("webgpu: not available on this platform")
}
