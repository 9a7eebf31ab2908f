// Package cpu implements the host-side kernels the engine itself dispatches:
// constant fill, elementwise accumulation and comparison. The full operator
// kernel suite lives with collaborators; these are only the kernels the
// control-flow and tracing layers invoke directly.
package cpu

import (
	"fmt"

	"github.com/born-ml/dygraph/internal/tensor"
)

// Backend implements the engine's kernels on CPU.
type Backend struct {
	device tensor.Device
}

// New creates a new CPU backend.
func New() *Backend {
	return &Backend{device: tensor.CPU}
}

// Name returns the backend name.
func (b *Backend) Name() string {
	return "CPU"
}

// Device returns the compute device.
func (b *Backend) Device() tensor.Device {
	return b.device
}

// Fill writes a constant into every element of t.
func (b *Backend) Fill(t *tensor.RawTensor, value float64) {
	switch t.DType() {
	case tensor.Float32:
		data := t.AsFloat32()
		for i := range data {
			data[i] = float32(value)
		}
	case tensor.Float64:
		data := t.AsFloat64()
		for i := range data {
			data[i] = value
		}
	case tensor.Int32:
		data := t.AsInt32()
		for i := range data {
			data[i] = int32(value)
		}
	case tensor.Int64:
		data := t.AsInt64()
		for i := range data {
			data[i] = int64(value)
		}
	case tensor.Bool:
		data := t.AsBool()
		for i := range data {
			data[i] = value != 0
		}
	default:
		panic(fmt.Sprintf("fill: unsupported dtype %s", t.DType()))
	}
}

// Add computes dst = a + b elementwise. All three tensors must share shape
// and dtype; dst may alias a or b.
func (b *Backend) Add(dst, a, c *tensor.RawTensor) {
	if !a.Shape().Equal(c.Shape()) || !a.Shape().Equal(dst.Shape()) {
		panic(fmt.Sprintf("add: shape mismatch: %v vs %v vs %v", dst.Shape(), a.Shape(), c.Shape()))
	}
	switch a.DType() {
	case tensor.Float32:
		out, x, y := dst.AsFloat32(), a.AsFloat32(), c.AsFloat32()
		for i := range out {
			out[i] = x[i] + y[i]
		}
	case tensor.Float64:
		out, x, y := dst.AsFloat64(), a.AsFloat64(), c.AsFloat64()
		for i := range out {
			out[i] = x[i] + y[i]
		}
	case tensor.Int32:
		out, x, y := dst.AsInt32(), a.AsInt32(), c.AsInt32()
		for i := range out {
			out[i] = x[i] + y[i]
		}
	case tensor.Int64:
		out, x, y := dst.AsInt64(), a.AsInt64(), c.AsInt64()
		for i := range out {
			out[i] = x[i] + y[i]
		}
	default:
		panic(fmt.Sprintf("add: unsupported dtype %s", a.DType()))
	}
}

// AddScalar computes dst = x + scalar elementwise. dst may alias x.
func (b *Backend) AddScalar(dst, x *tensor.RawTensor, scalar float64) {
	if !x.Shape().Equal(dst.Shape()) {
		panic(fmt.Sprintf("add_scalar: shape mismatch: %v vs %v", dst.Shape(), x.Shape()))
	}
	switch x.DType() {
	case tensor.Float32:
		out, in := dst.AsFloat32(), x.AsFloat32()
		for i := range out {
			out[i] = in[i] + float32(scalar)
		}
	case tensor.Float64:
		out, in := dst.AsFloat64(), x.AsFloat64()
		for i := range out {
			out[i] = in[i] + scalar
		}
	case tensor.Int32:
		out, in := dst.AsInt32(), x.AsInt32()
		for i := range out {
			out[i] = in[i] + int32(scalar)
		}
	case tensor.Int64:
		out, in := dst.AsInt64(), x.AsInt64()
		for i := range out {
			out[i] = in[i] + int64(scalar)
		}
	default:
		panic(fmt.Sprintf("add_scalar: unsupported dtype %s", x.DType()))
	}
}

// Scale computes dst = x * factor elementwise. dst may alias x.
func (b *Backend) Scale(dst, x *tensor.RawTensor, factor float64) {
	if !x.Shape().Equal(dst.Shape()) {
		panic(fmt.Sprintf("scale: shape mismatch: %v vs %v", dst.Shape(), x.Shape()))
	}
	switch x.DType() {
	case tensor.Float32:
		out, in := dst.AsFloat32(), x.AsFloat32()
		for i := range out {
			out[i] = in[i] * float32(factor)
		}
	case tensor.Float64:
		out, in := dst.AsFloat64(), x.AsFloat64()
		for i := range out {
			out[i] = in[i] * factor
		}
	default:
		panic(fmt.Sprintf("scale: unsupported dtype %s", x.DType()))
	}
}

// Less computes dst = a < b elementwise into a bool tensor of the same shape.
func (b *Backend) Less(dst, a, c *tensor.RawTensor) {
	if !a.Shape().Equal(c.Shape()) || !a.Shape().Equal(dst.Shape()) {
		panic(fmt.Sprintf("less: shape mismatch: %v vs %v vs %v", dst.Shape(), a.Shape(), c.Shape()))
	}
	if dst.DType() != tensor.Bool {
		panic(fmt.Sprintf("less: destination dtype is %s, not bool", dst.DType()))
	}
	out := dst.AsBool()
	switch a.DType() {
	case tensor.Float32:
		x, y := a.AsFloat32(), c.AsFloat32()
		for i := range out {
			out[i] = x[i] < y[i]
		}
	case tensor.Float64:
		x, y := a.AsFloat64(), c.AsFloat64()
		for i := range out {
			out[i] = x[i] < y[i]
		}
	case tensor.Int32:
		x, y := a.AsInt32(), c.AsInt32()
		for i := range out {
			out[i] = x[i] < y[i]
		}
	case tensor.Int64:
		x, y := a.AsInt64(), c.AsInt64()
		for i := range out {
			out[i] = x[i] < y[i]
		}
	default:
		panic(fmt.Sprintf("less: unsupported dtype %s", a.DType()))
	}
}

// Copy copies x's elements into dst. Shapes and dtypes must match.
func (b *Backend) Copy(dst, x *tensor.RawTensor) {
	if !x.Shape().Equal(dst.Shape()) || x.DType() != dst.DType() {
		panic(fmt.Sprintf("copy: incompatible tensors: %v/%s vs %v/%s",
			dst.Shape(), dst.DType(), x.Shape(), x.DType()))
	}
	copy(dst.Data(), x.Data()[:x.ByteSize()])
}
