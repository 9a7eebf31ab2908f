// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package tensor provides the tensor values the dygraph engine computes over:
// raw typed buffers with optional sequence metadata, tensor arrays, shapes,
// data types and devices.
//
// Storage may be shared zero-copy between tensors via ShareDataWith; buffers
// are reference counted so a scope destroying an aliasing tensor never
// invalidates storage another reference still uses.
//
// Example:
//
//	t, _ := tensor.FromSlice([]float32{1, 2, 3}, tensor.Shape{3}, tensor.CPU)
//	alias := tensor.Empty(tensor.CPU)
//	alias.ShareDataWith(t) // writes through alias are visible through t
package tensor

import (
	"github.com/born-ml/dygraph/internal/tensor"
)

// RawTensor is the low-level tensor representation: a typed, shaped,
// reference-counted buffer with optional sequence metadata.
type RawTensor = tensor.RawTensor

// TensorArray is an ordered sequence of tensors, used as one aggregate
// gradient-bearing value across loop iterations.
type TensorArray = tensor.TensorArray

// Shape represents tensor dimensions. Zero-sized dimensions are legal;
// a zero-element tensor is the uninitialized placeholder state.
type Shape = tensor.Shape

// LoD is variable-length sequence metadata carried alongside tensor data.
type LoD = tensor.LoD

// DataType is the runtime element type of a tensor.
type DataType = tensor.DataType

// Supported element types.
const (
	Float32 = tensor.Float32
	Float64 = tensor.Float64
	Int32   = tensor.Int32
	Int64   = tensor.Int64
	Uint8   = tensor.Uint8
	Bool    = tensor.Bool
)

// Device represents the compute device where tensor data resides.
type Device = tensor.Device

// Supported compute devices.
const (
	CPU    = tensor.CPU
	WebGPU = tensor.WebGPU
)

// NewRaw creates a zero-initialized tensor with the given shape and type.
func NewRaw(shape Shape, dtype DataType, device Device) (*RawTensor, error) {
	return tensor.NewRaw(shape, dtype, device)
}

// Empty returns a zero-element placeholder tensor on the given device.
func Empty(device Device) *RawTensor {
	return tensor.Empty(device)
}

// FromSlice creates a tensor from a typed slice reshaped to the given shape.
func FromSlice[T tensor.DType](data []T, shape Shape, device Device) (*RawTensor, error) {
	return tensor.FromSlice(data, shape, device)
}

// NewTensorArray creates an empty tensor array on the given device.
func NewTensorArray(device Device) *TensorArray {
	return tensor.NewTensorArray(device)
}
