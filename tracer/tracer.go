// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package tracer exposes eager execution: each traced operator runs
// immediately while its backward graph node is constructed and linked.
//
// Example:
//
//	registry := graph.NewRegistry()
//	tr := tracer.NewTracer(registry, tensor.CPU)
//	op := tracer.NewOpBase(desc)
//	err := tr.Trace(op, inputs, outputs, block, false)
package tracer

import (
	"github.com/born-ml/dygraph/internal/graph"
	"github.com/born-ml/dygraph/internal/tensor"
	"github.com/born-ml/dygraph/internal/tracer"
)

// Tracer executes operators eagerly while building their backward nodes.
type Tracer = tracer.Tracer

// VarBase is a caller-owned eager value handle carrying the forward value,
// its gradient holder and the producing-operator back-reference.
type VarBase = tracer.VarBase

// OpBase is the per-invocation record of one traced operator.
type OpBase = tracer.OpBase

// VarBaseMap binds operator slot names to value handles.
type VarBaseMap = tracer.VarBaseMap

// LayerFunc is a user-supplied forward or backward callable for a custom layer.
type LayerFunc = tracer.LayerFunc

// Canonical slot names for custom layers.
const (
	LayerInput  = tracer.LayerInput
	LayerOutput = tracer.LayerOutput
)

// NewTracer creates a tracer dispatching kernels for the given device through
// the registry.
func NewTracer(registry *graph.Registry, dev tensor.Device) *Tracer {
	return tracer.NewTracer(registry, dev)
}

// NewVarBase creates a leaf value handle around a fresh variable.
func NewVarBase(name string) *VarBase {
	return tracer.NewVarBase(name)
}

// NewOpBase creates the trace record for a registry-constructed operator.
func NewOpBase(desc *graph.OpDesc) *OpBase {
	return tracer.NewOpBase(desc)
}

// NewLayerOpBase creates the trace record for a custom layer defined by
// user-supplied forward and backward callables.
func NewLayerOpBase(forward, backward LayerFunc) *OpBase {
	return tracer.NewLayerOpBase(forward, backward)
}
