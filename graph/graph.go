// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package graph exposes the dygraph computation-graph core: hierarchical
// variable scopes, operator and block descriptors, the operator registry and
// the block executor, plus the while control-flow operator pair.
//
// Example:
//
//	registry := graph.NewRegistry()
//	program := graph.NewProgram()
//	scope := graph.NewScope()
//	exec := graph.NewExecutor(tensor.CPU, registry)
//	err := exec.Run(program, scope, 0, true)
package graph

import (
	"github.com/born-ml/dygraph/internal/graph"
	"github.com/born-ml/dygraph/internal/loop"
	"github.com/born-ml/dygraph/internal/ops"
	"github.com/born-ml/dygraph/internal/tensor"
)

// Variable is a named slot holding one runtime value.
type Variable = graph.Variable

// Scope is an ownership-and-lookup context for variables with parent-based
// lookup fallback.
type Scope = graph.Scope

// StepScopes is the ordered record of one scope per loop iteration.
type StepScopes = graph.StepScopes

// Operator is a named, polymorphic unit of computation runnable against a
// scope and device.
type Operator = graph.Operator

// OperatorBase carries the runtime copy of an operator's descriptor fields.
type OperatorBase = graph.OperatorBase

// OpDesc is the static record of one operator invocation.
type OpDesc = graph.OpDesc

// VarDesc is the static declaration of a variable inside a block.
type VarDesc = graph.VarDesc

// VarKind is the declared kind of a variable.
type VarKind = graph.VarKind

// Supported variable kinds.
const (
	VarKindTensor      = graph.VarKindTensor
	VarKindTensorArray = graph.VarKindTensorArray
	VarKindStepScopes  = graph.VarKindStepScopes
	VarKindRaw         = graph.VarKindRaw
)

// BlockDesc is an ordered sequence of operator descriptors plus variable
// declarations, with parent and forward-block references.
type BlockDesc = graph.BlockDesc

// ProgramDesc owns an ordered set of blocks; block 0 is the root.
type ProgramDesc = graph.ProgramDesc

// Registry maps operator type names to creators, gradient makers and
// inference hooks.
type Registry = graph.Registry

// OpInfo bundles everything registered for one operator type.
type OpInfo = graph.OpInfo

// Executor runs a block of a program against a scope.
type Executor = graph.Executor

// VariableNameMap maps an operator slot name to its bound variable names.
type VariableNameMap = graph.VariableNameMap

// AttributeMap holds an operator's static attributes.
type AttributeMap = graph.AttributeMap

// EmptyVarName is the sentinel name for a forward input whose gradient is
// never produced.
const EmptyVarName = graph.EmptyVarName

// While operator names and slots.
const (
	WhileOpType     = loop.OpType
	WhileGradOpType = loop.GradOpType

	WhileSlotX          = loop.SlotX
	WhileSlotCondition  = loop.SlotCondition
	WhileSlotOut        = loop.SlotOut
	WhileSlotStepScopes = loop.SlotStepScopes

	WhileAttrSubBlock           = loop.AttrSubBlock
	WhileAttrOriginalOutputGrad = loop.AttrOriginalOutputGrad
)

// GradVarName returns the gradient variable name for a forward variable.
func GradVarName(name string) string {
	return graph.GradVarName(name)
}

// OriginVarName strips the gradient suffix, returning the forward name.
func OriginVarName(gradName string) string {
	return graph.OriginVarName(gradName)
}

// NewScope creates a root scope.
func NewScope() *Scope {
	return graph.NewScope()
}

// NewVariable creates a free-standing variable, not owned by any scope.
func NewVariable(name string) *Variable {
	return graph.NewVariable(name)
}

// NewProgram creates a program with an empty root block.
func NewProgram() *ProgramDesc {
	return graph.NewProgram()
}

// NewOpDesc creates an operator descriptor.
func NewOpDesc(opType string, inputs, outputs VariableNameMap, attrs AttributeMap) *OpDesc {
	return graph.NewOpDesc(opType, inputs, outputs, attrs)
}

// NewExecutor creates an executor for the given device and registry.
func NewExecutor(dev tensor.Device, registry *Registry) *Executor {
	return graph.NewExecutor(dev, registry)
}

// NewRegistry creates a registry pre-populated with the built-in operator set
// and the while control-flow pair.
func NewRegistry() *Registry {
	r := graph.NewRegistry()
	ops.Register(r)
	loop.Register(r)
	return r
}
