// Package graph implements the computation-graph core of the dygraph engine:
// the hierarchical variable store, operator and block descriptors, the
// operator registry and a block executor.
package graph

import (
	"fmt"

	"github.com/born-ml/dygraph/internal/tensor"
)

// StepScopes is the ordered record of one scope per loop iteration. The loop
// forward executor appends to it; the backward pass consumes it in strict
// reverse order, removing one scope per iteration processed.
type StepScopes []*Scope

// Variable is a named slot holding exactly one runtime value of a declared
// kind: a tensor, a tensor array, a step-scope sequence, or any other value a
// collaborator stores. Typed accessors create the value on first use and
// panic on kind mismatch; a mismatch means the graph is structurally invalid.
type Variable struct {
	name  string
	value any
}

// NewVariable creates a free-standing variable, not owned by any scope.
// The eager tracer uses these for caller-owned value handles.
func NewVariable(name string) *Variable {
	return &Variable{name: name}
}

// Name returns the variable's name.
func (v *Variable) Name() string {
	return v.name
}

// IsInitialized reports whether the variable holds a value.
func (v *Variable) IsInitialized() bool {
	return v.value != nil
}

// IsTensor reports whether the variable holds a tensor.
func (v *Variable) IsTensor() bool {
	_, ok := v.value.(*tensor.RawTensor)
	return ok
}

// IsTensorArray reports whether the variable holds a tensor array.
func (v *Variable) IsTensorArray() bool {
	_, ok := v.value.(*tensor.TensorArray)
	return ok
}

// IsStepScopes reports whether the variable holds a step-scope sequence.
func (v *Variable) IsStepScopes() bool {
	_, ok := v.value.(*StepScopes)
	return ok
}

// Tensor returns the held tensor. Panics if the variable holds another kind.
func (v *Variable) Tensor() *tensor.RawTensor {
	t, ok := v.value.(*tensor.RawTensor)
	if !ok {
		panic(fmt.Sprintf("variable %q holds %T, not a tensor", v.name, v.value))
	}
	return t
}

// MutableTensor returns the held tensor, creating an empty placeholder if the
// variable is unset. Panics if the variable holds another kind.
func (v *Variable) MutableTensor() *tensor.RawTensor {
	if v.value == nil {
		v.value = tensor.Empty(tensor.CPU)
	}
	return v.Tensor()
}

// TensorArray returns the held tensor array. Panics on kind mismatch.
func (v *Variable) TensorArray() *tensor.TensorArray {
	a, ok := v.value.(*tensor.TensorArray)
	if !ok {
		panic(fmt.Sprintf("variable %q holds %T, not a tensor array", v.name, v.value))
	}
	return a
}

// MutableTensorArray returns the held tensor array, creating an empty one if
// the variable is unset. Panics on kind mismatch.
func (v *Variable) MutableTensorArray() *tensor.TensorArray {
	if v.value == nil {
		v.value = tensor.NewTensorArray(tensor.CPU)
	}
	return v.TensorArray()
}

// StepScopes returns the held step-scope sequence. Panics on kind mismatch.
func (v *Variable) StepScopes() *StepScopes {
	s, ok := v.value.(*StepScopes)
	if !ok {
		panic(fmt.Sprintf("variable %q holds %T, not step scopes", v.name, v.value))
	}
	return s
}

// MutableStepScopes returns the held step-scope sequence, creating an empty
// one if the variable is unset. Panics on kind mismatch.
func (v *Variable) MutableStepScopes() *StepScopes {
	if v.value == nil {
		v.value = &StepScopes{}
	}
	return v.StepScopes()
}
