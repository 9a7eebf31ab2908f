// Package tracer implements eager execution: each traced operator runs
// immediately against ephemeral variables while the corresponding gradient
// operator node is constructed and linked, forming an implicit backward graph
// through per-variable producing-operator back-references.
package tracer

import (
	"github.com/born-ml/dygraph/internal/graph"
)

// VarBase is a caller-owned eager value handle: the forward value, its
// lazily created gradient holder, the producing operator back-reference and
// the stop-gradient flag. A nil producing operator marks a graph leaf such as
// a parameter or external input. The back-reference is non-owning; operator
// lifetime belongs to the caller's tape.
type VarBase struct {
	name         string
	value        *graph.Variable
	grad         *VarBase
	preOp        *OpBase
	preOpOutName string
	preOpOutIdx  int
	stopGradient bool
}

// NewVarBase creates a leaf value handle around a fresh variable.
func NewVarBase(name string) *VarBase {
	return &VarBase{
		name:        name,
		value:       graph.NewVariable(name),
		preOpOutIdx: -1,
	}
}

// Name returns the handle's variable name.
func (v *VarBase) Name() string {
	return v.name
}

// Value returns the underlying variable.
func (v *VarBase) Value() *graph.Variable {
	return v.value
}

// Grad returns the gradient handle, or nil if never initialized.
func (v *VarBase) Grad() *VarBase {
	return v.grad
}

// MutableGrad returns the gradient handle, creating an uninitialized one on
// first use. Gradient handles never track gradients of their own.
func (v *VarBase) MutableGrad() *VarBase {
	if v.grad == nil {
		v.grad = NewVarBase(graph.GradVarName(v.name))
		v.grad.stopGradient = true
	}
	return v.grad
}

// PreOp returns the producing operator, or nil for a leaf.
func (v *VarBase) PreOp() *OpBase {
	return v.preOp
}

// PreOpOutName returns the output slot of the producing operator, or "" for
// a leaf.
func (v *VarBase) PreOpOutName() string {
	return v.preOpOutName
}

// PreOpOutIdx returns the index within that output slot, or -1 for a leaf.
func (v *VarBase) PreOpOutIdx() int {
	return v.preOpOutIdx
}

// StopGradient reports whether the handle is excluded from gradient tracking.
func (v *VarBase) StopGradient() bool {
	return v.stopGradient
}

// SetStopGradient sets the gradient-tracking exclusion flag.
func (v *VarBase) SetStopGradient(stop bool) {
	v.stopGradient = stop
}

// trackPreOp records the operator that produced this value and where.
func (v *VarBase) trackPreOp(op *OpBase, outName string, outIdx int, stopGradient bool) {
	v.preOp = op
	v.preOpOutName = outName
	v.preOpOutIdx = outIdx
	v.stopGradient = stopGradient
}

// VarBaseMap binds operator slot names to value handles.
type VarBaseMap map[string][]*VarBase
