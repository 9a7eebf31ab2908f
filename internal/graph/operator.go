package graph

import (
	"fmt"

	"github.com/born-ml/dygraph/internal/tensor"
)

// Operator is a named, polymorphic unit of computation over named input and
// output variable lists. Implementations resolve their variables against the
// scope they are run in and dispatch kernels for the given device.
type Operator interface {
	// Type returns the registered operator type name.
	Type() string

	// Run executes the operator against the scope on the given device,
	// blocking until the invocation completes. Device-side work may still be
	// outstanding afterwards; callers synchronize through a device context.
	Run(scope *Scope, dev tensor.Device) error
}

// OperatorBase carries the runtime copy of an operator's descriptor fields.
// Concrete operators embed it and implement Run.
type OperatorBase struct {
	opType  string
	inputs  VariableNameMap
	outputs VariableNameMap
	attrs   AttributeMap
}

// NewOperatorBase creates the embedded descriptor state for a runtime operator.
func NewOperatorBase(opType string, inputs, outputs VariableNameMap, attrs AttributeMap) OperatorBase {
	base := OperatorBase{
		opType:  opType,
		inputs:  inputs.Clone(),
		outputs: outputs.Clone(),
		attrs:   attrs.Clone(),
	}
	if base.attrs == nil {
		base.attrs = make(AttributeMap)
	}
	return base
}

// Type returns the operator type name.
func (b *OperatorBase) Type() string {
	return b.opType
}

// Input returns the single variable name bound to an input slot.
// It is an error for the slot to bind zero or multiple names.
func (b *OperatorBase) Input(slot string) (string, error) {
	names := b.inputs[slot]
	if len(names) != 1 {
		return "", fmt.Errorf("op %s: input slot %q binds %d names, want exactly 1",
			b.opType, slot, len(names))
	}
	return names[0], nil
}

// Inputs returns all variable names bound to an input slot.
func (b *OperatorBase) Inputs(slot string) []string {
	return b.inputs[slot]
}

// Output returns the single variable name bound to an output slot.
func (b *OperatorBase) Output(slot string) (string, error) {
	names := b.outputs[slot]
	if len(names) != 1 {
		return "", fmt.Errorf("op %s: output slot %q binds %d names, want exactly 1",
			b.opType, slot, len(names))
	}
	return names[0], nil
}

// Outputs returns all variable names bound to an output slot.
func (b *OperatorBase) Outputs(slot string) []string {
	return b.outputs[slot]
}

// Attr returns a named attribute.
func (b *OperatorBase) Attr(name string) (any, bool) {
	v, ok := b.attrs[name]
	return v, ok
}

// BlockAttr returns a block-valued attribute.
func (b *OperatorBase) BlockAttr(name string) (*BlockDesc, error) {
	v, ok := b.attrs[name]
	if !ok {
		return nil, fmt.Errorf("op %s: missing block attribute %q", b.opType, name)
	}
	block, ok := v.(*BlockDesc)
	if !ok {
		return nil, fmt.Errorf("op %s: attribute %q is %T, not a block", b.opType, name, v)
	}
	return block, nil
}

// StrListAttr returns a string-list attribute.
func (b *OperatorBase) StrListAttr(name string) ([]string, error) {
	v, ok := b.attrs[name]
	if !ok {
		return nil, fmt.Errorf("op %s: missing attribute %q", b.opType, name)
	}
	list, ok := v.([]string)
	if !ok {
		return nil, fmt.Errorf("op %s: attribute %q is %T, not []string", b.opType, name, v)
	}
	return list, nil
}
