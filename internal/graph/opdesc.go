package graph

import (
	"fmt"
	"sort"
	"strings"
)

// GradVarSuffix marks a variable name as the gradient of its base name.
const GradVarSuffix = "@GRAD"

// EmptyVarName is the sentinel output name for a forward input whose gradient
// is never produced by any operator in the gradient sub-block.
const EmptyVarName = "@EMPTY@"

// GradVarName returns the gradient variable name for a forward variable.
func GradVarName(name string) string {
	return name + GradVarSuffix
}

// IsGradVarName reports whether name carries the gradient suffix.
func IsGradVarName(name string) bool {
	return strings.HasSuffix(name, GradVarSuffix)
}

// OriginVarName strips the gradient suffix, returning the forward name.
func OriginVarName(gradName string) string {
	return strings.TrimSuffix(gradName, GradVarSuffix)
}

// VariableNameMap maps an operator slot name to the list of variable names
// bound to that slot.
type VariableNameMap map[string][]string

// Clone returns a deep copy of the map.
func (m VariableNameMap) Clone() VariableNameMap {
	if m == nil {
		return nil
	}
	clone := make(VariableNameMap, len(m))
	for slot, names := range m {
		clone[slot] = append([]string(nil), names...)
	}
	return clone
}

// AttributeMap holds an operator's static attributes.
type AttributeMap map[string]any

// Clone returns a shallow copy of the map (attribute values are immutable by
// convention).
func (m AttributeMap) Clone() AttributeMap {
	if m == nil {
		return nil
	}
	clone := make(AttributeMap, len(m))
	for k, v := range m {
		clone[k] = v
	}
	return clone
}

// OpDesc is the static record of one operator invocation: type name, slot to
// variable-name bindings and attributes. It is immutable once appended to a
// block; both runtime instantiation and static graph transformations are
// driven from it.
type OpDesc struct {
	opType      string
	inputs      VariableNameMap
	outputs     VariableNameMap
	attrs       AttributeMap
	inputOrder  []string
	outputOrder []string
}

// NewOpDesc creates an operator descriptor. Slot iteration order is the
// sorted slot-name order of the given maps; later SetInput/SetOutput calls
// append in call order.
func NewOpDesc(opType string, inputs, outputs VariableNameMap, attrs AttributeMap) *OpDesc {
	d := &OpDesc{
		opType:  opType,
		inputs:  make(VariableNameMap),
		outputs: make(VariableNameMap),
		attrs:   attrs.Clone(),
	}
	if d.attrs == nil {
		d.attrs = make(AttributeMap)
	}
	for _, slot := range sortedKeys(inputs) {
		d.SetInput(slot, inputs[slot])
	}
	for _, slot := range sortedKeys(outputs) {
		d.SetOutput(slot, outputs[slot])
	}
	return d
}

func sortedKeys(m VariableNameMap) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Type returns the operator type name.
func (d *OpDesc) Type() string {
	return d.opType
}

// Input returns the variable names bound to an input slot.
func (d *OpDesc) Input(slot string) []string {
	return d.inputs[slot]
}

// Output returns the variable names bound to an output slot.
func (d *OpDesc) Output(slot string) []string {
	return d.outputs[slot]
}

// SetInput binds variable names to an input slot.
func (d *OpDesc) SetInput(slot string, names []string) {
	if _, ok := d.inputs[slot]; !ok {
		d.inputOrder = append(d.inputOrder, slot)
	}
	d.inputs[slot] = append([]string(nil), names...)
}

// SetOutput binds variable names to an output slot.
func (d *OpDesc) SetOutput(slot string, names []string) {
	if _, ok := d.outputs[slot]; !ok {
		d.outputOrder = append(d.outputOrder, slot)
	}
	d.outputs[slot] = append([]string(nil), names...)
}

// InputNames returns the input slot names in deterministic order.
func (d *OpDesc) InputNames() []string {
	return d.inputOrder
}

// OutputNames returns the output slot names in deterministic order.
func (d *OpDesc) OutputNames() []string {
	return d.outputOrder
}

// Inputs returns the full input slot map.
func (d *OpDesc) Inputs() VariableNameMap {
	return d.inputs
}

// Outputs returns the full output slot map.
func (d *OpDesc) Outputs() VariableNameMap {
	return d.outputs
}

// InputArgumentNames returns every input variable name, flattened across
// slots in deterministic slot order.
func (d *OpDesc) InputArgumentNames() []string {
	var names []string
	for _, slot := range d.inputOrder {
		names = append(names, d.inputs[slot]...)
	}
	return names
}

// OutputArgumentNames returns every output variable name, flattened across
// slots in deterministic slot order.
func (d *OpDesc) OutputArgumentNames() []string {
	var names []string
	for _, slot := range d.outputOrder {
		names = append(names, d.outputs[slot]...)
	}
	return names
}

// Attr returns a named attribute.
func (d *OpDesc) Attr(name string) (any, bool) {
	v, ok := d.attrs[name]
	return v, ok
}

// SetAttr sets a named attribute.
func (d *OpDesc) SetAttr(name string, value any) {
	d.attrs[name] = value
}

// SetAttrMap replaces all attributes.
func (d *OpDesc) SetAttrMap(attrs AttributeMap) {
	d.attrs = attrs.Clone()
	if d.attrs == nil {
		d.attrs = make(AttributeMap)
	}
}

// Attrs returns the attribute map.
func (d *OpDesc) Attrs() AttributeMap {
	return d.attrs
}

// BlockAttr returns a block-valued attribute.
func (d *OpDesc) BlockAttr(name string) (*BlockDesc, error) {
	v, ok := d.attrs[name]
	if !ok {
		return nil, fmt.Errorf("op %s: missing block attribute %q", d.opType, name)
	}
	block, ok := v.(*BlockDesc)
	if !ok {
		return nil, fmt.Errorf("op %s: attribute %q is %T, not a block", d.opType, name, v)
	}
	return block, nil
}
