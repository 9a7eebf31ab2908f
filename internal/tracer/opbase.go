package tracer

import (
	"github.com/born-ml/dygraph/internal/graph"
)

// Canonical slot names for custom layers, whose forward/backward callables
// take positional variable lists instead of arbitrary named slots.
const (
	LayerInput  = "X"
	LayerOutput = "Out"
)

// LayerFunc is a user-supplied forward or backward callable for a custom
// layer, mapping input variables to freshly created output variables.
type LayerFunc func(inputs []*graph.Variable) ([]*graph.Variable, error)

// OpBase is the per-invocation record of one traced operator: the forward
// descriptor, the derived gradient descriptor, forward and gradient variable
// bindings, and predecessor linkage per input slot. Gradient fields stay
// empty when the invocation was traced with stop-gradient set.
type OpBase struct {
	desc     *graph.OpDesc
	gradDesc *graph.OpDesc

	inputVars  VarBaseMap
	outputVars VarBaseMap

	gradInputVars  map[string][]*graph.Variable
	gradOutputVars map[string][]*graph.Variable

	preOps       map[string][]*OpBase
	preOpsOutIdx map[string][]int

	block *graph.BlockDesc

	// Custom-layer callables; nil for registry-constructed operators.
	forward  LayerFunc
	backward LayerFunc
}

// NewOpBase creates the trace record for a registry-constructed operator.
func NewOpBase(desc *graph.OpDesc) *OpBase {
	return &OpBase{
		desc:           desc,
		inputVars:      make(VarBaseMap),
		outputVars:     make(VarBaseMap),
		gradInputVars:  make(map[string][]*graph.Variable),
		gradOutputVars: make(map[string][]*graph.Variable),
		preOps:         make(map[string][]*OpBase),
		preOpsOutIdx:   make(map[string][]int),
	}
}

// NewLayerOpBase creates the trace record for a custom layer defined by
// user-supplied forward and backward callables.
func NewLayerOpBase(forward, backward LayerFunc) *OpBase {
	op := NewOpBase(nil)
	op.forward = forward
	op.backward = backward
	return op
}

// Desc returns the forward descriptor, or nil for a custom layer.
func (op *OpBase) Desc() *graph.OpDesc {
	return op.desc
}

// GradDesc returns the gradient descriptor, or nil when the invocation was
// traced with stop-gradient set or for a custom layer.
func (op *OpBase) GradDesc() *graph.OpDesc {
	return op.gradDesc
}

// InputVars returns the forward input bindings.
func (op *OpBase) InputVars() VarBaseMap {
	return op.inputVars
}

// OutputVars returns the forward output bindings.
func (op *OpBase) OutputVars() VarBaseMap {
	return op.outputVars
}

// GradInputVars returns the gradient operator's input bindings.
func (op *OpBase) GradInputVars() map[string][]*graph.Variable {
	return op.gradInputVars
}

// GradOutputVars returns the gradient operator's output bindings.
func (op *OpBase) GradOutputVars() map[string][]*graph.Variable {
	return op.gradOutputVars
}

// PreOps returns the predecessor operators per input slot, positionally
// matching the slot's bindings; nil entries mark leaves.
func (op *OpBase) PreOps() map[string][]*OpBase {
	return op.preOps
}

// PreOpsOutIdx returns each predecessor's output-slot index per input slot;
// -1 entries mark leaves.
func (op *OpBase) PreOpsOutIdx() map[string][]int {
	return op.preOpsOutIdx
}

// Block returns the block the operator was traced against.
func (op *OpBase) Block() *graph.BlockDesc {
	return op.block
}

// Backward returns the custom layer's backward callable, or nil.
func (op *OpBase) Backward() LayerFunc {
	return op.backward
}
