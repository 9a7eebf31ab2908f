package graph

import (
	"fmt"
	"sync"
)

// OpCreator instantiates a runtime operator from descriptor fields.
type OpCreator func(opType string, inputs, outputs VariableNameMap, attrs AttributeMap) (Operator, error)

// GradOpMaker builds the gradient operator descriptors for a forward
// descriptor. gradBlocks carries the already-transformed gradient sub-blocks
// for block-bearing operators (one per block attribute). The returned map
// relates each gradient variable name to the forward variable it
// differentiates; names absent from the map are forward values carried
// through unchanged.
type GradOpMaker func(fwd *OpDesc, noGrad map[string]struct{}, gradBlocks []*BlockDesc) ([]*OpDesc, map[string]string, error)

// ShapeInference propagates shapes through a descriptor, mutating block
// variable declarations as needed.
type ShapeInference func(d *OpDesc, block *BlockDesc) error

// VarTypeInference propagates variable kinds and element types through a
// descriptor, mutating block variable declarations as needed.
type VarTypeInference func(d *OpDesc, block *BlockDesc) error

// OpInfo bundles everything registered for one operator type.
type OpInfo struct {
	Creator      OpCreator
	GradOpMaker  GradOpMaker
	InferShape   ShapeInference
	InferVarType VarTypeInference
}

// Registry maps operator type names to their creators, gradient makers and
// inference hooks. It is an explicit object passed into executors and the
// tracer, so tests can run against a private registry; a process-wide default
// exists for operator self-registration.
type Registry struct {
	mu  sync.RWMutex
	ops map[string]OpInfo
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{ops: make(map[string]OpInfo)}
}

// Register adds an operator type. Registering a type twice is an error.
func (r *Registry) Register(opType string, info OpInfo) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.ops[opType]; exists {
		return fmt.Errorf("operator type %q already registered", opType)
	}
	r.ops[opType] = info
	return nil
}

// MustRegister adds an operator type and panics on duplicates. Intended for
// registration at startup.
func (r *Registry) MustRegister(opType string, info OpInfo) {
	if err := r.Register(opType, info); err != nil {
		panic(err)
	}
}

// Get returns the registered info for an operator type.
func (r *Registry) Get(opType string) (OpInfo, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	info, ok := r.ops[opType]
	if !ok {
		return OpInfo{}, fmt.Errorf("operator type %q is not registered", opType)
	}
	return info, nil
}

// CreateOp instantiates a runtime operator by type name.
func (r *Registry) CreateOp(opType string, inputs, outputs VariableNameMap, attrs AttributeMap) (Operator, error) {
	info, err := r.Get(opType)
	if err != nil {
		return nil, err
	}
	if info.Creator == nil {
		return nil, fmt.Errorf("operator type %q has no kernel implementation", opType)
	}
	return info.Creator(opType, inputs, outputs, attrs)
}

// CreateOpFromDesc instantiates a runtime operator from a descriptor.
func (r *Registry) CreateOpFromDesc(d *OpDesc) (Operator, error) {
	return r.CreateOp(d.Type(), d.Inputs(), d.Outputs(), d.Attrs())
}

// GradOpMaker returns the gradient descriptor builder for an operator type.
func (r *Registry) GradOpMaker(opType string) (GradOpMaker, error) {
	info, err := r.Get(opType)
	if err != nil {
		return nil, err
	}
	if info.GradOpMaker == nil {
		return nil, fmt.Errorf("operator type %q has no gradient op maker", opType)
	}
	return info.GradOpMaker, nil
}

// InferShape runs the registered shape-inference hook for the descriptor's
// type, if any.
func (r *Registry) InferShape(d *OpDesc, block *BlockDesc) error {
	info, err := r.Get(d.Type())
	if err != nil {
		return err
	}
	if info.InferShape == nil {
		return nil
	}
	return info.InferShape(d, block)
}

// InferVarType runs the registered var-type-inference hook for the
// descriptor's type, if any.
func (r *Registry) InferVarType(d *OpDesc, block *BlockDesc) error {
	info, err := r.Get(d.Type())
	if err != nil {
		return err
	}
	if info.InferVarType == nil {
		return nil
	}
	return info.InferVarType(d, block)
}

var (
	defaultRegistry     *Registry
	defaultRegistryOnce sync.Once
)

// Default returns the process-wide registry, created on first use. Library
// code should prefer an explicitly constructed registry.
func Default() *Registry {
	defaultRegistryOnce.Do(func() {
		defaultRegistry = NewRegistry()
	})
	return defaultRegistry
}
