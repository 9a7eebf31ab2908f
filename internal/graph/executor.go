package graph

import (
	"fmt"

	"k8s.io/klog/v2"

	"github.com/born-ml/dygraph/internal/tensor"
)

// Executor runs a block of a program against a scope, instantiating each
// operator descriptor through a registry. Execution is synchronous: Run
// returns only after every operator invocation in the block has completed.
type Executor struct {
	dev      tensor.Device
	registry *Registry
}

// NewExecutor creates an executor for the given device and registry.
func NewExecutor(dev tensor.Device, registry *Registry) *Executor {
	return &Executor{dev: dev, registry: registry}
}

// Run executes the block with the given index. When createLocalScope is true,
// the block runs in a fresh child scope destroyed afterwards; control-flow
// operators pass false so their per-iteration scopes are the only layer.
func (e *Executor) Run(program *ProgramDesc, scope *Scope, blockID int, createLocalScope bool) error {
	block := program.Block(blockID)
	if block == nil {
		return fmt.Errorf("executor: program has no block %d", blockID)
	}

	execScope := scope
	if createLocalScope {
		execScope = scope.NewChildScope()
		defer scope.DeleteChildScope(execScope)
	}

	// Materialize block-declared variables locally so ops shadow outer
	// bindings only where the block declares its own.
	for _, vd := range block.AllVars() {
		v := execScope.Var(vd.Name())
		switch vd.Kind() {
		case VarKindTensor:
			v.MutableTensor()
		case VarKindTensorArray:
			v.MutableTensorArray()
		case VarKindStepScopes:
			v.MutableStepScopes()
		}
	}

	for _, desc := range block.AllOps() {
		op, err := e.registry.CreateOpFromDesc(desc)
		if err != nil {
			return fmt.Errorf("executor: block %d: %w", blockID, err)
		}
		klog.V(4).Infof("executor running %s in block %d", desc.Type(), blockID)
		if err := op.Run(execScope, e.dev); err != nil {
			return fmt.Errorf("executor: op %s: %w", desc.Type(), err)
		}
	}
	return nil
}
