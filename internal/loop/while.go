// Package loop implements the structured control-flow layer: the while
// operator that runs a step block repeatedly under a boolean condition while
// recording one child scope per iteration, its gradient operator that replays
// the gradient block over those scopes in reverse, and the static gradient
// descriptor builder pairing the two.
package loop

import (
	"fmt"

	"k8s.io/klog/v2"

	"github.com/born-ml/dygraph/internal/graph"
	"github.com/born-ml/dygraph/internal/tensor"
)

// Operator type names and slot names of the while pair.
const (
	OpType     = "while"
	GradOpType = "while_grad"

	// SlotX binds the loop-carried variables, SlotCondition the boolean
	// condition tensor. SlotOut binds the loop outputs and SlotStepScopes the
	// recorded per-iteration scope sequence.
	SlotX          = "X"
	SlotCondition  = "Condition"
	SlotOut        = "Out"
	SlotStepScopes = "StepScopes"

	// AttrSubBlock is the block-valued attribute naming the step block on the
	// forward operator and the gradient block on the gradient operator.
	AttrSubBlock = "sub_block"

	// AttrOriginalOutputGrad records the free-variable list derived at
	// gradient-descriptor build time, positionally matching the gradient
	// operator's output-gradient input slot even after renames.
	AttrOriginalOutputGrad = "original_output_grad"
)

// Register wires the while operator pair into the registry. The created
// operators run their sub-blocks through the same registry.
func Register(r *graph.Registry) {
	r.MustRegister(OpType, graph.OpInfo{
		Creator: func(opType string, inputs, outputs graph.VariableNameMap, attrs graph.AttributeMap) (graph.Operator, error) {
			return &whileOp{
				OperatorBase: graph.NewOperatorBase(opType, inputs, outputs, attrs),
				registry:     r,
			}, nil
		},
		GradOpMaker:  whileGradOpMaker,
		InferVarType: whileInferVarType,
	})
	r.MustRegister(GradOpType, graph.OpInfo{
		Creator: func(opType string, inputs, outputs graph.VariableNameMap, attrs graph.AttributeMap) (graph.Operator, error) {
			return &whileGradOp{
				OperatorBase: graph.NewOperatorBase(opType, inputs, outputs, attrs),
				registry:     r,
			}, nil
		},
		InferShape:   whileGradInferShape,
		InferVarType: whileGradInferVarType,
	})
}

// whileOp runs its step block repeatedly while the condition tensor holds
// true, each iteration in a fresh child scope appended to the step-scope
// sequence. The condition lives in the enclosing scope and is re-read after
// every iteration, so the step block can advance it.
type whileOp struct {
	graph.OperatorBase
	registry *graph.Registry
}

func (op *whileOp) Run(scope *graph.Scope, dev tensor.Device) error {
	condName, err := op.Input(SlotCondition)
	if err != nil {
		return err
	}
	condVar := scope.FindVar(condName)
	if err := validateCondition(condVar, condName); err != nil {
		return err
	}

	block, err := op.BlockAttr(AttrSubBlock)
	if err != nil {
		return err
	}
	program := block.Program()

	scopesName, err := op.Output(SlotStepScopes)
	if err != nil {
		return err
	}
	scopesVar := scope.FindVar(scopesName)
	if scopesVar == nil {
		scopesVar = scope.Var(scopesName)
	}
	stepScopes := scopesVar.MutableStepScopes()

	executor := graph.NewExecutor(dev, op.registry)
	for condVar.Tensor().AsBool()[0] {
		cur := scope.NewChildScope()
		*stepScopes = append(*stepScopes, cur)
		if err := executor.Run(program, cur, block.ID(), false); err != nil {
			return fmt.Errorf("while: iteration %d: %w", len(*stepScopes)-1, err)
		}
	}
	klog.V(3).Infof("while %q ran %d iterations", condName, len(*stepScopes))
	return nil
}

// validateCondition enforces the loop precondition: the condition variable
// exists, holds exactly one boolean element, and is host-resident. Violations
// are structural graph errors raised before any iteration runs.
func validateCondition(condVar *graph.Variable, name string) error {
	if condVar == nil {
		return fmt.Errorf("while: condition variable %q not found", name)
	}
	if !condVar.IsTensor() {
		return fmt.Errorf("while: condition variable %q does not hold a tensor", name)
	}
	cond := condVar.Tensor()
	if cond.NumElements() != 1 {
		return fmt.Errorf("while: condition %q has %d elements, want exactly 1", name, cond.NumElements())
	}
	if cond.DType() != tensor.Bool {
		return fmt.Errorf("while: condition %q has dtype %s, want bool", name, cond.DType())
	}
	if cond.Device() != tensor.CPU {
		return fmt.Errorf("while: condition %q resides on %s, must be host-resident", name, cond.Device())
	}
	return nil
}

// whileInferVarType declares the step-scope sequence output.
func whileInferVarType(d *graph.OpDesc, block *graph.BlockDesc) error {
	names := d.Output(SlotStepScopes)
	if len(names) != 1 {
		return fmt.Errorf("while: slot %q binds %d names, want exactly 1", SlotStepScopes, len(names))
	}
	block.FindVarRecursiveOrCreate(names[0]).SetKind(graph.VarKindStepScopes)
	return nil
}
