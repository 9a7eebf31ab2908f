package ops

import (
	"fmt"

	"github.com/born-ml/dygraph/internal/graph"
	"github.com/born-ml/dygraph/internal/tensor"
)

// incrementOp computes Out = X + step for single-element tensors. Out may
// name the same variable as X, which is how loop counters advance in place.
type incrementOp struct {
	graph.OperatorBase
	step float64
}

func newIncrementOp(opType string, inputs, outputs graph.VariableNameMap, attrs graph.AttributeMap) (graph.Operator, error) {
	op := &incrementOp{
		OperatorBase: graph.NewOperatorBase(opType, inputs, outputs, attrs),
		step:         1.0,
	}
	if v, ok := attrs["step"]; ok {
		f, ok := v.(float64)
		if !ok {
			return nil, fmt.Errorf("increment: attribute step is %T, not float64", v)
		}
		op.step = f
	}
	return op, nil
}

func (op *incrementOp) Run(scope *graph.Scope, dev tensor.Device) error {
	xName, err := op.Input("X")
	if err != nil {
		return err
	}
	outName, err := op.Output("Out")
	if err != nil {
		return err
	}
	x, err := inputTensor(scope, "increment", xName)
	if err != nil {
		return err
	}
	if x.Shape().NumElements() != 1 {
		return fmt.Errorf("increment: input %q has %d elements, want 1", xName, x.Shape().NumElements())
	}

	result, err := tensor.NewRaw(x.Shape(), x.DType(), x.Device())
	if err != nil {
		return fmt.Errorf("increment: %w", err)
	}
	backend.AddScalar(result, x, op.step)

	out := outputVar(scope, outName).MutableTensor()
	out.ShareDataWith(result)
	return nil
}
