package ops

import (
	"fmt"

	"github.com/born-ml/dygraph/internal/graph"
	"github.com/born-ml/dygraph/internal/tensor"
)

// lessThanOp computes the elementwise Out = X < Y with a bool result.
type lessThanOp struct {
	graph.OperatorBase
}

func newLessThanOp(opType string, inputs, outputs graph.VariableNameMap, attrs graph.AttributeMap) (graph.Operator, error) {
	return &lessThanOp{OperatorBase: graph.NewOperatorBase(opType, inputs, outputs, attrs)}, nil
}

func (op *lessThanOp) Run(scope *graph.Scope, dev tensor.Device) error {
	xName, err := op.Input("X")
	if err != nil {
		return err
	}
	yName, err := op.Input("Y")
	if err != nil {
		return err
	}
	outName, err := op.Output("Out")
	if err != nil {
		return err
	}
	x, err := inputTensor(scope, "less_than", xName)
	if err != nil {
		return err
	}
	y, err := inputTensor(scope, "less_than", yName)
	if err != nil {
		return err
	}
	if !x.Shape().Equal(y.Shape()) {
		return fmt.Errorf("less_than: shape mismatch %v vs %v", x.Shape(), y.Shape())
	}

	out := outputVar(scope, outName).MutableTensor()
	if err := out.Mutable(x.Shape(), tensor.Bool, x.Device()); err != nil {
		return fmt.Errorf("less_than: %w", err)
	}
	backend.Less(out, x, y)
	return nil
}
