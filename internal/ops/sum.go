package ops

import (
	"fmt"

	"github.com/born-ml/dygraph/internal/graph"
	"github.com/born-ml/dygraph/internal/tensor"
)

// sumOp computes the elementwise sum of its inputs. The output may name one
// of the inputs (the accumulate-by-rename pattern relies on this): the result
// is computed into fresh storage before the output variable adopts it.
type sumOp struct {
	graph.OperatorBase
}

func newSumOp(opType string, inputs, outputs graph.VariableNameMap, attrs graph.AttributeMap) (graph.Operator, error) {
	return &sumOp{OperatorBase: graph.NewOperatorBase(opType, inputs, outputs, attrs)}, nil
}

// Run sums all "X" inputs elementwise into "Out".
func (op *sumOp) Run(scope *graph.Scope, dev tensor.Device) error {
	inNames := op.Inputs("X")
	if len(inNames) == 0 {
		return fmt.Errorf("sum: no inputs")
	}
	outName, err := op.Output("Out")
	if err != nil {
		return err
	}

	first, err := inputTensor(scope, "sum", inNames[0])
	if err != nil {
		return err
	}
	result, err := tensor.NewRaw(first.Shape(), first.DType(), first.Device())
	if err != nil {
		return fmt.Errorf("sum: %w", err)
	}
	backend.Copy(result, first)

	for _, name := range inNames[1:] {
		t, err := inputTensor(scope, "sum", name)
		if err != nil {
			return err
		}
		if !t.Shape().Equal(first.Shape()) {
			return fmt.Errorf("sum: input %q shape %v does not match %v", name, t.Shape(), first.Shape())
		}
		backend.Add(result, result, t)
	}

	out := outputVar(scope, outName).MutableTensor()
	out.ShareDataWith(result)
	out.SetLoD(first.LoD())
	return nil
}
