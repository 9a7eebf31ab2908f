package ops

import (
	"fmt"

	"github.com/born-ml/dygraph/internal/graph"
	"github.com/born-ml/dygraph/internal/tensor"
)

// elementwiseAddOp computes Out = X + Y for same-shape tensors.
type elementwiseAddOp struct {
	graph.OperatorBase
}

func newElementwiseAddOp(opType string, inputs, outputs graph.VariableNameMap, attrs graph.AttributeMap) (graph.Operator, error) {
	return &elementwiseAddOp{OperatorBase: graph.NewOperatorBase(opType, inputs, outputs, attrs)}, nil
}

func (op *elementwiseAddOp) Run(scope *graph.Scope, dev tensor.Device) error {
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

	x, err := inputTensor(scope, "elementwise_add", xName)
	if err != nil {
		return err
	}
	y, err := inputTensor(scope, "elementwise_add", yName)
	if err != nil {
		return err
	}
	if !x.Shape().Equal(y.Shape()) {
		return fmt.Errorf("elementwise_add: shape mismatch %v vs %v", x.Shape(), y.Shape())
	}

	result, err := tensor.NewRaw(x.Shape(), x.DType(), x.Device())
	if err != nil {
		return fmt.Errorf("elementwise_add: %w", err)
	}
	backend.Add(result, x, y)

	out := outputVar(scope, outName).MutableTensor()
	out.ShareDataWith(result)
	out.SetLoD(x.LoD())
	return nil
}

// elementwiseAddGradOpMaker pairs elementwise_add with its gradient operator:
// the output gradient flows unchanged to both inputs.
func elementwiseAddGradOpMaker(fwd *graph.OpDesc, noGrad map[string]struct{}, gradBlocks []*graph.BlockDesc) ([]*graph.OpDesc, map[string]string, error) {
	x, err := singleArg(fwd.Input("X"), fwd.Type(), "X")
	if err != nil {
		return nil, nil, err
	}
	y, err := singleArg(fwd.Input("Y"), fwd.Type(), "Y")
	if err != nil {
		return nil, nil, err
	}
	out, err := singleArg(fwd.Output("Out"), fwd.Type(), "Out")
	if err != nil {
		return nil, nil, err
	}

	gradToVar := map[string]string{
		graph.GradVarName(out): out,
	}
	xGrad := graph.EmptyVarName
	if _, skip := noGrad[x]; !skip {
		xGrad = graph.GradVarName(x)
		gradToVar[xGrad] = x
	}
	yGrad := graph.EmptyVarName
	if _, skip := noGrad[y]; !skip {
		yGrad = graph.GradVarName(y)
		gradToVar[yGrad] = y
	}

	desc := graph.NewOpDesc("elementwise_add_grad",
		graph.VariableNameMap{graph.GradVarName("Out"): {graph.GradVarName(out)}},
		graph.VariableNameMap{
			graph.GradVarName("X"): {xGrad},
			graph.GradVarName("Y"): {yGrad},
		},
		nil)
	return []*graph.OpDesc{desc}, gradToVar, nil
}

// elementwiseAddGradOp copies the output gradient into both input gradients.
type elementwiseAddGradOp struct {
	graph.OperatorBase
}

func newElementwiseAddGradOp(opType string, inputs, outputs graph.VariableNameMap, attrs graph.AttributeMap) (graph.Operator, error) {
	return &elementwiseAddGradOp{OperatorBase: graph.NewOperatorBase(opType, inputs, outputs, attrs)}, nil
}

func (op *elementwiseAddGradOp) Run(scope *graph.Scope, dev tensor.Device) error {
	ogName, err := op.Input(graph.GradVarName("Out"))
	if err != nil {
		return err
	}
	og, err := inputTensor(scope, "elementwise_add_grad", ogName)
	if err != nil {
		return err
	}

	for _, slot := range []string{graph.GradVarName("X"), graph.GradVarName("Y")} {
		name, err := op.Output(slot)
		if err != nil {
			return err
		}
		if name == graph.EmptyVarName {
			continue
		}
		out := outputVar(scope, name).MutableTensor()
		if err := out.Mutable(og.Shape(), og.DType(), dev); err != nil {
			return fmt.Errorf("elementwise_add_grad: %w", err)
		}
		backend.Copy(out, og)
	}
	return nil
}
