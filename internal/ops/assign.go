package ops

import (
	"github.com/born-ml/dygraph/internal/graph"
	"github.com/born-ml/dygraph/internal/tensor"
)

// assignOp makes Out a zero-copy alias of X, carrying sequence metadata along.
type assignOp struct {
	graph.OperatorBase
}

func newAssignOp(opType string, inputs, outputs graph.VariableNameMap, attrs graph.AttributeMap) (graph.Operator, error) {
	return &assignOp{OperatorBase: graph.NewOperatorBase(opType, inputs, outputs, attrs)}, nil
}

func (op *assignOp) Run(scope *graph.Scope, dev tensor.Device) error {
	xName, err := op.Input("X")
	if err != nil {
		return err
	}
	outName, err := op.Output("Out")
	if err != nil {
		return err
	}
	x, err := inputTensor(scope, "assign", xName)
	if err != nil {
		return err
	}

	out := outputVar(scope, outName).MutableTensor()
	out.ShareDataWith(x)
	out.SetLoD(x.LoD())
	return nil
}

// assignGradOpMaker routes the output gradient straight back: the gradient of
// assign is assign.
func assignGradOpMaker(fwd *graph.OpDesc, noGrad map[string]struct{}, gradBlocks []*graph.BlockDesc) ([]*graph.OpDesc, map[string]string, error) {
	x, err := singleArg(fwd.Input("X"), fwd.Type(), "X")
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

	desc := graph.NewOpDesc("assign",
		graph.VariableNameMap{"X": {graph.GradVarName(out)}},
		graph.VariableNameMap{"Out": {xGrad}},
		nil)
	return []*graph.OpDesc{desc}, gradToVar, nil
}
