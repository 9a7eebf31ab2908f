package ops

import (
	"fmt"

	"github.com/born-ml/dygraph/internal/graph"
	"github.com/born-ml/dygraph/internal/tensor"
)

// scaleOp computes Out = scale * X.
type scaleOp struct {
	graph.OperatorBase
	scale float64
}

func newScaleOp(opType string, inputs, outputs graph.VariableNameMap, attrs graph.AttributeMap) (graph.Operator, error) {
	op := &scaleOp{
		OperatorBase: graph.NewOperatorBase(opType, inputs, outputs, attrs),
		scale:        1.0,
	}
	if v, ok := attrs["scale"]; ok {
		f, ok := v.(float64)
		if !ok {
			return nil, fmt.Errorf("scale: attribute scale is %T, not float64", v)
		}
		op.scale = f
	}
	return op, nil
}

func (op *scaleOp) Run(scope *graph.Scope, dev tensor.Device) error {
	xName, err := op.Input("X")
	if err != nil {
		return err
	}
	outName, err := op.Output("Out")
	if err != nil {
		return err
	}
	x, err := inputTensor(scope, "scale", xName)
	if err != nil {
		return err
	}

	result, err := tensor.NewRaw(x.Shape(), x.DType(), x.Device())
	if err != nil {
		return fmt.Errorf("scale: %w", err)
	}
	backend.Scale(result, x, op.scale)

	out := outputVar(scope, outName).MutableTensor()
	out.ShareDataWith(result)
	out.SetLoD(x.LoD())
	return nil
}

// scaleGradOpMaker builds the gradient of scale, which is scale itself applied
// to the output gradient.
func scaleGradOpMaker(fwd *graph.OpDesc, noGrad map[string]struct{}, gradBlocks []*graph.BlockDesc) ([]*graph.OpDesc, map[string]string, error) {
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

	attrs := graph.AttributeMap{"scale": 1.0}
	if v, ok := fwd.Attr("scale"); ok {
		attrs["scale"] = v
	}
	desc := graph.NewOpDesc("scale",
		graph.VariableNameMap{"X": {graph.GradVarName(out)}},
		graph.VariableNameMap{"Out": {xGrad}},
		attrs)
	return []*graph.OpDesc{desc}, gradToVar, nil
}
