package ops

import (
	"fmt"

	"github.com/born-ml/dygraph/internal/graph"
	"github.com/born-ml/dygraph/internal/tensor"
)

// fillConstantOp writes a constant-filled tensor of a given shape and dtype
// into its output variable. The loop backward executor uses it to materialize
// zero-filled gradient accumulators.
type fillConstantOp struct {
	graph.OperatorBase
	shape tensor.Shape
	dtype tensor.DataType
	value float64
}

func newFillConstantOp(opType string, inputs, outputs graph.VariableNameMap, attrs graph.AttributeMap) (graph.Operator, error) {
	op := &fillConstantOp{
		OperatorBase: graph.NewOperatorBase(opType, inputs, outputs, attrs),
		dtype:        tensor.Float32,
	}
	if v, ok := attrs["shape"]; ok {
		switch s := v.(type) {
		case []int:
			op.shape = tensor.Shape(s).Clone()
		case tensor.Shape:
			op.shape = s.Clone()
		default:
			return nil, fmt.Errorf("fill_constant: attribute shape is %T, not []int", v)
		}
	} else {
		return nil, fmt.Errorf("fill_constant: missing attribute shape")
	}
	if v, ok := attrs["dtype"]; ok {
		dt, ok := v.(tensor.DataType)
		if !ok {
			return nil, fmt.Errorf("fill_constant: attribute dtype is %T, not tensor.DataType", v)
		}
		op.dtype = dt
	}
	if v, ok := attrs["value"]; ok {
		f, ok := v.(float64)
		if !ok {
			return nil, fmt.Errorf("fill_constant: attribute value is %T, not float64", v)
		}
		op.value = f
	}
	return op, nil
}

// Run allocates the output tensor and fills it with the constant.
func (op *fillConstantOp) Run(scope *graph.Scope, dev tensor.Device) error {
	outName, err := op.Output("Out")
	if err != nil {
		return err
	}
	out := outputVar(scope, outName).MutableTensor()
	if err := out.Mutable(op.shape, op.dtype, dev); err != nil {
		return fmt.Errorf("fill_constant: %w", err)
	}
	if op.value != 0 {
		backend.Fill(out, op.value)
	}
	return nil
}

func fillConstantInferShape(d *graph.OpDesc, block *graph.BlockDesc) error {
	out, err := singleArg(d.Output("Out"), d.Type(), "Out")
	if err != nil {
		return err
	}
	decl := block.FindVarRecursive(out)
	if decl == nil {
		return fmt.Errorf("fill_constant: output %q is not declared", out)
	}
	if v, ok := d.Attr("shape"); ok {
		if s, ok := v.([]int); ok {
			decl.SetShape(tensor.Shape(s))
		}
	}
	return nil
}

func fillConstantInferVarType(d *graph.OpDesc, block *graph.BlockDesc) error {
	out, err := singleArg(d.Output("Out"), d.Type(), "Out")
	if err != nil {
		return err
	}
	decl := block.FindVarRecursive(out)
	if decl == nil {
		return fmt.Errorf("fill_constant: output %q is not declared", out)
	}
	decl.SetKind(graph.VarKindTensor)
	if v, ok := d.Attr("dtype"); ok {
		if dt, ok := v.(tensor.DataType); ok {
			decl.SetDataType(dt)
		}
	}
	return nil
}
