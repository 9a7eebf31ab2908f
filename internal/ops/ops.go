// Package ops implements the built-in operators the engine and its control
// flow depend on: constant fill, elementwise accumulation and the small set
// of arithmetic/comparison ops used by step programs. Each operator resolves
// its variables against the scope it runs in; kernels execute on the host
// backend. Register wires the set into a registry.
package ops

import (
	"fmt"

	"github.com/born-ml/dygraph/internal/backend/cpu"
	"github.com/born-ml/dygraph/internal/graph"
	"github.com/born-ml/dygraph/internal/tensor"
)

// backend is the shared host kernel backend.
var backend = cpu.New()

// Register wires the built-in operator set into the registry.
func Register(r *graph.Registry) {
	r.MustRegister("fill_constant", graph.OpInfo{
		Creator:      newFillConstantOp,
		InferShape:   fillConstantInferShape,
		InferVarType: fillConstantInferVarType,
	})
	r.MustRegister("sum", graph.OpInfo{
		Creator:      newSumOp,
		InferShape:   firstInputInferShape("X"),
		InferVarType: firstInputInferVarType("X"),
	})
	r.MustRegister("elementwise_add", graph.OpInfo{
		Creator:      newElementwiseAddOp,
		GradOpMaker:  elementwiseAddGradOpMaker,
		InferShape:   firstInputInferShape("X"),
		InferVarType: firstInputInferVarType("X"),
	})
	r.MustRegister("elementwise_add_grad", graph.OpInfo{
		Creator: newElementwiseAddGradOp,
	})
	r.MustRegister("assign", graph.OpInfo{
		Creator:      newAssignOp,
		GradOpMaker:  assignGradOpMaker,
		InferShape:   firstInputInferShape("X"),
		InferVarType: firstInputInferVarType("X"),
	})
	r.MustRegister("scale", graph.OpInfo{
		Creator:      newScaleOp,
		GradOpMaker:  scaleGradOpMaker,
		InferShape:   firstInputInferShape("X"),
		InferVarType: firstInputInferVarType("X"),
	})
	r.MustRegister("increment", graph.OpInfo{
		Creator:      newIncrementOp,
		InferShape:   firstInputInferShape("X"),
		InferVarType: firstInputInferVarType("X"),
	})
	r.MustRegister("less_than", graph.OpInfo{
		Creator:    newLessThanOp,
		InferShape: firstInputInferShape("X"),
		InferVarType: func(d *graph.OpDesc, block *graph.BlockDesc) error {
			out, err := singleArg(d.Output("Out"), d.Type(), "Out")
			if err != nil {
				return err
			}
			decl := block.FindVarRecursive(out)
			if decl == nil {
				return fmt.Errorf("less_than: output %q is not declared", out)
			}
			decl.SetKind(graph.VarKindTensor)
			decl.SetDataType(tensor.Bool)
			return nil
		},
	})
}

// singleArg extracts the single variable name bound to a slot.
func singleArg(names []string, opType, slot string) (string, error) {
	if len(names) != 1 {
		return "", fmt.Errorf("op %s: slot %q binds %d names, want exactly 1", opType, slot, len(names))
	}
	return names[0], nil
}

// inputTensor resolves an initialized input tensor from the scope.
func inputTensor(scope *graph.Scope, opType, name string) (*tensor.RawTensor, error) {
	v := scope.FindVar(name)
	if v == nil {
		return nil, fmt.Errorf("op %s: input variable %q not found", opType, name)
	}
	if !v.IsTensor() {
		return nil, fmt.Errorf("op %s: input variable %q does not hold a tensor", opType, name)
	}
	return v.Tensor(), nil
}

// outputVar resolves an output variable, creating it locally if unbound
// anywhere up the scope chain.
func outputVar(scope *graph.Scope, name string) *graph.Variable {
	if v := scope.FindVar(name); v != nil {
		return v
	}
	return scope.Var(name)
}

// firstInputInferShape propagates the shape of the slot's first input
// variable to the single output.
func firstInputInferShape(slot string) graph.ShapeInference {
	return func(d *graph.OpDesc, block *graph.BlockDesc) error {
		ins := d.Input(slot)
		if len(ins) == 0 {
			return fmt.Errorf("op %s: slot %q binds no names", d.Type(), slot)
		}
		in := block.FindVarRecursive(ins[0])
		if in == nil {
			return fmt.Errorf("op %s: input %q is not declared", d.Type(), ins[0])
		}
		out, err := singleArg(d.Output("Out"), d.Type(), "Out")
		if err != nil {
			return err
		}
		decl := block.FindVarRecursive(out)
		if decl == nil {
			return fmt.Errorf("op %s: output %q is not declared", d.Type(), out)
		}
		decl.SetShape(in.Shape())
		return nil
	}
}

// firstInputInferVarType propagates kind and element type of the slot's first
// input variable to the single output.
func firstInputInferVarType(slot string) graph.VarTypeInference {
	return func(d *graph.OpDesc, block *graph.BlockDesc) error {
		ins := d.Input(slot)
		if len(ins) == 0 {
			return fmt.Errorf("op %s: slot %q binds no names", d.Type(), slot)
		}
		in := block.FindVarRecursive(ins[0])
		if in == nil {
			return fmt.Errorf("op %s: input %q is not declared", d.Type(), ins[0])
		}
		out, err := singleArg(d.Output("Out"), d.Type(), "Out")
		if err != nil {
			return err
		}
		decl := block.FindVarRecursive(out)
		if decl == nil {
			return fmt.Errorf("op %s: output %q is not declared", d.Type(), out)
		}
		decl.SetKind(in.Kind())
		decl.SetDataType(in.DataType())
		return nil
	}
}
