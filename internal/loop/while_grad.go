package loop

import (
	"fmt"

	"k8s.io/klog/v2"

	"github.com/born-ml/dygraph/internal/device"
	"github.com/born-ml/dygraph/internal/graph"
	"github.com/born-ml/dygraph/internal/tensor"
)

// whileGradOp replays the gradient block over the recorded step scopes in
// strict reverse order. Each round links the outer output gradients into the
// current step scope, executes the gradient block against it, accumulates the
// per-parameter gradients into outer accumulators, then waits out device work
// and destroys the scope. The step-scope sequence is consumed exactly once.
type whileGradOp struct {
	graph.OperatorBase
	registry *graph.Registry
}

func (op *whileGradOp) Run(scope *graph.Scope, dev tensor.Device) error {
	ctx, err := device.DefaultPool().Get(dev)
	if err != nil {
		return fmt.Errorf("while_grad: %w", err)
	}

	block, err := op.BlockAttr(AttrSubBlock)
	if err != nil {
		return err
	}
	program := block.Program()

	scopesName, err := op.Input(SlotStepScopes)
	if err != nil {
		return err
	}
	scopesVar := scope.FindVar(scopesName)
	if scopesVar == nil {
		return fmt.Errorf("while_grad: step scopes variable %q not found", scopesName)
	}
	stepScopes := scopesVar.StepScopes()

	// The outer output-gradient names come from the operator's input slot
	// (they may have been renamed by the surrounding backward transformation);
	// the inner names are the free-variable list recorded at descriptor build
	// time. The two lists match positionally.
	outsideOGNames := op.Inputs(graph.GradVarName(SlotOut))
	insideOGNames, err := op.StrListAttr(AttrOriginalOutputGrad)
	if err != nil {
		return err
	}
	if len(outsideOGNames) != len(insideOGNames) {
		return fmt.Errorf("while_grad: %d outer output-gradient names vs %d inner names",
			len(outsideOGNames), len(insideOGNames))
	}

	pNames := op.Inputs(SlotX)
	pgNames := op.Outputs(graph.GradVarName(SlotX))
	if len(pNames) != len(pgNames) {
		return fmt.Errorf("while_grad: %d parameters vs %d gradient outputs", len(pNames), len(pgNames))
	}

	executor := graph.NewExecutor(dev, op.registry)
	total := len(*stepScopes)
	for len(*stepScopes) > 0 {
		curID := len(*stepScopes) - 1
		curScope := (*stepScopes)[curID]

		if err := op.linkOutputGrads(scope, curScope, outsideOGNames, insideOGNames); err != nil {
			return fmt.Errorf("while_grad: scope %d: %w", curID, err)
		}
		if err := executor.Run(program, curScope, block.ID(), false); err != nil {
			return fmt.Errorf("while_grad: scope %d: %w", curID, err)
		}
		firstProcessed := curID == total-1
		if err := op.accumulateParamGrads(scope, curScope, pNames, pgNames, firstProcessed, dev); err != nil {
			return fmt.Errorf("while_grad: scope %d: %w", curID, err)
		}

		ctx.Wait()
		*stepScopes = (*stepScopes)[:curID]
		curScope.Parent().DeleteChildScope(curScope)
	}
	return nil
}

// linkOutputGrads aliases each outer output-gradient value into the current
// step scope under its inner name. Plain tensors share storage and copy
// sequence metadata; tensor arrays are resized to the outer length and aliased
// slot by slot. Aliasing is re-established fresh on every round, so no
// cross-iteration sharing survives scope destruction.
func (op *whileGradOp) linkOutputGrads(scope, curScope *graph.Scope, outside, inside []string) error {
	for i, outsideName := range outside {
		ogOutsideVar := scope.FindVar(outsideName)
		if ogOutsideVar == nil {
			return fmt.Errorf("output gradient %q not found in enclosing scope", outsideName)
		}
		ogInsideVar := curScope.Var(inside[i])

		switch {
		case ogOutsideVar.IsTensor():
			outer := ogOutsideVar.Tensor()
			inner := ogInsideVar.MutableTensor()
			inner.SetLoD(outer.LoD())
			inner.ShareDataWith(outer)
		case ogOutsideVar.IsTensorArray():
			outer := ogOutsideVar.TensorArray()
			inner := ogInsideVar.MutableTensorArray()
			inner.Resize(outer.Len())
			for j := 0; j < outer.Len(); j++ {
				outerSlot := outer.At(j)
				if outerSlot.NumElements() == 0 {
					// A zero-element outer slot means the corresponding inner
					// slot must still be the empty placeholder.
					if inner.At(j).NumElements() != 0 {
						return fmt.Errorf("output gradient %q slot %d: outer slot is empty but inner slot holds %d elements",
							outsideName, j, inner.At(j).NumElements())
					}
					continue
				}
				inner.At(j).SetLoD(outerSlot.LoD())
				inner.At(j).ShareDataWith(outerSlot)
			}
		default:
			return fmt.Errorf("output gradient %q holds an unsupported kind", outsideName)
		}
	}
	return nil
}

// accumulateParamGrads sums each per-step parameter gradient into its outer
// accumulator. On the first processed scope (the last forward iteration) the
// accumulator is materialized zero-filled with the inner gradient's shape,
// dtype and sequence metadata. Each round renames the inner gradient to a
// temporary, sums {accumulator, temporary} back into the accumulator, then
// restores the inner name so the next round's link stage finds the expected
// slot. Successive iterations reuse the same inner variable name, which is
// why the rename is needed at all.
func (op *whileGradOp) accumulateParamGrads(scope, curScope *graph.Scope, pNames, pgNames []string, firstProcessed bool, dev tensor.Device) error {
	for i, pName := range pNames {
		pgName := pgNames[i]
		if pgName == graph.EmptyVarName {
			klog.V(5).Infof("while_grad: parameter %q has no gradient output, skipping", pName)
			continue
		}
		insideGradName := graph.GradVarName(pName)
		insideGradVar := curScope.FindVarLocally(insideGradName)
		if insideGradVar == nil {
			return fmt.Errorf("inner gradient %q not produced by the gradient block", insideGradName)
		}
		if !insideGradVar.IsTensor() {
			return fmt.Errorf("inner gradient %q holds an unsupported kind", insideGradName)
		}

		if firstProcessed {
			insideGrad := insideGradVar.Tensor()
			attrs := graph.AttributeMap{
				"shape": []int(insideGrad.Shape()),
				"dtype": insideGrad.DType(),
				"value": 0.0,
			}
			zeroOp, err := op.registry.CreateOp("fill_constant", nil,
				graph.VariableNameMap{"Out": {pgName}}, attrs)
			if err != nil {
				return err
			}
			if err := zeroOp.Run(scope, dev); err != nil {
				return err
			}
			scope.FindVar(pgName).Tensor().SetLoD(insideGrad.LoD())
		}

		tempName, err := curScope.RenameToTemp(insideGradName)
		if err != nil {
			return err
		}
		sumOp, err := op.registry.CreateOp("sum",
			graph.VariableNameMap{"X": {pgName, tempName}},
			graph.VariableNameMap{"Out": {pgName}}, nil)
		if err != nil {
			return err
		}
		if err := sumOp.Run(curScope, dev); err != nil {
			return err
		}
		if err := curScope.Rename(tempName, insideGradName); err != nil {
			return err
		}
	}
	return nil
}

// whileGradInferShape copies each parameter's declared shape to its gradient
// output, skipping sentinel names.
func whileGradInferShape(d *graph.OpDesc, block *graph.BlockDesc) error {
	pNames := d.Input(SlotX)
	pgNames := d.Output(graph.GradVarName(SlotX))
	if len(pNames) != len(pgNames) {
		return fmt.Errorf("while_grad: %d parameters vs %d gradient outputs", len(pNames), len(pgNames))
	}
	for i, pName := range pNames {
		if pgNames[i] == graph.EmptyVarName {
			continue
		}
		pVar := block.FindVarRecursive(pName)
		if pVar == nil {
			continue
		}
		block.FindVarRecursiveOrCreate(pgNames[i]).SetShape(pVar.Shape())
	}
	return nil
}

// whileGradInferVarType propagates each parameter's declared kind and element
// type to its gradient output, skipping sentinel names.
func whileGradInferVarType(d *graph.OpDesc, block *graph.BlockDesc) error {
	pNames := d.Input(SlotX)
	pgNames := d.Output(graph.GradVarName(SlotX))
	if len(pNames) != len(pgNames) {
		return fmt.Errorf("while_grad: %d parameters vs %d gradient outputs", len(pNames), len(pgNames))
	}
	for i, pName := range pNames {
		if pgNames[i] == graph.EmptyVarName {
			continue
		}
		pVar := block.FindVarRecursive(pName)
		if pVar == nil {
			continue
		}
		gVar := block.FindVarRecursiveOrCreate(pgNames[i])
		gVar.SetKind(pVar.Kind())
		gVar.SetDataType(pVar.DataType())
	}
	return nil
}
