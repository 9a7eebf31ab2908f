package loop

import (
	"fmt"

	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/born-ml/dygraph/internal/graph"
)

// whileGradOpMaker builds the while_grad descriptor from a forward while
// descriptor and its already-transformed gradient block.
//
// Forward inputs, forward outputs and the step-scope sequence are carried
// through unchanged. The output-gradient input slot is not the naive
// "gradient of every forward output": it is derived as the free variables of
// the gradient block, the names its operators read that are neither produced
// earlier inside the block nor resolvable in the forward block chain. The
// loop's outputs needing gradients is a subset of all outputs, and only the
// gradient block's real usage says which. The derived list is also recorded
// as a static attribute because the backward executor must match outer and
// inner names positionally even after the surrounding transformation renames
// the slot's variables.
func whileGradOpMaker(fwd *graph.OpDesc, noGrad map[string]struct{}, gradBlocks []*graph.BlockDesc) ([]*graph.OpDesc, map[string]string, error) {
	if len(gradBlocks) != 1 {
		return nil, nil, fmt.Errorf("while_grad: got %d gradient blocks, want exactly 1", len(gradBlocks))
	}
	gradBlock := gradBlocks[0]
	fwdBlock := gradBlock.ForwardBlock()

	xNames := fwd.Input(SlotX)
	outNames := fwd.Output(SlotOut)

	// Names visible to the gradient block through the forward interface.
	blockIns := make(map[string]struct{}, len(xNames)+len(outNames))
	for _, name := range xNames {
		blockIns[name] = struct{}{}
	}
	for _, name := range outNames {
		blockIns[name] = struct{}{}
	}

	// Free variables of the gradient block, in first-read order. A name
	// produced by an earlier operator inside the block is internal; a name
	// declared anywhere up the forward block chain is supplied by the forward
	// program. Everything else must come in from outside.
	extraInputs := orderedmap.New[string, struct{}]()
	innerOpOutputs := make(map[string]struct{})
	for _, innerOp := range gradBlock.AllOps() {
		for _, inputName := range innerOp.InputArgumentNames() {
			if _, ok := blockIns[inputName]; ok {
				continue
			}
			if _, ok := innerOpOutputs[inputName]; ok {
				continue
			}
			if fwdBlock != nil && fwdBlock.FindVarRecursive(inputName) != nil {
				continue
			}
			extraInputs.Set(inputName, struct{}{})
		}
		for _, outputName := range innerOp.OutputArgumentNames() {
			innerOpOutputs[outputName] = struct{}{}
		}
	}
	extraInputList := make([]string, 0, extraInputs.Len())
	for pair := extraInputs.Oldest(); pair != nil; pair = pair.Next() {
		extraInputList = append(extraInputList, pair.Key)
	}

	// One gradient slot per forward input; the sentinel marks inputs whose
	// gradient no operator in the block ever produces.
	gradToVar := make(map[string]string)
	igs := make([]string, len(xNames))
	for i, x := range xNames {
		if _, skip := noGrad[x]; skip {
			igs[i] = graph.EmptyVarName
			continue
		}
		ig := graph.GradVarName(x)
		if _, produced := innerOpOutputs[ig]; !produced {
			igs[i] = graph.EmptyVarName
			continue
		}
		igs[i] = ig
		gradToVar[ig] = x
	}

	desc := graph.NewOpDesc(GradOpType, nil, nil, fwd.Attrs())
	desc.SetInput(SlotX, xNames)
	desc.SetInput(SlotOut, outNames)
	desc.SetInput(SlotStepScopes, fwd.Output(SlotStepScopes))
	desc.SetInput(graph.GradVarName(SlotOut), extraInputList)
	desc.SetOutput(graph.GradVarName(SlotX), igs)
	desc.SetAttr(AttrSubBlock, gradBlock)
	desc.SetAttr(AttrOriginalOutputGrad, extraInputList)
	return []*graph.OpDesc{desc}, gradToVar, nil
}
