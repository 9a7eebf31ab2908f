package loop

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/dygraph/internal/graph"
	"github.com/born-ml/dygraph/internal/tensor"
)

// runForwardLoop executes the forward while over buildGradProgram's step
// block for three iterations and returns the scope and registry.
func runForwardLoop(t *testing.T) (*graph.Registry, *graph.Scope, *graph.BlockDesc, *graph.BlockDesc) {
	t.Helper()
	r := newLoopRegistry(t)
	_, step, gradBlock := buildGradProgram()

	scope := graph.NewScope()
	setTensor(t, scope, "i", []float32{0})
	setTensor(t, scope, "limit", []float32{3})
	setBool(t, scope, "cond", true)
	setTensor(t, scope, "x", []float32{1, 1})
	setTensor(t, scope, "out", []float32{0, 0})

	fwdOp, err := r.CreateOp(OpType,
		graph.VariableNameMap{SlotX: {"x"}, SlotCondition: {"cond"}},
		graph.VariableNameMap{SlotOut: {"out"}, SlotStepScopes: {"scopes"}},
		graph.AttributeMap{AttrSubBlock: step})
	require.NoError(t, err)
	require.NoError(t, fwdOp.Run(scope, tensor.CPU))
	require.Len(t, *scope.FindVar("scopes").StepScopes(), 3)

	return r, scope, step, gradBlock
}

func newGradOp(t *testing.T, r *graph.Registry, step, gradBlock *graph.BlockDesc, xNames []string) graph.Operator {
	t.Helper()
	fwd := whileDesc(step, xNames)
	descs, _, err := whileGradOpMaker(fwd, nil, []*graph.BlockDesc{gradBlock})
	require.NoError(t, err)
	op, err := r.CreateOpFromDesc(descs[0])
	require.NoError(t, err)
	return op
}

func TestBackwardAccumulatesAcrossIterations(t *testing.T) {
	r, scope, step, gradBlock := runForwardLoop(t)
	og := setTensor(t, scope, graph.GradVarName("out"), []float32{0.5, 0.25})

	gradOp := newGradOp(t, r, step, gradBlock, []string{"x"})
	require.NoError(t, gradOp.Run(scope, tensor.CPU))

	// The gradient block copies out@GRAD into x@GRAD each round; three
	// rounds must sum to exactly 3x regardless of per-round renaming.
	acc := scope.FindVar(graph.GradVarName("x"))
	require.NotNil(t, acc)
	assert.Equal(t, []float32{1.5, 0.75}, acc.Tensor().AsFloat32())

	// Linking must not disturb the outer gradient itself.
	assert.Equal(t, []float32{0.5, 0.25}, og.AsFloat32())
}

func TestBackwardConsumesStepScopes(t *testing.T) {
	r, scope, step, gradBlock := runForwardLoop(t)
	setTensor(t, scope, graph.GradVarName("out"), []float32{1, 1})

	gradOp := newGradOp(t, r, step, gradBlock, []string{"x"})
	require.NoError(t, gradOp.Run(scope, tensor.CPU))

	assert.Empty(t, *scope.FindVar("scopes").StepScopes(),
		"the step-scope sequence is consumed exactly once")
}

func TestBackwardZeroIterationsIsNoOp(t *testing.T) {
	r := newLoopRegistry(t)
	_, step, gradBlock := buildGradProgram()

	scope := graph.NewScope()
	setBool(t, scope, "cond", false)
	setTensor(t, scope, "i", []float32{5})
	setTensor(t, scope, "limit", []float32{3})
	setTensor(t, scope, "x", []float32{1, 1})
	setTensor(t, scope, "out", []float32{0, 0})
	scope.Var("scopes").MutableStepScopes()
	setTensor(t, scope, graph.GradVarName("out"), []float32{1, 1})

	gradOp := newGradOp(t, r, step, gradBlock, []string{"x"})
	require.NoError(t, gradOp.Run(scope, tensor.CPU))

	assert.Nil(t, scope.FindVar(graph.GradVarName("x")),
		"an empty sequence leaves the accumulator slot untouched")
}

func TestBackwardSkipsNoGradientSentinel(t *testing.T) {
	r, scope, step, gradBlock := runForwardLoop(t)
	setTensor(t, scope, "w", []float32{9, 9})
	setTensor(t, scope, graph.GradVarName("out"), []float32{1, 2})

	// w never receives a gradient inside the block; its slot carries the
	// sentinel and must be skipped on every round without error.
	gradOp := newGradOp(t, r, step, gradBlock, []string{"x", "w"})
	require.NoError(t, gradOp.Run(scope, tensor.CPU))

	assert.Equal(t, []float32{3, 6}, scope.FindVar(graph.GradVarName("x")).Tensor().AsFloat32())
	assert.Nil(t, scope.FindVar(graph.GradVarName("w")))
}

func TestBackwardMissingInnerGradientIsFatal(t *testing.T) {
	r := newLoopRegistry(t)
	p := graph.NewProgram()
	step := p.AppendBlock(p.RootBlock())

	// A gradient block that never produces x@GRAD while the descriptor
	// claims it: the mismatch must surface as an error.
	gradBlock := p.AppendBlock(p.RootBlock())
	gradBlock.SetForwardBlock(step)

	scope := graph.NewScope()
	setBool(t, scope, "cond", true)
	setTensor(t, scope, "x", []float32{1})
	scopes := scope.Var("scopes").MutableStepScopes()
	*scopes = append(*scopes, scope.NewChildScope())

	gradDesc := graph.NewOpDesc(GradOpType, nil, nil, nil)
	gradDesc.SetInput(SlotX, []string{"x"})
	gradDesc.SetInput(SlotOut, []string{"out"})
	gradDesc.SetInput(SlotStepScopes, []string{"scopes"})
	gradDesc.SetInput(graph.GradVarName(SlotOut), nil)
	gradDesc.SetOutput(graph.GradVarName(SlotX), []string{graph.GradVarName("x")})
	gradDesc.SetAttr(AttrSubBlock, gradBlock)
	gradDesc.SetAttr(AttrOriginalOutputGrad, []string{})

	op, err := r.CreateOpFromDesc(gradDesc)
	require.NoError(t, err)
	assert.ErrorContains(t, op.Run(scope, tensor.CPU), "not produced")
}

func TestLinkSharesTensorStorage(t *testing.T) {
	r := newLoopRegistry(t)
	op := &whileGradOp{registry: r}

	outer := graph.NewScope()
	src := setTensor(t, outer, "og", []float32{1, 2})
	src.SetLoD(tensor.LoD{{0, 2}})
	inner := outer.NewChildScope()

	require.NoError(t, op.linkOutputGrads(outer, inner, []string{"og"}, []string{"og_in"}))

	linked := inner.FindVarLocally("og_in").Tensor()
	assert.True(t, linked.SharesDataWith(src))
	assert.Equal(t, tensor.LoD{{0, 2}}, linked.LoD())

	// Writes through the inner alias are visible outside for this round.
	linked.AsFloat32()[0] = 7
	assert.Equal(t, float32(7), src.AsFloat32()[0])
}

func TestLinkTensorArraySlots(t *testing.T) {
	r := newLoopRegistry(t)
	op := &whileGradOp{registry: r}

	outer := graph.NewScope()
	arr := outer.Var("og").MutableTensorArray()
	filled, err := tensor.FromSlice([]float32{1, 2}, tensor.Shape{2}, tensor.CPU)
	require.NoError(t, err)
	arr.Append(filled)
	arr.Append(tensor.Empty(tensor.CPU)) // zero-element slot

	inner := outer.NewChildScope()
	require.NoError(t, op.linkOutputGrads(outer, inner, []string{"og"}, []string{"og_in"}))

	linked := inner.FindVarLocally("og_in").TensorArray()
	require.Equal(t, 2, linked.Len())
	assert.True(t, linked.At(0).SharesDataWith(filled))
	assert.False(t, linked.At(1).Initialized())
}

func TestLinkRejectsNonEmptyInnerSlotForEmptyOuterSlot(t *testing.T) {
	r := newLoopRegistry(t)
	op := &whileGradOp{registry: r}

	outer := graph.NewScope()
	arr := outer.Var("og").MutableTensorArray()
	arr.Append(tensor.Empty(tensor.CPU))

	inner := outer.NewChildScope()
	innerArr := inner.Var("og_in").MutableTensorArray()
	stale, err := tensor.FromSlice([]float32{3}, tensor.Shape{1}, tensor.CPU)
	require.NoError(t, err)
	innerArr.Append(stale)

	err = op.linkOutputGrads(outer, inner, []string{"og"}, []string{"og_in"})
	assert.Error(t, err)
}

func TestLinkMissingOuterGradientIsFatal(t *testing.T) {
	r := newLoopRegistry(t)
	op := &whileGradOp{registry: r}
	outer := graph.NewScope()
	inner := outer.NewChildScope()
	err := op.linkOutputGrads(outer, inner, []string{"missing"}, []string{"m_in"})
	assert.ErrorContains(t, err, "not found")
}
