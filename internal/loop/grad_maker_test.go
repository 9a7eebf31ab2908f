package loop

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/dygraph/internal/graph"
)

// buildGradProgram constructs a forward step block alongside the gradient
// block a static backward transformation would produce for it: the step block
// adds x into out, the gradient block routes out's gradient to x's.
func buildGradProgram() (*graph.ProgramDesc, *graph.BlockDesc, *graph.BlockDesc) {
	p := graph.NewProgram()

	step := p.AppendBlock(p.RootBlock())
	step.AppendOp(graph.NewOpDesc("elementwise_add",
		graph.VariableNameMap{"X": {"x"}, "Y": {"out"}},
		graph.VariableNameMap{"Out": {"out"}}, nil))
	step.AppendOp(graph.NewOpDesc("increment",
		graph.VariableNameMap{"X": {"i"}},
		graph.VariableNameMap{"Out": {"i"}}, nil))
	step.AppendOp(graph.NewOpDesc("less_than",
		graph.VariableNameMap{"X": {"i"}, "Y": {"limit"}},
		graph.VariableNameMap{"Out": {"cond"}}, nil))

	gradBlock := p.AppendBlock(p.RootBlock())
	gradBlock.SetForwardBlock(step)
	gradBlock.Var(graph.GradVarName("x")) // produced per iteration, accumulated outside
	gradBlock.AppendOp(graph.NewOpDesc("scale",
		graph.VariableNameMap{"X": {graph.GradVarName("out")}},
		graph.VariableNameMap{"Out": {graph.GradVarName("x")}},
		graph.AttributeMap{"scale": 1.0}))

	return p, step, gradBlock
}

func whileDesc(step *graph.BlockDesc, xNames []string) *graph.OpDesc {
	return graph.NewOpDesc(OpType,
		graph.VariableNameMap{SlotX: xNames, SlotCondition: {"cond"}},
		graph.VariableNameMap{SlotOut: {"out"}, SlotStepScopes: {"scopes"}},
		graph.AttributeMap{AttrSubBlock: step})
}

func TestGradMakerCarriesForwardInterface(t *testing.T) {
	_, step, gradBlock := buildGradProgram()
	fwd := whileDesc(step, []string{"x"})

	descs, gradToVar, err := whileGradOpMaker(fwd, nil, []*graph.BlockDesc{gradBlock})
	require.NoError(t, err)
	require.Len(t, descs, 1)
	d := descs[0]

	assert.Equal(t, GradOpType, d.Type())
	assert.Equal(t, []string{"x"}, d.Input(SlotX))
	assert.Equal(t, []string{"out"}, d.Input(SlotOut))
	assert.Equal(t, []string{"scopes"}, d.Input(SlotStepScopes))
	assert.Equal(t, []string{graph.GradVarName("x")}, d.Output(graph.GradVarName(SlotX)))
	assert.Equal(t, "x", gradToVar[graph.GradVarName("x")])

	block, err := d.BlockAttr(AttrSubBlock)
	require.NoError(t, err)
	assert.Same(t, gradBlock, block)
}

func TestGradMakerDerivesFreeVariables(t *testing.T) {
	_, step, gradBlock := buildGradProgram()
	fwd := whileDesc(step, []string{"x"})

	descs, _, err := whileGradOpMaker(fwd, nil, []*graph.BlockDesc{gradBlock})
	require.NoError(t, err)
	d := descs[0]

	// The gradient block reads only out@GRAD from outside: x and out are
	// carried through the forward interface, x@GRAD is produced inside.
	want := []string{graph.GradVarName("out")}
	if diff := cmp.Diff(want, d.Input(graph.GradVarName(SlotOut))); diff != "" {
		t.Errorf("output-gradient inputs mismatch (-want +got):\n%s", diff)
	}

	attr, ok := d.Attr(AttrOriginalOutputGrad)
	require.True(t, ok)
	if diff := cmp.Diff(want, attr.([]string)); diff != "" {
		t.Errorf("recorded free-variable list mismatch (-want +got):\n%s", diff)
	}
}

func TestGradMakerSkipsInternalAndForwardResolvableNames(t *testing.T) {
	p := graph.NewProgram()
	step := p.AppendBlock(p.RootBlock())
	step.Var("w") // resolvable through the forward block chain

	gradBlock := p.AppendBlock(p.RootBlock())
	gradBlock.SetForwardBlock(step)
	gradBlock.Var(graph.GradVarName("x"))
	// First op produces tmp, second consumes it: tmp is internal, not free.
	gradBlock.AppendOp(graph.NewOpDesc("scale",
		graph.VariableNameMap{"X": {graph.GradVarName("out")}},
		graph.VariableNameMap{"Out": {"tmp"}},
		graph.AttributeMap{"scale": 1.0}))
	gradBlock.AppendOp(graph.NewOpDesc("elementwise_add",
		graph.VariableNameMap{"X": {"tmp"}, "Y": {"w"}},
		graph.VariableNameMap{"Out": {graph.GradVarName("x")}}, nil))

	fwd := whileDesc(step, []string{"x"})
	descs, _, err := whileGradOpMaker(fwd, nil, []*graph.BlockDesc{gradBlock})
	require.NoError(t, err)

	want := []string{graph.GradVarName("out")}
	if diff := cmp.Diff(want, descs[0].Input(graph.GradVarName(SlotOut))); diff != "" {
		t.Errorf("free variables mismatch (-want +got):\n%s", diff)
	}
}

func TestGradMakerNoGradientSentinel(t *testing.T) {
	_, step, gradBlock := buildGradProgram()

	// Parameter w never receives a gradient inside the block.
	fwd := whileDesc(step, []string{"x", "w"})
	descs, gradToVar, err := whileGradOpMaker(fwd, nil, []*graph.BlockDesc{gradBlock})
	require.NoError(t, err)

	igs := descs[0].Output(graph.GradVarName(SlotX))
	assert.Equal(t, []string{graph.GradVarName("x"), graph.EmptyVarName}, igs)
	_, hasW := gradToVar[graph.GradVarName("w")]
	assert.False(t, hasW)
}

func TestGradMakerHonorsNoGradSet(t *testing.T) {
	_, step, gradBlock := buildGradProgram()
	fwd := whileDesc(step, []string{"x"})

	descs, gradToVar, err := whileGradOpMaker(fwd,
		map[string]struct{}{"x": {}}, []*graph.BlockDesc{gradBlock})
	require.NoError(t, err)

	assert.Equal(t, []string{graph.EmptyVarName}, descs[0].Output(graph.GradVarName(SlotX)))
	assert.Empty(t, gradToVar)
}

func TestGradMakerRequiresSingleBlock(t *testing.T) {
	_, step, gradBlock := buildGradProgram()
	fwd := whileDesc(step, []string{"x"})

	_, _, err := whileGradOpMaker(fwd, nil, nil)
	assert.Error(t, err)
	_, _, err = whileGradOpMaker(fwd, nil, []*graph.BlockDesc{gradBlock, gradBlock})
	assert.Error(t, err)
}
