package loop

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/dygraph/internal/graph"
	"github.com/born-ml/dygraph/internal/ops"
	"github.com/born-ml/dygraph/internal/tensor"
)

func newLoopRegistry(t *testing.T) *graph.Registry {
	t.Helper()
	r := graph.NewRegistry()
	ops.Register(r)
	Register(r)
	return r
}

func setTensor(t *testing.T, scope *graph.Scope, name string, data []float32) *tensor.RawTensor {
	t.Helper()
	raw, err := tensor.FromSlice(data, tensor.Shape{len(data)}, tensor.CPU)
	require.NoError(t, err)
	scope.Var(name).MutableTensor().ShareDataWith(raw)
	return scope.FindVar(name).Tensor()
}

func setBool(t *testing.T, scope *graph.Scope, name string, value bool) *tensor.RawTensor {
	t.Helper()
	raw, err := tensor.FromSlice([]bool{value}, tensor.Shape{1}, tensor.CPU)
	require.NoError(t, err)
	scope.Var(name).MutableTensor().ShareDataWith(raw)
	return scope.FindVar(name).Tensor()
}

// counterProgram builds a step block that increments "i" and recomputes
// "cond" as i < limit. All loop state lives in the enclosing scope.
func counterProgram() (*graph.ProgramDesc, *graph.BlockDesc) {
	p := graph.NewProgram()
	step := p.AppendBlock(p.RootBlock())
	step.AppendOp(graph.NewOpDesc("increment",
		graph.VariableNameMap{"X": {"i"}},
		graph.VariableNameMap{"Out": {"i"}}, nil))
	step.AppendOp(graph.NewOpDesc("less_than",
		graph.VariableNameMap{"X": {"i"}, "Y": {"limit"}},
		graph.VariableNameMap{"Out": {"cond"}}, nil))
	return p, step
}

func newWhileOp(t *testing.T, r *graph.Registry, step *graph.BlockDesc) graph.Operator {
	t.Helper()
	op, err := r.CreateOp(OpType,
		graph.VariableNameMap{SlotX: {"i"}, SlotCondition: {"cond"}},
		graph.VariableNameMap{SlotOut: {"i"}, SlotStepScopes: {"scopes"}},
		graph.AttributeMap{AttrSubBlock: step})
	require.NoError(t, err)
	return op
}

func TestWhileCounterScenario(t *testing.T) {
	r := newLoopRegistry(t)
	_, step := counterProgram()

	scope := graph.NewScope()
	setTensor(t, scope, "i", []float32{0})
	setTensor(t, scope, "limit", []float32{3})
	setBool(t, scope, "cond", true)

	require.NoError(t, newWhileOp(t, r, step).Run(scope, tensor.CPU))

	assert.Equal(t, []float32{3}, scope.FindVar("i").Tensor().AsFloat32())
	scopes := scope.FindVar("scopes").StepScopes()
	assert.Len(t, *scopes, 3, "condition true for exactly 3 steps")
}

func TestWhileZeroIterations(t *testing.T) {
	r := newLoopRegistry(t)
	_, step := counterProgram()

	scope := graph.NewScope()
	setTensor(t, scope, "i", []float32{5})
	setTensor(t, scope, "limit", []float32{3})
	setBool(t, scope, "cond", false)

	require.NoError(t, newWhileOp(t, r, step).Run(scope, tensor.CPU))

	assert.Equal(t, []float32{5}, scope.FindVar("i").Tensor().AsFloat32())
	assert.Empty(t, *scope.FindVar("scopes").StepScopes())
}

func TestWhileConditionPreconditions(t *testing.T) {
	r := newLoopRegistry(t)
	_, step := counterProgram()

	t.Run("missing", func(t *testing.T) {
		scope := graph.NewScope()
		err := newWhileOp(t, r, step).Run(scope, tensor.CPU)
		assert.ErrorContains(t, err, "not found")
	})

	t.Run("multi-element", func(t *testing.T) {
		scope := graph.NewScope()
		raw, err := tensor.FromSlice([]bool{true, false}, tensor.Shape{2}, tensor.CPU)
		require.NoError(t, err)
		scope.Var("cond").MutableTensor().ShareDataWith(raw)
		err = newWhileOp(t, r, step).Run(scope, tensor.CPU)
		assert.ErrorContains(t, err, "elements")
	})

	t.Run("not bool", func(t *testing.T) {
		scope := graph.NewScope()
		setTensor(t, scope, "cond", []float32{1})
		err := newWhileOp(t, r, step).Run(scope, tensor.CPU)
		assert.ErrorContains(t, err, "bool")
	})

	t.Run("not host-resident", func(t *testing.T) {
		scope := graph.NewScope()
		raw, err := tensor.NewRaw(tensor.Shape{1}, tensor.Bool, tensor.WebGPU)
		require.NoError(t, err)
		scope.Var("cond").MutableTensor().ShareDataWith(raw)
		err = newWhileOp(t, r, step).Run(scope, tensor.CPU)
		assert.ErrorContains(t, err, "host-resident")
	})
}

func TestWhileInferVarType(t *testing.T) {
	p := graph.NewProgram()
	step := p.AppendBlock(p.RootBlock())
	d := graph.NewOpDesc(OpType,
		graph.VariableNameMap{SlotX: {"x"}, SlotCondition: {"cond"}},
		graph.VariableNameMap{SlotOut: {"x"}, SlotStepScopes: {"scopes"}},
		graph.AttributeMap{AttrSubBlock: step})

	require.NoError(t, whileInferVarType(d, p.RootBlock()))
	assert.Equal(t, graph.VarKindStepScopes, p.RootBlock().FindVar("scopes").Kind())
}
