package graph

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/dygraph/internal/tensor"
)

// recordOp appends its run-time scope bindings to a shared log.
type recordOp struct {
	OperatorBase
	log *[]string
}

func (op *recordOp) Run(scope *Scope, dev tensor.Device) error {
	name, err := op.Output("Out")
	if err != nil {
		return err
	}
	scope.Var(name).MutableTensor()
	*op.log = append(*op.log, name)
	return nil
}

func newTestRegistry(log *[]string) *Registry {
	r := NewRegistry()
	r.MustRegister("record", OpInfo{
		Creator: func(opType string, inputs, outputs VariableNameMap, attrs AttributeMap) (Operator, error) {
			return &recordOp{OperatorBase: NewOperatorBase(opType, inputs, outputs, attrs), log: log}, nil
		},
	})
	return r
}

func TestRegistryRejectsDuplicates(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register("op", OpInfo{}))
	assert.Error(t, r.Register("op", OpInfo{}))
	assert.Panics(t, func() { r.MustRegister("op", OpInfo{}) })
}

func TestRegistryCreateOpErrors(t *testing.T) {
	r := NewRegistry()
	_, err := r.CreateOp("unknown", nil, nil, nil)
	assert.Error(t, err)

	r.MustRegister("nokernel", OpInfo{})
	_, err = r.CreateOp("nokernel", nil, nil, nil)
	assert.Error(t, err, "a type without a creator has no kernel implementation")

	_, err = r.GradOpMaker("nokernel")
	assert.Error(t, err)
}

func TestExecutorRunsOpsInProgramOrder(t *testing.T) {
	var log []string
	r := newTestRegistry(&log)

	p := NewProgram()
	block := p.RootBlock()
	block.Var("a")
	block.Var("b")
	block.AppendOp(NewOpDesc("record", nil, VariableNameMap{"Out": {"a"}}, nil))
	block.AppendOp(NewOpDesc("record", nil, VariableNameMap{"Out": {"b"}}, nil))

	scope := NewScope()
	exec := NewExecutor(tensor.CPU, r)
	require.NoError(t, exec.Run(p, scope, 0, false))
	assert.Equal(t, []string{"a", "b"}, log)
	assert.NotNil(t, scope.FindVarLocally("a"))
}

func TestExecutorMaterializesBlockVarsLocally(t *testing.T) {
	var log []string
	r := newTestRegistry(&log)

	p := NewProgram()
	block := p.RootBlock()
	block.Var("x") // declared, shadows any outer binding

	outer := NewScope()
	outerVar := outer.Var("x")
	inner := outer.NewChildScope()

	exec := NewExecutor(tensor.CPU, r)
	require.NoError(t, exec.Run(p, inner, 0, false))
	assert.NotSame(t, outerVar, inner.FindVar("x"),
		"block-declared variables must shadow outer bindings")
}

func TestExecutorLocalScopeIsDestroyed(t *testing.T) {
	var log []string
	r := newTestRegistry(&log)

	p := NewProgram()
	p.RootBlock().AppendOp(NewOpDesc("record", nil, VariableNameMap{"Out": {"tmp"}}, nil))

	scope := NewScope()
	exec := NewExecutor(tensor.CPU, r)
	require.NoError(t, exec.Run(p, scope, 0, true))
	assert.Nil(t, scope.FindVar("tmp"), "createLocalScope must not leak bindings into the caller scope")
}

func TestExecutorUnknownBlock(t *testing.T) {
	r := NewRegistry()
	exec := NewExecutor(tensor.CPU, r)
	err := exec.Run(NewProgram(), NewScope(), 7, false)
	assert.Error(t, err)
}

func TestExecutorPropagatesOpError(t *testing.T) {
	r := NewRegistry()
	r.MustRegister("fail", OpInfo{
		Creator: func(opType string, inputs, outputs VariableNameMap, attrs AttributeMap) (Operator, error) {
			return &failOp{NewOperatorBase(opType, inputs, outputs, attrs)}, nil
		},
	})
	p := NewProgram()
	p.RootBlock().AppendOp(NewOpDesc("fail", nil, nil, nil))

	err := NewExecutor(tensor.CPU, r).Run(p, NewScope(), 0, false)
	assert.ErrorContains(t, err, "boom")
}

type failOp struct {
	OperatorBase
}

func (op *failOp) Run(scope *Scope, dev tensor.Device) error {
	return fmt.Errorf("boom")
}
