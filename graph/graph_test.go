// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package graph_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/dygraph/graph"
	"github.com/born-ml/dygraph/tensor"
)

// TestWhileForwardBackward drives the full loop pair through the public API:
// a counter loop runs three iterations, then the gradient operator replays
// the gradient block over the recorded scopes and accumulates into x@GRAD.
func TestWhileForwardBackward(t *testing.T) {
	registry := graph.NewRegistry()

	program := graph.NewProgram()
	step := program.AppendBlock(program.RootBlock())
	step.AppendOp(graph.NewOpDesc("elementwise_add",
		graph.VariableNameMap{"X": {"x"}, "Y": {"out"}},
		graph.VariableNameMap{"Out": {"out"}}, nil))
	step.AppendOp(graph.NewOpDesc("increment",
		graph.VariableNameMap{"X": {"i"}},
		graph.VariableNameMap{"Out": {"i"}}, nil))
	step.AppendOp(graph.NewOpDesc("less_than",
		graph.VariableNameMap{"X": {"i"}, "Y": {"limit"}},
		graph.VariableNameMap{"Out": {"cond"}}, nil))

	gradBlock := program.AppendBlock(program.RootBlock())
	gradBlock.SetForwardBlock(step)
	gradBlock.Var(graph.GradVarName("x"))
	gradBlock.AppendOp(graph.NewOpDesc("scale",
		graph.VariableNameMap{"X": {graph.GradVarName("out")}},
		graph.VariableNameMap{"Out": {graph.GradVarName("x")}},
		graph.AttributeMap{"scale": 1.0}))

	scope := graph.NewScope()
	bind := func(name string, data []float32) {
		raw, err := tensor.FromSlice(data, tensor.Shape{len(data)}, tensor.CPU)
		require.NoError(t, err)
		scope.Var(name).MutableTensor().ShareDataWith(raw)
	}
	bind("i", []float32{0})
	bind("limit", []float32{3})
	bind("x", []float32{1, 1})
	bind("out", []float32{0, 0})
	cond, err := tensor.FromSlice([]bool{true}, tensor.Shape{1}, tensor.CPU)
	require.NoError(t, err)
	scope.Var("cond").MutableTensor().ShareDataWith(cond)

	fwdDesc := graph.NewOpDesc(graph.WhileOpType,
		graph.VariableNameMap{graph.WhileSlotX: {"x"}, graph.WhileSlotCondition: {"cond"}},
		graph.VariableNameMap{graph.WhileSlotOut: {"out"}, graph.WhileSlotStepScopes: {"scopes"}},
		graph.AttributeMap{graph.WhileAttrSubBlock: step})

	fwdOp, err := registry.CreateOpFromDesc(fwdDesc)
	require.NoError(t, err)
	require.NoError(t, fwdOp.Run(scope, tensor.CPU))
	assert.Len(t, *scope.FindVar("scopes").StepScopes(), 3)
	assert.Equal(t, []float32{3, 3}, scope.FindVar("out").Tensor().AsFloat32())

	maker, err := registry.GradOpMaker(graph.WhileOpType)
	require.NoError(t, err)
	gradDescs, _, err := maker(fwdDesc, nil, []*graph.BlockDesc{gradBlock})
	require.NoError(t, err)
	require.Len(t, gradDescs, 1)

	bind(graph.GradVarName("out"), []float32{1, 1})
	gradOp, err := registry.CreateOpFromDesc(gradDescs[0])
	require.NoError(t, err)
	require.NoError(t, gradOp.Run(scope, tensor.CPU))

	acc := scope.FindVar(graph.GradVarName("x"))
	require.NotNil(t, acc)
	assert.Equal(t, []float32{3, 3}, acc.Tensor().AsFloat32())
	assert.Empty(t, *scope.FindVar("scopes").StepScopes())
}
