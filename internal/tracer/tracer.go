package tracer

import (
	"fmt"

	"k8s.io/klog/v2"

	"github.com/born-ml/dygraph/internal/graph"
	"github.com/born-ml/dygraph/internal/tensor"
)

// Tracer executes operators eagerly while building their backward graph
// nodes. It is single-threaded: each Trace call blocks until the kernel
// invocation completes.
type Tracer struct {
	registry *graph.Registry
	dev      tensor.Device
}

// NewTracer creates a tracer dispatching kernels for the given device through
// the registry.
func NewTracer(registry *graph.Registry, dev tensor.Device) *Tracer {
	return &Tracer{registry: registry, dev: dev}
}

// Trace runs one operator immediately and records its backward node.
//
// Shape and var-type inference run against the enclosing block first,
// mutating its declarations. The kernel executes against an ephemeral scope
// holding only the invocation's variables. Unless stopGradient is set, the
// gradient descriptor is derived and each of its variable names is resolved:
// forward names carry through verbatim, gradient names bind to the matching
// handle's gradient storage, zero-initialized on first use with the forward
// value's shape and dtype.
func (t *Tracer) Trace(op *OpBase, inputs, outputs VarBaseMap, block *graph.BlockDesc, stopGradient bool) error {
	desc := op.desc
	if desc == nil {
		return fmt.Errorf("trace: operator has no descriptor; use TraceLayer for custom layers")
	}
	klog.V(3).Infof("trace %s", desc.Type())

	if err := t.registry.InferShape(desc, block); err != nil {
		return fmt.Errorf("trace %s: %w", desc.Type(), err)
	}
	if err := t.registry.InferVarType(desc, block); err != nil {
		return fmt.Errorf("trace %s: %w", desc.Type(), err)
	}

	runtimeOp, err := t.registry.CreateOpFromDesc(desc)
	if err != nil {
		return fmt.Errorf("trace %s: %w", desc.Type(), err)
	}

	vars := make(map[string]*VarBase)
	for slot, vbs := range inputs {
		op.inputVars[slot] = vbs
		for _, vb := range vbs {
			if vb == nil || vb.Value() == nil {
				return fmt.Errorf("trace %s: nil input in slot %q", desc.Type(), slot)
			}
			vars[vb.Name()] = vb
			if pre := vb.PreOp(); pre != nil {
				op.preOps[slot] = append(op.preOps[slot], pre)
				op.preOpsOutIdx[slot] = append(op.preOpsOutIdx[slot], vb.PreOpOutIdx())
			} else {
				op.preOps[slot] = append(op.preOps[slot], nil)
				op.preOpsOutIdx[slot] = append(op.preOpsOutIdx[slot], -1)
			}
		}
	}

	for slot, vbs := range outputs {
		op.outputVars[slot] = vbs
		for i, vb := range vbs {
			if vb == nil || vb.Value() == nil {
				return fmt.Errorf("trace %s: nil output in slot %q", desc.Type(), slot)
			}
			vars[vb.Name()] = vb
			vb.trackPreOp(op, slot, i, stopGradient)

			decl := block.FindVarRecursive(vb.Name())
			if decl == nil {
				return fmt.Errorf("trace %s: output %q has no variable-type declaration", desc.Type(), vb.Name())
			}
			switch decl.Kind() {
			case graph.VarKindTensor:
				vb.Value().MutableTensor()
			case graph.VarKindTensorArray:
				vb.Value().MutableTensorArray()
			default:
				klog.Errorf("trace %s: output %q has unsupported kind %s, leaving uninitialized",
					desc.Type(), vb.Name(), decl.Kind())
			}
		}
	}

	sc := graph.NewScope()
	for name, vb := range vars {
		sc.LinkVar(name, vb.Value())
	}
	if err := runtimeOp.Run(sc, t.dev); err != nil {
		return fmt.Errorf("trace %s: %w", desc.Type(), err)
	}

	if !stopGradient {
		if err := t.buildGradNode(op, desc, block, vars); err != nil {
			return err
		}
	}
	op.block = block
	return nil
}

// buildGradNode derives the gradient descriptor for one traced invocation and
// resolves its variable bindings against the invocation's handles.
func (t *Tracer) buildGradNode(op *OpBase, desc *graph.OpDesc, block *graph.BlockDesc, vars map[string]*VarBase) error {
	maker, err := t.registry.GradOpMaker(desc.Type())
	if err != nil {
		return fmt.Errorf("trace %s: %w", desc.Type(), err)
	}
	gradDescs, gradToVar, err := maker(desc, nil, []*graph.BlockDesc{block})
	if err != nil {
		return fmt.Errorf("trace %s: %w", desc.Type(), err)
	}
	if len(gradDescs) != 1 {
		return fmt.Errorf("trace %s: gradient maker produced %d descriptors, want exactly 1",
			desc.Type(), len(gradDescs))
	}
	gradDesc := gradDescs[0]
	op.gradDesc = gradDesc

	for _, slot := range gradDesc.InputNames() {
		for _, name := range gradDesc.Input(slot) {
			block.FindVarRecursiveOrCreate(name)
			fwdName, isGrad := gradToVar[name]
			if !isGrad {
				// Forward input or output, carried through unchanged.
				vb, ok := vars[name]
				if !ok {
					return fmt.Errorf("trace %s: gradient input %q is not a traced variable", desc.Type(), name)
				}
				op.gradInputVars[slot] = append(op.gradInputVars[slot], vb.Value())
				continue
			}
			vb, ok := vars[fwdName]
			if !ok {
				return fmt.Errorf("trace %s: gradient input %q refers to unknown variable %q",
					desc.Type(), name, fwdName)
			}
			grad := vb.MutableGrad()
			if err := t.initGradStorage(vb, grad); err != nil {
				return fmt.Errorf("trace %s: %w", desc.Type(), err)
			}
			op.gradInputVars[slot] = append(op.gradInputVars[slot], grad.Value())
		}
	}

	for _, slot := range gradDesc.OutputNames() {
		for _, name := range gradDesc.Output(slot) {
			if name == graph.EmptyVarName {
				continue
			}
			block.FindVarRecursiveOrCreate(name)
			fwdName, isGrad := gradToVar[name]
			if !isGrad {
				return fmt.Errorf("trace %s: gradient output %q maps to no forward variable", desc.Type(), name)
			}
			vb, ok := vars[fwdName]
			if !ok {
				return fmt.Errorf("trace %s: gradient output %q refers to unknown variable %q",
					desc.Type(), name, fwdName)
			}
			grad := vb.MutableGrad()
			if err := t.initGradStorage(vb, grad); err != nil {
				return fmt.Errorf("trace %s: %w", desc.Type(), err)
			}
			op.gradOutputVars[slot] = append(op.gradOutputVars[slot], grad.Value())
		}
	}
	return nil
}

// initGradStorage zero-initializes a gradient handle's tensor on first use
// with the forward value's shape and dtype.
func (t *Tracer) initGradStorage(fwd, grad *VarBase) error {
	gt := grad.Value().MutableTensor()
	if gt.Initialized() {
		return nil
	}
	ft := fwd.Value().Tensor()
	if err := gt.Mutable(ft.Shape(), ft.DType(), t.dev); err != nil {
		return fmt.Errorf("init gradient of %q: %w", fwd.Name(), err)
	}
	return nil
}

// TraceLayer runs a custom layer's forward callable immediately and records
// the same predecessor linkage and gradient bookkeeping as Trace, with slot
// names fixed to the canonical input/output pair. The backward callable is
// stored on the record for later traversal; its inputs are the forward
// inputs, forward outputs and output gradients in that order, its outputs the
// input gradients.
func (t *Tracer) TraceLayer(op *OpBase, inputs []*VarBase, stopGradient bool) ([]*VarBase, error) {
	if op.forward == nil {
		return nil, fmt.Errorf("trace layer: no forward callable")
	}

	inVars := make([]*graph.Variable, len(inputs))
	for i, vb := range inputs {
		if vb == nil || vb.Value() == nil {
			return nil, fmt.Errorf("trace layer: nil input %d", i)
		}
		inVars[i] = vb.Value()
		if pre := vb.PreOp(); pre != nil {
			op.preOps[LayerInput] = append(op.preOps[LayerInput], pre)
			op.preOpsOutIdx[LayerInput] = append(op.preOpsOutIdx[LayerInput], vb.PreOpOutIdx())
		} else {
			op.preOps[LayerInput] = append(op.preOps[LayerInput], nil)
			op.preOpsOutIdx[LayerInput] = append(op.preOpsOutIdx[LayerInput], -1)
		}
	}
	op.inputVars[LayerInput] = inputs

	outVars, err := op.forward(inVars)
	if err != nil {
		return nil, fmt.Errorf("trace layer: %w", err)
	}
	outputs := make([]*VarBase, len(outVars))
	for i, v := range outVars {
		vb := &VarBase{name: v.Name(), value: v, preOpOutIdx: -1}
		vb.trackPreOp(op, LayerOutput, i, stopGradient)
		outputs[i] = vb
	}
	op.outputVars[LayerOutput] = outputs

	if !stopGradient {
		gradInSlot := graph.GradVarName(LayerInput)
		gradOutSlot := graph.GradVarName(LayerOutput)
		for _, vb := range inputs {
			op.gradInputVars[gradInSlot] = append(op.gradInputVars[gradInSlot], vb.Value())
		}
		for _, vb := range outputs {
			op.gradInputVars[gradInSlot] = append(op.gradInputVars[gradInSlot], vb.Value())
		}
		for _, vb := range outputs {
			grad := vb.MutableGrad()
			if err := t.initGradStorage(vb, grad); err != nil {
				return nil, fmt.Errorf("trace layer: %w", err)
			}
			op.gradInputVars[gradInSlot] = append(op.gradInputVars[gradInSlot], grad.Value())
		}
		for _, vb := range inputs {
			grad := vb.MutableGrad()
			if err := t.initGradStorage(vb, grad); err != nil {
				return nil, fmt.Errorf("trace layer: %w", err)
			}
			op.gradOutputVars[gradOutSlot] = append(op.gradOutputVars[gradOutSlot], grad.Value())
		}
	}
	return outputs, nil
}
