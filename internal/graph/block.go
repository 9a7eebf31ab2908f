package graph

import "github.com/born-ml/dygraph/internal/tensor"

// VarKind is the declared kind of a variable.
type VarKind int

// Supported variable kinds.
const (
	VarKindTensor VarKind = iota
	VarKindTensorArray
	VarKindStepScopes
	VarKindRaw // placeholder for collaborator-defined kinds
)

// String returns a human-readable kind name.
func (k VarKind) String() string {
	switch k {
	case VarKindTensor:
		return "tensor"
	case VarKindTensorArray:
		return "tensor_array"
	case VarKindStepScopes:
		return "step_scopes"
	case VarKindRaw:
		return "raw"
	default:
		return "unknown"
	}
}

// VarDesc is the static declaration of a variable inside a block.
type VarDesc struct {
	name     string
	kind     VarKind
	dataType tensor.DataType
	shape    tensor.Shape
}

// Name returns the declared variable name.
func (v *VarDesc) Name() string { return v.name }

// Kind returns the declared kind.
func (v *VarDesc) Kind() VarKind { return v.kind }

// SetKind sets the declared kind.
func (v *VarDesc) SetKind(k VarKind) { v.kind = k }

// DataType returns the declared element type.
func (v *VarDesc) DataType() tensor.DataType { return v.dataType }

// SetDataType sets the declared element type.
func (v *VarDesc) SetDataType(dt tensor.DataType) { v.dataType = dt }

// Shape returns the declared shape.
func (v *VarDesc) Shape() tensor.Shape { return v.shape }

// SetShape sets the declared shape.
func (v *VarDesc) SetShape(s tensor.Shape) { v.shape = s.Clone() }

// ProgramDesc owns an ordered set of blocks. Block 0 is the root block.
type ProgramDesc struct {
	blocks []*BlockDesc
}

// NewProgram creates a program with an empty root block.
func NewProgram() *ProgramDesc {
	p := &ProgramDesc{}
	p.blocks = append(p.blocks, &BlockDesc{
		program:   p,
		id:        0,
		parentID:  -1,
		forwardID: -1,
		vars:      make(map[string]*VarDesc),
	})
	return p
}

// Block returns the block with the given index, or nil if out of range.
func (p *ProgramDesc) Block(i int) *BlockDesc {
	if i < 0 || i >= len(p.blocks) {
		return nil
	}
	return p.blocks[i]
}

// RootBlock returns block 0.
func (p *ProgramDesc) RootBlock() *BlockDesc {
	return p.blocks[0]
}

// NumBlocks returns the number of blocks in the program.
func (p *ProgramDesc) NumBlocks() int {
	return len(p.blocks)
}

// AppendBlock creates a new block whose variable lookups fall back to parent.
func (p *ProgramDesc) AppendBlock(parent *BlockDesc) *BlockDesc {
	b := &BlockDesc{
		program:   p,
		id:        len(p.blocks),
		parentID:  parent.id,
		forwardID: -1,
		vars:      make(map[string]*VarDesc),
	}
	p.blocks = append(p.blocks, b)
	return b
}

// BlockDesc is an ordered sequence of operator descriptors plus variable
// declarations. The parent reference enables recursive variable lookup across
// nested control-flow blocks; gradient blocks additionally hold a handle to
// the forward block they differentiate.
type BlockDesc struct {
	program   *ProgramDesc
	id        int
	parentID  int
	forwardID int
	vars      map[string]*VarDesc
	ops       []*OpDesc
}

// ID returns the block's index within its program.
func (b *BlockDesc) ID() int { return b.id }

// Program returns the owning program.
func (b *BlockDesc) Program() *ProgramDesc { return b.program }

// ParentBlock returns the enclosing block, or nil for the root.
func (b *BlockDesc) ParentBlock() *BlockDesc {
	if b.parentID < 0 {
		return nil
	}
	return b.program.Block(b.parentID)
}

// ForwardBlock returns the forward block a gradient block differentiates,
// or nil for non-gradient blocks.
func (b *BlockDesc) ForwardBlock() *BlockDesc {
	if b.forwardID < 0 {
		return nil
	}
	return b.program.Block(b.forwardID)
}

// SetForwardBlock records the forward block this gradient block belongs to.
func (b *BlockDesc) SetForwardBlock(fwd *BlockDesc) {
	b.forwardID = fwd.id
}

// Var returns the local declaration with the given name, creating a tensor
// declaration if none exists.
func (b *BlockDesc) Var(name string) *VarDesc {
	if v, ok := b.vars[name]; ok {
		return v
	}
	v := &VarDesc{name: name, kind: VarKindTensor}
	b.vars[name] = v
	return v
}

// FindVar returns the local declaration, or nil.
func (b *BlockDesc) FindVar(name string) *VarDesc {
	return b.vars[name]
}

// FindVarRecursive walks this block and its ancestors for the declaration.
func (b *BlockDesc) FindVarRecursive(name string) *VarDesc {
	for cur := b; cur != nil; cur = cur.ParentBlock() {
		if v, ok := cur.vars[name]; ok {
			return v
		}
	}
	return nil
}

// FindVarRecursiveOrCreate resolves the declaration anywhere up the chain, or
// declares it locally if unresolved.
func (b *BlockDesc) FindVarRecursiveOrCreate(name string) *VarDesc {
	if v := b.FindVarRecursive(name); v != nil {
		return v
	}
	return b.Var(name)
}

// AllVars returns the local declarations (unordered).
func (b *BlockDesc) AllVars() []*VarDesc {
	vars := make([]*VarDesc, 0, len(b.vars))
	for _, v := range b.vars {
		vars = append(vars, v)
	}
	return vars
}

// AppendOp appends an operator descriptor to the block.
func (b *BlockDesc) AppendOp(d *OpDesc) {
	b.ops = append(b.ops, d)
}

// AllOps returns the block's operator descriptors in program order.
func (b *BlockDesc) AllOps() []*OpDesc {
	return b.ops
}
