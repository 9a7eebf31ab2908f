package graph

import (
	"fmt"
	"sync/atomic"
)

// renameCounter generates collision-free temporary names for Scope.RenameToTemp.
var renameCounter atomic.Int64

// Scope is an ownership-and-lookup context for variables. Lookup walks up the
// parent chain; mutation is always local. Each scope is exclusively owned and
// mutated by the single logical thread driving a loop or trace, so no locks
// are used.
type Scope struct {
	vars   map[string]*Variable
	parent *Scope
	kids   []*Scope
}

// NewScope creates a root scope.
func NewScope() *Scope {
	return &Scope{vars: make(map[string]*Variable)}
}

// NewChildScope creates a child scope whose lookups fall back to this scope.
func (s *Scope) NewChildScope() *Scope {
	child := NewScope()
	child.parent = s
	s.kids = append(s.kids, child)
	return child
}

// Parent returns the parent scope, or nil for a root scope.
func (s *Scope) Parent() *Scope {
	return s.parent
}

// Var returns the local variable with the given name, creating it if it does
// not exist locally. It never consults parent scopes; use FindVar for lookup.
func (s *Scope) Var(name string) *Variable {
	if v, ok := s.vars[name]; ok {
		return v
	}
	v := NewVariable(name)
	s.vars[name] = v
	return v
}

// FindVar looks the variable up in this scope, then up the parent chain.
// Returns nil if the name is not bound anywhere.
func (s *Scope) FindVar(name string) *Variable {
	for cur := s; cur != nil; cur = cur.parent {
		if v, ok := cur.vars[name]; ok {
			return v
		}
	}
	return nil
}

// FindVarLocally looks the variable up in this scope only.
func (s *Scope) FindVarLocally(name string) *Variable {
	return s.vars[name]
}

// LinkVar binds an externally owned variable into this scope under the given
// name, replacing any local binding. The tracer uses this to expose
// caller-owned value handles to a kernel run.
func (s *Scope) LinkVar(name string, v *Variable) {
	s.vars[name] = v
}

// Rename rebinds the local variable oldName to newName.
func (s *Scope) Rename(oldName, newName string) error {
	v, ok := s.vars[oldName]
	if !ok {
		return fmt.Errorf("cannot rename %q: not found in scope", oldName)
	}
	if _, exists := s.vars[newName]; exists {
		return fmt.Errorf("cannot rename %q to %q: target name already bound", oldName, newName)
	}
	delete(s.vars, oldName)
	s.vars[newName] = v
	return nil
}

// RenameToTemp rebinds the local variable oldName to a generated temporary
// name guaranteed not to collide with any existing binding, and returns it.
func (s *Scope) RenameToTemp(oldName string) (string, error) {
	newName := fmt.Sprintf("%s@RENAME@%d", oldName, renameCounter.Add(1))
	if err := s.Rename(oldName, newName); err != nil {
		return "", err
	}
	return newName, nil
}

// LocalVarNames returns the names bound locally in this scope.
func (s *Scope) LocalVarNames() []string {
	names := make([]string, 0, len(s.vars))
	for name := range s.vars {
		names = append(names, name)
	}
	return names
}

// DeleteChildScope destroys a direct child scope, invalidating only the
// variables it owns, never storage shared into it. Destroying a scope that is
// not a child of s is a programming error and panics.
func (s *Scope) DeleteChildScope(child *Scope) {
	for i, kid := range s.kids {
		if kid == child {
			s.kids = append(s.kids[:i], s.kids[i+1:]...)
			child.drop()
			return
		}
	}
	panic("DeleteChildScope: scope is not a child of this scope")
}

// drop releases everything the scope owns, recursively.
func (s *Scope) drop() {
	for _, kid := range s.kids {
		kid.drop()
	}
	s.kids = nil
	s.vars = nil
	s.parent = nil
}
