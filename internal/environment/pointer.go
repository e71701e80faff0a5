package environment

import "vecjit/internal/value"

// Pointer is the inline-cache token: (env, name, revision, index). If the
// environment's revision still matches, get/put bypass hashing and go
// straight to Index; otherwise the caller falls back to hashed lookup and
// rewrites the token in place (§4.2 Protocol, §8 invariant 3).
type Pointer struct {
	Env      *Environment
	Name     string
	Revision uint64
	Index    int
}

// MakePointer builds a Pointer for name, which must already be bound
// (precondition, §4.2 Operations).
func MakePointer(e *Environment, name string) Pointer {
	idx, found := e.probe(name)
	if !found {
		panic("environment: MakePointer precondition violated: " + name + " unbound")
	}
	return Pointer{Env: e, Name: name, Revision: e.Revision, Index: idx}
}

// GetByPointer reads through p, refreshing it in place on a stale
// revision.
func GetByPointer(p *Pointer) value.Value {
	if p.Env.Revision == p.Revision {
		return p.Env.slots[p.Index].value
	}
	v, ok := p.Env.Get(p.Name)
	if ok {
		idx, _ := p.Env.probe(p.Name)
		p.Index = idx
		p.Revision = p.Env.Revision
	}
	return v
}

// AssignByPointer writes through p, refreshing it in place on a stale
// revision.
func AssignByPointer(p *Pointer, v value.Value) {
	if p.Env.Revision == p.Revision {
		p.Env.slots[p.Index].value = v
		return
	}
	p.Env.Assign(p.Name, v)
	idx, _ := p.Env.probe(p.Name)
	p.Index = idx
	p.Revision = p.Env.Revision
}
