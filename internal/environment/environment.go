// Package environment implements the variable-scope hash table (§4.2): a
// linear-probing map from interned name to Value, plus the inline-cache
// token machinery the interpreter embeds in bytecode.
package environment

import (
	"vecjit/internal/errors"
	"vecjit/internal/value"
)

const loadFactor = 0.5

type slot struct {
	name  string
	used  bool
	value value.Value
}

// Environment is a mutable name->Value mapping with a lexical parent (used
// for name lookup) and a dynamic parent (call-stack introspection), plus
// the "..." varargs list and the revision counter that backs inline caches
// (§4.2).
type Environment struct {
	slots []slot
	count int

	Lexical *Environment
	Dynamic *Environment

	Dots []DotArg

	// Revision increments on every delete and on every rehash; a Pointer
	// captured before either event is stale and must fall back to lookup.
	Revision uint64
}

// DotArg is one element of a "..." capture: optional name plus value.
type DotArg struct {
	Name  string
	Value value.Value
}

// New creates an empty environment with the given lexical parent.
func New(lexical *Environment) *Environment {
	return &Environment{slots: make([]slot, 8), Lexical: lexical}
}

func (e *Environment) hash(name string) int {
	var h uint64 = 14695981039346656037
	for i := 0; i < len(name); i++ {
		h ^= uint64(name[i])
		h *= 1099511628211
	}
	return int(h % uint64(len(e.slots)))
}

func (e *Environment) probe(name string) (idx int, found bool) {
	n := len(e.slots)
	i := e.hash(name)
	for k := 0; k < n; k++ {
		j := (i + k) % n
		if !e.slots[j].used {
			return j, false
		}
		if e.slots[j].name == name {
			return j, true
		}
	}
	return -1, false
}

func (e *Environment) rehash() {
	old := e.slots
	e.slots = make([]slot, len(old)*2)
	for _, s := range old {
		if s.used {
			j, _ := e.probe(s.name)
			e.slots[j] = s
		}
	}
	// A rehash moves every slot's index; outstanding Pointer tokens must
	// observe a revision bump the same as a delete (§4.2 Protocol).
	e.Revision++
}

// Assign binds name to v in this environment, rehashing at 50% load.
func (e *Environment) Assign(name string, v value.Value) {
	if float64(e.count+1) > loadFactor*float64(len(e.slots)) {
		e.rehash()
	}
	idx, found := e.probe(name)
	e.slots[idx] = slot{name: name, used: true, value: v}
	if !found {
		e.count++
	}
}

// Get returns the value bound to name in this environment only, and a
// distinct Nil sentinel (ok=false) if unbound — it never walks the lexical
// chain (§4.2 Failure).
func (e *Environment) Get(name string) (value.Value, bool) {
	idx, found := e.probe(name)
	if !found {
		return value.NullValue(), false
	}
	return e.slots[idx].value, true
}

// FindInChain walks lexical parents until name is bound, escalating to
// NameNotFound if no parent has it (§4.2 Failure).
func (e *Environment) FindInChain(name string) (value.Value, error) {
	for env := e; env != nil; env = env.Lexical {
		if v, ok := env.Get(name); ok {
			return v, nil
		}
	}
	return value.Value{}, errors.NewNameNotFound(name)
}

// Delete removes name from this environment and bumps the revision,
// invalidating any outstanding Pointer into it (§4.2 Protocol).
func (e *Environment) Delete(name string) {
	idx, found := e.probe(name)
	if !found {
		return
	}
	e.slots[idx] = slot{}
	e.count--
	e.Revision++
	// Linear probing requires closing the hole: re-insert every entry in
	// the probe cluster that follows, otherwise a later lookup could stop
	// early at the now-empty slot.
	n := len(e.slots)
	j := (idx + 1) % n
	for e.slots[j].used {
		s := e.slots[j]
		e.slots[j] = slot{}
		e.count--
		k, _ := e.probe(s.name)
		e.slots[k] = s
		e.count++
		j = (j + 1) % n
	}
}
