package value

// Obj pairs a base value with an attribute dictionary (§3 Object). Class is
// a character vector of class names consulted by UseMethod dispatch
// (§4.3). Named Obj rather than Object to leave the Tag constant Object as
// the one spelled exactly like the spec's type tag.
type Obj struct {
	Base  Value
	Names *Vector
	Class []string
	Dim   []int
	Attrs map[string]Value
}

func NewObject(base Value, class ...string) Value {
	return FromPtr(Object, &Obj{Base: base, Class: class})
}

func AsObjectPtr(v Value) *Obj {
	o, _ := v.Ptr.(*Obj)
	return o
}

// ClassOf returns the dispatch class vector of v: an explicit Object's
// Class, or a single-element vector naming its implicit type for anything
// else (e.g. "numeric", "character") — UseMethod always has something to
// search on.
func ClassOf(v Value) []string {
	if v.Tag == Object {
		if o := AsObjectPtr(v); o != nil && len(o.Class) > 0 {
			return o.Class
		}
	}
	return []string{implicitClass(v.Type())}
}

func implicitClass(t Tag) string {
	switch t {
	case Integer:
		return "integer"
	case Double:
		return "numeric"
	case Logical:
		return "logical"
	case Character:
		return "character"
	case List:
		return "list"
	case Function:
		return "function"
	default:
		return "default"
	}
}
