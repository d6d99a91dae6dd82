package vm

import (
	"fmt"
	"strconv"
	"strings"
)

// Value is anything that can live on an operand stack, in a local slot, in
// a cell or in a constant pool. Host code may add its own Value types; the
// object space maps those to Object unless told otherwise.
type Value interface {
	Inspect() string
}

// Inspect returns the debug representation of v, tolerating a nil interface.
func Inspect(v Value) string {
	if v == nil {
		return "<nil>"
	}
	return v.Inspect()
}

// ---------------------------------------------------------------------------
// Immediate values
// ---------------------------------------------------------------------------

// NilType is the type of the distinguished nil value.
type NilType struct{}

// Nil is the distinguished "no value" of the language.
var Nil Value = NilType{}

func (NilType) Inspect() string { return "nil" }

// Bool is true or false.
type Bool bool

const (
	True  = Bool(true)
	False = Bool(false)
)

func (b Bool) Inspect() string { return strconv.FormatBool(bool(b)) }

// Int is a fixed-width integer.
type Int int64

func (i Int) Inspect() string { return strconv.FormatInt(int64(i), 10) }

// Float is a double.
type Float float64

func (f Float) Inspect() string {
	s := strconv.FormatFloat(float64(f), 'g', -1, 64)
	if !strings.ContainsAny(s, ".eEnN") {
		s += ".0"
	}
	return s
}

// Symbol is an interned name. Go string equality gives identity.
type Symbol string

func (s Symbol) Inspect() string { return ":" + string(s) }

// IsTruthy reports the language's truthiness: only nil and false are falsy.
func IsTruthy(v Value) bool {
	switch v := v.(type) {
	case nil, NilType:
		return false
	case Bool:
		return bool(v)
	}
	return true
}

// ---------------------------------------------------------------------------
// Heap values
// ---------------------------------------------------------------------------

// String is a mutable string. Literal strings in constant pools are shared,
// so compiled code copies them with COPY_STRING before handing them out.
type String struct {
	S string
}

// NewString wraps s.
func NewString(s string) *String { return &String{S: s} }

func (s *String) Inspect() string { return strconv.Quote(s.S) }

// Copy returns an independent string with the same contents.
func (s *String) Copy() *String { return &String{S: s.S} }

// maxSize bounds the length of strings and arrays built by primitives.
const maxSize = 1 << 30

// Array is an ordered, growable list.
type Array struct {
	Items []Value
}

// NewArray wraps items without copying.
func NewArray(items []Value) *Array { return &Array{Items: items} }

func (a *Array) Inspect() string {
	parts := make([]string, len(a.Items))
	for i, v := range a.Items {
		parts[i] = Inspect(v)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

// Range is start..end or start...end.
type Range struct {
	Start     Value
	End       Value
	Exclusive bool
}

func (r *Range) Inspect() string {
	op := ".."
	if r.Exclusive {
		op = "..."
	}
	return Inspect(r.Start) + op + Inspect(r.End)
}

// Cell is a shared, mutable box for a closure-captured variable.
type Cell struct {
	v Value
}

// NewCell returns a cell holding nil.
func NewCell() *Cell { return &Cell{v: Nil} }

// Get returns the boxed value.
func (c *Cell) Get() Value { return c.v }

// Set replaces the boxed value.
func (c *Cell) Set(v Value) { c.v = v }

func (c *Cell) Inspect() string { return "#<Cell " + Inspect(c.v) + ">" }

// ---------------------------------------------------------------------------
// Instance variables
// ---------------------------------------------------------------------------

// InstanceVarHolder is implemented by values that carry instance variables.
type InstanceVarHolder interface {
	InstanceVar(name string) Value
	SetInstanceVar(name string, v Value)
}

type ivarTable struct {
	ivars map[string]Value
}

// InstanceVar returns the named ivar, or nil when unset.
func (t *ivarTable) InstanceVar(name string) Value {
	if v, ok := t.ivars[name]; ok {
		return v
	}
	return Nil
}

// SetInstanceVar sets the named ivar.
func (t *ivarTable) SetInstanceVar(name string, v Value) {
	if t.ivars == nil {
		t.ivars = make(map[string]Value)
	}
	t.ivars[name] = v
}

// Object is a plain instance of an interpreted or builtin class.
type Object struct {
	ivarTable
	class     *Class
	singleton map[string]Method
}

// NewObject allocates an instance of cls.
func NewObject(cls *Class) *Object { return &Object{class: cls} }

// Class returns the object's class.
func (o *Object) Class() *Class { return o.class }

func (o *Object) Inspect() string {
	return fmt.Sprintf("#<%s>", o.class.Name)
}

// Block is a closure: a code unit bound to the self, scope and cells of the
// frame that built it.
type Block struct {
	Unit  *Unit
	Self  Value
	Scope *Class
	Cells []*Cell
	// Parent is the block of the defining frame, so yield inside the block
	// reaches the enclosing method's block.
	Parent *Block
}

func (b *Block) Inspect() string {
	return fmt.Sprintf("#<Proc %s>", b.Unit.Name)
}
