package vm

import "fmt"

// Method is anything that can be found in a method table and invoked.
type Method interface {
	Name() string
	Call(ip *Interpreter, self Value, args []Value, block *Block) (Value, error)
}

// ---------------------------------------------------------------------------
// Function: a method written in the interpreted language
// ---------------------------------------------------------------------------

// Function is a compiled method body. BUILD_FUNCTION creates it;
// DEFINE_FUNCTION or ATTACH_FUNCTION binds it.
type Function struct {
	name  string
	Unit  *Unit
	Owner *Class // class it was defined on; nil until bound
}

// NewFunction wraps a compiled unit as a method named name.
func NewFunction(name string, unit *Unit) *Function {
	return &Function{name: name, Unit: unit}
}

func (fn *Function) Name() string { return fn.name }

func (fn *Function) Inspect() string {
	return fmt.Sprintf("#<Function %s>", fn.name)
}

// Call runs the function body in a fresh frame. Arity is strict.
func (fn *Function) Call(ip *Interpreter, self Value, args []Value, block *Block) (Value, error) {
	if len(args) != fn.Unit.Arity {
		return nil, ip.Space.ArgumentError(len(args), fn.Unit.Arity)
	}
	scope := fn.Owner
	if scope == nil {
		scope = ip.Space.ClassOf(self)
	}
	frame := NewFrame(fn.Unit, self, scope, block, nil)
	copy(frame.Locals, args)
	return ip.Interpret(frame)
}

// ---------------------------------------------------------------------------
// Builtin: a host-implemented method
// ---------------------------------------------------------------------------

// BuiltinFunc is the uniform calling convention of host methods.
type BuiltinFunc func(ip *Interpreter, self Value, args []Value, block *Block) (Value, error)

// Builtin is a host method, usually a call shim generated from a ClassDef.
type Builtin struct {
	name string
	fn   BuiltinFunc
}

// NewBuiltin wraps fn as a method named name.
func NewBuiltin(name string, fn BuiltinFunc) *Builtin {
	return &Builtin{name: name, fn: fn}
}

func (b *Builtin) Name() string { return b.name }

func (b *Builtin) Inspect() string {
	return fmt.Sprintf("#<Builtin %s>", b.name)
}

// Call invokes the host function.
func (b *Builtin) Call(ip *Interpreter, self Value, args []Value, block *Block) (Value, error) {
	return b.fn(ip, self, args, block)
}
