package vm

import (
	"fmt"
	"io"
)

// Builtin class and module definitions. Each is materialized lazily by the
// ClassCache the first time a value of the class is seen or its constant is
// looked up.
var (
	ObjectDef      = NewClassDef("Object", nil)
	ModuleClassDef = NewClassDef("Module", ObjectDef)
	ClassClassDef  = NewClassDef("Class", ModuleClassDef)
	NilClassDef    = NewClassDef("NilClass", ObjectDef)
	TrueClassDef   = NewClassDef("TrueClass", ObjectDef)
	FalseClassDef  = NewClassDef("FalseClass", ObjectDef)

	KernelDef = NewModuleDef("Kernel")
)

var builtinClassDefs = []*ClassDef{
	ObjectDef, ModuleClassDef, ClassClassDef, NilClassDef, TrueClassDef, FalseClassDef,
	IntegerDef, FloatDef, StringDef, SymbolDef, ArrayDef, RangeDef, ProcDef,
	ExceptionDef, StandardErrorDef, RuntimeErrorDef, TypeErrorDef, ArgumentErrorDef,
	NameErrorDef, NoMethodErrorDef, ZeroDivisionErrorDef, IndexErrorDef,
	StopIterationDef, RangeErrorDef, LocalJumpErrorDef, SystemStackErrorDef,
}

var builtinModuleDefs = []*ModuleDef{KernelDef}

// loopSource defines Kernel#loop: yield forever, ending quietly on
// StopIteration.
const loopSource = `
	LOAD_SCOPE
	LOAD_CONST :loop
	LOAD_CONST :loop
	LOAD_CONST @loop
	BUILD_FUNCTION
	DEFINE_FUNCTION
	RETURN

.code loop
	SETUP_EXCEPT stop
again:
	YIELD 0
	DISCARD_TOP
	JUMP again
stop:
	LOAD_SCOPE
	LOAD_CONSTANT :StopIteration
	COMPARE_EXC
	JUMP_IF_FALSE reraise
	DISCARD_TOP
	DISCARD_TOP
	LOAD_CONST $nil
	RETURN
reraise:
	END_FINALLY
	UNREACHABLE
.end
`

func init() {
	KernelDef.Function("puts", kernelPuts, P("ip", AsInterp), P("args", AsArgs))
	KernelDef.Function("print", kernelPrint, P("ip", AsInterp), P("args", AsArgs))
	KernelDef.Function("raise", kernelRaise, P("ip", AsInterp), P("exception", AsValue), Opt("message", AsValue))
	KernelDef.Method("class", func(s *Space, self Value) Value { return s.ClassOf(self) },
		P("space", AsSpace), P("self", AsSelf))
	KernelDef.Method("inspect", func(self Value) Value { return NewString(Inspect(self)) },
		P("self", AsSelf))
	KernelDef.Method("to_s", func(self Value) Value { return NewString(Inspect(self)) },
		P("self", AsSelf))
	KernelDef.Method("==", func(self, other Value) Value { return Bool(self == other) },
		P("self", AsSelf), P("other", AsValue))
	KernelDef.Method("!", func(self Value) Value { return Bool(!IsTruthy(self)) },
		P("self", AsSelf))
	KernelDef.Method("nil?", func(Value) Value { return False }, P("self", AsSelf))
	KernelDef.Method("respond_to?", func(s *Space, self Value, name Symbol) Value {
		return Bool(s.RespondTo(self, string(name)))
	}, P("space", AsSpace), P("self", AsSelf), P("name", AsSymbol))
	KernelDef.Method("is_a?", func(s *Space, self, cls Value) (Value, error) {
		c, ok := cls.(*Class)
		if !ok {
			return nil, s.TypeError("class or module required")
		}
		return Bool(s.IsKindOf(self, c)), nil
	}, P("space", AsSpace), P("self", AsSelf), P("class", AsValue))
	KernelDef.Method("send", kernelSend, P("ip", AsInterp), P("self", AsSelf), P("args", AsArgs), P("block", AsBlock))
	KernelDef.Function("proc", kernelProc, P("ip", AsInterp), P("block", AsBlock))
	KernelDef.AppMethod(loopSource)

	ObjectDef.Include(KernelDef)
	ObjectDef.Method("initialize", func(Value, []Value) Value { return Nil }, P("self", AsSelf), P("args", AsArgs))
	ObjectDef.SingletonMethod("allocate", func(cls *Class) Value { return NewObject(cls) }, P("self", AsSelf))

	ModuleClassDef.Method("name", func(self *Class) Value { return NewString(self.Name) }, P("self", AsSelf))
	ModuleClassDef.Method("to_s", func(self *Class) Value { return NewString(self.Name) }, P("self", AsSelf))
	ModuleClassDef.Method("===", func(s *Space, self *Class, v Value) Value {
		return Bool(s.IsKindOf(v, self))
	}, P("space", AsSpace), P("self", AsSelf), P("value", AsValue))
	ModuleClassDef.Method("instance_methods", func(self *Class) Value {
		names := self.MethodNames()
		items := make([]Value, len(names))
		for i, n := range names {
			items[i] = Symbol(n)
		}
		return NewArray(items)
	}, P("self", AsSelf))
	ModuleClassDef.Method("const_get", func(s *Space, self *Class, name Symbol) (Value, error) {
		return s.FindConst(self, string(name))
	}, P("space", AsSpace), P("self", AsSelf), P("name", AsSymbol))

	ClassClassDef.Method("new", classNew, P("ip", AsInterp), P("self", AsSelf), P("args", AsArgs), P("block", AsBlock))
	ClassClassDef.Method("superclass", func(self *Class) Value {
		if self.Superclass == nil {
			return Nil
		}
		return self.Superclass
	}, P("self", AsSelf))

	NilClassDef.Method("to_s", func(Value) Value { return NewString("") }, P("self", AsSelf))
	NilClassDef.Method("to_a", func(Value) Value { return NewArray([]Value{}) }, P("self", AsSelf))
	NilClassDef.Method("nil?", func(Value) Value { return True }, P("self", AsSelf))

	for _, def := range []*ClassDef{TrueClassDef, FalseClassDef} {
		def.Method("to_s", func(self Bool) Value { return NewString(self.Inspect()) }, P("self", AsSelf))
		def.Method("&", func(self Bool, other Value) Value { return Bool(bool(self) && IsTruthy(other)) },
			P("self", AsSelf), P("other", AsValue))
		def.Method("|", func(self Bool, other Value) Value { return Bool(bool(self) || IsTruthy(other)) },
			P("self", AsSelf), P("other", AsValue))
	}
}

// ---------------------------------------------------------------------------
// Kernel
// ---------------------------------------------------------------------------

// toS sends to_s and unwraps the resulting string.
func (ip *Interpreter) toS(v Value) (string, error) {
	if s, ok := v.(*String); ok {
		return s.S, nil
	}
	res, err := ip.Send(v, "to_s", nil, nil)
	if err != nil {
		return "", err
	}
	s, ok := res.(*String)
	if !ok {
		return "", ip.Space.TypeError("to_s of %s returned %s", ip.Space.ClassOf(v).Name, ip.Space.ClassOf(res).Name)
	}
	return s.S, nil
}

func writeLines(ip *Interpreter, w io.Writer, v Value) error {
	switch v := v.(type) {
	case NilType:
		_, err := fmt.Fprintln(w, "nil")
		return err
	case *Array:
		for _, item := range v.Items {
			if err := writeLines(ip, w, item); err != nil {
				return err
			}
		}
		return nil
	}
	s, err := ip.toS(v)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, s)
	return err
}

func kernelPuts(ip *Interpreter, args []Value) (Value, error) {
	w := ip.Space.Stdout
	if len(args) == 0 {
		_, err := fmt.Fprintln(w)
		return Nil, err
	}
	for _, arg := range args {
		if err := writeLines(ip, w, arg); err != nil {
			return nil, err
		}
	}
	return Nil, nil
}

func kernelPrint(ip *Interpreter, args []Value) (Value, error) {
	for _, arg := range args {
		s, err := ip.toS(arg)
		if err != nil {
			return nil, err
		}
		if _, err := io.WriteString(ip.Space.Stdout, s); err != nil {
			return nil, err
		}
	}
	return Nil, nil
}

// kernelRaise raises a string as RuntimeError, an exception as itself, or
// instantiates an exception class with an optional message.
func kernelRaise(ip *Interpreter, what, message Value) (Value, error) {
	s := ip.Space
	switch w := what.(type) {
	case *String:
		return nil, s.Errorf(RuntimeErrorDef, "%s", w.S)
	case *Exception:
		if msg, ok := message.(*String); ok {
			w.Message = msg.S
		}
		return nil, &Error{Value: w}
	case *Class:
		var args []Value
		if _, isNil := message.(NilType); !isNil {
			args = []Value{message}
		}
		obj, err := ip.Send(w, "new", args, nil)
		if err != nil {
			return nil, err
		}
		if exc, ok := obj.(*Exception); ok {
			return nil, &Error{Value: exc}
		}
	}
	return nil, s.TypeError("exception class/object expected")
}

func kernelSend(ip *Interpreter, self Value, args []Value, block *Block) (Value, error) {
	if len(args) == 0 {
		return nil, ip.Space.Errorf(ArgumentErrorDef, "no method name given")
	}
	name, ok := SymbolName(args[0])
	if !ok {
		return nil, ip.Space.TypeError("%s is not a symbol", Inspect(args[0]))
	}
	return ip.Send(self, name, args[1:], block)
}

func kernelProc(ip *Interpreter, block *Block) (Value, error) {
	if block == nil {
		return nil, ip.Space.Errorf(ArgumentErrorDef, "tried to create Proc object without a block")
	}
	return block, nil
}

// classNew allocates through the inherited allocate singleton, then sends
// initialize with the original arguments and block.
func classNew(ip *Interpreter, cls *Class, args []Value, block *Block) (Value, error) {
	if cls.IsModule {
		return nil, ip.Space.Errorf(NoMethodErrorDef, "undefined method `new' for module %s", cls.Name)
	}
	obj, err := ip.Send(cls, "allocate", nil, nil)
	if err != nil {
		return nil, err
	}
	if _, err := ip.Send(obj, "initialize", args, block); err != nil {
		return nil, err
	}
	return obj, nil
}
