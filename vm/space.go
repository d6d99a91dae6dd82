package vm

import (
	"fmt"
	"io"
	"os"
	"runtime"
	"sync/atomic"

	"github.com/tliron/commonlog"
)

// CompileFunc turns interpreted-language source into a unit. The engine
// needs one to run app methods; the asm package provides the default.
type CompileFunc func(name, source string) (*Unit, error)

// Options configures a Space.
type Options struct {
	// MaxDepth bounds frame nesting; exceeding it raises SystemStackError.
	// Zero means DefaultMaxDepth.
	MaxDepth int
	// HotLoopThreshold enables the backward-branch profiler when non-zero.
	HotLoopThreshold uint64
	// Stdout receives Kernel#puts output. Nil means os.Stdout.
	Stdout io.Writer
	// Compile is the compiler for app-method sources.
	Compile CompileFunc
}

// DefaultMaxDepth is the frame nesting limit when Options leaves it unset.
const DefaultMaxDepth = 2000

// Space is the object space: class objects, constants, the top-level self
// and the entry points that run units. A Space is driven by one goroutine
// at a time; only its ClassCache tolerates concurrent first access.
type Space struct {
	Classes  *ClassCache
	Profiler *Profiler
	Stdout   io.Writer

	opts    Options
	compile CompileFunc
	defs    map[string]interface{} // builtin *ClassDef / *ModuleDef by name
	object  atomic.Pointer[Class]
	main    *Object
	halted  bool
	log     commonlog.Logger
}

// NewSpace creates an object space with the builtin class definitions
// registered. Builtin classes are materialized lazily on first use.
func NewSpace(opts Options) *Space {
	if opts.MaxDepth == 0 {
		opts.MaxDepth = DefaultMaxDepth
	}
	s := &Space{
		Stdout:  opts.Stdout,
		opts:    opts,
		compile: opts.Compile,
		defs:    make(map[string]interface{}),
		log:     commonlog.GetLogger("garnet.vm"),
	}
	if s.Stdout == nil {
		s.Stdout = os.Stdout
	}
	s.Classes = newClassCache(s)
	if opts.HotLoopThreshold > 0 {
		s.Profiler = NewProfiler(opts.HotLoopThreshold)
	}
	for _, def := range builtinClassDefs {
		s.Register(def)
	}
	for _, def := range builtinModuleDefs {
		s.Register(def)
	}
	return s
}

// UseCompiler installs the compiler used for app-method sources.
func (s *Space) UseCompiler(fn CompileFunc) {
	s.compile = fn
}

// Register makes a *ClassDef or *ModuleDef resolvable as a top-level
// constant. The class is built on first lookup.
func (s *Space) Register(def interface{}) {
	switch d := def.(type) {
	case *ClassDef:
		s.defs[d.Name] = d
	case *ModuleDef:
		s.defs[d.Name] = d
	default:
		panic(internalErrorf("cannot register %T", def))
	}
}

// NewInterpreter returns an execution context bound to this space.
func (s *Space) NewInterpreter() *Interpreter {
	ip := &Interpreter{Space: s}
	if s.Profiler != nil {
		ip.OnBackEdge = s.Profiler.RecordBackEdge
	}
	return ip
}

// ---------------------------------------------------------------------------
// Entry points
// ---------------------------------------------------------------------------

// Run executes a top-level unit with the main object as self and Object as
// scope. The unit is validated first; an invalid one is rejected without
// halting. Run is the boundary for fatal interpreter errors: one halts the
// space and is returned wrapped in ErrInternal. Go runtime panics raised
// while interpreting count as fatal interpreter errors.
func (s *Space) Run(unit *Unit) (result Value, err error) {
	if s.halted {
		return nil, ErrHalted
	}
	if err := unit.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInternal, err)
	}
	defer func() {
		if r := recover(); r != nil {
			var msg string
			switch r := r.(type) {
			case *InternalError:
				msg = r.Msg
			case runtime.Error:
				msg = r.Error()
			default:
				panic(r)
			}
			s.halted = true
			s.log.Warningf("halting after internal error in %s: %s", unit.Name, msg)
			result, err = nil, fmt.Errorf("%w: %s", ErrInternal, msg)
		}
	}()

	frame := NewFrame(unit, s.Main(), s.ObjectClass(), nil, nil)
	result, err = s.NewInterpreter().Interpret(frame)
	if err != nil {
		s.log.Debugf("%s raised %s", unit.Name, err)
	}
	return result, err
}

// Halted reports whether a fatal error stopped the space.
func (s *Space) Halted() bool {
	return s.halted
}

// executeSource compiles source and runs it with cls as self and scope.
// App methods are part of a registration, so any failure is fatal.
func (s *Space) executeSource(name, source string, cls *Class) {
	if s.compile == nil {
		panic(internalErrorf("no compiler installed for app method of %s", name))
	}
	unit, err := s.compile(name, source)
	if err != nil {
		panic(internalErrorf("compiling app method of %s: %v", name, err))
	}
	frame := NewFrame(unit, cls, cls, nil, nil)
	if _, err := s.NewInterpreter().Interpret(frame); err != nil {
		panic(internalErrorf("running app method of %s: %v", name, err))
	}
	s.log.Debugf("ran app method %s on %s", unit.Name, cls.Name)
}

// ---------------------------------------------------------------------------
// Object model queries
// ---------------------------------------------------------------------------

// Main returns the top-level self.
func (s *Space) Main() *Object {
	if s.main == nil {
		s.main = NewObject(s.ObjectClass())
	}
	return s.main
}

// ObjectClass returns Object. It is available as soon as Object's build
// has created it, before Object's app methods run.
func (s *Space) ObjectClass() *Class {
	if cls := s.object.Load(); cls != nil {
		return cls
	}
	return s.Classes.Get(ObjectDef)
}

// Classed is implemented by values that know their own class.
type Classed interface {
	Class() *Class
}

// ClassOf returns the class of any value.
func (s *Space) ClassOf(v Value) *Class {
	switch v := v.(type) {
	case nil, NilType:
		return s.Classes.Get(NilClassDef)
	case Bool:
		if v {
			return s.Classes.Get(TrueClassDef)
		}
		return s.Classes.Get(FalseClassDef)
	case Int:
		return s.Classes.Get(IntegerDef)
	case Float:
		return s.Classes.Get(FloatDef)
	case Symbol:
		return s.Classes.Get(SymbolDef)
	case *String:
		return s.Classes.Get(StringDef)
	case *Array:
		return s.Classes.Get(ArrayDef)
	case *Range:
		return s.Classes.Get(RangeDef)
	case *Block:
		return s.Classes.Get(ProcDef)
	case *Class:
		if v.IsModule {
			return s.Classes.Get(ModuleClassDef)
		}
		return s.Classes.Get(ClassClassDef)
	case Classed:
		return v.Class()
	}
	return s.ObjectClass()
}

// IsKindOf reports whether v is an instance of cls or a subclass.
func (s *Space) IsKindOf(v Value, cls *Class) bool {
	return s.ClassOf(v).IsSubclassOf(cls)
}

// FindMethod resolves name for recv: object singletons, then class-side
// methods for class receivers, then the class's instance methods.
func (s *Space) FindMethod(recv Value, name string) Method {
	switch r := recv.(type) {
	case *Object:
		if m, ok := r.singleton[name]; ok {
			return m
		}
	case *Class:
		if m := r.LookupSingleton(name); m != nil {
			return m
		}
	}
	return s.ClassOf(recv).LookupMethod(name)
}

// RespondTo reports whether recv has a method called name.
func (s *Space) RespondTo(recv Value, name string) bool {
	return s.FindMethod(recv, name) != nil
}

// ---------------------------------------------------------------------------
// Constants
// ---------------------------------------------------------------------------

// FindConst resolves name from scope: the scope's superclass chain, then
// Object, then the registered builtin definitions.
func (s *Space) FindConst(scope *Class, name string) (Value, error) {
	if scope != nil {
		if v, ok := scope.findConst(name); ok {
			return v, nil
		}
	}
	object := s.ObjectClass()
	if v, ok := object.Const(name); ok {
		return v, nil
	}
	switch def := s.defs[name].(type) {
	case *ClassDef:
		return s.Classes.Get(def), nil
	case *ModuleDef:
		return s.Classes.Module(def), nil
	}
	return nil, s.Errorf(NameErrorDef, "uninitialized constant %s", name)
}

// SetConst defines name on scope.
func (s *Space) SetConst(scope *Class, name string, v Value) {
	scope.SetConst(name, v)
	if cls, ok := v.(*Class); ok && cls.Name == "" {
		cls.Name = name
	}
}

// ---------------------------------------------------------------------------
// Conversions
// ---------------------------------------------------------------------------

// SymbolName extracts a name from a Symbol or String.
func SymbolName(v Value) (string, bool) {
	switch v := v.(type) {
	case Symbol:
		return string(v), true
	case *String:
		return v.S, true
	}
	return "", false
}

// ListView returns the items of an Array.
func (s *Space) ListView(v Value) ([]Value, error) {
	arr, ok := v.(*Array)
	if !ok {
		return nil, s.TypeError("no implicit conversion of %s into Array", s.ClassOf(v).Name)
	}
	return arr.Items, nil
}
