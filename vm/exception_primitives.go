package vm

// ---------------------------------------------------------------------------
// Exception hierarchy
// ---------------------------------------------------------------------------

var (
	ExceptionDef         = NewClassDef("Exception", ObjectDef)
	StandardErrorDef     = NewClassDef("StandardError", ExceptionDef)
	RuntimeErrorDef      = NewClassDef("RuntimeError", StandardErrorDef)
	TypeErrorDef         = NewClassDef("TypeError", StandardErrorDef)
	ArgumentErrorDef     = NewClassDef("ArgumentError", StandardErrorDef)
	NameErrorDef         = NewClassDef("NameError", StandardErrorDef)
	NoMethodErrorDef     = NewClassDef("NoMethodError", NameErrorDef)
	ZeroDivisionErrorDef = NewClassDef("ZeroDivisionError", StandardErrorDef)
	IndexErrorDef        = NewClassDef("IndexError", StandardErrorDef)
	StopIterationDef     = NewClassDef("StopIteration", IndexErrorDef)
	RangeErrorDef        = NewClassDef("RangeError", StandardErrorDef)
	LocalJumpErrorDef    = NewClassDef("LocalJumpError", StandardErrorDef)
	SystemStackErrorDef  = NewClassDef("SystemStackError", ExceptionDef)
)

func init() {
	self := P("self", AsSelf)

	ExceptionDef.SingletonMethod("allocate", func(cls *Class) Value { return &Exception{class: cls} }, self)
	ExceptionDef.Method("initialize", func(s *Space, e *Exception, msg Value) (Value, error) {
		switch m := msg.(type) {
		case NilType:
		case *String:
			e.Message = m.S
		default:
			return nil, s.TypeError("exception message must be a String, not %s", s.ClassOf(msg).Name)
		}
		return Nil, nil
	}, P("space", AsSpace), self, Opt("message", AsValue))
	ExceptionDef.Method("message", exceptionMessage, self)
	ExceptionDef.Method("to_s", exceptionMessage, self)
	ExceptionDef.Method("backtrace", func(e *Exception) Value {
		if len(e.Traceback) == 0 {
			return Nil
		}
		pcs := make([]Value, len(e.Traceback))
		for i, pc := range e.Traceback {
			pcs[i] = Int(pc)
		}
		return NewArray(pcs)
	}, self)
}

// exceptionMessage falls back to the class name when no message was given.
func exceptionMessage(e *Exception) Value {
	if e.Message == "" {
		return NewString(e.class.Name)
	}
	return NewString(e.Message)
}
