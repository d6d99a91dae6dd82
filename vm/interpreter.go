package vm

// ---------------------------------------------------------------------------
// Dispatch signals
// ---------------------------------------------------------------------------

// SignalKind is the outcome class of one executed instruction.
type SignalKind uint8

const (
	Continue  SignalKind = iota // resume at PC
	Returning                   // frame completed with Value
	Raising                     // Err is pending
)

// Signal is what every instruction hands back to the dispatch loop. The
// loop inspects it after each step; nothing unwinds the Go stack.
type Signal struct {
	Kind  SignalKind
	PC    int
	Value Value
	Err   *Error
	// Rethrow marks an exception escalated by END_FINALLY: it has already
	// been recorded in the traceback and the block chain is exhausted.
	Rethrow bool
}

func next(pc int) Signal { return Signal{Kind: Continue, PC: pc} }

func returning(v Value) Signal { return Signal{Kind: Returning, Value: v} }

// ---------------------------------------------------------------------------
// Interpreter: the execution engine
// ---------------------------------------------------------------------------

// Interpreter runs frames against a Space. It is the execution context
// handed to host methods that ask for one.
type Interpreter struct {
	Space *Space
	// OnBackEdge is called on every backward jump. Nil is a no-op.
	OnBackEdge func(unit *Unit, target int)

	depth int
}

// Depth returns the current frame nesting depth.
func (ip *Interpreter) Depth() int {
	return ip.depth
}

// Interpret runs f until it returns or raises an exception no block in
// f intercepts. Nested calls recurse into Interpret on the same goroutine.
func (ip *Interpreter) Interpret(f *Frame) (Value, error) {
	ip.depth++
	defer func() { ip.depth-- }()
	if ip.depth > ip.Space.opts.MaxDepth {
		return nil, ip.Space.Errorf(SystemStackErrorDef, "stack level too deep")
	}

	pc := 0
	for {
		sig := ip.step(f, pc)
		switch sig.Kind {
		case Continue:
			pc = sig.PC
		case Returning:
			return sig.Value, nil
		case Raising:
			resume, ok := ip.handleError(f, pc, sig.Err, sig.Rethrow)
			if !ok {
				return nil, sig.Err
			}
			pc = resume
		}
	}
}

// handleError records pc and delivers err to the innermost ExceptBlock or
// FinallyBlock. It reports false when the frame has no handler left.
func (ip *Interpreter) handleError(f *Frame, pc int, err *Error, rethrow bool) (int, bool) {
	if !rethrow {
		err.Value.Traceback = append(err.Value.Traceback, pc)
	}
	block := f.UnrollStack(KindApplicationException)
	if block == nil {
		return 0, false
	}
	return block.handle(f, &ApplicationException{Err: err}), true
}

// raise turns a host error into a Raising signal.
func (ip *Interpreter) raise(err error) Signal {
	return Signal{Kind: Raising, Err: ip.Space.toError(err)}
}

// jump moves to target, reporting backward branches.
func (ip *Interpreter) jump(f *Frame, start, target int) Signal {
	if target < start && ip.OnBackEdge != nil {
		ip.OnBackEdge(f.Unit, target)
	}
	return next(target)
}

// step executes the instruction at pc.
func (ip *Interpreter) step(f *Frame, pc int) Signal {
	code := f.Unit.Code
	if pc >= len(code) {
		panic(internalErrorf("%s: pc %d ran past the end of the code", f.Unit.Name, pc))
	}
	start := pc
	op := Opcode(code[pc])
	pc++
	info, ok := opcodeTable[op]
	if !ok {
		panic(internalErrorf("%s: unknown opcode 0x%02X at %d", f.Unit.Name, byte(op), start))
	}
	var a, b int
	if info.NumArgs >= 1 {
		a = int(code[pc])
		pc++
	}
	if info.NumArgs == 2 {
		b = int(code[pc])
		pc++
	}

	s := ip.Space
	switch op {
	// Frame access
	case OpLoadSelf:
		f.Push(f.Self)
	case OpLoadScope:
		f.Push(f.Scope)
	case OpLoadCode:
		f.Push(f.Unit)
	case OpLoadConst:
		f.Push(f.Unit.Consts[a])
	case OpLoadLocal:
		f.Push(f.Locals[a])
	case OpStoreLocal:
		f.Locals[a] = f.Peek()
	case OpLoadDeref:
		f.Push(f.Cells[a].Get())
	case OpStoreDeref:
		f.Cells[a].Set(f.Peek())
	case OpLoadClosure:
		f.Push(f.Cells[a])

	// Object space access
	case OpLoadConstant:
		scope, err := ip.scopeOf(f.Pop())
		if err != nil {
			return ip.raise(err)
		}
		v, err := s.FindConst(scope, ip.constName(f, a))
		if err != nil {
			return ip.raise(err)
		}
		f.Push(v)
	case OpStoreConstant:
		v := f.Pop()
		scope, err := ip.scopeOf(f.Pop())
		if err != nil {
			return ip.raise(err)
		}
		s.SetConst(scope, ip.constName(f, a), v)
		f.Push(v)
	case OpLoadInstanceVar:
		obj := f.Pop()
		if h, ok := obj.(InstanceVarHolder); ok {
			f.Push(h.InstanceVar(ip.constName(f, a)))
		} else {
			f.Push(Nil)
		}
	case OpStoreInstanceVar:
		v := f.Pop()
		obj := f.Pop()
		h, ok := obj.(InstanceVarHolder)
		if !ok {
			return ip.raise(s.Errorf(RuntimeErrorDef, "can't modify frozen %s", s.ClassOf(obj).Name))
		}
		h.SetInstanceVar(ip.constName(f, a), v)
		f.Push(v)

	// Construction
	case OpBuildArray:
		items := f.PopNReversed(a)
		if items == nil {
			items = []Value{}
		}
		f.Push(NewArray(items))
	case OpBuildRange, OpBuildRangeInclusive:
		hi := f.Pop()
		lo := f.Pop()
		f.Push(&Range{Start: lo, End: hi, Exclusive: op == OpBuildRange})
	case OpBuildFunction:
		unit := ip.unitOf(f.Pop())
		name, _ := SymbolName(f.Pop())
		f.Push(NewFunction(name, unit))
	case OpBuildBlock:
		raw := f.PopNReversed(a)
		cells := make([]*Cell, len(raw))
		for i, v := range raw {
			cell, ok := v.(*Cell)
			if !ok {
				panic(internalErrorf("%s: BUILD_BLOCK captured %s, not a cell", f.Unit.Name, Inspect(v)))
			}
			cells[i] = cell
		}
		unit := ip.unitOf(f.Pop())
		f.Push(&Block{Unit: unit, Self: f.Self, Scope: f.Scope, Cells: cells, Parent: f.Block})
	case OpBuildClass:
		result, err := ip.buildClass(f)
		if err != nil {
			return ip.raise(err)
		}
		f.Push(result)
	case OpBuildModule:
		result, err := ip.buildModule(f)
		if err != nil {
			return ip.raise(err)
		}
		f.Push(result)
	case OpCopyString:
		v := f.Pop()
		str, ok := v.(*String)
		if !ok {
			panic(internalErrorf("%s: COPY_STRING on %s", f.Unit.Name, Inspect(v)))
		}
		f.Push(str.Copy())
	case OpCoerceArray:
		arr, err := ip.coerceArray(f.Pop())
		if err != nil {
			return ip.raise(err)
		}
		f.Push(arr)
	case OpDefineFunction:
		fn := ip.functionOf(f.Pop())
		name, _ := SymbolName(f.Pop())
		scope, err := ip.scopeOf(f.Pop())
		if err != nil {
			return ip.raise(err)
		}
		fn.Owner = scope
		scope.DefineMethod(name, fn)
		f.Push(Nil)
	case OpAttachFunction:
		fn := ip.functionOf(f.Pop())
		name, _ := SymbolName(f.Pop())
		if err := ip.attach(f.Pop(), name, fn); err != nil {
			return ip.raise(err)
		}
		f.Push(Nil)

	// Message sends
	case OpSend:
		args := f.PopNReversed(b)
		recv := f.Pop()
		return ip.sendAndPush(f, pc, recv, ip.constName(f, a), args, Nil)
	case OpSendBlock:
		if b < 1 {
			panic(internalErrorf("%s: SEND_BLOCK at %d without a block operand", f.Unit.Name, start))
		}
		blk := f.Pop()
		args := f.PopNReversed(b - 1)
		recv := f.Pop()
		return ip.sendAndPush(f, pc, recv, ip.constName(f, a), args, blk)
	case OpSendSplat:
		args, err := s.ListView(f.Pop())
		if err != nil {
			return ip.raise(err)
		}
		recv := f.Pop()
		return ip.sendAndPush(f, pc, recv, ip.constName(f, a), append([]Value(nil), args...), Nil)

	// Blocks and unwinding
	case OpSetupExcept:
		f.PushBlock(ExceptBlock, a)
	case OpSetupFinally:
		f.PushBlock(FinallyBlock, a)
	case OpEndFinally:
		return ip.endFinally(f, pc)
	case OpCompareExc:
		expected := f.Pop()
		actual := f.Peek()
		cls, ok := expected.(*Class)
		f.Push(Bool(ok && s.ClassOf(actual) == cls))
	case OpPopBlock:
		f.PopBlock().cleanup(f)

	// Control flow
	case OpJump:
		return ip.jump(f, start, a)
	case OpJumpIfTrue:
		if IsTruthy(f.Pop()) {
			return ip.jump(f, start, a)
		}
	case OpJumpIfFalse:
		if !IsTruthy(f.Pop()) {
			return ip.jump(f, start, a)
		}
	case OpDiscardTop:
		f.Pop()
	case OpDupTop:
		f.Push(f.Peek())
	case OpReturn:
		v := f.Pop()
		if block := f.UnrollStack(KindReturnValue); block != nil {
			return next(block.handle(f, &ReturnValue{Value: v}))
		}
		f.Push(v)
		return returning(v)
	case OpYield:
		args := f.PopNReversed(a)
		if f.Block == nil {
			return ip.raise(s.Errorf(LocalJumpErrorDef, "no block given (yield)"))
		}
		v, err := ip.InvokeBlock(f.Block, args)
		if err != nil {
			return ip.raise(err)
		}
		f.Push(v)
	case OpUnreachable:
		panic(internalErrorf("%s: reached UNREACHABLE at %d", f.Unit.Name, start))

	default:
		panic(internalErrorf("%s: no handler for %s", f.Unit.Name, op))
	}
	return next(pc)
}

// endFinally closes an ensure body. A pending unroller is re-delivered to
// the enclosing chain; with no taker it escalates out of the frame.
func (ip *Interpreter) endFinally(f *Frame, pc int) Signal {
	f.Pop() // placeholder
	u, ok := f.Pop().(Unroller)
	if !ok {
		return next(pc)
	}
	if block := f.UnrollStack(u.Kind()); block != nil {
		return next(block.handle(f, u))
	}
	switch u := u.(type) {
	case *ReturnValue:
		f.Push(u.Value)
		return returning(u.Value)
	case *ApplicationException:
		return Signal{Kind: Raising, Err: u.Err, Rethrow: true}
	}
	panic(internalErrorf("%s: unroller kind %d escaped END_FINALLY", f.Unit.Name, u.Kind()))
}

func (ip *Interpreter) sendAndPush(f *Frame, pc int, recv Value, name string, args []Value, blk Value) Signal {
	block, err := ip.blockArg(blk)
	if err != nil {
		return ip.raise(err)
	}
	v, err := ip.Send(recv, name, args, block)
	if err != nil {
		return ip.raise(err)
	}
	f.Push(v)
	return next(pc)
}

// ---------------------------------------------------------------------------
// Calls
// ---------------------------------------------------------------------------

// Send dispatches name on recv.
func (ip *Interpreter) Send(recv Value, name string, args []Value, block *Block) (Value, error) {
	m := ip.Space.FindMethod(recv, name)
	if m == nil {
		return nil, ip.Space.Errorf(NoMethodErrorDef, "undefined method `%s' for %s:%s",
			name, Inspect(recv), ip.Space.ClassOf(recv).Name)
	}
	return m.Call(ip, recv, args, block)
}

// InvokeBlock calls blk with args. Block arity is lenient: missing
// parameters are nil, extras are dropped, and a single array argument
// spreads over several parameters.
func (ip *Interpreter) InvokeBlock(blk *Block, args []Value) (Value, error) {
	unit := blk.Unit
	frame := NewFrame(unit, blk.Self, blk.Scope, blk.Parent, blk.Cells)
	if unit.Arity > 1 && len(args) == 1 {
		if arr, ok := args[0].(*Array); ok {
			args = arr.Items
		}
	}
	for i := 0; i < unit.Arity && i < len(args); i++ {
		frame.Locals[i] = args[i]
	}
	return ip.Interpret(frame)
}

func (ip *Interpreter) blockArg(v Value) (*Block, error) {
	switch v := v.(type) {
	case nil, NilType:
		return nil, nil
	case *Block:
		return v, nil
	}
	return nil, ip.Space.TypeError("wrong argument type %s (expected Proc)", ip.Space.ClassOf(v).Name)
}

// ---------------------------------------------------------------------------
// Class and module bodies
// ---------------------------------------------------------------------------

func (ip *Interpreter) buildClass(f *Frame) (Value, error) {
	s := ip.Space
	unit := ip.unitOf(f.Pop())
	superVal := f.Pop()
	name, _ := SymbolName(f.Pop())
	scope, err := ip.scopeOf(f.Pop())
	if err != nil {
		return nil, err
	}

	var superclass *Class
	if _, isNil := superVal.(NilType); !isNil {
		sc, ok := superVal.(*Class)
		if !ok || sc.IsModule {
			return nil, s.TypeError("superclass must be a Class (%s given)", s.ClassOf(superVal).Name)
		}
		superclass = sc
	}

	var cls *Class
	if existing, ok := scope.Const(name); ok {
		c, isClass := existing.(*Class)
		if !isClass || c.IsModule {
			return nil, s.TypeError("%s is not a class", name)
		}
		if superclass != nil && c.Superclass != superclass {
			return nil, s.TypeError("superclass mismatch for class %s", name)
		}
		cls = c
	} else {
		if superclass == nil {
			superclass = s.ObjectClass()
		}
		cls = NewClass(name, superclass)
		s.SetConst(scope, name, cls)
	}
	return ip.Interpret(NewFrame(unit, cls, cls, nil, nil))
}

func (ip *Interpreter) buildModule(f *Frame) (Value, error) {
	s := ip.Space
	unit := ip.unitOf(f.Pop())
	name, _ := SymbolName(f.Pop())
	scope, err := ip.scopeOf(f.Pop())
	if err != nil {
		return nil, err
	}

	var mod *Class
	if existing, ok := scope.Const(name); ok {
		m, isMod := existing.(*Class)
		if !isMod || !m.IsModule {
			return nil, s.TypeError("%s is not a module", name)
		}
		mod = m
	} else {
		mod = NewModule(name)
		s.SetConst(scope, name, mod)
	}
	return ip.Interpret(NewFrame(unit, mod, mod, nil, nil))
}

// ---------------------------------------------------------------------------
// Operand helpers
// ---------------------------------------------------------------------------

func (ip *Interpreter) constName(f *Frame, idx int) string {
	name, ok := SymbolName(f.Unit.Consts[idx])
	if !ok {
		panic(internalErrorf("%s: constant %d is not a name", f.Unit.Name, idx))
	}
	return name
}

func (ip *Interpreter) scopeOf(v Value) (*Class, error) {
	if cls, ok := v.(*Class); ok {
		return cls, nil
	}
	return nil, ip.Space.TypeError("%s is not a class/module", Inspect(v))
}

func (ip *Interpreter) unitOf(v Value) *Unit {
	unit, ok := v.(*Unit)
	if !ok {
		panic(internalErrorf("expected a code unit, got %s", Inspect(v)))
	}
	return unit
}

func (ip *Interpreter) functionOf(v Value) *Function {
	fn, ok := v.(*Function)
	if !ok {
		panic(internalErrorf("expected a function, got %s", Inspect(v)))
	}
	return fn
}

func (ip *Interpreter) attach(target Value, name string, fn *Function) error {
	switch t := target.(type) {
	case *Class:
		fn.Owner = t
		t.AttachMethod(name, fn)
		return nil
	case *Object:
		fn.Owner = t.class
		if t.singleton == nil {
			t.singleton = make(map[string]Method)
		}
		t.singleton[name] = fn
		return nil
	}
	return ip.Space.TypeError("can't define singleton method \"%s\" for %s", name, ip.Space.ClassOf(target).Name)
}

func (ip *Interpreter) coerceArray(v Value) (Value, error) {
	switch v := v.(type) {
	case nil, NilType:
		return NewArray([]Value{}), nil
	case *Array:
		return v, nil
	}
	if !ip.Space.RespondTo(v, "to_a") {
		return NewArray([]Value{v}), nil
	}
	res, err := ip.Send(v, "to_a", nil, nil)
	if err != nil {
		return nil, err
	}
	if _, ok := res.(*Array); !ok {
		return nil, ip.Space.TypeError("can't convert %s to Array (to_a gives %s)",
			ip.Space.ClassOf(v).Name, ip.Space.ClassOf(res).Name)
	}
	return res, nil
}
