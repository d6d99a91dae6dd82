package vm

// ---------------------------------------------------------------------------
// Proc
// ---------------------------------------------------------------------------

var ProcDef = NewClassDef("Proc", ObjectDef)

func init() {
	self := P("self", AsSelf)

	ProcDef.Method("call", func(ip *Interpreter, blk *Block, args []Value) (Value, error) {
		return ip.InvokeBlock(blk, args)
	}, P("ip", AsInterp), self, P("args", AsArgs))
	ProcDef.Method("arity", func(blk *Block) Value { return Int(blk.Unit.Arity) }, self)
	ProcDef.Method("to_proc", func(blk *Block) Value { return blk }, self)
}
