package vm

import "fmt"

// ---------------------------------------------------------------------------
// Unrollers: in-flight control transfers
// ---------------------------------------------------------------------------

// Unroller kinds. A FrameBlock intercepts an unroller when its handling mask
// shares a bit with the unroller's kind.
const (
	KindApplicationException = 1 << 1
	KindReturnValue          = 1 << 2

	// allKinds is the FinallyBlock mask: every present and future kind.
	allKinds = -1
)

// Unroller is an exception or return on its way through the block chain.
// Unrollers sit on the operand stack while an ensure body runs.
type Unroller interface {
	Value
	Kind() int
}

// ApplicationException carries a raised error.
type ApplicationException struct {
	Err *Error
}

func (*ApplicationException) Kind() int { return KindApplicationException }

func (u *ApplicationException) Inspect() string {
	return "#<ApplicationException " + u.Err.Error() + ">"
}

// ReturnValue carries a value escaping nested blocks to the frame's caller.
type ReturnValue struct {
	Value Value
}

func (*ReturnValue) Kind() int { return KindReturnValue }

func (u *ReturnValue) Inspect() string {
	return "#<ReturnValue " + Inspect(u.Value) + ">"
}

// ---------------------------------------------------------------------------
// FrameBlocks: pending rescue/ensure handlers
// ---------------------------------------------------------------------------

// BlockKind tells an ExceptBlock from a FinallyBlock.
type BlockKind uint8

const (
	ExceptBlock BlockKind = iota
	FinallyBlock
)

func (k BlockKind) String() string {
	if k == FinallyBlock {
		return "FinallyBlock"
	}
	return "ExceptBlock"
}

// FrameBlock is a handler registered by SETUP_EXCEPT or SETUP_FINALLY.
// Blocks form a strictly nested stack through prev.
type FrameBlock struct {
	Kind     BlockKind
	TargetPC int
	// Depth is the operand stack depth at setup plus one reserved slot for
	// the region's result.
	Depth int
	Mask  int
	prev  *FrameBlock
}

// Prev returns the enclosing block, or nil.
func (b *FrameBlock) Prev() *FrameBlock { return b.prev }

func (b *FrameBlock) cleanupStack(f *Frame) {
	for len(f.stack) > b.Depth {
		f.stack = f.stack[:len(f.stack)-1]
	}
}

// cleanup restores the stack on a normal or non-matching exit. A finally
// block leaves a nil placeholder so its ensure body always finds a top.
func (b *FrameBlock) cleanup(f *Frame) {
	b.cleanupStack(f)
	if b.Kind == FinallyBlock {
		f.Push(Nil)
	}
}

// handle delivers u to this block and returns the pc to resume at.
func (b *FrameBlock) handle(f *Frame, u Unroller) int {
	b.cleanupStack(f)
	f.Push(u)
	if exc, ok := u.(*ApplicationException); ok && b.Kind == ExceptBlock {
		f.Push(exc.Err.Value)
	} else {
		f.Push(Nil)
	}
	return b.TargetPC
}

// ---------------------------------------------------------------------------
// Frame: one activation record
// ---------------------------------------------------------------------------

// Frame is the activation record of one method, block, class body or
// top-level unit. It is owned by the single execution path running it;
// only its cells are shared with closures.
type Frame struct {
	Unit   *Unit
	Locals []Value
	Cells  []*Cell
	Self   Value
	Scope  *Class
	// Block is the block passed to this call, the target of YIELD.
	Block *Block

	stack     []Value
	lastBlock *FrameBlock
}

// NewFrame builds a frame for unit. Own cells are fresh; captured cells
// are appended after them.
func NewFrame(unit *Unit, self Value, scope *Class, block *Block, captured []*Cell) *Frame {
	f := &Frame{
		Unit:   unit,
		Locals: make([]Value, unit.NumLocals),
		Cells:  make([]*Cell, unit.NumCells, unit.NumCells+len(captured)),
		Self:   self,
		Scope:  scope,
		Block:  block,
		stack:  make([]Value, 0, 8),
	}
	for i := range f.Locals {
		f.Locals[i] = Nil
	}
	for i := range f.Cells {
		f.Cells[i] = NewCell()
	}
	f.Cells = append(f.Cells, captured...)
	return f
}

// Push pushes v onto the operand stack.
func (f *Frame) Push(v Value) {
	f.stack = append(f.stack, v)
}

// Pop removes and returns the top of the stack. Popping an empty stack or
// below the innermost block's watermark is an interpreter bug.
func (f *Frame) Pop() Value {
	n := len(f.stack)
	if n == 0 || (f.lastBlock != nil && n < f.lastBlock.Depth) {
		panic(internalErrorf("stack underflow in %s", f.Unit.Name))
	}
	v := f.stack[n-1]
	f.stack[n-1] = nil
	f.stack = f.stack[:n-1]
	return v
}

// Peek returns the top of the stack without removing it.
func (f *Frame) Peek() Value {
	if len(f.stack) == 0 {
		panic(internalErrorf("stack underflow in %s", f.Unit.Name))
	}
	return f.stack[len(f.stack)-1]
}

// PopNReversed pops n values and returns them in push order.
func (f *Frame) PopNReversed(n int) []Value {
	if n == 0 {
		return nil
	}
	out := make([]Value, n)
	for i := n - 1; i >= 0; i-- {
		out[i] = f.Pop()
	}
	return out
}

// StackDepth returns the number of values on the operand stack.
func (f *Frame) StackDepth() int {
	return len(f.stack)
}

// LastBlock returns the innermost active FrameBlock.
func (f *Frame) LastBlock() *FrameBlock {
	return f.lastBlock
}

// PushBlock registers a handler resuming at target.
func (f *Frame) PushBlock(kind BlockKind, target int) {
	mask := KindApplicationException
	if kind == FinallyBlock {
		mask = allKinds
	}
	f.lastBlock = &FrameBlock{
		Kind:     kind,
		TargetPC: target,
		Depth:    len(f.stack) + 1,
		Mask:     mask,
		prev:     f.lastBlock,
	}
}

// PopBlock removes and returns the innermost block.
func (f *Frame) PopBlock() *FrameBlock {
	b := f.lastBlock
	if b == nil {
		panic(internalErrorf("POP_BLOCK with no active block in %s", f.Unit.Name))
	}
	f.lastBlock = b.prev
	return b
}

// UnrollStack removes blocks from the chain until one intercepts kind,
// cleaning up each block it passes. It returns nil when none matches.
func (f *Frame) UnrollStack(kind int) *FrameBlock {
	for f.lastBlock != nil {
		b := f.PopBlock()
		if b.Mask&kind != 0 {
			return b
		}
		b.cleanup(f)
	}
	return nil
}

func (f *Frame) String() string {
	return fmt.Sprintf("frame(%s sp=%d)", f.Unit.Name, len(f.stack))
}
