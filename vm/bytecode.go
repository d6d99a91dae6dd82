package vm

import (
	"fmt"
	"strings"
)

// ---------------------------------------------------------------------------
// Opcode definitions
// ---------------------------------------------------------------------------

// Opcode represents a single bytecode instruction. Every instruction is one
// opcode byte followed by 0, 1 or 2 single-byte operands.
type Opcode byte

// Frame access
const (
	OpLoadSelf    Opcode = 0x00 // push self
	OpLoadScope   Opcode = 0x01 // push lexical scope (class or module)
	OpLoadCode    Opcode = 0x02 // push the running unit
	OpLoadConst   Opcode = 0x03 // push consts[i]
	OpLoadLocal   Opcode = 0x04 // push locals[i]
	OpStoreLocal  Opcode = 0x05 // locals[i] = top (no pop)
	OpLoadDeref   Opcode = 0x06 // push cells[i].Get()
	OpStoreDeref  Opcode = 0x07 // cells[i].Set(top) (no pop)
	OpLoadClosure Opcode = 0x08 // push cells[i] itself
)

// Object space access
const (
	OpLoadConstant     Opcode = 0x10 // pop scope, push scope::consts[i]
	OpStoreConstant    Opcode = 0x11 // pop value, pop scope, define, push value
	OpLoadInstanceVar  Opcode = 0x12 // pop object, push ivar consts[i]
	OpStoreInstanceVar Opcode = 0x13 // pop value, pop object, set ivar, push value
)

// Construction
const (
	OpBuildArray          Opcode = 0x20 // pop n, push array
	OpBuildRange          Opcode = 0x21 // pop end, pop start, push start...end
	OpBuildRangeInclusive Opcode = 0x22 // pop end, pop start, push start..end
	OpBuildFunction       Opcode = 0x23 // pop code, pop name, push function
	OpBuildBlock          Opcode = 0x24 // pop n cells, pop code, push block
	OpBuildClass          Opcode = 0x25 // pop code, superclass, name, scope; run body
	OpBuildModule         Opcode = 0x26 // pop code, name, scope; run body
	OpCopyString          Opcode = 0x27 // replace string on top with a fresh copy
	OpCoerceArray         Opcode = 0x28 // replace top with its array view
	OpDefineFunction      Opcode = 0x29 // pop function, name, scope; push nil
	OpAttachFunction      Opcode = 0x2A // pop function, name, object; push nil
)

// Message sends
const (
	OpSend      Opcode = 0x30 // send consts[m] with argc args
	OpSendBlock Opcode = 0x31 // send consts[m] with argc-1 args and a block
	OpSendSplat Opcode = 0x32 // send consts[m] with args from an array on top
)

// Blocks and unwinding
const (
	OpSetupExcept  Opcode = 0x40 // push ExceptBlock resuming at target
	OpSetupFinally Opcode = 0x41 // push FinallyBlock resuming at target
	OpEndFinally   Opcode = 0x42 // pop placeholder and unroller, re-deliver
	OpCompareExc   Opcode = 0x43 // pop class, peek exception, push class equality
	OpPopBlock     Opcode = 0x44 // remove head block, run its cleanup
)

// Control flow
const (
	OpJump        Opcode = 0x50 // pc = target
	OpJumpIfTrue  Opcode = 0x51 // pop; if truthy pc = target
	OpJumpIfFalse Opcode = 0x52 // pop; if falsy pc = target
	OpDiscardTop  Opcode = 0x53 // pop
	OpDupTop      Opcode = 0x54 // push top
	OpReturn      Opcode = 0x55 // pop value, deliver return
	OpYield       Opcode = 0x56 // invoke frame block with n args
	OpUnreachable Opcode = 0x57 // fatal
)

// ---------------------------------------------------------------------------
// Opcode metadata
// ---------------------------------------------------------------------------

// OpcodeInfo holds metadata about an opcode.
type OpcodeInfo struct {
	Name        string // human-readable name
	NumArgs     int    // number of single-byte operands (0, 1 or 2)
	StackEffect int    // net effect on stack (-1 = variable)
	Jump        bool   // first operand is an absolute target offset
}

// opcodeTable is the one table compiler and engine agree on.
var opcodeTable = map[Opcode]OpcodeInfo{
	OpLoadSelf:    {"LOAD_SELF", 0, 1, false},
	OpLoadScope:   {"LOAD_SCOPE", 0, 1, false},
	OpLoadCode:    {"LOAD_CODE", 0, 1, false},
	OpLoadConst:   {"LOAD_CONST", 1, 1, false},
	OpLoadLocal:   {"LOAD_LOCAL", 1, 1, false},
	OpStoreLocal:  {"STORE_LOCAL", 1, 0, false},
	OpLoadDeref:   {"LOAD_DEREF", 1, 1, false},
	OpStoreDeref:  {"STORE_DEREF", 1, 0, false},
	OpLoadClosure: {"LOAD_CLOSURE", 1, 1, false},

	OpLoadConstant:     {"LOAD_CONSTANT", 1, 0, false},
	OpStoreConstant:    {"STORE_CONSTANT", 1, -1, false},
	OpLoadInstanceVar:  {"LOAD_INSTANCE_VAR", 1, 0, false},
	OpStoreInstanceVar: {"STORE_INSTANCE_VAR", 1, -1, false},

	OpBuildArray:          {"BUILD_ARRAY", 1, -1, false},
	OpBuildRange:          {"BUILD_RANGE", 0, -1, false},
	OpBuildRangeInclusive: {"BUILD_RANGE_INCLUSIVE", 0, -1, false},
	OpBuildFunction:       {"BUILD_FUNCTION", 0, -1, false},
	OpBuildBlock:          {"BUILD_BLOCK", 1, -1, false},
	OpBuildClass:          {"BUILD_CLASS", 0, -3, false},
	OpBuildModule:         {"BUILD_MODULE", 0, -2, false},
	OpCopyString:          {"COPY_STRING", 0, 0, false},
	OpCoerceArray:         {"COERCE_ARRAY", 0, 0, false},
	OpDefineFunction:      {"DEFINE_FUNCTION", 0, -2, false},
	OpAttachFunction:      {"ATTACH_FUNCTION", 0, -2, false},

	OpSend:      {"SEND", 2, -1, false},
	OpSendBlock: {"SEND_BLOCK", 2, -1, false},
	OpSendSplat: {"SEND_SPLAT", 1, -1, false},

	OpSetupExcept:  {"SETUP_EXCEPT", 1, 0, true},
	OpSetupFinally: {"SETUP_FINALLY", 1, 0, true},
	OpEndFinally:   {"END_FINALLY", 0, -2, false},
	OpCompareExc:   {"COMPARE_EXC", 0, 0, false},
	OpPopBlock:     {"POP_BLOCK", 0, -1, false},

	OpJump:        {"JUMP", 1, 0, true},
	OpJumpIfTrue:  {"JUMP_IF_TRUE", 1, -1, true},
	OpJumpIfFalse: {"JUMP_IF_FALSE", 1, -1, true},
	OpDiscardTop:  {"DISCARD_TOP", 0, -1, false},
	OpDupTop:      {"DUP_TOP", 0, 1, false},
	OpReturn:      {"RETURN", 0, -1, false},
	OpYield:       {"YIELD", 1, -1, false},
	OpUnreachable: {"UNREACHABLE", 0, 0, false},
}

// opcodesByName is the reverse index used by assemblers.
var opcodesByName = func() map[string]Opcode {
	m := make(map[string]Opcode, len(opcodeTable))
	for op, info := range opcodeTable {
		if info.NumArgs > 2 {
			panic(fmt.Sprintf("opcode %s declares %d operands", info.Name, info.NumArgs))
		}
		m[info.Name] = op
	}
	return m
}()

// Info returns the metadata for an opcode.
func (op Opcode) Info() OpcodeInfo {
	if info, ok := opcodeTable[op]; ok {
		return info
	}
	return OpcodeInfo{Name: fmt.Sprintf("UNKNOWN_%02X", byte(op))}
}

// Name returns the human-readable name for an opcode.
func (op Opcode) Name() string {
	return op.Info().Name
}

// NumArgs returns the number of operand bytes for an opcode.
func (op Opcode) NumArgs() int {
	return op.Info().NumArgs
}

// Valid reports whether op is in the opcode table.
func (op Opcode) Valid() bool {
	_, ok := opcodeTable[op]
	return ok
}

// String implements the Stringer interface.
func (op Opcode) String() string {
	return op.Name()
}

// LookupOpcode finds an opcode by its table name.
func LookupOpcode(name string) (Opcode, bool) {
	op, ok := opcodesByName[strings.ToUpper(name)]
	return op, ok
}

// ---------------------------------------------------------------------------
// BytecodeBuilder: Helper for constructing bytecode
// ---------------------------------------------------------------------------

// BytecodeBuilder helps construct bytecode sequences.
type BytecodeBuilder struct {
	bytes []byte
}

// NewBytecodeBuilder creates a new bytecode builder.
func NewBytecodeBuilder() *BytecodeBuilder {
	return &BytecodeBuilder{
		bytes: make([]byte, 0, 64),
	}
}

// Bytes returns the constructed bytecode.
func (b *BytecodeBuilder) Bytes() []byte {
	return b.bytes
}

// Len returns the current length.
func (b *BytecodeBuilder) Len() int {
	return len(b.bytes)
}

// Emit appends an opcode with no operands.
func (b *BytecodeBuilder) Emit(op Opcode) {
	b.bytes = append(b.bytes, byte(op))
}

// EmitByte appends an opcode with a single byte operand.
func (b *BytecodeBuilder) EmitByte(op Opcode, operand byte) {
	b.bytes = append(b.bytes, byte(op), operand)
}

// EmitBytes appends an opcode with two byte operands.
func (b *BytecodeBuilder) EmitBytes(op Opcode, first, second byte) {
	b.bytes = append(b.bytes, byte(op), first, second)
}

// EmitSend appends a SEND, SEND_BLOCK instruction.
func (b *BytecodeBuilder) EmitSend(op Opcode, method, argc byte) {
	b.EmitBytes(op, method, argc)
}

// ---------------------------------------------------------------------------
// Label management for jumps
// ---------------------------------------------------------------------------

// Label represents a jump target. Targets are absolute offsets and must fit
// in one byte.
type Label struct {
	resolved bool
	position int
	refs     []int // operand positions waiting for the target
}

// NewLabel creates an unresolved label.
func (b *BytecodeBuilder) NewLabel() *Label {
	return &Label{refs: make([]int, 0, 2)}
}

// Mark resolves a label to the current position.
func (b *BytecodeBuilder) Mark(label *Label) {
	if label.resolved {
		panic("label already resolved")
	}
	label.resolved = true
	label.position = len(b.bytes)
	for _, ref := range label.refs {
		b.bytes[ref] = targetByte(label.position)
	}
	label.refs = nil
}

// EmitJump emits a jump-style instruction (JUMP*, SETUP_*) with a label.
func (b *BytecodeBuilder) EmitJump(op Opcode, label *Label) {
	b.bytes = append(b.bytes, byte(op))
	if label.resolved {
		b.bytes = append(b.bytes, targetByte(label.position))
		return
	}
	label.refs = append(label.refs, len(b.bytes))
	b.bytes = append(b.bytes, 0)
}

// Unresolved reports whether any label still has pending references.
func (l *Label) Unresolved() bool {
	return !l.resolved && len(l.refs) > 0
}

func targetByte(pos int) byte {
	if pos > 0xFF {
		panic(fmt.Sprintf("jump target %d does not fit in one byte", pos))
	}
	return byte(pos)
}

// ---------------------------------------------------------------------------
// Bytecode reader for disassembly
// ---------------------------------------------------------------------------

// BytecodeReader reads bytecode for interpretation or disassembly.
type BytecodeReader struct {
	bytes []byte
	pos   int
}

// NewBytecodeReader creates a reader over bc.
func NewBytecodeReader(bc []byte) *BytecodeReader {
	return &BytecodeReader{bytes: bc}
}

// Position returns the current read offset.
func (r *BytecodeReader) Position() int {
	return r.pos
}

// HasMore reports whether any bytes remain.
func (r *BytecodeReader) HasMore() bool {
	return r.pos < len(r.bytes)
}

// ReadOpcode reads the next opcode.
func (r *BytecodeReader) ReadOpcode() Opcode {
	return Opcode(r.ReadOperand())
}

// ReadOperand reads one operand byte.
func (r *BytecodeReader) ReadOperand() byte {
	if r.pos >= len(r.bytes) {
		panic("bytecode underflow")
	}
	b := r.bytes[r.pos]
	r.pos++
	return b
}

// ---------------------------------------------------------------------------
// Disassembly
// ---------------------------------------------------------------------------

// DisassembleInstruction disassembles a single instruction at the reader's
// position. consts may be nil; when present, constant operands are annotated.
func DisassembleInstruction(r *BytecodeReader, consts []Value) string {
	pos := r.Position()
	op := r.ReadOpcode()
	info := op.Info()

	var args [2]byte
	for i := 0; i < info.NumArgs; i++ {
		args[i] = r.ReadOperand()
	}

	switch op {
	case OpLoadConst, OpLoadConstant, OpStoreConstant, OpLoadInstanceVar, OpStoreInstanceVar:
		return fmt.Sprintf("%04d  %s %d%s", pos, info.Name, args[0], constNote(consts, args[0]))
	case OpSend, OpSendBlock:
		return fmt.Sprintf("%04d  %s %d %d%s", pos, info.Name, args[0], args[1], constNote(consts, args[0]))
	case OpSendSplat:
		return fmt.Sprintf("%04d  %s %d%s", pos, info.Name, args[0], constNote(consts, args[0]))
	}

	switch {
	case info.Jump:
		return fmt.Sprintf("%04d  %s %d (-> %04d)", pos, info.Name, args[0], args[0])
	case info.NumArgs == 1:
		return fmt.Sprintf("%04d  %s %d", pos, info.Name, args[0])
	case info.NumArgs == 2:
		return fmt.Sprintf("%04d  %s %d %d", pos, info.Name, args[0], args[1])
	default:
		return fmt.Sprintf("%04d  %s", pos, info.Name)
	}
}

func constNote(consts []Value, idx byte) string {
	if int(idx) >= len(consts) {
		return ""
	}
	return fmt.Sprintf(" (%s)", Inspect(consts[idx]))
}

// Disassemble returns a full disassembly of bytecode.
func Disassemble(bc []byte, consts []Value) string {
	r := NewBytecodeReader(bc)
	var sb strings.Builder
	for r.HasMore() {
		if sb.Len() > 0 {
			sb.WriteByte('\n')
		}
		sb.WriteString(DisassembleInstruction(r, consts))
	}
	return sb.String()
}
