package vm

import (
	"errors"
	"fmt"
	"strings"
)

// Unit is a compiled bytecode unit: an instruction stream with its constant
// pool and local/cell layout. Units are immutable once built and may be
// shared by any number of frames.
type Unit struct {
	Name      string
	Code      []byte
	Consts    []Value
	NumLocals int
	// NumCells counts the unit's own cells; NumFree counts cells captured
	// from the building frame. A frame's cell slice is own cells first.
	NumCells int
	NumFree  int
	// Arity is the number of positional parameters, bound to the first
	// Arity locals.
	Arity int
}

// ErrInvalidUnit is wrapped by every Validate failure.
var ErrInvalidUnit = errors.New("invalid bytecode unit")

func (u *Unit) Inspect() string {
	return fmt.Sprintf("#<Code %s>", u.Name)
}

// Validate decodes every instruction and checks operands against the
// unit's layout. The engine trusts validated units.
func (u *Unit) Validate() error {
	if u.Arity > u.NumLocals {
		return fmt.Errorf("%w: %s: arity %d exceeds %d locals", ErrInvalidUnit, u.Name, u.Arity, u.NumLocals)
	}
	pc := 0
	for pc < len(u.Code) {
		op := Opcode(u.Code[pc])
		info, ok := opcodeTable[op]
		if !ok {
			return fmt.Errorf("%w: %s: unknown opcode 0x%02X at %d", ErrInvalidUnit, u.Name, byte(op), pc)
		}
		if pc+info.NumArgs >= len(u.Code) {
			return fmt.Errorf("%w: %s: %s at %d is truncated", ErrInvalidUnit, u.Name, info.Name, pc)
		}
		arg := 0
		if info.NumArgs > 0 {
			arg = int(u.Code[pc+1])
		}
		if err := u.checkOperand(op, info, arg, pc); err != nil {
			return err
		}
		pc += 1 + info.NumArgs
	}
	for _, c := range u.Consts {
		if nested, ok := c.(*Unit); ok && nested != u {
			if err := nested.Validate(); err != nil {
				return err
			}
		}
	}
	return nil
}

func (u *Unit) checkOperand(op Opcode, info OpcodeInfo, arg, pc int) error {
	bad := func(what string, limit int) error {
		return fmt.Errorf("%w: %s: %s at %d: %s %d out of range (%d)",
			ErrInvalidUnit, u.Name, info.Name, pc, what, arg, limit)
	}
	switch {
	case info.Jump:
		if arg >= len(u.Code) {
			return bad("target", len(u.Code))
		}
	case op == OpLoadConst, op == OpLoadConstant, op == OpStoreConstant,
		op == OpLoadInstanceVar, op == OpStoreInstanceVar,
		op == OpSend, op == OpSendBlock, op == OpSendSplat:
		if arg >= len(u.Consts) {
			return bad("constant", len(u.Consts))
		}
	case op == OpLoadLocal, op == OpStoreLocal:
		if arg >= u.NumLocals {
			return bad("local", u.NumLocals)
		}
	case op == OpLoadDeref, op == OpStoreDeref, op == OpLoadClosure:
		if arg >= u.NumCells+u.NumFree {
			return bad("cell", u.NumCells+u.NumFree)
		}
	}
	return nil
}

// Disassemble renders the unit and every nested unit in its constant pool.
func (u *Unit) Disassemble() string {
	var sb strings.Builder
	u.disassembleInto(&sb, map[*Unit]bool{})
	return sb.String()
}

func (u *Unit) disassembleInto(sb *strings.Builder, seen map[*Unit]bool) {
	if seen[u] {
		return
	}
	seen[u] = true
	if sb.Len() > 0 {
		sb.WriteString("\n\n")
	}
	fmt.Fprintf(sb, "== %s (arity=%d locals=%d cells=%d free=%d) ==\n",
		u.Name, u.Arity, u.NumLocals, u.NumCells, u.NumFree)
	sb.WriteString(Disassemble(u.Code, u.Consts))
	for _, c := range u.Consts {
		if nested, ok := c.(*Unit); ok {
			nested.disassembleInto(sb, seen)
		}
	}
}
