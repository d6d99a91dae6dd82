// Package asm is a textual assembler for garnet bytecode units. It is the
// compiler the engine uses for app methods and the front end of the garnet
// command.
//
// A source file is a list of instructions for the top-level unit, with
// nested units introduced by ".code NAME" and closed by ".end":
//
//	.name main
//	.locals 1
//	    LOAD_CONST $42
//	    STORE_LOCAL 0
//	loop:
//	    JUMP loop
//	.code body
//	.arity 1
//	    ...
//	.end
//
// Operands are decimal bytes, labels, or constants: :symbol, "string",
// $literal (integer, float, nil, true, false) and @unit for a nested unit
// visible from the current one. Constants are pooled per unit.
package asm

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/chazu/garnet/vm"
)

// SyntaxError reports a malformed source line.
type SyntaxError struct {
	Unit string
	Line int
	Msg  string
}

func (e *SyntaxError) Error() string {
	if e.Unit == "" {
		return fmt.Sprintf("line %d: %s", e.Line, e.Msg)
	}
	return fmt.Sprintf("%s:%d: %s", e.Unit, e.Line, e.Msg)
}

// ---------------------------------------------------------------------------
// Parsed form
// ---------------------------------------------------------------------------

type instruction struct {
	line     int
	op       vm.Opcode
	operands []Token
}

type unitSource struct {
	name   string
	line   int
	parent *unitSource

	locals, cells, free, arity int

	instrs   []instruction
	labels   map[string]int // label -> instruction index
	children map[string]*unitSource
	built    *vm.Unit
}

func newUnitSource(name string, line int, parent *unitSource) *unitSource {
	return &unitSource{
		name:     name,
		line:     line,
		parent:   parent,
		labels:   make(map[string]int),
		children: make(map[string]*unitSource),
	}
}

// lookup finds a nested unit by name in u or an enclosing unit.
func (u *unitSource) lookup(name string) (*unitSource, bool) {
	for s := u; s != nil; s = s.parent {
		if child, ok := s.children[name]; ok {
			return child, true
		}
	}
	return nil, false
}

// ---------------------------------------------------------------------------
// Compile
// ---------------------------------------------------------------------------

// Compile assembles source into a validated unit. name is used when the
// source has no .name directive. It has the signature of vm.CompileFunc.
func Compile(name, source string) (*vm.Unit, error) {
	lines, err := Lex(source)
	if err != nil {
		if se, ok := err.(*SyntaxError); ok {
			se.Unit = name
		}
		return nil, err
	}
	top, err := parse(name, lines)
	if err != nil {
		return nil, err
	}
	unit, err := assemble(top)
	if err != nil {
		return nil, err
	}
	if err := unit.Validate(); err != nil {
		return nil, err
	}
	return unit, nil
}

// MustCompile is Compile for sources known to be valid.
func MustCompile(name, source string) *vm.Unit {
	unit, err := Compile(name, source)
	if err != nil {
		panic(err)
	}
	return unit
}

func parse(name string, lines [][]Token) (*unitSource, error) {
	top := newUnitSource(name, 1, nil)
	cur := top
	fail := func(line int, format string, args ...interface{}) error {
		return &SyntaxError{Unit: cur.name, Line: line, Msg: fmt.Sprintf(format, args...)}
	}

	for _, toks := range lines {
		line := toks[0].Line
		for len(toks) > 0 && toks[0].Type == TokenLabel {
			label := toks[0].Text
			if _, dup := cur.labels[label]; dup {
				return nil, fail(line, "duplicate label %s", label)
			}
			cur.labels[label] = len(cur.instrs)
			toks = toks[1:]
		}
		if len(toks) == 0 {
			continue
		}

		head := toks[0]
		switch head.Type {
		case TokenDirective:
			next, err := directive(cur, head, toks[1:])
			if err != nil {
				return nil, err
			}
			cur = next
		case TokenIdent:
			op, ok := vm.LookupOpcode(head.Text)
			if !ok {
				return nil, fail(line, "unknown opcode %s", head.Text)
			}
			if want := op.NumArgs(); len(toks)-1 != want {
				return nil, fail(line, "%s takes %d operands, got %d", op, want, len(toks)-1)
			}
			cur.instrs = append(cur.instrs, instruction{line: line, op: op, operands: toks[1:]})
		default:
			return nil, fail(line, "unexpected %s", head)
		}
	}
	if cur != top {
		return nil, fail(cur.line, "unterminated .code %s", cur.name)
	}
	return top, nil
}

// directive applies one directive and returns the unit that receives the
// following lines.
func directive(cur *unitSource, head Token, args []Token) (*unitSource, error) {
	fail := func(format string, a ...interface{}) error {
		return &SyntaxError{Unit: cur.name, Line: head.Line, Msg: fmt.Sprintf(format, a...)}
	}
	switch head.Text {
	case "end":
		if cur.parent == nil {
			return nil, fail(".end without .code")
		}
		return cur.parent, nil
	case "code":
		if len(args) != 1 || args[0].Type != TokenIdent {
			return nil, fail(".code needs a name")
		}
		name := args[0].Text
		if _, dup := cur.children[name]; dup {
			return nil, fail("duplicate .code %s", name)
		}
		child := newUnitSource(name, head.Line, cur)
		cur.children[name] = child
		return child, nil
	case "name":
		if len(args) != 1 {
			return nil, fail(".name needs one argument")
		}
		cur.name = args[0].Text
		return cur, nil
	case "locals", "cells", "free", "arity":
		if len(args) != 1 || args[0].Type != TokenNumber {
			return nil, fail(".%s needs a count", head.Text)
		}
		n, err := strconv.Atoi(args[0].Text)
		if err != nil || n > 255 {
			return nil, fail("bad count %s", args[0].Text)
		}
		switch head.Text {
		case "locals":
			cur.locals = n
		case "cells":
			cur.cells = n
		case "free":
			cur.free = n
		case "arity":
			cur.arity = n
		}
		return cur, nil
	}
	return nil, fail("unknown directive .%s", head.Text)
}

// ---------------------------------------------------------------------------
// Assembly
// ---------------------------------------------------------------------------

type constPool struct {
	values []vm.Value
	index  map[string]int
}

func (p *constPool) add(key string, v vm.Value) (int, error) {
	if i, ok := p.index[key]; ok {
		return i, nil
	}
	if len(p.values) > 255 {
		return 0, fmt.Errorf("more than 256 constants")
	}
	p.values = append(p.values, v)
	p.index[key] = len(p.values) - 1
	return len(p.values) - 1, nil
}

func assemble(src *unitSource) (*vm.Unit, error) {
	if src.built != nil {
		return src.built, nil
	}

	// Instruction offsets, so labels resolve without backpatching.
	offsets := make([]int, len(src.instrs)+1)
	for i, in := range src.instrs {
		offsets[i+1] = offsets[i] + 1 + in.op.NumArgs()
	}

	pool := &constPool{index: make(map[string]int)}
	b := vm.NewBytecodeBuilder()
	for _, in := range src.instrs {
		var operands [2]byte
		for i, tok := range in.operands {
			n, err := operand(src, pool, offsets, tok)
			if se, ok := err.(*SyntaxError); ok {
				return nil, se
			}
			if err != nil {
				return nil, &SyntaxError{Unit: src.name, Line: in.line, Msg: err.Error()}
			}
			operands[i] = n
		}
		switch in.op.NumArgs() {
		case 0:
			b.Emit(in.op)
		case 1:
			b.EmitByte(in.op, operands[0])
		default:
			b.EmitBytes(in.op, operands[0], operands[1])
		}
	}

	locals := src.locals
	if locals < src.arity {
		locals = src.arity
	}
	src.built = &vm.Unit{
		Name:      src.name,
		Code:      b.Bytes(),
		Consts:    pool.values,
		NumLocals: locals,
		NumCells:  src.cells,
		NumFree:   src.free,
		Arity:     src.arity,
	}
	return src.built, nil
}

func operand(src *unitSource, pool *constPool, offsets []int, tok Token) (byte, error) {
	var idx int
	var err error
	switch tok.Type {
	case TokenNumber:
		idx, err = strconv.Atoi(tok.Text)
		if err != nil {
			return 0, fmt.Errorf("bad operand %s", tok.Text)
		}
	case TokenIdent:
		at, ok := src.labels[tok.Text]
		if !ok {
			return 0, fmt.Errorf("undefined label %s", tok.Text)
		}
		idx = offsets[at]
	case TokenSymbol:
		idx, err = pool.add("sym:"+tok.Text, vm.Symbol(tok.Text))
	case TokenString:
		s, uerr := strconv.Unquote(tok.Text)
		if uerr != nil {
			return 0, fmt.Errorf("bad string %s", tok.Text)
		}
		idx, err = pool.add("str:"+s, vm.NewString(s))
	case TokenLiteral:
		v, lerr := literal(tok.Text)
		if lerr != nil {
			return 0, lerr
		}
		idx, err = pool.add("lit:"+tok.Text, v)
	case TokenCodeRef:
		child, ok := src.lookup(tok.Text)
		if !ok {
			return 0, fmt.Errorf("no .code named %s", tok.Text)
		}
		unit, aerr := assemble(child)
		if aerr != nil {
			return 0, aerr
		}
		idx, err = pool.add("code:"+tok.Text, unit)
	default:
		return 0, fmt.Errorf("unexpected %s", tok)
	}
	if err != nil {
		return 0, err
	}
	if idx < 0 || idx > 255 {
		return 0, fmt.Errorf("operand %d does not fit in one byte", idx)
	}
	return byte(idx), nil
}

func literal(text string) (vm.Value, error) {
	switch text {
	case "nil":
		return vm.Nil, nil
	case "true":
		return vm.True, nil
	case "false":
		return vm.False, nil
	}
	if i, err := strconv.ParseInt(text, 10, 64); err == nil {
		return vm.Int(i), nil
	}
	if strings.ContainsAny(text, ".eE") {
		if f, err := strconv.ParseFloat(text, 64); err == nil {
			return vm.Float(f), nil
		}
	}
	return nil, fmt.Errorf("bad literal $%s", text)
}
