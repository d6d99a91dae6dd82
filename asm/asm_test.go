package asm

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/chazu/garnet/vm"
)

func TestCompileSimple(t *testing.T) {
	unit, err := Compile("fallback", `
.name main
	LOAD_CONST $42   ; the answer
	RETURN
`)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if unit.Name != "main" {
		t.Errorf("Name = %q, want main", unit.Name)
	}
	wantCode := []byte{byte(vm.OpLoadConst), 0, byte(vm.OpReturn)}
	if diff := cmp.Diff(wantCode, unit.Code); diff != "" {
		t.Errorf("Code mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]vm.Value{vm.Int(42)}, unit.Consts); diff != "" {
		t.Errorf("Consts mismatch (-want +got):\n%s", diff)
	}
}

func TestCompileLabels(t *testing.T) {
	unit, err := Compile("labels", `
	JUMP end
top:
	LOAD_SELF
	JUMP top
end:	LOAD_CONST $nil
	RETURN
`)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	want := []byte{
		byte(vm.OpJump), 5,
		byte(vm.OpLoadSelf),
		byte(vm.OpJump), 2,
		byte(vm.OpLoadConst), 0,
		byte(vm.OpReturn),
	}
	if diff := cmp.Diff(want, unit.Code); diff != "" {
		t.Errorf("Code mismatch (-want +got):\n%s", diff)
	}
}

func TestConstPooling(t *testing.T) {
	unit, err := Compile("pool", `
	LOAD_CONST :foo
	LOAD_CONST "a b"
	LOAD_CONST :foo
	LOAD_CONST $1.5
	LOAD_CONST $true
	BUILD_ARRAY 5
	RETURN
`)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	wantConsts := []vm.Value{vm.Symbol("foo"), vm.NewString("a b"), vm.Float(1.5), vm.True}
	if diff := cmp.Diff(wantConsts, unit.Consts); diff != "" {
		t.Errorf("Consts mismatch (-want +got):\n%s", diff)
	}
	if unit.Code[5] != 0 {
		t.Errorf("repeated symbol got index %d, want 0", unit.Code[5])
	}
}

func TestNestedCode(t *testing.T) {
	unit, err := Compile("outer", `
	LOAD_CONST @blk
	LOAD_CONST @blk
	DISCARD_TOP
	RETURN

.code blk
.arity 2
.cells 1
	LOAD_LOCAL 1
	RETURN
.end
`)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if len(unit.Consts) != 1 {
		t.Fatalf("len(Consts) = %d, want 1", len(unit.Consts))
	}
	inner, ok := unit.Consts[0].(*vm.Unit)
	if !ok {
		t.Fatalf("Consts[0] = %T, want *vm.Unit", unit.Consts[0])
	}
	if inner.Name != "blk" || inner.Arity != 2 || inner.NumLocals != 2 || inner.NumCells != 1 {
		t.Errorf("inner = %s arity=%d locals=%d cells=%d", inner.Name, inner.Arity, inner.NumLocals, inner.NumCells)
	}
}

func TestCodeRefFromNestedUnit(t *testing.T) {
	// A nested unit can reference a sibling declared by its parent.
	unit, err := Compile("outer", `
	LOAD_CONST @a
	RETURN
.code a
	LOAD_CONST @b
	RETURN
.end
.code b
	LOAD_SELF
	RETURN
.end
`)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	a := unit.Consts[0].(*vm.Unit)
	if b, ok := a.Consts[0].(*vm.Unit); !ok || b.Name != "b" {
		t.Errorf("a.Consts[0] = %v, want unit b", a.Consts[0])
	}
}

func TestCompileErrors(t *testing.T) {
	tests := []struct {
		name   string
		source string
	}{
		{"unknown opcode", "FROB 1"},
		{"operand count", "SEND :x"},
		{"undefined label", "JUMP nowhere"},
		{"unterminated code", ".code x\nRETURN"},
		{"stray end", ".end"},
		{"bad literal", "LOAD_CONST $wat"},
		{"missing code", "LOAD_CONST @nope"},
		{"unterminated string", `LOAD_CONST "abc`},
		{"duplicate label", "a:\na:\nRETURN"},
		{"unknown directive", ".frob 1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Compile("bad", tt.source)
			var se *SyntaxError
			if !errors.As(err, &se) {
				t.Fatalf("Compile(%q) error = %v, want *SyntaxError", tt.source, err)
			}
		})
	}
}

func TestCompileValidates(t *testing.T) {
	_, err := Compile("bad", "LOAD_LOCAL 0\nRETURN")
	if !errors.Is(err, vm.ErrInvalidUnit) {
		t.Errorf("error = %v, want ErrInvalidUnit", err)
	}
}

func TestLex(t *testing.T) {
	lines, err := Lex("# header\n  SEND :<< 1 ; push\n\nout: RETURN")
	if err != nil {
		t.Fatalf("Lex: %v", err)
	}
	want := [][]Token{
		{
			{Type: TokenIdent, Text: "SEND", Line: 2},
			{Type: TokenSymbol, Text: "<<", Line: 2},
			{Type: TokenNumber, Text: "1", Line: 2},
		},
		{
			{Type: TokenLabel, Text: "out", Line: 4},
			{Type: TokenIdent, Text: "RETURN", Line: 4},
		},
	}
	if diff := cmp.Diff(want, lines); diff != "" {
		t.Errorf("Lex mismatch (-want +got):\n%s", diff)
	}
}
