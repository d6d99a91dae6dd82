package vm

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestOpcodeTable(t *testing.T) {
	seen := make(map[string]Opcode)
	for op, info := range opcodeTable {
		if info.Name == "" {
			t.Errorf("opcode 0x%02X has no name", byte(op))
		}
		if prev, dup := seen[info.Name]; dup {
			t.Errorf("%s is used by 0x%02X and 0x%02X", info.Name, byte(prev), byte(op))
		}
		seen[info.Name] = op
		if info.Jump && info.NumArgs != 1 {
			t.Errorf("jump %s takes %d operands, want 1", info.Name, info.NumArgs)
		}
	}
}

func TestLookupOpcode(t *testing.T) {
	tests := []struct {
		name string
		want Opcode
		ok   bool
	}{
		{"LOAD_SELF", OpLoadSelf, true},
		{"send_block", OpSendBlock, true},
		{"END_FINALLY", OpEndFinally, true},
		{"FROB", 0, false},
	}
	for _, tt := range tests {
		got, ok := LookupOpcode(tt.name)
		if ok != tt.ok || (ok && got != tt.want) {
			t.Errorf("LookupOpcode(%q) = %v, %v; want %v, %v", tt.name, got, ok, tt.want, tt.ok)
		}
	}
}

func TestOpcodeInfo(t *testing.T) {
	if OpSend.NumArgs() != 2 || OpSend.String() != "SEND" {
		t.Errorf("SEND info = %+v", OpSend.Info())
	}
	if Opcode(0xFF).Valid() {
		t.Error("0xFF should not be valid")
	}
	if name := Opcode(0xFF).Name(); name != "UNKNOWN_FF" {
		t.Errorf("Name = %q, want UNKNOWN_FF", name)
	}
}

func TestBuilderLabels(t *testing.T) {
	b := NewBytecodeBuilder()
	end := b.NewLabel()
	b.EmitJump(OpJumpIfFalse, end)
	b.EmitByte(OpLoadConst, 0)
	top := b.NewLabel()
	b.Mark(top)
	b.Emit(OpLoadSelf)
	b.EmitJump(OpJump, top)
	b.Mark(end)
	b.Emit(OpReturn)

	want := []byte{
		byte(OpJumpIfFalse), 7,
		byte(OpLoadConst), 0,
		byte(OpLoadSelf),
		byte(OpJump), 4,
		byte(OpReturn),
	}
	if diff := cmp.Diff(want, b.Bytes()); diff != "" {
		t.Errorf("Bytes mismatch (-want +got):\n%s", diff)
	}
	if end.Unresolved() || top.Unresolved() {
		t.Error("labels should be resolved")
	}
}

func TestBuilderMarkTwicePanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("marking a label twice should panic")
		}
	}()
	b := NewBytecodeBuilder()
	l := b.NewLabel()
	b.Mark(l)
	b.Mark(l)
}

func TestDisassemble(t *testing.T) {
	b := NewBytecodeBuilder()
	b.EmitByte(OpLoadConst, 0)
	b.EmitSend(OpSend, 1, 0)
	b.EmitByte(OpSetupExcept, 9)
	b.Emit(OpReturn)

	got := Disassemble(b.Bytes(), []Value{Int(3), Symbol("succ")})
	want := strings.Join([]string{
		"0000  LOAD_CONST 0 (3)",
		"0002  SEND 1 0 (:succ)",
		"0005  SETUP_EXCEPT 9 (-> 0009)",
		"0007  RETURN",
	}, "\n")
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Disassemble mismatch (-want +got):\n%s", diff)
	}
}

func TestBytecodeReader(t *testing.T) {
	r := NewBytecodeReader([]byte{byte(OpSend), 4, 1})
	if op := r.ReadOpcode(); op != OpSend {
		t.Fatalf("ReadOpcode = %v, want SEND", op)
	}
	if a, b := r.ReadOperand(), r.ReadOperand(); a != 4 || b != 1 {
		t.Errorf("operands = %d %d, want 4 1", a, b)
	}
	if r.HasMore() || r.Position() != 3 {
		t.Errorf("position = %d, want the end", r.Position())
	}
	defer func() {
		if recover() == nil {
			t.Error("reading past the end should panic")
		}
	}()
	r.ReadOperand()
}
