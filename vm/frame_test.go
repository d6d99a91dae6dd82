package vm

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func newTestFrame() *Frame {
	return NewFrame(&Unit{Name: "test", NumLocals: 2, NumCells: 1}, Nil, nil, nil, nil)
}

func expectInternalPanic(t *testing.T, fn func()) {
	t.Helper()
	defer func() {
		r := recover()
		if _, ok := r.(*InternalError); !ok {
			t.Errorf("recovered %v, want *InternalError", r)
		}
	}()
	fn()
}

func TestNewFrame(t *testing.T) {
	captured := NewCell()
	f := NewFrame(&Unit{Name: "blk", NumLocals: 2, NumCells: 1, NumFree: 1}, Int(1), nil, nil, []*Cell{captured})

	for i, v := range f.Locals {
		if v != Nil {
			t.Errorf("Locals[%d] = %v, want nil", i, v)
		}
	}
	if len(f.Cells) != 2 {
		t.Fatalf("len(Cells) = %d, want 2", len(f.Cells))
	}
	if f.Cells[0] == nil || f.Cells[0] == captured {
		t.Error("own cell should be fresh")
	}
	if f.Cells[1] != captured {
		t.Error("captured cell should follow own cells")
	}
}

func TestPopNReversed(t *testing.T) {
	f := newTestFrame()
	f.Push(Int(1))
	f.Push(Int(2))
	f.Push(Int(3))

	got := f.PopNReversed(2)
	if diff := cmp.Diff([]Value{Int(2), Int(3)}, got); diff != "" {
		t.Errorf("PopNReversed mismatch (-want +got):\n%s", diff)
	}
	if f.StackDepth() != 1 {
		t.Errorf("StackDepth = %d, want 1", f.StackDepth())
	}
	if got := f.PopNReversed(0); got != nil {
		t.Errorf("PopNReversed(0) = %v, want nil", got)
	}
}

func TestPopEmptyPanics(t *testing.T) {
	f := newTestFrame()
	expectInternalPanic(t, func() { f.Pop() })
	expectInternalPanic(t, func() { f.Peek() })
}

func TestPushBlock(t *testing.T) {
	f := newTestFrame()
	f.Push(Int(1))

	f.PushBlock(ExceptBlock, 7)
	except := f.LastBlock()
	if except.Depth != 2 || except.TargetPC != 7 || except.Mask != KindApplicationException {
		t.Errorf("except block = %+v", except)
	}

	f.PushBlock(FinallyBlock, 9)
	finally := f.LastBlock()
	if finally.Prev() != except {
		t.Error("finally block should chain to the except block")
	}
	if finally.Mask&KindReturnValue == 0 || finally.Mask&KindApplicationException == 0 {
		t.Errorf("finally mask %b should intercept every kind", finally.Mask)
	}
}

func TestPopBelowWatermarkPanics(t *testing.T) {
	f := newTestFrame()
	f.Push(Int(1))
	f.PushBlock(ExceptBlock, 0)
	expectInternalPanic(t, func() { f.Pop() })
}

func TestPopBlockWithoutBlockPanics(t *testing.T) {
	f := newTestFrame()
	expectInternalPanic(t, func() { f.PopBlock() })
}

func TestUnrollStackEmptyChain(t *testing.T) {
	f := newTestFrame()
	if b := f.UnrollStack(KindApplicationException); b != nil {
		t.Errorf("UnrollStack = %+v, want nil", b)
	}
}

func TestUnrollStackCleansSkippedBlocks(t *testing.T) {
	f := newTestFrame()
	f.Push(Symbol("x"))
	f.PushBlock(FinallyBlock, 10)
	f.PushBlock(ExceptBlock, 20)
	f.Push(Symbol("a"))
	f.Push(Symbol("b"))

	b := f.UnrollStack(KindReturnValue)
	if b == nil || b.Kind != FinallyBlock {
		t.Fatalf("UnrollStack = %+v, want the finally block", b)
	}
	if f.LastBlock() != nil {
		t.Error("matching block should be removed from the chain")
	}
	want := []Value{Symbol("x"), Symbol("a")}
	if diff := cmp.Diff(want, f.PopNReversed(f.StackDepth())); diff != "" {
		t.Errorf("stack mismatch (-want +got):\n%s", diff)
	}
}

func TestCleanupPushesPlaceholderForFinally(t *testing.T) {
	f := newTestFrame()
	f.PushBlock(FinallyBlock, 3)
	f.Push(Int(5))
	f.Push(Int(6))

	f.PopBlock().cleanup(f)
	want := []Value{Int(5), Nil}
	if diff := cmp.Diff(want, f.PopNReversed(f.StackDepth())); diff != "" {
		t.Errorf("stack mismatch (-want +got):\n%s", diff)
	}
}

func TestHandleLayout(t *testing.T) {
	exc := &Exception{Message: "boom"}

	t.Run("except block receives the exception", func(t *testing.T) {
		f := newTestFrame()
		f.PushBlock(ExceptBlock, 5)
		u := &ApplicationException{Err: &Error{Value: exc}}

		pc := f.UnrollStack(KindApplicationException).handle(f, u)
		if pc != 5 {
			t.Errorf("pc = %d, want 5", pc)
		}
		got := f.PopNReversed(f.StackDepth())
		if len(got) != 2 || got[0] != Value(u) || got[1] != Value(exc) {
			t.Errorf("stack = %v, want [unroller exception]", got)
		}
	})

	t.Run("finally block receives a placeholder", func(t *testing.T) {
		f := newTestFrame()
		f.PushBlock(FinallyBlock, 8)
		u := &ReturnValue{Value: Int(1)}

		pc := f.UnrollStack(KindReturnValue).handle(f, u)
		if pc != 8 {
			t.Errorf("pc = %d, want 8", pc)
		}
		got := f.PopNReversed(f.StackDepth())
		if len(got) != 2 || got[0] != Value(u) || got[1] != Nil {
			t.Errorf("stack = %v, want [unroller nil]", got)
		}
	})
}
