package vm_test

import (
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/chazu/garnet/vm"
)

func TestClassCacheMemoizes(t *testing.T) {
	s, _ := newSpace(t, vm.Options{})
	if s.Classes.Len() != 0 {
		t.Fatalf("fresh space has %d cached classes, want 0", s.Classes.Len())
	}

	cls := s.Classes.Get(vm.ZeroDivisionErrorDef)
	if cls.Name != "ZeroDivisionError" || cls.Superclass.Name != "StandardError" {
		t.Errorf("built %s < %s", cls.Name, cls.Superclass.Name)
	}
	if s.Classes.Get(vm.ZeroDivisionErrorDef) != cls {
		t.Error("second Get returned a different class")
	}
	// ZeroDivisionError, StandardError, Exception and Object.
	if got := s.Classes.Len(); got != 4 {
		t.Errorf("Len = %d, want 4", got)
	}
	if c, ok := s.ObjectClass().Const("ZeroDivisionError"); !ok || c != vm.Value(cls) {
		t.Error("built class should be published as a constant of Object")
	}
}

func TestClassCacheConcurrentGet(t *testing.T) {
	s, _ := newSpace(t, vm.Options{})
	defs := []*vm.ClassDef{vm.IntegerDef, vm.StringDef, vm.ArrayDef, vm.TypeErrorDef}

	const workers = 16
	got := make([][]*vm.Class, workers)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for _, def := range defs {
				got[w] = append(got[w], s.Classes.Get(def))
			}
		}(w)
	}
	wg.Wait()

	for i, def := range defs {
		first := got[0][i]
		if first == nil || first.Name != def.Name {
			t.Fatalf("Get(%s) = %v", def.Name, first)
		}
		for w := 1; w < workers; w++ {
			if got[w][i] != first {
				t.Errorf("worker %d got a different %s", w, def.Name)
			}
		}
	}
}

func TestClassCacheSeparateSpaces(t *testing.T) {
	a, _ := newSpace(t, vm.Options{})
	b, _ := newSpace(t, vm.Options{})
	if a.Classes.Get(vm.StringDef) == b.Classes.Get(vm.StringDef) {
		t.Error("spaces should not share class objects")
	}
}

func TestModuleBuild(t *testing.T) {
	s, _ := newSpace(t, vm.Options{})
	kernel := s.Classes.Module(vm.KernelDef)
	if !kernel.IsModule {
		t.Error("Kernel should be a module")
	}
	if kernel.LookupSingleton("puts") == nil {
		t.Error("Kernel.puts should be a singleton method")
	}
	if s.ObjectClass().LookupMethod("puts") == nil {
		t.Error("Object should include Kernel#puts")
	}
	if s.ObjectClass().LookupMethod("loop") == nil {
		t.Error("Object should define loop from its app method")
	}
}

func TestIncludeCopiesModuleMethods(t *testing.T) {
	nop := func() vm.Value { return vm.Nil }
	mod := vm.NewModuleDef("Greeter")
	mod.Method("hello", nop)
	mod.SingletonMethod("only_on_module", nop)
	mod.Function("both", nop)

	def := vm.NewClassDef("Host", vm.ObjectDef)
	def.Method("own", nop)
	def.Include(mod)

	if diff := cmp.Diff([]string{"own", "hello", "both"}, def.MethodNames()); diff != "" {
		t.Errorf("method names mismatch (-want +got):\n%s", diff)
	}

	s, _ := newSpace(t, vm.Options{})
	cls := s.Classes.Get(def)
	for _, name := range def.MethodNames() {
		if cls.LookupMethod(name) == nil {
			t.Errorf("Host should have %s", name)
		}
	}
	if cls.LookupSingleton("only_on_module") != nil {
		t.Error("module singletons should not be copied into the class")
	}
}
