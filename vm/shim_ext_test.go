package vm_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/chazu/garnet/vm"
)

var calcDef = vm.NewClassDef("Calc", vm.ObjectDef)

var brokenDef = vm.NewClassDef("Broken", vm.ObjectDef)

func init() {
	calcDef.SingletonMethod("add", func(a, b int64) vm.Value { return vm.Int(a + b) },
		vm.P("a", vm.AsInt), vm.P("b", vm.AsInt))
	calcDef.SingletonMethod("greet", func(name, greeting string) vm.Value {
		if greeting == "" {
			greeting = "hello"
		}
		return vm.NewString(greeting + ", " + name)
	}, vm.P("name", vm.AsString), vm.Opt("greeting", vm.AsString))
	calcDef.SingletonMethod("count", func(args []vm.Value) vm.Value { return vm.Int(len(args)) },
		vm.P("args", vm.AsArgs))
	calcDef.SingletonMethod("half", func(x float64) vm.Value { return vm.Float(x / 2) },
		vm.P("x", vm.AsFloat))
	calcDef.SingletonMethod("name_of", func(sym vm.Symbol) vm.Value { return vm.NewString(string(sym)) },
		vm.P("name", vm.AsSymbol))
	calcDef.SingletonMethod("sum", func(items []vm.Value) (vm.Value, error) {
		var total vm.Int
		for _, item := range items {
			n, ok := item.(vm.Int)
			if !ok {
				return nil, errors.New("not a number")
			}
			total += n
		}
		return total, nil
	}, vm.P("items", vm.AsArray))
	calcDef.SingletonMethod("maybe", func(v vm.Value) vm.Value { return v }, vm.Opt("v", vm.AsValue))
	calcDef.Method("whoami", func(self *vm.Object) vm.Value { return vm.NewString(self.Class().Name) },
		vm.P("self", vm.AsSelf))

	brokenDef.Method("oops", func(n int64) vm.Value { return vm.Nil }, vm.P("n", vm.AsString))
}

func TestShimCalls(t *testing.T) {
	s, _ := newSpace(t, vm.Options{})
	s.Register(calcDef)
	calc := s.Classes.Get(calcDef)
	ip := s.NewInterpreter()

	tests := []struct {
		name   string
		method string
		args   []vm.Value
		want   vm.Value
	}{
		{"integers", "add", []vm.Value{vm.Int(2), vm.Int(3)}, vm.Int(5)},
		{"optional absent", "greet", []vm.Value{vm.NewString("bob")}, vm.NewString("hello, bob")},
		{"optional present", "greet", []vm.Value{vm.NewString("bob"), vm.NewString("hi")}, vm.NewString("hi, bob")},
		{"argument sequence", "count", []vm.Value{vm.Nil, vm.True, vm.Int(1)}, vm.Int(3)},
		{"empty argument sequence", "count", nil, vm.Int(0)},
		{"float from integer", "half", []vm.Value{vm.Int(3)}, vm.Float(1.5)},
		{"symbol from string", "name_of", []vm.Value{vm.NewString("abc")}, vm.NewString("abc")},
		{"array view", "sum", []vm.Value{vm.NewArray([]vm.Value{vm.Int(1), vm.Int(2)})}, vm.Int(3)},
		{"absent value is nil", "maybe", nil, vm.Nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ip.Send(calc, tt.method, tt.args, nil)
			if err != nil {
				t.Fatalf("Send: %v", err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("result mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestShimErrors(t *testing.T) {
	s, _ := newSpace(t, vm.Options{})
	s.Register(calcDef)
	calc := s.Classes.Get(calcDef)
	ip := s.NewInterpreter()

	tests := []struct {
		name   string
		method string
		args   []vm.Value
		class  string
		msg    string
	}{
		{"too many", "add", []vm.Value{vm.Int(1), vm.Int(2), vm.Int(3)}, "ArgumentError", "given 3, expected 2"},
		{"optional range", "greet", nil, "ArgumentError", "given 0, expected 1..2"},
		{"integer coercion", "add", []vm.Value{vm.Int(1), vm.NewString("2")}, "TypeError", "String into Integer"},
		{"string coercion", "greet", []vm.Value{vm.Int(1)}, "TypeError", "Integer into String"},
		{"float coercion", "half", []vm.Value{vm.Nil}, "TypeError", "NilClass can't be coerced into Float"},
		{"symbol coercion", "name_of", []vm.Value{vm.Int(1)}, "TypeError", "is not a symbol"},
		{"array coercion", "sum", []vm.Value{vm.Int(1)}, "TypeError", "Integer into Array"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ip.Send(calc, tt.method, tt.args, nil)
			e := expectRaise(t, err, tt.class)
			if !strings.Contains(e.Value.Message, tt.msg) {
				t.Errorf("message = %q, want it to contain %q", e.Value.Message, tt.msg)
			}
		})
	}
}

func TestHostErrorBecomesRuntimeError(t *testing.T) {
	s, _ := newSpace(t, vm.Options{})
	s.Register(calcDef)
	_, err := run(t, s, `
	LOAD_SCOPE
	LOAD_CONSTANT :Calc
	LOAD_CONST $nil
	BUILD_ARRAY 1
	SEND :sum 1
	RETURN
`)
	e := expectRaise(t, err, "RuntimeError")
	if e.Value.Message != "not a number" {
		t.Errorf("message = %q, want not a number", e.Value.Message)
	}
}

func TestShimReceiverMismatch(t *testing.T) {
	s, _ := newSpace(t, vm.Options{})
	calc := s.Classes.Get(calcDef)
	ip := s.NewInterpreter()

	m := calc.LookupMethod("whoami")
	if m == nil {
		t.Fatal("whoami not installed")
	}
	got, err := m.Call(ip, vm.NewObject(calc), nil, nil)
	if err != nil || cmp.Diff(vm.Value(vm.NewString("Calc")), got) != "" {
		t.Errorf("whoami = %v, %v", got, err)
	}

	_, err = m.Call(ip, vm.Int(1), nil, nil)
	expectRaise(t, err, "TypeError")
}

func TestBadSpecificationHaltsSpace(t *testing.T) {
	s, _ := newSpace(t, vm.Options{})
	s.Register(brokenDef)
	_, err := run(t, s, "LOAD_SCOPE\nLOAD_CONSTANT :Broken\nRETURN")
	if !errors.Is(err, vm.ErrInternal) {
		t.Errorf("error = %v, want ErrInternal", err)
	}
	if !s.Halted() {
		t.Error("space should be halted")
	}
}
