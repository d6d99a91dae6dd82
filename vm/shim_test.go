package vm

import "testing"

func TestBuildShimRejectsBadSpecifications(t *testing.T) {
	tests := []struct {
		name   string
		impl   interface{}
		params []Param
	}{
		{"not a function", 42, nil},
		{"variadic", func(args ...Value) Value { return Nil }, []Param{P("args", AsArgs)}},
		{"parameter count", func(a int64) Value { return Nil }, nil},
		{"rule type mismatch", func(a int64) Value { return Nil }, []Param{P("a", AsString)}},
		{"self type", func(self string) Value { return Nil }, []Param{P("self", AsSelf)}},
		{"unknown rule", func(a Value) Value { return Nil }, []Param{{Name: "a", Rule: Rule(99)}}},
		{"required after optional", func(a, b int64) Value { return Nil },
			[]Param{Opt("a", AsInt), P("b", AsInt)}},
		{"no result", func() {}, nil},
		{"non-value result", func() int { return 0 }, nil},
		{"second result not error", func() (Value, bool) { return Nil, true }, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			expectInternalPanic(t, func() {
				buildShim("Test#m", methodDef{name: "m", impl: tt.impl, params: tt.params})
			})
		})
	}
}

func TestBuildShimAcceptsValidSpecifications(t *testing.T) {
	defs := []methodDef{
		{name: "plain", impl: func() Value { return Nil }},
		{name: "errors", impl: func() (Value, error) { return Nil, nil }},
		{name: "mixed", impl: func(ip *Interpreter, self *String, n int, s string, rest []Value, blk *Block) Value {
			return Nil
		}, params: []Param{P("ip", AsInterp), P("self", AsSelf), P("n", AsInt), Opt("s", AsString),
			P("rest", AsArgs), P("blk", AsBlock)}},
		{name: "symbol", impl: func(s *Space, name Symbol) Value { return name },
			params: []Param{P("space", AsSpace), P("name", AsSymbol)}},
	}
	for _, m := range defs {
		if b := buildShim("Test#"+m.name, m); b.Name() != m.name {
			t.Errorf("shim name = %q, want %q", b.Name(), m.name)
		}
	}
}

func TestRuleString(t *testing.T) {
	if AsInt.String() != "as-integer" || AsBlock.String() != "block-argument" {
		t.Errorf("unexpected rule names %s, %s", AsInt, AsBlock)
	}
	if got := Rule(99).String(); got != "rule(99)" {
		t.Errorf("Rule(99) = %q", got)
	}
}

func TestEveryPositionalRuleHasACoercion(t *testing.T) {
	for r := AsInt; r <= AsSpace; r++ {
		if _, ok := coercions[r]; ok != r.positional() {
			t.Errorf("%s: coercion present = %v, positional = %v", r, ok, r.positional())
		}
	}
}
