package vm

import (
	"strconv"
	"strings"
)

// ---------------------------------------------------------------------------
// String and Symbol
// ---------------------------------------------------------------------------

var (
	StringDef = NewClassDef("String", ObjectDef)
	SymbolDef = NewClassDef("Symbol", ObjectDef)
)

func init() {
	self := P("self", AsSelf)

	StringDef.Method("+", func(a *String, b string) Value { return NewString(a.S + b) },
		self, P("other", AsString))
	StringDef.Method("<<", func(a *String, b string) Value {
		a.S += b
		return a
	}, self, P("other", AsString))
	StringDef.Method("*", func(s *Space, a *String, n int64) (Value, error) {
		if n < 0 {
			return nil, s.Errorf(ArgumentErrorDef, "negative argument")
		}
		if n > 0 && int64(len(a.S)) > maxSize/n {
			return nil, s.Errorf(ArgumentErrorDef, "argument too big")
		}
		return NewString(strings.Repeat(a.S, int(n))), nil
	}, P("space", AsSpace), self, P("count", AsInt))
	StringDef.Method("==", func(a *String, b Value) Value {
		other, ok := b.(*String)
		return Bool(ok && other.S == a.S)
	}, self, P("other", AsValue))
	StringDef.Method("length", stringLength, self)
	StringDef.Method("size", stringLength, self)
	StringDef.Method("empty?", func(a *String) Value { return Bool(a.S == "") }, self)
	StringDef.Method("upcase", func(a *String) Value { return NewString(strings.ToUpper(a.S)) }, self)
	StringDef.Method("downcase", func(a *String) Value { return NewString(strings.ToLower(a.S)) }, self)
	StringDef.Method("to_s", func(a *String) Value { return a }, self)
	StringDef.Method("to_sym", func(a *String) Value { return Symbol(a.S) }, self)
	StringDef.Method("to_i", func(a *String) Value { return Int(leadingInt(a.S)) }, self)
	StringDef.Method("to_f", func(a *String) Value { return Float(leadingFloat(a.S)) }, self)

	SymbolDef.Method("to_s", func(sym Symbol) Value { return NewString(string(sym)) }, self)
	SymbolDef.Method("to_sym", func(sym Symbol) Value { return sym }, self)
	SymbolDef.Method("length", func(sym Symbol) Value { return Int(len(sym)) }, self)
}

func stringLength(a *String) Value {
	return Int(len([]rune(a.S)))
}

// leadingInt parses the longest integer prefix, ignoring leading blanks.
// Text without one converts to zero.
func leadingInt(s string) int64 {
	s = strings.TrimLeft(s, " \t\n")
	end := 0
	if end < len(s) && (s[end] == '-' || s[end] == '+') {
		end++
	}
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	n, err := strconv.ParseInt(s[:end], 10, 64)
	if err != nil {
		return 0
	}
	return n
}

// leadingFloat is leadingInt for decimal fractions.
func leadingFloat(s string) float64 {
	s = strings.TrimLeft(s, " \t\n")
	for end := len(s); end > 0; end-- {
		if f, err := strconv.ParseFloat(s[:end], 64); err == nil {
			return f
		}
	}
	return 0
}
