package vm

import (
	"math"
	"strconv"
)

// ---------------------------------------------------------------------------
// Integer and Float
// ---------------------------------------------------------------------------

var (
	IntegerDef = NewClassDef("Integer", ObjectDef)
	FloatDef   = NewClassDef("Float", ObjectDef)
)

const timesSource = `
	LOAD_SCOPE
	LOAD_CONST :times
	LOAD_CONST :times
	LOAD_CONST @times
	BUILD_FUNCTION
	DEFINE_FUNCTION
	RETURN

.code times
.locals 1
	LOAD_CONST $0
	STORE_LOCAL 0
	DISCARD_TOP
check:
	LOAD_LOCAL 0
	LOAD_SELF
	SEND :< 1
	JUMP_IF_FALSE done
	LOAD_LOCAL 0
	YIELD 1
	DISCARD_TOP
	LOAD_LOCAL 0
	LOAD_CONST $1
	SEND :+ 1
	STORE_LOCAL 0
	DISCARD_TOP
	JUMP check
done:
	LOAD_SELF
	RETURN
.end
`

func init() {
	self, other := P("self", AsSelf), P("other", AsInt)

	// Arithmetic
	IntegerDef.Method("+", func(a Int, b int64) Value { return a + Int(b) }, self, other)
	IntegerDef.Method("-", func(a Int, b int64) Value { return a - Int(b) }, self, other)
	IntegerDef.Method("*", func(a Int, b int64) Value { return a * Int(b) }, self, other)
	IntegerDef.Method("/", intDiv, P("space", AsSpace), self, other)
	IntegerDef.Method("%", intMod, P("space", AsSpace), self, other)
	IntegerDef.Method("-@", func(a Int) Value { return -a }, self)

	// Comparison
	IntegerDef.Method("<", func(a Int, b int64) Value { return Bool(a < Int(b)) }, self, other)
	IntegerDef.Method(">", func(a Int, b int64) Value { return Bool(a > Int(b)) }, self, other)
	IntegerDef.Method("<=", func(a Int, b int64) Value { return Bool(a <= Int(b)) }, self, other)
	IntegerDef.Method(">=", func(a Int, b int64) Value { return Bool(a >= Int(b)) }, self, other)
	IntegerDef.Method("==", func(a Int, b Value) Value {
		switch b := b.(type) {
		case Int:
			return Bool(a == b)
		case Float:
			return Bool(Float(a) == b)
		}
		return False
	}, self, P("other", AsValue))

	// Conversion
	IntegerDef.Method("to_s", func(a Int) Value { return NewString(strconv.FormatInt(int64(a), 10)) }, self)
	IntegerDef.Method("to_i", func(a Int) Value { return a }, self)
	IntegerDef.Method("to_f", func(a Int) Value { return Float(a) }, self)
	IntegerDef.Method("succ", func(a Int) Value { return a + 1 }, self)
	IntegerDef.Method("zero?", func(a Int) Value { return Bool(a == 0) }, self)
	IntegerDef.AppMethod(timesSource)

	fother := P("other", AsFloat)
	FloatDef.Method("+", func(a Float, b float64) Value { return a + Float(b) }, self, fother)
	FloatDef.Method("-", func(a Float, b float64) Value { return a - Float(b) }, self, fother)
	FloatDef.Method("*", func(a Float, b float64) Value { return a * Float(b) }, self, fother)
	FloatDef.Method("/", func(a Float, b float64) Value { return a / Float(b) }, self, fother)
	FloatDef.Method("-@", func(a Float) Value { return -a }, self)
	FloatDef.Method("<", func(a Float, b float64) Value { return Bool(float64(a) < b) }, self, fother)
	FloatDef.Method(">", func(a Float, b float64) Value { return Bool(float64(a) > b) }, self, fother)
	FloatDef.Method("<=", func(a Float, b float64) Value { return Bool(float64(a) <= b) }, self, fother)
	FloatDef.Method(">=", func(a Float, b float64) Value { return Bool(float64(a) >= b) }, self, fother)
	FloatDef.Method("==", func(a Float, b Value) Value {
		switch b := b.(type) {
		case Float:
			return Bool(a == b)
		case Int:
			return Bool(a == Float(b))
		}
		return False
	}, self, P("other", AsValue))
	FloatDef.Method("to_s", func(a Float) Value { return NewString(a.Inspect()) }, self)
	FloatDef.Method("to_f", func(a Float) Value { return a }, self)
	FloatDef.Method("to_i", floatToI, P("space", AsSpace), self)
	FloatDef.Method("floor", func(a Float) Value { return Int(math.Floor(float64(a))) }, self)
}

// intDiv floors toward negative infinity.
func intDiv(s *Space, a Int, b int64) (Value, error) {
	if b == 0 {
		return nil, s.Errorf(ZeroDivisionErrorDef, "divided by 0")
	}
	q := int64(a) / b
	if (int64(a)%b != 0) && ((int64(a) < 0) != (b < 0)) {
		q--
	}
	return Int(q), nil
}

// intMod takes the sign of the divisor.
func intMod(s *Space, a Int, b int64) (Value, error) {
	if b == 0 {
		return nil, s.Errorf(ZeroDivisionErrorDef, "divided by 0")
	}
	m := int64(a) % b
	if m != 0 && ((m < 0) != (b < 0)) {
		m += b
	}
	return Int(m), nil
}

func floatToI(s *Space, a Float) (Value, error) {
	f := float64(a)
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, s.Errorf(RangeErrorDef, "%s", a.Inspect())
	}
	return Int(math.Trunc(f)), nil
}
