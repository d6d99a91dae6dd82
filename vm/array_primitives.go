package vm

import "strings"

// ---------------------------------------------------------------------------
// Array and Range
// ---------------------------------------------------------------------------

var (
	ArrayDef = NewClassDef("Array", ObjectDef)
	RangeDef = NewClassDef("Range", ObjectDef)
)

const eachSource = `
	LOAD_SCOPE
	LOAD_CONST :each
	LOAD_CONST :each
	LOAD_CONST @each
	BUILD_FUNCTION
	DEFINE_FUNCTION
	RETURN

.code each
.locals 1
	LOAD_CONST $0
	STORE_LOCAL 0
	DISCARD_TOP
check:
	LOAD_LOCAL 0
	LOAD_SELF
	SEND :length 0
	SEND :< 1
	JUMP_IF_FALSE done
	LOAD_SELF
	LOAD_LOCAL 0
	SEND :[] 1
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
	self := P("self", AsSelf)

	ArrayDef.Method("length", func(a *Array) Value { return Int(len(a.Items)) }, self)
	ArrayDef.Method("size", func(a *Array) Value { return Int(len(a.Items)) }, self)
	ArrayDef.Method("empty?", func(a *Array) Value { return Bool(len(a.Items) == 0) }, self)
	ArrayDef.Method("[]", func(a *Array, i int64) Value {
		if idx, ok := normIndex(i, len(a.Items)); ok {
			return a.Items[idx]
		}
		return Nil
	}, self, P("index", AsInt))
	ArrayDef.Method("[]=", arraySet, P("space", AsSpace), self, P("index", AsInt), P("value", AsValue))
	ArrayDef.Method("<<", func(a *Array, v Value) Value {
		a.Items = append(a.Items, v)
		return a
	}, self, P("value", AsValue))
	ArrayDef.Method("push", func(a *Array, vs []Value) Value {
		a.Items = append(a.Items, vs...)
		return a
	}, self, P("values", AsArgs))
	ArrayDef.Method("+", func(a *Array, other []Value) Value {
		items := make([]Value, 0, len(a.Items)+len(other))
		return NewArray(append(append(items, a.Items...), other...))
	}, self, P("other", AsArray))
	ArrayDef.Method("first", func(a *Array) Value {
		if len(a.Items) == 0 {
			return Nil
		}
		return a.Items[0]
	}, self)
	ArrayDef.Method("last", func(a *Array) Value {
		if len(a.Items) == 0 {
			return Nil
		}
		return a.Items[len(a.Items)-1]
	}, self)
	ArrayDef.Method("to_a", func(a *Array) Value { return a }, self)
	ArrayDef.Method("join", arrayJoin, P("ip", AsInterp), self, Opt("separator", AsString))
	ArrayDef.Method("include?", arrayInclude, P("ip", AsInterp), self, P("value", AsValue))
	ArrayDef.Method("==", func(ip *Interpreter, a *Array, other Value) (Value, error) {
		b, ok := other.(*Array)
		if !ok || len(a.Items) != len(b.Items) {
			return False, nil
		}
		for i := range a.Items {
			eq, err := ip.Send(a.Items[i], "==", []Value{b.Items[i]}, nil)
			if err != nil {
				return nil, err
			}
			if !IsTruthy(eq) {
				return False, nil
			}
		}
		return True, nil
	}, P("ip", AsInterp), self, P("other", AsValue))
	ArrayDef.Method("map", arrayMap, P("ip", AsInterp), self, P("block", AsBlock))
	ArrayDef.AppMethod(eachSource)

	RangeDef.Method("first", func(r *Range) Value { return r.Start }, self)
	RangeDef.Method("last", func(r *Range) Value { return r.End }, self)
	RangeDef.Method("exclude_end?", func(r *Range) Value { return Bool(r.Exclusive) }, self)
	RangeDef.Method("to_a", func(s *Space, r *Range) (Value, error) {
		items, err := rangeItems(s, r)
		if err != nil {
			return nil, err
		}
		return NewArray(items), nil
	}, P("space", AsSpace), self)
	RangeDef.Method("each", rangeEach, P("ip", AsInterp), self, P("block", AsBlock))
}

// normIndex resolves a possibly negative index against n items.
func normIndex(i int64, n int) (int, bool) {
	if i < 0 {
		i += int64(n)
	}
	if i < 0 || i >= int64(n) {
		return 0, false
	}
	return int(i), true
}

// arraySet grows the array with nils when writing past the end.
func arraySet(s *Space, a *Array, i int64, v Value) (Value, error) {
	if i < 0 {
		idx, ok := normIndex(i, len(a.Items))
		if !ok {
			return nil, s.Errorf(IndexErrorDef, "index %d too small for array; minimum: -%d", i, len(a.Items))
		}
		a.Items[idx] = v
		return v, nil
	}
	if i >= maxSize {
		return nil, s.Errorf(IndexErrorDef, "index %d too big", i)
	}
	if n := len(a.Items); int64(n) <= i {
		grown := make([]Value, i+1)
		copy(grown, a.Items)
		for j := n; j < len(grown); j++ {
			grown[j] = Nil
		}
		a.Items = grown
	}
	a.Items[i] = v
	return v, nil
}

func arrayJoin(ip *Interpreter, a *Array, sep string) (Value, error) {
	parts := make([]string, len(a.Items))
	for i, item := range a.Items {
		s, err := ip.toS(item)
		if err != nil {
			return nil, err
		}
		parts[i] = s
	}
	return NewString(strings.Join(parts, sep)), nil
}

func arrayInclude(ip *Interpreter, a *Array, v Value) (Value, error) {
	for _, item := range a.Items {
		eq, err := ip.Send(item, "==", []Value{v}, nil)
		if err != nil {
			return nil, err
		}
		if IsTruthy(eq) {
			return True, nil
		}
	}
	return False, nil
}

func arrayMap(ip *Interpreter, a *Array, block *Block) (Value, error) {
	if block == nil {
		return nil, ip.Space.Errorf(LocalJumpErrorDef, "no block given (yield)")
	}
	out := make([]Value, 0, len(a.Items))
	for i := 0; i < len(a.Items); i++ {
		v, err := ip.InvokeBlock(block, []Value{a.Items[i]})
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return NewArray(out), nil
}

// rangeBounds returns the integer bounds of r with the end made inclusive.
func rangeBounds(s *Space, r *Range) (int64, int64, error) {
	lo, ok1 := r.Start.(Int)
	hi, ok2 := r.End.(Int)
	if !ok1 || !ok2 {
		return 0, 0, s.TypeError("can't iterate from %s", s.ClassOf(r.Start).Name)
	}
	if r.Exclusive {
		hi--
	}
	return int64(lo), int64(hi), nil
}

func rangeItems(s *Space, r *Range) ([]Value, error) {
	lo, hi, err := rangeBounds(s, r)
	if err != nil {
		return nil, err
	}
	items := []Value{}
	for i := lo; i <= hi; i++ {
		items = append(items, Int(i))
	}
	return items, nil
}

func rangeEach(ip *Interpreter, r *Range, block *Block) (Value, error) {
	if block == nil {
		return nil, ip.Space.Errorf(LocalJumpErrorDef, "no block given (yield)")
	}
	lo, hi, err := rangeBounds(ip.Space, r)
	if err != nil {
		return nil, err
	}
	for i := lo; i <= hi; i++ {
		if _, err := ip.InvokeBlock(block, []Value{Int(i)}); err != nil {
			return nil, err
		}
	}
	return r, nil
}
