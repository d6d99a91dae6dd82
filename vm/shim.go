package vm

import (
	"fmt"
	"reflect"
)

// ---------------------------------------------------------------------------
// Coercion rules
// ---------------------------------------------------------------------------

// Rule says how one declared parameter of a host method is produced.
type Rule uint8

const (
	AsInt    Rule = iota + 1 // Integer argument -> Go signed integer
	AsString                 // String argument -> string
	AsFloat                  // argument.to_f -> float64
	AsSymbol                 // Symbol or String argument -> Symbol/string
	AsValue                  // argument passed through as a Value
	AsArray                  // Array argument -> []Value list view
	AsSelf                   // the receiver, type-asserted to the parameter type
	AsArgs                   // every positional argument as []Value
	AsBlock                  // the block argument as *Block (nil if none)
	AsInterp                 // the calling *Interpreter
	AsSpace                  // the *Space
)

var ruleNames = map[Rule]string{
	AsInt:    "as-integer",
	AsString: "as-string",
	AsFloat:  "as-float",
	AsSymbol: "as-symbol",
	AsValue:  "pass-through",
	AsArray:  "as-array",
	AsSelf:   "receiver-self",
	AsArgs:   "argument-sequence",
	AsBlock:  "block-argument",
	AsInterp: "interpreter-context",
	AsSpace:  "object-space-context",
}

func (r Rule) String() string {
	if name, ok := ruleNames[r]; ok {
		return name
	}
	return fmt.Sprintf("rule(%d)", uint8(r))
}

// positional reports whether the rule consumes one call argument.
func (r Rule) positional() bool {
	switch r {
	case AsInt, AsString, AsFloat, AsSymbol, AsValue, AsArray:
		return true
	}
	return false
}

// Param is one entry of an argument specification.
type Param struct {
	Name     string
	Rule     Rule
	Optional bool // absent trailing arguments become the zero value (nil for Value)
}

// P declares a required parameter.
func P(name string, rule Rule) Param {
	return Param{Name: name, Rule: rule}
}

// Opt declares an optional parameter.
func Opt(name string, rule Rule) Param {
	return Param{Name: name, Rule: rule, Optional: true}
}

// coercion converts one argument to its host form or fails with a
// catchable exception.
type coercion func(ip *Interpreter, v Value) (interface{}, error)

// coercions is filled in init: the coercers raise through the class cache,
// which builds shims that read this table.
var coercions map[Rule]coercion

func init() {
	coercions = map[Rule]coercion{
		AsInt:    coerceInt,
		AsString: coerceString,
		AsFloat:  coerceFloat,
		AsSymbol: coerceSymbol,
		AsValue:  func(_ *Interpreter, v Value) (interface{}, error) { return v, nil },
		AsArray:  func(ip *Interpreter, v Value) (interface{}, error) { return ip.Space.ListView(v) },
	}
}

func coerceInt(ip *Interpreter, v Value) (interface{}, error) {
	if i, ok := v.(Int); ok {
		return int64(i), nil
	}
	return nil, ip.Space.TypeError("no implicit conversion of %s into Integer", ip.Space.ClassOf(v).Name)
}

func coerceString(ip *Interpreter, v Value) (interface{}, error) {
	if s, ok := v.(*String); ok {
		return s.S, nil
	}
	return nil, ip.Space.TypeError("no implicit conversion of %s into String", ip.Space.ClassOf(v).Name)
}

func coerceFloat(ip *Interpreter, v Value) (interface{}, error) {
	if !ip.Space.RespondTo(v, "to_f") {
		return nil, ip.Space.TypeError("%s can't be coerced into Float", ip.Space.ClassOf(v).Name)
	}
	res, err := ip.Send(v, "to_f", nil, nil)
	if err != nil {
		return nil, err
	}
	f, ok := res.(Float)
	if !ok {
		return nil, ip.Space.TypeError("can't convert %s to Float (to_f gives %s)",
			ip.Space.ClassOf(v).Name, ip.Space.ClassOf(res).Name)
	}
	return float64(f), nil
}

func coerceSymbol(ip *Interpreter, v Value) (interface{}, error) {
	switch v := v.(type) {
	case Symbol:
		return v, nil
	case *String:
		return Symbol(v.S), nil
	}
	return nil, ip.Space.TypeError("%s is not a symbol", Inspect(v))
}

// ---------------------------------------------------------------------------
// Shim construction
// ---------------------------------------------------------------------------

var (
	valueType       = reflect.TypeOf((*Value)(nil)).Elem()
	errorType       = reflect.TypeOf((*error)(nil)).Elem()
	valueSliceType  = reflect.TypeOf([]Value(nil))
	blockType       = reflect.TypeOf((*Block)(nil))
	interpreterType = reflect.TypeOf((*Interpreter)(nil))
	spaceType       = reflect.TypeOf((*Space)(nil))
)

// accepts reports whether a Go parameter of type t can receive rule's output.
func (r Rule) accepts(t reflect.Type) bool {
	switch r {
	case AsInt:
		switch t.Kind() {
		case reflect.Int, reflect.Int64:
			return true
		}
	case AsString, AsSymbol:
		return t.Kind() == reflect.String
	case AsFloat:
		return t.Kind() == reflect.Float64
	case AsValue:
		return t == valueType
	case AsSelf:
		return t.Implements(valueType)
	case AsArgs, AsArray:
		return t == valueSliceType
	case AsBlock:
		return t == blockType
	case AsInterp:
		return t == interpreterType
	case AsSpace:
		return t == spaceType
	}
	return false
}

// buildShim generates the call adapter for one declared method. A
// specification that does not fit its implementation is a registration
// bug and panics.
func buildShim(where string, m methodDef) *Builtin {
	fv := reflect.ValueOf(m.impl)
	ft := fv.Type()
	if ft.Kind() != reflect.Func || ft.IsVariadic() {
		panic(internalErrorf("%s: implementation %s is not a plain function", where, ft))
	}
	if ft.NumIn() != len(m.params) {
		panic(internalErrorf("%s: %d parameters declared for a function taking %d", where, len(m.params), ft.NumIn()))
	}

	required, total, rest := 0, 0, false
	for i, p := range m.params {
		if _, known := ruleNames[p.Rule]; !known {
			panic(internalErrorf("%s: parameter %s uses unsupported coercion %s", where, p.Name, p.Rule))
		}
		if !p.Rule.accepts(ft.In(i)) {
			panic(internalErrorf("%s: parameter %s (%s) cannot receive %s", where, p.Name, p.Rule, ft.In(i)))
		}
		switch {
		case p.Rule == AsArgs:
			rest = true
		case p.Rule.positional():
			total++
			if !p.Optional {
				if required != total-1 {
					panic(internalErrorf("%s: required parameter %s follows an optional one", where, p.Name))
				}
				required++
			}
		}
	}
	if n := ft.NumOut(); n < 1 || n > 2 || !ft.Out(0).Implements(valueType) || (n == 2 && ft.Out(1) != errorType) {
		panic(internalErrorf("%s: implementation must return (Value) or (Value, error), not %s", where, ft))
	}

	params := m.params
	return NewBuiltin(m.name, func(ip *Interpreter, self Value, args []Value, block *Block) (Value, error) {
		if !rest && (len(args) < required || len(args) > total) {
			if required == total {
				return nil, ip.Space.ArgumentError(len(args), required)
			}
			return nil, ip.Space.Errorf(ArgumentErrorDef,
				"wrong number of arguments (given %d, expected %d..%d)", len(args), required, total)
		}

		in := make([]reflect.Value, len(params))
		pos := 0
		for i, p := range params {
			t := ft.In(i)
			switch p.Rule {
			case AsSelf:
				if self == nil || !reflect.TypeOf(self).AssignableTo(t) {
					return nil, ip.Space.TypeError("%s called on %s, not %s", where, Inspect(self), t)
				}
				in[i] = reflect.ValueOf(self)
			case AsArgs:
				in[i] = reflect.ValueOf(args)
			case AsBlock:
				in[i] = reflect.ValueOf(block)
			case AsInterp:
				in[i] = reflect.ValueOf(ip)
			case AsSpace:
				in[i] = reflect.ValueOf(ip.Space)
			default:
				if pos >= len(args) {
					in[i] = zeroFor(t)
					continue
				}
				hv, err := coercions[p.Rule](ip, args[pos])
				pos++
				if err != nil {
					return nil, err
				}
				if hv == nil {
					in[i] = zeroFor(t)
					continue
				}
				in[i] = reflect.ValueOf(hv).Convert(t)
			}
		}
		return unpackResult(fv.Call(in))
	})
}

func zeroFor(t reflect.Type) reflect.Value {
	v := reflect.New(t).Elem()
	if t == valueType {
		v.Set(reflect.ValueOf(Nil))
	}
	return v
}

func unpackResult(out []reflect.Value) (Value, error) {
	if len(out) == 2 && !out[1].IsNil() {
		return nil, out[1].Interface().(error)
	}
	res := out[0]
	switch res.Kind() {
	case reflect.Ptr, reflect.Interface, reflect.Map, reflect.Slice:
		if res.IsNil() {
			return Nil, nil
		}
	}
	return res.Interface().(Value), nil
}
