// Package wire is the on-disk encoding of bytecode units: canonical CBOR
// wrapped in a small header, so the same unit always encodes to the same
// bytes and can be addressed by its hash.
package wire

import (
	"errors"
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"github.com/chazu/garnet/vm"
)

// Magic opens every encoded unit file.
const Magic = "GRBC"

// Version is the current encoding version.
const Version = 1

// ErrBadMagic is returned when decoding data that is not a unit file.
var ErrBadMagic = errors.New("wire: not a garnet bytecode file")

var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("wire: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

// ---------------------------------------------------------------------------
// Encoded forms
// ---------------------------------------------------------------------------

type file struct {
	Magic   string `cbor:"1,keyasint"`
	Version int    `cbor:"2,keyasint"`
	Unit    *unit  `cbor:"3,keyasint"`
}

type unit struct {
	Name      string  `cbor:"1,keyasint"`
	Code      []byte  `cbor:"2,keyasint"`
	Consts    []konst `cbor:"3,keyasint,omitempty"`
	NumLocals int     `cbor:"4,keyasint,omitempty"`
	NumCells  int     `cbor:"5,keyasint,omitempty"`
	NumFree   int     `cbor:"6,keyasint,omitempty"`
	Arity     int     `cbor:"7,keyasint,omitempty"`
}

// ConstKind tags an encoded constant.
type ConstKind uint8

const (
	ConstNil ConstKind = iota
	ConstTrue
	ConstFalse
	ConstInt
	ConstFloat
	ConstSymbol
	ConstString
	ConstCode
)

type konst struct {
	Kind  ConstKind `cbor:"1,keyasint"`
	Int   int64     `cbor:"2,keyasint,omitempty"`
	Float float64   `cbor:"3,keyasint,omitempty"`
	Str   string    `cbor:"4,keyasint,omitempty"`
	Code  *unit     `cbor:"5,keyasint,omitempty"`
}

// ---------------------------------------------------------------------------
// Marshal / Unmarshal
// ---------------------------------------------------------------------------

// MarshalUnit serializes u and its nested units.
func MarshalUnit(u *vm.Unit) ([]byte, error) {
	wu, err := encodeUnit(u, 0)
	if err != nil {
		return nil, err
	}
	return cborEncMode.Marshal(&file{Magic: Magic, Version: Version, Unit: wu})
}

// UnmarshalUnit decodes and validates a unit.
func UnmarshalUnit(data []byte) (*vm.Unit, error) {
	var f file
	if err := cbor.Unmarshal(data, &f); err != nil {
		if len(data) == 0 || data[0]>>5 != 5 { // not a CBOR map
			return nil, ErrBadMagic
		}
		return nil, fmt.Errorf("wire: unmarshal unit: %w", err)
	}
	if f.Magic != Magic {
		return nil, ErrBadMagic
	}
	if f.Version != Version {
		return nil, fmt.Errorf("wire: unsupported version %d (want %d)", f.Version, Version)
	}
	if f.Unit == nil {
		return nil, fmt.Errorf("wire: file has no unit")
	}
	u, err := decodeUnit(f.Unit, 0)
	if err != nil {
		return nil, err
	}
	if err := u.Validate(); err != nil {
		return nil, err
	}
	return u, nil
}

// maxNesting bounds nested code constants.
const maxNesting = 64

func encodeUnit(u *vm.Unit, depth int) (*unit, error) {
	if depth > maxNesting {
		return nil, fmt.Errorf("wire: %s nests deeper than %d", u.Name, maxNesting)
	}
	wu := &unit{
		Name:      u.Name,
		Code:      u.Code,
		NumLocals: u.NumLocals,
		NumCells:  u.NumCells,
		NumFree:   u.NumFree,
		Arity:     u.Arity,
	}
	for i, c := range u.Consts {
		var k konst
		switch c := c.(type) {
		case vm.NilType:
			k.Kind = ConstNil
		case vm.Bool:
			k.Kind = ConstFalse
			if c {
				k.Kind = ConstTrue
			}
		case vm.Int:
			k.Kind, k.Int = ConstInt, int64(c)
		case vm.Float:
			k.Kind, k.Float = ConstFloat, float64(c)
		case vm.Symbol:
			k.Kind, k.Str = ConstSymbol, string(c)
		case *vm.String:
			k.Kind, k.Str = ConstString, c.S
		case *vm.Unit:
			nested, err := encodeUnit(c, depth+1)
			if err != nil {
				return nil, err
			}
			k.Kind, k.Code = ConstCode, nested
		default:
			return nil, fmt.Errorf("wire: %s: constant %d (%s) cannot be encoded", u.Name, i, vm.Inspect(c))
		}
		wu.Consts = append(wu.Consts, k)
	}
	return wu, nil
}

func decodeUnit(wu *unit, depth int) (*vm.Unit, error) {
	if depth > maxNesting {
		return nil, fmt.Errorf("wire: %s nests deeper than %d", wu.Name, maxNesting)
	}
	u := &vm.Unit{
		Name:      wu.Name,
		Code:      wu.Code,
		NumLocals: wu.NumLocals,
		NumCells:  wu.NumCells,
		NumFree:   wu.NumFree,
		Arity:     wu.Arity,
	}
	if u.Code == nil {
		u.Code = []byte{}
	}
	for i, k := range wu.Consts {
		var v vm.Value
		switch k.Kind {
		case ConstNil:
			v = vm.Nil
		case ConstTrue:
			v = vm.True
		case ConstFalse:
			v = vm.False
		case ConstInt:
			v = vm.Int(k.Int)
		case ConstFloat:
			v = vm.Float(k.Float)
		case ConstSymbol:
			v = vm.Symbol(k.Str)
		case ConstString:
			v = vm.NewString(k.Str)
		case ConstCode:
			if k.Code == nil {
				return nil, fmt.Errorf("wire: %s: constant %d has no code", wu.Name, i)
			}
			nested, err := decodeUnit(k.Code, depth+1)
			if err != nil {
				return nil, err
			}
			v = nested
		default:
			return nil, fmt.Errorf("wire: %s: constant %d has unknown kind %d", wu.Name, i, k.Kind)
		}
		u.Consts = append(u.Consts, v)
	}
	return u, nil
}
