// Package vm implements the garnet bytecode engine.
//
// This package contains:
//   - Value representation and the object space
//   - Frames, handler blocks and exception unwinding
//   - The bytecode interpreter
//   - Native class registration with reflection-built call shims
//   - Builtin class implementations
package vm
