package vm

import (
	"sort"
	"sync"
)

// ---------------------------------------------------------------------------
// Class: classes and modules
// ---------------------------------------------------------------------------

// Class is a class or, with IsModule set, a module. Classes carry an
// instance method table, a singleton (class-side) method table inherited
// along the superclass chain, and a constant table.
//
// A Class belongs to one Space. Its method tables are not safe for
// concurrent mutation; its constants are, since concurrent class builds
// publish into Object.
type Class struct {
	ivarTable
	Name       string
	Superclass *Class
	IsModule   bool

	methods   map[string]Method
	singleton map[string]Method

	constMu   sync.RWMutex
	constants map[string]Value
}

// NewClass creates a class under superclass (nil for a root).
func NewClass(name string, superclass *Class) *Class {
	return &Class{
		Name:       name,
		Superclass: superclass,
		methods:    make(map[string]Method),
		singleton:  make(map[string]Method),
		constants:  make(map[string]Value),
	}
}

// NewModule creates a module.
func NewModule(name string) *Class {
	m := NewClass(name, nil)
	m.IsModule = true
	return m
}

func (c *Class) Inspect() string { return c.Name }

// IsSubclassOf returns true if c is a subclass of other (or is the same class).
func (c *Class) IsSubclassOf(other *Class) bool {
	for current := c; current != nil; current = current.Superclass {
		if current == other {
			return true
		}
	}
	return false
}

// ---------------------------------------------------------------------------
// Method tables
// ---------------------------------------------------------------------------

// DefineMethod installs an instance method.
func (c *Class) DefineMethod(name string, m Method) {
	c.methods[name] = m
}

// AttachMethod installs a singleton method on the class itself.
func (c *Class) AttachMethod(name string, m Method) {
	c.singleton[name] = m
}

// LookupMethod finds an instance method along the superclass chain.
func (c *Class) LookupMethod(name string) Method {
	for current := c; current != nil; current = current.Superclass {
		if m, ok := current.methods[name]; ok {
			return m
		}
	}
	return nil
}

// LookupSingleton finds a class-side method along the superclass chain.
func (c *Class) LookupSingleton(name string) Method {
	for current := c; current != nil; current = current.Superclass {
		if m, ok := current.singleton[name]; ok {
			return m
		}
	}
	return nil
}

// MethodNames returns the names of the class's own instance methods.
func (c *Class) MethodNames() []string {
	names := make([]string, 0, len(c.methods))
	for name := range c.methods {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// SingletonNames returns the names of the class's own singleton methods.
func (c *Class) SingletonNames() []string {
	names := make([]string, 0, len(c.singleton))
	for name := range c.singleton {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ---------------------------------------------------------------------------
// Constants
// ---------------------------------------------------------------------------

// Const returns a constant defined directly on c.
func (c *Class) Const(name string) (Value, bool) {
	c.constMu.RLock()
	defer c.constMu.RUnlock()
	v, ok := c.constants[name]
	return v, ok
}

// SetConst defines a constant on c.
func (c *Class) SetConst(name string, v Value) {
	c.constMu.Lock()
	defer c.constMu.Unlock()
	c.constants[name] = v
}

// findConst looks along the superclass chain.
func (c *Class) findConst(name string) (Value, bool) {
	for current := c; current != nil; current = current.Superclass {
		if v, ok := current.Const(name); ok {
			return v, true
		}
	}
	return nil, false
}
