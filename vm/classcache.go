package vm

import (
	"sync"

	"github.com/tliron/commonlog"
)

// ClassCache materializes ClassDefs and ModuleDefs into class objects on
// first reference and memoizes them by definition identity. Entries are
// never evicted or rebuilt.
//
// Concurrent first lookups of one definition build it once. A definition's
// own build must not look itself up through the cache; builds publish the
// class as a constant before running app methods, so constant lookups from
// app-method code never re-enter the cache for the class being built.
type ClassCache struct {
	space   *Space
	mu      sync.Mutex
	entries map[interface{}]*cacheEntry
	log     commonlog.Logger
}

type cacheEntry struct {
	once sync.Once
	cls  *Class
}

func newClassCache(s *Space) *ClassCache {
	return &ClassCache{
		space:   s,
		entries: make(map[interface{}]*cacheEntry),
		log:     commonlog.GetLogger("garnet.classcache"),
	}
}

func (c *ClassCache) entry(key interface{}) *cacheEntry {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		e = &cacheEntry{}
		c.entries[key] = e
	}
	return e
}

// Get returns the class object for def, building it on first use.
func (c *ClassCache) Get(def *ClassDef) *Class {
	e := c.entry(def)
	e.once.Do(func() { e.cls = c.buildClass(def) })
	return e.cls
}

// Module returns the module object for def, building it on first use.
func (c *ClassCache) Module(def *ModuleDef) *Class {
	e := c.entry(def)
	e.once.Do(func() { e.cls = c.buildModule(def) })
	return e.cls
}

// Len returns the number of definitions referenced so far.
func (c *ClassCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// buildClass creates the class, publishes it, installs its shims, runs its
// app methods and finally attaches singleton methods.
func (c *ClassCache) buildClass(def *ClassDef) *Class {
	var superclass *Class
	if def.Superclass != nil {
		superclass = c.superclassFor(def.Superclass)
	}
	cls := NewClass(def.Name, superclass)
	if def == ObjectDef {
		c.space.object.Store(cls)
	}
	c.space.ObjectClass().SetConst(def.Name, cls)

	for _, m := range def.methods {
		cls.DefineMethod(m.name, buildShim(def.Name+"#"+m.name, m))
	}
	for _, src := range def.appMethods {
		c.space.executeSource(def.Name, src, cls)
	}
	for _, m := range def.singletons {
		cls.AttachMethod(m.name, buildShim(def.Name+"."+m.name, m))
	}
	c.log.Debugf("built class %s (%d methods, %d app methods, %d singleton methods)",
		def.Name, len(def.methods), len(def.appMethods), len(def.singletons))
	return cls
}

// superclassFor resolves a superclass definition. Object is read from the
// space so classes built while Object's app methods run do not wait on
// Object's own entry.
func (c *ClassCache) superclassFor(def *ClassDef) *Class {
	if def == ObjectDef {
		return c.space.ObjectClass()
	}
	return c.Get(def)
}

func (c *ClassCache) buildModule(def *ModuleDef) *Class {
	mod := NewModule(def.Name)
	c.space.ObjectClass().SetConst(def.Name, mod)
	for _, m := range def.methods {
		mod.DefineMethod(m.name, buildShim(def.Name+"#"+m.name, m))
	}
	for _, m := range def.singletons {
		mod.AttachMethod(m.name, buildShim(def.Name+"."+m.name, m))
	}
	c.log.Debugf("built module %s (%d methods, %d singleton methods)",
		def.Name, len(def.methods), len(def.singletons))
	return mod
}
