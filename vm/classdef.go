package vm

// ---------------------------------------------------------------------------
// Registration tables
// ---------------------------------------------------------------------------

// methodDef is one declared host method: its implementation and the
// argument specification its shim is generated from.
type methodDef struct {
	name   string
	impl   interface{}
	params []Param
}

// ClassDef is the static registration of a builtin class. Definitions are
// filled in at package init and read-only afterwards; the ClassCache turns
// each into exactly one class object per Space.
type ClassDef struct {
	Name       string
	Superclass *ClassDef

	methods    []methodDef
	singletons []methodDef
	appMethods []string
}

// NewClassDef declares a class. superclass is nil only for the root.
func NewClassDef(name string, superclass *ClassDef) *ClassDef {
	return &ClassDef{Name: name, Superclass: superclass}
}

// Method declares an instance method implemented by impl, a Go function
// whose parameters line up one-to-one with params.
func (d *ClassDef) Method(name string, impl interface{}, params ...Param) {
	d.methods = append(d.methods, methodDef{name: name, impl: impl, params: params})
}

// SingletonMethod declares a class-side method.
func (d *ClassDef) SingletonMethod(name string, impl interface{}, params ...Param) {
	d.singletons = append(d.singletons, methodDef{name: name, impl: impl, params: params})
}

// AppMethod registers source text in the interpreted language. It runs once
// at build time with the new class as self and scope, typically defining
// methods.
func (d *ClassDef) AppMethod(source string) {
	d.appMethods = append(d.appMethods, source)
}

// Include copies a module's methods and app methods into the class.
func (d *ClassDef) Include(m *ModuleDef) {
	d.methods = append(d.methods, m.methods...)
	d.appMethods = append(d.appMethods, m.appMethods...)
}

// MethodNames lists the declared instance method names in order.
func (d *ClassDef) MethodNames() []string {
	names := make([]string, len(d.methods))
	for i, m := range d.methods {
		names[i] = m.name
	}
	return names
}

// ModuleDef is the static registration of a builtin module.
type ModuleDef struct {
	Name string

	methods    []methodDef
	singletons []methodDef
	appMethods []string
}

// NewModuleDef declares a module.
func NewModuleDef(name string) *ModuleDef {
	return &ModuleDef{Name: name}
}

// Method declares an instance method, copied into including classes.
func (d *ModuleDef) Method(name string, impl interface{}, params ...Param) {
	d.methods = append(d.methods, methodDef{name: name, impl: impl, params: params})
}

// SingletonMethod declares a method on the module object itself.
func (d *ModuleDef) SingletonMethod(name string, impl interface{}, params ...Param) {
	d.singletons = append(d.singletons, methodDef{name: name, impl: impl, params: params})
}

// Function declares a module function: both an instance method and a
// singleton method.
func (d *ModuleDef) Function(name string, impl interface{}, params ...Param) {
	d.Method(name, impl, params...)
	d.SingletonMethod(name, impl, params...)
}

// AppMethod registers interpreted-language source, run in every class that
// includes the module.
func (d *ModuleDef) AppMethod(source string) {
	d.appMethods = append(d.appMethods, source)
}
