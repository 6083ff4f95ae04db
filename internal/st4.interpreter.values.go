package internal

import (
	"fmt"
	"reflect"
	"sort"
	"strings"
)

// emptySentinel marks a declared formal-argument slot that has not yet
// been bound to a value, distinct from an explicit null (nil).
type emptySentinel struct{}

func (emptySentinel) String() string { return "<empty>" }

// Empty is the sentinel value stored in a TemplateValue's Locals slot
// for a formal argument that has not been bound.
var Empty any = emptySentinel{}

// IsEmpty reports whether v is the Empty sentinel.
func IsEmpty(v any) bool {
	_, ok := v.(emptySentinel)
	return ok
}

// normalizeMissing turns an unbound Empty slot into nil (absent), the
// form the rest of the VM reasons about.
func normalizeMissing(v any) any {
	if IsEmpty(v) {
		return nil
	}
	return v
}

// List is a managed, multi-valued attribute or list-literal value,
// produced by repeated ST.Add calls, the LIST/ADD opcodes, or a
// map/rot-map/zip-map result.
type List []any

// TemplateSource is the subset of Group behavior the interpreter needs
// to resolve template and dictionary names, without this package
// importing the root package that implements it.
type TemplateSource interface {
	// LookupCompiled resolves name in this group (following imports per
	// the documented resolution algorithm) and returns the CompiledST plus the
	// TemplateSource that actually owns it (which may be an imported
	// group), for further name resolution inside the new instance.
	LookupCompiled(name string) (*CompiledST, TemplateSource, bool)
	// SuperSource returns the first imported group, used by SUPER_NEW*.
	SuperSource() (TemplateSource, bool)
	// LookupDict resolves a dictionary by name, used as an attribute
	// fallback when a bare name misses the instance-scope chain. The
	// returned value flows through the operand stack like any other
	// attribute; property access on it goes through a ModelAdaptor.
	LookupDict(name string) (any, bool)
	// Locale is the ambient locale passed to attribute renderers.
	Locale() string
}

// PropertyReader exposes the ModelAdaptor registry to the VM (LOAD_PROP
// opcodes), without this package importing the root package.
type PropertyReader interface {
	GetProperty(obj any, name string) (any, bool, error)
}

// ValueRenderer exposes the AttributeRenderer registry to the VM (WRITE
// opcodes), without this package importing the root package.
type ValueRenderer interface {
	// Render returns ok=false when no renderer is registered for v's type.
	Render(v any, format string, locale string) (out string, ok bool, err error)
}

// Listener receives run-time/IO/internal diagnostics from the VM. The
// root package's ErrorManager implements this and owns translating each
// kind into a cuserr-backed error for the configured ErrorListener.
type Listener interface {
	RuntimeError(kind string, pos Position, templateName string, args ...any)
	IOError(kind string, err error)
	InternalError(kind string, err error)
}

// TemplateValue is a not-yet-rendered template instance flowing through
// the operand stack: the result of NEW/NEW_BOX_ARGS/MAP/PASSTHRU, and
// the operand WRITE consumes to recurse into a child InstanceScope. The
// root package's public ST wrapper holds one of these for the top-level,
// user-constructed instance; nested instances created during rendering
// exist only as TemplateValues.
type TemplateValue struct {
	Compiled *CompiledST
	Group    TemplateSource
	Locals   []any // parallel to Compiled.ArgOrder; Empty until bound
}

// NewTemplateValue creates a TemplateValue with every local slot Empty.
func NewTemplateValue(compiled *CompiledST, group TemplateSource) *TemplateValue {
	locals := make([]any, compiled.NumArgs())
	for i := range locals {
		locals[i] = Empty
	}
	return &TemplateValue{Compiled: compiled, Group: group, Locals: locals}
}

// SetByIndex binds the local at position i, growing Locals if the
// CompiledST gained formal arguments after this value was constructed.
func (tv *TemplateValue) SetByIndex(i int, v any) {
	for i >= len(tv.Locals) {
		tv.Locals = append(tv.Locals, Empty)
	}
	tv.Locals[i] = v
}

// SetByName binds the named formal argument; it reports false if name is
// not declared.
func (tv *TemplateValue) SetByName(name string, v any) bool {
	fa, ok := tv.Compiled.FormalArgs[name]
	if !ok {
		return false
	}
	tv.SetByIndex(fa.Index, v)
	return true
}

// Lookup returns the bound value of a local by name, and whether it is
// declared at all (its value may still be Empty).
func (tv *TemplateValue) Lookup(name string) (any, bool) {
	fa, ok := tv.Compiled.FormalArgs[name]
	if !ok {
		return nil, false
	}
	if fa.Index >= len(tv.Locals) {
		return Empty, true
	}
	return tv.Locals[fa.Index], true
}

// TemplateValueHolder is implemented by the root package's public ST
// wrapper, so a template instance stored as an attribute value renders
// as a template rather than through its string form.
type TemplateValueHolder interface {
	TemplateValue() *TemplateValue
}

// InstanceScope is one dynamic execution frame: the TemplateValue being
// rendered, its instruction pointer, and the parent scope that formed
// the dynamic chain used for attribute lookup and error context.
type InstanceScope struct {
	Parent *InstanceScope
	TV     *TemplateValue
	IP     int
	Events []any // optional debug events; populated via Interpreter.OnEvent
}

// TemplateName returns the template name for error/debug context.
func (s *InstanceScope) TemplateName() string {
	if s == nil || s.TV == nil || s.TV.Compiled == nil {
		return ""
	}
	return s.TV.Compiled.Name
}

// Truthy implements the rendering truthiness rules: nil is false;
// booleans are themselves; empty string/list/map is false; anything
// else (including a zero number) is true.
func Truthy(v any) bool {
	v = normalizeMissing(v)
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case string:
		return t != ""
	case List:
		return len(t) != 0
	case []any:
		return len(t) != 0
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array, reflect.Map:
		return rv.Len() != 0
	}
	return true
}

// ToIterable returns v's elements in iteration order and true if v is
// something the VM treats as an aggregate: a List/[]any, any other slice/array via reflection,
// or a map (iterated by its values, sorted by string key for
// determinism, since Go map order is unspecified).
func ToIterable(v any) ([]any, bool) {
	switch t := v.(type) {
	case List:
		return []any(t), true
	case []any:
		return t, true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		out := make([]any, rv.Len())
		for i := range out {
			out[i] = rv.Index(i).Interface()
		}
		return out, true
	case reflect.Map:
		keys := rv.MapKeys()
		strKeys := make([]string, len(keys))
		byKey := make(map[string]reflect.Value, len(keys))
		for i, k := range keys {
			s := fmt.Sprintf("%v", k.Interface())
			strKeys[i] = s
			byKey[s] = k
		}
		sort.Strings(strKeys)
		out := make([]any, len(strKeys))
		for i, s := range strKeys {
			out[i] = rv.MapIndex(byKey[s]).Interface()
		}
		return out, true
	}
	return nil, false
}

// ToStringValue converts a scalar value to its default text
// representation, used when no AttributeRenderer is registered for its
// type.
func ToStringValue(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case fmt.Stringer:
		return t.String()
	default:
		return fmt.Sprintf("%v", t)
	}
}

// joinNonEmpty joins the non-empty parts with sep. Nothing in this
// package calls it.
func joinNonEmpty(parts []string, sep string) string {
	var kept []string
	for _, p := range parts {
		if p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, sep)
}
