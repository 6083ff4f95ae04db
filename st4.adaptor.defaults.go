package st4

import (
	"reflect"
	"sort"
	"strings"
	"sync"

	"github.com/rydnr/stringtemplate4/internal"
)

// Special property names every mapping-like adaptor answers, plus the
// reserved dictionary words of the group-file grammar.
const (
	PropKeys       = "keys"
	PropValues     = "values"
	DictKeyword    = "key"
	DictDefaultKey = "default"
)

// fallbackAdaptorFor picks the built-in adaptor for a value no
// registered adaptor covers.
func fallbackAdaptorFor(obj any) ModelAdaptor {
	switch obj.(type) {
	case *Dictionary:
		return dictionaryAdaptorInstance
	case *Aggregate:
		return aggregateAdaptorInstance
	case *ST:
		return stAdaptorInstance
	case *internal.TemplateValue:
		return stAdaptorInstance
	}
	if reflect.ValueOf(obj).Kind() == reflect.Map {
		return mapAdaptorInstance
	}
	return objectAdaptorInstance
}

// --- generic object adaptor ---

// memberAccessor reads one property off a value of a known type.
type memberAccessor func(v reflect.Value) (any, bool)

// ObjectModelAdaptor reads properties off arbitrary host structs via
// reflection: a zero-argument method first (Name, GetName, IsName,
// HasName), then an exported field, case-insensitively on the first
// letter. Resolved accessors are cached per type.
type ObjectModelAdaptor struct {
	mu    sync.RWMutex
	cache map[reflect.Type]map[string]memberAccessor
}

var objectAdaptorInstance = &ObjectModelAdaptor{cache: make(map[reflect.Type]map[string]memberAccessor)}

// NewObjectModelAdaptor creates a fresh adaptor with its own member
// cache; the shared default instance suffices for most uses.
func NewObjectModelAdaptor() *ObjectModelAdaptor {
	return &ObjectModelAdaptor{cache: make(map[reflect.Type]map[string]memberAccessor)}
}

func (a *ObjectModelAdaptor) GetProperty(model any, property string) (any, error) {
	v := reflect.ValueOf(model)
	t := v.Type()

	a.mu.RLock()
	byName := a.cache[t]
	acc, cached := byName[property]
	a.mu.RUnlock()

	if !cached {
		acc = resolveMember(t, property)
		a.mu.Lock()
		if a.cache[t] == nil {
			a.cache[t] = make(map[string]memberAccessor)
		}
		a.cache[t][property] = acc
		a.mu.Unlock()
	}
	if acc == nil {
		return nil, newNoSuchPropertyError(t.String(), property)
	}
	out, ok := acc(v)
	if !ok {
		return nil, newNoSuchPropertyError(t.String(), property)
	}
	return out, nil
}

// resolveMember finds a method or field accessor for property on t, or
// nil when none exists. The nil accessor is cached too, so repeated
// misses stay cheap.
func resolveMember(t reflect.Type, property string) memberAccessor {
	capped := capitalize(property)
	for _, methodName := range []string{capped, "Get" + capped, "Is" + capped, "Has" + capped} {
		m, ok := t.MethodByName(methodName)
		if !ok || m.Type.NumIn() != 1 || m.Type.NumOut() < 1 {
			continue
		}
		idx := m.Index
		return func(v reflect.Value) (any, bool) {
			out := v.Method(idx).Call(nil)
			return out[0].Interface(), true
		}
	}

	st := t
	deref := false
	if st.Kind() == reflect.Ptr {
		st = st.Elem()
		deref = true
	}
	if st.Kind() == reflect.Struct {
		if f, ok := st.FieldByName(capped); ok && f.IsExported() {
			idx := f.Index
			return func(v reflect.Value) (any, bool) {
				if deref {
					if v.IsNil() {
						return nil, false
					}
					v = v.Elem()
				}
				return v.FieldByIndex(idx).Interface(), true
			}
		}
	}
	return nil
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// --- map adaptor ---

// MapModelAdaptor reads properties off Go maps: a matching key first,
// then the "default" key, plus the "keys"/"values" pseudo-properties
// (keys sorted for deterministic iteration).
type MapModelAdaptor struct{}

var mapAdaptorInstance = &MapModelAdaptor{}

func (a *MapModelAdaptor) GetProperty(model any, property string) (any, error) {
	v := reflect.ValueOf(model)
	if v.Kind() != reflect.Map {
		return nil, newNoSuchPropertyError(v.Type().String(), property)
	}
	switch property {
	case PropKeys:
		return sortedMapKeys(v), nil
	case PropValues:
		keys := sortedMapKeys(v)
		out := make(internal.List, 0, len(keys))
		for _, k := range keys {
			out = append(out, v.MapIndex(reflect.ValueOf(k)).Interface())
		}
		return out, nil
	}
	key := reflect.ValueOf(property)
	if !key.Type().AssignableTo(v.Type().Key()) {
		return nil, newNoSuchPropertyError(v.Type().String(), property)
	}
	if mv := v.MapIndex(key); mv.IsValid() {
		return mv.Interface(), nil
	}
	if dv := v.MapIndex(reflect.ValueOf(DictDefaultKey)); dv.IsValid() {
		return dv.Interface(), nil
	}
	return nil, newNoSuchPropertyError(v.Type().String(), property)
}

func sortedMapKeys(v reflect.Value) internal.List {
	strs := make([]string, 0, v.Len())
	for _, k := range v.MapKeys() {
		strs = append(strs, internal.ToStringValue(k.Interface()))
	}
	sort.Strings(strs)
	out := make(internal.List, len(strs))
	for i, s := range strs {
		out[i] = s
	}
	return out
}

// --- dictionary adaptor ---

// DictionaryModelAdaptor resolves group-file dictionary lookups,
// honoring the default entry and the use-key-as-value sentinel.
type DictionaryModelAdaptor struct{}

var dictionaryAdaptorInstance = &DictionaryModelAdaptor{}

func (a *DictionaryModelAdaptor) GetProperty(model any, property string) (any, error) {
	d, ok := model.(*Dictionary)
	if !ok {
		return nil, newNoSuchPropertyError(reflect.TypeOf(model).String(), property)
	}
	switch property {
	case PropKeys:
		keys := d.Keys()
		out := make(internal.List, len(keys))
		for i, k := range keys {
			out[i] = k
		}
		return out, nil
	case PropValues:
		vals := d.Values()
		out := make(internal.List, len(vals))
		for i, v := range vals {
			if _, isKey := v.(dictKeySentinel); isKey {
				out[i] = d.Keys()[i]
				continue
			}
			out[i] = v
		}
		return out, nil
	}
	if v, ok := d.Get(property); ok {
		return v, nil
	}
	return nil, newNoSuchPropertyError(d.Name(), property)
}

// --- aggregate adaptor ---

// Aggregate is an anonymous property bag created by ST.AddAggregate
// ("point.{x,y}" style), resolved through the same adaptor path as any
// host struct.
type Aggregate struct {
	Props map[string]any
}

// Get returns one aggregate property.
func (a *Aggregate) Get(name string) (any, bool) {
	v, ok := a.Props[name]
	return v, ok
}

func (a *Aggregate) String() string {
	keys := make([]string, 0, len(a.Props))
	for k := range a.Props {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var sb strings.Builder
	sb.WriteString("{")
	for i, k := range keys {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(k + "=" + internal.ToStringValue(a.Props[k]))
	}
	sb.WriteString("}")
	return sb.String()
}

// AggregateModelAdaptor reads properties off Aggregate bags.
type AggregateModelAdaptor struct{}

var aggregateAdaptorInstance = &AggregateModelAdaptor{}

func (a *AggregateModelAdaptor) GetProperty(model any, property string) (any, error) {
	agg, ok := model.(*Aggregate)
	if !ok {
		return nil, newNoSuchPropertyError(reflect.TypeOf(model).String(), property)
	}
	if v, ok := agg.Get(property); ok {
		return v, nil
	}
	return nil, newNoSuchPropertyError("aggregate", property)
}

// --- template-instance adaptor ---

// STModelAdaptor delegates property reads on a template instance to its
// attribute table, so `<st.attr>` works on nested instances.
type STModelAdaptor struct{}

var stAdaptorInstance = &STModelAdaptor{}

func (a *STModelAdaptor) GetProperty(model any, property string) (any, error) {
	switch t := model.(type) {
	case *ST:
		if v, ok := t.tv.Lookup(property); ok && !internal.IsEmpty(v) {
			return v, nil
		}
		return nil, newNoSuchPropertyError(t.Name(), property)
	case *internal.TemplateValue:
		if v, ok := t.Lookup(property); ok && !internal.IsEmpty(v) {
			return v, nil
		}
		return nil, newNoSuchPropertyError(t.Compiled.Name, property)
	}
	return nil, newNoSuchPropertyError(reflect.TypeOf(model).String(), property)
}
