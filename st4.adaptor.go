package st4

import (
	"reflect"
	"sync"

	"go.uber.org/zap"

	"github.com/rydnr/stringtemplate4/internal"
)

// ModelAdaptor exposes one host type's properties to templates: `<o.p>`
// dispatches here for whatever adaptor matches o's runtime type.
// An adaptor returns an error when the property
// does not exist; the VM turns that into a NO_SUCH_PROPERTY diagnostic
// and a null value, never an aborted render.
type ModelAdaptor interface {
	GetProperty(model any, property string) (any, error)
}

// AdaptorRegistry maps runtime types to ModelAdaptors with
// inheritance-specificity lookup: when several registered types match a
// queried type, the unique most specific one wins, and an ambiguous tie
// is reported as an internal error carrying the candidate list.
type AdaptorRegistry struct {
	mu       sync.RWMutex
	adaptors map[reflect.Type]ModelAdaptor
	order    []reflect.Type
	cache    map[reflect.Type]ModelAdaptor
	errMgr   *ErrorManager
	logger   *zap.Logger
}

// NewAdaptorRegistry creates an empty registry.
func NewAdaptorRegistry(errMgr *ErrorManager, logger *zap.Logger) *AdaptorRegistry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AdaptorRegistry{
		adaptors: make(map[reflect.Type]ModelAdaptor),
		cache:    make(map[reflect.Type]ModelAdaptor),
		errMgr:   errMgr,
		logger:   logger,
	}
}

// Register associates an adaptor with a type. Registering for an
// interface type covers every implementation; an exact type wins over
// any interface match. Registration invalidates the lookup cache and
// must be serialized against render calls.
func (r *AdaptorRegistry) Register(t reflect.Type, a ModelAdaptor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.adaptors[t]; !exists {
		r.order = append(r.order, t)
	}
	r.adaptors[t] = a
	r.cache = make(map[reflect.Type]ModelAdaptor)
}

// adaptorTypeMatches reports whether a value of type qt is covered by the
// registered type rt.
func adaptorTypeMatches(qt, rt reflect.Type) bool {
	if qt == rt {
		return true
	}
	if rt.Kind() == reflect.Interface {
		return qt.Implements(rt)
	}
	return false
}

// moreSpecific reports whether registered type a is strictly more
// specific than registered type b for dispatch purposes: a concrete
// type beats an interface, and a narrower interface beats one it
// implies.
func moreSpecific(a, b reflect.Type) bool {
	if a == b {
		return false
	}
	if a.Kind() != reflect.Interface && b.Kind() == reflect.Interface {
		return true
	}
	if a.Kind() == reflect.Interface && b.Kind() == reflect.Interface {
		return a.Implements(b) && !b.Implements(a)
	}
	return false
}

// lookup finds the adaptor for t: exact match, else the unique most
// specific interface match. It returns the ambiguous candidate list
// when no unique winner exists.
func (r *AdaptorRegistry) lookup(t reflect.Type) (ModelAdaptor, []reflect.Type) {
	r.mu.RLock()
	if a, ok := r.cache[t]; ok {
		r.mu.RUnlock()
		return a, nil
	}
	var candidates []reflect.Type
	for _, rt := range r.order {
		if adaptorTypeMatches(t, rt) {
			candidates = append(candidates, rt)
		}
	}
	r.mu.RUnlock()

	if len(candidates) == 0 {
		return nil, nil
	}
	best := candidates[0]
	for _, c := range candidates[1:] {
		if moreSpecific(c, best) {
			best = c
		}
	}
	for _, c := range candidates {
		if c != best && !moreSpecific(best, c) {
			return nil, candidates
		}
	}

	r.mu.Lock()
	a := r.adaptors[best]
	r.cache[t] = a
	r.mu.Unlock()
	return a, nil
}

// GetProperty implements internal.PropertyReader for the VM's
// LOAD_PROP/LOAD_PROP_IND opcodes. When no adaptor is registered for
// the value's type, the built-in fallbacks apply: dictionary, map,
// aggregate, template instance, then generic reflection.
func (r *AdaptorRegistry) GetProperty(obj any, name string) (any, bool, error) {
	if obj == nil {
		return nil, false, nil
	}
	t := reflect.TypeOf(obj)
	adaptor, ambiguous := r.lookup(t)
	if ambiguous != nil {
		names := make([]string, len(ambiguous))
		for i, c := range ambiguous {
			names[i] = c.String()
		}
		if r.errMgr != nil {
			r.errMgr.InternalError(internal.ErrKindInternalError,
				newAmbiguousMatchError(t.String(), names))
		}
		return nil, false, nil
	}
	if adaptor == nil {
		adaptor = fallbackAdaptorFor(obj)
	}
	v, err := adaptor.GetProperty(obj, name)
	if err != nil {
		return nil, false, err
	}
	return v, true, nil
}
