package st4

import (
	"reflect"
	"sync"
)

// AttributeRenderer formats one host type's values before they reach
// the output writer: `<x; format="...">` passes the format string, and
// the ambient locale comes from the group or the render call.
type AttributeRenderer interface {
	ToString(value any, formatString string, locale string) string
}

// AttributeRendererFunc adapts a plain function to AttributeRenderer.
type AttributeRendererFunc func(value any, formatString string, locale string) string

func (f AttributeRendererFunc) ToString(value any, formatString string, locale string) string {
	return f(value, formatString, locale)
}

// RendererRegistry maps runtime types to AttributeRenderers, with the
// same most-specific-match rule as the adaptor registry.
type RendererRegistry struct {
	mu        sync.RWMutex
	renderers map[reflect.Type]AttributeRenderer
	order     []reflect.Type
	cache     map[reflect.Type]AttributeRenderer
}

// NewRendererRegistry creates an empty registry.
func NewRendererRegistry() *RendererRegistry {
	return &RendererRegistry{
		renderers: make(map[reflect.Type]AttributeRenderer),
		cache:     make(map[reflect.Type]AttributeRenderer),
	}
}

// Register associates a renderer with a type. Registration invalidates
// the lookup cache and must be serialized against render calls.
func (r *RendererRegistry) Register(t reflect.Type, rend AttributeRenderer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.renderers[t]; !exists {
		r.order = append(r.order, t)
	}
	r.renderers[t] = rend
	r.cache = make(map[reflect.Type]AttributeRenderer)
}

// lookup finds the renderer for t, or nil.
func (r *RendererRegistry) lookup(t reflect.Type) AttributeRenderer {
	r.mu.RLock()
	if rend, ok := r.cache[t]; ok {
		r.mu.RUnlock()
		return rend
	}
	var candidates []reflect.Type
	for _, rt := range r.order {
		if adaptorTypeMatches(t, rt) {
			candidates = append(candidates, rt)
		}
	}
	r.mu.RUnlock()

	if len(candidates) == 0 {
		return nil
	}
	best := candidates[0]
	for _, c := range candidates[1:] {
		if moreSpecific(c, best) {
			best = c
		}
	}
	for _, c := range candidates {
		if c != best && !moreSpecific(best, c) {
			return nil
		}
	}

	r.mu.Lock()
	rend := r.renderers[best]
	r.cache[t] = rend
	r.mu.Unlock()
	return rend
}

// Render implements internal.ValueRenderer for the VM's WRITE opcodes;
// ok is false when no renderer covers v's type.
func (r *RendererRegistry) Render(v any, format string, locale string) (string, bool, error) {
	if v == nil {
		return "", false, nil
	}
	rend := r.lookup(reflect.TypeOf(v))
	if rend == nil {
		return "", false, nil
	}
	return rend.ToString(v, format, locale), true, nil
}
