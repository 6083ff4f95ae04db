package internal

import "strings"

// Built-in function implementations for FIRST/LAST/REST/TRUNC/STRIP/
// TRIM/LENGTH/STRLEN/REVERSE. Each accepts the three
// attribute kinds a built-in may see: nil, a scalar, or an iterable,
// degrading gracefully rather than erroring on an unexpected shape.

func builtinFirst(v any) any {
	if v == nil {
		return nil
	}
	if s, ok := v.(string); ok {
		return s
	}
	if items, ok := ToIterable(v); ok {
		if len(items) == 0 {
			return nil
		}
		return items[0]
	}
	return v
}

func builtinLast(v any) any {
	if v == nil {
		return nil
	}
	if s, ok := v.(string); ok {
		return s
	}
	if items, ok := ToIterable(v); ok {
		if len(items) == 0 {
			return nil
		}
		return items[len(items)-1]
	}
	return v
}

func builtinRest(v any) any {
	if v == nil {
		return nil
	}
	if _, ok := v.(string); ok {
		return List{}
	}
	if items, ok := ToIterable(v); ok {
		if len(items) <= 1 {
			return List{}
		}
		out := make(List, len(items)-1)
		copy(out, items[1:])
		return out
	}
	return List{}
}

func builtinTrunc(v any) any {
	if v == nil {
		return nil
	}
	if _, ok := v.(string); ok {
		return List{}
	}
	if items, ok := ToIterable(v); ok {
		if len(items) <= 1 {
			return List{}
		}
		out := make(List, len(items)-1)
		copy(out, items[:len(items)-1])
		return out
	}
	return List{}
}

// builtinStrip removes every nil element from an iterable; applied to
// a string or scalar it is the identity.
func builtinStrip(v any) any {
	items, ok := ToIterable(v)
	if !ok {
		return v
	}
	out := make(List, 0, len(items))
	for _, item := range items {
		if normalizeMissing(item) != nil {
			out = append(out, item)
		}
	}
	return out
}

// builtinTrim removes leading/trailing whitespace from a string; applied
// to an iterable it trims each element's string form.
func builtinTrim(v any) any {
	if s, ok := v.(string); ok {
		return strings.TrimSpace(s)
	}
	if items, ok := ToIterable(v); ok {
		out := make(List, len(items))
		for i, item := range items {
			out[i] = builtinTrim(item)
		}
		return out
	}
	return v
}

func builtinLength(v any) any {
	if v == nil {
		return 0
	}
	if items, ok := ToIterable(v); ok {
		return len(items)
	}
	return 1
}

func builtinStrlen(v any) any {
	if v == nil {
		return 0
	}
	return len([]rune(ToStringValue(v)))
}

func builtinReverse(v any) any {
	if v == nil {
		return nil
	}
	if items, ok := ToIterable(v); ok {
		out := make(List, len(items))
		for i, item := range items {
			out[len(items)-1-i] = item
		}
		return out
	}
	return v
}
