package internal

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeSource is a minimal TemplateSource for VM tests: a flat name
// table with no imports and no dictionaries.
type fakeSource struct {
	templates map[string]*CompiledST
	dicts     map[string]any
	superOf   *fakeSource
}

func newFakeSource() *fakeSource {
	return &fakeSource{templates: make(map[string]*CompiledST), dicts: make(map[string]any)}
}

func (s *fakeSource) LookupCompiled(name string) (*CompiledST, TemplateSource, bool) {
	if !strings.HasPrefix(name, "/") {
		name = "/" + name
	}
	c, ok := s.templates[name]
	if !ok {
		return nil, nil, false
	}
	return c, s, true
}

func (s *fakeSource) SuperSource() (TemplateSource, bool) {
	if s.superOf == nil {
		return nil, false
	}
	return s.superOf, true
}

func (s *fakeSource) LookupDict(name string) (any, bool) {
	d, ok := s.dicts[name]
	return d, ok
}

func (s *fakeSource) Locale() string { return "en_US" }

func (s *fakeSource) define(t *testing.T, name string, args []string, body string) *CompiledST {
	t.Helper()
	compiled, implicit := compileSource(t, name, body, args)
	compiled.Name = "/" + name
	compiled.Prefix = "/"
	compiled.NativeGroup = s
	s.templates["/"+name] = compiled
	for _, imp := range implicit {
		imp.Prefix = "/"
		imp.NativeGroup = s
		s.templates["/"+imp.Name] = imp
		imp.Name = "/" + imp.Name
	}
	return compiled
}

type recordingListener struct {
	kinds []string
}

func (l *recordingListener) RuntimeError(kind string, pos Position, templateName string, args ...any) {
	l.kinds = append(l.kinds, kind)
}
func (l *recordingListener) IOError(kind string, err error)       { l.kinds = append(l.kinds, kind) }
func (l *recordingListener) InternalError(kind string, err error) { l.kinds = append(l.kinds, kind) }

func execTemplate(t *testing.T, src *fakeSource, name string, binds map[string]any) (string, *recordingListener) {
	t.Helper()
	c, _, ok := src.LookupCompiled(name)
	require.True(t, ok)
	tv := NewTemplateValue(c, src)
	for k, v := range binds {
		require.True(t, tv.SetByName(k, v), "attribute %s must be declared", k)
	}
	listener := &recordingListener{}
	interp := NewInterpreter(nil, nil, listener, "en_US", zap.NewNop())
	var sb strings.Builder
	_, err := interp.Exec(tv, nil, NewWriter(&sb))
	require.NoError(t, err)
	return sb.String(), listener
}

func TestInterpreter_WriteStrAndAttr(t *testing.T) {
	src := newFakeSource()
	src.define(t, "t", []string{"x"}, "hi <x>!")
	out, _ := execTemplate(t, src, "t", map[string]any{"x": "you"})
	assert.Equal(t, "hi you!", out)
}

func TestInterpreter_MissingAttributeReportsAndContinues(t *testing.T) {
	src := newFakeSource()
	src.define(t, "t", nil, "[<ghost>]")
	out, listener := execTemplate(t, src, "t", nil)
	assert.Equal(t, "[]", out)
	assert.Contains(t, listener.kinds, ErrKindNoSuchAttribute)
}

func TestInterpreter_ConditionalTruthiness(t *testing.T) {
	src := newFakeSource()
	src.define(t, "t", []string{"v"}, "<if(v)>T<else>F<endif>")

	cases := []struct {
		v    any
		want string
	}{
		{true, "T"},
		{false, "F"},
		{nil, "F"},
		{"", "F"},
		{"x", "T"},
		{List{}, "F"},
		{List{1}, "T"},
		{0, "T"}, // numbers are not special
	}
	for _, tc := range cases {
		out, _ := execTemplate(t, src, "t", map[string]any{"v": tc.v})
		assert.Equal(t, tc.want, out, "truthiness of %#v", tc.v)
	}
}

func TestInterpreter_MapBindsIterationLocals(t *testing.T) {
	src := newFakeSource()
	src.define(t, "t", []string{"xs"}, "<xs:{x|<i0>=<x> }>")
	out, _ := execTemplate(t, src, "t", map[string]any{"xs": List{"a", "b"}})
	assert.Equal(t, "0=a 1=b ", out)
}

func TestInterpreter_NestedCallSeesDynamicScope(t *testing.T) {
	src := newFakeSource()
	src.define(t, "inner", nil, "(<name>)")
	src.define(t, "outer", []string{"name"}, "<inner()>")
	out, _ := execTemplate(t, src, "outer", map[string]any{"name": "Ada"})
	assert.Equal(t, "(Ada)", out)
}

func TestInterpreter_SuperNewResolvesInSuperGroup(t *testing.T) {
	base := newFakeSource()
	base.define(t, "t", nil, "base")
	sub := newFakeSource()
	sub.superOf = base
	sub.define(t, "t", nil, "[<super.t()>]")
	out, _ := execTemplate(t, sub, "t", nil)
	assert.Equal(t, "[base]", out)
}

func TestInterpreter_ZipMapUnequalLengthsReported(t *testing.T) {
	src := newFakeSource()
	src.define(t, "t", []string{"a", "b"}, "<a,b:{x,y|<x><y>}>")
	out, listener := execTemplate(t, src, "t", map[string]any{"a": List{1, 2, 3}, "b": List{4}})
	assert.Equal(t, "14", out, "iteration stops at the shortest input")
	assert.Contains(t, listener.kinds, ErrKindZipMapArgumentCountMismatch)
}

func TestInterpreter_UnknownTemplateReportsNoSuchTemplate(t *testing.T) {
	src := newFakeSource()
	src.define(t, "t", nil, "<missing()>")
	out, listener := execTemplate(t, src, "t", nil)
	assert.Equal(t, "", out)
	assert.Contains(t, listener.kinds, ErrKindNoSuchTemplate)
}

func TestInterpreter_DictionaryFallbackForBareName(t *testing.T) {
	src := newFakeSource()
	src.dicts["colors"] = "from-dict"
	src.define(t, "t", nil, "<colors>")
	out, _ := execTemplate(t, src, "t", nil)
	assert.Equal(t, "from-dict", out)
}

func TestInterpreter_NestedBuiltinCalls(t *testing.T) {
	src := newFakeSource()
	src.define(t, "t", []string{"xs"}, "<length(xs)>/<strlen(first(xs))>")
	out, _ := execTemplate(t, src, "t", map[string]any{"xs": List{"abc", "d"}})
	assert.Equal(t, "2/3", out)
}

func TestTruthy_Table(t *testing.T) {
	assert.False(t, Truthy(nil))
	assert.False(t, Truthy(Empty))
	assert.True(t, Truthy(true))
	assert.False(t, Truthy(false))
	assert.False(t, Truthy(""))
	assert.True(t, Truthy("a"))
	assert.False(t, Truthy(List{}))
	assert.True(t, Truthy(List{1}))
	assert.False(t, Truthy(map[string]any{}))
	assert.True(t, Truthy(map[string]any{"a": 1}))
	assert.True(t, Truthy(0))
	assert.True(t, Truthy(0.0))
}

func TestToIterable_Kinds(t *testing.T) {
	items, ok := ToIterable(List{1, 2})
	require.True(t, ok)
	assert.Len(t, items, 2)

	items, ok = ToIterable([]string{"a", "b", "c"})
	require.True(t, ok)
	assert.Len(t, items, 3)

	items, ok = ToIterable(map[string]int{"b": 2, "a": 1})
	require.True(t, ok)
	assert.Equal(t, []any{1, 2}, items, "maps iterate by sorted key")

	_, ok = ToIterable("scalar")
	assert.False(t, ok)

	_, ok = ToIterable(42)
	assert.False(t, ok)
}

func TestBuiltins_Collections(t *testing.T) {
	xs := List{"a", "b", "c"}
	assert.Equal(t, "a", builtinFirst(xs))
	assert.Equal(t, "c", builtinLast(xs))
	assert.Equal(t, List{"b", "c"}, builtinRest(xs))
	assert.Equal(t, List{"a", "b"}, builtinTrunc(xs))
	assert.Equal(t, 3, builtinLength(xs))
	assert.Equal(t, List{"c", "b", "a"}, builtinReverse(xs))
	assert.Equal(t, List{"a"}, builtinStrip(List{nil, "a", nil}))

	// Scalars behave as single-element sequences where sensible.
	assert.Equal(t, "x", builtinFirst("x"))
	assert.Equal(t, List{}, builtinRest("x"))
}

func TestDisassemble_NamesInstructions(t *testing.T) {
	compiled, _ := compileSource(t, "t", "hi <name>", nil)
	dump := Disassemble(compiled)
	assert.Contains(t, dump, "write_str")
	assert.Contains(t, dump, "load_attr")
	assert.Contains(t, dump, "write")
}
