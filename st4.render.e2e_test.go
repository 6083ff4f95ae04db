package st4

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// instanceOf is the common test path: build a group from a .stg source
// and instantiate one template, failing the test on any diagnostics.
func instanceOf(t *testing.T, groupSrc, name string) (*ST, *ErrorBuffer) {
	t.Helper()
	buf := &ErrorBuffer{}
	g := FromString(groupSrc, WithErrorListener(buf))
	st, ok := g.GetInstanceOf(name)
	require.True(t, ok, "template %s must resolve; errors: %v", name, buf.All())
	return st, buf
}

func TestRender_SimpleInterpolation(t *testing.T) {
	st, buf := instanceOf(t, `hi(name) ::= "hello <name>!"`, "hi")
	st.Add("name", "Ada")
	assert.Equal(t, "hello Ada!", st.Render())
	assert.Empty(t, buf.All())
}

func TestRender_IterationWithSeparator(t *testing.T) {
	st, _ := instanceOf(t, `list(xs) ::= "<xs; separator=\", \">"`, "list")
	st.Add("xs", []any{"a", "b", "c"})
	assert.Equal(t, "a, b, c", st.Render())
}

func TestRender_MapWithAnonymousSubTemplate(t *testing.T) {
	g := NewGroup()
	require.NoError(t, g.DefineTemplateWithArgs("bullets", []string{"xs"}, "<xs:{x|* <x>\n}>"))
	st, ok := g.GetInstanceOf("bullets")
	require.True(t, ok)
	st.Add("xs", []any{"one", "two"})
	assert.Equal(t, "* one\n* two\n", st.Render())
}

func TestRender_ConditionalWithElse(t *testing.T) {
	src := `g(b) ::= "<if(b)>yes<else>no<endif>"`

	st, _ := instanceOf(t, src, "g")
	st.Add("b", true)
	assert.Equal(t, "yes", st.Render())

	st, _ = instanceOf(t, src, "g")
	st.Add("b", false)
	assert.Equal(t, "no", st.Render())

	st, _ = instanceOf(t, src, "g")
	st.Add("b", nil)
	assert.Equal(t, "no", st.Render(), "null is false")
}

func TestRender_AutoIndentOfNestedTemplate(t *testing.T) {
	src := "outer() ::= <<\n" +
		"prefix:\n" +
		"    <inner()>\n" +
		">>\n" +
		"inner() ::= \"a\nb\"\n"
	st, buf := instanceOf(t, src, "outer")
	assert.Equal(t, "prefix:\n    a\n    b", st.Render())
	assert.Empty(t, buf.All())
}

func TestRender_ZipMap(t *testing.T) {
	st, _ := instanceOf(t, `z(ns,vs) ::= "<ns,vs:{n,v|<n>=<v>}; separator=\",\">"`, "z")
	st.Add("ns", []any{"x", "y"})
	st.Add("vs", []any{1, 2})
	assert.Equal(t, "x=1,y=2", st.Render())
}

// --- universal rendering laws ---

func TestRender_PureTextIdentity(t *testing.T) {
	g := NewGroup()
	body := "no expressions here.\nsecond line\tand a tab"
	require.NoError(t, g.DefineTemplate("t", body))
	st, ok := g.GetInstanceOf("t")
	require.True(t, ok)
	assert.Equal(t, body, st.Render())
}

func TestRender_CRLFNormalized(t *testing.T) {
	g := NewGroup()
	require.NoError(t, g.DefineTemplate("t", "a\r\nb"))
	st, _ := g.GetInstanceOf("t")
	assert.Equal(t, "a\nb", st.Render())
}

func TestRender_EscapeRoundTrip(t *testing.T) {
	g := NewGroup()
	require.NoError(t, g.DefineTemplate("bs", `a\\b`))
	require.NoError(t, g.DefineTemplate("lt", `a\<b`))
	st, _ := g.GetInstanceOf("bs")
	assert.Equal(t, `a\b`, st.Render())
	st, _ = g.GetInstanceOf("lt")
	assert.Equal(t, "a<b", st.Render())
}

func TestRender_CharEscapesAndComments(t *testing.T) {
	g := NewGroup()
	require.NoError(t, g.DefineTemplate("t", `a<\n>b<\t>c<! ignored !>d<\u0041>`))
	st, _ := g.GetInstanceOf("t")
	assert.Equal(t, "a\nb\tcdA", st.Render())
}

func TestRender_AttributePassthrough(t *testing.T) {
	for _, s := range []string{"", "x", "hello world", "<not-a-template>", "line1\nline2"} {
		st, _ := instanceOf(t, `t(x) ::= "<x>"`, "t")
		st.Add("x", s)
		assert.Equal(t, s, st.Render())
	}
}

func TestRender_SeparatorLawSkipsNulls(t *testing.T) {
	st, _ := instanceOf(t, `t(xs) ::= "<xs; separator=\",\">"`, "t")
	st.Add("xs", []any{"a", nil, "b", nil})
	assert.Equal(t, "a,b", st.Render())
}

func TestRender_NullOptionSubstitutes(t *testing.T) {
	st, _ := instanceOf(t, `t(xs) ::= "<xs; separator=\",\", null=\"-\">"`, "t")
	st.Add("xs", []any{"a", nil, "b"})
	assert.Equal(t, "a,-,b", st.Render())

	st, _ = instanceOf(t, `t(x) ::= "<x; null=\"N\">"`, "t")
	assert.Equal(t, "N", st.Render())
}

func TestRender_WrapIdempotentOnShortOutput(t *testing.T) {
	st, _ := instanceOf(t, `t(xs) ::= "<xs; wrap=\"\n\", separator=\",\">"`, "t")
	st.Add("xs", []any{"aa", "bb"})
	out := st.Render(WithLineWidth(80))
	assert.Equal(t, "aa,bb", out)
	assert.NotContains(t, out, "\n")
}

func TestRender_WrapBreaksLongOutput(t *testing.T) {
	st, _ := instanceOf(t, `t(xs) ::= "<xs; wrap, separator=\",\">"`, "t")
	var xs []any
	for i := 0; i < 10; i++ {
		xs = append(xs, "abcde")
	}
	st.Add("xs", xs)
	out := st.Render(WithLineWidth(12))
	assert.Contains(t, out, "\n")
	for _, line := range strings.Split(out, "\n") {
		assert.LessOrEqual(t, len(line), 12+len("abcde,"))
	}
}

func TestRender_DefaultArgumentLaziness(t *testing.T) {
	src := `t(a, b="dflt") ::= "<a>/<b>"`

	st, _ := instanceOf(t, src, "t")
	st.Add("a", "x")
	assert.Equal(t, "x/dflt", st.Render(), "unbound argument takes its default")

	st, _ = instanceOf(t, src, "t")
	st.Add("a", "x")
	st.Add("b", "y")
	assert.Equal(t, "x/y", st.Render(), "bound argument ignores its default")
}

func TestRender_TemplateDefaultArgument(t *testing.T) {
	src := `t(name, greeting={hi <name>}) ::= "<greeting>!"`
	st, buf := instanceOf(t, src, "t")
	st.Add("name", "Ada")
	assert.Equal(t, "hi Ada!", st.Render())
	assert.Empty(t, buf.All())
}

func TestRender_ScopeIsolation(t *testing.T) {
	g := NewGroup()
	require.NoError(t, g.DefineTemplateWithArgs("t", []string{"x"}, "<x>"))
	a, _ := g.GetInstanceOf("t")
	b, _ := g.GetInstanceOf("t")
	a.Add("x", "A")
	b.Add("x", "B")
	assert.Equal(t, "A", a.Render())
	assert.Equal(t, "B", b.Render())
}

func TestRender_ResolutionPrecedence(t *testing.T) {
	lib1 := FromString(`t() ::= "lib1"` + "\n" + `only1() ::= "one"`)
	lib2 := FromString(`t() ::= "lib2"` + "\n" + `only2() ::= "two"`)
	main := FromString(`t() ::= "main"`)
	main.ImportGroup(lib1)
	main.ImportGroup(lib2)

	st, ok := main.GetInstanceOf("t")
	require.True(t, ok)
	assert.Equal(t, "main", st.Render(), "current group wins over imports")

	st, ok = main.GetInstanceOf("only1")
	require.True(t, ok)
	assert.Equal(t, "one", st.Render())

	st, ok = main.GetInstanceOf("only2")
	require.True(t, ok)
	assert.Equal(t, "two", st.Render())
}

// --- further end-to-end behavior ---

func TestRender_NestedTemplateCallWithNamedArgs(t *testing.T) {
	src := `greet(who) ::= "hello <who>"` + "\n" +
		`page(u) ::= "[<greet(who=u)>]"`
	st, _ := instanceOf(t, src, "page")
	st.Add("u", "Bob")
	assert.Equal(t, "[hello Bob]", st.Render())
}

func TestRender_IndirectTemplateCall(t *testing.T) {
	src := `a() ::= "AAA"` + "\n" +
		`t(which) ::= "<(which)()>"`
	st, _ := instanceOf(t, src, "t")
	st.Add("which", "a")
	assert.Equal(t, "AAA", st.Render())
}

func TestRender_IterationIndexLocals(t *testing.T) {
	st, _ := instanceOf(t, `t(xs) ::= "<xs:{x|<i>:<x>;}>"`, "t")
	st.Add("xs", []any{"a", "b"})
	assert.Equal(t, "1:a;2:b;", st.Render())

	st, _ = instanceOf(t, `t(xs) ::= "<xs:{x|<i0>}>"`, "t")
	st.Add("xs", []any{"a", "b", "c"})
	assert.Equal(t, "012", st.Render())
}

func TestRender_RotMapAlternates(t *testing.T) {
	src := `odd(x) ::= "o<x>"` + "\n" +
		`even(x) ::= "e<x>"` + "\n" +
		`t(xs) ::= "<xs:odd(),even()>"`
	st, _ := instanceOf(t, src, "t")
	st.Add("xs", []any{"1", "2", "3"})
	assert.Equal(t, "o1e2o3", st.Render())
}

func TestRender_BuiltinFunctions(t *testing.T) {
	cases := []struct {
		body string
		want string
	}{
		{`"<first(xs)>"`, "a"},
		{`"<last(xs)>"`, "c"},
		{`"<rest(xs); separator=\",\">"`, "b,c"},
		{`"<trunc(xs); separator=\",\">"`, "a,b"},
		{`"<length(xs)>"`, "3"},
		{`"<reverse(xs); separator=\",\">"`, "c,b,a"},
	}
	for _, tc := range cases {
		st, _ := instanceOf(t, `t(xs) ::= `+tc.body, "t")
		st.Add("xs", []any{"a", "b", "c"})
		assert.Equal(t, tc.want, st.Render(), tc.body)
	}

	st, _ := instanceOf(t, `t(s) ::= "<strlen(s)>"`, "t")
	st.Add("s", "hello")
	assert.Equal(t, "5", st.Render())

	st, _ = instanceOf(t, `t(s) ::= "<trim(s)>"`, "t")
	st.Add("s", "  x  ")
	assert.Equal(t, "x", st.Render())

	st, _ = instanceOf(t, `t(xs) ::= "<strip(xs); separator=\",\">"`, "t")
	st.Add("xs", []any{nil, "a", nil, "b"})
	assert.Equal(t, "a,b", st.Render())
}

func TestRender_BooleanCombinators(t *testing.T) {
	src := `t(a, b) ::= "<if(a && b)>both<elseif(a || b)>one<else>none<endif>"`

	st, _ := instanceOf(t, src, "t")
	st.Add("a", true).Add("b", true)
	assert.Equal(t, "both", st.Render())

	st, _ = instanceOf(t, src, "t")
	st.Add("a", true).Add("b", false)
	assert.Equal(t, "one", st.Render())

	st, _ = instanceOf(t, src, "t")
	st.Add("a", false).Add("b", false)
	assert.Equal(t, "none", st.Render())
}

func TestRender_NegationAndEmptyTruthiness(t *testing.T) {
	src := `t(xs) ::= "<if(!xs)>empty<else>full<endif>"`

	st, _ := instanceOf(t, src, "t")
	st.Add("xs", []any{})
	assert.Equal(t, "empty", st.Render(), "empty list is false")

	st, _ = instanceOf(t, src, "t")
	st.Add("xs", []any{"a"})
	assert.Equal(t, "full", st.Render())

	st, _ = instanceOf(t, src, "t")
	st.Add("xs", 0)
	assert.Equal(t, "full", st.Render(), "zero is truthy; numbers are not special")
}

func TestRender_PropertyAccess(t *testing.T) {
	type user struct {
		Name  string
		Email string
	}
	st, _ := instanceOf(t, `t(u) ::= "<u.Name> \<<u.Email>>"`, "t")
	st.Add("u", user{Name: "Ada", Email: "ada@example.com"})
	assert.Equal(t, "Ada <ada@example.com>", st.Render())
}

func TestRender_MissingAttributeYieldsEmptyAndReports(t *testing.T) {
	buf := &ErrorBuffer{}
	g := FromString(`t() ::= "[<nosuch>]"`, WithErrorListener(buf))
	st, ok := g.GetInstanceOf("t")
	require.True(t, ok)
	assert.Equal(t, "[]", st.Render(), "run-time errors do not abort rendering")
	require.Len(t, buf.Runtime, 1)
	assert.Equal(t, "NO_SUCH_ATTRIBUTE", buf.Runtime[0].Kind)
}

func TestRender_DynamicScoping(t *testing.T) {
	src := `outer(name) ::= "<inner()>"` + "\n" +
		`inner() ::= "hi <name>"`
	st, _ := instanceOf(t, src, "outer")
	st.Add("name", "Ada")
	assert.Equal(t, "hi Ada", st.Render(), "attribute lookup walks the scope chain")
}

func TestRender_MultiValuedAttribute(t *testing.T) {
	st, _ := instanceOf(t, `t(x) ::= "<x; separator=\",\">"`, "t")
	st.Add("x", "a").Add("x", "b").Add("x", "c")
	assert.Equal(t, "a,b,c", st.Render())
}

func TestRender_WhitespaceSuppressionOnEmptyExprLine(t *testing.T) {
	src := "t(x) ::= <<\n" +
		"a\n" +
		"  <x>\n" +
		"b\n" +
		">>\n"
	st, _ := instanceOf(t, src, "t")
	assert.Equal(t, "a\nb", st.Render(), "indent+empty expr+newline leaves nothing behind")

	st, _ = instanceOf(t, src, "t")
	st.Add("x", "X")
	assert.Equal(t, "a\n  X\nb", st.Render())
}

func TestRender_RegionExplicitOverride(t *testing.T) {
	src := `page() ::= "header <@body()> footer"` + "\n" +
		`@page.body() ::= "CONTENT"`
	st, buf := instanceOf(t, src, "page")
	assert.Equal(t, "header CONTENT footer", st.Render())
	assert.Empty(t, buf.All())
}

func TestRender_RegionImplicitEmpty(t *testing.T) {
	st, _ := instanceOf(t, `page() ::= "a<@hole()>b"`, "page")
	assert.Equal(t, "ab", st.Render())
}

func TestRender_RegionEmbedded(t *testing.T) {
	st, _ := instanceOf(t, `page() ::= "a<@mid>X<@end>b"`, "page")
	assert.Equal(t, "aXb", st.Render())
}

func TestRender_SuperCall(t *testing.T) {
	base := FromString(`t() ::= "base"`)
	sub := FromString(`t() ::= "[<super.t()>]"`)
	sub.ImportGroup(base)
	st, ok := sub.GetInstanceOf("t")
	require.True(t, ok)
	assert.Equal(t, "[base]", st.Render())
}

func TestRender_DictionaryLookup(t *testing.T) {
	src := `types ::= ["int":"0", "float":key, default:"null"]` + "\n" +
		`t() ::= "<types.int>/<types.float>/<types.unknown>"`
	st, buf := instanceOf(t, src, "t")
	assert.Equal(t, "0/float/null", st.Render())
	assert.Empty(t, buf.All())
}

func TestRender_DollarDelimiters(t *testing.T) {
	src := `delimiters "$", "$"` + "\n" +
		`hi(name) ::= "hello $name$!"`
	st, _ := instanceOf(t, src, "hi")
	st.Add("name", "Ada")
	assert.Equal(t, "hello Ada!", st.Render())
}

func TestRender_AnchorAlignsWrappedLines(t *testing.T) {
	st, _ := instanceOf(t, `t(xs) ::= "start <xs; anchor, wrap, separator=\",\">"`, "t")
	st.Add("xs", []any{"aaa", "bbb", "ccc", "ddd"})
	out := st.Render(WithLineWidth(12))
	lines := strings.Split(out, "\n")
	require.Greater(t, len(lines), 1, "narrow width must wrap")
	for _, line := range lines[1:] {
		assert.True(t, strings.HasPrefix(line, strings.Repeat(" ", len("start "))),
			"wrapped line %q aligns to the anchor column", line)
	}
}

func TestRender_ListLiteral(t *testing.T) {
	st, _ := instanceOf(t, `t() ::= "<[\"a\", \"b\"]; separator=\"-\">"`, "t")
	assert.Equal(t, "a-b", st.Render())
}

func TestRender_TemplateAsAttribute(t *testing.T) {
	g := FromString(`inner(x) ::= "(<x>)"` + "\n" + `outer(body) ::= "[<body>]"`)
	inner, ok := g.GetInstanceOf("inner")
	require.True(t, ok)
	inner.Add("x", "i")
	outer, ok := g.GetInstanceOf("outer")
	require.True(t, ok)
	outer.Add("body", inner)
	assert.Equal(t, "[(i)]", outer.Render())
}
