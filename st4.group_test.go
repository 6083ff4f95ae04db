package st4

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rydnr/stringtemplate4/internal"
)

func TestGroup_DefineAndLookup(t *testing.T) {
	g := NewGroup()
	require.NoError(t, g.DefineTemplateWithArgs("hi", []string{"name"}, "hello <name>"))

	c, owner, ok := g.LookupCompiled("hi")
	require.True(t, ok)
	assert.Equal(t, "/hi", c.Name)
	assert.Same(t, g, owner.(*Group))

	c2, _, ok := g.LookupCompiled("/hi")
	require.True(t, ok)
	assert.Same(t, c, c2, "bare and absolute names resolve to the same definition")
}

func TestGroup_MissCachedAsSentinel(t *testing.T) {
	g := NewGroup()
	_, _, ok := g.LookupCompiled("nope")
	assert.False(t, ok)

	// A later import would now be masked for this name by design: the
	// miss is cached.
	imp := NewGroup()
	require.NoError(t, imp.DefineTemplate("nope", "x"))
	g.ImportGroup(imp)
	_, _, ok = g.LookupCompiled("nope")
	assert.False(t, ok)
}

func TestGroup_RedefinitionReported(t *testing.T) {
	buf := &ErrorBuffer{}
	g := NewGroup(WithErrorListener(buf))
	require.NoError(t, g.DefineTemplate("t", "one"))
	err := g.DefineTemplate("t", "two")
	require.Error(t, err)
	require.Len(t, buf.Compile, 1)
	assert.Equal(t, internal.ErrKindTemplateRedefinition, buf.Compile[0].Kind)

	st, _ := g.GetInstanceOf("t")
	assert.Equal(t, "one", st.Render(), "first definition stays in force")
}

func TestGroup_InvalidTemplateName(t *testing.T) {
	buf := &ErrorBuffer{}
	g := NewGroup(WithErrorListener(buf))
	require.Error(t, g.DefineTemplate("has space", "x"))
	require.Error(t, g.DefineTemplate("has.dot", "x"))
	require.Len(t, buf.Compile, 2)
	assert.Equal(t, internal.ErrKindInvalidTemplateName, buf.Compile[0].Kind)
}

func TestGroup_CompileErrorAbandonsOnlyThatTemplate(t *testing.T) {
	buf := &ErrorBuffer{}
	src := `bad() ::= "<if(x)>unclosed"` + "\n" +
		`good() ::= "fine"`
	g := FromString(src, WithErrorListener(buf))

	st, ok := g.GetInstanceOf("good")
	require.True(t, ok, "other templates still compile")
	assert.Equal(t, "fine", st.Render())

	_, ok = g.GetInstanceOf("bad")
	assert.False(t, ok)
	assert.NotEmpty(t, buf.Compile)
}

func TestGroup_Alias(t *testing.T) {
	src := `real() ::= "R"` + "\n" + `shortcut ::= real`
	g := FromString(src)
	st, ok := g.GetInstanceOf("shortcut")
	require.True(t, ok)
	assert.Equal(t, "R", st.Render())
}

func TestGroup_AliasTargetUndefined(t *testing.T) {
	buf := &ErrorBuffer{}
	FromString(`shortcut ::= missing`, WithErrorListener(buf))
	require.Len(t, buf.Compile, 1)
	assert.Equal(t, internal.ErrKindAliasTargetUndefined, buf.Compile[0].Kind)
}

func TestGroup_DictRedefinitionReported(t *testing.T) {
	buf := &ErrorBuffer{}
	src := `d ::= ["a":"1"]` + "\n" + `d ::= ["b":"2"]`
	FromString(src, WithErrorListener(buf))
	require.Len(t, buf.Compile, 1)
	assert.Equal(t, internal.ErrKindMapRedefinition, buf.Compile[0].Kind)
}

func TestGroup_TemplateRedefinedAsMapReported(t *testing.T) {
	buf := &ErrorBuffer{}
	src := `x() ::= "t"` + "\n" + `x ::= ["a":"1"]`
	FromString(src, WithErrorListener(buf))
	require.Len(t, buf.Compile, 1)
	assert.Equal(t, internal.ErrKindTemplateRedefinitionAsMap, buf.Compile[0].Kind)
}

func TestGroup_RegionRedefinitionRules(t *testing.T) {
	buf := &ErrorBuffer{}
	src := `page() ::= "a<@r()>b"` + "\n" +
		`@page.r() ::= "one"` + "\n" +
		`@page.r() ::= "two"`
	g := FromString(src, WithErrorListener(buf))
	require.Len(t, buf.Compile, 1)
	assert.Equal(t, internal.ErrKindRegionRedefinition, buf.Compile[0].Kind)

	st, _ := g.GetInstanceOf("page")
	assert.Equal(t, "aoneb", st.Render(), "first explicit override wins")
}

func TestGroup_EmbeddedRegionRedefinitionReported(t *testing.T) {
	buf := &ErrorBuffer{}
	src := `page() ::= "a<@r>X<@end>b"` + "\n" +
		`@page.r() ::= "override"`
	FromString(src, WithErrorListener(buf))
	require.Len(t, buf.Compile, 1)
	assert.Equal(t, internal.ErrKindEmbeddedRegionRedefinition, buf.Compile[0].Kind)
}

func TestGroup_RegionForUnknownTemplateReported(t *testing.T) {
	buf := &ErrorBuffer{}
	FromString(`@missing.r() ::= "x"`, WithErrorListener(buf))
	require.Len(t, buf.Compile, 1)
	assert.Equal(t, internal.ErrKindNoSuchRegion, buf.Compile[0].Kind)
}

func TestGroup_RequiredParameterAfterOptionalReported(t *testing.T) {
	buf := &ErrorBuffer{}
	FromString(`t(a="x", b) ::= "<a><b>"`, WithErrorListener(buf))
	assert.NotEmpty(t, buf.Compile)
}

func TestGroup_ParameterRedefinitionReported(t *testing.T) {
	buf := &ErrorBuffer{}
	g := FromString(`t(a, a) ::= "<a>"`, WithErrorListener(buf))
	require.Len(t, buf.Compile, 1)
	assert.Equal(t, internal.ErrKindParameterRedefinition, buf.Compile[0].Kind)
	_, ok := g.GetInstanceOf("t")
	assert.False(t, ok)
}

func TestGroup_UnsupportedDelimiterReported(t *testing.T) {
	buf := &ErrorBuffer{}
	src := "delimiters \"{\", \"}\"\nt() ::= \"x\"\n"
	FromString(src, WithErrorListener(buf))
	require.NotEmpty(t, buf.Compile)
	assert.Equal(t, internal.ErrKindUnsupportedDelimiter, buf.Compile[0].Kind)
}

func TestGroup_TemplateNamesInDefinitionOrder(t *testing.T) {
	g := FromString(`b() ::= "B"` + "\n" + `a() ::= "A"`)
	g.Load()
	names := g.TemplateNames()
	assert.Equal(t, []string{"/b", "/a"}, names)
}

func TestGroup_GetInstanceOfUnknownReportsNoSuchTemplate(t *testing.T) {
	buf := &ErrorBuffer{}
	g := NewGroup(WithErrorListener(buf))
	_, ok := g.GetInstanceOf("ghost")
	assert.False(t, ok)
	require.Len(t, buf.Runtime, 1)
	assert.Equal(t, internal.ErrKindNoSuchTemplate, buf.Runtime[0].Kind)
}

func TestGroup_Disassemble(t *testing.T) {
	g := NewGroup()
	require.NoError(t, g.DefineTemplateWithArgs("t", []string{"x"}, "hi <x>"))
	dump, ok := g.Disassemble("t")
	require.True(t, ok)
	assert.Contains(t, dump, "write_str")
	assert.Contains(t, dump, "load_attr")
}
