package internal

import "strings"

// MangledRegionName returns the group-level template name a region
// `r` of template `enclosing` is installed under.
func MangledRegionName(enclosing, region string) string {
	return RegionNamePrefix + strings.TrimPrefix(enclosing, "/") + "__" + region
}

// FormalArgument is one declared (or implicitly discovered) parameter of
// a template. A default is
// either an immediate value (string, bool, empty List) or a compiled
// `{...}` template rendered lazily before the body executes.
type FormalArgument struct {
	Name            string
	Index           int
	HasDefaultValue bool
	DefaultValue    any
	DefaultCompiled *CompiledST
}

// CompiledST is the immutable result of compiling one template body:
// bytecode, string pool, source map, and formal-argument metadata. All
// ST instances created from the same named template share one
// CompiledST; when the template declares no formal-argument list, an
// instance clones it on its first Add of an undeclared name (see Clone).
type CompiledST struct {
	Name          string
	Prefix        string
	Template      string
	IsRegion      bool
	RegionDefType RegionDefType
	IsAnonSub     bool

	HasFormalArgs   bool
	FormalArgs      map[string]*FormalArgument
	ArgOrder        []string // declaration order, for positional binding
	NumDeclaredArgs int      // anon sub-templates: |{a,b|...}| args, before implicit it/i0/i

	Strings  *StringTable
	Instrs   []byte
	CodeSize int
	SourceMap map[int]Position // keyed by instruction-start IP, for error messages

	ImplicitlyDefined []*CompiledST // regions and anonymous sub-templates defined inside this one

	// NativeGroup is the group this template was compiled into. It is set
	// by the group once the CompiledST is installed, and is used by
	// SUPER_NEW* to resolve in NativeGroup's super_group (its first
	// import) regardless of which group's instance is currently
	// executing. Declared as the internal.TemplateSource interface so
	// this package never imports the root package that implements it.
	NativeGroup TemplateSource
}

// NewCompiledST creates an empty CompiledST ready for code generation.
func NewCompiledST(name string) *CompiledST {
	return &CompiledST{
		Name:       name,
		Prefix:     "/",
		FormalArgs: make(map[string]*FormalArgument),
		Strings:    NewStringTable(),
		SourceMap:  make(map[int]Position),
	}
}

// Clone copies the formal-argument bookkeeping so that ST.Add can safely
// grow the locals list of one instance without mutating the shared
// template definition. Bytecode, the
// string pool, and the source map are immutable after compilation and
// are shared by reference.
func (c *CompiledST) Clone() *CompiledST {
	clone := &CompiledST{
		Name:              c.Name,
		Prefix:            c.Prefix,
		Template:          c.Template,
		IsRegion:          c.IsRegion,
		RegionDefType:     c.RegionDefType,
		IsAnonSub:         c.IsAnonSub,
		HasFormalArgs:     c.HasFormalArgs,
		FormalArgs:        make(map[string]*FormalArgument, len(c.FormalArgs)),
		ArgOrder:          append([]string(nil), c.ArgOrder...),
		NumDeclaredArgs:   c.NumDeclaredArgs,
		Strings:           c.Strings,
		Instrs:            c.Instrs,
		CodeSize:          c.CodeSize,
		SourceMap:         c.SourceMap,
		ImplicitlyDefined: c.ImplicitlyDefined,
		NativeGroup:       c.NativeGroup,
	}
	for k, v := range c.FormalArgs {
		fa := *v
		clone.FormalArgs[k] = &fa
	}
	return clone
}

// AddImplicitArg appends a new formal argument discovered at render time
// via ST.Add on a template with no declared argument list. The caller
// must already hold a Clone if this CompiledST is shared.
func (c *CompiledST) AddImplicitArg(name string) *FormalArgument {
	if fa, ok := c.FormalArgs[name]; ok {
		return fa
	}
	fa := &FormalArgument{Name: name, Index: len(c.ArgOrder)}
	c.FormalArgs[name] = fa
	c.ArgOrder = append(c.ArgOrder, name)
	return fa
}

// NumArgs returns the number of declared/discovered formal arguments.
func (c *CompiledST) NumArgs() int {
	return len(c.ArgOrder)
}
