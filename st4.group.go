package st4

import (
	"reflect"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/rydnr/stringtemplate4/internal"
)

// notFoundSentinel caches negative template lookups so a repeated miss
// never re-walks the disk or the import chain.
var notFoundSentinel = internal.NewCompiledST("<not-found>")

// AbsoluteName normalizes a template name to its absolute `/a/b` form.
func AbsoluteName(name string) string {
	if strings.HasPrefix(name, "/") {
		return name
	}
	return "/" + name
}

// Group is a namespace of templates and dictionaries, organized as a
// path tree, plus the renderer and adaptor registries and the ordered
// import list searched on lookup misses.
type Group struct {
	name       string
	delimStart string
	delimStop  string
	locale     string
	debug      bool

	logger *zap.Logger
	errMgr *ErrorManager

	mu        sync.RWMutex
	templates map[string]*internal.CompiledST
	order     []string
	dicts     map[string]*Dictionary
	imports   []*Group

	renderers *RendererRegistry
	adaptors  *AdaptorRegistry

	anonCounter int

	// Lazy-load hooks, installed by the file/dir/postgres constructors.
	// loadMu makes first-load safe under concurrent lookups.
	loadMu      sync.Mutex
	loadAll     func() error
	loadOne     func(name string)
	loaded      bool
	loadedFiles map[string]bool
}

// NewGroup creates an empty in-memory group; templates are added via
// DefineTemplate or by importing other groups.
func NewGroup(opts ...GroupOption) *Group {
	cfg := defaultGroupConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	logger := cfg.logger
	if logger == nil {
		logger = zap.NewNop()
	}
	errMgr := NewErrorManager(cfg.listener, logger)
	g := &Group{
		delimStart:  cfg.delimStart,
		delimStop:   cfg.delimStop,
		locale:      cfg.locale,
		debug:       cfg.debug,
		logger:      logger,
		errMgr:      errMgr,
		templates:   make(map[string]*internal.CompiledST),
		dicts:       make(map[string]*Dictionary),
		renderers:   NewRendererRegistry(),
		adaptors:    NewAdaptorRegistry(errMgr, logger),
		loadedFiles: make(map[string]bool),
	}
	registerDefaultRenderers(g.renderers)
	return g
}

// Name returns the group's display name (its source file or directory,
// or empty for an in-memory group).
func (g *Group) Name() string { return g.name }

// Delimiters returns the group's expression delimiters.
func (g *Group) Delimiters() (string, string) { return g.delimStart, g.delimStop }

// ErrorManager returns the group's error manager.
func (g *Group) ErrorManager() *ErrorManager { return g.errMgr }

// Locale implements internal.TemplateSource.
func (g *Group) Locale() string { return g.locale }

// SuperSource implements internal.TemplateSource: the super group is
// the first import.
func (g *Group) SuperSource() (internal.TemplateSource, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if len(g.imports) == 0 {
		return nil, false
	}
	return g.imports[0], true
}

// ImportGroup appends an imported group, searched after this group on
// lookup misses; earlier imports win.
func (g *Group) ImportGroup(imported *Group) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.imports = append(g.imports, imported)
}

// Imports returns the ordered imported groups.
func (g *Group) Imports() []*Group {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return append([]*Group(nil), g.imports...)
}

// LookupCompiled implements internal.TemplateSource with five-step
// resolution: cached hit, cached miss, lazy load + retry, imports in
// order, cache the miss.
func (g *Group) LookupCompiled(name string) (*internal.CompiledST, internal.TemplateSource, bool) {
	name = AbsoluteName(name)

	g.mu.RLock()
	c, ok := g.templates[name]
	g.mu.RUnlock()
	if ok {
		if c == notFoundSentinel {
			return nil, nil, false
		}
		return c, g, true
	}

	g.ensureLoaded(name)

	g.mu.RLock()
	c, ok = g.templates[name]
	g.mu.RUnlock()
	if ok && c != notFoundSentinel {
		return c, g, true
	}

	if !ok {
		for _, imp := range g.Imports() {
			if c, owner, found := imp.LookupCompiled(name); found {
				return c, owner, true
			}
		}
	}

	g.mu.Lock()
	if _, exists := g.templates[name]; !exists {
		g.templates[name] = notFoundSentinel
	}
	g.mu.Unlock()
	return nil, nil, false
}

// LookupDict implements internal.TemplateSource; dictionaries resolve
// in this group first, then in imports in order.
func (g *Group) LookupDict(name string) (any, bool) {
	g.ensureLoaded("")
	g.mu.RLock()
	d, ok := g.dicts[name]
	g.mu.RUnlock()
	if ok {
		return d, true
	}
	for _, imp := range g.Imports() {
		if d, ok := imp.LookupDict(name); ok {
			return d, true
		}
	}
	return nil, false
}

// Dictionary returns a dictionary defined in this group (not imports).
func (g *Group) Dictionary(name string) (*Dictionary, bool) {
	g.ensureLoaded("")
	g.mu.RLock()
	defer g.mu.RUnlock()
	d, ok := g.dicts[name]
	return d, ok
}

// DefineDictionary installs a dictionary; redefining one is an error.
func (g *Group) DefineDictionary(d *Dictionary) {
	g.mu.Lock()
	_, dictExists := g.dicts[d.Name()]
	_, tmplExists := g.templates[AbsoluteName(d.Name())]
	if !dictExists && !tmplExists {
		g.dicts[d.Name()] = d
	}
	g.mu.Unlock()
	if dictExists {
		g.errMgr.CompileError(internal.ErrKindMapRedefinition, Position{}, d.Name())
	} else if tmplExists {
		g.errMgr.CompileError(internal.ErrKindTemplateRedefinitionAsMap, Position{}, d.Name())
	}
}

// IsDefined reports whether name resolves to a template; a miss is
// cached like any other lookup.
func (g *Group) IsDefined(name string) bool {
	_, _, ok := g.LookupCompiled(name)
	return ok
}

// TemplateNames returns every defined template name in definition
// order, excluding cached misses.
func (g *Group) TemplateNames() []string {
	g.ensureLoaded("")
	g.mu.RLock()
	defer g.mu.RUnlock()
	names := make([]string, 0, len(g.order))
	for _, n := range g.order {
		if g.templates[n] != notFoundSentinel {
			names = append(names, n)
		}
	}
	return names
}

// Disassemble returns one-line-per-instruction bytecode for a compiled
// template, for diagnostics and the CLI debug command.
func (g *Group) Disassemble(name string) (string, bool) {
	c, _, ok := g.LookupCompiled(name)
	if !ok {
		return "", false
	}
	return internal.Disassemble(c), true
}

// GetInstanceOf creates a template instance bound to this group. The
// second return is false when the name does not resolve.
func (g *Group) GetInstanceOf(name string) (*ST, bool) {
	compiled, _, ok := g.LookupCompiled(name)
	if !ok {
		g.errMgr.RuntimeError(internal.ErrKindNoSuchTemplate, Position{}, "", name)
		return nil, false
	}
	return newST(compiled, g), true
}

// RegisterRenderer associates a renderer with a runtime type,
// recursively into every imported group.
func (g *Group) RegisterRenderer(t reflect.Type, r AttributeRenderer) {
	g.renderers.Register(t, r)
	for _, imp := range g.Imports() {
		imp.RegisterRenderer(t, r)
	}
}

// RegisterModelAdaptor associates a ModelAdaptor with a runtime type.
func (g *Group) RegisterModelAdaptor(t reflect.Type, a ModelAdaptor) {
	g.adaptors.Register(t, a)
}

// Render implements internal.ValueRenderer: this group's registry
// first, then imports in order.
func (g *Group) Render(v any, format string, locale string) (string, bool, error) {
	if s, ok, err := g.renderers.Render(v, format, locale); ok || err != nil {
		return s, ok, err
	}
	for _, imp := range g.Imports() {
		if s, ok, err := imp.Render(v, format, locale); ok || err != nil {
			return s, ok, err
		}
	}
	return "", false, nil
}

// GetProperty implements internal.PropertyReader by delegating to the
// adaptor registry.
func (g *Group) GetProperty(obj any, name string) (any, bool, error) {
	return g.adaptors.GetProperty(obj, name)
}

// --- template definition ---

// DefineTemplate compiles and installs a template with no declared
// formal-argument list; any attribute name may later be added to its
// instances.
func (g *Group) DefineTemplate(name, body string) error {
	return g.defineTemplate(name, nil, false, body, Position{}, RootPrefix)
}

// DefineTemplateWithArgs compiles and installs a template with an
// explicitly declared formal-argument list.
func (g *Group) DefineTemplateWithArgs(name string, args []string, body string) error {
	formals := make([]*internal.FormalArgument, len(args))
	for i, a := range args {
		formals[i] = &internal.FormalArgument{Name: a}
	}
	return g.defineTemplate(name, formals, true, body, Position{}, RootPrefix)
}

func (g *Group) defineTemplate(name string, formals []*internal.FormalArgument, hasArgs bool, body string, pos Position, prefix string) error {
	if name == "" || strings.ContainsAny(name, " .") {
		g.errMgr.CompileError(internal.ErrKindInvalidTemplateName, pos, name)
		return newCompileError(internal.ErrKindInvalidTemplateName, pos, name)
	}
	abs := prefix + name
	g.mu.RLock()
	existing, exists := g.templates[abs]
	g.mu.RUnlock()
	if exists && existing != notFoundSentinel {
		g.errMgr.CompileError(internal.ErrKindTemplateRedefinition, pos, name)
		return newCompileError(internal.ErrKindTemplateRedefinition, pos, name)
	}

	compiled, implicit, err := g.compileBody(name, formals, hasArgs, body, pos)
	if err != nil {
		return err
	}
	g.install(compiled, prefix)
	g.installImplicit(implicit, prefix)
	return nil
}

// compileBody runs the lexer/parser/code-generator pipeline over one
// template body using the group's delimiters. Compile errors are
// reported through the error manager and compilation of this template
// is abandoned; the caller moves on to the next definition.
func (g *Group) compileBody(name string, formals []*internal.FormalArgument, hasArgs bool, body string, pos Position) (*internal.CompiledST, []*internal.CompiledST, error) {
	lex := internal.NewLexerWithDelimiters(body, g.delimStart, g.delimStop, g.logger)
	tokens, err := lex.Tokenize()
	if err != nil {
		g.errMgr.CompileError(internal.ErrKindLexerError, pos, err)
		return nil, nil, newCompileError(internal.ErrKindLexerError, pos, err)
	}
	root, err := internal.NewParser(tokens, body, g.logger).Parse()
	if err != nil {
		g.errMgr.CompileError(internal.ErrKindSyntaxError, pos, err)
		return nil, nil, newCompileError(internal.ErrKindSyntaxError, pos, err)
	}
	compiled, implicit, err := internal.CompileTemplate(name, formals, hasArgs, body, root, &g.anonCounter, g.logger)
	if err != nil {
		g.errMgr.CompileError(internal.ErrKindSyntaxError, pos, err)
		return nil, nil, newCompileError(internal.ErrKindSyntaxError, pos, err)
	}
	return compiled, implicit, nil
}

// install makes a CompiledST resolvable under its absolute name and
// stamps its prefix and native group (used by SUPER_NEW*).
func (g *Group) install(c *internal.CompiledST, prefix string) {
	abs := prefix + strings.TrimPrefix(c.Name, "/")
	c.Name = abs
	c.Prefix = prefix
	c.NativeGroup = g
	g.mu.Lock()
	// A cached-miss sentinel was never entered into the definition order.
	if existing, exists := g.templates[abs]; !exists || existing == notFoundSentinel {
		g.order = append(g.order, abs)
	}
	g.templates[abs] = c
	g.mu.Unlock()
}

// installImplicit installs anonymous sub-templates and regions
// discovered during one compilation. An implicit (empty) region never
// overwrites an explicit override already in place; an embedded region
// colliding with an explicit one is a redefinition error.
func (g *Group) installImplicit(implicit []*internal.CompiledST, prefix string) {
	for _, c := range implicit {
		abs := prefix + c.Name
		g.mu.RLock()
		existing, exists := g.templates[abs]
		g.mu.RUnlock()
		if exists && existing != notFoundSentinel && c.IsRegion {
			if c.RegionDefType == internal.RegionImplicit {
				continue
			}
			if existing.IsRegion && existing.RegionDefType == internal.RegionExplicit {
				g.errMgr.CompileError(internal.ErrKindEmbeddedRegionRedefinition, Position{}, abs)
				continue
			}
		}
		g.install(c, prefix)
	}
}

// defineRegionExplicit installs an `@t.r() ::= ...` region definition,
// honoring the region redefinition rules: an implicit region
// may be overridden exactly once, an explicit one never, an embedded
// one never.
func (g *Group) defineRegionExplicit(owner, region, body string, pos Position, prefix string) {
	g.mu.RLock()
	ownerCompiled, ownerOK := g.templates[prefix+owner]
	g.mu.RUnlock()
	if !ownerOK || ownerCompiled == notFoundSentinel {
		g.errMgr.CompileError(internal.ErrKindNoSuchRegion, pos, owner, region)
		return
	}
	mangled := internal.MangledRegionName(owner, region)
	abs := prefix + mangled
	g.mu.RLock()
	existing, exists := g.templates[abs]
	g.mu.RUnlock()
	if exists && existing != notFoundSentinel && existing.IsRegion {
		switch existing.RegionDefType {
		case internal.RegionExplicit:
			g.errMgr.CompileError(internal.ErrKindRegionRedefinition, pos, region)
			return
		case internal.RegionEmbedded:
			g.errMgr.CompileError(internal.ErrKindEmbeddedRegionRedefinition, pos, region)
			return
		}
	}
	compiled, implicit, err := g.compileBody(mangled, nil, false, body, pos)
	if err != nil {
		return
	}
	compiled.IsRegion = true
	compiled.RegionDefType = internal.RegionExplicit
	g.mu.Lock()
	delete(g.templates, abs)
	g.mu.Unlock()
	g.install(compiled, prefix)
	g.installImplicit(implicit, prefix)
}

// --- group-file loading ---

// loadGroupSource parses one `.stg` source and applies its directives
// and definitions. Definitions are applied templates-and-dictionaries
// first, then regions, then aliases, so that forward references inside
// one file resolve regardless of declaration order.
func (g *Group) loadGroupSource(src, sourceName, importBase, prefix string) {
	g.logger.Debug(LogMsgGroupLoad, zap.String(LogFieldPath, sourceName))
	gf, err := internal.ParseGroupFile(src, g.logger)
	if err != nil {
		g.errMgr.CompileError(internal.ErrKindSyntaxError, positionOf(err), err)
		return
	}

	if gf.DelimStart != internal.DefaultDelimiterStart || gf.DelimStop != internal.DefaultDelimiterStop {
		if verr := internal.ValidateDelimiters(gf.DelimStart, gf.DelimStop); verr != nil {
			g.errMgr.CompileError(internal.ErrKindUnsupportedDelimiter, Position{}, gf.DelimStart+gf.DelimStop)
		} else {
			g.delimStart = gf.DelimStart
			g.delimStop = gf.DelimStop
		}
	}

	for _, imp := range gf.Imports {
		g.importPath(importBase, imp)
	}

	for _, def := range gf.Defs {
		switch def.Kind {
		case internal.DefTemplate:
			formals, ok := g.buildFormalArgs(def)
			if !ok {
				continue
			}
			_ = g.defineTemplate(def.Name, formals, def.HasFormalArgs, def.Body, def.Pos, prefix)
		case internal.DefDict:
			g.defineDictFromDef(def)
		}
	}
	for _, def := range gf.Defs {
		if def.Kind == internal.DefRegion {
			g.defineRegionExplicit(def.Name, def.RegionName, def.Body, def.Pos, prefix)
		}
	}
	for _, def := range gf.Defs {
		if def.Kind == internal.DefAlias {
			g.defineAlias(def, prefix)
		}
	}
	g.logger.Debug(LogMsgGroupLoaded, zap.String(LogFieldPath, sourceName))
}

// buildFormalArgs converts parsed formal-argument definitions,
// compiling `{...}` default bodies; ok is false when the argument list
// itself is invalid and the whole template must be skipped.
func (g *Group) buildFormalArgs(def internal.TemplateDef) ([]*internal.FormalArgument, bool) {
	var formals []*internal.FormalArgument
	seen := make(map[string]bool, len(def.FormalArgs))
	for _, a := range def.FormalArgs {
		if seen[a.Name] {
			g.errMgr.CompileError(internal.ErrKindParameterRedefinition, def.Pos, a.Name)
			return nil, false
		}
		seen[a.Name] = true
		fa := &internal.FormalArgument{Name: a.Name}
		switch a.Kind {
		case internal.DefaultString:
			fa.HasDefaultValue = true
			fa.DefaultValue = a.StringVal
		case internal.DefaultBool:
			fa.HasDefaultValue = true
			fa.DefaultValue = a.BoolVal
		case internal.DefaultEmptyList:
			fa.HasDefaultValue = true
			fa.DefaultValue = internal.List{}
		case internal.DefaultTemplate:
			compiled, implicit, err := g.compileBody(def.Name+DefaultArgSuffix+a.Name, nil, false, a.TemplateSrc, def.Pos)
			if err != nil {
				return nil, false
			}
			compiled.NativeGroup = g
			g.installImplicit(implicit, RootPrefix)
			fa.HasDefaultValue = true
			fa.DefaultCompiled = compiled
		}
		formals = append(formals, fa)
	}
	return formals, true
}

// defineDictFromDef materializes a `name ::= [...]` definition.
func (g *Group) defineDictFromDef(def internal.TemplateDef) {
	d := NewDictionary(def.Name)
	for _, k := range def.DictOrder {
		d.Put(k, dictValueOf(def.DictEntries[k]))
	}
	if def.DictHasDefault {
		d.SetDefault(dictValueOf(def.DictDefault))
	}
	g.DefineDictionary(d)
}

// dictValueOf maps a parsed dictionary-value expression to its runtime
// value: a string, a boolean, or the use-key-as-value sentinel.
func dictValueOf(n internal.Node) any {
	switch v := n.(type) {
	case *internal.StringLitNode:
		return v.Value
	case *internal.BoolLitNode:
		return v.Value
	case *internal.AttrNode:
		if v.Name == DictKeyword {
			return UseKeyAsValue
		}
		return v.Name
	}
	return nil
}

// defineAlias installs `a ::= b`, pointing a at b's CompiledST.
func (g *Group) defineAlias(def internal.TemplateDef, prefix string) {
	target := prefix + def.AliasTarget
	g.mu.RLock()
	c, ok := g.templates[target]
	g.mu.RUnlock()
	if !ok || c == notFoundSentinel {
		g.errMgr.CompileError(internal.ErrKindAliasTargetUndefined, def.Pos, def.Name, def.AliasTarget)
		return
	}
	abs := prefix + def.Name
	g.mu.Lock()
	if existing, exists := g.templates[abs]; !exists || existing == notFoundSentinel {
		g.order = append(g.order, abs)
	}
	g.templates[abs] = c
	g.mu.Unlock()
}

// ensureLoaded triggers the lazy-load hooks: a full load for
// file-backed groups, a per-name probe for directory groups. name is
// the absolute template name being resolved, or empty for a
// load-everything request (dictionary lookups, listings).
func (g *Group) ensureLoaded(name string) {
	g.loadMu.Lock()
	defer g.loadMu.Unlock()
	if g.loadAll != nil && !g.loaded {
		g.loaded = true
		if err := g.loadAll(); err != nil {
			g.errMgr.InternalError(internal.ErrKindCantLoadGroupFile, err)
		}
	}
	if g.loadOne != nil && name != "" {
		g.loadOne(name)
	}
}

// positionOf extracts a source position from a lexer/parser error.
func positionOf(err error) Position {
	switch e := err.(type) {
	case *internal.ParseError:
		return e.Position
	case *internal.LexerError:
		return e.Position
	}
	return Position{}
}
