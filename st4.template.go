package st4

import (
	"io"
	"strings"

	"go.uber.org/zap"

	"github.com/rydnr/stringtemplate4/internal"
)

// ST is one user-facing template instance: a reference to a
// CompiledST, one locals slot per formal argument, and the group that
// created it (used for name resolution at render time). Instances are
// owned by one goroutine at a time; concurrent renders need separate
// instances.
type ST struct {
	tv     *internal.TemplateValue
	group  *Group
	cloned bool
	events []DebugEvent
}

func newST(compiled *internal.CompiledST, group *Group) *ST {
	st := &ST{tv: internal.NewTemplateValue(compiled, group), group: group}
	if group.debug {
		st.events = append(st.events, newDebugEvent(EventConstruction, compiled.Name, nil))
	}
	return st
}

// NewST compiles source as a standalone anonymous template in a fresh
// group, for one-off renders without a group file.
func NewST(source string, opts ...GroupOption) *ST {
	g := NewGroup(opts...)
	_ = g.DefineTemplate(AnonTemplateName, source)
	st, _ := g.GetInstanceOf(AnonTemplateName)
	if st == nil {
		// Compilation failed; render as empty. The listener already
		// received the diagnostics.
		empty := internal.NewCompiledST(AnonTemplateName)
		st = newST(empty, g)
	}
	return st
}

// Name returns the template's fully qualified name.
func (st *ST) Name() string { return st.tv.Compiled.Name }

// Group returns the group this instance resolves names in.
func (st *ST) Group() *Group { return st.group }

// Add binds an attribute and returns the instance for chaining.
// Repeated adds of the same name accumulate into a managed
// multi-valued list. Adding a name a declared argument list does not
// contain reports NO_SUCH_ATTRIBUTE; on a template with no declared
// list, the instance's CompiledST is cloned first so other instances
// never observe the new argument.
func (st *ST) Add(name string, value any) *ST {
	if strings.Contains(name, ".") {
		st.group.errMgr.RuntimeError(internal.ErrKindNoSuchAttribute, Position{}, st.Name(), name)
		return st
	}
	if st.group.debug {
		st.events = append(st.events, newDebugEvent(EventAddAttribute, st.Name(), map[string]any{DebugDataAttribute: name}))
	}

	existing, declared := st.tv.Lookup(name)
	if !declared {
		if st.tv.Compiled.HasFormalArgs {
			st.group.errMgr.RuntimeError(internal.ErrKindNoSuchAttribute, Position{}, st.Name(), name)
			return st
		}
		if !st.cloned {
			st.tv.Compiled = st.tv.Compiled.Clone()
			st.cloned = true
		}
		fa := st.tv.Compiled.AddImplicitArg(name)
		st.tv.SetByIndex(fa.Index, value)
		return st
	}

	if internal.IsEmpty(existing) {
		st.tv.SetByName(name, value)
		return st
	}
	if lst, ok := existing.(internal.List); ok {
		st.tv.SetByName(name, append(lst, value))
		return st
	}
	st.tv.SetByName(name, internal.List{existing, value})
	return st
}

// AddAggregate binds an anonymous property bag in one call:
// `st.AddAggregate("point.{x,y}", 3, 4)` makes `<point.x>` render 3.
func (st *ST) AddAggregate(spec string, values ...any) *ST {
	name, props, ok := parseAggregateSpec(spec)
	if !ok || len(props) != len(values) {
		st.group.errMgr.RuntimeError(internal.ErrKindArgumentCountMismatch, Position{}, st.Name(), spec, st.Name())
		return st
	}
	agg := &Aggregate{Props: make(map[string]any, len(props))}
	for i, p := range props {
		agg.Props[p] = values[i]
	}
	return st.Add(name, agg)
}

// parseAggregateSpec splits "name.{p1,p2,...}" into its parts.
func parseAggregateSpec(spec string) (string, []string, bool) {
	dot := strings.Index(spec, ".{")
	if dot <= 0 || !strings.HasSuffix(spec, "}") {
		return "", nil, false
	}
	name := spec[:dot]
	inner := spec[dot+2 : len(spec)-1]
	parts := strings.Split(inner, ",")
	props := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			return "", nil, false
		}
		props = append(props, p)
	}
	return name, props, true
}

// Remove unbinds an attribute; the slot reverts to unset, so a
// declared default applies again on the next render.
func (st *ST) Remove(name string) {
	fa, ok := st.tv.Compiled.FormalArgs[name]
	if !ok {
		return
	}
	st.tv.SetByIndex(fa.Index, internal.Empty)
}

// GetAttribute returns the bound value of an attribute, or nil.
func (st *ST) GetAttribute(name string) any {
	v, ok := st.tv.Lookup(name)
	if !ok || internal.IsEmpty(v) {
		return nil
	}
	return v
}

// Render executes the template and returns the output.
func (st *ST) Render(opts ...RenderOption) string {
	var sb strings.Builder
	_, _ = st.Write(&sb, opts...)
	return sb.String()
}

// Write executes the template into out and returns the number of
// characters written. Run-time errors go to the listener and do not
// abort; only I/O and internal errors surface here.
func (st *ST) Write(out io.Writer, opts ...RenderOption) (int, error) {
	cfg := &renderConfig{locale: st.group.locale, lineWidth: internal.NoWrap}
	for _, opt := range opts {
		opt(cfg)
	}
	st.group.logger.Debug(LogMsgRender, zap.String(LogFieldTemplate, st.Name()))

	w := internal.NewWriter(out)
	if cfg.lineWidth > 0 {
		w.SetLineWidth(cfg.lineWidth)
	}
	errMgr := st.group.errMgr.withListener(cfg.listener)
	interp := internal.NewInterpreter(st.group, st.group, errMgr, cfg.locale, st.group.logger)
	if st.group.debug {
		interp.OnEvent = func(kind string, scope *internal.InstanceScope, data map[string]any) {
			st.events = append(st.events, newDebugEvent(kind, scope.TemplateName(), data))
		}
	}
	if _, err := interp.Exec(st.tv, nil, w); err != nil {
		return w.Index(), err
	}
	return w.Index(), nil
}

// TemplateValue exposes the VM-level value for this instance, letting
// the interpreter render an ST stored as another template's attribute.
func (st *ST) TemplateValue() *internal.TemplateValue { return st.tv }

// Events returns the debug event log accumulated by this instance's
// adds and renders; empty unless the group was built WithDebug.
func (st *ST) Events() []DebugEvent {
	return append([]DebugEvent(nil), st.events...)
}
