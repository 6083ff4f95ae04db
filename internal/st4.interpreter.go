package internal

import (
	"strings"

	"go.uber.org/zap"
)

// Options is the fixed-size option vector pushed by OPTIONS and filled
// in by STORE_OPTION, indexed by OptionKind.
type Options [numOptions]any

// Interpreter is the stack VM that executes one CompiledST's bytecode
// against an attribute environment, producing characters through a
// Writer. Collaborators are injected as interfaces so this
// package never imports the root package that implements them.
type Interpreter struct {
	Props    PropertyReader
	Renderer ValueRenderer
	Listener Listener
	locale   string
	logger   *zap.Logger

	// OnEvent, if set, is called at points of interest for the debug
	// event log; rendering the log is out of scope.
	OnEvent func(kind string, scope *InstanceScope, data map[string]any)
}

// NewInterpreter creates an Interpreter. props, renderer, and listener
// may be nil (no-op collaborators); locale is passed through to
// renderers unmodified.
func NewInterpreter(props PropertyReader, renderer ValueRenderer, listener Listener, locale string, logger *zap.Logger) *Interpreter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Interpreter{Props: props, Renderer: renderer, Listener: listener, locale: locale, logger: logger}
}

func (in *Interpreter) fire(kind string, scope *InstanceScope, data map[string]any) {
	if in.OnEvent != nil {
		in.OnEvent(kind, scope, data)
	}
}

func (in *Interpreter) runtimeErr(scope *InstanceScope, kind string, pos Position, args ...any) {
	if in.Listener != nil {
		in.Listener.RuntimeError(kind, pos, scope.TemplateName(), args...)
	}
}

// Exec runs tv's bytecode to completion, writing output through w, with
// parent as the enclosing dynamic scope (nil for a top-level render). It
// returns the scope used for this execution (useful for debug-event
// inspection) and an error only for I/O or internal failures; run-time
// errors are reported to the Listener and do not abort.
func (in *Interpreter) Exec(tv *TemplateValue, parent *InstanceScope, w *Writer) (*InstanceScope, error) {
	scope := &InstanceScope{Parent: parent, TV: tv}
	in.logger.Debug(LogMsgExecStart, zap.String(LogFieldName, tv.Compiled.Name))
	in.fire(DebugEventConstruction, scope, nil)

	if err := in.applyDefaults(tv, scope, w); err != nil {
		return scope, err
	}

	stack := make([]any, 0, DefaultOperandStackSize)
	push := func(v any) { stack = append(stack, v) }
	pop := func() any {
		if len(stack) == 0 {
			return nil
		}
		v := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		return v
	}
	peek := func() any {
		if len(stack) == 0 {
			return nil
		}
		return stack[len(stack)-1]
	}

	instrs := tv.Compiled.Instrs
	ip := 0
	for ip < len(instrs) {
		op := Opcode(instrs[ip])
		scope.IP = ip
		pos := tv.Compiled.SourceMap[ip]
		operandAt := ip + 1

		switch op {
		case OpLoadStr:
			push(tv.Compiled.Strings.Get(readU16(instrs, operandAt)))
		case OpLoadAttr:
			name := tv.Compiled.Strings.Get(readU16(instrs, operandAt))
			v, found := in.lookupAttr(scope, name)
			if !found {
				in.runtimeErr(scope, ErrKindNoSuchAttribute, pos, name)
			}
			push(v)
		case OpLoadLocal:
			idx := readU16(instrs, operandAt)
			if idx < len(tv.Locals) {
				push(tv.Locals[idx])
			} else {
				push(nil)
			}
		case OpLoadProp:
			name := tv.Compiled.Strings.Get(readU16(instrs, operandAt))
			obj := pop()
			push(in.loadProp(scope, pos, obj, name))
		case OpLoadPropInd:
			nameVal := pop()
			obj := pop()
			push(in.loadProp(scope, pos, obj, ToStringValue(normalizeMissing(nameVal))))
		case OpStoreOption:
			k := readU16(instrs, operandAt)
			v := pop()
			if vec, ok := peek().(*Options); ok {
				vec[k] = v
			}
		case OpStoreArg:
			name := tv.Compiled.Strings.Get(readU16(instrs, operandAt))
			v := pop()
			if m, ok := peek().(map[string]any); ok {
				m[name] = v
			}
		case OpNew, OpSuperNew:
			name := tv.Compiled.Strings.Get(readU16(instrs, operandAt))
			n := readU16(instrs, operandAt+2)
			args := make([]any, n)
			for i := n - 1; i >= 0; i-- {
				args[i] = pop()
			}
			push(in.newPositional(scope, pos, op == OpSuperNew, name, args))
		case OpNewInd:
			n := readU16(instrs, operandAt)
			nameVal := normalizeMissing(pop())
			args := make([]any, n)
			for i := n - 1; i >= 0; i-- {
				args[i] = pop()
			}
			push(in.newPositional(scope, pos, false, ToStringValue(nameVal), args))
		case OpNewBoxArgs, OpSuperNewBoxArgs:
			name := tv.Compiled.Strings.Get(readU16(instrs, operandAt))
			argsMap, _ := pop().(map[string]any)
			push(in.newNamed(scope, pos, op == OpSuperNewBoxArgs, name, argsMap))
		case OpPassthru:
			name := tv.Compiled.Strings.Get(readU16(instrs, operandAt))
			push(in.newPositional(scope, pos, false, name, nil))
		case OpWrite:
			v := pop()
			w.NoteOp()
			in.fire(DebugEventEvalExpr, scope, nil)
			if _, err := in.writeValue(scope, w, v, ""); err != nil {
				return scope, in.ioErr(err)
			}
		case OpWriteOpt:
			v := pop()
			vec, _ := pop().(*Options)
			w.NoteOp()
			in.fire(DebugEventEvalExpr, scope, nil)
			if err := in.writeOpt(scope, w, v, vec); err != nil {
				return scope, in.ioErr(err)
			}
		case OpWriteStr:
			s := tv.Compiled.Strings.Get(readU16(instrs, operandAt))
			w.NoteOp()
			if _, err := w.Write(s, ""); err != nil {
				return scope, in.ioErr(err)
			}
		case OpWriteLocal:
			idx := readU16(instrs, operandAt)
			var v any
			if idx < len(tv.Locals) {
				v = tv.Locals[idx]
			}
			w.NoteOp()
			if _, err := in.writeValue(scope, w, v, ""); err != nil {
				return scope, in.ioErr(err)
			}
		case OpMap:
			tmplName, _ := pop().(string)
			iterable := pop()
			push(in.doMap(scope, pos, []string{tmplName}, iterable))
		case OpRotMap:
			n := readU16(instrs, operandAt)
			names := make([]string, n)
			for i := n - 1; i >= 0; i-- {
				names[i], _ = pop().(string)
			}
			iterable := pop()
			push(in.doMap(scope, pos, names, iterable))
		case OpZipMap:
			n := readU16(instrs, operandAt)
			tmplName, _ := pop().(string)
			iterables := make([]any, n)
			for i := n - 1; i >= 0; i-- {
				iterables[i] = pop()
			}
			push(in.doZipMap(scope, pos, tmplName, iterables))
		case OpBr:
			ip = readU16(instrs, operandAt)
			continue
		case OpBrf:
			cond := pop()
			if !Truthy(cond) {
				ip = readU16(instrs, operandAt)
				continue
			}
		case OpOptions:
			push(&Options{})
		case OpArgs:
			push(make(map[string]any))
		case OpList:
			push(List{})
		case OpAdd:
			v := pop()
			lst, _ := pop().(List)
			push(append(lst, v))
		case OpToStr:
			v := pop()
			push(in.toStr(scope, v))
		case OpFirst:
			push(builtinFirst(normalizeMissing(pop())))
		case OpLast:
			push(builtinLast(normalizeMissing(pop())))
		case OpRest:
			push(builtinRest(normalizeMissing(pop())))
		case OpTrunc:
			push(builtinTrunc(normalizeMissing(pop())))
		case OpStrip:
			push(builtinStrip(normalizeMissing(pop())))
		case OpTrim:
			push(builtinTrim(normalizeMissing(pop())))
		case OpLength:
			push(builtinLength(normalizeMissing(pop())))
		case OpStrlen:
			push(builtinStrlen(normalizeMissing(pop())))
		case OpReverse:
			push(builtinReverse(normalizeMissing(pop())))
		case OpNot:
			push(!Truthy(pop()))
		case OpOr:
			r := pop()
			l := pop()
			push(Truthy(l) || Truthy(r))
		case OpAnd:
			r := pop()
			l := pop()
			push(Truthy(l) && Truthy(r))
		case OpIndent:
			s := tv.Compiled.Strings.Get(readU16(instrs, operandAt))
			w.NoteOp()
			in.fire(DebugEventIndent, scope, map[string]any{DebugDataIndent: s})
			w.PushIndent(s)
		case OpDedent:
			w.NoteOp()
			w.PopIndent()
		case OpNewline:
			if w.sawOpForNewline() {
				w.ResetLineTracking()
			} else {
				if _, err := w.Write("\n", ""); err != nil {
					return scope, in.ioErr(err)
				}
			}
		case OpNoop, OpInvalid:
			// no-op
		case OpPop:
			pop()
		case OpNull:
			push(nil)
		case OpTrue:
			push(true)
		case OpFalse:
			push(false)
		default:
			in.internalErr(scope, pos)
		}

		ip += InstrLen(op)
	}

	in.logger.Debug(LogMsgExecEnd, zap.String(LogFieldName, tv.Compiled.Name))
	return scope, nil
}

// sawOpForNewline reports whether this line should suppress its
// terminating NEWLINE: an INDENT/DEDENT/WRITE* opcode ran since the last
// real newline, but none of them produced any visible character.
func (w *Writer) sawOpForNewline() bool {
	return w.sawOp && !w.LineHasContent()
}

func (in *Interpreter) ioErr(err error) error {
	if in.Listener != nil {
		in.Listener.IOError(ErrKindWriteIOError, err)
	}
	return err
}

func (in *Interpreter) internalErr(scope *InstanceScope, pos Position) {
	if in.Listener != nil {
		in.Listener.InternalError(ErrKindInternalError, &ParseError{Message: "unknown opcode", Position: pos})
	}
}

// applyDefaults binds every formal argument still Empty to its default
// value, lazily: string/list/boolean defaults are
// installed directly; a compiled-template default is rendered in a
// temporary nested scope and the rendered string installed.
func (in *Interpreter) applyDefaults(tv *TemplateValue, scope *InstanceScope, w *Writer) error {
	for _, name := range tv.Compiled.ArgOrder {
		fa := tv.Compiled.FormalArgs[name]
		if fa.Index >= len(tv.Locals) || !IsEmpty(tv.Locals[fa.Index]) || !fa.HasDefaultValue {
			continue
		}
		if fa.DefaultCompiled != nil {
			var buf strings.Builder
			nested := NewTemplateValue(fa.DefaultCompiled, tv.Group)
			if _, err := in.Exec(nested, scope, NewWriter(&buf)); err != nil {
				return err
			}
			tv.SetByIndex(fa.Index, buf.String())
			continue
		}
		tv.SetByIndex(fa.Index, fa.DefaultValue)
	}
	return nil
}

func readU16(b []byte, at int) int {
	if at+1 >= len(b) {
		return 0
	}
	return int(b[at])<<8 | int(b[at+1])
}

// lookupAttr implements LOAD_ATTR: walk the current
// template's locals, then the dynamic scope chain, then fall back to a
// group-level dictionary of the same name.
func (in *Interpreter) lookupAttr(scope *InstanceScope, name string) (any, bool) {
	for s := scope; s != nil; s = s.Parent {
		if v, ok := s.TV.Lookup(name); ok {
			return normalizeMissing(v), true
		}
	}
	if scope.TV.Group != nil {
		if d, ok := scope.TV.Group.LookupDict(name); ok {
			return d, true
		}
	}
	return nil, false
}

func (in *Interpreter) loadProp(scope *InstanceScope, pos Position, obj any, name string) any {
	obj = normalizeMissing(obj)
	if obj == nil {
		return nil
	}
	if in.Props == nil {
		in.runtimeErr(scope, ErrKindNoSuchProperty, pos, name)
		return nil
	}
	v, ok, err := in.Props.GetProperty(obj, name)
	if err != nil || !ok {
		in.runtimeErr(scope, ErrKindNoSuchProperty, pos, name)
		return nil
	}
	return v
}

// resolve locates a template by name for NEW/SUPER_NEW*. Relative
// names are first resolved against the calling template's prefix.
// The new instance's creation group stays the resolving
// group regardless of which imported group owns the definition; that
// is how polymorphism over groups works.
func (in *Interpreter) resolve(scope *InstanceScope, pos Position, super bool, name string) (*CompiledST, bool) {
	src := scope.TV.Group
	if super {
		native := scope.TV.Compiled.NativeGroup
		if native == nil {
			in.runtimeErr(scope, ErrKindNoSuchTemplate, pos, name)
			return nil, false
		}
		superSrc, ok := native.SuperSource()
		if !ok {
			in.runtimeErr(scope, ErrKindNoImportedTemplate, pos, name)
			return nil, false
		}
		src = superSrc
	}
	if src == nil {
		in.runtimeErr(scope, ErrKindNoSuchTemplate, pos, name)
		return nil, false
	}
	if !strings.HasPrefix(name, "/") {
		prefix := scope.TV.Compiled.Prefix
		if prefix != "" && prefix != "/" {
			if compiled, _, ok := src.LookupCompiled(prefix + name); ok {
				return compiled, true
			}
		}
	}
	compiled, _, found := src.LookupCompiled(name)
	if !found {
		in.runtimeErr(scope, ErrKindNoSuchTemplate, pos, name)
		return nil, false
	}
	return compiled, true
}

func (in *Interpreter) newPositional(scope *InstanceScope, pos Position, super bool, name string, args []any) *TemplateValue {
	compiled, ok := in.resolve(scope, pos, super, name)
	if !ok {
		return nil
	}
	ntv := NewTemplateValue(compiled, scope.TV.Group)
	for i, a := range args {
		ntv.SetByIndex(i, a)
	}
	return ntv
}

func (in *Interpreter) newNamed(scope *InstanceScope, pos Position, super bool, name string, argsMap map[string]any) *TemplateValue {
	compiled, ok := in.resolve(scope, pos, super, name)
	if !ok {
		return nil
	}
	ntv := NewTemplateValue(compiled, scope.TV.Group)
	for k, v := range argsMap {
		if !ntv.SetByName(k, v) {
			in.runtimeErr(scope, ErrKindArgumentCountMismatch, pos, k, name)
		}
	}
	return ntv
}

// doMap implements MAP (names has length 1) and ROT_MAP (names has
// length n, element i driven by names[i%n]).
func (in *Interpreter) doMap(scope *InstanceScope, pos Position, names []string, iterable any) List {
	items := asMapInput(iterable)
	out := make(List, 0, len(items))
	for i, x := range items {
		name := names[i%len(names)]
		tv := in.bindMapTemplate(scope, pos, name, []any{x}, i)
		out = append(out, tv)
	}
	return out
}

// doZipMap implements ZIP_MAP: a single template applied over n
// parallel iterables, bound to the template's formal arguments in
// declared order; iteration stops at the shortest input.
func (in *Interpreter) doZipMap(scope *InstanceScope, pos Position, name string, iterables []any) List {
	cols := make([][]any, len(iterables))
	minLen := -1
	for i, it := range iterables {
		cols[i] = asMapInput(it)
		if minLen == -1 || len(cols[i]) < minLen {
			minLen = len(cols[i])
		}
	}
	for _, c := range cols {
		if len(c) != minLen {
			in.runtimeErr(scope, ErrKindZipMapArgumentCountMismatch, pos, name)
			break
		}
	}
	out := make(List, 0, minLen)
	for i := 0; i < minLen; i++ {
		row := make([]any, len(cols))
		for j := range cols {
			row[j] = cols[j][i]
		}
		tv := in.bindMapTemplate(scope, pos, name, row, i)
		out = append(out, tv)
	}
	return out
}

func asMapInput(v any) []any {
	v = normalizeMissing(v)
	if v == nil {
		return nil
	}
	if items, ok := ToIterable(v); ok {
		return items
	}
	return []any{v}
}

// bindMapTemplate creates the per-iteration TemplateValue for MAP/
// ROT_MAP/ZIP_MAP, binding the predefined it/i0/i locals plus, for
// single-driver map/rot-map, the template's first formal argument.
func (in *Interpreter) bindMapTemplate(scope *InstanceScope, pos Position, name string, values []any, index int) *TemplateValue {
	compiled, ok := in.resolve(scope, pos, false, name)
	if !ok {
		return nil
	}
	tv := NewTemplateValue(compiled, scope.TV.Group)
	if len(values) == 1 {
		if compiled.IsAnonSub && compiled.NumDeclaredArgs > 1 {
			in.runtimeErr(scope, ErrKindMapArgumentCountMismatch, pos, 1, compiled.NumDeclaredArgs)
		}
		tv.SetByName(LocalNameIt, values[0])
		if tv.Compiled.NumArgs() > 0 {
			tv.SetByIndex(0, values[0])
		}
	} else {
		for i, v := range values {
			if i < tv.Compiled.NumArgs() {
				tv.SetByIndex(i, v)
			}
		}
	}
	tv.SetByName(LocalNameI0, index)
	tv.SetByName(LocalNameI, index+1)
	return tv
}

// toStr renders v into a string through a nested Writer, for the TOSTR
// opcode.
func (in *Interpreter) toStr(scope *InstanceScope, v any) string {
	var buf strings.Builder
	nested := NewWriter(&buf)
	_, _ = in.writeValue(scope, nested, v, "")
	return buf.String()
}

// writeValue renders v (scalar, ST instance, or iterable) the way a
// plain WRITE does: no anchor, no null-option, no format, no separator,
// and the given wrap string.
func (in *Interpreter) writeValue(scope *InstanceScope, w *Writer, v any, wrap string) (bool, error) {
	return in.writeValueOpt(scope, w, v, "", "", wrap)
}

// writeValueOpt is the shared rendering core for WRITE and WRITE_OPT. It
// returns whether anything was written, used by callers iterating a
// list to decide whether to emit a separator before the next element.
func (in *Interpreter) writeValueOpt(scope *InstanceScope, w *Writer, v any, sep, nullStr, wrap string) (bool, error) {
	v = normalizeMissing(v)
	if v == nil {
		if nullStr == "" {
			return false, nil
		}
		_, err := w.Write(nullStr, wrap)
		return true, err
	}
	if h, ok := v.(TemplateValueHolder); ok {
		v = h.TemplateValue()
	}
	if tv, ok := v.(*TemplateValue); ok {
		if tv == nil {
			return false, nil
		}
		in.fire(DebugEventEvalTemplate, scope, map[string]any{LogFieldName: tv.Compiled.Name})
		_, err := in.Exec(tv, scope, w)
		return true, err
	}
	if items, ok := ToIterable(v); ok {
		wroteAny := false
		for _, item := range items {
			item = normalizeMissing(item)
			if item == nil && nullStr == "" {
				continue
			}
			if wroteAny && sep != "" {
				if _, err := w.WriteSeparator(sep); err != nil {
					return wroteAny, err
				}
			}
			wrote, err := in.writeValueOpt(scope, w, item, "", nullStr, wrap)
			if err != nil {
				return wroteAny, err
			}
			if wrote {
				wroteAny = true
			}
		}
		return wroteAny, nil
	}
	s := in.renderScalar(v, "")
	_, err := w.Write(s, wrap)
	return true, err
}

func (in *Interpreter) renderScalar(v any, format string) string {
	if in.Renderer != nil {
		if s, ok, err := in.Renderer.Render(v, format, in.locale); ok && err == nil {
			return s
		}
	}
	return ToStringValue(v)
}

// writeOpt implements WRITE_OPT: applies anchor/format/null/separator/
// wrap options around writeValueOpt.
func (in *Interpreter) writeOpt(scope *InstanceScope, w *Writer, v any, vec *Options) error {
	var anchor bool
	var format, nullStr, sep, wrap string
	if vec != nil {
		anchor = Truthy(vec[OptionAnchor])
		format = optString(vec[OptionFormat])
		nullStr = optString(vec[OptionNull])
		sep = optString(vec[OptionSeparator])
		wrap = optString(vec[OptionWrap])
	}
	if anchor {
		w.PushAnchor()
		defer w.PopAnchor()
	}
	v = normalizeMissing(v)
	if v == nil {
		if nullStr != "" {
			_, err := w.Write(nullStr, wrap)
			return err
		}
		return nil
	}
	if format != "" {
		if s := in.tryRenderFormatted(v, format); s != nil {
			_, err := w.Write(*s, wrap)
			return err
		}
	}
	_, err := in.writeValueOpt(scope, w, v, sep, nullStr, wrap)
	return err
}

// tryRenderFormatted applies an explicit format option to a scalar
// value via the renderer registry; it returns nil if v is not a scalar
// (an ST instance or iterable ignores the format option at this level,
// since format only governs a registered renderer).
func (in *Interpreter) tryRenderFormatted(v any, format string) *string {
	if _, ok := v.(*TemplateValue); ok {
		return nil
	}
	if _, ok := v.(TemplateValueHolder); ok {
		return nil
	}
	if _, ok := ToIterable(v); ok {
		return nil
	}
	s := in.renderScalar(v, format)
	return &s
}

func optString(v any) string {
	if v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return ToStringValue(v)
}

// Debug event kind constants; the concrete event
// payload shapes live in the root package's st4.debug.go.
const (
	DebugEventConstruction = "construction"
	DebugEventEvalExpr     = "eval_expr"
	DebugEventEvalTemplate = "eval_template"
	DebugEventIndent       = "indent"
)

// Debug event data keys.
const DebugDataIndent = "indent"
