package internal

import (
	"fmt"

	"go.uber.org/zap"
)

// CodegenError reports a code-generation error with source position.
type CodegenError struct {
	Message  string
	Position Position
}

func (e *CodegenError) Error() string {
	return e.Message + " at " + e.Position.String()
}

// gen walks a parsed AST and emits bytecode into a CompiledST. It is a single pass
// over the recursive-descent AST; branch targets are back-patched once
// the jump destination is known.
type gen struct {
	target        *CompiledST
	anonCounter   *int
	logger        *zap.Logger
	implicitOut   []*CompiledST
	pendingDedent bool
}

var builtinOpcodes = map[string]Opcode{
	FuncNameFirst:   OpFirst,
	FuncNameLast:    OpLast,
	FuncNameRest:    OpRest,
	FuncNameTrunc:   OpTrunc,
	FuncNameStrip:   OpStrip,
	FuncNameTrim:    OpTrim,
	FuncNameLength:  OpLength,
	FuncNameStrlen:  OpStrlen,
	FuncNameReverse: OpReverse,
}

// CompileTemplate compiles one template body (top-level or an anonymous
// sub-template) into a CompiledST, returning any nested anonymous
// sub-templates/regions it discovers along the way. anonCounter is
// shared across a whole compilation unit so synthesized sub-template
// names stay unique within a group.
func CompileTemplate(name string, formalArgs []*FormalArgument, hasFormalArgs bool, source string, root *RootNode, anonCounter *int, logger *zap.Logger) (*CompiledST, []*CompiledST, error) {
	if anonCounter == nil {
		c := 0
		anonCounter = &c
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	g := &gen{target: NewCompiledST(name), anonCounter: anonCounter, logger: logger}
	g.target.Template = source
	g.target.HasFormalArgs = hasFormalArgs
	for i, a := range formalArgs {
		a.Index = i
		g.target.FormalArgs[a.Name] = a
		g.target.ArgOrder = append(g.target.ArgOrder, a.Name)
	}
	if err := g.genChunks(root.Chunks); err != nil {
		return nil, nil, err
	}
	g.target.CodeSize = len(g.target.Instrs)
	return g.target, g.implicitOut, nil
}

func (g *gen) synthesizeSubName() string {
	*g.anonCounter++
	return fmt.Sprintf("%s%d", AnonSubtemplatePrefix, *g.anonCounter)
}

// compileSubTemplate compiles an anonymous `{args|body}` into its own
// CompiledST, registering it (and anything nested inside it) in
// g.implicitOut so the caller can fold it into the owning group's
// template map.
func (g *gen) compileSubTemplate(sub *SubTemplateNode) (*CompiledST, error) {
	name := g.synthesizeSubName()
	hasArgs := len(sub.Args) > 0
	formals := make([]*FormalArgument, len(sub.Args))
	for i, a := range sub.Args {
		formals[i] = &FormalArgument{Name: a}
	}
	inner, implicit, err := CompileTemplate(name, formals, hasArgs, "", &RootNode{Chunks: sub.Body}, g.anonCounter, g.logger)
	if err != nil {
		return nil, err
	}
	inner.IsAnonSub = true
	inner.NumDeclaredArgs = len(sub.Args)
	// Iteration locals it/i0/i are implicit formals of every anonymous
	// sub-template, so map/rot-map/zip-map can bind them.
	for _, nm := range []string{LocalNameIt, LocalNameI0, LocalNameI} {
		if _, ok := inner.FormalArgs[nm]; !ok {
			inner.AddImplicitArg(nm)
		}
	}
	g.implicitOut = append(g.implicitOut, inner)
	g.implicitOut = append(g.implicitOut, implicit...)
	return inner, nil
}

// --- chunk level ---

func (g *gen) genChunks(chunks []Node) error {
	for _, c := range chunks {
		if err := g.genChunk(c); err != nil {
			return err
		}
	}
	return nil
}

func (g *gen) genChunk(c Node) error {
	switch n := c.(type) {
	case *TextNode:
		g.emitStr(n.PosVal, OpWriteStr, n.Content)
	case *IndentNode:
		g.emitStr(n.PosVal, OpIndent, n.Value)
		g.pendingDedent = true
	case *NewlineNode:
		g.emit(n.PosVal, OpNewline)
		if g.pendingDedent {
			g.emit(n.PosVal, OpDedent)
			g.pendingDedent = false
		}
	case *ExprStmtNode:
		return g.genExprStmt(n)
	case *CondNode:
		return g.genCond(n)
	case *RegionRefNode:
		return g.genRegionRef(n)
	case *EmbeddedRegionNode:
		return g.genEmbeddedRegion(n)
	default:
		return &CodegenError{Message: "unexpected chunk node", Position: c.Pos()}
	}
	return nil
}

func (g *gen) genExprStmt(n *ExprStmtNode) error {
	if opt, ok := n.Expr.(*OptionsNode); ok {
		g.emit(opt.PosVal, OpOptions)
		for kind, valNode := range opt.Options {
			if valNode == nil {
				switch kind {
				case OptionWrap:
					g.emitStr(opt.PosVal, OpLoadStr, "\n")
				default:
					g.emit(opt.PosVal, OpTrue)
				}
			} else if err := g.genExprValue(valNode); err != nil {
				return err
			}
			g.emitInt(opt.PosVal, OpStoreOption, int(kind))
		}
		if err := g.genExprValue(opt.Inner); err != nil {
			return err
		}
		g.emit(n.PosVal, OpWriteOpt)
		return nil
	}
	if err := g.genExprValue(n.Expr); err != nil {
		return err
	}
	g.emit(n.PosVal, OpWrite)
	return nil
}

func (g *gen) genCond(n *CondNode) error {
	var endJumps []int
	for _, branch := range n.Branches {
		if err := g.genExprValue(branch.Cond); err != nil {
			return err
		}
		brf := g.emitAddrPlaceholder(branch.Cond.Pos(), OpBrf)
		if err := g.genChunks(branch.Body); err != nil {
			return err
		}
		end := g.emitAddrPlaceholder(n.PosVal, OpBr)
		endJumps = append(endJumps, end)
		g.patchAddr(brf, g.currentAddr())
	}
	if n.Else != nil {
		if err := g.genChunks(n.Else); err != nil {
			return err
		}
	}
	here := g.currentAddr()
	for _, j := range endJumps {
		g.patchAddr(j, here)
	}
	return nil
}

// genRegionRef emits a call to the (possibly still empty) region
// template; the implicit empty definition is installed by the group
// unless an explicit `@t.r() ::= ...` already overrode it.
func (g *gen) genRegionRef(n *RegionRefNode) error {
	name := MangledRegionName(g.target.Name, n.Name)
	region := NewCompiledST(name)
	region.IsRegion = true
	region.RegionDefType = RegionImplicit
	g.implicitOut = append(g.implicitOut, region)
	g.emitStrInt(n.PosVal, OpNew, name, 0)
	g.emit(n.PosVal, OpWrite)
	return nil
}

// genEmbeddedRegion compiles the inline body into its own region
// template and emits a call to it.
func (g *gen) genEmbeddedRegion(n *EmbeddedRegionNode) error {
	name := MangledRegionName(g.target.Name, n.Name)
	inner, implicit, err := CompileTemplate(name, nil, false, "", &RootNode{Chunks: n.Body}, g.anonCounter, g.logger)
	if err != nil {
		return err
	}
	inner.IsRegion = true
	inner.RegionDefType = RegionEmbedded
	g.implicitOut = append(g.implicitOut, inner)
	g.implicitOut = append(g.implicitOut, implicit...)
	g.emitStrInt(n.PosVal, OpNew, name, 0)
	g.emit(n.PosVal, OpWrite)
	return nil
}

// --- expression level: leaves exactly one value on the operand stack ---

func (g *gen) genExprValue(n Node) error {
	switch e := n.(type) {
	case *AttrNode:
		g.emitStr(e.PosVal, OpLoadAttr, e.Name)
	case *PropNode:
		if err := g.genExprValue(e.Object); err != nil {
			return err
		}
		g.emitStr(e.PosVal, OpLoadProp, e.Prop)
	case *IndirectPropNode:
		if err := g.genExprValue(e.Object); err != nil {
			return err
		}
		if err := g.genExprValue(e.PropExpr); err != nil {
			return err
		}
		g.emit(e.PosVal, OpLoadPropInd)
	case *StringLitNode:
		g.emitStr(e.PosVal, OpLoadStr, e.Value)
	case *BoolLitNode:
		if e.Value {
			g.emit(e.PosVal, OpTrue)
		} else {
			g.emit(e.PosVal, OpFalse)
		}
	case *NotNode:
		if err := g.genExprValue(e.Inner); err != nil {
			return err
		}
		g.emit(e.PosVal, OpNot)
	case *BinOpNode:
		if err := g.genExprValue(e.Left); err != nil {
			return err
		}
		if err := g.genExprValue(e.Right); err != nil {
			return err
		}
		if e.Op == "&&" {
			g.emit(e.PosVal, OpAnd)
		} else {
			g.emit(e.PosVal, OpOr)
		}
	case *FuncNode:
		if err := g.genExprValue(e.Arg); err != nil {
			return err
		}
		op, ok := builtinOpcodes[e.Name]
		if !ok {
			return &CodegenError{Message: "unknown built-in function " + e.Name, Position: e.PosVal}
		}
		g.emit(e.PosVal, op)
	case *CallNode:
		return g.genCall(e)
	case *IndirectTemplateNode:
		return g.genIndirectTemplate(e)
	case *SubTemplateNode:
		compiled, err := g.compileSubTemplate(e)
		if err != nil {
			return err
		}
		g.emitStr(e.PosVal, OpPassthru, compiled.Name)
	case *MapNode:
		return g.genMap(e)
	case *ListLitNode:
		g.emit(e.PosVal, OpList)
		for _, el := range e.Elems {
			if err := g.genExprValue(el); err != nil {
				return err
			}
			g.emit(e.PosVal, OpAdd)
		}
	default:
		return &CodegenError{Message: "cannot use this node as a value expression", Position: n.Pos()}
	}
	return nil
}

func (g *gen) genCall(n *CallNode) error {
	hasNamed := false
	for _, a := range n.Args {
		if a.Name != "" {
			hasNamed = true
		}
	}
	if hasNamed {
		g.emit(n.PosVal, OpArgs)
		for _, a := range n.Args {
			if a.Name == "" {
				return &CodegenError{Message: "cannot mix positional and named arguments", Position: n.PosVal}
			}
			if err := g.genExprValue(a.Value); err != nil {
				return err
			}
			g.emitStr(n.PosVal, OpStoreArg, a.Name)
		}
		op := OpNewBoxArgs
		if n.Super {
			op = OpSuperNewBoxArgs
		}
		g.emitStr(n.PosVal, op, n.Name)
		return nil
	}
	for _, a := range n.Args {
		if err := g.genExprValue(a.Value); err != nil {
			return err
		}
	}
	op := OpNew
	if n.Super {
		op = OpSuperNew
	}
	g.emitStrInt(n.PosVal, op, n.Name, len(n.Args))
	return nil
}

func (g *gen) genIndirectTemplate(n *IndirectTemplateNode) error {
	for _, a := range n.Args {
		if a.Name != "" {
			return &CodegenError{Message: "indirect template calls support positional arguments only", Position: n.PosVal}
		}
		if err := g.genExprValue(a.Value); err != nil {
			return err
		}
	}
	if err := g.genExprValue(n.NameExpr); err != nil {
		return err
	}
	g.emitInt(n.PosVal, OpNewInd, len(n.Args))
	return nil
}

func (g *gen) genMap(n *MapNode) error {
	for _, e := range n.Exprs {
		if err := g.genExprValue(e); err != nil {
			return err
		}
	}
	for _, t := range n.Templates {
		name, err := g.mapTemplateRefName(t)
		if err != nil {
			return err
		}
		g.emitStr(n.PosVal, OpLoadStr, name)
	}
	switch {
	case len(n.Exprs) > 1:
		if len(n.Templates) != 1 {
			return &CodegenError{Message: "zip-map requires exactly one template", Position: n.PosVal}
		}
		g.emitInt(n.PosVal, OpZipMap, len(n.Exprs))
	case len(n.Templates) > 1:
		g.emitInt(n.PosVal, OpRotMap, len(n.Templates))
	default:
		g.emit(n.PosVal, OpMap)
	}
	return nil
}

// mapTemplateRefName resolves one map/rot-map/zip-map template reference
// to the group-level name the interpreter will look up at render time:
// either the named call's own name, or a freshly compiled anonymous
// sub-template's synthesized name. Only zero-argument call forms
// (`<list:t()>`) and inline sub-templates are supported as map
// template references.
func (g *gen) mapTemplateRefName(t MapTemplate) (string, error) {
	if t.Sub != nil {
		compiled, err := g.compileSubTemplate(t.Sub)
		if err != nil {
			return "", err
		}
		return compiled.Name, nil
	}
	if len(t.Call.Args) != 0 {
		return "", &CodegenError{Message: "map template calls take no arguments", Position: t.Call.PosVal}
	}
	return t.Call.Name, nil
}

// --- low-level emission ---

func (g *gen) currentAddr() int { return len(g.target.Instrs) }

func (g *gen) emit(pos Position, op Opcode) int {
	addr := len(g.target.Instrs)
	g.target.SourceMap[addr] = pos
	g.target.Instrs = append(g.target.Instrs, byte(op))
	return addr
}

func (g *gen) emitStr(pos Position, op Opcode, s string) int {
	addr := g.emit(pos, op)
	idx := g.target.Strings.Add(s)
	g.target.Instrs = append(g.target.Instrs, byte(idx>>8), byte(idx))
	return addr
}

func (g *gen) emitInt(pos Position, op Opcode, n int) int {
	addr := g.emit(pos, op)
	g.target.Instrs = append(g.target.Instrs, byte(n>>8), byte(n))
	return addr
}

func (g *gen) emitStrInt(pos Position, op Opcode, s string, n int) int {
	addr := g.emitStr(pos, op, s)
	g.target.Instrs = append(g.target.Instrs, byte(n>>8), byte(n))
	return addr
}

func (g *gen) emitAddrPlaceholder(pos Position, op Opcode) int {
	addr := g.emit(pos, op)
	g.target.Instrs = append(g.target.Instrs, 0, 0)
	return addr
}

func (g *gen) patchAddr(instrAddr int, target int) {
	operandPos := instrAddr + 1
	g.target.Instrs[operandPos] = byte(target >> 8)
	g.target.Instrs[operandPos+1] = byte(target)
}
