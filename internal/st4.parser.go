package internal

import (
	"strings"

	"go.uber.org/zap"
)

// ParseError reports a syntax error with source position. The root
// package wraps these with cuserr before handing them to an
// ErrorManager listener.
type ParseError struct {
	Message  string
	Position Position
}

func (e *ParseError) Error() string {
	return e.Message + " at " + e.Position.String()
}

// Parser error message constants.
const (
	ErrMsgParserUnexpectedToken     = "unexpected token"
	ErrMsgParserExpectedToken       = "expected token"
	ErrMsgParserUnterminatedIf      = "unterminated if"
	ErrMsgParserUnterminatedRegion  = "unterminated region"
	ErrMsgParserUnterminatedSub     = "unterminated sub-template"
	ErrMsgParserBadMapSpec          = "comma-separated expression list requires a map specification"
	ErrMsgParserUnknownOption       = "unknown option"
)

// Parser builds an AST from a Lexer's token stream via recursive
// descent.
type Parser struct {
	tokens []Token
	pos    int
	source string
	logger *zap.Logger
}

// NewParser creates a parser over an already-tokenized template body.
func NewParser(tokens []Token, source string, logger *zap.Logger) *Parser {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Parser{tokens: tokens, source: source, logger: logger}
}

// Parse compiles the whole token stream into a RootNode.
func (p *Parser) Parse() (*RootNode, error) {
	p.logger.Debug(LogMsgParseStart, zap.Int(LogFieldTokens, len(p.tokens)))
	chunks, err := p.parseChunks(nil)
	if err != nil {
		return nil, err
	}
	if p.peek().Type != TokEOF {
		return nil, &ParseError{Message: ErrMsgParserUnexpectedToken, Position: p.peek().Pos}
	}
	root := &RootNode{Chunks: chunks}
	p.logger.Debug(LogMsgParseEnd, zap.Int(LogFieldNodes, len(chunks)))
	return root, nil
}

// --- chunk level ---

// parseChunks parses text/indent/newline/expression chunks until EOF, a
// bare TokRCurly (left for a sub-template caller to consume), or an
// LDELIM immediately followed by one of stopKw (left for an enclosing
// conditional to consume).
func (p *Parser) parseChunks(stopKw map[TokenType]bool) ([]Node, error) {
	var chunks []Node
	for {
		tok := p.peek()
		switch tok.Type {
		case TokEOF, TokRCurly:
			return chunks, nil
		case TokLDelim:
			if stopKw != nil && stopKw[p.peekAt(1).Type] {
				return chunks, nil
			}
			p.advance()
			node, err := p.parseExprChunk()
			if err != nil {
				return nil, err
			}
			chunks = append(chunks, node)
		case TokText:
			p.advance()
			chunks = append(chunks, &TextNode{PosVal: tok.Pos, Content: tok.Value})
		case TokIndent:
			p.advance()
			chunks = append(chunks, &IndentNode{PosVal: tok.Pos, Value: tok.Value})
		case TokNewline:
			p.advance()
			chunks = append(chunks, &NewlineNode{PosVal: tok.Pos})
		default:
			return nil, &ParseError{Message: ErrMsgParserUnexpectedToken, Position: tok.Pos}
		}
	}
}

// parseExprChunk parses the content of one <...> region, LDELIM already
// consumed.
func (p *Parser) parseExprChunk() (Node, error) {
	tok := p.peek()
	if tok.Type == TokKwIf {
		return p.parseConditional()
	}
	if tok.Type == TokAt {
		return p.parseRegion()
	}
	expr, err := p.parseTopExpr()
	if err != nil {
		return nil, err
	}
	if err := p.expect(TokRDelim); err != nil {
		return nil, err
	}
	return &ExprStmtNode{PosVal: tok.Pos, Expr: expr}, nil
}

var condStopKw = map[TokenType]bool{TokKwElseif: true, TokKwElse: true, TokKwEndif: true}

// parseConditional parses `if(cond)...[elseif(cond)...]*[else...]endif`,
// where KwIf has not yet been consumed.
func (p *Parser) parseConditional() (Node, error) {
	start := p.peek().Pos
	p.advance() // 'if'
	if err := p.expect(TokLParen); err != nil {
		return nil, err
	}
	cond, err := p.parseCondExpr()
	if err != nil {
		return nil, err
	}
	if err := p.expect(TokRParen); err != nil {
		return nil, err
	}
	if err := p.expect(TokRDelim); err != nil {
		return nil, err
	}
	body, err := p.parseChunks(condStopKw)
	if err != nil {
		return nil, err
	}
	node := &CondNode{PosVal: start, Branches: []CondBranch{{Cond: cond, Body: body}}}

	for {
		if p.peek().Type != TokLDelim {
			return nil, &ParseError{Message: ErrMsgParserUnterminatedIf, Position: p.peek().Pos}
		}
		switch p.peekAt(1).Type {
		case TokKwElseif:
			p.advance()
			p.advance()
			if err := p.expect(TokLParen); err != nil {
				return nil, err
			}
			c2, err := p.parseCondExpr()
			if err != nil {
				return nil, err
			}
			if err := p.expect(TokRParen); err != nil {
				return nil, err
			}
			if err := p.expect(TokRDelim); err != nil {
				return nil, err
			}
			b2, err := p.parseChunks(condStopKw)
			if err != nil {
				return nil, err
			}
			node.Branches = append(node.Branches, CondBranch{Cond: c2, Body: b2})
		case TokKwElse:
			p.advance()
			p.advance()
			if err := p.expect(TokRDelim); err != nil {
				return nil, err
			}
			elseBody, err := p.parseChunks(map[TokenType]bool{TokKwEndif: true})
			if err != nil {
				return nil, err
			}
			node.Else = elseBody
			if p.peek().Type != TokLDelim || p.peekAt(1).Type != TokKwEndif {
				return nil, &ParseError{Message: ErrMsgParserUnterminatedIf, Position: p.peek().Pos}
			}
			p.advance()
			p.advance()
			if err := p.expect(TokRDelim); err != nil {
				return nil, err
			}
			return node, nil
		case TokKwEndif:
			p.advance()
			p.advance()
			if err := p.expect(TokRDelim); err != nil {
				return nil, err
			}
			return node, nil
		default:
			return nil, &ParseError{Message: ErrMsgParserUnterminatedIf, Position: p.peek().Pos}
		}
	}
}

// parseRegion parses `@name()` (region reference) or `@name>body<@end`
// (embedded region), TokAt not yet consumed.
func (p *Parser) parseRegion() (Node, error) {
	start := p.peek().Pos
	p.advance() // '@'
	nameTok := p.peek()
	if nameTok.Type != TokIdent {
		return nil, &ParseError{Message: ErrMsgParserExpectedToken, Position: nameTok.Pos}
	}
	p.advance()
	if p.peek().Type == TokLParen {
		p.advance()
		if err := p.expect(TokRParen); err != nil {
			return nil, err
		}
		if err := p.expect(TokRDelim); err != nil {
			return nil, err
		}
		return &RegionRefNode{PosVal: start, Name: nameTok.Value}, nil
	}
	if err := p.expect(TokRDelim); err != nil {
		return nil, err
	}
	body, err := p.parseChunks(map[TokenType]bool{TokAtEnd: true})
	if err != nil {
		return nil, err
	}
	if p.peek().Type != TokLDelim || p.peekAt(1).Type != TokAtEnd {
		return nil, &ParseError{Message: ErrMsgParserUnterminatedRegion, Position: p.peek().Pos}
	}
	p.advance()
	p.advance()
	if err := p.expect(TokRDelim); err != nil {
		return nil, err
	}
	return &EmbeddedRegionNode{PosVal: start, Name: nameTok.Value, Body: body}, nil
}

// --- expression level ---

// parseTopExpr parses one attribute/call/map expression plus its
// trailing `;options`, the full grammar of a non-conditional <...> body.
func (p *Parser) parseTopExpr() (Node, error) {
	first, err := p.parseChainExpr()
	if err != nil {
		return nil, err
	}
	exprs := []Node{first}
	for p.peek().Type == TokComma {
		p.advance()
		next, err := p.parseChainExpr()
		if err != nil {
			return nil, err
		}
		exprs = append(exprs, next)
	}
	if p.peek().Type == TokColon {
		p.advance()
		templates, err := p.parseMapTemplates()
		if err != nil {
			return nil, err
		}
		return p.maybeWrapOptions(&MapNode{PosVal: first.Pos(), Exprs: exprs, Templates: templates})
	}
	if len(exprs) > 1 {
		return nil, &ParseError{Message: ErrMsgParserBadMapSpec, Position: p.peek().Pos}
	}
	return p.maybeWrapOptions(first)
}

func (p *Parser) maybeWrapOptions(inner Node) (Node, error) {
	if p.peek().Type != TokSemi {
		return inner, nil
	}
	p.advance()
	opts, err := p.parseOptions()
	if err != nil {
		return nil, err
	}
	return &OptionsNode{PosVal: inner.Pos(), Inner: inner, Options: opts}, nil
}

// parseOptions parses the comma-separated `name[=value]` option list
// that follows an expression's `;`.
func (p *Parser) parseOptions() (map[OptionKind]Node, error) {
	opts := make(map[OptionKind]Node)
	for {
		tok := p.peek()
		if tok.Type != TokIdent {
			return nil, &ParseError{Message: ErrMsgParserExpectedToken, Position: tok.Pos}
		}
		kind, ok := optionKindByName(tok.Value)
		if !ok {
			return nil, &ParseError{Message: ErrMsgParserUnknownOption, Position: tok.Pos}
		}
		p.advance()
		var value Node
		if p.peek().Type == TokEquals {
			p.advance()
			v, err := p.parseChainExpr()
			if err != nil {
				return nil, err
			}
			value = v
		}
		opts[kind] = value
		if p.peek().Type == TokComma {
			p.advance()
			continue
		}
		break
	}
	return opts, nil
}

func optionKindByName(name string) (OptionKind, bool) {
	for k, n := range OptionNames {
		if n == name {
			return OptionKind(k), true
		}
	}
	return 0, false
}

// parseMapTemplates parses the comma-separated list of template
// references after `:` in a map/rot-map/zip-map expression.
func (p *Parser) parseMapTemplates() ([]MapTemplate, error) {
	first, err := p.parseOneMapTemplate()
	if err != nil {
		return nil, err
	}
	templates := []MapTemplate{first}
	for p.peek().Type == TokComma {
		p.advance()
		next, err := p.parseOneMapTemplate()
		if err != nil {
			return nil, err
		}
		templates = append(templates, next)
	}
	return templates, nil
}

func (p *Parser) parseOneMapTemplate() (MapTemplate, error) {
	if p.peek().Type == TokLCurly {
		sub, err := p.parseSubTemplate()
		if err != nil {
			return MapTemplate{}, err
		}
		return MapTemplate{Sub: sub.(*SubTemplateNode)}, nil
	}
	expr, err := p.parseChainExpr()
	if err != nil {
		return MapTemplate{}, err
	}
	call, ok := expr.(*CallNode)
	if !ok {
		return MapTemplate{}, &ParseError{Message: ErrMsgParserUnexpectedToken, Position: expr.Pos()}
	}
	return MapTemplate{Call: call}, nil
}

// parseCondExpr parses a boolean expression used inside `if`/`elseif`:
// `||` binds loosest, then `&&`, then unary `!`.
func (p *Parser) parseCondExpr() (Node, error) {
	return p.parseOrExpr()
}

func (p *Parser) parseOrExpr() (Node, error) {
	left, err := p.parseAndExpr()
	if err != nil {
		return nil, err
	}
	for p.peek().Type == TokOr {
		pos := p.peek().Pos
		p.advance()
		right, err := p.parseAndExpr()
		if err != nil {
			return nil, err
		}
		left = &BinOpNode{PosVal: pos, Op: "||", Left: left, Right: right}
	}
	return left, nil
}

func (p *Parser) parseAndExpr() (Node, error) {
	left, err := p.parseNotExpr()
	if err != nil {
		return nil, err
	}
	for p.peek().Type == TokAnd {
		pos := p.peek().Pos
		p.advance()
		right, err := p.parseNotExpr()
		if err != nil {
			return nil, err
		}
		left = &BinOpNode{PosVal: pos, Op: "&&", Left: left, Right: right}
	}
	return left, nil
}

func (p *Parser) parseNotExpr() (Node, error) {
	if p.peek().Type == TokBang {
		pos := p.peek().Pos
		p.advance()
		inner, err := p.parseNotExpr()
		if err != nil {
			return nil, err
		}
		return &NotNode{PosVal: pos, Inner: inner}, nil
	}
	return p.parseChainExpr()
}

// parseChainExpr parses one primary expression followed by zero or more
// `.prop` / `.(expr)` property accesses.
func (p *Parser) parseChainExpr() (Node, error) {
	prim, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	for p.peek().Type == TokDot {
		dotPos := p.peek().Pos
		p.advance()
		if p.peek().Type == TokLParen {
			p.advance()
			inner, err := p.parseChainExpr()
			if err != nil {
				return nil, err
			}
			if err := p.expect(TokRParen); err != nil {
				return nil, err
			}
			prim = &IndirectPropNode{PosVal: dotPos, Object: prim, PropExpr: inner}
			continue
		}
		nameTok := p.peek()
		if nameTok.Type != TokIdent {
			return nil, &ParseError{Message: ErrMsgParserExpectedToken, Position: nameTok.Pos}
		}
		p.advance()
		prim = &PropNode{PosVal: dotPos, Object: prim, Prop: nameTok.Value}
	}
	return prim, nil
}

func (p *Parser) parsePrimary() (Node, error) {
	tok := p.peek()
	switch tok.Type {
	case TokString:
		p.advance()
		return &StringLitNode{PosVal: tok.Pos, Value: tok.Value}, nil
	case TokKwTrue:
		p.advance()
		return &BoolLitNode{PosVal: tok.Pos, Value: true}, nil
	case TokKwFalse:
		p.advance()
		return &BoolLitNode{PosVal: tok.Pos, Value: false}, nil
	case TokLCurly:
		return p.parseSubTemplate()
	case TokLBrack:
		return p.parseListLit()
	case TokLParen:
		p.advance()
		inner, err := p.parseChainExpr()
		if err != nil {
			return nil, err
		}
		if err := p.expect(TokRParen); err != nil {
			return nil, err
		}
		var args []Arg
		if p.peek().Type == TokLParen {
			a, err := p.parseArgs()
			if err != nil {
				return nil, err
			}
			args = a
		}
		return &IndirectTemplateNode{PosVal: tok.Pos, NameExpr: inner, Args: args}, nil
	case TokKwSuper:
		p.advance()
		if err := p.expect(TokDot); err != nil {
			return nil, err
		}
		nameTok := p.peek()
		if nameTok.Type != TokIdent {
			return nil, &ParseError{Message: ErrMsgParserExpectedToken, Position: nameTok.Pos}
		}
		p.advance()
		args, err := p.parseArgs()
		if err != nil {
			return nil, err
		}
		return &CallNode{PosVal: tok.Pos, Name: nameTok.Value, Super: true, Args: args}, nil
	case TokIdent:
		p.advance()
		if p.peek().Type != TokLParen {
			return &AttrNode{PosVal: tok.Pos, Name: tok.Value}, nil
		}
		args, err := p.parseArgs()
		if err != nil {
			return nil, err
		}
		if fn, ok := builtinFuncName(tok.Value); ok && len(args) == 1 && args[0].Name == "" {
			return &FuncNode{PosVal: tok.Pos, Name: fn, Arg: args[0].Value}, nil
		}
		return &CallNode{PosVal: tok.Pos, Name: tok.Value, Args: args}, nil
	}
	return nil, &ParseError{Message: ErrMsgParserUnexpectedToken, Position: tok.Pos}
}

func builtinFuncName(name string) (string, bool) {
	switch name {
	case FuncNameFirst, FuncNameLast, FuncNameRest, FuncNameTrunc, FuncNameStrip,
		FuncNameTrim, FuncNameLength, FuncNameStrlen, FuncNameReverse:
		return name, true
	}
	return "", false
}

// parseArgs parses a parenthesized, comma-separated argument list: each
// argument is either positional (`expr`) or named (`name=expr`).
func (p *Parser) parseArgs() ([]Arg, error) {
	if err := p.expect(TokLParen); err != nil {
		return nil, err
	}
	var args []Arg
	if p.peek().Type == TokRParen {
		p.advance()
		return args, nil
	}
	for {
		arg, err := p.parseOneArg()
		if err != nil {
			return nil, err
		}
		args = append(args, arg)
		if p.peek().Type == TokComma {
			p.advance()
			continue
		}
		break
	}
	if err := p.expect(TokRParen); err != nil {
		return nil, err
	}
	return args, nil
}

func (p *Parser) parseOneArg() (Arg, error) {
	if p.peek().Type == TokIdent && p.peekAt(1).Type == TokEquals {
		name := p.peek().Value
		p.advance()
		p.advance()
		value, err := p.parseChainExpr()
		if err != nil {
			return Arg{}, err
		}
		return Arg{Name: name, Value: value}, nil
	}
	value, err := p.parseChainExpr()
	if err != nil {
		return Arg{}, err
	}
	return Arg{Value: value}, nil
}

// parseSubTemplate parses an anonymous `{args|body}` (or `{body}` with
// no formal args), TokLCurly not yet consumed.
func (p *Parser) parseSubTemplate() (Node, error) {
	tok := p.peek()
	var args []string
	if tok.Value != "" {
		args = strings.Split(tok.Value, ",")
	}
	p.advance()
	body, err := p.parseChunks(nil)
	if err != nil {
		return nil, err
	}
	if p.peek().Type != TokRCurly {
		return nil, &ParseError{Message: ErrMsgParserUnterminatedSub, Position: p.peek().Pos}
	}
	p.advance()
	return &SubTemplateNode{PosVal: tok.Pos, Args: args, Body: body}, nil
}

// parseListLit parses an inline list literal `[e1, e2, ...]`, TokLBrack
// not yet consumed. An empty `[]` is a valid empty list.
func (p *Parser) parseListLit() (Node, error) {
	tok := p.peek()
	p.advance()
	var elems []Node
	if p.peek().Type != TokRBrack {
		for {
			e, err := p.parseChainExpr()
			if err != nil {
				return nil, err
			}
			elems = append(elems, e)
			if p.peek().Type == TokComma {
				p.advance()
				continue
			}
			break
		}
	}
	if err := p.expect(TokRBrack); err != nil {
		return nil, err
	}
	return &ListLitNode{PosVal: tok.Pos, Elems: elems}, nil
}

// --- token cursor helpers ---

func (p *Parser) peek() Token {
	return p.tokens[p.pos]
}

func (p *Parser) peekAt(offset int) Token {
	i := p.pos + offset
	if i >= len(p.tokens) {
		return p.tokens[len(p.tokens)-1]
	}
	return p.tokens[i]
}

func (p *Parser) advance() Token {
	tok := p.tokens[p.pos]
	if p.pos < len(p.tokens)-1 {
		p.pos++
	}
	return tok
}

func (p *Parser) expect(t TokenType) error {
	if p.peek().Type != t {
		return &ParseError{Message: ErrMsgParserExpectedToken, Position: p.peek().Pos}
	}
	p.advance()
	return nil
}
