package internal

import "go.uber.org/zap"

// TemplateDefKind distinguishes the four top-level group-file
// definition shapes a GroupParser recognizes.
type TemplateDefKind int

const (
	DefTemplate TemplateDefKind = iota
	DefDict
	DefAlias
	DefRegion
)

// DefaultKind identifies which shape a formal argument's declared
// default value takes.
type DefaultKind int

const (
	DefaultNone DefaultKind = iota
	DefaultString
	DefaultBool
	DefaultEmptyList
	DefaultTemplate
)

// FormalArgDef is one declared formal argument in a group-file template
// definition, with its optional default value still in source form.
type FormalArgDef struct {
	Name        string
	Kind        DefaultKind
	StringVal   string
	BoolVal     bool
	TemplateSrc string // raw {...} body for DefaultTemplate, compiled by the owning group
}

// TemplateDef is one parsed top-level group-file definition, not yet
// compiled to bytecode (that is CompileTemplate's job, driven by the
// owning Group).
type TemplateDef struct {
	Kind TemplateDefKind
	Pos  Position

	Name          string // template/dict/alias name, or region's owning template for DefRegion
	RegionName    string // region name, set only for DefRegion
	FormalArgs    []FormalArgDef
	HasFormalArgs bool
	Body          string // raw template source, for DefTemplate/DefRegion

	AliasTarget string // for DefAlias

	DictEntries    map[string]Node // parsed value expressions, for DefDict
	DictOrder      []string
	DictDefault    Node
	DictHasDefault bool
}

// GroupFile is the result of parsing one `.stg` source: its delimiter
// override, imports, and definitions in file order.
type GroupFile struct {
	DelimStart string
	DelimStop  string
	Imports    []string
	Defs       []TemplateDef
}

// GroupParser consumes a GroupLexer's token stream into a GroupFile.
// It shares st4.parser.go's cursor/expect shape.
type GroupParser struct {
	lex    *GroupLexer
	tok    GroupToken
	logger *zap.Logger
}

// ParseGroupFile parses the entirety of src as a `.stg` group file.
func ParseGroupFile(src string, logger *zap.Logger) (*GroupFile, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	p := &GroupParser{lex: NewGroupLexer(src), logger: logger}
	if err := p.next(); err != nil {
		return nil, err
	}
	gf := &GroupFile{DelimStart: DefaultDelimiterStart, DelimStop: DefaultDelimiterStop}
	for p.tok.Type != GTokEOF {
		if err := p.parseTop(gf); err != nil {
			return nil, err
		}
	}
	return gf, nil
}

func (p *GroupParser) next() error {
	t, err := p.lex.Next()
	if err != nil {
		return err
	}
	p.tok = t
	return nil
}

func (p *GroupParser) expect(tt GroupTokenType, what string) (GroupToken, error) {
	if p.tok.Type != tt {
		return GroupToken{}, &ParseError{Message: ErrMsgParserExpectedToken + ": " + what, Position: p.tok.Pos}
	}
	t := p.tok
	if err := p.next(); err != nil {
		return GroupToken{}, err
	}
	return t, nil
}

func (p *GroupParser) parseTop(gf *GroupFile) error {
	switch p.tok.Type {
	case GTokKwDelimiters:
		return p.parseDelimiters(gf)
	case GTokKwImport:
		return p.parseImport(gf)
	case GTokAt:
		return p.parseRegion(gf)
	case GTokIdent:
		return p.parseNamedDef(gf)
	default:
		return &ParseError{Message: ErrMsgParserUnexpectedToken + " in group file", Position: p.tok.Pos}
	}
}

func (p *GroupParser) parseDelimiters(gf *GroupFile) error {
	if err := p.next(); err != nil {
		return err
	}
	start, err := p.expect(GTokString, "delimiter start string")
	if err != nil {
		return err
	}
	if _, err := p.expect(GTokComma, "','"); err != nil {
		return err
	}
	stop, err := p.expect(GTokString, "delimiter stop string")
	if err != nil {
		return err
	}
	gf.DelimStart = start.Value
	gf.DelimStop = stop.Value
	return nil
}

func (p *GroupParser) parseImport(gf *GroupFile) error {
	if err := p.next(); err != nil {
		return err
	}
	path, err := p.expect(GTokString, "import path string")
	if err != nil {
		return err
	}
	gf.Imports = append(gf.Imports, path.Value)
	return nil
}

// parseRegion parses `@t.r() ::= "..."`.
func (p *GroupParser) parseRegion(gf *GroupFile) error {
	pos := p.tok.Pos
	if err := p.next(); err != nil {
		return err
	}
	owner, err := p.expect(GTokIdent, "owning template name")
	if err != nil {
		return err
	}
	if _, err := p.expect(GTokDot, "'.'"); err != nil {
		return err
	}
	region, err := p.expect(GTokIdent, "region name")
	if err != nil {
		return err
	}
	if _, err := p.expect(GTokLParen, "'('"); err != nil {
		return err
	}
	if _, err := p.expect(GTokRParen, "')'"); err != nil {
		return err
	}
	if _, err := p.expect(GTokAssign, "'::='"); err != nil {
		return err
	}
	body, err := p.parseBody()
	if err != nil {
		return err
	}
	gf.Defs = append(gf.Defs, TemplateDef{
		Kind:       DefRegion,
		Pos:        pos,
		Name:       owner.Text,
		RegionName: region.Text,
		Body:       body,
	})
	return nil
}

// parseNamedDef parses `name(args) ::= body`, `name ::= ["k":v, ...]`
// (dictionary), or `name ::= other` (alias).
func (p *GroupParser) parseNamedDef(gf *GroupFile) error {
	pos := p.tok.Pos
	name := p.tok.Text
	if err := p.next(); err != nil {
		return err
	}
	var args []FormalArgDef
	hasArgs := false
	if p.tok.Type == GTokLParen {
		hasArgs = true
		if err := p.next(); err != nil {
			return err
		}
		sawDefault := false
		for p.tok.Type != GTokRParen {
			a, err := p.expect(GTokIdent, "formal argument name")
			if err != nil {
				return err
			}
			arg := FormalArgDef{Name: a.Text}
			if p.tok.Type == GTokEquals {
				if err := p.next(); err != nil {
					return err
				}
				if err := p.parseArgDefault(&arg); err != nil {
					return err
				}
				sawDefault = true
			} else if sawDefault {
				return &ParseError{Message: ErrKindRequiredParameterAfterOptional + ": " + a.Text, Position: a.Pos}
			}
			args = append(args, arg)
			if p.tok.Type == GTokComma {
				if err := p.next(); err != nil {
					return err
				}
				continue
			}
			break
		}
		if _, err := p.expect(GTokRParen, "')'"); err != nil {
			return err
		}
	}
	if _, err := p.expect(GTokAssign, "'::='"); err != nil {
		return err
	}
	if p.tok.Type == GTokLBrack {
		def, err := p.parseDictBody(pos, name)
		if err != nil {
			return err
		}
		gf.Defs = append(gf.Defs, *def)
		return nil
	}
	if p.tok.Type == GTokIdent && !hasArgs {
		target := p.tok.Text
		if err := p.next(); err != nil {
			return err
		}
		gf.Defs = append(gf.Defs, TemplateDef{Kind: DefAlias, Pos: pos, Name: name, AliasTarget: target})
		return nil
	}
	body, err := p.parseBody()
	if err != nil {
		return err
	}
	gf.Defs = append(gf.Defs, TemplateDef{
		Kind: DefTemplate, Pos: pos, Name: name, FormalArgs: args, HasFormalArgs: hasArgs, Body: body,
	})
	return nil
}

// parseArgDefault parses the value after `name=` in a formal-argument
// list: a quoted string, true/false, the empty list `[]`, or a `{...}`
// default-value template.
func (p *GroupParser) parseArgDefault(arg *FormalArgDef) error {
	switch p.tok.Type {
	case GTokString, GTokBigString:
		arg.Kind = DefaultString
		arg.StringVal = p.tok.Value
		return p.next()
	case GTokKwTrue:
		arg.Kind = DefaultBool
		arg.BoolVal = true
		return p.next()
	case GTokKwFalse:
		arg.Kind = DefaultBool
		arg.BoolVal = false
		return p.next()
	case GTokLBrack:
		if err := p.next(); err != nil {
			return err
		}
		if _, err := p.expect(GTokRBrack, "']' closing an empty-list default"); err != nil {
			return err
		}
		arg.Kind = DefaultEmptyList
		return nil
	case GTokAnonTemplate:
		arg.Kind = DefaultTemplate
		arg.TemplateSrc = p.tok.Value
		return p.next()
	default:
		return &ParseError{Message: ErrKindNoDefaultValue + ": " + arg.Name, Position: p.tok.Pos}
	}
}

func (p *GroupParser) parseBody() (string, error) {
	switch p.tok.Type {
	case GTokString, GTokBigString:
		t := p.tok
		if err := p.next(); err != nil {
			return "", err
		}
		return t.Value, nil
	default:
		return "", &ParseError{Message: ErrMsgParserExpectedToken + ": template body", Position: p.tok.Pos}
	}
}

// parseDictBody parses `["k1":v1, "k2":v2, default: v]`. Each value is
// read by parseDictValue, not by the template-expression Parser: lists
// and template calls are not accepted as dictionary values.
func (p *GroupParser) parseDictBody(pos Position, name string) (*TemplateDef, error) {
	if _, err := p.expect(GTokLBrack, "'['"); err != nil {
		return nil, err
	}
	def := &TemplateDef{Kind: DefDict, Pos: pos, Name: name, DictEntries: make(map[string]Node)}
	for p.tok.Type != GTokRBrack {
		isDefault := false
		var key string
		if p.tok.Type == GTokKwDefault {
			isDefault = true
			if err := p.next(); err != nil {
				return nil, err
			}
		} else {
			k, err := p.expect(GTokString, "dictionary key string")
			if err != nil {
				return nil, err
			}
			key = k.Value
		}
		if _, err := p.expect(GTokColon, "':'"); err != nil {
			return nil, err
		}
		valExpr, err := p.parseDictValue()
		if err != nil {
			return nil, err
		}
		if isDefault {
			def.DictDefault = valExpr
			def.DictHasDefault = true
		} else {
			def.DictEntries[key] = valExpr
			def.DictOrder = append(def.DictOrder, key)
		}
		if p.tok.Type == GTokComma {
			if err := p.next(); err != nil {
				return nil, err
			}
			continue
		}
		break
	}
	if _, err := p.expect(GTokRBrack, "']'"); err != nil {
		return nil, err
	}
	return def, nil
}

// parseDictValue parses one dictionary value: a quoted string or
// heredoc literal, `true`/`false`, or a bare identifier (such as the
// `key` use-key-as-value sentinel), represented as a StringLitNode, a
// BoolLitNode and an AttrNode respectively. Any other token is an error.
func (p *GroupParser) parseDictValue() (Node, error) {
	switch p.tok.Type {
	case GTokString, GTokBigString:
		t := p.tok
		if err := p.next(); err != nil {
			return nil, err
		}
		return &StringLitNode{PosVal: t.Pos, Value: t.Value}, nil
	case GTokKwTrue, GTokKwFalse:
		t := p.tok
		if err := p.next(); err != nil {
			return nil, err
		}
		return &BoolLitNode{PosVal: t.Pos, Value: t.Type == GTokKwTrue}, nil
	case GTokIdent:
		t := p.tok
		if err := p.next(); err != nil {
			return nil, err
		}
		return &AttrNode{PosVal: t.Pos, Name: t.Text}, nil
	default:
		return nil, &ParseError{Message: ErrMsgParserExpectedToken + ": dictionary value", Position: p.tok.Pos}
	}
}
