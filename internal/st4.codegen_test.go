package internal

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func compileSource(t *testing.T, name, src string, args []string) (*CompiledST, []*CompiledST) {
	t.Helper()
	lex := NewLexer(src, zap.NewNop())
	tokens, err := lex.Tokenize()
	require.NoError(t, err)
	root, err := NewParser(tokens, src, zap.NewNop()).Parse()
	require.NoError(t, err)
	formals := make([]*FormalArgument, len(args))
	for i, a := range args {
		formals[i] = &FormalArgument{Name: a}
	}
	compiled, implicit, err := CompileTemplate(name, formals, len(args) > 0, src, root, nil, zap.NewNop())
	require.NoError(t, err)
	return compiled, implicit
}

func decodeOps(instrs []byte) []Opcode {
	var ops []Opcode
	ip := 0
	for ip < len(instrs) {
		op := Opcode(instrs[ip])
		ops = append(ops, op)
		ip += InstrLen(op)
	}
	return ops
}

func TestCodegen_PlainTextEmitsWriteStr(t *testing.T) {
	compiled, _ := compileSource(t, "t", "hello", nil)
	assert.Equal(t, []Opcode{OpWriteStr}, decodeOps(compiled.Instrs))
	assert.Equal(t, "hello", compiled.Strings.Get(0))
}

func TestCodegen_AttributeEmitsLoadAttrThenWrite(t *testing.T) {
	compiled, _ := compileSource(t, "t", "<name>", nil)
	assert.Equal(t, []Opcode{OpLoadAttr, OpWrite}, decodeOps(compiled.Instrs))
}

func TestCodegen_OptionsEmitsOptionsVectorBeforeWriteOpt(t *testing.T) {
	compiled, _ := compileSource(t, "t", `<names; separator=", ">`, nil)
	ops := decodeOps(compiled.Instrs)
	require.Equal(t, OpOptions, ops[0])
	assert.Equal(t, OpWriteOpt, ops[len(ops)-1])
	assert.Contains(t, ops, OpStoreOption)
	assert.Contains(t, ops, OpLoadAttr)
}

func TestCodegen_CallWithPositionalArgsEmitsNew(t *testing.T) {
	compiled, _ := compileSource(t, "t", "<greet(name)>", nil)
	ops := decodeOps(compiled.Instrs)
	assert.Equal(t, []Opcode{OpLoadAttr, OpNew, OpWrite}, ops)
}

func TestCodegen_CallWithNamedArgsEmitsArgsAndNewBoxArgs(t *testing.T) {
	compiled, _ := compileSource(t, "t", `<greet(name="x")>`, nil)
	ops := decodeOps(compiled.Instrs)
	assert.Equal(t, []Opcode{OpArgs, OpLoadStr, OpStoreArg, OpNewBoxArgs, OpWrite}, ops)
}

func TestCodegen_ConditionalEmitsBrfAndBr(t *testing.T) {
	compiled, _ := compileSource(t, "t", "<if(a)>X<else>Y<endif>", nil)
	ops := decodeOps(compiled.Instrs)
	assert.Contains(t, ops, OpBrf)
	assert.Contains(t, ops, OpBr)
}

func TestCodegen_MapEmitsMapOpcode(t *testing.T) {
	compiled, implicit := compileSource(t, "t", "<names:upcase()>", nil)
	ops := decodeOps(compiled.Instrs)
	assert.Contains(t, ops, OpMap)
	assert.Empty(t, implicit)
}

func TestCodegen_MapWithSubTemplateProducesImplicitTemplate(t *testing.T) {
	compiled, implicit := compileSource(t, "t", "<names:{n|<n>!}>", nil)
	ops := decodeOps(compiled.Instrs)
	assert.Contains(t, ops, OpMap)
	require.Len(t, implicit, 1)
	assert.True(t, implicit[0].HasFormalArgs)
	assert.Equal(t, 1, implicit[0].NumDeclaredArgs)
	assert.Equal(t, []string{"n", "it", "i0", "i"}, implicit[0].ArgOrder)
}

func TestCodegen_ZipMapUsesExprCountOperand(t *testing.T) {
	compiled, _ := compileSource(t, "t", "<xs,ys:{x,y|<x>}>", nil)
	ops := decodeOps(compiled.Instrs)
	assert.Contains(t, ops, OpZipMap)
}

func TestCodegen_RotMapUsesTemplateCountOperand(t *testing.T) {
	compiled, _ := compileSource(t, "t", "<names:t1(),t2()>", nil)
	ops := decodeOps(compiled.Instrs)
	assert.Contains(t, ops, OpRotMap)
}

func TestCodegen_PassthruSubTemplateEmitsPassthru(t *testing.T) {
	compiled, implicit := compileSource(t, "t", "<{Hello <name>!}>", nil)
	ops := decodeOps(compiled.Instrs)
	assert.Contains(t, ops, OpPassthru)
	require.Len(t, implicit, 1)
	assert.False(t, implicit[0].HasFormalArgs)
}

func TestCodegen_IndentAndNewlineTrackDedent(t *testing.T) {
	compiled, _ := compileSource(t, "t", "  <name>\nrest", nil)
	ops := decodeOps(compiled.Instrs)
	assert.Equal(t, Opcode(OpIndent), ops[0])
	assert.Contains(t, ops, OpNewline)
	assert.Contains(t, ops, OpDedent)
}

func TestCodegen_FormalArgsRecordedInOrder(t *testing.T) {
	compiled, _ := compileSource(t, "greet", "hi <name>", []string{"name", "greeting"})
	assert.True(t, compiled.HasFormalArgs)
	assert.Equal(t, []string{"name", "greeting"}, compiled.ArgOrder)
}
