package internal

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func tokenTypes(tokens []Token) []TokenType {
	out := make([]TokenType, len(tokens))
	for i, tok := range tokens {
		out[i] = tok.Type
	}
	return out
}

func TestLexer_PlainTextHasNoExpressions(t *testing.T) {
	l := NewLexer("hello, world!", zap.NewNop())
	tokens, err := l.Tokenize()
	require.NoError(t, err)
	assert.Equal(t, []TokenType{TokText, TokEOF}, tokenTypes(tokens))
	assert.Equal(t, "hello, world!", tokens[0].Value)
}

func TestLexer_SimpleAttributeExpression(t *testing.T) {
	l := NewLexer("hi <name>!", zap.NewNop())
	tokens, err := l.Tokenize()
	require.NoError(t, err)
	assert.Equal(t, []TokenType{TokText, TokLDelim, TokIdent, TokRDelim, TokText, TokEOF}, tokenTypes(tokens))
	assert.Equal(t, "name", tokens[2].Value)
}

func TestLexer_EscapedDelimiterIsLiteralText(t *testing.T) {
	l := NewLexer(`a \< b`, zap.NewNop())
	tokens, err := l.Tokenize()
	require.NoError(t, err)
	require.Len(t, tokens, 2)
	assert.Equal(t, "a < b", tokens[0].Value)
}

func TestLexer_EscapedBackslashIsLiteral(t *testing.T) {
	l := NewLexer(`a \\ b`, zap.NewNop())
	tokens, err := l.Tokenize()
	require.NoError(t, err)
	require.Len(t, tokens, 2)
	assert.Equal(t, `a \ b`, tokens[0].Value)
}

func TestLexer_ConditionalKeywords(t *testing.T) {
	l := NewLexer("<if(cond)>yes<else>no<endif>", zap.NewNop())
	tokens, err := l.Tokenize()
	require.NoError(t, err)
	types := tokenTypes(tokens)
	assert.Contains(t, types, TokKwIf)
	assert.Contains(t, types, TokKwElse)
	assert.Contains(t, types, TokKwEndif)
}

func TestLexer_StringLiteralWithEscapes(t *testing.T) {
	l := NewLexer(`<x; null="a\"b">`, zap.NewNop())
	tokens, err := l.Tokenize()
	require.NoError(t, err)
	var str *Token
	for i := range tokens {
		if tokens[i].Type == TokString {
			str = &tokens[i]
		}
	}
	require.NotNil(t, str)
	assert.Equal(t, `a"b`, str.Value)
}

func TestLexer_SubTemplateWithFormalArgs(t *testing.T) {
	l := NewLexer("<names:{n|<n>!}>", zap.NewNop())
	tokens, err := l.Tokenize()
	require.NoError(t, err)
	var curly *Token
	for i := range tokens {
		if tokens[i].Type == TokLCurly {
			curly = &tokens[i]
		}
	}
	require.NotNil(t, curly)
	assert.Equal(t, "n", curly.Value)
}

func TestLexer_SubTemplateWithoutArgsRewinds(t *testing.T) {
	l := NewLexer("<names:{<it>!}>", zap.NewNop())
	tokens, err := l.Tokenize()
	require.NoError(t, err)
	var curly *Token
	for i := range tokens {
		if tokens[i].Type == TokLCurly {
			curly = &tokens[i]
		}
	}
	require.NotNil(t, curly)
	assert.Equal(t, "", curly.Value)
	assert.Contains(t, tokenTypes(tokens), TokRCurly)
}

func TestLexer_UnterminatedExpressionIsAnError(t *testing.T) {
	l := NewLexer("<name", zap.NewNop())
	_, err := l.Tokenize()
	require.Error(t, err)
	var lexErr *LexerError
	require.ErrorAs(t, err, &lexErr)
}

func TestLexer_UnterminatedStringIsAnError(t *testing.T) {
	l := NewLexer(`<x; null="a>`, zap.NewNop())
	_, err := l.Tokenize()
	require.Error(t, err)
}

func TestLexer_AlternateDelimiters(t *testing.T) {
	l := NewLexerWithDelimiters("hi $name$!", AltDelimiterStart, AltDelimiterStop, zap.NewNop())
	tokens, err := l.Tokenize()
	require.NoError(t, err)
	assert.Equal(t, []TokenType{TokText, TokLDelim, TokIdent, TokRDelim, TokText, TokEOF}, tokenTypes(tokens))
}

func TestValidateDelimiters_RejectsReservedChars(t *testing.T) {
	assert.NoError(t, ValidateDelimiters("<", ">"))
	assert.NoError(t, ValidateDelimiters("$", "$"))
	assert.Error(t, ValidateDelimiters("", ">"))
	assert.Error(t, ValidateDelimiters("{", "}"))
}
