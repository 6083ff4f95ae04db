package internal

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriter_PlainWrite(t *testing.T) {
	var buf strings.Builder
	w := NewWriter(&buf)
	n, err := w.Write("hello", "")
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	assert.Equal(t, "hello", buf.String())
}

func TestWriter_IndentAppliesAtStartOfLine(t *testing.T) {
	var buf strings.Builder
	w := NewWriter(&buf)
	w.PushIndent("  ")
	_, err := w.Write("a\nb", "")
	require.NoError(t, err)
	assert.Equal(t, "  a\n  b", buf.String())
}

func TestWriter_PopIndentStopsFurtherIndentation(t *testing.T) {
	var buf strings.Builder
	w := NewWriter(&buf)
	w.PushIndent("  ")
	w.PopIndent()
	_, err := w.Write("a\nb", "")
	require.NoError(t, err)
	assert.Equal(t, "a\nb", buf.String())
}

func TestWriter_AnchorPadsBeyondIndentWidth(t *testing.T) {
	var buf strings.Builder
	w := NewWriter(&buf)
	_, err := w.Write("ab", "")
	require.NoError(t, err)
	w.PushAnchor()
	_, err = w.Write("\ncd", "")
	require.NoError(t, err)
	assert.Equal(t, "ab\n  cd", buf.String())
}

func TestWriter_CarriageReturnsAreDropped(t *testing.T) {
	var buf strings.Builder
	w := NewWriter(&buf)
	_, err := w.Write("a\r\nb", "")
	require.NoError(t, err)
	assert.Equal(t, "a\nb", buf.String())
}

func TestWriter_WrapEmitsAtLineWidth(t *testing.T) {
	var buf strings.Builder
	w := NewWriter(&buf)
	w.SetLineWidth(4)
	_, err := w.Write("ab", "")
	require.NoError(t, err)
	_, err = w.Write("cdef", "\n")
	require.NoError(t, err)
	assert.Equal(t, "abcdef", buf.String())
	_, err = w.Write("gh", "\n")
	require.NoError(t, err)
	assert.Equal(t, "abcdef\ngh", buf.String())
}

func TestWriter_NoWrapByDefault(t *testing.T) {
	var buf strings.Builder
	w := NewWriter(&buf)
	_, err := w.Write("abcdefgh", "\n")
	require.NoError(t, err)
	assert.Equal(t, "abcdefgh", buf.String())
}

func TestWriter_IndexTracksAbsoluteOffset(t *testing.T) {
	var buf strings.Builder
	w := NewWriter(&buf)
	_, err := w.Write("abc", "")
	require.NoError(t, err)
	assert.Equal(t, 3, w.Index())
}
