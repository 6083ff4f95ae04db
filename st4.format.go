package st4

import (
	"regexp"
	"strconv"
)

// AnonTemplateName is the name standalone templates compile under.
const AnonTemplateName = "anonymous"

// formatArgPrefix is the formal-argument name prefix Format translates
// `%N` placeholders to.
const formatArgPrefix = "arg"

var formatPlaceholderRe = regexp.MustCompile(`%(\d+)`)

// Format renders a one-off anonymous template using positional `%1,
// %2, ...` placeholders, translated to `arg1, arg2, ...` formals.
func Format(template string, args ...any) string {
	return FormatWidth(0, template, args...)
}

// FormatWidth is Format with line wrapping at lineWidth (0 disables).
func FormatWidth(lineWidth int, template string, args ...any) string {
	source := formatPlaceholderRe.ReplaceAllString(template, DefaultDelimiterStart+formatArgPrefix+"$1"+DefaultDelimiterStop)
	names := make([]string, len(args))
	for i := range args {
		names[i] = formatArgPrefix + strconv.Itoa(i+1)
	}
	g := NewGroup()
	if err := g.DefineTemplateWithArgs(AnonTemplateName, names, source); err != nil {
		return ""
	}
	st, ok := g.GetInstanceOf(AnonTemplateName)
	if !ok {
		return ""
	}
	for i, a := range args {
		st.Add(names[i], a)
	}
	if lineWidth > 0 {
		return st.Render(WithLineWidth(lineWidth))
	}
	return st.Render()
}
