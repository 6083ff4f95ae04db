package st4

import (
	"fmt"
	"net/url"
	"reflect"
	"strings"
	"time"

	"github.com/rydnr/stringtemplate4/internal"
)

// String-renderer format names.
const (
	FormatUpper     = "upper"
	FormatLower     = "lower"
	FormatCap       = "cap"
	FormatURLEncode = "url-encode"
	FormatXMLEncode = "xml-encode"
)

// Date-renderer format names, mapped to Go reference layouts.
const (
	FormatDateShort  = "short"
	FormatDateMedium = "medium"
	FormatDateLong   = "long"
	FormatDateFull   = "full"
)

var dateLayouts = map[string]string{
	FormatDateShort:  "1/2/06",
	FormatDateMedium: "Jan 2, 2006",
	FormatDateLong:   "January 2, 2006",
	FormatDateFull:   "Monday, January 2, 2006",
}

// StringRenderer formats string attributes: upper, lower, cap,
// url-encode, xml-encode; an empty format passes the value through
// unchanged.
type StringRenderer struct{}

func (StringRenderer) ToString(value any, formatString string, locale string) string {
	s := internal.ToStringValue(value)
	switch formatString {
	case "":
		return s
	case FormatUpper:
		return strings.ToUpper(s)
	case FormatLower:
		return strings.ToLower(s)
	case FormatCap:
		if s == "" {
			return s
		}
		return strings.ToUpper(s[:1]) + s[1:]
	case FormatURLEncode:
		return url.QueryEscape(s)
	case FormatXMLEncode:
		return xmlEscape(s)
	default:
		return fmt.Sprintf(formatString, s)
	}
}

func xmlEscape(s string) string {
	r := strings.NewReplacer(
		"&", "&amp;",
		"<", "&lt;",
		">", "&gt;",
		"\"", "&quot;",
		"'", "&apos;",
	)
	return r.Replace(s)
}

// NumberRenderer formats numeric attributes with a printf-style verb
// (`%05d`, `%.2f`) or grouped thousands via format ",". An empty
// format yields the plain decimal form.
type NumberRenderer struct{}

func (NumberRenderer) ToString(value any, formatString string, locale string) string {
	switch formatString {
	case "":
		return internal.ToStringValue(value)
	case ",":
		return groupThousands(internal.ToStringValue(value))
	default:
		return fmt.Sprintf(formatString, value)
	}
}

// groupThousands inserts "," separators into the integer part of a
// decimal string.
func groupThousands(s string) string {
	sign := ""
	if strings.HasPrefix(s, "-") {
		sign = "-"
		s = s[1:]
	}
	intPart, fracPart := s, ""
	if dot := strings.IndexByte(s, '.'); dot >= 0 {
		intPart, fracPart = s[:dot], s[dot:]
	}
	if len(intPart) <= 3 {
		return sign + intPart + fracPart
	}
	var sb strings.Builder
	lead := len(intPart) % 3
	if lead > 0 {
		sb.WriteString(intPart[:lead])
	}
	for i := lead; i < len(intPart); i += 3 {
		if sb.Len() > 0 {
			sb.WriteString(",")
		}
		sb.WriteString(intPart[i : i+3])
	}
	return sign + sb.String() + fracPart
}

// DateRenderer formats time.Time attributes: short/medium/long/full
// named layouts, any explicit Go reference layout, or medium when no
// format is given.
type DateRenderer struct{}

func (DateRenderer) ToString(value any, formatString string, locale string) string {
	t, ok := value.(time.Time)
	if !ok {
		return internal.ToStringValue(value)
	}
	if formatString == "" {
		formatString = FormatDateMedium
	}
	if layout, ok := dateLayouts[formatString]; ok {
		return t.Format(layout)
	}
	return t.Format(formatString)
}

// registerDefaultRenderers installs the built-in renderers on a fresh
// group's registry; RegisterRenderer overrides any of them per type.
func registerDefaultRenderers(r *RendererRegistry) {
	r.Register(reflect.TypeOf(""), StringRenderer{})
	r.Register(reflect.TypeOf(time.Time{}), DateRenderer{})
	for _, sample := range []any{
		int(0), int8(0), int16(0), int32(0), int64(0),
		uint(0), uint8(0), uint16(0), uint32(0), uint64(0),
		float32(0), float64(0),
	} {
		r.Register(reflect.TypeOf(sample), NumberRenderer{})
	}
}
