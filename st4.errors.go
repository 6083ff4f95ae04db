package st4

import (
	"strconv"

	"github.com/itsatony/go-cuserr"
	"github.com/rydnr/stringtemplate4/internal"
)

// Metadata key constants; WithMetadata calls never use ad hoc strings.
const (
	MetaKeyLine     = "line"
	MetaKeyColumn   = "column"
	MetaKeyGroup    = "group"
	MetaKeyTemplate = "template"
	MetaKeyAttr     = "attribute"
	MetaKeyArgs      = "args"
	MetaKeyKind      = "kind"
	MetaKeyCandidate = "candidate"
)

// Position re-exports internal.Position so callers never need to import
// internal directly.
type Position = internal.Position

// newCompileError wraps one of the compile-time error kinds.
func newCompileError(kind string, pos Position, args ...any) error {
	return cuserr.NewValidationError(kind, kind).
		WithMetadata(MetaKeyLine, strconv.Itoa(pos.Line)).
		WithMetadata(MetaKeyColumn, strconv.Itoa(pos.Column)).
		WithMetadata(MetaKeyArgs, formatArgs(args))
}

// newRuntimeError wraps one of the run-time error kinds. These
// never abort a render; the ErrorManager only uses this to hand a
// formed error to the listener.
func newRuntimeError(kind string, pos Position, templateName string, args ...any) error {
	return cuserr.NewValidationError(kind, kind).
		WithMetadata(MetaKeyLine, strconv.Itoa(pos.Line)).
		WithMetadata(MetaKeyColumn, strconv.Itoa(pos.Column)).
		WithMetadata(MetaKeyTemplate, templateName).
		WithMetadata(MetaKeyArgs, formatArgs(args))
}

// newIOError wraps internal.ErrKindWriteIOError.
func newIOError(cause error) error {
	return cuserr.WrapStdError(cause, internal.ErrKindWriteIOError, internal.ErrKindWriteIOError)
}

// newInternalError wraps internal.ErrKindInternalError /
// internal.ErrKindCantLoadGroupFile and similar "abort the render"
// kinds.
func newInternalError(kind string, cause error) error {
	if cause != nil {
		return cuserr.WrapStdError(cause, kind, kind)
	}
	return cuserr.NewInternalError(kind, nil)
}

// newNoSuchPropertyError is returned by ModelAdaptors for a missing
// property; the VM converts it into a NO_SUCH_PROPERTY diagnostic and
// a null value rather than aborting the render.
func newNoSuchPropertyError(typeName, property string) error {
	return cuserr.NewNotFoundError(internal.ErrKindNoSuchProperty, internal.ErrKindNoSuchProperty).
		WithMetadata(MetaKeyKind, typeName).
		WithMetadata(MetaKeyAttr, property)
}

// newAmbiguousMatchError reports a registry lookup where two
// registered types are equally specific for the queried runtime type.
// Folded into INTERNAL_ERROR to keep the error taxonomy closed; the
// candidate list travels as metadata.
func newAmbiguousMatchError(typeName string, candidates []string) error {
	err := cuserr.NewInternalError(internal.ErrKindInternalError, nil).
		WithMetadata(MetaKeyKind, typeName)
	for i, c := range candidates {
		err = err.WithMetadata(MetaKeyCandidate+strconv.Itoa(i), c)
	}
	return err
}

func formatArgs(args []any) string {
	if len(args) == 0 {
		return ""
	}
	out := ""
	for i, a := range args {
		if i > 0 {
			out += ","
		}
		out += toArgString(a)
	}
	return out
}

func toArgString(a any) string {
	if s, ok := a.(string); ok {
		return s
	}
	return internal.ToStringValue(a)
}
