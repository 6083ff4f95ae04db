package st4

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/rydnr/stringtemplate4/internal"
)

// Message format constants, one per error kind of the closed taxonomy.
// ALL diagnostic text must come from these (NO MAGIC
// STRINGS); positional arguments fill the verbs.
var messageFormats = map[string]string{
	internal.ErrKindSyntaxError:                    "syntax error: %v",
	internal.ErrKindLexerError:                     "lexer error: %v",
	internal.ErrKindTemplateRedefinition:           "redefinition of template %v",
	internal.ErrKindEmbeddedRegionRedefinition:     "region %v is embedded and thus already implicitly defined",
	internal.ErrKindRegionRedefinition:             "region %v is already defined in this group",
	internal.ErrKindMapRedefinition:                "redefinition of dictionary %v",
	internal.ErrKindParameterRedefinition:          "redefinition of parameter %v",
	internal.ErrKindAliasTargetUndefined:           "cannot alias %v to undefined template %v",
	internal.ErrKindTemplateRedefinitionAsMap:      "redefinition of template %v as a dictionary",
	internal.ErrKindNoDefaultValue:                 "missing default value for parameter %v",
	internal.ErrKindNoSuchFunction:                 "no such function: %v",
	internal.ErrKindNoSuchRegion:                   "template %v doesn't define a region called %v",
	internal.ErrKindNoSuchOption:                   "no such option: %v",
	internal.ErrKindInvalidTemplateName:            "invalid template name: %v",
	internal.ErrKindAnonArgumentMismatch:           "anonymous template has %v argument(s) but mapped across %v value(s)",
	internal.ErrKindRequiredParameterAfterOptional: "required parameter %v follows a parameter with a default value",
	internal.ErrKindUnsupportedDelimiter:           "unsupported delimiter character: %v",

	internal.ErrKindNoSuchTemplate:               "no such template: %v",
	internal.ErrKindNoImportedTemplate:           "no such template %v in any imported group",
	internal.ErrKindNoSuchAttribute:              "attribute %v isn't defined",
	internal.ErrKindNoSuchAttributePassThrough:   "could not pass through undefined attribute %v",
	internal.ErrKindRefToImplicitAttrOutOfScope:  "implicitly-defined attribute %v not visible in this scope",
	internal.ErrKindMissingFormalArguments:       "missing argument definitions",
	internal.ErrKindNoSuchProperty:               "no such property or can't access: %v",
	internal.ErrKindMapArgumentCountMismatch:     "iterating through %v values in zip map but template has %v declared arguments",
	internal.ErrKindZipMapArgumentCountMismatch:  "zip map has unequal-length inputs for template %v",
	internal.ErrKindArgumentCountMismatch:        "passed %v, which is not a formal argument of %v",
	internal.ErrKindExpectingString:              "function %v expects a string, not %v",
	internal.ErrKindWriterCtorIssue:              "can't construct writer: %v",
	internal.ErrKindCantImport:                   "can't import group %v",

	internal.ErrKindInternalError:     "internal error: %v",
	internal.ErrKindWriteIOError:      "error writing output: %v",
	internal.ErrKindCantLoadGroupFile: "can't load group file %v",
}

// STMessage is one diagnostic delivered to an ErrorListener: the error
// kind, where it happened, which template was executing (run-time
// only), the format arguments, and the optional causing error.
type STMessage struct {
	Kind         string
	Pos          Position
	TemplateName string
	Args         []any
	Cause        error
}

// String renders the message using the kind's format string.
func (m *STMessage) String() string {
	format, ok := messageFormats[m.Kind]
	if !ok {
		format = m.Kind + ": %v"
	}
	args := m.Args
	if len(args) == 0 && m.Cause != nil {
		args = []any{m.Cause}
	}
	text := fmt.Sprintf(format, args...)
	text = strings.ReplaceAll(text, "%!v(MISSING)", "?")
	var sb strings.Builder
	if m.Pos.Line > 0 {
		sb.WriteString(m.Pos.String())
		sb.WriteString(": ")
	}
	if m.TemplateName != "" {
		sb.WriteString("context [" + m.TemplateName + "] ")
	}
	sb.WriteString(text)
	return sb.String()
}

// Err builds the cuserr-backed error form of this message.
func (m *STMessage) Err() error {
	switch m.Kind {
	case internal.ErrKindWriteIOError:
		return newIOError(m.Cause)
	case internal.ErrKindInternalError, internal.ErrKindCantLoadGroupFile:
		return newInternalError(m.Kind, m.Cause)
	}
	if m.TemplateName != "" {
		return newRuntimeError(m.Kind, m.Pos, m.TemplateName, m.Args...)
	}
	return newCompileError(m.Kind, m.Pos, m.Args...)
}

// ErrorListener receives diagnostics grouped into four channels:
// compile-time, run-time, I/O, internal.
type ErrorListener interface {
	CompileTimeError(msg *STMessage)
	RuntimeError(msg *STMessage)
	IOError(msg *STMessage)
	InternalError(msg *STMessage)
}

// ConsoleErrorListener is the default listener: it prints every message
// to the diagnostic stream. NO_SUCH_PROPERTY is filtered from the
// run-time channel so common benign lookups do not spam; a custom
// listener still receives it.
type ConsoleErrorListener struct {
	Out io.Writer
}

// NewConsoleErrorListener creates the default stderr-backed listener.
func NewConsoleErrorListener() *ConsoleErrorListener {
	return &ConsoleErrorListener{Out: os.Stderr}
}

func (l *ConsoleErrorListener) print(msg *STMessage) {
	out := l.Out
	if out == nil {
		out = os.Stderr
	}
	fmt.Fprintln(out, msg.String())
}

func (l *ConsoleErrorListener) CompileTimeError(msg *STMessage) { l.print(msg) }

func (l *ConsoleErrorListener) RuntimeError(msg *STMessage) {
	if msg.Kind == internal.ErrKindNoSuchProperty {
		return
	}
	l.print(msg)
}

func (l *ConsoleErrorListener) IOError(msg *STMessage)       { l.print(msg) }
func (l *ConsoleErrorListener) InternalError(msg *STMessage) { l.print(msg) }

// ErrorBuffer is an ErrorListener that collects every message, for
// programmatic inspection (and for tests).
type ErrorBuffer struct {
	mu       sync.Mutex
	Compile  []*STMessage
	Runtime  []*STMessage
	IO       []*STMessage
	Internal []*STMessage
}

func (b *ErrorBuffer) CompileTimeError(msg *STMessage) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.Compile = append(b.Compile, msg)
}

func (b *ErrorBuffer) RuntimeError(msg *STMessage) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.Runtime = append(b.Runtime, msg)
}

func (b *ErrorBuffer) IOError(msg *STMessage) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.IO = append(b.IO, msg)
}

func (b *ErrorBuffer) InternalError(msg *STMessage) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.Internal = append(b.Internal, msg)
}

// All returns every collected message in channel order.
func (b *ErrorBuffer) All() []*STMessage {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]*STMessage, 0, len(b.Compile)+len(b.Runtime)+len(b.IO)+len(b.Internal))
	out = append(out, b.Compile...)
	out = append(out, b.Runtime...)
	out = append(out, b.IO...)
	out = append(out, b.Internal...)
	return out
}

// ErrorManager taxonomizes raw diagnostics from the compiler and the VM
// and dispatches them to the configured listener. It implements
// internal.Listener so the interpreter can report through it without
// importing this package.
type ErrorManager struct {
	listener ErrorListener
	logger   *zap.Logger
}

// NewErrorManager creates an ErrorManager; a nil listener gets the
// console default, a nil logger a no-op logger.
func NewErrorManager(listener ErrorListener, logger *zap.Logger) *ErrorManager {
	if listener == nil {
		listener = NewConsoleErrorListener()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ErrorManager{listener: listener, logger: logger}
}

// Listener returns the currently configured listener.
func (em *ErrorManager) Listener() ErrorListener { return em.listener }

// CompileError reports one compile-time diagnostic; compilation of the
// offending template is abandoned by the caller, other templates
// continue.
func (em *ErrorManager) CompileError(kind string, pos Position, args ...any) {
	msg := &STMessage{Kind: kind, Pos: pos, Args: args}
	em.logger.Debug(LogMsgCompileError, zap.String(LogFieldKind, kind))
	em.listener.CompileTimeError(msg)
}

// RuntimeError implements internal.Listener; run-time errors never
// abort a render.
func (em *ErrorManager) RuntimeError(kind string, pos internal.Position, templateName string, args ...any) {
	msg := &STMessage{Kind: kind, Pos: pos, TemplateName: templateName, Args: args}
	em.listener.RuntimeError(msg)
}

// IOError implements internal.Listener.
func (em *ErrorManager) IOError(kind string, err error) {
	em.listener.IOError(&STMessage{Kind: kind, Cause: err})
}

// InternalError implements internal.Listener.
func (em *ErrorManager) InternalError(kind string, err error) {
	em.listener.InternalError(&STMessage{Kind: kind, Cause: err})
}

// withListener returns a derived manager reporting to a different
// listener, used for per-render listener overrides.
func (em *ErrorManager) withListener(listener ErrorListener) *ErrorManager {
	if listener == nil {
		return em
	}
	return &ErrorManager{listener: listener, logger: em.logger}
}
