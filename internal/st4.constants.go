// Package internal implements the StringTemplate compiler and bytecode
// interpreter: lexer, parser/codegen, compiled-template model, stack VM,
// and the auto-indenting output writer. It is not part of the public API;
// the root package (github.com/rydnr/stringtemplate4) wraps it.
package internal

// Default expression delimiters.
const (
	DefaultDelimiterStart = "<"
	DefaultDelimiterStop  = ">"
)

// Alternate delimiter pair supported out of the box.
const (
	AltDelimiterStart = "$"
	AltDelimiterStop  = "$"
)

// Reserved delimiter characters that may never be configured as custom
// start/stop delimiters because they collide with template body syntax.
const ReservedDelimiterChars = "\\\t\n\r {}\"'"

// Predefined local names bound by map/rot-map/zip-map iteration.
const (
	LocalNameIt  = "it"
	LocalNameI   = "i"
	LocalNameI0  = "i0"
	LocalNameIx  = "ix" // reserved: per-iteration absolute index across zip inputs, unused today
)

// Option vector slots, indexed by OPTIONS/STORE_OPTION/WRITE_OPT.
type OptionKind int

const (
	OptionAnchor OptionKind = iota
	OptionFormat
	OptionNull
	OptionSeparator
	OptionWrap
	numOptions
)

// OptionNames gives the source-level option keyword for each OptionKind,
// in declaration order; used by the parser to validate `name=value` pairs
// and by diagnostics to name a bad option.
var OptionNames = [numOptions]string{
	OptionAnchor:    "anchor",
	OptionFormat:    "format",
	OptionNull:      "null",
	OptionSeparator: "separator",
	OptionWrap:      "wrap",
}

// Region definition types, per CompiledST.RegionDefType.
type RegionDefType int

const (
	RegionNone RegionDefType = iota
	RegionImplicit
	RegionEmbedded
	RegionExplicit
)

// Region/sub-template naming conventions.
const (
	RegionNamePrefix      = "region__"
	AnonSubtemplatePrefix = "_sub"
)

// Built-in function names recognized by the parser.
const (
	FuncNameFirst   = "first"
	FuncNameLast    = "last"
	FuncNameRest    = "rest"
	FuncNameTrunc   = "trunc"
	FuncNameStrip   = "strip"
	FuncNameTrim    = "trim"
	FuncNameLength  = "length"
	FuncNameStrlen  = "strlen"
	FuncNameReverse = "reverse"
)

// Log field/message constants; logging calls never use ad hoc strings.
const (
	LogFieldSource   = "source_bytes"
	LogFieldTokens   = "tokens"
	LogFieldNodes    = "nodes"
	LogFieldName     = "name"
	LogFieldAddr     = "addr"
	LogFieldOpcode   = "opcode"
	LogFieldDepth    = "depth"
	LogMsgLexerStart = "lexer: tokenize start"
	LogMsgLexerEnd   = "lexer: tokenize end"
	LogMsgParseStart = "parser: compile start"
	LogMsgParseEnd   = "parser: compile end"
	LogMsgExecStart  = "interpreter: exec start"
	LogMsgExecEnd    = "interpreter: exec end"
)

// Default VM limits.
const (
	DefaultOperandStackSize = 32
	DefaultCallStackDepth   = 200
)

// Error kinds, a closed taxonomy. These are carried as
// plain strings across the internal/root boundary (the Listener
// interface) so internal never needs to import the root package's
// cuserr-backed error constructors.
const (
	ErrKindSyntaxError                    = "SYNTAX_ERROR"
	ErrKindLexerError                     = "LEXER_ERROR"
	ErrKindTemplateRedefinition           = "TEMPLATE_REDEFINITION"
	ErrKindEmbeddedRegionRedefinition     = "EMBEDDED_REGION_REDEFINITION"
	ErrKindRegionRedefinition             = "REGION_REDEFINITION"
	ErrKindMapRedefinition                = "MAP_REDEFINITION"
	ErrKindParameterRedefinition          = "PARAMETER_REDEFINITION"
	ErrKindAliasTargetUndefined           = "ALIAS_TARGET_UNDEFINED"
	ErrKindTemplateRedefinitionAsMap      = "TEMPLATE_REDEFINITION_AS_MAP"
	ErrKindNoDefaultValue                 = "NO_DEFAULT_VALUE"
	ErrKindNoSuchFunction                 = "NO_SUCH_FUNCTION"
	ErrKindNoSuchRegion                   = "NO_SUCH_REGION"
	ErrKindNoSuchOption                   = "NO_SUCH_OPTION"
	ErrKindInvalidTemplateName            = "INVALID_TEMPLATE_NAME"
	ErrKindAnonArgumentMismatch           = "ANON_ARGUMENT_MISMATCH"
	ErrKindRequiredParameterAfterOptional = "REQUIRED_PARAMETER_AFTER_OPTIONAL"
	ErrKindUnsupportedDelimiter           = "UNSUPPORTED_DELIMITER"

	ErrKindNoSuchTemplate                = "NO_SUCH_TEMPLATE"
	ErrKindNoImportedTemplate            = "NO_IMPORTED_TEMPLATE"
	ErrKindNoSuchAttribute               = "NO_SUCH_ATTRIBUTE"
	ErrKindNoSuchAttributePassThrough    = "NO_SUCH_ATTRIBUTE_PASS_THROUGH"
	ErrKindRefToImplicitAttrOutOfScope   = "REF_TO_IMPLICIT_ATTRIBUTE_OUT_OF_SCOPE"
	ErrKindMissingFormalArguments         = "MISSING_FORMAL_ARGUMENTS"
	ErrKindNoSuchProperty                 = "NO_SUCH_PROPERTY"
	ErrKindMapArgumentCountMismatch       = "MAP_ARGUMENT_COUNT_MISMATCH"
	ErrKindZipMapArgumentCountMismatch    = "ZIP_MAP_ARGUMENT_COUNT_MISMATCH"
	ErrKindArgumentCountMismatch          = "ARGUMENT_COUNT_MISMATCH"
	ErrKindExpectingString                = "EXPECTING_STRING"
	ErrKindWriterCtorIssue                = "WRITER_CTOR_ISSUE"
	ErrKindCantImport                     = "CANT_IMPORT"

	ErrKindInternalError    = "INTERNAL_ERROR"
	ErrKindWriteIOError     = "WRITE_IO_ERROR"
	ErrKindCantLoadGroupFile = "CANT_LOAD_GROUP_FILE"
)
