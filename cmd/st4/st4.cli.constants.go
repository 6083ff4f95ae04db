package main

// Command names.
const (
	CmdNameRender   = "render"
	CmdNameValidate = "validate"
	CmdNameDebug    = "debug"
	CmdNameVersion  = "version"
	CmdNameHelp     = "help"
)

// Flag names - long form.
const (
	FlagGroup    = "group"
	FlagTemplate = "template"
	FlagData     = "data"
	FlagDataFile = "data-file"
	FlagOutput   = "output"
	FlagWidth    = "width"
)

// Flag names - short form.
const (
	FlagGroupShort    = "g"
	FlagTemplateShort = "t"
	FlagDataShort     = "d"
	FlagDataFileShort = "f"
	FlagOutputShort   = "o"
	FlagWidthShort    = "w"
)

// Flag default values.
const (
	FlagDefaultOutput = "-" // stdout
)

// Exit codes.
const (
	ExitCodeSuccess         = 0
	ExitCodeError           = 1
	ExitCodeUsageError      = 2
	ExitCodeValidationError = 3
	ExitCodeInputError      = 4
)

// Error messages.
const (
	ErrMsgMissingGroup      = "missing required -group (file or directory)"
	ErrMsgMissingTemplate   = "missing required -template name"
	ErrMsgLoadGroupFailed   = "failed to load group"
	ErrMsgNoSuchTemplate    = "no such template"
	ErrMsgInvalidJSON       = "invalid attribute JSON"
	ErrMsgReadFileFailed    = "failed to read file"
	ErrMsgWriteOutputFailed = "failed to write output"
)

// Output formats.
const (
	FmtErrorWithCause = "error: %s: %v\n"
	FmtError          = "error: %s\n"
)
