// Package st4 implements a StringTemplate v4 style, strict
// model/view-separated templating engine: group-namespaced template
// compilation to bytecode, a stack-machine interpreter, auto-indenting
// output, and pluggable ModelAdaptor/AttributeRenderer registries.
package st4

import "github.com/rydnr/stringtemplate4/internal"

// Group-file extension recognized by Group.FromFile / Group.FromDir.
const GroupFileExtension = ".stg"

// Raw template-file extension recognized by Group.FromDir /
// Group.FromRawDir.
const TemplateFileExtension = ".st"

// Manifest file name consulted by Group.FromDir before falling back to
// per-file discovery.
const ManifestFileName = "group.yaml"

// Default locale used when a render call does not specify one.
const DefaultLocale = "en_US"

// StringGroupName is the display name of an in-memory string group.
const StringGroupName = "<string>"

// RootPrefix is the prefix of every template defined at the namespace
// root; directory groups use deeper prefixes like "/sub/".
const RootPrefix = "/"

// DefaultArgSuffix separates a template name from a formal-argument
// name when synthesizing the compiled name of a `{...}` default body.
const DefaultArgSuffix = "_default_"

// Log field/message constants, matching internal's "no magic strings in
// logging calls" convention.
const (
	LogFieldGroup      = "group"
	LogFieldTemplate   = "template"
	LogFieldPath       = "path"
	LogFieldImport     = "import"
	LogFieldKind       = "kind"
	LogMsgGroupLoad    = "group: load start"
	LogMsgGroupLoaded  = "group: load complete"
	LogMsgRender       = "template: render"
	LogMsgCompileError = "group: compile error"
)

// Re-exported delimiter constants, so callers configuring a Group never
// need to import the internal package directly.
const (
	DefaultDelimiterStart = internal.DefaultDelimiterStart
	DefaultDelimiterStop  = internal.DefaultDelimiterStop
)
