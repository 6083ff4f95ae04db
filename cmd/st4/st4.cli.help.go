package main

import (
	"fmt"
	"io"
)

const helpText = `st4 - StringTemplate v4 engine

Usage:
  st4 <command> [flags]

Commands:
  render    Render one template from a group with JSON attributes
  validate  Compile every template in a group and report diagnostics
  debug     Print the disassembled bytecode of one template
  version   Print the version
  help      Show this help

Render flags:
  -group, -g     Group file (.stg) or template directory (required)
  -template, -t  Template name to render (required)
  -data, -d      Attributes as inline JSON object
  -data-file, -f Attributes as a JSON file
  -output, -o    Output file, "-" for stdout (default "-")
  -width, -w     Wrap output at this line width

Validate flags:
  -group, -g     Group file or directory (required)

Debug flags:
  -group, -g     Group file or directory (required)
  -template, -t  Template name to disassemble (required)
`

func runHelp(args []string, stdout io.Writer) int {
	if len(args) > 0 {
		fmt.Fprintf(stdout, "unknown command: %s\n\n", args[0])
	}
	fmt.Fprint(stdout, helpText)
	if len(args) > 0 {
		return ExitCodeUsageError
	}
	return ExitCodeSuccess
}
