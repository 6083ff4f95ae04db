package main

import (
	"errors"
	"flag"
	"fmt"
	"io"

	st4 "github.com/rydnr/stringtemplate4"
)

// debugConfig holds parsed debug command configuration.
type debugConfig struct {
	groupPath    string
	templateName string
}

// runDebug prints the disassembled bytecode of one compiled template,
// one line per instruction.
func runDebug(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	cfg, err := parseDebugFlags(args)
	if err != nil {
		fmt.Fprintf(stderr, FmtError, err)
		return ExitCodeUsageError
	}

	listener := &st4.ErrorBuffer{}
	group, err := loadGroup(cfg.groupPath, listener)
	if err != nil {
		fmt.Fprintf(stderr, FmtErrorWithCause, ErrMsgLoadGroupFailed, err)
		return ExitCodeInputError
	}

	dump, ok := group.Disassemble(cfg.templateName)
	if !ok {
		fmt.Fprintf(stderr, FmtErrorWithCause, ErrMsgNoSuchTemplate, errors.New(cfg.templateName))
		return ExitCodeInputError
	}
	fmt.Fprint(stdout, dump)
	return ExitCodeSuccess
}

func parseDebugFlags(args []string) (*debugConfig, error) {
	fs := flag.NewFlagSet(CmdNameDebug, flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	cfg := &debugConfig{}
	fs.StringVar(&cfg.groupPath, FlagGroup, "", "")
	fs.StringVar(&cfg.groupPath, FlagGroupShort, "", "")
	fs.StringVar(&cfg.templateName, FlagTemplate, "", "")
	fs.StringVar(&cfg.templateName, FlagTemplateShort, "", "")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if cfg.groupPath == "" {
		return nil, errors.New(ErrMsgMissingGroup)
	}
	if cfg.templateName == "" {
		return nil, errors.New(ErrMsgMissingTemplate)
	}
	return cfg, nil
}
