package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	st4 "github.com/rydnr/stringtemplate4"
)

// validateConfig holds parsed validate command configuration.
type validateConfig struct {
	groupPath string
}

// runValidate loads and force-compiles every template in a group,
// reporting each diagnostic; exit code 3 means the group has errors.
func runValidate(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	cfg, err := parseValidateFlags(args)
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
	group.Load()
	probeDirTemplates(cfg.groupPath, group)

	msgs := listener.All()
	for _, msg := range msgs {
		fmt.Fprintln(stderr, msg.String())
	}
	if len(msgs) > 0 {
		return ExitCodeValidationError
	}

	for _, name := range group.TemplateNames() {
		fmt.Fprintln(stdout, name)
	}
	return ExitCodeSuccess
}

// probeDirTemplates forces a directory group to compile every .st file
// under its root; file groups load everything on Load already.
func probeDirTemplates(path string, group *st4.Group) {
	info, err := os.Stat(path)
	if err != nil || !info.IsDir() {
		return
	}
	_ = filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() || !strings.HasSuffix(d.Name(), st4.TemplateFileExtension) {
			return err
		}
		rel, rerr := filepath.Rel(path, p)
		if rerr != nil {
			return nil
		}
		name := "/" + strings.TrimSuffix(filepath.ToSlash(rel), st4.TemplateFileExtension)
		group.IsDefined(name)
		return nil
	})
}

func parseValidateFlags(args []string) (*validateConfig, error) {
	fs := flag.NewFlagSet(CmdNameValidate, flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	cfg := &validateConfig{}
	fs.StringVar(&cfg.groupPath, FlagGroup, "", "")
	fs.StringVar(&cfg.groupPath, FlagGroupShort, "", "")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if cfg.groupPath == "" {
		// Positional fallback: `st4 validate path`
		if fs.NArg() == 1 {
			cfg.groupPath = fs.Arg(0)
			return cfg, nil
		}
		return nil, errors.New(ErrMsgMissingGroup)
	}
	return cfg, nil
}
