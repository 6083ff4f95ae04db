package main

import (
	"errors"
	"flag"
	"fmt"
	"io"

	st4 "github.com/rydnr/stringtemplate4"
)

// renderConfig holds parsed render command configuration.
type renderConfig struct {
	groupPath    string
	templateName string
	dataJSON     string
	dataFilePath string
	outputPath   string
	lineWidth    int
}

func runRender(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	cfg, err := parseRenderFlags(args)
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

	st, ok := group.GetInstanceOf(cfg.templateName)
	if !ok {
		fmt.Fprintf(stderr, FmtErrorWithCause, ErrMsgNoSuchTemplate, errors.New(cfg.templateName))
		return ExitCodeInputError
	}

	data, err := loadData(cfg.dataJSON, cfg.dataFilePath)
	if err != nil {
		fmt.Fprintf(stderr, FmtErrorWithCause, ErrMsgInvalidJSON, err)
		return ExitCodeInputError
	}
	for k, v := range data {
		st.Add(k, v)
	}

	var opts []st4.RenderOption
	if cfg.lineWidth > 0 {
		opts = append(opts, st4.WithLineWidth(cfg.lineWidth))
	}
	result := st.Render(opts...)

	for _, msg := range listener.All() {
		fmt.Fprintln(stderr, msg.String())
	}

	if err := writeOutput(cfg.outputPath, []byte(result), stdout); err != nil {
		fmt.Fprintf(stderr, FmtErrorWithCause, ErrMsgWriteOutputFailed, err)
		return ExitCodeError
	}
	return ExitCodeSuccess
}

func parseRenderFlags(args []string) (*renderConfig, error) {
	fs := flag.NewFlagSet(CmdNameRender, flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	cfg := &renderConfig{}
	fs.StringVar(&cfg.groupPath, FlagGroup, "", "")
	fs.StringVar(&cfg.groupPath, FlagGroupShort, "", "")
	fs.StringVar(&cfg.templateName, FlagTemplate, "", "")
	fs.StringVar(&cfg.templateName, FlagTemplateShort, "", "")
	fs.StringVar(&cfg.dataJSON, FlagData, "", "")
	fs.StringVar(&cfg.dataJSON, FlagDataShort, "", "")
	fs.StringVar(&cfg.dataFilePath, FlagDataFile, "", "")
	fs.StringVar(&cfg.dataFilePath, FlagDataFileShort, "", "")
	fs.StringVar(&cfg.outputPath, FlagOutput, FlagDefaultOutput, "")
	fs.StringVar(&cfg.outputPath, FlagOutputShort, FlagDefaultOutput, "")
	fs.IntVar(&cfg.lineWidth, FlagWidth, 0, "")
	fs.IntVar(&cfg.lineWidth, FlagWidthShort, 0, "")

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
