package main

import (
	"encoding/json"
	"io"
	"os"

	st4 "github.com/rydnr/stringtemplate4"
)

// loadGroup opens path as a directory group or a `.stg` file group.
func loadGroup(path string, listener st4.ErrorListener) (*st4.Group, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return st4.FromDir(path, st4.WithErrorListener(listener))
	}
	return st4.FromFile(path, st4.WithErrorListener(listener))
}

// loadData parses attribute values from an inline JSON string or a
// JSON file; both empty yields no attributes.
func loadData(jsonStr, filePath string) (map[string]any, error) {
	var raw []byte
	switch {
	case filePath != "":
		data, err := os.ReadFile(filePath)
		if err != nil {
			return nil, err
		}
		raw = data
	case jsonStr != "":
		raw = []byte(jsonStr)
	default:
		return nil, nil
	}
	var data map[string]any
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, err
	}
	return data, nil
}

// writeOutput writes result to a file, or to stdout when path is "-".
func writeOutput(path string, result []byte, stdout io.Writer) error {
	if path == "" || path == FlagDefaultOutput {
		_, err := stdout.Write(result)
		return err
	}
	return os.WriteFile(path, result, 0o644)
}
