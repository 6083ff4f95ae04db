package st4

import (
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/rydnr/stringtemplate4/internal"
)

// groupManifest is the optional group.yaml at the root of a directory
// group, declaring delimiters, imports, and locale up front instead of
// inferring them from `.stg` headers alone.
type groupManifest struct {
	Delimiters struct {
		Start string `yaml:"start"`
		Stop  string `yaml:"stop"`
	} `yaml:"delimiters"`
	Imports []string `yaml:"imports"`
	Locale  string   `yaml:"locale"`
}

// applyManifest reads and applies root/group.yaml if present. A
// malformed manifest fails group construction; a missing one is
// simply skipped.
func (g *Group) applyManifest(root string) error {
	path := filepath.Join(root, ManifestFileName)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return newInternalError(internal.ErrKindCantLoadGroupFile, err)
	}
	var m groupManifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return newInternalError(internal.ErrKindCantLoadGroupFile, err)
	}
	if m.Delimiters.Start != "" || m.Delimiters.Stop != "" {
		if verr := internal.ValidateDelimiters(m.Delimiters.Start, m.Delimiters.Stop); verr != nil {
			g.errMgr.CompileError(internal.ErrKindUnsupportedDelimiter, Position{}, m.Delimiters.Start+m.Delimiters.Stop)
		} else {
			g.delimStart = m.Delimiters.Start
			g.delimStop = m.Delimiters.Stop
		}
	}
	if m.Locale != "" {
		g.locale = m.Locale
	}
	for _, imp := range m.Imports {
		g.importPath(root, imp)
	}
	return nil
}
