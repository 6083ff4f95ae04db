package st4

import (
	"os"

	"github.com/rydnr/stringtemplate4/internal"
)

// FromRawDir is FromDir except each `.st` file's entire contents are
// the template body: no header line, no declared formal arguments.
// Instances therefore accept any attribute name, cloning their
// CompiledST on the first Add.
func FromRawDir(root string, opts ...GroupOption) (*Group, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, newInternalError(internal.ErrKindCantLoadGroupFile, err)
	}
	if !info.IsDir() {
		return nil, newInternalError(internal.ErrKindCantLoadGroupFile, &internal.ParseError{Message: root + " is not a directory"})
	}
	g := NewGroup(opts...)
	g.name = root
	if err := g.applyManifest(root); err != nil {
		return nil, err
	}
	g.loadOne = func(name string) { g.loadDirTemplate(root, name, true) }
	return g, nil
}
