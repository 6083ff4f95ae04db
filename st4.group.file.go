package st4

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/rydnr/stringtemplate4/internal"
)

// FromFile creates a group from one `.stg` file holding multiple
// definitions. The file must exist; its contents are parsed lazily on
// the first lookup.
func FromFile(path string, opts ...GroupOption) (*Group, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, newInternalError(internal.ErrKindCantLoadGroupFile, err)
	}
	g := NewGroup(opts...)
	g.name = path
	g.loadAll = func() error {
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		g.loadGroupSource(string(data), path, filepath.Dir(path), RootPrefix)
		return nil
	}
	return g, nil
}

// Load forces a lazily constructed group to parse its backing source
// now instead of on first lookup.
func (g *Group) Load() {
	g.ensureLoaded("")
}

// importPath resolves one `import "..."` directive relative to the
// importing group file's directory: a `.stg` file, a directory, or a
// bare name with an implied `.stg` suffix. Failures are reported as
// CANT_IMPORT and the import is skipped.
func (g *Group) importPath(baseDir, path string) {
	candidates := []string{path}
	if baseDir != "" {
		candidates = []string{filepath.Join(baseDir, path), path}
	}
	for _, p := range candidates {
		info, err := os.Stat(p)
		if err == nil && info.IsDir() {
			imported, derr := FromDir(p, g.childOptions()...)
			if derr == nil {
				g.ImportGroup(imported)
				return
			}
			continue
		}
		if err == nil && strings.HasSuffix(p, GroupFileExtension) {
			imported, ferr := FromFile(p, g.childOptions()...)
			if ferr == nil {
				g.ImportGroup(imported)
				return
			}
			continue
		}
		if err != nil && !strings.HasSuffix(p, GroupFileExtension) {
			if imported, ferr := FromFile(p+GroupFileExtension, g.childOptions()...); ferr == nil {
				g.ImportGroup(imported)
				return
			}
		}
	}
	g.errMgr.CompileError(internal.ErrKindCantImport, Position{}, path)
}

// childOptions propagates this group's configuration to groups it
// creates for imports.
func (g *Group) childOptions() []GroupOption {
	return []GroupOption{
		WithLogger(g.logger),
		WithErrorListener(g.errMgr.Listener()),
		WithLocale(g.locale),
	}
}
