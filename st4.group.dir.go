package st4

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/rydnr/stringtemplate4/internal"
)

// FromDir creates a group from a directory tree: each `.st` file is
// one template definition (`name(args) ::= ...`, name matching the
// file), loaded lazily on first lookup; a `.stg` file at the same
// level takes precedence for the names it defines. An optional
// group.yaml manifest declares delimiters and imports up front.
func FromDir(root string, opts ...GroupOption) (*Group, error) {
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
	g.loadOne = func(name string) { g.loadDirTemplate(root, name, false) }
	return g, nil
}

// loadDirTemplate attempts to satisfy one template-name miss from
// disk: same-level `.stg` group files first (they replace per-file
// lookups for names they define), then the matching `.st` file.
// Called with loadMu held; a remaining miss is cached by the caller.
func (g *Group) loadDirTemplate(root, name string, raw bool) {
	rel := strings.TrimPrefix(AbsoluteName(name), "/")
	subDir := filepath.Dir(rel)
	base := filepath.Base(rel)
	dirPath := root
	prefix := RootPrefix
	if subDir != "." {
		dirPath = filepath.Join(root, subDir)
		prefix = "/" + subDir + "/"
	}

	if !raw {
		entries, err := os.ReadDir(dirPath)
		if err != nil {
			return
		}
		for _, e := range entries {
			if e.IsDir() || !strings.HasSuffix(e.Name(), GroupFileExtension) {
				continue
			}
			full := filepath.Join(dirPath, e.Name())
			if g.loadedFiles[full] {
				continue
			}
			g.loadedFiles[full] = true
			data, rerr := os.ReadFile(full)
			if rerr != nil {
				g.errMgr.InternalError(internal.ErrKindCantLoadGroupFile, rerr)
				continue
			}
			g.loadGroupSource(string(data), full, dirPath, prefix)
		}
		if g.isDefinedLocal(AbsoluteName(name)) {
			return
		}
	}

	stPath := filepath.Join(dirPath, base+TemplateFileExtension)
	if g.loadedFiles[stPath] {
		return
	}
	data, err := os.ReadFile(stPath)
	if err != nil {
		return
	}
	g.loadedFiles[stPath] = true
	if raw {
		_ = g.defineTemplate(base, nil, false, string(data), Position{}, prefix)
		return
	}
	g.loadTemplateFile(string(data), stPath, base, prefix)
}

// loadTemplateFile parses one `.st` file as a single template
// definition whose name must match the file name.
func (g *Group) loadTemplateFile(src, path, base, prefix string) {
	gf, err := internal.ParseGroupFile(src, g.logger)
	if err != nil {
		g.errMgr.CompileError(internal.ErrKindSyntaxError, positionOf(err), err)
		return
	}
	for _, def := range gf.Defs {
		if def.Kind != internal.DefTemplate {
			continue
		}
		if def.Name != base {
			g.errMgr.CompileError(internal.ErrKindInvalidTemplateName, def.Pos, def.Name)
			continue
		}
		formals, ok := g.buildFormalArgs(def)
		if !ok {
			continue
		}
		_ = g.defineTemplate(def.Name, formals, def.HasFormalArgs, def.Body, def.Pos, prefix)
	}
}

// isDefinedLocal reports whether name is defined in this group's own
// table (no imports, no sentinel).
func (g *Group) isDefinedLocal(name string) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	c, ok := g.templates[name]
	return ok && c != notFoundSentinel
}
