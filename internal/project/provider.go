// Package project is the filesystem-backed file-and-metadata provider: it
// lists a project's C# scripts and reads their text.
package project

// file: internal/project/provider.go

import (
	"context"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/cockroachdb/errors"
	"github.com/dustin/go-humanize"

	"github.com/dkoosis/unitybridge/internal/logging"
)

// DefaultScriptsDir is the folder scanned for scripts, relative to the root.
const DefaultScriptsDir = "Assets"

const scriptExt = ".cs"

// ScriptFile describes one script. Path is relative to the project root and
// uses forward slashes, e.g. "Assets/Player/PlayerController.cs".
type ScriptFile struct {
	Name string `json:"name"`
	Path string `json:"path"`
	Size int64  `json:"size"`
}

// Provider is the file-and-metadata collaborator.
type Provider interface {
	// ListScripts returns every script sorted by path.
	ListScripts(ctx context.Context) ([]ScriptFile, error)
	// ReadScript returns the exact text of a listed script.
	ReadScript(ctx context.Context, relPath string) (string, error)
	// Name is the project's display name.
	Name() string
	// Root is the absolute project directory.
	Root() string
}

// FileProvider implements Provider on the local filesystem.
type FileProvider struct {
	root       string
	scriptsDir string
	logger     logging.Logger
}

// NewFileProvider checks that root exists and returns a provider for it.
// scriptsDir defaults to DefaultScriptsDir.
func NewFileProvider(root, scriptsDir string, logger logging.Logger) (*FileProvider, error) {
	if logger == nil {
		logger = logging.GetNoopLogger()
	}
	if scriptsDir == "" {
		scriptsDir = DefaultScriptsDir
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to resolve project root '%s'", root)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, errors.Wrapf(err, "project root '%s' is not accessible", abs)
	}
	if !info.IsDir() {
		return nil, errors.Newf("project root '%s' is not a directory", abs)
	}
	return &FileProvider{
		root:       abs,
		scriptsDir: filepath.Clean(scriptsDir),
		logger:     logger.WithField("component", "file_provider"),
	}, nil
}

// Name returns the base name of the project root.
func (p *FileProvider) Name() string { return filepath.Base(p.root) }

// Root returns the absolute project root.
func (p *FileProvider) Root() string { return p.root }

// ListScripts walks the scripts folder. Hidden folders and folders ending in
// '~' are skipped, like the editor's asset database does. A missing scripts
// folder yields an empty list.
func (p *FileProvider) ListScripts(ctx context.Context) ([]ScriptFile, error) {
	base := filepath.Join(p.root, p.scriptsDir)
	var scripts []ScriptFile
	var total int64

	err := filepath.WalkDir(base, func(full string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			if full == base && errors.Is(walkErr, fs.ErrNotExist) {
				return fs.SkipAll
			}
			return walkErr
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		name := d.Name()
		if d.IsDir() {
			if full != base && (strings.HasPrefix(name, ".") || strings.HasSuffix(name, "~")) {
				return fs.SkipDir
			}
			return nil
		}
		if !strings.EqualFold(filepath.Ext(name), scriptExt) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(p.root, full)
		if err != nil {
			return err
		}
		scripts = append(scripts, ScriptFile{
			Name: strings.TrimSuffix(name, filepath.Ext(name)),
			Path: filepath.ToSlash(rel),
			Size: info.Size(),
		})
		total += info.Size()
		return nil
	})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to scan scripts under '%s'", base)
	}

	sort.Slice(scripts, func(i, j int) bool { return scripts[i].Path < scripts[j].Path })
	p.logger.Debug("Scanned scripts.", "count", len(scripts), "totalSize", humanize.Bytes(uint64(total)))
	return scripts, nil
}

// ReadScript reads a script by its project-relative path. Paths escaping the
// project root are rejected.
func (p *FileProvider) ReadScript(ctx context.Context, relPath string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	clean := path.Clean("/" + filepath.ToSlash(relPath))
	full := filepath.Join(p.root, filepath.FromSlash(clean))
	data, err := os.ReadFile(full)
	if err != nil {
		return "", errors.Wrapf(err, "failed to read script '%s'", relPath)
	}
	return string(data), nil
}

// MatchPattern reports whether a script path passes the search filter. An
// empty pattern matches everything. Patterns containing glob characters are
// matched against the full path and the file name (doublestar syntax, so
// "**/Player*.cs" works); any other pattern is a case-sensitive substring
// of the path.
func MatchPattern(pattern, scriptPath string) bool {
	if pattern == "" {
		return true
	}
	if !strings.ContainsAny(pattern, "*?[{") {
		return strings.Contains(scriptPath, pattern)
	}
	if ok, err := doublestar.Match(pattern, scriptPath); err == nil && ok {
		return true
	}
	ok, err := doublestar.Match(pattern, path.Base(scriptPath))
	return err == nil && ok
}
