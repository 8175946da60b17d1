package scanner

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/Michaol/RustRAG/internal/gitignore"
)

// gitignoreCacheSize bounds the number of parsed .gitignore files kept
// across scans.
const gitignoreCacheSize = 1000

// noMatcher marks a directory without a .gitignore in the cache.
var noMatcher = gitignore.New()

// Scanner discovers indexable files. It caches parsed .gitignore files
// by directory, so one Scanner can serve repeated scans of a tree.
type Scanner struct {
	gitignoreCache *lru.Cache[string, *gitignore.Matcher]
}

// New creates a Scanner.
func New() (*Scanner, error) {
	cache, err := lru.New[string, *gitignore.Matcher](gitignoreCacheSize)
	if err != nil {
		return nil, fmt.Errorf("create gitignore cache: %w", err)
	}
	return &Scanner{gitignoreCache: cache}, nil
}

// Scan walks opts.Root in lexical order and streams eligible regular
// files. The channel is closed when the walk ends; a walk error is sent
// as the last Result.
func (s *Scanner) Scan(ctx context.Context, opts Options) (<-chan Result, error) {
	root := opts.Root
	if root == "" {
		root = "."
	}
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("stat root directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("root path is not a directory: %s", root)
	}

	w := s.newWalk(root, opts)
	results := make(chan Result, 64)
	go func() {
		defer close(results)
		err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			if err != nil {
				slog.Debug("scan_skip_unreadable", slog.String("path", path), slog.String("error", err.Error()))
				if d != nil && d.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}

			fi, skipDir := w.visit(path, d)
			if skipDir {
				return filepath.SkipDir
			}
			if fi == nil {
				return nil
			}
			select {
			case results <- Result{File: fi}:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		})
		if err != nil && !errors.Is(err, context.Canceled) {
			select {
			case results <- Result{Error: err}:
			case <-ctx.Done():
			}
		}
	}()
	return results, nil
}

// Collect runs Scan and gathers every file.
func (s *Scanner) Collect(ctx context.Context, opts Options) ([]FileInfo, error) {
	ch, err := s.Scan(ctx, opts)
	if err != nil {
		return nil, err
	}
	var files []FileInfo
	for r := range ch {
		if r.Error != nil {
			return files, r.Error
		}
		files = append(files, *r.File)
	}
	return files, ctx.Err()
}

// Eligible reports whether relPath, relative to opts.Root, would be
// yielded by Scan, without touching the file. Used by the watcher.
func (s *Scanner) Eligible(opts Options, relPath string) bool {
	root := opts.Root
	if root == "" {
		root = "."
	}
	w := s.newWalk(root, opts)
	rel := filepath.ToSlash(relPath)
	if !w.extensions[Ext(rel)] || w.excluded(rel, false) {
		return false
	}
	return !w.ancestorExcluded(rel)
}

// EligibleDir reports whether Scan would descend into the directory
// relPath.
func (s *Scanner) EligibleDir(opts Options, relPath string) bool {
	root := opts.Root
	if root == "" {
		root = "."
	}
	w := s.newWalk(root, opts)
	rel := filepath.ToSlash(relPath)
	if rel == "" || rel == "." {
		return true
	}
	if path.Base(rel) == ".git" || w.excluded(rel, true) {
		return false
	}
	return !w.ancestorExcluded(rel)
}

// InvalidateGitignoreCache drops parsed .gitignore files, so the next
// scan rereads them.
func (s *Scanner) InvalidateGitignoreCache() {
	s.gitignoreCache.Purge()
}

type walk struct {
	s          *Scanner
	root       string
	opts       Options
	extensions map[string]bool
	exclude    *gitignore.Matcher
}

func (s *Scanner) newWalk(root string, opts Options) *walk {
	exts := opts.Extensions
	if len(exts) == 0 {
		exts = DefaultExtensions
	}
	set := make(map[string]bool, len(exts))
	for _, e := range exts {
		set[strings.ToLower(strings.TrimPrefix(e, "."))] = true
	}
	return &walk{
		s:          s,
		root:       root,
		opts:       opts,
		extensions: set,
		exclude:    gitignore.New(opts.Exclude...),
	}
}

// visit returns the FileInfo for an eligible file, or skipDir for a
// directory that must not be entered.
func (w *walk) visit(path string, d fs.DirEntry) (fi *FileInfo, skipDir bool) {
	rel, err := filepath.Rel(w.root, path)
	if err != nil || rel == "." {
		return nil, false
	}
	rel = filepath.ToSlash(rel)

	if d.IsDir() {
		return nil, d.Name() == ".git" || w.excluded(rel, true)
	}
	if !d.Type().IsRegular() {
		return nil, false
	}

	ext := Ext(rel)
	if !w.extensions[ext] || w.excluded(rel, false) {
		return nil, false
	}

	info, err := d.Info()
	if err != nil {
		return nil, false
	}
	if w.opts.MaxFileSize > 0 && info.Size() > w.opts.MaxFileSize {
		slog.Debug("scan_skip_large", slog.String("path", rel), slog.Int64("size", info.Size()))
		return nil, false
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	return &FileInfo{
		Path:    path,
		RelPath: rel,
		AbsPath: abs,
		Size:    info.Size(),
		ModTime: info.ModTime(),
		Ext:     ext,
		Kind:    KindOf(ext),
	}, false
}

// ancestorExcluded reports whether any directory above rel is skipped.
func (w *walk) ancestorExcluded(rel string) bool {
	parts := strings.Split(rel, "/")
	for i := 1; i < len(parts); i++ {
		if parts[i-1] == ".git" || w.excluded(strings.Join(parts[:i], "/"), true) {
			return true
		}
	}
	return false
}

func (w *walk) excluded(rel string, isDir bool) bool {
	if w.exclude.Match(rel, isDir) {
		return true
	}
	return w.opts.RespectGitignore && w.gitignored(rel, isDir)
}

// gitignored checks rel against the .gitignore of the root and of every
// directory above it.
func (w *walk) gitignored(rel string, isDir bool) bool {
	dir := ""
	parts := strings.Split(rel, "/")
	for i := 0; i < len(parts); i++ {
		if m := w.matcher(dir); m != nil && m.Match(rel, isDir) {
			return true
		}
		if i == len(parts)-1 {
			break
		}
		if dir == "" {
			dir = parts[i]
		} else {
			dir += "/" + parts[i]
		}
	}
	return false
}

func (w *walk) matcher(relDir string) *gitignore.Matcher {
	absDir := filepath.Join(w.root, filepath.FromSlash(relDir))
	if a, err := filepath.Abs(absDir); err == nil {
		absDir = a
	}
	// Patterns are compiled relative to the walk root, so the key
	// carries both.
	key := absDir + "\x00" + relDir
	if m, ok := w.s.gitignoreCache.Get(key); ok {
		if m == noMatcher {
			return nil
		}
		return m
	}

	m := gitignore.New()
	if err := m.AddFromFile(filepath.Join(absDir, ".gitignore"), relDir); err != nil {
		w.s.gitignoreCache.Add(key, noMatcher)
		return nil
	}
	w.s.gitignoreCache.Add(key, m)
	return m
}
