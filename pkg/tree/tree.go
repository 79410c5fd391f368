// Package tree lists the files and directories below a root and exposes
// them as ordered lists backed by lookup sets.
package tree

import (
	"strings"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
)

// Entry is a regular file found during a scan
type Entry struct {
	// RelativePath is '/'-separated and relative to the tree root
	RelativePath string
	Size         int64
	ModTime      time.Time
}

// ScanError records an entry that could not be read
type ScanError struct {
	RelativePath string
	Err          error
}

func (e ScanError) Error() string {
	return e.RelativePath + ": " + e.Err.Error()
}

func (e ScanError) Unwrap() error {
	return e.Err
}

// Tree is the flat listing of a directory tree at the time of the scan.
// Files, Dirs and Special are in walk (lexical) order.
type Tree struct {
	Root   string
	Files  []Entry
	Dirs   []string
	Errors []ScanError

	// Special lists entries that are neither regular files nor
	// directories. They are never mirrored; in a replica they are removed.
	Special []string

	files   map[string]int
	dirs    mapset.Set[string]
	special mapset.Set[string]
}

// Empty returns a tree with no entries, used for a replica root that does
// not exist yet
func Empty(root string) *Tree {
	return &Tree{
		Root:  root,
		files:   make(map[string]int),
		dirs:    mapset.NewThreadUnsafeSet[string](),
		special: mapset.NewThreadUnsafeSet[string](),
	}
}

func (t *Tree) addFile(e Entry) {
	t.files[e.RelativePath] = len(t.Files)
	t.Files = append(t.Files, e)
}

func (t *Tree) addDir(rel string) {
	t.dirs.Add(rel)
	t.Dirs = append(t.Dirs, rel)
}

func (t *Tree) addSpecial(rel string) {
	t.special.Add(rel)
	t.Special = append(t.Special, rel)
}

// HasFile reports whether rel is a regular file in the tree
func (t *Tree) HasFile(rel string) bool {
	_, ok := t.files[rel]
	return ok
}

// HasDir reports whether rel is a directory in the tree
func (t *Tree) HasDir(rel string) bool {
	return t.dirs.Contains(rel)
}

// HasSpecial reports whether rel is a special entry in the tree
func (t *Tree) HasSpecial(rel string) bool {
	return t.special.Contains(rel)
}

// DirSet returns the directory paths as a set
func (t *Tree) DirSet() mapset.Set[string] {
	return t.dirs
}

// FileSet returns the file paths as a set
func (t *Tree) FileSet() mapset.Set[string] {
	s := mapset.NewThreadUnsafeSetWithSize[string](len(t.Files))
	for _, f := range t.Files {
		s.Add(f.RelativePath)
	}
	return s
}

// Incomplete reports whether rel is, or lies below, an entry the scan
// failed to read. Nothing is known about such paths.
func (t *Tree) Incomplete(rel string) bool {
	for _, e := range t.Errors {
		if e.RelativePath == rel || Within(rel, e.RelativePath) {
			return true
		}
	}
	return false
}

// Len returns the number of files and directories
func (t *Tree) Len() int {
	return len(t.Files) + len(t.Dirs)
}

// Depth returns the number of path segments of rel
func Depth(rel string) int {
	if rel == "" || rel == "." {
		return 0
	}
	return strings.Count(rel, "/") + 1
}

// Within reports whether rel lies strictly below dir
func Within(rel, dir string) bool {
	return strings.HasPrefix(rel, dir+"/")
}
