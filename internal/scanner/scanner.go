// Package scanner discovers operation declarations in Python source
// trees by static analysis. It parses each file with Tree-sitter and
// extracts the literal keyword arguments of recognized declaration
// decorators; no scanned code is ever executed or evaluated.
package scanner

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"opsreg/internal/logging"
	"opsreg/internal/ops"

	"golang.org/x/sync/errgroup"
)

// defaultIgnoreDirs are directory names pruned from every walk:
// dependency caches, virtual environments and VCS metadata.
var defaultIgnoreDirs = []string{
	"node_modules",
	"venv",
	".venv",
	"__pycache__",
	".git",
}

// defaultMarkers are the recognized declaration decorator names.
// Detection is purely syntactic, by identifier at the call site; a
// marker aliased under another name is not recognized.
var defaultMarkers = []string{"op", "vop"}

// maxParallelFiles bounds concurrent per-file parses.
const maxParallelFiles = 8

// Diagnostic reports a per-file or per-candidate problem found during a
// scan. Diagnostics never abort the scan; the affected file or candidate
// is skipped and scanning continues.
type Diagnostic struct {
	File      string
	Candidate string // decorated function or declared op name, when known
	Field     string // offending field path, for validation failures
	Message   string
}

func (d Diagnostic) String() string {
	var b strings.Builder
	b.WriteString(d.File)
	if d.Candidate != "" {
		fmt.Fprintf(&b, " [%s]", d.Candidate)
	}
	if d.Field != "" {
		fmt.Fprintf(&b, " %s", d.Field)
	}
	fmt.Fprintf(&b, ": %s", d.Message)
	return b.String()
}

// Result holds the validated records a scan produced, with the parallel
// diagnostics sequence.
type Result struct {
	Records     []ops.Record
	Diagnostics []Diagnostic
}

// Scanner walks a directory tree and extracts operation declarations.
// It carries no state between runs: scanning unchanged input twice
// yields the same record sequence.
type Scanner struct {
	ignoreDirs map[string]bool
	markers    map[string]bool
}

// Option configures a Scanner.
type Option func(*Scanner)

// WithIgnoreDirs appends directory names to the default ignore set.
func WithIgnoreDirs(names ...string) Option {
	return func(s *Scanner) {
		for _, n := range names {
			if n != "" {
				s.ignoreDirs[n] = true
			}
		}
	}
}

// WithMarkers appends decorator names to the recognized marker set.
// Synonyms can be added here without touching the scan logic.
func WithMarkers(names ...string) Option {
	return func(s *Scanner) {
		for _, n := range names {
			if n != "" {
				s.markers[n] = true
			}
		}
	}
}

// New creates a Scanner with the default ignore set and marker table.
func New(opts ...Option) *Scanner {
	s := &Scanner{
		ignoreDirs: make(map[string]bool),
		markers:    make(map[string]bool),
	}
	for _, n := range defaultIgnoreDirs {
		s.ignoreDirs[n] = true
	}
	for _, n := range defaultMarkers {
		s.markers[n] = true
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Scan walks root, parses every declaration source file and returns the
// validated records with per-item diagnostics. Files are parsed in
// parallel; there is no shared mutable state between them, and the
// output is ordered by file path so repeated scans are deterministic.
func (s *Scanner) Scan(ctx context.Context, root string) (*Result, error) {
	start := time.Now()

	files, err := s.findSourceFiles(root)
	if err != nil {
		return nil, fmt.Errorf("failed to walk %s: %w", root, err)
	}
	logging.Scanner("Scanning %d declaration files under %s", len(files), root)

	perFileRecords := make([][]ops.Record, len(files))
	perFileDiags := make([][]Diagnostic, len(files))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxParallelFiles)
	for i, path := range files {
		i, path := i, path
		g.Go(func() error {
			// One extractor per file: a tree-sitter parser is not
			// safe for concurrent use.
			ex := newExtractor(s.markers)
			perFileRecords[i], perFileDiags[i] = ex.extractFile(gctx, path)
			return gctx.Err()
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	result := &Result{}
	for i := range files {
		result.Records = append(result.Records, perFileRecords[i]...)
		result.Diagnostics = append(result.Diagnostics, perFileDiags[i]...)
	}

	logging.Scanner("Scan of %s found %d ops, %d diagnostics in %v",
		root, len(result.Records), len(result.Diagnostics), time.Since(start))
	return result, nil
}

// findSourceFiles enumerates declaration source files under root,
// pruning ignored directories. Paths are sorted for deterministic output.
func (s *Scanner) findSourceFiles(root string) ([]string, error) {
	var files []string
	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			if path != root && s.ignoreDirs[info.Name()] {
				logging.ScannerDebug("Pruning ignored directory: %s", path)
				return filepath.SkipDir
			}
			return nil
		}
		if isDeclarationFile(path) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(files)
	return files, nil
}

// isDeclarationFile reports whether the path is a Python source file.
func isDeclarationFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".py", ".pyw":
		return true
	}
	return false
}
