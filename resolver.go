package gbnf

import (
	"errors"
	"io"
	"os"
	"path/filepath"

	"github.com/structuredgen/gbnf/ast"
	"github.com/structuredgen/gbnf/grammar"
)

// ErrNotFound is returned by resolvers when no grammar exists with the
// requested name.
var ErrNotFound = errors.New("grammar not found")

// Resolver resolves grammar names into source code or intermediate
// representations. This is how a Compiler loads the grammars it is asked
// to compile.
type Resolver interface {
	FindGrammarByName(string) (SearchResult, error)
}

// SearchResult is the result of resolving a grammar name. Only one of
// the fields need be set. If multiple are set, the compiler prefers them
// in the opposite order listed: it uses a compiled grammar if present
// and only falls back to source if nothing else is available.
type SearchResult struct {
	Source  io.Reader
	AST     *ast.GrammarNode
	Grammar *grammar.Grammar
}

// ResolverFunc is a simple function type that implements Resolver.
type ResolverFunc func(string) (SearchResult, error)

var _ Resolver = ResolverFunc(nil)

func (f ResolverFunc) FindGrammarByName(name string) (SearchResult, error) {
	return f(name)
}

// CompositeResolver tries each of its delegates in order, returning the
// first successful result.
type CompositeResolver []Resolver

var _ Resolver = CompositeResolver(nil)

func (f CompositeResolver) FindGrammarByName(name string) (SearchResult, error) {
	if len(f) == 0 {
		return SearchResult{}, ErrNotFound
	}
	var firstErr error
	for _, res := range f {
		r, err := res.FindGrammarByName(name)
		if err == nil {
			return r, nil
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	return SearchResult{}, firstErr
}

// SourceResolver resolves grammar names to files on disk.
type SourceResolver struct {
	// ImportPaths is the search path. If empty, names are treated as
	// paths as-is.
	ImportPaths []string
	// Accessor opens a path. If nil, the file system is used directly.
	Accessor func(string) (io.ReadCloser, error)
}

var _ Resolver = (*SourceResolver)(nil)

func (r *SourceResolver) FindGrammarByName(name string) (SearchResult, error) {
	open := r.Accessor
	if open == nil {
		open = func(path string) (io.ReadCloser, error) { return os.Open(path) }
	}
	if len(r.ImportPaths) == 0 {
		reader, err := open(name)
		if err != nil {
			return SearchResult{}, err
		}
		return SearchResult{Source: reader}, nil
	}

	var e error
	for _, importPath := range r.ImportPaths {
		reader, err := open(filepath.Join(importPath, name))
		if err != nil {
			if os.IsNotExist(err) {
				e = err
				continue
			}
			return SearchResult{}, err
		}
		return SearchResult{Source: reader}, nil
	}
	return SearchResult{}, e
}
