package gbnf

import (
	"context"
	"fmt"
	"io"
	"runtime"
	"sync"

	"golang.org/x/sync/semaphore"

	"github.com/structuredgen/gbnf/grammar"
	"github.com/structuredgen/gbnf/parser"
	"github.com/structuredgen/gbnf/reporter"
)

// DefaultRootRuleName is the start rule used when none is configured.
const DefaultRootRuleName = "root"

// CompileSource compiles a single grammar from in-memory source. The
// filename is only used in error messages. rootRule names the start
// rule; empty means DefaultRootRuleName.
func CompileSource(filename string, src []byte, rootRule string) (*grammar.Grammar, error) {
	return compileSource(filename, src, rootRule, nil)
}

func compileSource(filename string, src []byte, rootRule string, rep reporter.Reporter) (*grammar.Grammar, error) {
	if rootRule == "" {
		rootRule = DefaultRootRuleName
	}
	handler := reporter.NewHandler(rep)
	file, err := parser.Parse(filename, src, handler)
	if err != nil {
		return nil, err
	}
	return grammar.FromAST(file, rootRule, handler)
}

// Compiler handles compilation tasks, turning named grammar sources into
// compiled grammars. Repeated names are compiled once; distinct names
// are compiled in parallel.
type Compiler struct {
	// Resolves grammar names into source code or intermediate
	// representations. This field is the only required field.
	Resolver Resolver
	// The maximum parallelism to use when compiling. If unspecified or
	// set to a non-positive value, then min(runtime.NumCPU(),
	// runtime.GOMAXPROCS(-1)) will be used.
	MaxParallelism int
	// A custom error and warning reporter. If unspecified a default
	// reporter is used. A default reporter fails the compilation after
	// encountering any errors and ignores all warnings.
	Reporter reporter.Reporter
	// The name of the start rule of every compiled grammar. If empty,
	// DefaultRootRuleName is used.
	RootRule string
}

// Compile compiles the given grammar names. The compiler's resolver is
// used to locate source code (or intermediate artifacts such as parsed
// ASTs or already-compiled grammars) and then do what is necessary to
// transform that into a compiled grammar. Results are returned in the
// order the names were given.
func (c *Compiler) Compile(ctx context.Context, names ...string) ([]*grammar.Grammar, error) {
	if len(names) == 0 {
		return nil, nil
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	par := c.MaxParallelism
	if par <= 0 {
		par = runtime.GOMAXPROCS(-1)
		if cpus := runtime.NumCPU(); par > cpus {
			par = cpus
		}
	}

	e := executor{
		c:       c,
		sem:     semaphore.NewWeighted(int64(par)),
		cancel:  cancel,
		results: map[string]*result{},
	}

	results := make([]*result, len(names))
	for i, name := range names {
		results[i] = e.compile(ctx, name)
	}

	grammars := make([]*grammar.Grammar, len(names))
	for i, r := range results {
		// A failing task cancels the context before its result is
		// published, so the done channel can fire first; the result is
		// always published and carries the real error (a canceled task
		// records the context error itself).
		<-r.ready
		if r.err != nil {
			return nil, r.err
		}
		grammars[i] = r.g
	}
	return grammars, nil
}

type result struct {
	ready chan struct{}
	g     *grammar.Grammar
	err   error
}

type executor struct {
	c      *Compiler
	sem    *semaphore.Weighted
	cancel context.CancelFunc

	mu      sync.Mutex
	results map[string]*result
}

func (e *executor) compile(ctx context.Context, name string) *result {
	e.mu.Lock()
	if r, ok := e.results[name]; ok {
		e.mu.Unlock()
		return r
	}
	r := &result{ready: make(chan struct{})}
	e.results[name] = r
	e.mu.Unlock()

	go func() {
		defer close(r.ready)
		if err := e.sem.Acquire(ctx, 1); err != nil {
			r.err = err
			return
		}
		defer e.sem.Release(1)
		r.g, r.err = e.doCompile(name)
		if r.err != nil {
			// Fail fast: no point finishing the rest of the batch.
			e.cancel()
		}
	}()
	return r
}

func (e *executor) doCompile(name string) (*grammar.Grammar, error) {
	sr, err := e.c.Resolver.FindGrammarByName(name)
	if err != nil {
		return nil, fmt.Errorf("resolving %q: %w", name, err)
	}
	rootRule := e.c.RootRule
	if rootRule == "" {
		rootRule = DefaultRootRuleName
	}
	switch {
	case sr.Grammar != nil:
		return sr.Grammar, nil
	case sr.AST != nil:
		handler := reporter.NewHandler(e.c.Reporter)
		return grammar.FromAST(sr.AST, rootRule, handler)
	case sr.Source != nil:
		data, err := io.ReadAll(sr.Source)
		if closer, ok := sr.Source.(io.Closer); ok {
			_ = closer.Close()
		}
		if err != nil {
			return nil, fmt.Errorf("reading %q: %w", name, err)
		}
		return compileSource(name, data, rootRule, e.c.Reporter)
	default:
		return nil, fmt.Errorf("resolver returned empty result for %q", name)
	}
}
