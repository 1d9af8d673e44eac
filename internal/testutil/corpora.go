// Package testutil provides the file-system-driven test corpus used by
// the parser and grammar tests, plus loaders for YAML-defined matcher
// suites. A corpus is a way of doing table-driven tests where the
// "table" is in your file system.
package testutil

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/pmezard/go-difflib/difflib"
)

// A Corpus describes a test data corpus: a tree of grammar files, each
// with expected-output files next to it.
type Corpus struct {
	// The root of the test data directory. This path is relative to the
	// file that calls [Corpus.Run].
	Root string

	// An environment variable holding a glob of test names whose
	// expected outputs should be regenerated instead of checked.
	Refresh string

	// The file extension (without a dot) of files which define a test
	// case, e.g. "ebnf".
	Extension string
	// Possible outputs of the test, found using Outputs.Extension. If
	// the file for a particular output is missing, it is implicitly
	// treated as being expected to be empty.
	Outputs []Output

	// Test executes the test on one test case from the corpus. Returns
	// a slice of strings corresponding to the elements of Outputs.
	Test func(t *testing.T, path, text string) []string
}

// Output represents one output of a test case. For a corpus with
// Extension "ebnf" and an output with Extension "norm", the runner
// compares the test's result against "foo.ebnf.norm".
type Output struct {
	Extension string

	// The comparison function for this output. May be nil, in which
	// case the values are compared byte-for-byte.
	Compare Compare
}

// Compare is a comparison function between strings, used in [Output].
// It returns the empty string if the strings match, and an error message
// otherwise.
type Compare func(got, want string) string

// Run discovers and executes every test case under the corpus root.
func (c Corpus) Run(t *testing.T) {
	testDir := callerDir(0)
	root := filepath.Join(testDir, c.Root)

	var tests []string
	err := filepath.Walk(root, func(p string, fi fs.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !fi.IsDir() && strings.TrimPrefix(path.Ext(p), ".") == c.Extension {
			tests = append(tests, p)
		}
		return nil
	})
	if err != nil {
		t.Fatal("testutil: error while walking testdata:", err)
	}

	var refresh string
	if c.Refresh != "" {
		refresh = os.Getenv(c.Refresh)
		if !doublestar.ValidatePattern(refresh) {
			t.Fatalf("testutil: invalid glob in $%s: %q", c.Refresh, refresh)
		}
	}
	if refresh != "" {
		t.Logf("testutil: refreshing test data because %s=%s", c.Refresh, refresh)
		// Refreshed outputs are unverified, so the run must not pass.
		t.Fail()
	}

	for _, testPath := range tests {
		name, _ := filepath.Rel(testDir, testPath)
		t.Run(name, func(t *testing.T) {
			input, err := os.ReadFile(testPath)
			if err != nil {
				t.Fatalf("testutil: error while loading input file %q: %v", testPath, err)
			}

			results := c.Test(t, name, string(input))
			if len(results) != len(c.Outputs) {
				t.Fatalf("testutil: test returned %d outputs, want %d", len(results), len(c.Outputs))
			}

			refreshThis, _ := doublestar.Match(refresh, name)
			for i, output := range c.Outputs {
				outPath := fmt.Sprint(testPath, ".", output.Extension)

				if refreshThis {
					c.writeOutput(t, outPath, results[i])
					continue
				}

				want, err := os.ReadFile(outPath)
				if err != nil && !errors.Is(err, os.ErrNotExist) {
					t.Errorf("testutil: error while loading output file %q: %v", outPath, err)
					continue
				}
				cmp := output.Compare
				if cmp == nil {
					cmp = diffCompare
				}
				if msg := cmp(results[i], string(want)); msg != "" {
					t.Errorf("output mismatch for %q:\n%s", outPath, msg)
				}
			}
		})
	}
}

func (c Corpus) writeOutput(t *testing.T, path, content string) {
	if content == "" {
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			t.Errorf("testutil: error while deleting output file %q: %v", path, err)
		}
		return
	}
	if err := os.WriteFile(path, []byte(content), 0o660); err != nil {
		t.Errorf("testutil: error while writing output file %q: %v", path, err)
	}
}

func diffCompare(got, want string) string {
	if got == want {
		return ""
	}

	diff, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(want),
		B:        difflib.SplitLines(got),
		FromFile: "want",
		ToFile:   "got",
		Context:  2,
	})
	if err != nil {
		return err.Error()
	}

	// Colorize added/removed lines so the diff is easier to read.
	lines := strings.Split(diff, "\n")
	for i, s := range lines {
		if strings.HasPrefix(s, "+") {
			lines[i] = "\033[1;92m" + s + "\033[0m"
		} else if strings.HasPrefix(s, "-") {
			lines[i] = "\033[1;91m" + s + "\033[0m"
		}
	}
	return strings.Join(lines, "\n")
}

func callerDir(skip int) string {
	_, file, _, ok := runtime.Caller(skip + 2)
	if !ok {
		panic("testutil: could not determine test file's directory")
	}
	return filepath.Dir(file)
}
