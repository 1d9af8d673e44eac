package grammar_test

import (
	"fmt"
	"strings"
	"testing"

	"github.com/structuredgen/gbnf/ast"
	"github.com/structuredgen/gbnf/grammar"
	"github.com/structuredgen/gbnf/internal/testutil"
	"github.com/structuredgen/gbnf/parser"
	"github.com/structuredgen/gbnf/reporter"
)

// TestNormalizeCorpus runs every grammar under testdata/corpus through
// normalization, comparing the normalized form against the .norm file and
// rendered diagnostics against the .stderr file. Set GBNF_REFRESH to a
// glob of test names to regenerate expected outputs.
func TestNormalizeCorpus(t *testing.T) {
	corpus := testutil.Corpus{
		Root:      "testdata/corpus",
		Refresh:   "GBNF_REFRESH",
		Extension: "ebnf",
		Outputs: []testutil.Output{
			{Extension: "norm"},
			{Extension: "stderr"},
		},
		Test: func(t *testing.T, path, text string) []string {
			info := ast.NewFileInfo(path, []byte(text))
			for i, b := range []byte(text) {
				if b == '\n' {
					info.AddLine(i + 1)
				}
			}

			var diags strings.Builder
			rep := reporter.NewReporter(func(err reporter.ErrorWithPos) error {
				fmt.Fprintf(&diags, "%v\n", err)
				if snip := reporter.Snippet(info, err.GetPosition()); snip != "" {
					fmt.Fprintf(&diags, "%s\n", snip)
				}
				return nil
			}, nil)

			handler := reporter.NewHandler(rep)
			var norm string
			file, err := parser.Parse(path, []byte(text), handler)
			if err == nil {
				if g, err := grammar.FromAST(file, "root", handler); err == nil {
					norm = g.String()
				}
			}
			return []string{norm, diags.String()}
		},
	}
	corpus.Run(t)
}
