package matcher

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/structuredgen/gbnf/grammar"
	"github.com/structuredgen/gbnf/internal/testutil"
	"github.com/structuredgen/gbnf/parser"
	"github.com/structuredgen/gbnf/reporter"
)

func TestMatchSuites(t *testing.T) {
	for _, suite := range testutil.LoadMatchSuites(t, "testdata/suites/*.yaml") {
		t.Run(suite.Name, func(t *testing.T) {
			rootName := suite.Root
			if rootName == "" {
				rootName = "root"
			}
			handler := reporter.NewHandler(nil)
			file, err := parser.Parse(suite.Name+".ebnf", []byte(suite.Grammar), handler)
			require.NoError(t, err)
			g, err := grammar.FromAST(file, rootName, handler)
			require.NoError(t, err)

			idx := testVocab(t, "</s>")
			for _, tc := range suite.Cases {
				m, err := New(g, idx)
				require.NoError(t, err)
				got := m.AcceptString(tc.Input) && m.AcceptStopToken()
				assert.Equal(t, tc.Accept, got, "input %q", tc.Input)
			}
		})
	}
}
