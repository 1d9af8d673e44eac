package testutil

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/bmatcuk/doublestar/v4"
	"gopkg.in/yaml.v3"
)

// MatchCase is one string checked against a grammar.
type MatchCase struct {
	// Input is the byte string fed to the matcher.
	Input string `yaml:"input"`
	// Accept says whether the whole string must be accepted.
	Accept bool `yaml:"accept"`
}

// MatchSuite is a YAML-defined matcher test suite: one grammar and the
// strings it must accept or reject.
type MatchSuite struct {
	Name    string      `yaml:"name"`
	Grammar string      `yaml:"grammar"`
	Root    string      `yaml:"root"`
	Cases   []MatchCase `yaml:"cases"`
}

// LoadMatchSuites loads every suite file matching the given glob,
// relative to the calling test file.
func LoadMatchSuites(t *testing.T, glob string) []MatchSuite {
	t.Helper()
	_, file, _, ok := runtime.Caller(1)
	if !ok {
		t.Fatal("testutil: could not determine test file's directory")
	}

	paths, err := doublestar.FilepathGlob(filepath.Join(filepath.Dir(file), glob))
	if err != nil {
		t.Fatalf("testutil: invalid glob %q: %v", glob, err)
	}
	if len(paths) == 0 {
		t.Fatalf("testutil: glob %q matched no suite files", glob)
	}

	var suites []MatchSuite
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			t.Fatalf("testutil: error while loading suite file %q: %v", path, err)
		}
		var fileSuites []MatchSuite
		if err := yaml.Unmarshal(data, &fileSuites); err != nil {
			t.Fatalf("testutil: error while parsing suite file %q: %v", path, err)
		}
		suites = append(suites, fileSuites...)
	}
	return suites
}
