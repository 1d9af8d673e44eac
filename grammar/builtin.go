package grammar

import (
	"fmt"
	"sync"

	"github.com/structuredgen/gbnf/parser"
	"github.com/structuredgen/gbnf/reporter"
)

// compileSource parses and normalizes grammar source generated by this
// package, aborting on the first error.
func compileSource(filename, src, rootRule string) (*Grammar, error) {
	handler := reporter.NewHandler(nil)
	file, err := parser.Parse(filename, []byte(src), handler)
	if err != nil {
		return nil, err
	}
	return FromAST(file, rootRule, handler)
}

// builtinJSONSource matches any JSON document whose top level is an array
// or an object, with free whitespace between tokens but none before or
// after the document itself.
const builtinJSONSource = `
root ::= basic_array | basic_object
basic_any ::= basic_number | basic_string | basic_boolean | basic_null | basic_array | basic_object
basic_escape ::= ["\\/bfnrt] | "u" [A-Fa-f0-9] [A-Fa-f0-9] [A-Fa-f0-9] [A-Fa-f0-9]
basic_string_sub ::= "\"" | [^"\\\r\n] basic_string_sub | "\\" basic_escape basic_string_sub
basic_number ::= ("0" | "-"? [1-9] [0-9]*) ("." [0-9]+)? ([eE] [+-]? [0-9]+)?
basic_string ::= ["] basic_string_sub
basic_boolean ::= "true" | "false"
basic_null ::= "null"
basic_array ::= "[" ws (basic_any (ws "," ws basic_any)*)? ws "]"
basic_object ::= "{" ws (basic_string ws ":" ws basic_any (ws "," ws basic_string ws ":" ws basic_any)*)? ws "}"
ws ::= [ \n\t]*
`

var builtinJSON = sync.OnceValue(func() *Grammar {
	g, err := compileSource("json.ebnf", builtinJSONSource, "root")
	if err != nil {
		panic(fmt.Sprintf("grammar: builtin JSON grammar failed to compile: %v", err))
	}
	return g
})

// BuiltinJSON returns the grammar of arbitrary JSON documents. The
// returned grammar is shared across callers and immutable.
func BuiltinJSON() *Grammar {
	return builtinJSON()
}
