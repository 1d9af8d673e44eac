package grammar

import "errors"

var (
	// ErrUndefinedRule is wrapped by errors reported for rule references
	// that do not resolve to any defined rule.
	ErrUndefinedRule = errors.New("undefined rule")

	// ErrMissingRootRule is returned when the requested root rule is not
	// defined by the grammar.
	ErrMissingRootRule = errors.New("missing root rule")

	// ErrEmptyLoop is returned for grammars in which a rule can derive
	// itself without consuming any input. Such a grammar would make the
	// matcher's zero-width closure loop forever, so it is rejected at
	// compile time.
	ErrEmptyLoop = errors.New("grammar contains a zero-width cycle")
)
