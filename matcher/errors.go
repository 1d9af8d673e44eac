package matcher

import "errors"

// ErrFrontierOverflow is reported when the number of simultaneously live
// stacks exceeds the configured limit. The limit exists because highly
// ambiguous grammars can make the frontier grow combinatorially; once it
// trips, the Matcher is unusable until Reset.
var ErrFrontierOverflow = errors.New("frontier size limit exceeded")

// ErrTerminated is returned by mask computation after the matcher has
// accepted a stop token. A terminated matcher has no next token.
var ErrTerminated = errors.New("matcher is terminated")
