package reporter

import (
	"sync"

	"github.com/structuredgen/gbnf/ast"
)

// ErrorReporter is responsible for reporting the given error. If the
// reporter returns a non-nil error, parsing/compiling will abort with that
// error. If the reporter returns nil, parsing will continue, allowing the
// parser to try to report as many syntax and resolution errors as it can
// find.
type ErrorReporter func(err ErrorWithPos) error

// WarningReporter is responsible for reporting the given warning. This is
// used for indicating non-error messages to the calling program for things
// that do not cause the compile to fail but are considered bad practice.
// Though they are just warnings, the details are supplied to the reporter
// via an error type.
type WarningReporter func(ErrorWithPos)

// Reporter is a receiver of errors and warnings encountered during a
// compile operation.
type Reporter interface {
	Error(ErrorWithPos) error
	Warning(ErrorWithPos)
}

// NewReporter creates a new reporter that invokes the given functions on
// error or warning.
func NewReporter(errs ErrorReporter, warnings WarningReporter) Reporter {
	return reporterFuncs{errs: errs, warnings: warnings}
}

type reporterFuncs struct {
	errs     ErrorReporter
	warnings WarningReporter
}

func (r reporterFuncs) Error(err ErrorWithPos) error {
	if r.errs == nil {
		return err
	}
	return r.errs(err)
}

func (r reporterFuncs) Warning(err ErrorWithPos) {
	if r.warnings != nil {
		r.warnings(err)
	}
}

// Handler is used by the lexer, parser, and grammar builder to handle
// errors and warnings. A nil reporter aborts on the first error.
type Handler struct {
	reporter Reporter

	mu           sync.Mutex
	errsReported bool
	err          error
}

// NewHandler creates a new Handler that reports errors and warnings using
// the given reporter.
func NewHandler(rep Reporter) *Handler {
	if rep == nil {
		rep = NewReporter(nil, nil)
	}
	return &Handler{reporter: rep}
}

// HandleErrorf handles an error with the given source position, creating
// the error using the given message format and arguments.
//
// If the handler has already aborted (by returning a non-nil error from a
// previous call), that same error is returned and the given error is not
// reported.
func (h *Handler) HandleErrorf(pos ast.SourcePos, format string, args ...any) error {
	return h.HandleError(Errorf(pos, format, args...))
}

// HandleError handles the given error. If the given error is an
// ErrorWithPos, it is reported, and the handler records that it aborts if
// the reporter said so.
func (h *Handler) HandleError(err error) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.err != nil {
		return h.err
	}
	if ewp, ok := err.(ErrorWithPos); ok {
		h.errsReported = true
		err = h.reporter.Error(ewp)
	}
	h.err = err
	return err
}

// HandleWarning handles a warning with the given source position.
func (h *Handler) HandleWarning(pos ast.SourcePos, err error) {
	// no need for lock; warnings don't interact with mutable fields
	h.reporter.Warning(Error(pos, err))
}

// Error returns the handler result. If any errors have been reported, this
// returns a non-nil error. If the reporter never returned a non-nil error
// then ErrInvalidSource is returned.
func (h *Handler) Error() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.errsReported && h.err == nil {
		return ErrInvalidSource
	}
	return h.err
}

// ReporterError returns the error returned by the handler's reporter, if
// it has returned a non-nil error. Otherwise it returns nil.
func (h *Handler) ReporterError() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	return h.err
}
