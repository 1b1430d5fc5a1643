// Package diag holds the error taxonomy and warning report shared by the
// Boolean pipeline stages.
package diag

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
)

// ErrorKind classifies pipeline failures.
type ErrorKind int

const (
	InvalidInput ErrorKind = iota
	UnsupportedGeometry
	IntersectionDegenerate
	InconsistentPaving
	ClassificationAmbiguous
	BuildFailure
)

func (k ErrorKind) String() string {
	switch k {
	case InvalidInput:
		return "invalid input"
	case UnsupportedGeometry:
		return "unsupported geometry"
	case IntersectionDegenerate:
		return "intersection degenerate"
	case InconsistentPaving:
		return "inconsistent paving"
	case ClassificationAmbiguous:
		return "classification ambiguous"
	case BuildFailure:
		return "build failure"
	default:
		return fmt.Sprintf("ErrorKind(%d)", int(k))
	}
}

// Error is a pipeline failure. Shapes lists the registry indices involved.
type Error struct {
	Kind   ErrorKind
	Op     string
	Shapes []int
	Err    error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString("bop")
	if e.Op != "" {
		b.WriteString(": ")
		b.WriteString(e.Op)
	}
	b.WriteString(": ")
	b.WriteString(e.Kind.String())
	if len(e.Shapes) > 0 {
		fmt.Fprintf(&b, " %v", e.Shapes)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same kind, so the sentinels below work with
// errors.Is.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

// Sentinels for errors.Is.
var (
	ErrInvalidInput            = &Error{Kind: InvalidInput}
	ErrUnsupportedGeometry     = &Error{Kind: UnsupportedGeometry}
	ErrIntersectionDegenerate  = &Error{Kind: IntersectionDegenerate}
	ErrInconsistentPaving      = &Error{Kind: InconsistentPaving}
	ErrClassificationAmbiguous = &Error{Kind: ClassificationAmbiguous}
	ErrBuildFailure            = &Error{Kind: BuildFailure}
)

// New returns an error of the given kind.
func New(kind ErrorKind, op string, shapes []int, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Shapes: shapes, Err: fmt.Errorf(format, args...)}
}

// Wrap attaches a kind to err. An err that already is an *Error is
// returned unchanged.
func Wrap(kind ErrorKind, op string, err error) error {
	if err == nil {
		return nil
	}
	var de *Error
	if errors.As(err, &de) {
		return err
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

// Warning is a recovered problem. The pipeline continued past it.
type Warning struct {
	Kind    ErrorKind
	Shapes  []int
	Message string
}

func (w Warning) String() string {
	if len(w.Shapes) == 0 {
		return fmt.Sprintf("%s: %s", w.Kind, w.Message)
	}
	return fmt.Sprintf("%s %v: %s", w.Kind, w.Shapes, w.Message)
}

// Report collects warnings from concurrent workers.
type Report struct {
	mu       sync.Mutex
	warnings []Warning
}

// Add records a warning.
func (r *Report) Add(kind ErrorKind, shapes []int, format string, args ...any) {
	w := Warning{Kind: kind, Shapes: slices.Clone(shapes), Message: fmt.Sprintf(format, args...)}
	r.mu.Lock()
	r.warnings = append(r.warnings, w)
	r.mu.Unlock()
}

// Len returns the number of warnings recorded so far.
func (r *Report) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.warnings)
}

// Snapshot returns the warnings sorted by kind, shapes and message so that
// reports from parallel runs compare equal.
func (r *Report) Snapshot() []Warning {
	r.mu.Lock()
	out := slices.Clone(r.warnings)
	r.mu.Unlock()
	slices.SortStableFunc(out, func(a, b Warning) int {
		if a.Kind != b.Kind {
			return int(a.Kind) - int(b.Kind)
		}
		if c := slices.Compare(a.Shapes, b.Shapes); c != 0 {
			return c
		}
		return strings.Compare(a.Message, b.Message)
	})
	return out
}
