package boundplot

import (
	"fmt"
)

// StartupValidationError is returned when the command line arguments are
// inconsistent with each other (label count, Dirac point arity, ...). These
// are detected before any input file is read.
type StartupValidationError struct {
	Arg string
	Msg string
}

func (e *StartupValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Arg, e.Msg)
}

// MalformedInputError is returned when a series file, a mesh file or a Dirac
// point argument cannot be parsed. Line is 1-based and 0 when it does not
// apply (missing file, empty file, command line token).
type MalformedInputError struct {
	File  string
	Line  int
	Token string
	Err   error
}

func (e *MalformedInputError) Error() string {
	msg := e.File
	if e.Line > 0 {
		msg = fmt.Sprintf("%s:%d", msg, e.Line)
	}

	if e.Token != "" {
		msg = fmt.Sprintf("%s: bad token %q", msg, e.Token)
	}

	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}

	return "malformed input " + msg
}

func (e *MalformedInputError) Unwrap() error {
	return e.Err
}

// InteractiveInputError is produced when text typed into a parameter box
// cannot be used. It is never fatal: the parameter keeps its previous value.
type InteractiveInputError struct {
	Curve string
	Param string
	Text  string
	Err   error
}

func (e *InteractiveInputError) Error() string {
	return fmt.Sprintf("cannot set %s.%s to %q: %v", e.Curve, e.Param, e.Text, e.Err)
}

func (e *InteractiveInputError) Unwrap() error {
	return e.Err
}
