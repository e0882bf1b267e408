// Package xerrors records where errors are created and wrapped so the
// logger can print a stack and a per-layer location without the caller
// formatting anything. Domain packages that need codes and hints use
// samber/oops instead; both render through internal/log.
package xerrors

import (
	"errors"
	"fmt"
	"runtime"
)

const maxDepth = 64

// traced carries the full stack of the goroutine that created it.
type traced struct {
	err error
	pcs []uintptr
}

func (t *traced) Error() string       { return t.err.Error() }
func (t *traced) Unwrap() error       { return t.err }
func (t *traced) StackPCs() []uintptr { return t.pcs }

// wrapped adds a message and the single frame that added it.
type wrapped struct {
	err error
	msg string
	pc  uintptr
}

func (w *wrapped) Error() string { return w.msg + ": " + w.err.Error() }
func (w *wrapped) Unwrap() error { return w.err }
func (w *wrapped) PC() uintptr   { return w.pc }

// callers returns the stack above the exported function that called it.
func callers() []uintptr {
	pcs := make([]uintptr, maxDepth)
	// runtime.Callers, callers, the exported entry point
	return pcs[:runtime.Callers(3, pcs)]
}

func caller() uintptr {
	var pc [1]uintptr
	runtime.Callers(3, pc[:])
	return pc[0]
}

// New returns an error with msg and the caller's stack.
func New(msg string) error { return &traced{err: errors.New(msg), pcs: callers()} }

// Newf is New with fmt.Errorf formatting, so %w is honoured.
func Newf(format string, args ...any) error {
	return &traced{err: fmt.Errorf(format, args...), pcs: callers()}
}

// WithStack attaches the caller's stack to err. Nil stays nil.
func WithStack(err error) error {
	if err == nil {
		return nil
	}
	return &traced{err: err, pcs: callers()}
}

// EnsureTrace is WithStack unless something in the chain already carries
// a stack.
func EnsureTrace(err error) error {
	if err == nil {
		return nil
	}
	var t interface{ StackPCs() []uintptr }
	if errors.As(err, &t) && len(t.StackPCs()) > 0 {
		return err
	}
	return &traced{err: err, pcs: callers()}
}

// Wrap prefixes err with msg and records the caller. Nil stays nil.
func Wrap(err error, msg string) error {
	if err == nil {
		return nil
	}
	return &wrapped{err: err, msg: msg, pc: caller()}
}

// Wrapf is Wrap with a formatted message.
func Wrapf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return &wrapped{err: err, msg: fmt.Sprintf(format, args...), pc: caller()}
}
