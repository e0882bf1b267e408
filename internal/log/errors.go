package log

import (
	"errors"
	"fmt"
	"reflect"
	"runtime"
	"strings"

	"github.com/samber/oops"
)

// Implemented by internal/xerrors.
type (
	pcError    interface{ PC() uintptr }
	stackError interface{ StackPCs() []uintptr }
)

// errorAttrs describes err for an error record: the error itself, the
// first concrete type under any wrappers, the root type, the chain of
// messages and, for oops errors, the code, domain, hint and context.
// links > 0 also adds up to that many wrap locations.
func errorAttrs(err error, links int) []any {
	surface, root := classifyTypes(err)
	kv := []any{
		"err", err,
		"error_type", surface,
		"cause_type", root,
	}
	if chain := errorChain(err); len(chain) > 1 {
		kv = append(kv, "error_chain", chain)
	}
	if oe, ok := oops.AsOops(err); ok {
		if code := oe.Code(); code != nil && code != "" {
			kv = append(kv, "error_code", fmt.Sprint(code))
		}
		if d := oe.Domain(); d != "" {
			kv = append(kv, "error_domain", d)
		}
		if h := oe.Hint(); h != "" {
			kv = append(kv, "error_hint", h)
		}
		if c := oe.Context(); len(c) > 0 {
			kv = append(kv, "error_context", c)
		}
	}
	if links > 0 {
		kv = append(kv, "error_links", chainLinks(err, links))
	}
	return kv
}

// errorChain lists each distinct message from the outermost error inward,
// followed by the members of a top-level errors.Join.
func errorChain(err error) []string {
	var out []string
	add := func(msg string) {
		if len(out) == 0 || out[len(out)-1] != msg {
			out = append(out, msg)
		}
	}
	for e := err; e != nil; e = errors.Unwrap(e) {
		add(e.Error())
	}
	if j, ok := err.(interface{ Unwrap() []error }); ok {
		for _, e := range j.Unwrap() {
			add(e.Error())
		}
	}
	return out
}

// classifyTypes returns the first type in the chain that is not an
// xerrors or fmt wrapper, and the type of the innermost error.
func classifyTypes(err error) (surface, root string) {
	var last error
	for e := err; e != nil; e = errors.Unwrap(e) {
		last = e
		if surface == "" && !isWrapperType(e) {
			surface = fmt.Sprintf("%T", e)
		}
	}
	if surface == "" {
		surface = fmt.Sprintf("%T", err)
	}
	return surface, fmt.Sprintf("%T", last)
}

func isWrapperType(e error) bool {
	t := reflect.TypeOf(e)
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if strings.HasSuffix(t.PkgPath(), "/internal/xerrors") {
		return true
	}
	return t.PkgPath() == "fmt" && t.Name() == "wrapError"
}

// chainLinks records where each layer of the chain was created, for
// layers that know it. The outermost layer is always present.
func chainLinks(err error, limit int) []map[string]any {
	var links []map[string]any
	depth := 0
	for e := err; e != nil && depth < limit; e = errors.Unwrap(e) {
		link := map[string]any{"msg": e.Error()}
		var fr runtime.Frame
		var ok bool
		switch v := e.(type) {
		case pcError:
			fr, ok = frameAt(v.PC())
		case stackError:
			fr, ok = firstUserFrame(v.StackPCs())
		}
		if ok {
			link["func"], link["file"], link["line"] = fr.Function, fr.File, fr.Line
		}
		if depth == 0 || ok {
			links = append(links, link)
		}
		depth++
	}
	return links
}

// errorStack renders the stack carried by err: an xerrors capture
// anywhere in the chain, or the oops stacktrace. It returns "" when the
// error carries none.
func errorStack(err error) string {
	var se stackError
	if errors.As(err, &se) && len(se.StackPCs()) > 0 {
		return renderFrames(se.StackPCs())
	}
	if oe, ok := oops.AsOops(err); ok {
		return strings.TrimSpace(oe.Stacktrace())
	}
	return ""
}

// callerStack captures the stack of the goroutine that is logging, minus
// the logger and slog frames.
func callerStack() string {
	pcs := make([]uintptr, 64)
	n := runtime.Callers(3, pcs)
	return renderFrames(pcs[:n])
}

func isLoggingFrame(fn string) bool {
	return strings.HasPrefix(fn, "log/slog.") ||
		strings.Contains(fn, "/internal/log.") ||
		strings.Contains(fn, "/internal/xerrors.")
}

// renderFrames prints function and file:line pairs starting at the first
// frame outside the logging packages and stopping at the runtime.
func renderFrames(pcs []uintptr) string {
	var b strings.Builder
	started := false
	frames := runtime.CallersFrames(pcs)
	for {
		fr, more := frames.Next()
		if strings.HasPrefix(fr.Function, "runtime.") {
			break
		}
		if !started && fr.Function != "" && !isLoggingFrame(fr.Function) {
			started = true
		}
		if started {
			fmt.Fprintf(&b, "%s\n\t%s:%d\n", fr.Function, fr.File, fr.Line)
		}
		if !more {
			break
		}
	}
	return strings.TrimSpace(b.String())
}

func frameAt(pc uintptr) (runtime.Frame, bool) {
	if pc == 0 {
		return runtime.Frame{}, false
	}
	fr, _ := runtime.CallersFrames([]uintptr{pc}).Next()
	return fr, fr.Function != ""
}

func firstUserFrame(pcs []uintptr) (runtime.Frame, bool) {
	frames := runtime.CallersFrames(pcs)
	for {
		fr, more := frames.Next()
		if fr.Function != "" && !strings.HasPrefix(fr.Function, "runtime.") && !isLoggingFrame(fr.Function) {
			return fr, true
		}
		if !more {
			return runtime.Frame{}, false
		}
	}
}
