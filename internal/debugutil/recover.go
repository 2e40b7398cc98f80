// Package debugutil holds small diagnostic helpers shared by the
// scheduler's worker boundary and the status API: panic recovery with a
// captured call stack, and process memory introspection.
package debugutil

import (
	"fmt"

	"github.com/go-stack/stack"
)

// PanicInfo captures what a recovered panic looked like, for turning
// into a failure metric row (spec.md §4.5's "A panic in a task body is
// caught at the worker boundary, recorded as a failure row").
type PanicInfo struct {
	Value interface{}
	Stack string
}

// String renders a one-line summary suitable for a metric row's message
// field.
func (p PanicInfo) String() string {
	return fmt.Sprintf("panic: %v", p.Value)
}

// RecoverTaskPanic should be called directly inside a deferred function
// at the worker boundary, around a single task invocation. It returns
// (info, true) if a panic was recovered, else (zero, false). The stack
// is captured with the recover frame itself skipped.
func RecoverTaskPanic() (PanicInfo, bool) {
	r := recover()
	if r == nil {
		return PanicInfo{}, false
	}
	return PanicInfo{
		Value: r,
		Stack: fmt.Sprintf("%+v", stack.Trace().TrimRuntime()),
	}, true
}
