package util

import (
	"runtime/debug"

	"github.com/hakichain/hakichain/internal/logging"
)

// SafeGoWithName runs fn in a goroutine that logs instead of crashing on
// panic. name is attached to the panic log.
//
//	util.SafeGoWithName("event-watcher", w.run)
func SafeGoWithName(name string, fn func()) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				args := []any{"panic", r, "stack", string(debug.Stack())}
				if name != "" {
					args = append(args, "goroutine", name)
				}
				logging.Error("goroutine panic recovered", args...)
			}
		}()
		fn()
	}()
}
