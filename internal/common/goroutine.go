// -----------------------------------------------------------------------
// Panic guards for stages
// -----------------------------------------------------------------------

package common

import (
	"fmt"
	"runtime"

	"github.com/ternarybob/arbor"
)

// PanicError is returned by CallSafely when fn panicked.
type PanicError struct {
	Name  string
	Value interface{}
	Stack string
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic in %s: %v", e.Name, e.Value)
}

// CallSafely runs fn and converts a panic into a *PanicError so one failing
// stage cannot take down a long-running process.
//
// Example:
//
//	err := common.CallSafely(logger, "sentiment", func() error {
//	    return stage.Run(ctx, rc)
//	})
func CallSafely(logger arbor.ILogger, name string, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			stackTrace := string(buf[:n])

			if logger != nil {
				logger.Error().
					Str("goroutine", name).
					Str("panic", fmt.Sprintf("%v", r)).
					Str("stack", stackTrace).
					Msg("Recovered from panic - continuing service operation")
			}
			err = &PanicError{Name: name, Value: r, Stack: stackTrace}
		}
	}()

	return fn()
}
