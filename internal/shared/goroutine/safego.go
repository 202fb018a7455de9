// Package goroutine provides utilities for safely launching goroutines with panic recovery.
package goroutine

import (
	"fmt"
	"runtime/debug"

	"github.com/alissayuxuan/OMNI-SYS/internal/shared/logger"
)

// SafeGo launches fn in a goroutine. A panic inside fn is logged with its stack
// trace instead of crashing the process.
func SafeGo(log logger.Interface, name string, fn func()) {
	go Guard(log, name, fn)
}

// Guard runs fn on the calling goroutine with the same panic recovery as SafeGo.
// It reports whether fn returned normally.
func Guard(log logger.Interface, name string, fn func()) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			log.Errorw("goroutine panicked",
				"goroutine", name,
				"panic", fmt.Sprintf("%v", r),
				"stack", string(debug.Stack()),
			)
			ok = false
		}
	}()
	fn()
	return true
}
