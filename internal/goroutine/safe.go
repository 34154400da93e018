// Package goroutine starts background work that must not take the process
// down with it.
package goroutine

import (
	"runtime/debug"

	"github.com/sirupsen/logrus"
)

// SafeGo runs fn on a new goroutine. A panic is logged with its stack and
// swallowed.
func SafeGo(logger logrus.FieldLogger, name string, fn func()) {
	go func() {
		defer Recover(logger, name)
		fn()
	}()
}

// Recover logs and absorbs a panic. Call it deferred.
func Recover(logger logrus.FieldLogger, name string) {
	if r := recover(); r != nil {
		logger.WithField("goroutine", name).Errorf("PANIC: %v\n%s", r, debug.Stack())
	}
}
