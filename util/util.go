// Package util has the logging switch shared by the flowcmd packages.
package util

import (
	"log"
	"sync/atomic"
)

var logging int32

// SetLogging turns Logf on or off.  The commands call it with their
// -v flag.
func SetLogging(on bool) {
	var x int32
	if on {
		x = 1
	}
	atomic.StoreInt32(&logging, x)
}

// Logging reports whether Logf is on.
func Logging() bool {
	return atomic.LoadInt32(&logging) == 1
}

// Logf calls log.Printf if logging is on.
func Logf(format string, args ...interface{}) {
	if !Logging() {
		return
	}
	log.Printf(format, args...)
}
