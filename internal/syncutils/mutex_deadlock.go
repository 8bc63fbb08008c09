//go:build deadlock

package syncutils

import "github.com/sasha-s/go-deadlock"

// Mutex reports lock-order inversions and long waits when built with -tags deadlock
type Mutex struct {
	deadlock.Mutex
}
