// Package chflow provides context-aware helpers for receiving from and
// sending to Go channels, ensuring channel operations respect cancellation
// and deadlines via context.Context.
package chflow

import "context"

// Receive waits for a value from ch or for the context to be canceled. It
// returns the value (zero value if canceled) and whether the receive
// succeeded.
func Receive[T any](ctx context.Context, ch <-chan T) (T, bool) {
	var data T
	select {
	case <-ctx.Done():
		return data, false
	case data, ok := <-ch:
		return data, ok
	}
}

// Send attempts to send a value to ch unless the context is canceled first.
// It returns true if the send succeeded.
func Send[T any](ctx context.Context, ch chan<- T, data T) bool {
	select {
	case <-ctx.Done():
		return false
	case ch <- data:
		return true
	}
}
