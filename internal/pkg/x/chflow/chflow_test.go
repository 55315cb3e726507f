package chflow

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestReceive(t *testing.T) {
	t.Run("should receive a queued value", func(t *testing.T) {
		ch := make(chan int, 1)
		ch <- 7

		value, ok := Receive(t.Context(), ch)

		assert.True(t, ok)
		assert.Equal(t, 7, value)
	})

	t.Run("should give up when the context is canceled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(t.Context())
		cancel()

		value, ok := Receive(ctx, make(chan int))

		assert.False(t, ok)
		assert.Zero(t, value)
	})

	t.Run("should report a closed channel", func(t *testing.T) {
		ch := make(chan int)
		close(ch)

		value, ok := Receive(t.Context(), ch)

		assert.False(t, ok)
		assert.Zero(t, value)
	})
}

func TestSend(t *testing.T) {
	t.Run("should send into a buffered channel", func(t *testing.T) {
		ch := make(chan int, 1)

		assert.True(t, Send(t.Context(), ch, 7))
		assert.Equal(t, 7, <-ch)
	})

	t.Run("should give up when the context is canceled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(t.Context())
		cancel()

		assert.False(t, Send(ctx, make(chan int), 7))
	})
}
