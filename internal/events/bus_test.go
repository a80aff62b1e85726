package events_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"revbridge.dev/revbridge/internal/events"
)

func TestBus(t *testing.T) {
	t.Run("delivers to subscribers in order", func(t *testing.T) {
		var bus events.Bus[string]
		var got []string
		bus.Subscribe(func(s string) { got = append(got, "a:"+s) })
		bus.Subscribe(func(s string) { got = append(got, "b:"+s) })

		bus.Publish("x")
		require.Equal(t, []string{"a:x", "b:x"}, got)
	})

	t.Run("unsubscribe removes only that handler", func(t *testing.T) {
		var bus events.Bus[int]
		var a, b int
		unsubA := bus.Subscribe(func(v int) { a += v })
		bus.Subscribe(func(v int) { b += v })

		bus.Publish(1)
		unsubA()
		unsubA()
		bus.Publish(2)

		require.Equal(t, 1, a)
		require.Equal(t, 3, b)
		require.Equal(t, 1, bus.Len())
	})

	t.Run("publish with no subscribers is a no-op", func(t *testing.T) {
		var bus events.Bus[error]
		require.NotPanics(t, func() { bus.Publish(nil) })
	})

	t.Run("handler may unsubscribe itself during publish", func(t *testing.T) {
		var bus events.Bus[int]
		calls := 0
		var unsub func()
		unsub = bus.Subscribe(func(int) {
			calls++
			unsub()
		})

		bus.Publish(1)
		bus.Publish(2)
		require.Equal(t, 1, calls)
	})
}
