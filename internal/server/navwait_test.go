// internal/server/navwait_test.go
package server

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/halcyonforge/webpilot/internal/sandbox"
)

func TestNavHub(t *testing.T) {
	defer goleak.VerifyNone(t)

	t.Run("DeliversToAllRegisteredWaiters", func(t *testing.T) {
		hub := NewNavHub(nil)
		_, ch1 := hub.Register()
		_, ch2 := hub.Register()
		require.Equal(t, 2, hub.Pending())

		hub.NavigationFinished(sandbox.NavigationOutcome{OK: true, URL: "https://example.com"})

		for _, ch := range []<-chan sandbox.NavigationOutcome{ch1, ch2} {
			select {
			case outcome := <-ch:
				assert.True(t, outcome.OK)
				assert.Equal(t, "https://example.com", outcome.URL)
			default:
				t.Fatal("waiter did not receive the outcome")
			}
		}
		assert.Equal(t, 0, hub.Pending(), "delivery clears the registry")
	})

	t.Run("ExactlyOnce", func(t *testing.T) {
		hub := NewNavHub(nil)
		_, ch := hub.Register()

		hub.NavigationFinished(sandbox.NavigationOutcome{OK: true})
		hub.NavigationFinished(sandbox.NavigationOutcome{OK: false, Error: "late"})

		first := <-ch
		assert.True(t, first.OK)
		select {
		case <-ch:
			t.Fatal("second signal must not reach an already-served waiter")
		default:
		}
	})

	t.Run("AbandonedWaiterNotDelivered", func(t *testing.T) {
		hub := NewNavHub(nil)
		token, ch := hub.Register()
		hub.Abandon(token)
		require.Equal(t, 0, hub.Pending())

		hub.NavigationFinished(sandbox.NavigationOutcome{OK: true})
		select {
		case <-ch:
			t.Fatal("abandoned waiter must not receive the outcome")
		default:
		}
	})

	t.Run("LateRegistrationWaitsForNextSignal", func(t *testing.T) {
		hub := NewNavHub(nil)
		hub.NavigationFinished(sandbox.NavigationOutcome{OK: true, URL: "first"})

		_, ch := hub.Register()
		select {
		case <-ch:
			t.Fatal("a waiter registered after the signal must not see it")
		default:
		}

		hub.NavigationFinished(sandbox.NavigationOutcome{OK: true, URL: "second"})
		assert.Equal(t, "second", (<-ch).URL)
	})

	t.Run("ConcurrentRegisterAndDeliver", func(t *testing.T) {
		hub := NewNavHub(nil)
		var wg sync.WaitGroup
		for i := 0; i < 20; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				token, _ := hub.Register()
				hub.Abandon(token)
			}()
		}
		for i := 0; i < 5; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				hub.NavigationFinished(sandbox.NavigationOutcome{OK: true})
			}()
		}
		wg.Wait()
		assert.Equal(t, 0, hub.Pending())
	})
}
