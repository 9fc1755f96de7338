package event

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func recv(t *testing.T, sub *Subscription) Event {
	t.Helper()
	select {
	case ev, ok := <-sub.C:
		require.True(t, ok, "subscription closed")
		return ev
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
		return Event{}
	}
}

func TestSubscribeAll(t *testing.T) {
	bus := NewBus()
	sub := bus.Subscribe()
	defer sub.Close()

	bus.Publish(Event{Kind: KindOnline})
	bus.Publish(Event{Kind: KindItemUpdated})

	assert.Equal(t, KindOnline, recv(t, sub).Kind)
	assert.Equal(t, KindItemUpdated, recv(t, sub).Kind)
}

func TestSubscribeFiltered(t *testing.T) {
	bus := NewBus()
	sub := bus.Subscribe(KindModeChanged, KindModeChangeCanceled)
	defer sub.Close()

	bus.Publish(Event{Kind: KindItemUpdated})
	bus.Publish(Event{Kind: KindModeChanged})

	assert.Equal(t, KindModeChanged, recv(t, sub).Kind)
	select {
	case ev := <-sub.C:
		t.Fatalf("unexpected event %v", ev.Kind)
	default:
	}
}

func TestFanOut(t *testing.T) {
	bus := NewBus()
	a := bus.Subscribe(KindOffline)
	b := bus.Subscribe()
	defer a.Close()
	defer b.Close()

	bus.Publish(Event{Kind: KindOffline, Status: "keepalive timeout"})

	assert.Equal(t, "keepalive timeout", recv(t, a).Status)
	assert.Equal(t, KindOffline, recv(t, b).Kind)
}

func TestSlowSubscriberDropsNotBlocks(t *testing.T) {
	bus := NewBus()
	sub := bus.Subscribe()
	defer sub.Close()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < DefaultBuffer*2; i++ {
			bus.Publish(Event{Kind: KindItemUpdated})
		}
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked on a full subscription")
	}

	var n int
	for {
		select {
		case <-sub.C:
			n++
		default:
			assert.Equal(t, DefaultBuffer, n, "overflow should be dropped")
			return
		}
	}
}

func TestCloseSubscription(t *testing.T) {
	bus := NewBus()
	sub := bus.Subscribe()
	sub.Close()

	_, ok := <-sub.C
	assert.False(t, ok)

	// Publishing after close must not panic.
	bus.Publish(Event{Kind: KindOnline})

	// Closing twice is safe.
	sub.Close()
}

func TestBusClose(t *testing.T) {
	bus := NewBus()
	a := bus.Subscribe()
	b := bus.Subscribe(KindOnline)

	bus.Close()

	_, ok := <-a.C
	assert.False(t, ok)
	_, ok = <-b.C
	assert.False(t, ok)
}
