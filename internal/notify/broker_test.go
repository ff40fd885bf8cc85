package notify

import (
	"testing"
	"time"
)

func TestBroker_SubscribeNotify(t *testing.T) {
	b := NewBroker()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	b.Notify()

	select {
	case <-ch:
		// ok
	case <-time.After(100 * time.Millisecond):
		t.Fatal("expected signal on subscriber channel")
	}
}

func TestBroker_MultipleSubscribers(t *testing.T) {
	b := NewBroker()
	ch1 := b.Subscribe()
	ch2 := b.Subscribe()
	defer b.Unsubscribe(ch1)
	defer b.Unsubscribe(ch2)

	if b.Count() != 2 {
		t.Fatalf("Count() = %d, want 2", b.Count())
	}

	b.Notify()

	for i, ch := range []chan struct{}{ch1, ch2} {
		select {
		case <-ch:
			// ok
		case <-time.After(100 * time.Millisecond):
			t.Fatalf("subscriber %d: expected signal", i)
		}
	}
}

func TestBroker_CoalescesSignals(t *testing.T) {
	b := NewBroker()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	b.Notify()
	b.Notify()

	select {
	case <-ch:
	case <-time.After(100 * time.Millisecond):
		t.Fatal("expected at least one signal")
	}

	select {
	case <-ch:
		t.Fatal("expected channel to be empty after draining")
	default:
		// ok
	}
}

func TestBroker_UnsubscribeRemoves(t *testing.T) {
	b := NewBroker()
	ch := b.Subscribe()
	b.Unsubscribe(ch)

	b.Notify()

	select {
	case <-ch:
		t.Fatal("should not receive after unsubscribe")
	default:
		// ok
	}
	if b.Count() != 0 {
		t.Errorf("Count() = %d, want 0", b.Count())
	}
}
