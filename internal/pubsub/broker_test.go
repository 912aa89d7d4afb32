package pubsub

import (
	"context"
	"testing"
	"time"
)

func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal(msg)
}

func TestBrokerDeliversToAllSubscribers(t *testing.T) {
	broker := NewBroker[int]()
	defer broker.Close()
	ctx := context.Background()

	ch1 := broker.Subscribe(ctx)
	ch2 := broker.Subscribe(ctx)
	if broker.SubscriberCount() != 2 {
		t.Fatalf("subscriber count = %d, want 2", broker.SubscriberCount())
	}

	broker.Publish(42)

	for i, ch := range []<-chan int{ch1, ch2} {
		select {
		case got := <-ch:
			if got != 42 {
				t.Fatalf("subscriber %d received %d, want 42", i, got)
			}
		case <-time.After(time.Second):
			t.Fatalf("subscriber %d timed out", i)
		}
	}
}

func TestBrokerPreservesPublishOrder(t *testing.T) {
	broker := NewBroker[int]()
	defer broker.Close()

	ch := broker.Subscribe(context.Background())
	for i := 1; i <= 5; i++ {
		broker.Publish(i)
	}
	for want := 1; want <= 5; want++ {
		select {
		case got := <-ch:
			if got != want {
				t.Fatalf("received %d, want %d", got, want)
			}
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for ordered values")
		}
	}
}

func TestBrokerContextCancellationCleansUp(t *testing.T) {
	broker := NewBroker[string]()
	defer broker.Close()

	ctx, cancel := context.WithCancel(context.Background())
	ch := broker.Subscribe(ctx)
	if broker.SubscriberCount() != 1 {
		t.Fatalf("subscriber count = %d, want 1", broker.SubscriberCount())
	}

	cancel()
	waitFor(t, func() bool { return broker.SubscriberCount() == 0 }, "subscription not cleaned up")

	if _, ok := <-ch; ok {
		t.Fatal("channel still open after cancellation")
	}
}

func TestBrokerDropsWhenSubscriberIsFull(t *testing.T) {
	broker := NewBrokerWithBuffer[int](1)
	defer broker.Close()

	ch := broker.Subscribe(context.Background())
	broker.Publish(1)
	broker.Publish(2)
	broker.Publish(3)

	if got := <-ch; got != 1 {
		t.Fatalf("first value = %d, want 1", got)
	}
	if dropped := broker.Dropped(); dropped != 2 {
		t.Fatalf("dropped = %d, want 2", dropped)
	}
}

func TestBrokerCloseIsIdempotent(t *testing.T) {
	broker := NewBroker[int]()
	ch := broker.Subscribe(context.Background())

	broker.Close()
	broker.Close()

	if _, ok := <-ch; ok {
		t.Fatal("channel open after close")
	}
	broker.Publish(7)

	late := broker.Subscribe(context.Background())
	if _, ok := <-late; ok {
		t.Fatal("subscription on closed broker delivered a value")
	}
}
