package capture

import (
	"testing"
	"time"

	"mirrorcap/pkg/models"
)

func TestQueueDeliversLatestFrame(t *testing.T) {
	q := newDeliveryQueue()

	f1 := &models.Frame{Timestamp: 1}
	f2 := &models.Frame{Timestamp: 2}
	q.publish(f1)
	q.publish(f2)

	got := q.next()
	if got != f2 {
		t.Errorf("next() = %v, want the freshest frame", got)
	}
	if drops := q.drops.Load(); drops != 1 {
		t.Errorf("drops = %d, want 1", drops)
	}
}

func TestQueuePublishNeverBlocks(t *testing.T) {
	q := newDeliveryQueue()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 1000; i++ {
			q.publish(&models.Frame{Timestamp: time.Duration(i)})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked with no consumer")
	}
}

func TestQueueNextBlocksUntilPublish(t *testing.T) {
	q := newDeliveryQueue()

	got := make(chan *models.Frame, 1)
	go func() { got <- q.next() }()

	time.Sleep(10 * time.Millisecond)
	frame := &models.Frame{Timestamp: 7}
	q.publish(frame)

	select {
	case f := <-got:
		if f != frame {
			t.Errorf("next() = %v, want published frame", f)
		}
	case <-time.After(time.Second):
		t.Fatal("next() never woke up")
	}
}

func TestQueueCloseWakesConsumer(t *testing.T) {
	q := newDeliveryQueue()

	got := make(chan *models.Frame, 1)
	go func() { got <- q.next() }()

	time.Sleep(10 * time.Millisecond)
	q.close()

	select {
	case f := <-got:
		if f != nil {
			t.Errorf("next() after close = %v, want nil", f)
		}
	case <-time.After(time.Second):
		t.Fatal("close did not wake the consumer")
	}

	// Idempotent, and publishes after close are discarded.
	q.close()
	q.publish(&models.Frame{})
	if f := q.next(); f != nil {
		t.Errorf("next() on closed queue = %v, want nil", f)
	}
}
