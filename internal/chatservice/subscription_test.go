package chatservice

import (
	"testing"

	"github.com/chatcluster/chatd/internal/chatpb"
)

func TestSubscriptionTablePublishDelivers(t *testing.T) {
	tbl := newSubscriptionTable()
	sub := tbl.register("alice")

	n := tbl.publish("alice", &chatpb.DeliveredMessage{ID: 1, Text: "hi"})
	if n != 1 {
		t.Fatalf("publish() delivered to %d subscribers, want 1", n)
	}

	select {
	case m := <-sub.queue:
		if m.ID != 1 || m.Text != "hi" {
			t.Errorf("queued message = %+v, want {1 hi}", m)
		}
	default:
		t.Fatal("expected a message on the subscription queue")
	}
}

func TestSubscriptionTablePublishNoSubscriber(t *testing.T) {
	tbl := newSubscriptionTable()
	n := tbl.publish("nobody", &chatpb.DeliveredMessage{ID: 1, Text: "hi"})
	if n != 0 {
		t.Errorf("publish() delivered to %d subscribers, want 0 (no live subscription)", n)
	}
}

func TestSubscriptionTableRemove(t *testing.T) {
	tbl := newSubscriptionTable()
	sub := tbl.register("alice")
	tbl.remove(sub)

	if sub.getState() != stateClosed {
		t.Errorf("state = %v, want stateClosed after remove", sub.getState())
	}
	if n := tbl.publish("alice", &chatpb.DeliveredMessage{ID: 1}); n != 0 {
		t.Errorf("publish() after remove delivered to %d subscribers, want 0", n)
	}
}

func TestSubscriptionOverflowClosesAndDrops(t *testing.T) {
	tbl := newSubscriptionTable()
	sub := tbl.register("alice")

	for i := 0; i < subscriptionQueueDepth; i++ {
		if !sub.push(&chatpb.DeliveredMessage{ID: int64(i)}) {
			t.Fatalf("push() failed before queue was full, at i=%d", i)
		}
	}
	// The queue is now full: one more publish should overflow and close it.
	n := tbl.publish("alice", &chatpb.DeliveredMessage{ID: 9999})
	if n != 0 {
		t.Errorf("publish() on an already-full queue delivered %d, want 0", n)
	}
	if sub.getState() != stateClosed {
		t.Errorf("state = %v, want stateClosed after overflow", sub.getState())
	}
}

func TestSubscriptionMultipleSubscribersForSameUser(t *testing.T) {
	tbl := newSubscriptionTable()
	a := tbl.register("alice")
	b := tbl.register("alice")

	n := tbl.publish("alice", &chatpb.DeliveredMessage{ID: 1})
	if n != 2 {
		t.Fatalf("publish() delivered to %d subscribers, want 2", n)
	}
	if len(a.queue) != 1 || len(b.queue) != 1 {
		t.Errorf("both subscriptions should have received the message")
	}
}
