package queue

import (
	"context"
	"encoding/json"
	"runtime"
	"testing"
	"time"
)

func TestInMemoryRoundTrip(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	q := NewInMemory(4)
	want := Message{Type: "sync", Body: json.RawMessage(`{"kind":"status"}`)}
	if err := q.Publish(ctx, want); err != nil {
		t.Fatalf("publish: %v", err)
	}

	msgs, err := q.Consume(ctx)
	if err != nil {
		t.Fatalf("consume: %v", err)
	}
	select {
	case got := <-msgs:
		if got.Type != want.Type || string(got.Body) != string(want.Body) {
			t.Fatalf("got %+v, want %+v", got, want)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for message")
	}
}

func TestInMemoryPublishCancelled(t *testing.T) {
	q := NewInMemory(0)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := q.Publish(ctx, Message{Type: "sync"}); err == nil {
		t.Fatal("expected error publishing to full queue with cancelled context")
	}
}

func TestInMemoryConsumeStopsOnCancel(t *testing.T) {
	before := runtime.NumGoroutine()

	q := NewInMemory(1)
	ctx, cancel := context.WithCancel(context.Background())
	if _, err := q.Consume(ctx); err != nil {
		t.Fatalf("consume: %v", err)
	}
	if err := q.Publish(context.Background(), Message{Type: "sync"}); err != nil {
		t.Fatalf("publish: %v", err)
	}

	// Cancel with a message pending and no reader; the forwarder must exit
	// instead of blocking forever on the send.
	cancel()
	deadline := time.Now().Add(time.Second)
	for runtime.NumGoroutine() > before {
		if time.Now().After(deadline) {
			t.Fatalf("forwarder leaked: %d goroutines, started with %d", runtime.NumGoroutine(), before)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestMessageEnvelopeJSON(t *testing.T) {
	msg := Message{Type: "sync", Body: json.RawMessage(`{"studentId":"abc"}`)}
	payload, err := json.Marshal(msg)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var decoded Message
	if err := json.Unmarshal(payload, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded.Type != "sync" || string(decoded.Body) != `{"studentId":"abc"}` {
		t.Fatalf("round trip mismatch: %+v", decoded)
	}
}
