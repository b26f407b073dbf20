package notification

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
)

type recordingWriter struct {
	msgs   []kafka.Message
	closed bool
}

func (w *recordingWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *recordingWriter) Close() error {
	w.closed = true
	return nil
}

func TestKafkaNotifierKeysByAccount(t *testing.T) {
	w := &recordingWriter{}
	n := &KafkaNotifier{writer: w}

	err := n.Send(context.Background(), Message{Kind: KindCoinsSpent, Destination: "acc-1", Coins: 100, Reference: "tutor-7"})
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if len(w.msgs) != 1 {
		t.Fatalf("expected 1 message, got %d", len(w.msgs))
	}
	if string(w.msgs[0].Key) != "acc-1" {
		t.Fatalf("expected key acc-1, got %q", w.msgs[0].Key)
	}

	var decoded Message
	if err := json.Unmarshal(w.msgs[0].Value, &decoded); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.Kind != KindCoinsSpent || decoded.Coins != 100 {
		t.Fatalf("unexpected payload: %+v", decoded)
	}
	if decoded.OccurredAt.IsZero() {
		t.Fatalf("expected occurred_at to be stamped")
	}

	if err := n.Close(); err != nil || !w.closed {
		t.Fatalf("close: %v", err)
	}
}

// stalledWriter blocks like a writer retrying against an unreachable broker.
type stalledWriter struct{}

func (stalledWriter) WriteMessages(ctx context.Context, _ ...kafka.Message) error {
	<-ctx.Done()
	return ctx.Err()
}

func (stalledWriter) Close() error { return nil }

func TestKafkaNotifierSendGivesUpAfterTimeout(t *testing.T) {
	n := &KafkaNotifier{writer: stalledWriter{}, timeout: 20 * time.Millisecond}

	start := time.Now()
	err := n.Send(context.Background(), Message{Kind: KindCoinsSpent, Destination: "acc-1"})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("send blocked for %s", elapsed)
	}
}

func TestLoggerNotifierNilSafe(t *testing.T) {
	var n *LoggerNotifier
	if err := n.Send(context.Background(), Message{Kind: KindOrderExpired}); err != nil {
		t.Fatalf("nil notifier should be a no-op, got %v", err)
	}
}
