package channel

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/daqline/recwriter/pkg/record"
)

func TestMemSource_ReceiveTimeout(t *testing.T) {
	src := NewMemSource(1)

	start := time.Now()
	_, err := src.Receive(context.Background(), 10*time.Millisecond)
	if !errors.Is(err, ErrTimeoutExpired) {
		t.Fatalf("Receive on empty source = %v, want ErrTimeoutExpired", err)
	}
	if elapsed := time.Since(start); elapsed > 500*time.Millisecond {
		t.Errorf("Receive blocked %v, expected roughly the timeout", elapsed)
	}
}

func TestMemSource_PushReceive(t *testing.T) {
	src := NewMemSource(2)
	ctx := context.Background()

	want := record.Record{RunNumber: 7, TriggerNumber: 42}
	if err := src.Push(ctx, want); err != nil {
		t.Fatalf("Push: %v", err)
	}

	got, err := src.Receive(ctx, time.Second)
	if err != nil {
		t.Fatalf("Receive: %v", err)
	}
	if got.TriggerNumber != want.TriggerNumber || got.RunNumber != want.RunNumber {
		t.Errorf("Receive = %+v, want %+v", got, want)
	}
}

func TestMemSource_ReceiveCancelled(t *testing.T) {
	src := NewMemSource(1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := src.Receive(ctx, time.Minute)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Receive with cancelled ctx = %v, want context.Canceled", err)
	}
}

func TestMemSink_SendTimeoutWhenFull(t *testing.T) {
	sink := NewMemSink(1)
	ctx := context.Background()
	tok := record.CompletionToken{RunNumber: 7, TriggerNumber: 1}

	if err := sink.Send(ctx, tok, time.Second); err != nil {
		t.Fatalf("first Send: %v", err)
	}
	err := sink.Send(ctx, tok, 10*time.Millisecond)
	if !errors.Is(err, ErrSendTimeout) {
		t.Fatalf("Send on full sink = %v, want ErrSendTimeout", err)
	}

	got := <-sink.Tokens()
	if got.TriggerNumber != 1 {
		t.Errorf("consumed token = %+v, want trigger 1", got)
	}
}
