package app

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/daqline/recwriter/pkg/channel"
	"github.com/daqline/recwriter/pkg/log"
	"github.com/daqline/recwriter/pkg/record"
	"github.com/daqline/recwriter/pkg/storage"
)

func testWorkerConfig(prescale int) WorkerConfig {
	return WorkerConfig{
		ReceiveTimeout:    10 * time.Millisecond,
		TokenSendTimeout:  100 * time.Millisecond,
		Prescale:          prescale,
		MinRetryWait:      time.Microsecond,
		MaxRetryWait:      time.Millisecond,
		RetryGrowthFactor: 2,
		TokenDestination:  "dataflow0",
		StorageEnabled:    true,
	}
}

// runWorker feeds records through a worker and returns the backend and
// collected tokens once the source has drained and expectTokens tokens
// have been emitted.
func runWorker(t *testing.T, cfg WorkerConfig, runNumber uint32, recs []record.Record, expectTokens int) (*storage.Memory, []record.CompletionToken) {
	t.Helper()

	source := channel.NewMemSource(len(recs) + 1)
	sink := channel.NewMemSink(len(recs) + 1)
	backend := storage.NewMemory()
	metrics := NewMetrics()
	w := NewWorker(cfg, runNumber, source, backend, sink, metrics, log.NewNoopLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := w.Prepare(ctx); err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	for _, r := range recs {
		if err := source.Push(ctx, r); err != nil {
			t.Fatalf("Push: %v", err)
		}
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		w.Run(ctx)
	}()

	// wait for the source to drain and all expected tokens to land,
	// then stop the loop
	deadline := time.Now().Add(5 * time.Second)
	for metrics.ReceivedTotal() < uint64(len(recs)) || sink.Len() < expectTokens {
		if time.Now().After(deadline) {
			t.Fatalf("worker stalled: received %d/%d records, %d/%d tokens",
				metrics.ReceivedTotal(), len(recs), sink.Len(), expectTokens)
		}
		time.Sleep(time.Millisecond)
	}
	cancel()
	wg.Wait()
	w.Finish(context.Background())

	var toks []record.CompletionToken
	for {
		select {
		case tok := <-sink.Tokens():
			toks = append(toks, tok)
			continue
		default:
		}
		break
	}
	return backend, toks
}

func singlePart(run uint32, trigger uint64) record.Record {
	return record.Record{
		RunNumber:      run,
		TriggerNumber:  trigger,
		TotalSizeBytes: 32,
		Payload:        []byte("payload"),
	}
}

func TestWorker_PrescaleThreeScenario(t *testing.T) {
	// run 7, prescale 3, single-part triggers 1..5:
	// persisted set must be {1, 4}; tokens for all five.
	var recs []record.Record
	for trig := uint64(1); trig <= 5; trig++ {
		recs = append(recs, singlePart(7, trig))
	}

	backend, toks := runWorker(t, testWorkerConfig(3), 7, recs, 5)

	written := backend.Records(7)
	if len(written) != 2 {
		t.Fatalf("persisted %d records, want 2", len(written))
	}
	if written[0].TriggerNumber != 1 || written[1].TriggerNumber != 4 {
		t.Errorf("persisted triggers = {%d, %d}, want {1, 4}",
			written[0].TriggerNumber, written[1].TriggerNumber)
	}
	if len(toks) != 5 {
		t.Fatalf("emitted %d tokens, want 5", len(toks))
	}
	seen := map[uint64]bool{}
	for _, tok := range toks {
		if tok.RunNumber != 7 || tok.Destination != "dataflow0" {
			t.Errorf("token %+v has wrong run or destination", tok)
		}
		if seen[tok.TriggerNumber] {
			t.Errorf("duplicate token for trigger %d", tok.TriggerNumber)
		}
		seen[tok.TriggerNumber] = true
	}
}

func TestWorker_PrescaleOnePersistsEverything(t *testing.T) {
	var recs []record.Record
	for trig := uint64(1); trig <= 4; trig++ {
		recs = append(recs, singlePart(7, trig))
	}

	backend, toks := runWorker(t, testWorkerConfig(1), 7, recs, 4)

	if got := len(backend.Records(7)); got != 4 {
		t.Errorf("persisted %d records, want all 4", got)
	}
	if len(toks) != 4 {
		t.Errorf("emitted %d tokens, want 4", len(toks))
	}
}

func TestWorker_MultiPartGroupScenario(t *testing.T) {
	// run 7, prescale 1, one trigger with max sequence number 2
	// delivered as three parts: three writes, exactly one token, last.
	var recs []record.Record
	for seq := uint16(0); seq <= 2; seq++ {
		recs = append(recs, record.Record{
			RunNumber:         7,
			TriggerNumber:     100,
			SequenceNumber:    seq,
			MaxSequenceNumber: 2,
			TotalSizeBytes:    16,
		})
	}

	backend, toks := runWorker(t, testWorkerConfig(1), 7, recs, 1)

	if got := len(backend.Records(7)); got != 3 {
		t.Errorf("persisted %d parts, want 3", got)
	}
	if len(toks) != 1 {
		t.Fatalf("emitted %d tokens, want exactly 1", len(toks))
	}
	if toks[0].TriggerNumber != 100 {
		t.Errorf("token trigger = %d, want 100", toks[0].TriggerNumber)
	}
}

func TestWorker_ForeignRunRecordDropped(t *testing.T) {
	recs := []record.Record{
		singlePart(7, 1),
		singlePart(9, 2), // foreign run
		singlePart(7, 3),
	}

	backend, toks := runWorker(t, testWorkerConfig(1), 7, recs, 2)

	if got := len(backend.Records(9)); got != 0 {
		t.Error("foreign-run record reached the backend")
	}
	if got := len(backend.Records(7)); got != 2 {
		t.Errorf("persisted %d own-run records, want 2", got)
	}
	if len(toks) != 2 {
		t.Fatalf("emitted %d tokens, want 2 (none for the foreign record)", len(toks))
	}
	for _, tok := range toks {
		if tok.TriggerNumber == 2 {
			t.Error("token emitted for foreign-run record")
		}
	}
}

func TestWorker_StorageDisabledStillEmitsTokens(t *testing.T) {
	cfg := testWorkerConfig(1)
	cfg.StorageEnabled = false
	recs := []record.Record{singlePart(7, 1), singlePart(7, 2)}

	backend, toks := runWorker(t, cfg, 7, recs, 2)

	if got := len(backend.Records(7)); got != 0 {
		t.Errorf("persisted %d records with storage disabled, want 0", got)
	}
	if backend.Prepared(7) || backend.Finished(7) {
		t.Error("per-run backend hooks invoked with storage disabled")
	}
	if len(toks) != 2 {
		t.Errorf("emitted %d tokens, want 2", len(toks))
	}
}

func TestWorker_PrescaleRestartsEachRun(t *testing.T) {
	// Two consecutive runs sharing the lifetime metrics, prescale 3,
	// one record each. The prescale counter is run-scoped, so the
	// first record of the second run must be persisted no matter
	// where the first run left off.
	metrics := NewMetrics()
	backend := storage.NewMemory()

	for _, run := range []uint32{1, 2} {
		source := channel.NewMemSource(2)
		sink := channel.NewMemSink(2)
		w := NewWorker(testWorkerConfig(3), run, source, backend, sink, metrics, log.NewNoopLogger())

		ctx, cancel := context.WithCancel(context.Background())
		if err := w.Prepare(ctx); err != nil {
			t.Fatalf("Prepare run %d: %v", run, err)
		}
		if err := source.Push(ctx, singlePart(run, 1)); err != nil {
			t.Fatalf("Push: %v", err)
		}

		done := make(chan struct{})
		go func() {
			w.Run(ctx)
			close(done)
		}()
		deadline := time.Now().Add(5 * time.Second)
		for sink.Len() < 1 {
			if time.Now().After(deadline) {
				t.Fatalf("run %d: token never emitted", run)
			}
			time.Sleep(time.Millisecond)
		}
		cancel()
		<-done
		w.Finish(context.Background())

		if got := len(backend.Records(run)); got != 1 {
			t.Fatalf("run %d: first record persisted %d times, want 1", run, got)
		}
	}
}

func TestWorker_StopsWithinReceiveTimeout(t *testing.T) {
	source := channel.NewMemSource(1)
	sink := channel.NewMemSink(1)
	w := NewWorker(testWorkerConfig(1), 7, source, storage.NewMemory(), sink, NewMetrics(), log.NewNoopLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(done)
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker did not stop within the receive timeout after cancellation")
	}
}

func TestWorker_PrepareFailureIsFatal(t *testing.T) {
	source := channel.NewMemSource(1)
	sink := channel.NewMemSink(1)
	w := NewWorker(testWorkerConfig(1), 7, source, failingPrepareBackend{}, sink, NewMetrics(), log.NewNoopLogger())

	if err := w.Prepare(context.Background()); err == nil {
		t.Fatal("Prepare succeeded despite backend failure")
	}
}

type failingPrepareBackend struct{}

func (failingPrepareBackend) Write(context.Context, record.Record) error { return nil }
func (failingPrepareBackend) PrepareForRun(context.Context, uint32) error {
	return context.DeadlineExceeded
}
func (failingPrepareBackend) FinishWithRun(context.Context, uint32) error { return nil }
func (failingPrepareBackend) Close() error                                { return nil }
