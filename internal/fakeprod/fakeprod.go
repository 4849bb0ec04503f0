// Package fakeprod generates synthetic records for exercising the write
// pipeline without an upstream data source.
package fakeprod

import (
	"context"
	"math/rand"
	"time"

	"github.com/daqline/recwriter/pkg/channel"
	"github.com/daqline/recwriter/pkg/log"
	"github.com/daqline/recwriter/pkg/record"
)

// Config controls the shape and pace of generated records.
type Config struct {
	// RunNumber stamps every generated record.
	RunNumber uint32

	// PayloadBytes is the payload size of each record part.
	PayloadBytes int

	// PartsPerTrigger is how many sequence parts each trigger number
	// gets. One means single-part records.
	PartsPerTrigger int

	// ResponseDelay pauses between parts, simulating upstream readout
	// latency. Zero produces at full speed.
	ResponseDelay time.Duration

	// TriggerCount stops generation after this many triggers. Zero
	// means run until cancelled.
	TriggerCount uint64

	// Seed seeds the payload generator so runs are reproducible.
	Seed int64
}

// Producer pushes synthetic records into a memory source.
type Producer struct {
	cfg    Config
	dest   *channel.MemSource
	logger log.Logger
	rng    *rand.Rand
}

// New creates a producer feeding the given source.
func New(cfg Config, dest *channel.MemSource, logger log.Logger) *Producer {
	if cfg.PartsPerTrigger < 1 {
		cfg.PartsPerTrigger = 1
	}
	if cfg.PayloadBytes < 0 {
		cfg.PayloadBytes = 0
	}
	return &Producer{
		cfg:    cfg,
		dest:   dest,
		logger: logger,
		rng:    rand.New(rand.NewSource(cfg.Seed)),
	}
}

// Produce generates records until the trigger count is reached or ctx
// is cancelled. Returns the number of triggers fully produced.
func (p *Producer) Produce(ctx context.Context) (uint64, error) {
	maxSeq := uint16(p.cfg.PartsPerTrigger - 1)

	var produced uint64
	for trigger := uint64(1); ; trigger++ {
		if p.cfg.TriggerCount > 0 && produced >= p.cfg.TriggerCount {
			break
		}
		if ctx.Err() != nil {
			break
		}

		for seq := uint16(0); seq <= maxSeq; seq++ {
			payload := make([]byte, p.cfg.PayloadBytes)
			p.rng.Read(payload) //nolint:errcheck

			rec := record.Record{
				RunNumber:         p.cfg.RunNumber,
				TriggerNumber:     trigger,
				SequenceNumber:    seq,
				MaxSequenceNumber: maxSeq,
				Payload:           payload,
				TotalSizeBytes:    uint64(len(payload)),
			}
			if err := p.dest.Push(ctx, rec); err != nil {
				p.logger.Warn("producer stopping",
					log.Uint64("trigger", trigger),
					log.Err(err),
				)
				return produced, err
			}

			if p.cfg.ResponseDelay > 0 {
				select {
				case <-ctx.Done():
					return produced, ctx.Err()
				case <-time.After(p.cfg.ResponseDelay):
				}
			}
		}
		produced++
	}

	p.logger.Info("producer finished",
		log.Uint32("run", p.cfg.RunNumber),
		log.Uint64("triggers", produced),
	)
	return produced, nil
}
