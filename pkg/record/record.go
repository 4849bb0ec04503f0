package record

import "fmt"

// Record is one unit of data to be persisted, possibly one of several
// ordered parts sharing a trigger number. Records are immutable once
// received; ownership transfers from the input channel to the pipeline
// on receipt.
type Record struct {
	// RunNumber identifies the data-taking run this record belongs to.
	RunNumber uint32

	// TriggerNumber groups all parts of one logical record.
	TriggerNumber uint64

	// SequenceNumber is the zero-based part index within the group.
	SequenceNumber uint16

	// MaxSequenceNumber is the highest sequence number expected for
	// this trigger number. Zero means the record is self-contained.
	MaxSequenceNumber uint16

	// Payload is the record data.
	Payload []byte

	// TotalSizeBytes is the total serialized size of the record,
	// header included. Used for byte accounting; may exceed
	// len(Payload).
	TotalSizeBytes uint64
}

// ID returns a compact human-readable identifier for logging.
func (r Record) ID() string {
	return fmt.Sprintf("run %d trigger %d seq %d/%d",
		r.RunNumber, r.TriggerNumber, r.SequenceNumber, r.MaxSequenceNumber)
}

// SinglePart reports whether the record forms a complete group on its own.
func (r Record) SinglePart() bool {
	return r.MaxSequenceNumber == 0
}

// CompletionToken signals that no further writes for a trigger number
// will occur, so downstream holders may release any resources they kept
// for it. It carries no payload beyond identity.
type CompletionToken struct {
	// RunNumber is the run the completed group belongs to.
	RunNumber uint32 `json:"run_number"`

	// TriggerNumber identifies the completed record group.
	TriggerNumber uint64 `json:"trigger_number"`

	// Destination names the consumer the token is addressed to.
	Destination string `json:"destination"`
}

// SentinelToken is announced once at configuration time to signal
// presence to the token consumer before any run starts.
func SentinelToken(destination string) CompletionToken {
	return CompletionToken{RunNumber: 0, TriggerNumber: 0, Destination: destination}
}
