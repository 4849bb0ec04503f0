package storage

import (
	"context"

	"github.com/daqline/recwriter/pkg/record"
)

// TrashCan accepts and discards every record. Useful when operators want
// the pipeline's accounting and completion tokens without persistence.
type TrashCan struct{}

// NewTrashCan creates a backend that discards all writes.
func NewTrashCan() *TrashCan {
	return &TrashCan{}
}

func (*TrashCan) Write(context.Context, record.Record) error  { return nil }
func (*TrashCan) PrepareForRun(context.Context, uint32) error { return nil }
func (*TrashCan) FinishWithRun(context.Context, uint32) error { return nil }
func (*TrashCan) Close() error                                { return nil }
