// Package record defines the data types flowing through the write
// pipeline: the [Record] being persisted and the [CompletionToken]
// announced downstream once a record group is fully processed.
//
// A record is one part of a logical record group identified by its
// trigger number. Groups with MaxSequenceNumber == 0 are self-contained;
// otherwise parts 0..MaxSequenceNumber must all arrive before the group
// is complete.
package record
