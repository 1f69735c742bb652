// Package scheduler provides the long-running control loop that turns
// persisted job definitions into queue submissions.
//
// The loop holds an in-memory table of entries, repeatedly computes the
// minimum wait across them, sleeps that long (waking early on cancellation),
// dispatches whatever is due, and batches run-statistics writes back to
// storage. External edits are detected through the shared change marker and
// applied by reloading the table; dirty statistics are always flushed before
// a reload so no fire is lost.
package scheduler
