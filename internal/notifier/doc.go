// Package notifier is the dispatch engine of the fan-out service.
//
// A Registry holds the set of enabled channels. Notify takes a snapshot of
// the registry, pairs every eligible recipient with every channel and runs
// each pair as one unit of work on a bounded worker pool. Per-send problems
// (missing contact, transport errors, timeouts, channel panics) are recorded
// in the returned Report and never escape as errors.
//
// # Cancellation
//
// Canceling the Notify context stops new sends from being issued. Sends that
// are already running finish or time out on their own, and the partial
// Report is returned with Canceled set.
package notifier
