// Package track implements the tracked-object ledger used during page
// reconciliation.
//
// # Overview
//
// Each time a page's in-memory contents are rewritten to new on-disk
// blocks, the blocks the previous image occupied become garbage, and
// overflow items (values too large to store inline) may or may not still
// be referenced. The ledger remembers both so the reconciliation pass can
// release exactly what is dead: plain blocks are freed at the end of the
// pass, and overflow items move through a two-state lifecycle that keeps
// them alive for as long as some rewrite still cites them.
//
// # Lifecycle
//
// A single entry's kind moves through these states:
//
//	Empty → Block → Empty                            (freed at Resolve)
//	Empty → OverflowActive ⇄ OverflowDiscarded       (Reset / Reactivate)
//	OverflowDiscarded → Empty                        (freed at Resolve)
//
// A reconciliation pass always runs the same shape:
//
//	led.ResetOverflow()                  // assume every overflow item is dead
//	...
//	led.Add(kind, ref, addr, size)       // report blocks the rewrite obsoletes
//	ext, ok := led.ReactivateOverflow(r) // reuse a still-referenced item verbatim
//	...
//	err := led.Resolve(mgr)              // free everything still discarded
//
// Resolve aborts on the first allocator failure and may be retried:
// entries freed before the failure are Empty and skipped, so nothing is
// released twice.
//
// # Events
//
// Every state change can be reported to a Sink (see sink.go). Reporting is
// disabled by default and costs a single nil check when off; SlogSink
// plugs in a structured logger and Recorder captures events for tests.
//
// # Thread Safety
//
// A Ledger is NOT thread-safe. It belongs to one page's mutable
// reconciliation state, and the scheduler that rewrites pages guarantees
// exclusive access for the duration of a pass. Distinct pages, each with
// their own ledger, may be reconciled concurrently.
//
// # Related Packages
//
//   - github.com/strata-db/strata/block: the allocator Resolve frees extents through
//   - github.com/strata-db/strata/btree: the reconciliation writer driving the ledger
package track
