// Package btree holds the leaf-page structures and the reconciliation
// writer that rewrites a page's contents to disk.
//
// # Overview
//
// A Page is a sorted set of key/value items plus the extent of its last
// written image. Reconciler.Reconcile performs one reconciliation pass
// over a page: values at or above the overflow threshold go to their own
// blocks, the page image is encoded and written to fresh blocks, and the
// page's ledger (package track) releases everything the rewrite made
// obsolete. Overflow values whose bytes did not change between passes are
// reused verbatim through the ledger instead of rewritten.
//
// # Thread Safety
//
// Pages are not thread-safe; the caller schedules reconciliation so each
// page is touched by one goroutine at a time. Distinct pages may be
// reconciled concurrently against a shared block.Manager.
package btree
