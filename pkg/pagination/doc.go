// Package pagination walks the viewer's repository connections and fans
// out per-repository requests.
//
// Collector issues one combined GraphQL query per page carrying two
// independent cursors, one for owned repositories and one for
// repositories contributed to. Each connection finishes on its own; the
// loop ends once both are exhausted. Keys are admitted at most once,
// owned before contributed, and their language edges are folded into a
// LanguageTally.
//
// FetchAll runs a per-repository operation over a key list in fixed-size
// batches:
//
//	views := pagination.FetchAll(ctx, logger, "views", keys, 10, fetchViews)
//
// All calls in a batch complete before the next batch starts, so the
// number of in-flight requests never exceeds the batch size. Failures
// are logged and yield the zero value for that key.
package pagination
