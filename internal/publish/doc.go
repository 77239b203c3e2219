// Package publish runs publish transactions.
//
// A transaction validates a batch, takes the process-wide publish lock,
// clones a fresh staging area, places every file, prepends one index entry
// per file, commits exactly the touched paths and pushes. Any failure before
// the push completes discards the staging area, so the remote only ever
// sees whole batches.
package publish
