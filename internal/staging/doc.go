// Package staging owns the transaction-scoped working copies that publish
// transactions write into.
//
// Every Acquire clones the remote into a new uniquely named directory under
// the manager's base directory, so concurrent transactions never share files.
// An Area is released exactly once on every exit path; the Janitor removes
// directories orphaned by a crashed process.
package staging
