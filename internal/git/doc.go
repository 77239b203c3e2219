// Package git is the version-control transport used by publish transactions.
//
// It clones the configured content repository into a caller-supplied
// directory, stages exact paths, records a single commit and pushes it back
// to the tracked branch. Failures are returned as classified errors:
// anything that prevents a clone is remote_unavailable and anything that
// prevents a push is push_rejected.
package git
