// Package handlers contains HTTP handlers for the docpublish HTTP API.
//
// This package provides handlers for:
//   - Document upload (POST /upload)
//   - Health and publish history endpoints (monitoring)
//   - Shared response helper functions
//
// All handlers report failures through the foundation/errors HTTPErrorAdapter,
// so every non-200 response carries a JSON body with the error code and the
// context needed to diagnose it.
package handlers
