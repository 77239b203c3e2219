// Package upload turns an incoming batch into validated Items.
//
// It owns the wire format (repeated "file" parts with positional title_N and
// category_N fields), the reloadable acceptance policy and the filename
// sanitizer. Every check here runs before a publish transaction starts, so a
// rejected batch never touches the remote.
package upload
