// Package searchtool defines the document search port (interface).
// The three primitives are opaque: bounded concurrency, bounded duration,
// return text or signal failure. Time-boxing, output caps and the global
// concurrency budget are enforced by the search guard, not by implementations.
package searchtool

import "context"

// Tools is the port interface for the document search primitives.
type Tools interface {
	// LookupFilenames finds documents in the library whose name matches query.
	LookupFilenames(ctx context.Context, query string) (string, error)

	// SearchInDocument runs a full-text search inside one document.
	SearchInDocument(ctx context.Context, documentRef, keywords string) (string, error)

	// ExtractDocument returns the whole text of one document.
	ExtractDocument(ctx context.Context, documentRef string) (string, error)
}
