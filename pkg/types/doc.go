// Package types provides shared type definitions for the project-hunt service.
//
// This package defines the domain types used across the store, the indexes,
// the ranker and the submission workflow.
//
// # Entries
//
// Entry is a single project listing. It is created Pending, shown a
// similarity report, and then either confirmed (Active) or cancelled:
//
//	fields := types.Fields{
//	    Name:    "Invoice OCR",
//	    Summary: longDescription,
//	}
//	if err := fields.Validate(200); err != nil {
//	    return err
//	}
//
// # Errors
//
// Service operations fail with *Error values carrying a Kind. Callers match
// them with errors.Is against the kind sentinels:
//
//	if errors.Is(err, types.ErrInvalidState) {
//	    // entry was already confirmed or cancelled
//	}
//
// # Search Results
//
// SearchResult carries the joined Entry together with the fused score and the
// per-list ranks it was derived from. SimilarityReport lists near-duplicates
// ordered by descending vector similarity.
package types
