// Package ranker fuses semantic and keyword results into one ordering of
// Active entries.
//
// Two modes share one pipeline:
//   - Open: vector (threshold 0.3, 16 hits) and lexical (8 hits) searches run
//     concurrently and are merged with weighted Reciprocal Rank Fusion
//   - Dedup: vector only (threshold 0.6, 10 hits), truncated to 5 results
//
// The fused score of an id is the sum over lists of weight/(k+rank), with
// k=10, vector weight 2 and lexical weight 1. Ties go to the better vector
// rank and then the smaller id, so equal inputs always rank the same.
//
// # Basic Usage
//
//	r, err := ranker.New(store, idx.Vector, idx.Lexical, ranker.Options{})
//
//	resp, err := r.Search(ctx, ranker.Request{
//	    Text:      "invoice ocr",
//	    Mode:      ranker.ModeDedup,
//	    ExcludeID: entryID,
//	})
//
//	for _, res := range resp.Results {
//	    fmt.Printf("[%d] %s (%.2f)\n", res.Rank, res.Entry.Name, res.VectorScore)
//	}
package ranker
