package types

// SearchResult is a single fused search result.
type SearchResult struct {
	Entry *Entry
	Rank  int // Position in result set (1-based)

	// Scoring
	Score       float64 // Weighted reciprocal-rank fusion score
	VectorScore float32 // Raw vector similarity, 0 when absent from the vector list
	VectorRank  int     // 1-based, 0 when absent
	LexicalRank int     // 1-based, 0 when absent
}

// SimilarHit is one near-duplicate in a similarity report.
type SimilarHit struct {
	EntryID  string  `json:"entry_id"`
	Name     string  `json:"name"`
	Headline string  `json:"headline,omitempty"`
	Score    float32 `json:"score"`
}

// SimilarityReport lists Active entries similar to a piece of text, ordered
// by descending score.
type SimilarityReport struct {
	Hits []SimilarHit `json:"hits"`
}

// Empty reports whether no similar entries were found.
func (r *SimilarityReport) Empty() bool {
	return r == nil || len(r.Hits) == 0
}

// Submission is the outcome of starting a submission.
type Submission struct {
	EntryID string            `json:"entry_id"`
	Report  *SimilarityReport `json:"similarity_report,omitempty"`
}
