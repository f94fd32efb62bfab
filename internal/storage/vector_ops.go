package storage

import (
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"
	"unicode"
)

// Vector operations

func (s *SQLiteStorage) upsertVectorWithQuerier(ctx context.Context, q querier, v *Vector) error {
	if v.Namespace == "" || v.Key == "" {
		return fmt.Errorf("vector namespace and key are required")
	}
	if len(v.Vector) == 0 {
		return fmt.Errorf("vector for %s is empty", v.Key)
	}
	if v.CreatedAt.IsZero() {
		v.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO vectors (namespace, key, vector, dimension, provider, model, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(namespace, key) DO UPDATE SET
			vector = excluded.vector,
			dimension = excluded.dimension,
			provider = excluded.provider,
			model = excluded.model,
			created_at = excluded.created_at
	`
	_, err := q.ExecContext(ctx, query,
		v.Namespace, v.Key, serializeVector(v.Vector), len(v.Vector), v.Provider, v.Model, v.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert vector: %w", err)
	}
	return nil
}

func (s *SQLiteStorage) UpsertVector(ctx context.Context, vector *Vector) error {
	return s.upsertVectorWithQuerier(ctx, s.querier(), vector)
}

// deleteVectorWithQuerier removes a vector. Deleting an absent key is not an error.
func (s *SQLiteStorage) deleteVectorWithQuerier(ctx context.Context, q querier, namespace, key string) error {
	if _, err := q.ExecContext(ctx, `DELETE FROM vectors WHERE namespace = ? AND key = ?`, namespace, key); err != nil {
		return fmt.Errorf("failed to delete vector: %w", err)
	}
	return nil
}

func (s *SQLiteStorage) DeleteVector(ctx context.Context, namespace, key string) error {
	return s.deleteVectorWithQuerier(ctx, s.querier(), namespace, key)
}

func (s *SQLiteStorage) countVectorsWithQuerier(ctx context.Context, q querier, namespace string) (int, error) {
	var n int
	if err := q.QueryRowContext(ctx, `SELECT COUNT(*) FROM vectors WHERE namespace = ?`, namespace).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count vectors: %w", err)
	}
	return n, nil
}

func (s *SQLiteStorage) CountVectors(ctx context.Context, namespace string) (int, error) {
	return s.countVectorsWithQuerier(ctx, s.querier(), namespace)
}

func (s *SQLiteStorage) SearchVector(ctx context.Context, namespace string, vector []float32, limit int, minScore float64) ([]VectorResult, error) {
	return searchVector(ctx, s.querier(), namespace, vector, limit, minScore)
}

func (s *SQLiteStorage) SearchText(ctx context.Context, query string, limit int) ([]TextResult, error) {
	return searchText(ctx, s.querier(), query, limit)
}

// searchVector performs vector similarity search using cosine similarity
func searchVector(ctx context.Context, q querier, namespace string, queryVector []float32, limit int, minScore float64) ([]VectorResult, error) {
	if limit <= 0 {
		return []VectorResult{}, nil
	}
	if VectorExtensionAvailable {
		return searchVectorOptimized(ctx, q, namespace, queryVector, limit, minScore)
	}
	return searchVectorFallback(ctx, q, namespace, queryVector, limit, minScore)
}

// searchVectorOptimized uses sqlite-vec's vec_distance_cosine. The distance
// is converted to a similarity so both paths return the same scale.
func searchVectorOptimized(ctx context.Context, q querier, namespace string, queryVector []float32, limit int, minScore float64) ([]VectorResult, error) {
	blob := serializeVector(queryVector)
	query := `
		SELECT key, similarity FROM (
			SELECT key, 1.0 - vec_distance_cosine(vector, ?) AS similarity
			FROM vectors
			WHERE namespace = ? AND dimension = ?
		)
		WHERE similarity >= ?
		ORDER BY similarity DESC, key
		LIMIT ?
	`
	rows, err := q.QueryContext(ctx, query, blob, namespace, len(queryVector), minScore, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to execute vector search: %w", err)
	}
	defer func() { _ = rows.Close() }()

	results := make([]VectorResult, 0, limit)
	for rows.Next() {
		var result VectorResult
		if err := rows.Scan(&result.Key, &result.SimilarityScore); err != nil {
			return nil, fmt.Errorf("failed to scan result: %w", err)
		}
		results = append(results, result)
	}
	return results, rows.Err()
}

// searchVectorFallback computes cosine similarity in Go for purego builds
func searchVectorFallback(ctx context.Context, q querier, namespace string, queryVector []float32, limit int, minScore float64) ([]VectorResult, error) {
	rows, err := q.QueryContext(ctx, `SELECT key, vector FROM vectors WHERE namespace = ? AND dimension = ?`,
		namespace, len(queryVector))
	if err != nil {
		return nil, fmt.Errorf("failed to query vectors: %w", err)
	}
	defer func() { _ = rows.Close() }()

	candidates, err := computeSimilarityScores(rows, queryVector, minScore)
	if err != nil {
		return nil, err
	}
	sortCandidates(candidates)
	return buildVectorResults(candidates, limit), nil
}

// searchText performs BM25 full-text search over the derived text. Status is
// not filtered here.
func searchText(ctx context.Context, q querier, query string, limit int) ([]TextResult, error) {
	match := buildFTSQuery(query)
	if match == "" {
		return []TextResult{}, nil
	}
	if limit <= 0 {
		return []TextResult{}, nil
	}

	sqlQuery := `
		SELECT e.id, bm25(entries_fts) AS score
		FROM entries_fts
		INNER JOIN entries e ON e.rowid = entries_fts.rowid
		WHERE entries_fts MATCH ?
		ORDER BY score, e.id
		LIMIT ?
	`
	rows, err := q.QueryContext(ctx, sqlQuery, match, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to execute FTS search: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return collectTextResults(rows)
}

// Helper functions

// computeSimilarityScores processes rows and computes cosine similarity
func computeSimilarityScores(rows *sql.Rows, queryVector []float32, minScore float64) ([]candidate, error) {
	candidates := make([]candidate, 0, 256)

	for rows.Next() {
		var key string
		var blob []byte
		if err := rows.Scan(&key, &blob); err != nil {
			return nil, err
		}

		vector := deserializeVector(blob)
		if len(vector) != len(queryVector) {
			continue
		}

		similarity := cosineSimilarity(queryVector, vector)
		if similarity < minScore {
			continue
		}
		candidates = append(candidates, candidate{key: key, score: similarity})
	}

	return candidates, rows.Err()
}

// buildVectorResults creates VectorResult slice from candidates
func buildVectorResults(candidates []candidate, limit int) []VectorResult {
	if limit > len(candidates) {
		limit = len(candidates)
	}

	results := make([]VectorResult, limit)
	for i := 0; i < limit; i++ {
		results[i] = VectorResult{
			Key:             candidates[i].key,
			SimilarityScore: candidates[i].score,
		}
	}
	return results
}

// collectTextResults converts BM25 scores (negative, lower is better) to
// positive normalized scores, keeping row order.
func collectTextResults(rows *sql.Rows) ([]TextResult, error) {
	results := make([]TextResult, 0)

	for rows.Next() {
		var result TextResult
		if err := rows.Scan(&result.EntryID, &result.BM25Score); err != nil {
			return nil, err
		}
		result.BM25Score = 1.0 / (1.0 + math.Abs(result.BM25Score)/50.0)
		results = append(results, result)
	}

	return results, rows.Err()
}

// serializeVector converts a float32 slice to a byte blob (little-endian)
func serializeVector(vector []float32) []byte {
	blob := make([]byte, len(vector)*4)
	for i, v := range vector {
		binary.LittleEndian.PutUint32(blob[i*4:], math.Float32bits(v))
	}
	return blob
}

// deserializeVector converts a byte blob back to a float32 slice
func deserializeVector(blob []byte) []float32 {
	vector := make([]float32, len(blob)/4)
	for i := range vector {
		bits := binary.LittleEndian.Uint32(blob[i*4:])
		vector[i] = math.Float32frombits(bits)
	}
	return vector
}

// cosineSimilarity computes the cosine similarity between two vectors
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}

	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
}

// candidate represents a vector key with its similarity score
type candidate struct {
	key   string
	score float64
}

// sortCandidates sorts by score descending, then key, so equal scores come
// back in a stable order.
func sortCandidates(candidates []candidate) {
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].score != candidates[j].score {
			return candidates[i].score > candidates[j].score
		}
		return candidates[i].key < candidates[j].key
	})
}

// buildFTSQuery turns free text into an FTS5 MATCH expression. Each word is
// quoted so FTS5 operators and punctuation in user input are treated as
// plain terms; words are OR-ed and bm25 does the ranking.
func buildFTSQuery(query string) string {
	words := strings.FieldsFunc(query, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	if len(words) == 0 {
		return ""
	}

	seen := make(map[string]bool, len(words))
	terms := make([]string, 0, len(words))
	for _, w := range words {
		w = strings.ToLower(w)
		if seen[w] {
			continue
		}
		seen[w] = true
		terms = append(terms, `"`+w+`"`)
	}
	return strings.Join(terms, " OR ")
}

// SerializeVector is an exported helper for testing
func SerializeVector(vector []float32) []byte {
	return serializeVector(vector)
}

// DeserializeVector is an exported helper for testing
func DeserializeVector(blob []byte) []float32 {
	return deserializeVector(blob)
}

// CosineSimilarity is an exported helper for testing
func CosineSimilarity(a, b []float32) float64 {
	return cosineSimilarity(a, b)
}
