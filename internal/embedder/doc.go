// Package embedder generates vector embeddings for listing text.
//
// Four providers are available: Jina AI and OpenAI (hosted, same request
// format), Ollama (self-hosted) and a local hashing embedder that needs no
// network and is the default.
//
// # Basic Usage
//
//	emb, err := embedder.New(embedder.Config{Provider: "local", CacheSize: 10000})
//	if err != nil {
//	    return err
//	}
//	defer emb.Close()
//
//	result, err := emb.GenerateEmbedding(ctx, embedder.EmbeddingRequest{
//	    Text: "Invoice OCR reads supplier invoices",
//	})
//
// # Provider Selection
//
// Config.Provider selects the backend:
//
//   - "jina": Jina AI, 1024 dimensions, needs APIKey
//   - "openai": OpenAI, 1536 dimensions, needs APIKey
//   - "ollama": Ollama at BaseURL (default http://localhost:11434)
//   - "local" or "": feature hashing, 384 dimensions
//
// BaseURL overrides the endpoint for the hosted providers as well, which is
// how tests and OpenAI-compatible gateways are wired in.
//
// # Caching
//
// Every provider can keep an LRU cache keyed by ComputeHash(model, text).
// Cached vectors are copied on read.
//
// # Error Handling
//
// Remote calls retry with exponential backoff on network errors, 5xx and
// 429 responses. Other 4xx responses fail at once. Exhausted retries return
// an error wrapping ErrProviderFailed:
//
//	if errors.Is(err, embedder.ErrProviderFailed) {
//	    // the listing stays without an embedding; backfill later
//	}
//
// RequestsPerSecond throttles outgoing calls with a token bucket.
package embedder
