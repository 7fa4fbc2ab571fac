// Package embedder turns query and memory text into vector embeddings.
//
// Four providers implement the Embedder interface: Jina AI, OpenAI,
// Ollama and a deterministic local provider that needs no network.
// Remote providers retry transient failures with the shared backoff
// policy from internal/retry and report failures as *types.EmbeddingError.
//
// # Basic Usage
//
//	emb, err := embedder.New(embedder.Config{Provider: "ollama"})
//	if err != nil {
//	    return err
//	}
//	defer emb.Close()
//
//	result, err := emb.GenerateEmbedding(ctx, embedder.EmbeddingRequest{
//	    Text: "how do we rotate the signing keys",
//	})
//
// # Provider Selection
//
// When Config.Provider is empty the provider is detected from the
// environment:
//
//  1. JINA_API_KEY set: Jina AI
//  2. OPENAI_API_KEY set: OpenAI
//  3. Otherwise: local (offline mode)
//
// # Caching
//
// Providers do not cache. Cache is a content-addressed LRU keyed by the
// SHA-256 of the exact text and is owned by the search engine:
//
//	cache := embedder.NewCache(1000)
//	if vec, ok := cache.Get(text); ok {
//	    return vec
//	}
//	cache.Put(text, vec)
//
// Values are copied in and out, so callers may mutate what they receive.
package embedder
