// Package memory stores transcribed voice notes with vector embeddings
// and retrieves the most semantically relevant past notes for a query.
//
// Architecture:
//   - Store: durable record storage (SQLite for local use)
//   - Searcher: top-k similarity scoring over a cached snapshot of the
//     store, with explicit Stale/Ready validity tracking
//   - Embedder: text-to-vector conversion (mock for testing, OpenAI
//     API, or local ONNX model)
//   - Service: orchestrates append + invalidate + search
//
// The searcher snapshot is invalidated on every successful append and
// rebuilt lazily on the next search, so a single-threaded caller always
// sees its own writes while bursts of appends pay for one reload.
//
// Target scale is a personal archive: the default searcher is an exact
// brute-force cosine scan, with the Searcher interface narrow enough to
// swap in an indexed backend (see memory/search/chromem).
package memory
