// Package tangguh provides a resilient API-client core: the coordination
// layer between application code and an unreliable HTTP backend.
//
//   - Single-flight request coalescing (concurrent identical calls share one
//     network operation, any verb)
//   - TTL response cache with substring invalidation for GET requests
//   - At-most-once credential refresh on 401 with transparent replay
//   - Bounded exponential-backoff retries returning structured results
//   - Error classification into a fixed taxonomy with user-facing messages
//   - Two-scope credential persistence (durable file vs session memory)
//   - Token bucket rate limiting and circuit breaking (opt-in)
//   - Prometheus metrics and lightweight structured debug logging
//
// Design goals:
//   - Small surface area – functional options configure everything
//   - All coordination state owned by an explicitly constructed *Client
//   - Safe concurrent use of a single *Client instance
//   - Extensibility via pluggable cache backends, storage, and listeners
//
// Typical usage:
//
//	client := tangguh.New(
//	    tangguh.WithBaseURL("https://api.example.com"),
//	    tangguh.WithCacheTTL(5*time.Minute),
//	    tangguh.WithRefreshPath("/auth/refresh"),
//	)
//	resp, err := client.Get(ctx, "/api/users", nil)
//
// Retries are opt-in per call through Client.Run, which is the only layer
// that converts terminal failures into structured Result values; everything
// below it propagates errors unchanged.
package tangguh
