// Package cache stores aggregated J1QL query results in Redis.
//
// The cache is optional and off by default: query results describe a graph
// that changes underneath the caller, so a cached result is only as fresh as
// the TTL the caller chose. When enabled the client consults the cache before
// running any pagination engine and stores complete results only; partial
// results are never cached.
//
// # Basic Usage
//
//	redisClient := redis.NewClient(&redis.Options{
//		Addr: "localhost:6379",
//	})
//
//	manager := cache.NewManager(redisClient)
//
//	key := cache.CacheKey{
//		Account: "my-account",
//		Mode:    "cursor",
//		Query:   "FIND Host WITH platform = 'linux'",
//	}
//
//	entry, err := manager.Get(ctx, key)
//	if errors.Is(err, cache.ErrCacheMiss) {
//		// run the query, then
//		_ = manager.Set(ctx, key, cache.NewEntry(result, 5*time.Minute))
//	}
//
// # Key Layout
//
// Keys are deterministic and scoped by account:
//
//	j1:<account>:<mode>:<sha256(query)>[:deleted][:param=value...][:vars=<hash>]
//
// DeleteAccount removes every key of one account.
//
// # Metrics
//
//   - jupiterone_cache_hits_total{layer="redis"} - Cache hits
//   - jupiterone_cache_misses_total - Cache misses
//   - jupiterone_cache_size_bytes{layer="redis"} - Bytes written and served
//   - jupiterone_cache_errors_total{operation} - Cache operation errors
package cache
