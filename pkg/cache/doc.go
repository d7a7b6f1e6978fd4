// Package cache provides a Redis-backed HTTP response cache for the branchdesk client.
//
// Admin data changes under the user's hands, so cached entries are never served
// blindly: every cached GET is revalidated with If-None-Match / If-Modified-Since
// and the stored body is only reused when the API answers 304 Not Modified.
// Successful writes (POST, PUT, DELETE) invalidate every entry under the
// resource path so the next list fetch sees fresh data.
//
// # Basic Usage
//
//	redisClient := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
//	manager := cache.NewManager(redisClient)
//
//	key := cache.Key{
//		Path:  "/api/v1/branch",
//		Query: url.Values{"page": {"2"}, "limit": {"10"}},
//		Scope: cache.ScopeForToken(token),
//	}
//
//	entry, err := manager.Get(ctx, key)
//	if errors.Is(err, cache.ErrCacheMiss) {
//		// fetch from the API
//	}
//
// # Conditional Requests
//
//	if cache.ShouldRevalidate(entry) {
//		cache.AddConditionalHeaders(req, entry)
//	}
//
// # Invalidation
//
//	// after PUT /api/v1/branch/7
//	_ = manager.InvalidatePath(ctx, "/api/v1/branch")
//
// # Metrics
//
//   - branchdesk_cache_hits_total - 304 revalidations served from cache
//   - branchdesk_cache_misses_total - lookups without a usable entry
//   - branchdesk_cache_size_bytes - bytes written to Redis
//   - branchdesk_cache_invalidations_total - keys removed by write invalidation
//   - branchdesk_cache_errors_total{operation} - Redis operation errors
package cache
