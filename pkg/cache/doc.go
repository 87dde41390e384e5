// Package cache provides Redis-backed caching for scheduling API responses.
//
// The remote scheduling API emits no cache validators (no ETag, no
// Expires), so entries carry a fixed TTL chosen by the caller. In
// practice only the provider directory is cached: rosters churn slowly,
// while slot pages are too volatile to be worth reusing between runs.
//
// # Basic Usage
//
//	// Create Redis client
//	redisClient := redis.NewClient(&redis.Options{
//		Addr: "localhost:6379",
//	})
//
//	// Create cache manager
//	manager := cache.NewManager(redisClient)
//
//	// Create cache key
//	key := cache.Key{
//		Endpoint: "GetAvilableApptProvidersList",
//		Params:   map[string]string{"facility_id": "13"},
//	}
//
//	// Get from cache
//	entry, err := manager.Get(ctx, key)
//	if err == cache.ErrCacheMiss {
//		// Cache miss - fetch from the API, then:
//		_ = manager.Set(ctx, key, cache.NewEntry(body, 12*time.Hour))
//	}
//
// # Metrics
//
// The cache manager exports Prometheus metrics:
//
//   - slotscope_cache_hits_total{layer="redis"} - Cache hits
//   - slotscope_cache_misses_total - Cache misses
//   - slotscope_cache_size_bytes{layer="redis"} - Cache size
//   - slotscope_cache_errors_total{operation} - Cache operation errors
package cache
