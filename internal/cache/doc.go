// Package cache provides in-memory LRU caching for immutable file blocks.
//
// ShardedLRU spreads keys over 64 independently locked LRU shards so that
// concurrent take queries hitting the same dataset do not serialize on one
// mutex.
package cache
