// Package cache implements a bounded-capacity, readers-preferring LRU
// object cache keyed by (host, uri): a doubly-linked MRU-first entry
// list (entry.go), a readers-preferring reader/writer protocol built
// from two mutexes and a shared reader count rather than sync.RWMutex
// (sync.go), and the pooled entry allocation that keeps eviction
// churn off the garbage collector (entrypool.go).
package cache
