// Package cache keeps downloaded audio so replaying a sound does not hit
// the network. It has two levels: an in-memory LRU (L1) and a compressed
// disk cache (L2) that survives restarts, tied together by Manager with
// L2-to-L1 promotion and periodic TTL cleanup.
package cache
