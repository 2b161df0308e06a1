// Package queue implements the time-ordered reminder dispatch queue: a
// deduplicated set of pending reminder entries keyed by fire time, backed by
// an embedded BadgerDB that survives restarts as a cache.
package queue
