// Package cache keeps synthesized speech payloads so that re-reading a
// chapter with the same voice and settings does not call the synthesis
// service again. An in-memory LRU (L1) sits in front of a zstd-compressed
// disk store (L2).
package cache
