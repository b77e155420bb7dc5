// Package queue holds the bookkeeping of the streaming pipeline: the fetch
// scheduler that bounds outstanding synthesis requests against a rolling
// buffer budget, and the reorder heap that releases decoded audio in chunk
// order. Neither type is safe for concurrent use; both are owned by the
// session loop.
package queue
