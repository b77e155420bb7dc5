// Package tts is the session controller of the read-aloud pipeline.
//
// A Provider turns a chapter into speech and exposes play controls and an
// observable Snapshot. Stream is the remote streaming provider: it feeds
// the segmenter output through the fetch scheduler, decodes each payload,
// releases buffers in chunk order and plays them gaplessly. The native
// provider lives in internal/native. Switcher holds both and keeps exactly
// one of them active.
//
// Every Speak starts a new session with a fresh id. Results that carry an
// older id are dropped on arrival; nothing in flight is aborted.
package tts
