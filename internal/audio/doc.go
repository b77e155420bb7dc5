// Package audio decodes synthesized speech into fixed-format PCM and plays
// it through a single output graph built on oto/v3. The graph reads from a
// queue of buffers so consecutive buffers play without a gap, and it emits
// started/ended events so the caller can keep its own bookkeeping.
package audio
