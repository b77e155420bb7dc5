// Package segment turns chapter text into speech-sized chunks.
// It normalizes HTML, Markdown or plain text, finds sentence boundaries and
// packs sentences into chunks between a target and a maximum length. A
// Worker runs segmentation on its own goroutine and streams the result.
package segment
