// Package synth talks to the speech synthesis service: one request per
// chunk returning an encoded audio payload, and a voice catalog.
//
// Client speaks the service contract used by the player. Upstream speaks
// the ElevenLabs API and is what the serve proxy relays to. Cached wraps
// any Synthesizer with the payload cache.
package synth
