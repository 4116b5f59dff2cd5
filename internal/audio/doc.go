// Package audio handles PCM-to-WAV container conversion for generated speech.
// It writes fixed-layout RIFF/WAVE headers around raw little-endian PCM and
// encodes the result as base64 data URIs for clients to play directly.
package audio
