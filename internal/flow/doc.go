// Package flow implements the AI flows behind the Kairo features.
//
// Each flow validates its input, renders a prompt, asks the model for a
// JSON document matching a response schema and validates the decoded
// answer. The meditation flow makes a second call to the speech model and
// wraps the returned PCM into a WAV data URI.
//
// Flows are reachable by name through Registry.Run, used by the HTTP API and
// the CLI, or through the typed methods.
package flow
