// Package prompt renders the natural-language prompts sent to the text model.
package prompt
