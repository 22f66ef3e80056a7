// Package llm wraps an OpenRouter-compatible chat completion API. The
// pipeline uses it only to break ties when a lyric fragment matches a
// transcript in more than one place; everything else runs without a model.
package llm
