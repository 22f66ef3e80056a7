// Package main hosts the songmill CLI entrypoint and command graph.
//
// The Cobra-based command tree covers the daemon loop, one-shot task
// processing, track ingestion, queue inspection, retry maintenance, handler
// health checks, and configuration scaffolding. It centralizes configuration
// resolution and structured logging setup so subcommands can focus on user
// experience instead of wiring.
package main
