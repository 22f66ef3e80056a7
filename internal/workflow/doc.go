// Package workflow dispatches ready tasks to their handlers. A manager polls
// the resolver with a worker pool, claims each task, keeps its heartbeat
// fresh while the handler runs, and translates handler errors into retryable
// failures or terminal gate failures. The same Run entry point serves the
// daemon loop and one-shot CLI invocations.
package workflow
