// Package stages contains the task bodies the workflow manager dispatches:
// download, ISWC discovery, stem separation, chunked enhancement,
// transcription, segmentation, clip-line generation, and fragment alignment.
// Handlers mutate the claimed track and task in memory; the manager persists
// track changes and records completion after a successful run.
package stages
