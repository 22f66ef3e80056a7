// Package queue persists tracks, tasks, clips, and lyric lines in SQLite and
// exposes helpers for driving task lifecycle.
//
// The Store manages database connections, schema initialization, claim and
// completion transitions, retry accounting, heartbeat tracking, stale-claim
// recovery, and the readiness query the dispatcher runs. Task rows are created
// eagerly as upstream work completes; the resolver holds a row back until
// every prerequisite for its type is Completed and its track has not been
// gate-failed.
//
// The database is treated as transient storage for in-flight pipelines rather
// than a long-term archive. Schema changes bump schemaVersion in store.go;
// users clear the database to adopt the new schema.
package queue
