package queue

import "errors"

// ErrAlreadyClaimed indicates another worker holds the task. Callers must
// treat this as "skip", not as a failure.
var ErrAlreadyClaimed = errors.New("task already claimed")

// ErrNotProcessing indicates a completion or failure transition was attempted
// on a task that is not in Processing status.
var ErrNotProcessing = errors.New("task is not processing")

// ErrTrackGateFailed indicates an operation targeted a track already
// terminated by a gate.
var ErrTrackGateFailed = errors.New("track failed its gate")
