package queue

import (
	"strings"
	"time"
)

// TaskType identifies one kind of per-track work. The set is closed: adding a
// task type means touching this file and the dispatch table, both
// compile-time checked.
type TaskType string

const (
	TaskDownload          TaskType = "download"
	TaskISWCDiscovery     TaskType = "iswc_discovery"
	TaskStemSeparation    TaskType = "stem_separation"
	TaskFalEnhancement    TaskType = "fal_enhancement"
	TaskTranscription     TaskType = "transcription"
	TaskSegmentation      TaskType = "segmentation"
	TaskGenerateClipLines TaskType = "generate_clip_lines"
	TaskFragmentAlignment TaskType = "fragment_alignment"
)

var allTaskTypes = []TaskType{
	TaskDownload,
	TaskISWCDiscovery,
	TaskStemSeparation,
	TaskFalEnhancement,
	TaskTranscription,
	TaskSegmentation,
	TaskGenerateClipLines,
	TaskFragmentAlignment,
}

// AllTaskTypes returns the ordered list of known task types.
func AllTaskTypes() []TaskType {
	cp := make([]TaskType, len(allTaskTypes))
	copy(cp, allTaskTypes)
	return cp
}

// ParseTaskType converts a string into a known TaskType.
func ParseTaskType(value string) (TaskType, bool) {
	normalized := TaskType(strings.ToLower(strings.TrimSpace(value)))
	for _, taskType := range allTaskTypes {
		if taskType == normalized {
			return taskType, true
		}
	}
	return "", false
}

// Prerequisites returns the task types that must be Completed before a task
// of the given type is eligible to run. The resolver enforces this; fan-out
// may create dependent rows early.
func Prerequisites(taskType TaskType) []TaskType {
	switch taskType {
	case TaskStemSeparation:
		return []TaskType{TaskDownload}
	case TaskFalEnhancement, TaskTranscription:
		return []TaskType{TaskStemSeparation}
	case TaskSegmentation:
		return []TaskType{TaskFalEnhancement, TaskTranscription}
	case TaskGenerateClipLines:
		return []TaskType{TaskSegmentation}
	case TaskFragmentAlignment:
		return []TaskType{TaskTranscription}
	default:
		return nil
	}
}

// Status is the lifecycle of a task instance.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Track stage values beyond the rolling task-type stages.
const (
	// StageIngested is the stage assigned at ingestion time.
	StageIngested = "ingested"
	// StageCompleted marks a track whose full pipeline has finished.
	StageCompleted = "completed"
	// StageFailed is the terminal stage set by a gate failure. Distinct from
	// any task-level failure: no task is ever scheduled for a failed track.
	StageFailed = "failed"
)

// Track identifies one audio work moving through the pipeline.
type Track struct {
	ID                 int64
	Title              string
	Artist             string
	ISRC               string
	ISWC               string
	SourceURL          string
	DurationSeconds    float64
	Stage              string
	AudioObject        string
	VocalsObject       string
	InstrumentalObject string
	EnhancedObject     string
	FragmentJSON       string
	ErrorMessage       string
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// GateFailed reports whether the track was terminated by a gate.
func (t *Track) GateFailed() bool {
	return t != nil && t.Stage == StageFailed
}

// Task is one (track, task-type) unit of work.
type Task struct {
	ID              int64
	TrackID         int64
	Type            TaskType
	Status          Status
	RetryCount      int
	LastAttemptedAt *time.Time
	LastHeartbeat   *time.Time
	ErrorMessage    string
	ErrorClass      string
	ResultJSON      string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Clip is a named, immutable sub-range of a track in absolute track time.
type Clip struct {
	ID           int64
	TrackID      int64
	Name         string
	StartSeconds float64
	EndSeconds   float64
	CreatedAt    time.Time
}

// StoredLine is a persisted full-track lyric line with absolute timing.
type StoredLine struct {
	ID           int64
	TrackID      int64
	LineIndex    int
	StartSeconds float64
	EndSeconds   float64
	Text         string
	WordsJSON    string
}

// StoredClipLine is a persisted clip-relative lyric line.
type StoredClipLine struct {
	ID               int64
	ClipID           int64
	LineIndex        int
	StartSeconds     float64
	EndSeconds       float64
	Text             string
	StartsBeforeClip bool
	EndsAfterClip    bool
	WordsJSON        string
}

// Stats aggregates task counts per (type, status) for observability.
type Stats map[TaskType]map[Status]int

// RetryPolicy governs when a Failed task becomes eligible again. A task whose
// retry count has reached Limit is terminal even though its status stays
// Failed; Backoff gates re-attempts of the rest.
type RetryPolicy struct {
	Limit   int
	Backoff time.Duration
}
