// Package domain defines the core types and sentinel errors shared across
// the job engine: jobs, analysis results, watchlist items and schema
// version bookkeeping.
package domain

import "time"

// JobStatus is the lifecycle state of a Job.
type JobStatus string

const (
	JobQueued     JobStatus = "queued"
	JobProcessing JobStatus = "processing"
	JobCompleted  JobStatus = "completed"
	JobFailed     JobStatus = "failed"
	JobCancelled  JobStatus = "cancelled"
)

// Terminal reports whether the status admits no further mutation.
func (s JobStatus) Terminal() bool {
	switch s {
	case JobCompleted, JobFailed, JobCancelled:
		return true
	default:
		return false
	}
}

// JobError is a single per-ticker failure recorded on a job.
type JobError struct {
	Ticker  string `json:"ticker"`
	Message string `json:"message"`
}

// Job is one bulk analysis invocation: it owns a lifecycle and an error list.
type Job struct {
	ID              string
	Status          JobStatus
	Total           int
	Completed       int
	Successful      int
	Errors          []JobError
	CurrentTicker   *string
	CurrentIndex    *int
	Message         string
	CancelRequested bool
	Description     string

	CreatedAt   time.Time
	StartedAt   *time.Time
	UpdatedAt   time.Time
	CompletedAt *time.Time
}

// Progress derives the integer percent complete, per spec P2:
// round(100 * completed / max(total, 1)).
func (j Job) Progress() int {
	total := j.Total
	if total <= 0 {
		total = 1
	}
	return int((100*j.Completed + total/2) / total)
}

// AnalysisSource distinguishes a result triggered from the watchlist vs. a
// bulk/"analyze all" job.
type AnalysisSource string

const (
	SourceWatchlist AnalysisSource = "watchlist"
	SourceBulk      AnalysisSource = "bulk"
)

// AnalysisResult is one ticker's analysis outcome, persisted under a single
// unified table regardless of source.
type AnalysisResult struct {
	ID        int64
	Ticker    string
	Symbol    string
	JobID     *string
	Source    AnalysisSource
	RawData   []byte // serialized ResultDocument (JSON)
	CreatedAt time.Time
}

// WatchlistItem is a ticker the user tracks, keyed uniquely by Ticker.
type WatchlistItem struct {
	ID        int64
	Ticker    string
	Symbol    string
	Notes     string
	CreatedAt time.Time
}

// Stock is a single entry in the recognized-ticker universe catalogue.
type Stock struct {
	Ticker string
	Symbol string
	Name   string
	Sector string
}
