package entity

import (
	"time"

	"github.com/google/uuid"
)

type JobStatus string

const (
	JobStatusPending    JobStatus = "PENDING"
	JobStatusProcessing JobStatus = "PROCESSING"
	JobStatusCompleted  JobStatus = "COMPLETED"
	JobStatusFailed     JobStatus = "FAILED"
)

// ExtractionJob tracks one frame-extraction request through its lifecycle.
type ExtractionJob struct {
	ID            uuid.UUID
	UserID        string
	MediaKey      string
	ArchiveKey    string
	Status        JobStatus
	FrameCount    int
	FileSize      int64
	MediaDuration float64
	FrameRate     float64
	Attempt       int
	MaxAttempts   int
	ErrorMessage  string
	CreatedAt     time.Time
	UpdatedAt     time.Time
	CompletedAt   *time.Time
}

func NewExtractionJob(userID, mediaKey string, fileSize int64, maxAttempts int) *ExtractionJob {
	now := time.Now().UTC()
	return &ExtractionJob{
		ID:          uuid.New(),
		UserID:      userID,
		MediaKey:    mediaKey,
		FileSize:    fileSize,
		Status:      JobStatusPending,
		Attempt:     0,
		MaxAttempts: maxAttempts,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func (j *ExtractionJob) MarkProcessing() {
	j.Status = JobStatusProcessing
	j.Attempt++
	j.UpdatedAt = time.Now().UTC()
}

func (j *ExtractionJob) MarkCompleted(archiveKey string, frameCount int, duration, frameRate float64) {
	now := time.Now().UTC()
	j.Status = JobStatusCompleted
	j.ArchiveKey = archiveKey
	j.FrameCount = frameCount
	j.MediaDuration = duration
	j.FrameRate = frameRate
	j.UpdatedAt = now
	j.CompletedAt = &now
}

func (j *ExtractionJob) MarkFailed(errMsg string) {
	j.Status = JobStatusFailed
	j.ErrorMessage = errMsg
	j.UpdatedAt = time.Now().UTC()
}

func (j *ExtractionJob) CanRetry() bool {
	return j.Attempt < j.MaxAttempts
}
