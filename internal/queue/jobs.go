package queue

import (
	"time"

	"github.com/altlab/recval/internal/types"
)

// Job is one transcode task: a stored wav blob to compress for
// distribution. There is at most one job per unique fingerprint.
type Job struct {
	ID          string
	Fingerprint string
	WavPath     string
	OutPath     string
	Status      string
	Error       error
	CreatedAt   time.Time
}

// NewJob creates a queued transcode job.
func NewJob(id, fingerprint, wavPath, outPath string) *Job {
	return &Job{
		ID:          id,
		Fingerprint: fingerprint,
		WavPath:     wavPath,
		OutPath:     outPath,
		Status:      types.StatusQueued,
		CreatedAt:   time.Now(),
	}
}
