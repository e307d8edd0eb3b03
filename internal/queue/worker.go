// Package queue runs transcode jobs on a fixed pool of workers.
package queue

import (
	"fmt"
	"log"
	"runtime/debug"
	"sync"

	"github.com/altlab/recval/internal/audio"
	"github.com/altlab/recval/internal/types"
)

// WorkerPool manages a pool of workers compressing stored audio blobs.
type WorkerPool struct {
	jobQueue    chan *Job
	workerCount int
	transcoder  audio.Transcoder
	wg          sync.WaitGroup
}

// NewWorkerPool creates a pool feeding jobs to the given transcoder.
func NewWorkerPool(workerCount int, transcoder audio.Transcoder) *WorkerPool {
	return &WorkerPool{
		jobQueue:    make(chan *Job, 100),
		workerCount: workerCount,
		transcoder:  transcoder,
	}
}

// Start launches all workers.
func (wp *WorkerPool) Start() {
	log.Printf("starting worker pool with %d workers", wp.workerCount)
	for i := 0; i < wp.workerCount; i++ {
		wp.wg.Add(1)
		go wp.worker(i)
	}
}

// Enqueue adds a transcode job to the queue.
func (wp *WorkerPool) Enqueue(job *Job) {
	job.Status = types.StatusQueued
	wp.jobQueue <- job
	log.Printf("job %s enqueued (fingerprint: %s)", job.ID, job.Fingerprint)
}

// Drain closes the queue and waits for in-flight jobs to finish. The
// pool cannot be reused afterwards.
func (wp *WorkerPool) Drain() {
	close(wp.jobQueue)
	wp.wg.Wait()
}

func (wp *WorkerPool) worker(id int) {
	defer wp.wg.Done()

	for job := range wp.jobQueue {
		func() {
			defer func() {
				if r := recover(); r != nil {
					log.Printf("worker %d: panic processing job %s: %v\n%s",
						id, job.ID, r, debug.Stack())
					job.Status = types.StatusFailed
					job.Error = fmt.Errorf("worker panic: %v", r)
				}
			}()
			wp.processJob(id, job)
		}()
	}
}

func (wp *WorkerPool) processJob(workerID int, job *Job) {
	job.Status = types.StatusProcessing
	log.Printf("worker %d: transcoding %s", workerID, job.Fingerprint)

	if err := wp.transcoder.Transcode(job.WavPath, job.OutPath); err != nil {
		log.Printf("worker %d: transcode failed for %s: %v", workerID, job.Fingerprint, err)
		job.Status = types.StatusFailed
		job.Error = err
		return
	}

	job.Status = types.StatusCompleted
	log.Printf("worker %d: job %s completed (%s)", workerID, job.ID, job.OutPath)
}
