package generator

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/bxb100/backon/pkg/expand"
	"github.com/bxb100/backon/pkg/logger"
)

// Job is one template file to expand
type Job struct {
	Path string
	// Index is the position of the job in the submitted batch
	Index int
}

// Result represents the result of a job
type Result struct {
	Job      Job
	File     *expand.FileResult
	Written  bool
	Error    error
	Duration time.Duration
}

// Success reports whether the file expanded without diagnostics
func (r Result) Success() bool {
	return r.Error == nil
}

// Observer is told about every file as a worker picks it up and as it finishes.
// FileStarted is called from worker goroutines; FileFinished calls are serialised.
type Observer interface {
	FileStarted(job Job)
	FileFinished(result Result)
}

// FileProcessor expands a single template
type FileProcessor interface {
	ProcessFile(path string, src []byte) (*expand.FileResult, error)
}

// FileStorage persists generated code
type FileStorage interface {
	Save(path string, content []byte) (bool, error)
}

// WorkerPool expands template files concurrently. Every file is an independent
// expansion; workers share only the storage.
type WorkerPool struct {
	numWorkers  int
	jobQueue    chan Job
	resultQueue chan Result
	wg          sync.WaitGroup
	ctx         context.Context
	cancel      context.CancelFunc
	processor   FileProcessor
	storage     FileStorage
	observer    Observer
	logger      logger.Logger
}

// NewWorkerPool creates a new worker pool. A nil storage runs the pipeline
// without writing anything, which is what check does.
func NewWorkerPool(
	numWorkers int,
	processor FileProcessor,
	storage FileStorage,
	log logger.Logger,
) *WorkerPool {
	ctx, cancel := context.WithCancel(context.Background())

	if log == nil {
		log = logger.GetLogger()
	}
	if numWorkers < 1 {
		numWorkers = 1
	}

	return &WorkerPool{
		numWorkers:  numWorkers,
		jobQueue:    make(chan Job, numWorkers*2),
		resultQueue: make(chan Result, numWorkers),
		ctx:         ctx,
		cancel:      cancel,
		processor:   processor,
		storage:     storage,
		logger:      log,
	}
}

// Start initializes and starts all workers
func (wp *WorkerPool) Start() {
	wp.logger.DebugWithFields("Starting worker pool", map[string]interface{}{
		"num_workers": wp.numWorkers,
	})

	for i := 0; i < wp.numWorkers; i++ {
		wp.wg.Add(1)
		go wp.worker(i)
	}
}

// Stop waits for queued jobs to finish and closes the result channel
func (wp *WorkerPool) Stop() {
	close(wp.jobQueue)
	wp.wg.Wait()
	close(wp.resultQueue)
	wp.cancel()

	wp.logger.Debug("Worker pool stopped")
}

// Abort makes workers drop the jobs still queued
func (wp *WorkerPool) Abort() {
	wp.cancel()
}

// Submit adds a new job to the queue
func (wp *WorkerPool) Submit(job Job) error {
	select {
	case wp.jobQueue <- job:
		return nil
	case <-wp.ctx.Done():
		return fmt.Errorf("worker pool is shutting down")
	}
}

// Results returns the result channel
func (wp *WorkerPool) Results() <-chan Result {
	return wp.resultQueue
}

func (wp *WorkerPool) worker(id int) {
	defer wp.wg.Done()

	for job := range wp.jobQueue {
		select {
		case <-wp.ctx.Done():
			continue
		default:
		}

		if wp.observer != nil {
			wp.observer.FileStarted(job)
		}
		result := wp.processJob(job, id)

		select {
		case wp.resultQueue <- result:
		case <-wp.ctx.Done():
		}
	}
}

// processJob reads, expands and stores one template
func (wp *WorkerPool) processJob(job Job, workerID int) Result {
	start := time.Now()
	result := Result{Job: job}

	src, err := os.ReadFile(job.Path)
	if err != nil {
		result.Error = fmt.Errorf("failed to read template: %w", err)
		result.Duration = time.Since(start)
		return result
	}

	file, err := wp.processor.ProcessFile(job.Path, src)
	if err != nil {
		result.Error = err
		result.Duration = time.Since(start)
		logger.LogDiagnostic(job.Path, err)
		return result
	}
	result.File = file

	if file.Code != nil && wp.storage != nil {
		written, err := wp.storage.Save(file.Output, file.Code)
		if err != nil {
			result.Error = fmt.Errorf("failed to write %s: %w", file.Output, err)
			result.Duration = time.Since(start)

			wp.logger.ErrorWithFields("Worker failed to write generated file", map[string]interface{}{
				"worker_id": workerID,
				"output":    file.Output,
				"error":     err.Error(),
			})
			return result
		}
		result.Written = written
		logger.LogFileGenerated(job.Path, file.Output, len(file.Expansions), written)
	}

	result.Duration = time.Since(start)

	wp.logger.DebugWithFields("Worker completed job", map[string]interface{}{
		"worker_id": workerID,
		"file":      job.Path,
		"functions": len(file.Expansions),
		"duration":  result.Duration,
	})

	return result
}

// GetQueueSize returns the current number of jobs in the queue
func (wp *WorkerPool) GetQueueSize() int {
	return len(wp.jobQueue)
}

// GetActiveWorkers returns the number of workers
func (wp *WorkerPool) GetActiveWorkers() int {
	return wp.numWorkers
}

// Run expands paths on a fresh pool and returns the results in input order.
// observer may be nil. Cancelling ctx drops the files not yet started and
// returns the context's error.
func Run(
	ctx context.Context,
	paths []string,
	workers int,
	processor FileProcessor,
	storage FileStorage,
	log logger.Logger,
	observer Observer,
) ([]Result, error) {
	pool := NewWorkerPool(workers, processor, storage, log)
	pool.observer = observer
	pool.Start()

	results := make([]Result, len(paths))
	done := make([]bool, len(paths))
	collected := make(chan struct{})
	go func() {
		defer close(collected)
		processed := 0
		for r := range pool.Results() {
			results[r.Job.Index] = r
			done[r.Job.Index] = true
			processed++
			logger.LogGenerationProgress(processed, len(paths))
			if observer != nil {
				observer.FileFinished(r)
			}
		}
	}()

	var submitErr error
submit:
	for i, path := range paths {
		select {
		case <-ctx.Done():
			submitErr = ctx.Err()
			pool.Abort()
			break submit
		default:
		}
		if err := pool.Submit(Job{Path: path, Index: i}); err != nil {
			submitErr = err
			break
		}
	}

	pool.Stop()
	<-collected

	if submitErr == nil {
		submitErr = ctx.Err()
	}
	if submitErr != nil {
		kept := results[:0]
		for i, r := range results {
			if done[i] {
				kept = append(kept, r)
			}
		}
		return kept, submitErr
	}
	return results, nil
}
