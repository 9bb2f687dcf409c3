package jobs

import (
	"context"
	"log"
	"time"
)

// JobProcessor drains one batch of claimed work per sweep.
type JobProcessor interface {
	ProcessJobs(ctx context.Context) error
}

// Worker sweeps the document processing queue on a fixed interval. The first
// sweep runs immediately on start so a backlog left behind by a restart does
// not sit out a full tick.
type Worker struct {
	processor    JobProcessor
	pollInterval time.Duration
	stopChan     chan struct{}
	doneChan     chan struct{}
}

// NewWorker creates a queue worker around the given processor.
func NewWorker(processor JobProcessor, pollInterval time.Duration) *Worker {
	return &Worker{
		processor:    processor,
		pollInterval: pollInterval,
		stopChan:     make(chan struct{}),
		doneChan:     make(chan struct{}),
	}
}

// Start runs the sweep loop until the context is cancelled or Stop is called.
func (w *Worker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()
	defer close(w.doneChan)

	log.Printf("document worker sweeping queue every %v", w.pollInterval)
	w.sweep(ctx)

	for {
		select {
		case <-ctx.Done():
			log.Println("document worker stopping: context cancelled")
			return
		case <-w.stopChan:
			log.Println("document worker stopping: stop requested")
			return
		case <-ticker.C:
			w.sweep(ctx)
		}
	}
}

func (w *Worker) sweep(ctx context.Context) {
	if err := w.processor.ProcessJobs(ctx); err != nil {
		log.Printf("document worker sweep failed: %v", err)
	}
}

// Stop signals the loop to exit and waits for the in-flight sweep to finish.
func (w *Worker) Stop() {
	close(w.stopChan)
	<-w.doneChan
	log.Println("document worker stopped")
}
