package logger

import (
	"sync"
	"time"
)

// BatchProgress tracks progress of a serial bulk operation (matching or
// committing a selection of bank entries) and logs at a bounded rate so
// large batches do not flood the output.
type BatchProgress struct {
	logger      Logger
	operation   string
	total       int
	done        int
	failed      int
	skipped     int
	startTime   time.Time
	lastLogTime time.Time
	logInterval time.Duration
	mu          sync.Mutex
}

// NewBatchProgress creates a tracker for an operation over total items.
func NewBatchProgress(operation string, total int, log Logger) *BatchProgress {
	if log == nil {
		log = GetGlobalLogger()
	}

	bp := &BatchProgress{
		logger:      log.WithComponent("batch_progress"),
		operation:   operation,
		total:       total,
		startTime:   time.Now(),
		lastLogTime: time.Now(),
		logInterval: 5 * time.Second,
	}

	bp.logger.WithFields(Fields{
		"operation": operation,
		"total":     total,
	}).Info("Starting batch operation")

	return bp
}

// Step records the outcome of one item and logs if the interval elapsed.
func (bp *BatchProgress) Step(outcome string) {
	bp.mu.Lock()
	defer bp.mu.Unlock()

	bp.done++
	switch outcome {
	case "failed":
		bp.failed++
	case "skipped":
		bp.skipped++
	}

	if time.Since(bp.lastLogTime) >= bp.logInterval || bp.done == bp.total {
		bp.lastLogTime = time.Now()
		bp.logProgress()
	}
}

func (bp *BatchProgress) logProgress() {
	percent := 0.0
	if bp.total > 0 {
		percent = float64(bp.done) / float64(bp.total) * 100
	}

	bp.logger.WithFields(Fields{
		"operation": bp.operation,
		"done":      bp.done,
		"total":     bp.total,
		"failed":    bp.failed,
		"skipped":   bp.skipped,
		"percent":   percent,
		"elapsed":   time.Since(bp.startTime).Round(time.Millisecond),
	}).Info("Batch progress")
}

// Finish logs the final outcome of the batch.
func (bp *BatchProgress) Finish() {
	bp.mu.Lock()
	defer bp.mu.Unlock()

	bp.logger.WithFields(Fields{
		"operation": bp.operation,
		"processed": bp.done,
		"failed":    bp.failed,
		"skipped":   bp.skipped,
		"elapsed":   time.Since(bp.startTime).Round(time.Millisecond),
	}).Info("Batch operation completed")
}
