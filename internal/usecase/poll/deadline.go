package poll

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/meetpoll-team/meetpoll/internal/domain/entities"
	"github.com/meetpoll-team/meetpoll/internal/domain/repositories"
)

// DeadlineWorker sweeps open polls whose voting deadline elapsed and
// closes them. The close goes through the same conditional update as an
// organizer close, so racing with one is harmless.
type DeadlineWorker struct {
	pollRepo repositories.PollRepository
	logger   *zap.Logger
	interval time.Duration

	mu       sync.Mutex
	running  bool
	stopChan chan struct{}
	wg       sync.WaitGroup
}

// NewDeadlineWorker creates a deadline sweeper ticking at the given
// interval. A non-positive interval defaults to one minute.
func NewDeadlineWorker(pollRepo repositories.PollRepository, logger *zap.Logger, interval time.Duration) *DeadlineWorker {
	if interval <= 0 {
		interval = time.Minute
	}
	return &DeadlineWorker{
		pollRepo: pollRepo,
		logger:   logger,
		interval: interval,
	}
}

// Start launches the sweep loop. Calling Start on a running worker is a
// no-op.
func (w *DeadlineWorker) Start() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		return
	}
	w.running = true
	w.stopChan = make(chan struct{})

	w.wg.Add(1)
	go w.run()

	w.logger.Info("👷 Deadline worker started", zap.Duration("interval", w.interval))
}

// Stop signals the loop to exit and waits for the in-flight sweep
func (w *DeadlineWorker) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	close(w.stopChan)
	w.mu.Unlock()

	w.wg.Wait()
	w.logger.Info("👷 Deadline worker stopped")
}

func (w *DeadlineWorker) run() {
	defer w.wg.Done()

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-w.stopChan:
			return
		case <-ticker.C:
			w.Sweep(context.Background())
		}
	}
}

// Sweep closes every open poll whose deadline has passed. Exported so the
// loop and tests share one code path.
func (w *DeadlineWorker) Sweep(ctx context.Context) {
	now := time.Now().UTC()
	polls, err := w.pollRepo.FindOpenPastDeadline(ctx, now)
	if err != nil {
		w.logger.Error("❌ Deadline sweep query failed", zap.Error(err))
		return
	}

	for _, poll := range polls {
		ok, err := w.pollRepo.UpdateStatusIf(ctx, poll.ID, entities.PollStatusOpen, entities.PollStatusClosed)
		if err != nil {
			w.logger.Error("❌ Failed to close expired poll",
				zap.String("poll_id", poll.ID.String()),
				zap.Error(err))
			continue
		}
		if !ok {
			// Someone else moved the poll first; nothing to do.
			continue
		}
		w.logger.Info("🔄 Closed poll past its voting deadline",
			zap.String("poll_id", poll.ID.String()),
			zap.Timep("deadline", poll.VotingDeadline))
	}
}
