package jobs

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Task is one unit of periodic cleanup. Run returns how many items it removed.
type Task struct {
	Name string
	Run  func(ctx context.Context) (int64, error)
}

type CleanupJob struct {
	tasks    []Task
	interval time.Duration
	timeout  time.Duration

	cancel   context.CancelFunc
	done     chan struct{}
	stopOnce sync.Once
}

// NewCleanupJob runs tasks every interval, each run bounded by timeout.
func NewCleanupJob(interval, timeout time.Duration, tasks ...Task) *CleanupJob {
	return &CleanupJob{
		tasks:    tasks,
		interval: interval,
		timeout:  timeout,
		done:     make(chan struct{}),
	}
}

func (j *CleanupJob) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	j.cancel = cancel
	go j.run(ctx)
	log.Info().Dur("interval", j.interval).Int("tasks", len(j.tasks)).Msg("cleanup job started")
}

// Stop cancels an in-flight run and waits for the job goroutine to exit.
func (j *CleanupJob) Stop() {
	if j.cancel == nil {
		return
	}
	j.stopOnce.Do(func() {
		j.cancel()
		<-j.done
		log.Info().Msg("cleanup job stopped")
	})
}

func (j *CleanupJob) run(ctx context.Context) {
	defer close(j.done)

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	j.cleanup(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			j.cleanup(ctx)
		}
	}
}

func (j *CleanupJob) cleanup(parent context.Context) {
	ctx, cancel := context.WithTimeout(parent, j.timeout)
	defer cancel()

	for _, task := range j.tasks {
		if ctx.Err() != nil {
			return
		}
		j.runCleanup(ctx, task)
	}
}

func (j *CleanupJob) runCleanup(ctx context.Context, task Task) {
	defer func() {
		if p := recover(); p != nil {
			log.Error().Interface("panic", p).Msgf("cleanup of %s panicked", task.Name)
		}
	}()

	count, err := task.Run(ctx)
	if err != nil {
		log.Error().Err(err).Msgf("failed to cleanup %s", task.Name)
	} else if count > 0 {
		log.Info().Int64("count", count).Msgf("cleaned up %s", task.Name)
	}
}
