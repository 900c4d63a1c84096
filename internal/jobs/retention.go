package jobs

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/mediline/telehealth-server-go/internal/callstate"
	"github.com/mediline/telehealth-server-go/internal/repository"
)

// RetentionJob periodically prunes finished call sessions from the in-memory
// store and stale push tokens from the database.
type RetentionJob struct {
	store     *callstate.Store
	tokenRepo repository.PushTokenRepository
	retention time.Duration
	interval  time.Duration
	done      chan struct{}
}

func NewRetentionJob(
	store *callstate.Store,
	tokenRepo repository.PushTokenRepository,
	retention time.Duration,
	interval time.Duration,
) *RetentionJob {
	return &RetentionJob{
		store:     store,
		tokenRepo: tokenRepo,
		retention: retention,
		interval:  interval,
		done:      make(chan struct{}),
	}
}

func (j *RetentionJob) Start() {
	go j.run()
	log.Info().Dur("interval", j.interval).Msg("retention job started")
}

func (j *RetentionJob) Stop() {
	close(j.done)
	log.Info().Msg("retention job stopped")
}

func (j *RetentionJob) run() {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	j.sweep()

	for {
		select {
		case <-j.done:
			return
		case <-ticker.C:
			j.sweep()
		}
	}
}

func (j *RetentionJob) sweep() {
	cutoff := time.Now().Add(-j.retention)
	if removed := j.store.DeleteFinishedBefore(cutoff); removed > 0 {
		log.Info().Int("count", removed).Msg("pruned finished call sessions")
	}

	if j.tokenRepo == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	count, err := j.tokenRepo.DeleteStale(ctx)
	if err != nil {
		log.Error().Err(err).Msg("failed to prune stale push tokens")
	} else if count > 0 {
		log.Info().Int64("count", count).Msg("pruned stale push tokens")
	}
}
