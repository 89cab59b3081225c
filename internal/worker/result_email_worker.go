package worker

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/studyplan-backend/internal/config"
	"github.com/stemsi/studyplan-backend/internal/mailer"
)

const (
	ResultEmailMaxAttempts  = 3
	ResultEmailPollTimeout  = 1 * time.Second
	ResultEmailSendTimeout  = 15 * time.Second
	ResultEmailRetryBackoff = 30 * time.Second // doubles per attempt
	resultEmailPromoteBatch = 100
)

type ResultEmailWorker struct {
	rdb     *redis.Client
	mailer  mailer.Mailer
	log     zerolog.Logger
	backoff time.Duration
	now     func() time.Time
}

func NewResultEmailWorker(rdb *redis.Client, m mailer.Mailer, log zerolog.Logger) *ResultEmailWorker {
	return &ResultEmailWorker{
		rdb:     rdb,
		mailer:  m,
		log:     log.With().Str("component", "result_email_worker").Logger(),
		backoff: ResultEmailRetryBackoff,
		now:     time.Now,
	}
}

// ----------------------------------------------------------------
// Worker loop
// ----------------------------------------------------------------

// Start pops queued result emails until ctx is cancelled. A failed send is
// parked in the retry set with its attempt count raised and moved back to the
// queue once its backoff has passed; after ResultEmailMaxAttempts the job
// moves to the dead queue.
func (w *ResultEmailWorker) Start(ctx context.Context) {
	w.log.Info().Msg("ResultEmailWorker started")

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Shutdown requested, result email worker stopped")
			return

		default:
			w.promoteDue(ctx)

			item, err := w.rdb.BLPop(ctx, ResultEmailPollTimeout, config.WorkerKey.ResultEmailQueue).Result()
			if err != nil {
				if !errors.Is(err, redis.Nil) && ctx.Err() == nil {
					w.log.Error().Err(err).Msg("BLPop error")
					time.Sleep(ResultEmailPollTimeout)
				}
				continue
			}

			if len(item) < 2 {
				continue
			}
			w.handle(ctx, item[1])
		}
	}
}

// ----------------------------------------------------------------
// Single job
// ----------------------------------------------------------------

func (w *ResultEmailWorker) handle(ctx context.Context, raw string) {
	var job mailer.ResultEmail
	if err := json.Unmarshal([]byte(raw), &job); err != nil {
		w.log.Error().Err(err).Msg("Invalid JSON payload, moving to dead queue")
		w.bury(ctx, raw)
		return
	}

	msg, err := job.Render()
	if err != nil {
		w.log.Error().Err(err).Str("result_id", job.ResultID.String()).Msg("Render failed, moving to dead queue")
		w.bury(ctx, raw)
		return
	}

	// Sends use their own deadline so shutdown does not cut a request short.
	sendCtx, cancel := context.WithTimeout(context.Background(), ResultEmailSendTimeout)
	err = w.mailer.Send(sendCtx, msg)
	cancel()
	if err == nil {
		w.log.Info().
			Str("result_id", job.ResultID.String()).
			Str("participant_id", job.ParticipantID).
			Msg("Result email sent")
		return
	}

	job.Attempts++
	logEvt := w.log.Warn().
		Err(err).
		Str("result_id", job.ResultID.String()).
		Int("attempts", job.Attempts)

	next, _ := json.Marshal(job)
	if job.Attempts >= ResultEmailMaxAttempts {
		logEvt.Msg("Result email failed permanently, moving to dead queue")
		w.bury(ctx, string(next))
		return
	}

	retryAt := w.now().Add(w.retryDelay(job.Attempts))
	logEvt.Time("retry_at", retryAt).Msg("Result email failed, scheduling retry")
	if err := w.rdb.ZAdd(context.Background(), config.WorkerKey.ResultEmailRetryQueue, redis.Z{
		Score:  float64(retryAt.UnixMilli()),
		Member: string(next),
	}).Err(); err != nil {
		w.log.Error().Err(err).Str("result_id", job.ResultID.String()).Msg("Retry schedule failed")
	}
}

func (w *ResultEmailWorker) retryDelay(attempts int) time.Duration {
	if attempts < 1 {
		attempts = 1
	}
	return w.backoff * time.Duration(1<<(attempts-1))
}

// promoteDue moves retries whose backoff has passed back onto the queue.
// ZRem decides ownership, so a job is promoted once even with several workers.
func (w *ResultEmailWorker) promoteDue(ctx context.Context) {
	key := config.WorkerKey.ResultEmailRetryQueue
	due, err := w.rdb.ZRangeByScore(ctx, key, &redis.ZRangeBy{
		Min:   "-inf",
		Max:   strconv.FormatInt(w.now().UnixMilli(), 10),
		Count: resultEmailPromoteBatch,
	}).Result()
	if err != nil {
		if ctx.Err() == nil {
			w.log.Error().Err(err).Msg("Retry scan failed")
		}
		return
	}

	for _, raw := range due {
		removed, err := w.rdb.ZRem(ctx, key, raw).Result()
		if err != nil || removed == 0 {
			continue
		}
		if err := w.rdb.RPush(context.Background(), config.WorkerKey.ResultEmailQueue, raw).Err(); err != nil {
			w.log.Error().Err(err).Msg("Retry promote failed")
		}
	}
}

func (w *ResultEmailWorker) bury(_ context.Context, raw string) {
	if err := w.rdb.RPush(context.Background(), config.WorkerKey.ResultEmailDeadQueue, raw).Err(); err != nil {
		w.log.Error().Err(err).Msg("Dead queue push failed")
	}
}
