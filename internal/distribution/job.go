// internal/distribution/job.go
// Package distribution reconciles archived-but-undelivered physical letters.
// The job runs on its own schedule, fully decoupled from request handling,
// and treats every row independently: one row's failure never touches the
// rest of the batch.
package distribution

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"dialogmote-coordinator/internal/common/logger"
	"dialogmote-coordinator/internal/common/metrics"
	"dialogmote-coordinator/internal/models"
	"dialogmote-coordinator/internal/store"
)

// ErrPermanentlyUnavailable is returned by the gateway when the recipient's
// mailbox is gone for good (HTTP 410 equivalent). By business decision this
// terminal outcome is treated like success: the row is marked distributed
// and never resubmitted.
var ErrPermanentlyUnavailable = errors.New("recipient mailbox permanently unavailable")

// Recipient identifies the addressee of a physical distribution request.
type Recipient struct {
	Type models.ParticipantType
	Ref  string
}

// Gateway is the physical-distribution collaborator. Transient failures are
// returned as ordinary errors; terminal unavailability as
// ErrPermanentlyUnavailable.
type Gateway interface {
	Distribute(ctx context.Context, journalpostID string, recipient Recipient) error
}

// Summary is one run's outcome.
type Summary struct {
	Updated int
	Failed  int
}

// Job is the distribution retry cronjob.
type Job struct {
	db       *sql.DB
	gateway  Gateway
	log      logger.Logger
	metrics  metrics.Sink
	interval time.Duration
	now      func() time.Time
}

// NewJob wires the cronjob.
func NewJob(db *sql.DB, gateway Gateway, log logger.Logger, sink metrics.Sink, interval time.Duration) *Job {
	return &Job{
		db:       db,
		gateway:  gateway,
		log:      log.WithFields(map[string]interface{}{"component": "distribution-cron"}),
		metrics:  sink,
		interval: interval,
		now:      time.Now,
	}
}

// WithClock overrides the job clock. Test hook.
func (j *Job) WithClock(now func() time.Time) *Job {
	j.now = now
	return j
}

// Start runs the job on its fixed interval until ctx is cancelled.
func (j *Job) Start(ctx context.Context) {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			j.log.Info("distribution cron stopped", nil)
			return
		case <-ticker.C:
			summary := j.Run(ctx)
			j.log.Info("distribution run completed", map[string]interface{}{
				"updated": summary.Updated,
				"failed":  summary.Failed,
			})
		}
	}
}

// Run executes one reconciliation pass: every distribution-eligible
// notification kind, then finalized minutes through the parallel query.
// Each row gets a single UPDATE on success; failed rows are left untouched
// for the next run.
func (j *Job) Run(ctx context.Context) Summary {
	var total Summary

	for _, kind := range models.DistributionEligibleKinds() {
		rows, err := store.ListUndistributedNotifications(ctx, j.db, kind)
		if err != nil {
			j.log.Error("list undistributed notifications failed", map[string]interface{}{
				"kind":  string(kind),
				"error": err.Error(),
			})
			continue
		}
		s := j.processRows(ctx, rows, func(ctx context.Context, id int64, at time.Time) error {
			return store.SetNotificationDistributed(ctx, j.db, id, at)
		})
		total.Updated += s.Updated
		total.Failed += s.Failed
	}

	minutesRows, err := store.ListUndistributedMinutes(ctx, j.db)
	if err != nil {
		j.log.Error("list undistributed minutes failed", map[string]interface{}{"error": err.Error()})
		return total
	}
	s := j.processRows(ctx, minutesRows, func(ctx context.Context, id int64, at time.Time) error {
		return store.SetMinutesDistributed(ctx, j.db, id, at)
	})
	total.Updated += s.Updated
	total.Failed += s.Failed

	return total
}

func (j *Job) processRows(ctx context.Context, rows []store.DistributionRow, mark func(context.Context, int64, time.Time) error) Summary {
	var s Summary

	for _, row := range rows {
		err := j.gateway.Distribute(ctx, row.JournalpostID, Recipient{Type: row.RecipientType, Ref: row.RecipientRef})
		if err != nil && !errors.Is(err, ErrPermanentlyUnavailable) {
			s.Failed++
			j.metrics.IncDistribution("failed")
			j.log.Warn("distribution failed, row left for next run", map[string]interface{}{
				"journalpostId": row.JournalpostID,
				"error":         err.Error(),
			})
			continue
		}
		if errors.Is(err, ErrPermanentlyUnavailable) {
			j.log.Info("recipient permanently unavailable, marking distributed", map[string]interface{}{
				"journalpostId": row.JournalpostID,
			})
		}

		if err := mark(ctx, row.ID, j.now().UTC()); err != nil {
			s.Failed++
			j.metrics.IncDistribution("failed")
			j.log.Error("marking row distributed failed", map[string]interface{}{
				"journalpostId": row.JournalpostID,
				"error":         err.Error(),
			})
			continue
		}
		s.Updated++
		j.metrics.IncDistribution("updated")
	}
	return s
}
