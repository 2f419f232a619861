package identsync

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"golang.org/x/sync/errgroup"

	"github.com/retrade/authmesh/pkg/jwtx"
	"github.com/retrade/authmesh/pkg/slogx"
)

const (
	DefaultConcurrency = 4
	DefaultItemTimeout = 10 * time.Second
)

var (
	syncAccounts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "identsync_accounts_total",
		Help: "Cached accounts processed by identity sync, by outcome.",
	}, []string{"outcome"})

	syncRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "identsync_runs_total",
		Help: "Identity sync runs, by result.",
	}, []string{"result"})

	syncDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "identsync_run_duration_seconds",
		Help:    "Duration of an identity sync run.",
		Buckets: prometheus.DefBuckets,
	})
)

// JobOptions tune a Job. Zero values select the defaults.
type JobOptions struct {
	Concurrency int
	ItemTimeout time.Duration
	Now         func() time.Time
}

// Job reconciles every cached identity against the identity of record.
type Job struct {
	cache  Cache
	remote IdentityOfRecord

	concurrency int
	itemTimeout time.Duration
	now         func() time.Time
}

func NewJob(cache Cache, remote IdentityOfRecord, opts JobOptions) *Job {
	if opts.Concurrency <= 0 {
		opts.Concurrency = DefaultConcurrency
	}
	if opts.ItemTimeout <= 0 {
		opts.ItemTimeout = DefaultItemTimeout
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Job{
		cache:       cache,
		remote:      remote,
		concurrency: opts.Concurrency,
		itemTimeout: opts.ItemTimeout,
		now:         opts.Now,
	}
}

type outcome string

const (
	outcomeUpdated   outcome = "updated"
	outcomeUnchanged outcome = "unchanged"
	outcomeInvalid   outcome = "invalid"
	outcomeFailed    outcome = "failed"

	// The lookup succeeded but the local write did not.
	outcomeCacheError outcome = "cache_error"
)

// Run processes every cached identity once. Only a failure to list the
// cache fails the run; per-account failures are counted in the Report and
// the account keeps its last known username.
func (j *Job) Run(ctx context.Context) (Report, error) {
	start := time.Now()
	defer func() { syncDuration.Observe(time.Since(start).Seconds()) }()

	log := slogx.FromContext(ctx)

	ids, err := j.cache.List(ctx)
	if err != nil {
		syncRuns.WithLabelValues("error").Inc()
		return Report{}, fmt.Errorf("identsync: list cache: %w", err)
	}

	var (
		mu     sync.Mutex
		report = Report{Total: len(ids)}
		g      errgroup.Group
	)
	g.SetLimit(j.concurrency)

	for _, id := range ids {
		g.Go(func() error {
			out := j.reconcile(ctx, log, id)
			syncAccounts.WithLabelValues(string(out)).Inc()

			mu.Lock()
			defer mu.Unlock()
			switch out {
			case outcomeUpdated:
				report.Updated++
			case outcomeUnchanged:
				report.Unchanged++
			case outcomeInvalid:
				report.Invalid++
			case outcomeFailed, outcomeCacheError:
				report.Failed++
			}
			return nil
		})
	}
	_ = g.Wait()

	syncRuns.WithLabelValues("ok").Inc()
	log.Info("identity sync completed",
		"total", report.Total,
		"updated", report.Updated,
		"unchanged", report.Unchanged,
		"invalid", report.Invalid,
		"failed", report.Failed,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return report, nil
}

func (j *Job) reconcile(ctx context.Context, log *slog.Logger, id AccountIdentity) outcome {
	ctx, cancel := context.WithTimeout(ctx, j.itemTimeout)
	defer cancel()

	lookup, err := j.remote.LookupAccount(ctx, id.AccountID, id.Username)
	if err != nil {
		err = jwtx.Wrap(jwtx.ErrorKindRemoteIdentityUnavailable, err)
		log.Warn("identity lookup failed",
			"account_id", id.AccountID,
			"error_kind", jwtx.KindOf(err),
			"error", err,
		)
		return outcomeFailed
	}

	if !lookup.Valid {
		return outcomeInvalid
	}
	if !lookup.Changed || lookup.Username == "" || lookup.Username == id.Username {
		return outcomeUnchanged
	}

	if err := j.cache.UpdateUsername(ctx, id.AccountID, lookup.Username, j.now()); err != nil {
		log.Error("identity cache update failed",
			"account_id", id.AccountID,
			"error", err,
		)
		return outcomeCacheError
	}

	log.Debug("username updated", "account_id", id.AccountID, "username", lookup.Username)
	return outcomeUpdated
}
