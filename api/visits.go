package api

import (
	"context"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/silvesterwali/daily-gateway/domain"
)

const (
	visitHandoffWait = 15 * time.Millisecond
	visitJobTimeout  = 5 * time.Second
)

// VisitStore is the slice of storage the visit pipeline needs.
type VisitStore interface {
	GetUserByIDOrHandle(ctx context.Context, ref string) (*domain.User, error)
	UpsertVisit(ctx context.Context, trackingID, app string, now time.Time, referral, ip string) error
}

type visitJob struct {
	trackingID string
	app        string
	referral   string
	ip         string
	now        time.Time
}

// VisitSender records visits off the request path. Boot must never wait on the
// visit write, so jobs are handed to a small worker pool through a buffered
// channel and dropped with a warning when the pool is saturated.
type VisitSender struct {
	store  VisitStore
	logger *log.Logger
	jobs   chan visitJob
	wg     sync.WaitGroup
	once   sync.Once
}

// NewVisitSender starts the pool. Both workers and buffer must be positive.
func NewVisitSender(store VisitStore, logger *log.Logger, workers, buffer int) *VisitSender {
	s := &VisitSender{
		store:  store,
		logger: logger,
		jobs:   make(chan visitJob, buffer),
	}
	s.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go s.worker()
	}
	return s
}

// TrySend enqueues a visit without blocking the caller. When the buffer is
// full it waits a few milliseconds for a worker to catch up before giving up.
func (s *VisitSender) TrySend(trackingID, app, referral, ip string, now time.Time) bool {
	job := visitJob{trackingID: trackingID, app: app, referral: referral, ip: ip, now: now}
	select {
	case s.jobs <- job:
		return true
	default:
	}

	timer := time.NewTimer(visitHandoffWait)
	defer timer.Stop()
	select {
	case s.jobs <- job:
		return true
	case <-timer.C:
		s.logger.WithFields(log.Fields{
			"trackingId": trackingID,
			"app":        app,
		}).Warn("visit pool saturated, dropping visit")
		return false
	}
}

// Close stops accepting jobs and waits for in-flight writes to finish.
func (s *VisitSender) Close() {
	s.once.Do(func() {
		close(s.jobs)
	})
	s.wg.Wait()
}

func (s *VisitSender) worker() {
	defer s.wg.Done()
	for job := range s.jobs {
		s.process(job)
	}
}

func (s *VisitSender) process(job visitJob) {
	ctx, cancel := context.WithTimeout(context.Background(), visitJobTimeout)
	defer cancel()

	referral := s.resolveReferral(ctx, job)

	if err := s.store.UpsertVisit(ctx, job.trackingID, job.app, job.now, referral, job.ip); err != nil {
		s.logger.WithFields(log.Fields{
			"trackingId": job.trackingID,
			"app":        job.app,
		}).WithError(err).Error("failed to record visit")
	}
}

// resolveReferral turns the referral cookie, which may hold either a user id
// or a handle, into a concrete user id. A referral that resolves to the
// visitor itself, or to nobody, is discarded.
func (s *VisitSender) resolveReferral(ctx context.Context, job visitJob) string {
	if job.referral == "" || job.referral == job.trackingID {
		return ""
	}
	referrer, err := s.store.GetUserByIDOrHandle(ctx, job.referral)
	if err != nil {
		return ""
	}
	if referrer.ID == job.trackingID {
		return ""
	}
	return referrer.ID
}
