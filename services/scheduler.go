// services/scheduler.go
package services

import (
	"context"

	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// Scheduler fires the dispatcher and the reconciliation on cron specs.
// Several processes may run one at the same time; dispatch claims keep each
// automation to a single sender.
type Scheduler struct {
	cron       *cron.Cron
	dispatcher *Dispatcher
	reconciler *ReconciliationService
	logger     logrus.FieldLogger

	ctx    context.Context
	cancel context.CancelFunc
}

func NewScheduler(dispatcher *Dispatcher, reconciler *ReconciliationService, dispatchSpec, syncSpec string, logger logrus.FieldLogger) (*Scheduler, error) {
	logger = logger.WithField("service", "scheduler")
	cronLogger := cron.PrintfLogger(logger)

	s := &Scheduler{
		cron: cron.New(
			cron.WithLogger(cronLogger),
			cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger)),
		),
		dispatcher: dispatcher,
		reconciler: reconciler,
		logger:     logger,
	}
	s.ctx, s.cancel = context.WithCancel(context.Background())

	if _, err := s.cron.AddFunc(dispatchSpec, s.RunDispatch); err != nil {
		return nil, errors.Wrapf(err, "invalid dispatch schedule %q", dispatchSpec)
	}
	if _, err := s.cron.AddFunc(syncSpec, s.RunSync); err != nil {
		return nil, errors.Wrapf(err, "invalid sync schedule %q", syncSpec)
	}
	return s, nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info("scheduler started")
}

// Stop cancels running jobs between recipients and waits for them to return.
func (s *Scheduler) Stop() {
	s.cancel()
	<-s.cron.Stop().Done()
	s.logger.Info("scheduler stopped")
}

func (s *Scheduler) RunDispatch() {
	results, err := s.dispatcher.DispatchDue(s.ctx)
	if err != nil {
		s.logger.WithError(err).Error("scheduled dispatch failed")
		return
	}
	if len(results) > 0 {
		s.logger.WithField("automations", len(results)).Info("scheduled dispatch completed")
	}
}

func (s *Scheduler) RunSync() {
	results, err := s.reconciler.SyncAll(s.ctx)
	if err != nil {
		s.logger.WithError(err).Error("scheduled reconciliation failed")
		return
	}
	changed := 0
	for _, r := range results {
		if r.Changed {
			changed++
		}
	}
	s.logger.WithFields(logrus.Fields{"polled": len(results), "changed": changed}).Info("scheduled reconciliation completed")
}
