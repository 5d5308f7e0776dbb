/*
sweeper.go - Scheduled end-of-month sweep

PURPOSE:
  Runs the end-of-month sweep on a cron schedule. The sweep itself is
  idempotent about dates (it only acts on the last calendar day of the
  month), so the cron expression can safely fire daily.

SEE ALSO:
  - engine/engine.go: EndOfMonthSweep
  - config/config.go: SWEEP_SCHEDULE
*/
package api

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/meridianbank/loan-engine/engine"
)

const sweepTimeout = 10 * time.Minute

// Sweeper fires the end-of-month sweep on a cron schedule.
type Sweeper struct {
	engine *engine.Engine
	log    *logrus.Logger
	cron   *cron.Cron
}

// NewSweeper creates a sweeper with the given cron expression (standard
// 5-field syntax, e.g. "0 23 * * *" for daily at 23:00 UTC).
func NewSweeper(eng *engine.Engine, schedule string, log *logrus.Logger) (*Sweeper, error) {
	if log == nil {
		log = logrus.New()
	}
	s := &Sweeper{
		engine: eng,
		log:    log,
		cron:   cron.New(cron.WithLocation(time.UTC)),
	}

	_, err := s.cron.AddFunc(schedule, s.run)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// Start begins firing the schedule in a background goroutine.
func (s *Sweeper) Start() {
	s.cron.Start()
}

// Stop halts the schedule and waits for a running sweep to finish.
func (s *Sweeper) Stop() {
	<-s.cron.Stop().Done()
}

func (s *Sweeper) run() {
	ctx, cancel := context.WithTimeout(context.Background(), sweepTimeout)
	defer cancel()

	updated, err := s.engine.EndOfMonthSweep(ctx)
	if err != nil {
		s.log.WithError(err).Error("scheduled sweep failed")
		return
	}
	if updated > 0 {
		s.log.WithField("updated_loans", updated).Info("scheduled sweep finished")
	}
}
