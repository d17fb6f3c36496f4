package scheduler

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"tellerops/internal/service"
)

// RosterScheduler materializes tomorrow's roster once a day so a roster
// exists before the branch opens, even when nobody touched the planner.
type RosterScheduler struct {
	engine    *cron.Cron
	generator *service.Generator
	spec      string
	loc       *time.Location
	log       *logrus.Logger
}

func New(generator *service.Generator, spec string, loc *time.Location, log *logrus.Logger) *RosterScheduler {
	return &RosterScheduler{
		engine:    cron.New(cron.WithLocation(loc)),
		generator: generator,
		spec:      spec,
		loc:       loc,
		log:       log,
	}
}

func (s *RosterScheduler) Start() error {
	_, err := s.engine.AddFunc(s.spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()

		dayKey := service.DayKey(time.Now().In(s.loc).AddDate(0, 0, 1), s.loc)
		created, err := s.generator.GenerateDay(ctx, dayKey)
		if err != nil {
			s.log.WithError(err).WithField("day_key", dayKey).Error("nightly roster generation failed")
			return
		}
		s.log.WithFields(logrus.Fields{
			"day_key": dayKey,
			"created": len(created),
		}).Info("nightly roster generated")
	})
	if err != nil {
		return err
	}

	s.engine.Start()
	s.log.WithField("spec", s.spec).Info("roster scheduler started")
	return nil
}

// Stop waits for a running job to finish before returning.
func (s *RosterScheduler) Stop() {
	<-s.engine.Stop().Done()
}
