package batch

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/robfig/cron/v3"
)

// DefaultCronSpec runs the nightly batch at 3am local time, after the
// upstream revenue system has published its end-of-day drops.
const DefaultCronSpec = "0 3 * * *"

// Scheduler triggers the batch pipeline on a cron cadence.
type Scheduler struct {
	runner   *Runner
	cronSpec string
	loc      *time.Location
}

func NewScheduler(runner *Runner, cronSpec string, loc *time.Location) *Scheduler {
	if cronSpec == "" {
		cronSpec = DefaultCronSpec
	}
	if loc == nil {
		loc = time.Local
	}
	return &Scheduler{runner: runner, cronSpec: cronSpec, loc: loc}
}

// Run blocks until the context is cancelled, firing the pipeline on
// schedule. A pipeline still running when the next trigger fires is
// skipped rather than overlapped.
func (s *Scheduler) Run(ctx context.Context) error {
	c := cron.New(
		cron.WithLocation(s.loc),
		cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger)),
	)
	_, err := c.AddFunc(s.cronSpec, func() {
		if err := s.runner.RunAll(ctx, "cron"); err != nil {
			log.Printf("scheduler: batch run: %v", err)
		}
	})
	if err != nil {
		return fmt.Errorf("parse cron spec %q: %w", s.cronSpec, err)
	}

	c.Start()
	log.Printf("scheduler: nightly batch scheduled (%s, %s)", s.cronSpec, s.loc)

	<-ctx.Done()
	stopped := c.Stop()
	<-stopped.Done()
	log.Println("scheduler: shutting down")
	return nil
}
